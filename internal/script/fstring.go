package script

import "strings"

const maxFStringNesting = 2

// fstring splits the undecoded body of an f-string token into literal
// *Constant parts and *FormattedValue replacement fields.
func (p *parser) fstring(t Token, body string, nested int) []Expr {
	var parts []Expr
	var lit strings.Builder
	flush := func() {
		if lit.Len() == 0 {
			return
		}
		s, err := decodeEscapes(lit.String(), t.Raw)
		if err != nil {
			p.fail(t, err.Error())
		}
		parts = append(parts, at(t.Pos, &Constant{Value: s}))
		lit.Reset()
	}
	for i := 0; i < len(body); {
		c := body[i]
		switch {
		case c == '{' && i+1 < len(body) && body[i+1] == '{':
			lit.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(body) && body[i+1] == '}':
			lit.WriteByte('}')
			i += 2
		case c == '}':
			p.fail(t, "f-string: single '}' is not allowed")
		case c == '{':
			flush()
			fv, debug, next := p.fstringField(t, body, i+1, nested)
			if debug != "" {
				parts = append(parts, at(t.Pos, &Constant{Value: debug}))
			}
			parts = append(parts, fv)
			i = next
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return parts
}

// fstringField parses one replacement field whose expression starts at
// body[start]. It returns the field, the literal text of a `{expr=}` debug
// field, and the index just past the closing brace.
func (p *parser) fstringField(t Token, body string, start, nested int) (*FormattedValue, string, int) {
	depth := 0
	end := -1
	debug := false
	j := start
scan:
	for j < len(body) {
		c := body[j]
		switch c {
		case '\'', '"':
			k := strings.IndexByte(body[j+1:], c)
			if k < 0 {
				p.fail(t, "f-string: unterminated string")
			}
			j += k + 2
			continue
		case '(', '[', '{':
			depth++
		case ')', ']':
			depth--
		case '}':
			if depth == 0 {
				end = j
				break scan
			}
			depth--
		case '!':
			if depth == 0 {
				if j+1 < len(body) && body[j+1] == '=' {
					j += 2
					continue
				}
				end = j
				break scan
			}
		case ':':
			if depth == 0 {
				end = j
				break scan
			}
		case '=':
			if depth == 0 {
				if j+1 < len(body) && body[j+1] == '=' {
					j += 2
					continue
				}
				if j > start && strings.IndexByte("=!<>", body[j-1]) >= 0 {
					break
				}
				rest := strings.TrimLeft(body[j+1:], " ")
				if rest != "" && strings.IndexByte("}!:", rest[0]) >= 0 {
					debug = true
					end = j
					break scan
				}
			}
		}
		j++
	}
	if end < 0 {
		p.fail(t, "f-string: expecting '}'")
	}
	text := body[start:end]
	fv := at(t.Pos, &FormattedValue{Value: p.fstringExpr(t, text)})
	debugText := ""
	if debug {
		j = end + 1
		for j < len(body) && body[j] == ' ' {
			j++
		}
		debugText = body[start:j]
	} else {
		j = end
	}

	if body[j] == '!' {
		if j+1 >= len(body) || strings.IndexByte("rsa", body[j+1]) < 0 {
			p.fail(t, "f-string: invalid conversion character: expected 's', 'r', or 'a'")
		}
		fv.Conversion = body[j+1]
		j += 2
		if j >= len(body) || (body[j] != ':' && body[j] != '}') {
			p.fail(t, "f-string: expecting '}'")
		}
	}
	if body[j] == ':' {
		if nested >= maxFStringNesting {
			p.fail(t, "f-string: expressions nested too deeply")
		}
		k, d := j+1, 0
		for ; k < len(body); k++ {
			if body[k] == '{' {
				d++
			} else if body[k] == '}' {
				if d == 0 {
					break
				}
				d--
			}
		}
		if k >= len(body) {
			p.fail(t, "f-string: expecting '}'")
		}
		fv.FormatSpec = at(t.Pos, &JoinedStr{Values: p.fstring(t, body[j+1:k], nested+1)})
		j = k
	}
	if body[j] != '}' {
		p.fail(t, "f-string: expecting '}'")
	}
	if debug && fv.Conversion == 0 && fv.FormatSpec == nil {
		fv.Conversion = 'r'
	}
	return fv, debugText, j + 1
}

// fstringExpr parses the expression text of a replacement field.
func (p *parser) fstringExpr(t Token, text string) Expr {
	if strings.TrimSpace(text) == "" {
		p.fail(t, "f-string: valid expression required before '}'")
	}
	toks, err := Tokenize("(" + text + ")")
	if err != nil {
		p.fail(t, "f-string: "+syntaxMsg(err))
	}
	sub := &parser{toks: toks, depth: p.depth, funcs: p.funcs, loops: p.loops}
	var e Expr
	err = sub.guard(func() {
		e = sub.atom()
		if k := sub.next().Kind; k != NEWLINE && k != EOF {
			sub.fail(sub.peek(), "invalid syntax")
		}
	})
	if err != nil {
		p.fail(t, "f-string: "+syntaxMsg(err))
	}
	return e
}

func syntaxMsg(err error) string {
	if se, ok := err.(*SyntaxError); ok {
		return se.Msg
	}
	return err.Error()
}
