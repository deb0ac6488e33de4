package script

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const tabSize = 8

type lexer struct {
	src    string
	i      int
	line   int
	col    int
	toks   []Token
	indent []int
	open   []Token // open brackets; newlines inside brackets are ignored
	bol    bool
}

// Tokenize splits src into tokens, synthesising NEWLINE, INDENT and DEDENT
// tokens from line structure the way Python does.
func Tokenize(src string) (toks []Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			toks, err = nil, &SyntaxError{Msg: "invalid syntax"}
		}
	}()
	if !utf8.ValidString(src) {
		return nil, &SyntaxError{Msg: "source is not valid UTF-8"}
	}
	if strings.IndexByte(src, 0) >= 0 {
		return nil, &SyntaxError{Msg: "source code cannot contain null bytes"}
	}
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	lx := &lexer{src: src, line: 1, col: 1, indent: []int{0}, bol: true}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.toks, nil
}

func (lx *lexer) pos() Pos { return Pos{Line: lx.line, Col: lx.col} }

func (lx *lexer) errorf(p Pos, msg string) error {
	return &SyntaxError{Msg: msg, Pos: p}
}

func (lx *lexer) peekByte(off int) byte {
	if lx.i+off < len(lx.src) {
		return lx.src[lx.i+off]
	}
	return 0
}

// advance consumes n bytes that are known not to contain newlines.
func (lx *lexer) advance(n int) {
	lx.col += utf8.RuneCountInString(lx.src[lx.i : lx.i+n])
	lx.i += n
}

func (lx *lexer) newline() {
	lx.i++
	lx.line++
	lx.col = 1
}

func (lx *lexer) emit(kind TokenKind, text string, p Pos) {
	lx.toks = append(lx.toks, Token{Kind: kind, Text: text, Pos: p})
}

func (lx *lexer) lastKind() TokenKind {
	if len(lx.toks) == 0 {
		return NEWLINE
	}
	return lx.toks[len(lx.toks)-1].Kind
}

func (lx *lexer) run() error {
	for {
		if lx.bol && len(lx.open) == 0 {
			done, err := lx.lineStart()
			if err != nil {
				return err
			}
			if done {
				break
			}
			continue
		}
		if lx.i >= len(lx.src) {
			break
		}
		c := lx.src[lx.i]
		switch {
		case c == ' ' || c == '\t' || c == '\f':
			lx.advance(1)
		case c == '\\':
			if lx.peekByte(1) != '\n' {
				return lx.errorf(lx.pos(), "unexpected character after line continuation character")
			}
			lx.i++
			lx.newline()
		case c == '\n':
			if len(lx.open) == 0 {
				lx.emit(NEWLINE, "", lx.pos())
				lx.bol = true
			}
			lx.newline()
		case c == '#':
			for lx.i < len(lx.src) && lx.src[lx.i] != '\n' {
				lx.i++
			}
		case isDigit(c) || (c == '.' && isDigit(lx.peekByte(1))):
			if err := lx.number(); err != nil {
				return err
			}
		case c == '"' || c == '\'':
			if err := lx.str("", lx.pos()); err != nil {
				return err
			}
		default:
			r, _ := utf8.DecodeRuneInString(lx.src[lx.i:])
			if r == '_' || unicode.IsLetter(r) {
				if err := lx.name(); err != nil {
					return err
				}
				continue
			}
			if !lx.operator() {
				return lx.errorf(lx.pos(), "invalid character '"+string(r)+"'")
			}
			if err := lx.bracket(); err != nil {
				return err
			}
		}
	}
	if n := len(lx.open); n > 0 {
		t := lx.open[n-1]
		return lx.errorf(t.Pos, "'"+t.Text+"' was never closed")
	}
	if k := lx.lastKind(); k != NEWLINE && k != DEDENT && k != INDENT {
		lx.emit(NEWLINE, "", lx.pos())
	}
	for len(lx.indent) > 1 {
		lx.indent = lx.indent[:len(lx.indent)-1]
		lx.emit(DEDENT, "", lx.pos())
	}
	lx.emit(EOF, "", lx.pos())
	return nil
}

// lineStart measures indentation at the beginning of a logical line.
// Blank and comment-only lines are skipped entirely. It reports done when
// the input is exhausted.
func (lx *lexer) lineStart() (bool, error) {
	width := 0
	for lx.i < len(lx.src) {
		c := lx.src[lx.i]
		if c == ' ' {
			width++
		} else if c == '\t' {
			width = (width/tabSize + 1) * tabSize
		} else if c == '\f' {
			width = 0
		} else {
			break
		}
		lx.advance(1)
	}
	if lx.i >= len(lx.src) {
		return true, nil
	}
	switch lx.src[lx.i] {
	case '\n':
		lx.newline()
		return false, nil
	case '#':
		for lx.i < len(lx.src) && lx.src[lx.i] != '\n' {
			lx.i++
		}
		return false, nil
	}
	lx.bol = false
	p := lx.pos()
	top := lx.indent[len(lx.indent)-1]
	switch {
	case width > top:
		lx.indent = append(lx.indent, width)
		lx.emit(INDENT, "", p)
	case width < top:
		for width < lx.indent[len(lx.indent)-1] {
			lx.indent = lx.indent[:len(lx.indent)-1]
			lx.emit(DEDENT, "", p)
		}
		if width != lx.indent[len(lx.indent)-1] {
			return false, lx.errorf(p, "unindent does not match any outer indentation level")
		}
	}
	return false, nil
}

func (lx *lexer) name() error {
	p := lx.pos()
	start := lx.i
	for lx.i < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[lx.i:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		lx.i += size
		lx.col++
	}
	word := lx.src[start:lx.i]
	if c := lx.peekByte(0); (c == '\'' || c == '"') && isStringPrefix(word) {
		return lx.str(strings.ToLower(word), p)
	}
	if keywords[word] {
		lx.emit(KEYWORD, word, p)
	} else {
		lx.emit(NAME, word, p)
	}
	return nil
}

func isStringPrefix(w string) bool {
	switch strings.ToLower(w) {
	case "r", "u", "f", "b", "rf", "fr", "br", "rb":
		return true
	}
	return false
}

func (lx *lexer) operator() bool {
	rest := lx.src[lx.i:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			lx.emit(OP, op, lx.pos())
			lx.advance(len(op))
			return true
		}
	}
	return false
}

func (lx *lexer) bracket() error {
	t := lx.toks[len(lx.toks)-1]
	switch t.Text {
	case "(", "[", "{":
		lx.open = append(lx.open, t)
	case ")", "]", "}":
		n := len(lx.open)
		if n == 0 {
			return lx.errorf(t.Pos, "unmatched '"+t.Text+"'")
		}
		if want := closing[lx.open[n-1].Text]; want != t.Text {
			return lx.errorf(t.Pos, "closing parenthesis '"+t.Text+"' does not match opening parenthesis '"+lx.open[n-1].Text+"'")
		}
		lx.open = lx.open[:n-1]
	}
	return nil
}

func (lx *lexer) number() error {
	p := lx.pos()
	start := lx.i
	src := lx.src
	if src[lx.i] == '0' && lx.i+1 < len(src) && strings.IndexByte("xXoObB", src[lx.i+1]) >= 0 {
		base := 16
		switch src[lx.i+1] {
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		j := lx.i + 2
		for j < len(src) && (isHexDigit(src[j]) || src[j] == '_') {
			j++
		}
		digits := strings.ReplaceAll(src[lx.i+2:j], "_", "")
		lx.advance(j - lx.i)
		v, err := strconv.ParseInt(digits, base, 64)
		if err != nil {
			return lx.numberError(p, err)
		}
		lx.emit(INT, strconv.FormatInt(v, 10), p)
		return nil
	}

	isFloat := false
	j := lx.i
	for j < len(src) && (isDigit(src[j]) || src[j] == '_') {
		j++
	}
	if j < len(src) && src[j] == '.' {
		isFloat = true
		j++
		for j < len(src) && (isDigit(src[j]) || src[j] == '_') {
			j++
		}
	}
	if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
		k := j + 1
		if k < len(src) && (src[k] == '+' || src[k] == '-') {
			k++
		}
		if k < len(src) && isDigit(src[k]) {
			isFloat = true
			j = k
			for j < len(src) && (isDigit(src[j]) || src[j] == '_') {
				j++
			}
		}
	}
	if j < len(src) && (src[j] == 'j' || src[j] == 'J') {
		return lx.errorf(p, "complex number literals are not supported")
	}
	text := strings.ReplaceAll(src[start:j], "_", "")
	lx.advance(j - lx.i)
	if isFloat {
		if _, err := strconv.ParseFloat(text, 64); err != nil && !errors.Is(err, strconv.ErrRange) {
			return lx.errorf(p, "invalid number literal")
		}
		lx.emit(FLOAT, text, p)
		return nil
	}
	if len(text) > 1 && text[0] == '0' && strings.Trim(text, "0") != "" {
		return lx.errorf(p, "leading zeros in decimal integer literals are not permitted")
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return lx.numberError(p, err)
	}
	lx.emit(INT, strconv.FormatInt(v, 10), p)
	return nil
}

func (lx *lexer) numberError(p Pos, err error) error {
	if errors.Is(err, strconv.ErrRange) {
		return lx.errorf(p, "integer literal is too large")
	}
	return lx.errorf(p, "invalid number literal")
}

// str lexes a string literal whose optional prefix has already been read.
func (lx *lexer) str(prefix string, p Pos) error {
	if strings.Contains(prefix, "b") {
		return lx.errorf(p, "bytes literals are not supported")
	}
	raw := strings.Contains(prefix, "r")
	fstr := strings.Contains(prefix, "f")
	q := lx.src[lx.i]
	triple := lx.peekByte(1) == q && lx.peekByte(2) == q
	if triple {
		lx.advance(3)
	} else {
		lx.advance(1)
	}
	var body strings.Builder
	for {
		if lx.i >= len(lx.src) {
			if triple {
				return lx.errorf(p, "unterminated triple-quoted string literal")
			}
			return lx.errorf(p, "unterminated string literal")
		}
		c := lx.src[lx.i]
		if c == q {
			if !triple {
				lx.advance(1)
				break
			}
			if lx.peekByte(1) == q && lx.peekByte(2) == q {
				lx.advance(3)
				break
			}
		}
		if c == '\n' {
			if !triple {
				return lx.errorf(p, "unterminated string literal")
			}
			body.WriteByte('\n')
			lx.newline()
			continue
		}
		if c == '\\' && lx.i+1 < len(lx.src) {
			body.WriteByte('\\')
			if lx.src[lx.i+1] == '\n' {
				body.WriteByte('\n')
				lx.i++
				lx.newline()
				continue
			}
			lx.advance(1)
		}
		_, size := utf8.DecodeRuneInString(lx.src[lx.i:])
		body.WriteString(lx.src[lx.i : lx.i+size])
		lx.advance(size)
	}
	text := body.String()
	if !fstr {
		decoded, err := decodeEscapes(text, raw)
		if err != nil {
			return lx.errorf(p, err.Error())
		}
		text = decoded
	}
	lx.toks = append(lx.toks, Token{Kind: STRING, Text: text, Pos: p, FString: fstr, Raw: raw})
	return nil
}

type escapeError string

func (e escapeError) Error() string { return string(e) }

// decodeEscapes interprets backslash escapes in a string body.
func decodeEscapes(s string, raw bool) (string, error) {
	if raw || strings.IndexByte(s, '\\') < 0 {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 32)
			b.WriteRune(rune(v))
			i = j - 1
		case 'x', 'u', 'U':
			n := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
			if i+1+n > len(s) {
				return "", escapeError("truncated \\" + string(e) + " escape")
			}
			v, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32)
			if err != nil {
				return "", escapeError("truncated \\" + string(e) + " escape")
			}
			if v > unicode.MaxRune {
				return "", escapeError("illegal Unicode character")
			}
			b.WriteRune(rune(v))
			i += n
		case 'N':
			return "", escapeError("named unicode escapes are not supported")
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}

var closing = map[string]string{"(": ")", "[": "]", "{": "}"}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
