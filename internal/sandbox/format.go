package sandbox

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// formatSpec is a parsed format specification mini-language string.
type formatSpec struct {
	fill      rune
	align     byte
	sign      byte
	alt       bool
	width     int
	grouping  byte
	precision int
	typ       byte
}

func parseFormatSpec(s string) (formatSpec, error) {
	fs := formatSpec{fill: ' ', precision: -1}
	bad := func() (formatSpec, error) {
		return fs, newExc(ValueError, "Invalid format specifier '"+s+"'")
	}
	rest := s
	isAlign := func(c byte) bool { return c == '<' || c == '>' || c == '=' || c == '^' }

	if r, size := utf8.DecodeRuneInString(rest); size > 0 && len(rest) > size && isAlign(rest[size]) {
		fs.fill, fs.align = r, rest[size]
		rest = rest[size+1:]
	} else if rest != "" && isAlign(rest[0]) {
		fs.align = rest[0]
		rest = rest[1:]
	}
	if rest != "" && (rest[0] == '+' || rest[0] == '-' || rest[0] == ' ') {
		fs.sign = rest[0]
		rest = rest[1:]
	}
	if rest != "" && rest[0] == 'z' {
		rest = rest[1:]
	}
	if rest != "" && rest[0] == '#' {
		fs.alt = true
		rest = rest[1:]
	}
	if rest != "" && rest[0] == '0' {
		if fs.align == 0 {
			fs.fill, fs.align = '0', '='
		}
		rest = rest[1:]
	}
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		w, err := strconv.Atoi(rest[:i])
		if err != nil || w > 10000 {
			return bad()
		}
		fs.width = w
		rest = rest[i:]
	}
	if rest != "" && (rest[0] == ',' || rest[0] == '_') {
		fs.grouping = rest[0]
		rest = rest[1:]
	}
	if rest != "" && rest[0] == '.' {
		i = 1
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 1 {
			return fs, newExc(ValueError, "Format specifier missing precision")
		}
		p, err := strconv.Atoi(rest[1:i])
		if err != nil || p > 1000 {
			return bad()
		}
		fs.precision = p
		rest = rest[i:]
	}
	switch len(rest) {
	case 0:
	case 1:
		fs.typ = rest[0]
	default:
		return bad()
	}
	return fs, nil
}

// formatValue implements format(v, spec).
func formatValue(v Value, spec string) (string, error) {
	if spec == "" {
		return strValue(v), nil
	}
	fs, err := parseFormatSpec(spec)
	if err != nil {
		return "", err
	}
	switch v := v.(type) {
	case Str:
		return formatStr(string(v), fs)
	case Bool:
		if fs.typ == 0 || fs.typ == 's' {
			return formatStr(strValue(v), fs)
		}
		n, _ := toInt(v)
		return formatInt(n, fs)
	case Int:
		return formatInt(int64(v), fs)
	case Float:
		return formatFloat(float64(v), fs)
	}
	if fs.typ == 0 || fs.typ == 's' {
		return formatStr(strValue(v), fs)
	}
	return "", typeErrorf("unsupported format string passed to %s.__format__", v.Type())
}

func formatStr(s string, fs formatSpec) (string, error) {
	if fs.typ != 0 && fs.typ != 's' {
		return "", newExc(ValueError, fmt.Sprintf("Unknown format code '%c' for object of type 'str'", fs.typ))
	}
	if fs.sign != 0 {
		return "", newExc(ValueError, "Sign not allowed in string format specifier")
	}
	if fs.align == '=' {
		return "", newExc(ValueError, "'=' alignment not allowed in string format specifier")
	}
	if fs.precision >= 0 && utf8.RuneCountInString(s) > fs.precision {
		s = string([]rune(s)[:fs.precision])
	}
	return pad("", s, fs, '<'), nil
}

func formatInt(n int64, fs formatSpec) (string, error) {
	switch fs.typ {
	case 'e', 'E', 'f', 'F', 'g', 'G', '%':
		return formatFloat(float64(n), fs)
	case 'c':
		if n < 0 || n > 0x10ffff {
			return "", newExc(OverflowError, "%c arg not in range(0x110000)")
		}
		return pad("", string(rune(n)), fs, '<'), nil
	}
	if fs.precision >= 0 {
		return "", newExc(ValueError, "Precision not allowed in integer format specifier")
	}
	neg := n < 0
	u := uint64(n)
	if neg {
		u = uint64(-n)
	}
	var digits, prefix string
	groupEvery := 3
	switch fs.typ {
	case 0, 'd', 'n':
		digits = strconv.FormatUint(u, 10)
	case 'b':
		digits, prefix, groupEvery = strconv.FormatUint(u, 2), "0b", 4
	case 'o':
		digits, prefix, groupEvery = strconv.FormatUint(u, 8), "0o", 4
	case 'x':
		digits, prefix, groupEvery = strconv.FormatUint(u, 16), "0x", 4
	case 'X':
		digits, prefix, groupEvery = strings.ToUpper(strconv.FormatUint(u, 16)), "0X", 4
	default:
		return "", newExc(ValueError, fmt.Sprintf("Unknown format code '%c' for object of type 'int'", fs.typ))
	}
	if fs.grouping != 0 {
		digits = group(digits, fs.grouping, groupEvery)
	}
	if !fs.alt {
		prefix = ""
	}
	return pad(signOf(neg, fs.sign)+prefix, digits, fs, '>'), nil
}

func formatFloat(f float64, fs formatSpec) (string, error) {
	neg := math.Signbit(f) && !math.IsNaN(f)
	a := math.Abs(f)
	prec := fs.precision
	var body string
	switch fs.typ {
	case 0:
		if prec < 0 {
			body = formatFloatRepr(a)
		} else {
			body = strconv.FormatFloat(a, 'g', max(prec, 1), 64)
			if !strings.ContainsAny(body, ".eIN") && !math.IsInf(a, 0) && !math.IsNaN(a) {
				body += ".0"
			}
		}
	case 'f', 'F':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a, 'f', prec, 64)
	case 'e', 'E':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a, 'e', prec, 64)
	case 'g', 'G', 'n':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a, 'g', max(prec, 1), 64)
	case '%':
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(a*100, 'f', prec, 64) + "%"
	default:
		return "", newExc(ValueError, fmt.Sprintf("Unknown format code '%c' for object of type 'float'", fs.typ))
	}
	switch {
	case math.IsInf(a, 0):
		body = "inf"
		if fs.typ == '%' {
			body += "%"
		}
	case math.IsNaN(a):
		body = "nan"
	}
	if fs.typ == 'F' || fs.typ == 'E' || fs.typ == 'G' {
		body = strings.ToUpper(body)
	}
	if fs.alt && !strings.ContainsAny(body, ".") && !math.IsInf(a, 0) && !math.IsNaN(a) {
		if i := strings.IndexAny(body, "eE%"); i >= 0 {
			body = body[:i] + "." + body[i:]
		} else {
			body += "."
		}
	}
	if fs.grouping != 0 {
		end := strings.IndexAny(body, ".eE%")
		if end < 0 {
			end = len(body)
		}
		if body[0] >= '0' && body[0] <= '9' {
			body = group(body[:end], fs.grouping, 3) + body[end:]
		}
	}
	return pad(signOf(neg, fs.sign), body, fs, '>'), nil
}

func signOf(neg bool, sign byte) string {
	switch {
	case neg:
		return "-"
	case sign == '+':
		return "+"
	case sign == ' ':
		return " "
	}
	return ""
}

func group(digits string, sep byte, every int) string {
	if len(digits) <= every {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % every
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += every {
		if b.Len() > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(digits[i : i+every])
	}
	return b.String()
}

// pad applies width, fill and alignment. prefix holds the sign and radix
// prefix, which '=' alignment keeps ahead of the padding.
func pad(prefix, body string, fs formatSpec, defaultAlign byte) string {
	n := utf8.RuneCountInString(prefix) + utf8.RuneCountInString(body)
	if fs.width <= n {
		return prefix + body
	}
	fill := strings.Repeat(string(fs.fill), fs.width-n)
	align := fs.align
	if align == 0 {
		align = defaultAlign
	}
	switch align {
	case '<':
		return prefix + body + fill
	case '=':
		return prefix + fill + body
	case '^':
		half := (fs.width - n) / 2
		left := strings.Repeat(string(fs.fill), half)
		right := strings.Repeat(string(fs.fill), fs.width-n-half)
		return left + prefix + body + right
	}
	return fill + prefix + body
}

// percentFormat implements str % args.
func (in *Interp) percentFormat(format string, arg Value) (Value, error) {
	var args []Value
	var mapping *Dict
	switch a := arg.(type) {
	case Tuple:
		args = a
	case *Dict:
		mapping = a
		args = []Value{a}
	default:
		args = []Value{a}
	}
	next := 0
	take := func() (Value, error) {
		if next >= len(args) {
			return nil, typeErrorf("not enough arguments for format string")
		}
		v := args[next]
		next++
		return v, nil
	}
	usedMapping := false

	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return nil, newExc(ValueError, "incomplete format")
		}
		var value Value
		hasValue := false
		if format[i] == '(' {
			end := strings.IndexByte(format[i:], ')')
			if end < 0 {
				return nil, newExc(ValueError, "incomplete format key")
			}
			if mapping == nil {
				return nil, typeErrorf("format requires a mapping")
			}
			key := format[i+1 : i+end]
			v, ok, err := mapping.Get(Str(key))
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, &Exception{Class: KeyError, Args: []Value{Str(key)}}
			}
			value, hasValue, usedMapping = v, true, true
			i += end + 1
		}
		fs := formatSpec{fill: ' ', precision: -1, align: '>'}
		for ; i < len(format); i++ {
			switch format[i] {
			case '-':
				fs.align = '<'
			case '+':
				fs.sign = '+'
			case ' ':
				if fs.sign == 0 {
					fs.sign = ' '
				}
			case '0':
				if fs.align != '<' {
					fs.fill, fs.align = '0', '='
				}
			case '#':
				fs.alt = true
			default:
				goto width
			}
		}
	width:
		if i < len(format) && format[i] == '*' {
			w, err := take()
			if err != nil {
				return nil, err
			}
			n, ok := toInt(w)
			if !ok {
				return nil, typeErrorf("* wants int")
			}
			fs.width = int(min(max(n, 0), 10000))
			i++
		} else {
			start := i
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				i++
			}
			if i > start {
				fs.width, _ = strconv.Atoi(format[start:i])
				fs.width = min(fs.width, 10000)
			}
		}
		if i < len(format) && format[i] == '.' {
			i++
			start := i
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				i++
			}
			fs.precision, _ = strconv.Atoi(format[start:i])
			fs.precision = min(fs.precision, 1000)
		}
		for i < len(format) && strings.IndexByte("hlL", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			return nil, newExc(ValueError, "incomplete format")
		}
		conv := format[i]
		if conv == '%' {
			b.WriteByte('%')
			continue
		}
		if !hasValue {
			v, err := take()
			if err != nil {
				return nil, err
			}
			value = v
		}
		var s string
		var err error
		switch conv {
		case 's':
			fs.typ = 's'
			s, err = formatStr(strValue(value), fs)
		case 'r', 'a':
			fs.typ = 's'
			s, err = formatStr(reprValue(value), fs)
		case 'd', 'i', 'u':
			var n int64
			switch v := value.(type) {
			case Float:
				iv, ferr := floatToInt(float64(v))
				if ferr != nil {
					return nil, ferr
				}
				n = int64(iv)
			default:
				var ok bool
				if n, ok = toInt(value); !ok {
					return nil, typeErrorf("%%%c format: a real number is required, not %s", conv, typeName(value))
				}
			}
			fs.precision = -1
			s, err = formatInt(n, fs)
		case 'x', 'X', 'o':
			n, ok := toInt(value)
			if !ok {
				return nil, typeErrorf("%%%c format: an integer is required, not %s", conv, typeName(value))
			}
			fs.typ = conv
			fs.precision = -1
			s, err = formatInt(n, fs)
		case 'e', 'E', 'f', 'F', 'g', 'G':
			f, ok := toFloat(value)
			if !ok {
				return nil, typeErrorf("must be real number, not %s", typeName(value))
			}
			fs.typ = conv
			s, err = formatFloat(f, fs)
		case 'c':
			switch v := value.(type) {
			case Str:
				if utf8.RuneCountInString(string(v)) != 1 {
					return nil, typeErrorf("%%c requires int or char")
				}
				s = pad("", string(v), fs, '>')
			default:
				n, ok := toInt(value)
				if !ok {
					return nil, typeErrorf("%%c requires int or char")
				}
				fs.typ = 'c'
				s, err = formatInt(n, fs)
			}
		default:
			return nil, newExc(ValueError, fmt.Sprintf("unsupported format character '%c' (0x%x) at index %d", conv, conv, i))
		}
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
		if err := in.checkStr(b.Len()); err != nil {
			return nil, err
		}
	}
	if next < len(args) && !usedMapping && mapping == nil {
		return nil, typeErrorf("not all arguments converted during string formatting")
	}
	return Str(b.String()), nil
}

// strFormat implements str.format.
func (in *Interp) strFormat(format string, args []Value, kwargs []KV) (Value, error) {
	auto := 0
	manual := false
	lookup := func(name string) (Value, error) {
		if strings.ContainsAny(name, ".[") {
			return nil, newExc(ValueError, "attribute and index access in format fields is not supported")
		}
		if name == "" {
			if manual {
				return nil, newExc(ValueError, "cannot switch from manual field specification to automatic field numbering")
			}
			name = strconv.Itoa(auto)
			auto++
		} else if _, err := strconv.Atoi(name); err == nil {
			if auto > 0 {
				return nil, newExc(ValueError, "cannot switch from automatic field numbering to manual field specification")
			}
			manual = true
		}
		if idx, err := strconv.Atoi(name); err == nil {
			if idx < 0 || idx >= len(args) {
				return nil, newExc(IndexError, fmt.Sprintf("Replacement index %d out of range for positional args tuple", idx))
			}
			return args[idx], nil
		}
		for _, kw := range kwargs {
			if kw.Name == name {
				return kw.Value, nil
			}
		}
		return nil, &Exception{Class: KeyError, Args: []Value{Str(name)}}
	}

	var render func(s string, depth int) (string, error)
	render = func(s string, depth int) (string, error) {
		if depth > 2 {
			return "", newExc(ValueError, "Max string recursion exceeded")
		}
		var b strings.Builder
		for i := 0; i < len(s); i++ {
			c := s[i]
			switch {
			case c == '{' && i+1 < len(s) && s[i+1] == '{':
				b.WriteByte('{')
				i++
			case c == '}' && i+1 < len(s) && s[i+1] == '}':
				b.WriteByte('}')
				i++
			case c == '}':
				return "", newExc(ValueError, "Single '}' encountered in format string")
			case c == '{':
				end, d := i+1, 0
				for ; end < len(s); end++ {
					if s[end] == '{' {
						d++
					} else if s[end] == '}' {
						if d == 0 {
							break
						}
						d--
					}
				}
				if end >= len(s) {
					return "", newExc(ValueError, "Single '{' encountered in format string")
				}
				field := s[i+1 : end]
				i = end
				name, spec, hasSpec := strings.Cut(field, ":")
				name, conv, hasConv := strings.Cut(name, "!")
				v, err := lookup(name)
				if err != nil {
					return "", err
				}
				if hasConv {
					switch conv {
					case "r", "a":
						v = Str(reprValue(v))
					case "s":
						v = Str(strValue(v))
					default:
						return "", newExc(ValueError, "Unknown conversion specifier "+conv)
					}
				}
				if hasSpec && strings.ContainsRune(spec, '{') {
					if spec, err = render(spec, depth+1); err != nil {
						return "", err
					}
				}
				out, err := formatValue(v, spec)
				if err != nil {
					return "", err
				}
				b.WriteString(out)
			default:
				b.WriteByte(c)
			}
			if err := in.checkStr(b.Len()); err != nil {
				return "", err
			}
		}
		return b.String(), nil
	}
	out, err := render(format, 0)
	if err != nil {
		return nil, err
	}
	return Str(out), nil
}
