package sandbox

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

func method(owner, name string, fn goFunc) *Builtin {
	return &Builtin{Name: name, Owner: owner, Fn: fn}
}

func attrError(v Value, name string) error {
	return newExc(AttributeError, "'"+typeName(v)+"' object has no attribute '"+name+"'")
}

// getAttr resolves obj.name. Only the attributes listed here exist; there
// is no generic attribute protocol to reach into.
func (in *Interp) getAttr(obj Value, name string) (Value, error) {
	var v Value
	switch o := obj.(type) {
	case *Module:
		if a, ok := o.Attrs[name]; ok {
			return a, nil
		}
		return nil, newExc(AttributeError, "module '"+o.Name+"' has no attribute '"+name+"'")
	case *Class:
		return classMethod(o, name)
	case *Exception:
		if name == "args" {
			return Tuple(append([]Value(nil), o.Args...)), nil
		}
	case Str:
		v = strMethod(o, name)
	case *List:
		v = listMethod(o, name)
	case Tuple:
		v = tupleMethod(o, name)
	case *Dict:
		v = dictMethod(o, name)
	case *Set:
		v = setMethod(o, name)
	case Int, Bool:
		n, _ := toInt(o)
		v = intAttr(n, name)
	case Float:
		v = floatAttr(float64(o), name)
	case *Range:
		v = rangeAttr(o, name)
	case *NDArray:
		return in.arrayAttr(o, name)
	case *Figure:
		return in.figureAttr(o, name)
	case *Axes:
		return in.axesAttr(o, name)
	}
	if v == nil {
		return nil, attrError(obj, name)
	}
	return v, nil
}

// classMethod returns an unbound method such as str.upper, which takes the
// receiver as its first argument.
func classMethod(c *Class, name string) (Value, error) {
	probe := map[string]Value{
		"str": Str(""), "list": NewList(nil), "tuple": Tuple{}, "dict": NewDict(),
		"set": NewSet(), "int": Int(0), "float": Float(0), "bool": Bool(false),
	}[c.Name]
	if probe == nil {
		return nil, newExc(AttributeError, "type object '"+c.Name+"' has no attribute '"+name+"'")
	}
	if c.Name == "dict" && name == "fromkeys" {
		return method("dict", "fromkeys", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs("fromkeys", args, kwargs, []string{"iterable", "value"}, 1)
			if err != nil {
				return nil, err
			}
			keys, err := in.toSlice(a[0])
			if err != nil {
				return nil, err
			}
			val := a[1]
			if val == nil {
				val = None
			}
			d := NewDict()
			for _, k := range keys {
				if err := d.Set(k, val); err != nil {
					return nil, err
				}
			}
			return d, nil
		}), nil
	}
	in := &Interp{}
	if _, err := in.getAttr(probe, name); err != nil {
		return nil, newExc(AttributeError, "type object '"+c.Name+"' has no attribute '"+name+"'")
	}
	return method(c.Name, name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		if len(args) == 0 || !c.Match(args[0]) {
			return nil, typeErrorf("unbound method %s.%s() needs an argument", c.Name, name)
		}
		bound, err := in.getAttr(args[0], name)
		if err != nil {
			return nil, err
		}
		return in.call(bound, args[1:], kwargs)
	}), nil
}

func runeIndex(s string, byteIdx int) int {
	if byteIdx < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:byteIdx])
}

// strBounds applies optional start/end rune offsets, returning the byte
// window and the rune offset of its start.
func strBounds(s string, start, end Value) (string, int, error) {
	runes := []rune(s)
	n := len(runes)
	lo, hi := 0, n
	norm := func(v Value, def int) (int, error) {
		if v == nil || v == None {
			return def, nil
		}
		i, err := indexArg(v)
		if err != nil {
			return 0, err
		}
		if i < 0 {
			i += int64(n)
		}
		return int(min(max(i, 0), int64(n))), nil
	}
	var err error
	if lo, err = norm(start, 0); err != nil {
		return "", 0, err
	}
	if hi, err = norm(end, n); err != nil {
		return "", 0, err
	}
	if hi < lo {
		return "", lo, nil
	}
	return string(runes[lo:hi]), lo, nil
}

func strArg(fname string, v Value) (string, error) {
	s, ok := v.(Str)
	if !ok {
		return "", typeErrorf("%s() argument must be str, not %s", fname, typeName(v))
	}
	return string(s), nil
}

func splitWhitespace(s string, maxsplit int, fromRight bool) []Value {
	fields := strings.Fields(s)
	if maxsplit < 0 || len(fields) <= maxsplit+1 {
		out := make([]Value, len(fields))
		for i, f := range fields {
			out[i] = Str(f)
		}
		return out
	}
	var out []Value
	rest := s
	if !fromRight {
		for range maxsplit {
			rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
			i := strings.IndexFunc(rest, unicode.IsSpace)
			out = append(out, Str(rest[:i]))
			rest = rest[i:]
		}
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		return append(out, Str(rest))
	}
	for range maxsplit {
		rest = strings.TrimRightFunc(rest, unicode.IsSpace)
		i := strings.LastIndexFunc(rest, unicode.IsSpace)
		_, size := utf8.DecodeRuneInString(rest[i:])
		out = append([]Value{Str(rest[i+size:])}, out...)
		rest = rest[:i]
	}
	rest = strings.TrimRightFunc(rest, unicode.IsSpace)
	return append([]Value{Str(rest)}, out...)
}

func strMethod(s Str, name string) Value {
	str := string(s)
	m := func(fn goFunc) Value { return method("str", name, fn) }
	simple := func(f func(string) Value) Value {
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			return f(str), nil
		})
	}
	allRunes := func(pred func(rune) bool) Value {
		return simple(func(s string) Value {
			if s == "" {
				return Bool(false)
			}
			for _, r := range s {
				if !pred(r) {
					return Bool(false)
				}
			}
			return Bool(true)
		})
	}
	strip := func(mode int) Value {
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"chars"}, 0)
			if err != nil {
				return nil, err
			}
			if a[0] == nil || a[0] == None {
				switch mode {
				case 0:
					return Str(strings.TrimSpace(str)), nil
				case 1:
					return Str(strings.TrimLeftFunc(str, unicode.IsSpace)), nil
				}
				return Str(strings.TrimRightFunc(str, unicode.IsSpace)), nil
			}
			chars, err := strArg(name, a[0])
			if err != nil {
				return nil, err
			}
			switch mode {
			case 0:
				return Str(strings.Trim(str, chars)), nil
			case 1:
				return Str(strings.TrimLeft(str, chars)), nil
			}
			return Str(strings.TrimRight(str, chars)), nil
		})
	}
	find := func(right, raise bool) Value {
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"sub", "start", "end"}, 1)
			if err != nil {
				return nil, err
			}
			sub, err := strArg(name, a[0])
			if err != nil {
				return nil, err
			}
			window, offset, err := strBounds(str, a[1], a[2])
			if err != nil {
				return nil, err
			}
			var i int
			if right {
				i = strings.LastIndex(window, sub)
			} else {
				i = strings.Index(window, sub)
			}
			if i < 0 {
				if raise {
					return nil, newExc(ValueError, "substring not found")
				}
				return Int(-1), nil
			}
			return Int(offset + runeIndex(window, i)), nil
		})
	}
	affix := func(suffix bool) Value {
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"prefix", "start", "end"}, 1)
			if err != nil {
				return nil, err
			}
			window, _, err := strBounds(str, a[1], a[2])
			if err != nil {
				return nil, err
			}
			var options []Value
			switch p := a[0].(type) {
			case Str:
				options = []Value{p}
			case Tuple:
				options = p
			default:
				return nil, typeErrorf("%s first arg must be str or a tuple of str, not %s", name, typeName(p))
			}
			for _, o := range options {
				p, ok := o.(Str)
				if !ok {
					return nil, typeErrorf("tuple for %s must only contain str, not %s", name, typeName(o))
				}
				if suffix && strings.HasSuffix(window, string(p)) || !suffix && strings.HasPrefix(window, string(p)) {
					return Bool(true), nil
				}
			}
			return Bool(false), nil
		})
	}
	justify := func(align byte) Value {
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"width", "fillchar"}, 1)
			if err != nil {
				return nil, err
			}
			w, err := indexArg(a[0])
			if err != nil {
				return nil, err
			}
			fill := ' '
			if a[1] != nil {
				f, ok := a[1].(Str)
				if !ok || utf8.RuneCountInString(string(f)) != 1 {
					return nil, typeErrorf("The fill character must be exactly one character long")
				}
				fill, _ = utf8.DecodeRuneInString(string(f))
			}
			if err := in.checkStr(int(w)); err != nil {
				return nil, err
			}
			n := utf8.RuneCountInString(str)
			if int(w) <= n {
				return s, nil
			}
			padding := int(w) - n
			switch align {
			case '<':
				return Str(str + strings.Repeat(string(fill), padding)), nil
			case '>':
				return Str(strings.Repeat(string(fill), padding) + str), nil
			}
			left := padding / 2
			if padding%2 == 1 && w%2 == 1 {
				left++
			}
			return Str(strings.Repeat(string(fill), left) + str + strings.Repeat(string(fill), padding-left)), nil
		})
	}
	split := func(right bool) Value {
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"sep", "maxsplit"}, 0)
			if err != nil {
				return nil, err
			}
			maxsplit := -1
			if a[1] != nil {
				n, err := indexArg(a[1])
				if err != nil {
					return nil, err
				}
				maxsplit = int(n)
			}
			if a[0] == nil || a[0] == None {
				return NewList(splitWhitespace(str, maxsplit, right)), nil
			}
			sep, err := strArg(name, a[0])
			if err != nil {
				return nil, err
			}
			if sep == "" {
				return nil, newExc(ValueError, "empty separator")
			}
			var parts []string
			switch {
			case maxsplit < 0:
				parts = strings.Split(str, sep)
			case !right:
				parts = strings.SplitN(str, sep, maxsplit+1)
			default:
				rest := str
				for range maxsplit {
					i := strings.LastIndex(rest, sep)
					if i < 0 {
						break
					}
					parts = append([]string{rest[i+len(sep):]}, parts...)
					rest = rest[:i]
				}
				parts = append([]string{rest}, parts...)
			}
			out := make([]Value, len(parts))
			for i, p := range parts {
				out[i] = Str(p)
			}
			if err := in.checkItems(len(out)); err != nil {
				return nil, err
			}
			return NewList(out), nil
		})
	}
	partition := func(right bool) Value {
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"sep"}, 1)
			if err != nil {
				return nil, err
			}
			sep, err := strArg(name, a[0])
			if err != nil {
				return nil, err
			}
			if sep == "" {
				return nil, newExc(ValueError, "empty separator")
			}
			i := strings.Index(str, sep)
			if right {
				i = strings.LastIndex(str, sep)
			}
			if i < 0 {
				if right {
					return Tuple{Str(""), Str(""), s}, nil
				}
				return Tuple{s, Str(""), Str("")}, nil
			}
			return Tuple{Str(str[:i]), Str(sep), Str(str[i+len(sep):])}, nil
		})
	}

	switch name {
	case "upper":
		return simple(func(s string) Value { return Str(upperString(s)) })
	case "lower":
		return simple(func(s string) Value { return Str(lowerString(s)) })
	case "casefold":
		return simple(func(s string) Value { return Str(foldString(s)) })
	case "swapcase":
		return simple(func(s string) Value {
			var b strings.Builder
			for _, r := range s {
				if unicode.IsUpper(r) {
					writeLower(&b, r)
				} else {
					writeUpper(&b, r)
				}
			}
			return Str(b.String())
		})
	case "capitalize":
		return simple(func(s string) Value {
			if s == "" {
				return Str("")
			}
			r, size := utf8.DecodeRuneInString(s)
			var b strings.Builder
			writeTitle(&b, r)
			b.WriteString(lowerString(s[size:]))
			return Str(b.String())
		})
	case "title":
		return simple(func(s string) Value {
			var b strings.Builder
			prevLetter := false
			for _, r := range s {
				if prevLetter {
					writeLower(&b, r)
				} else {
					writeTitle(&b, r)
				}
				prevLetter = unicode.IsLetter(r)
			}
			return Str(b.String())
		})
	case "isdigit", "isdecimal", "isnumeric":
		return allRunes(unicode.IsDigit)
	case "isalpha":
		return allRunes(unicode.IsLetter)
	case "isalnum":
		return allRunes(func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) })
	case "isspace":
		return allRunes(unicode.IsSpace)
	case "isupper", "islower":
		upper := name == "isupper"
		return simple(func(s string) Value {
			cased := false
			for _, r := range s {
				if unicode.IsUpper(r) || unicode.IsLower(r) {
					cased = true
					if unicode.IsUpper(r) != upper {
						return Bool(false)
					}
				}
			}
			return Bool(cased)
		})
	case "strip":
		return strip(0)
	case "lstrip":
		return strip(1)
	case "rstrip":
		return strip(2)
	case "split":
		return split(false)
	case "rsplit":
		return split(true)
	case "splitlines":
		return simple(func(s string) Value {
			out := []Value{}
			for s != "" {
				i := strings.IndexAny(s, "\n\r")
				if i < 0 {
					out = append(out, Str(s))
					break
				}
				out = append(out, Str(s[:i]))
				if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
					i++
				}
				s = s[i+1:]
			}
			return NewList(out)
		})
	case "join":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"iterable"}, 1)
			if err != nil {
				return nil, err
			}
			items, err := in.toSlice(a[0])
			if err != nil {
				return nil, err
			}
			var b strings.Builder
			for i, item := range items {
				p, ok := item.(Str)
				if !ok {
					return nil, typeErrorf("sequence item %d: expected str instance, %s found", i, typeName(item))
				}
				if i > 0 {
					b.WriteString(str)
				}
				b.WriteString(string(p))
				if err := in.checkStr(b.Len()); err != nil {
					return nil, err
				}
			}
			return Str(b.String()), nil
		})
	case "replace":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"old", "new", "count"}, 2)
			if err != nil {
				return nil, err
			}
			old, err := strArg(name, a[0])
			if err != nil {
				return nil, err
			}
			repl, err := strArg(name, a[1])
			if err != nil {
				return nil, err
			}
			n := int64(-1)
			if a[2] != nil {
				if n, err = indexArg(a[2]); err != nil {
					return nil, err
				}
			}
			count := strings.Count(str, old)
			if n >= 0 && int64(count) > n {
				count = int(n)
			}
			if err := in.checkStr(len(str) + count*(len(repl)-len(old))); err != nil {
				return nil, err
			}
			return Str(strings.Replace(str, old, repl, int(n))), nil
		})
	case "find":
		return find(false, false)
	case "rfind":
		return find(true, false)
	case "index":
		return find(false, true)
	case "rindex":
		return find(true, true)
	case "count":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"sub", "start", "end"}, 1)
			if err != nil {
				return nil, err
			}
			sub, err := strArg(name, a[0])
			if err != nil {
				return nil, err
			}
			window, _, err := strBounds(str, a[1], a[2])
			if err != nil {
				return nil, err
			}
			if sub == "" {
				return Int(utf8.RuneCountInString(window) + 1), nil
			}
			return Int(strings.Count(window, sub)), nil
		})
	case "startswith":
		return affix(false)
	case "endswith":
		return affix(true)
	case "ljust":
		return justify('<')
	case "rjust":
		return justify('>')
	case "center":
		return justify('^')
	case "zfill":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"width"}, 1)
			if err != nil {
				return nil, err
			}
			w, err := indexArg(a[0])
			if err != nil {
				return nil, err
			}
			if err := in.checkStr(int(w)); err != nil {
				return nil, err
			}
			n := utf8.RuneCountInString(str)
			if int(w) <= n {
				return s, nil
			}
			sign, body := "", str
			if body != "" && (body[0] == '-' || body[0] == '+') {
				sign, body = body[:1], body[1:]
			}
			return Str(sign + strings.Repeat("0", int(w)-n) + body), nil
		})
	case "partition":
		return partition(false)
	case "rpartition":
		return partition(true)
	case "removeprefix", "removesuffix":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"affix"}, 1)
			if err != nil {
				return nil, err
			}
			p, err := strArg(name, a[0])
			if err != nil {
				return nil, err
			}
			if name == "removeprefix" {
				return Str(strings.TrimPrefix(str, p)), nil
			}
			return Str(strings.TrimSuffix(str, p)), nil
		})
	case "format":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			return in.strFormat(str, args, kwargs)
		})
	}
	return nil
}

func listMethod(l *List, name string) Value {
	m := func(fn goFunc) Value { return method("list", name, fn) }
	switch name {
	case "append":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"object"}, 1)
			if err != nil {
				return nil, err
			}
			if err := in.checkItems(len(l.Items) + 1); err != nil {
				return nil, err
			}
			l.Items = append(l.Items, a[0])
			return None, nil
		})
	case "extend":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"iterable"}, 1)
			if err != nil {
				return nil, err
			}
			_, err = in.inplace("+", l, a[0])
			return None, err
		})
	case "insert":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"index", "object"}, 2)
			if err != nil {
				return nil, err
			}
			i, err := indexArg(a[0])
			if err != nil {
				return nil, err
			}
			n := int64(len(l.Items))
			if i < 0 {
				i = max(i+n, 0)
			}
			i = min(i, n)
			if err := in.checkItems(len(l.Items) + 1); err != nil {
				return nil, err
			}
			l.Items = append(l.Items, nil)
			copy(l.Items[i+1:], l.Items[i:])
			l.Items[i] = a[1]
			return None, nil
		})
	case "pop":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"index"}, 0)
			if err != nil {
				return nil, err
			}
			if len(l.Items) == 0 {
				return nil, newExc(IndexError, "pop from empty list")
			}
			var idx Value = Int(-1)
			if a[0] != nil {
				idx = a[0]
			}
			i, err := normIndex(idx, len(l.Items), "pop")
			if err != nil {
				return nil, err
			}
			v := l.Items[i]
			l.Items = append(l.Items[:i:i], l.Items[i+1:]...)
			return v, nil
		})
	case "remove":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"value"}, 1)
			if err != nil {
				return nil, err
			}
			for i, v := range l.Items {
				eq, err := valuesEqual(v, a[0], 0)
				if err != nil {
					return nil, err
				}
				if eq {
					l.Items = append(l.Items[:i:i], l.Items[i+1:]...)
					return None, nil
				}
			}
			return nil, newExc(ValueError, "list.remove(x): x not in list")
		})
	case "index", "count":
		return seqSearch("list", name, func() []Value { return l.Items })
	case "sort":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if len(args) > 0 {
				return nil, typeErrorf("sort() takes no positional arguments")
			}
			key, reverse, err := sortOptions("sort", kwargs)
			if err != nil {
				return nil, err
			}
			items := append([]Value(nil), l.Items...)
			if err := in.sortValues(items, key, reverse); err != nil {
				return nil, err
			}
			l.Items = items
			return None, nil
		})
	case "reverse":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			for i, j := 0, len(l.Items)-1; i < j; i, j = i+1, j-1 {
				l.Items[i], l.Items[j] = l.Items[j], l.Items[i]
			}
			return None, nil
		})
	case "copy":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			return NewList(append([]Value{}, l.Items...)), nil
		})
	case "clear":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			l.Items = nil
			return None, nil
		})
	}
	return nil
}

// seqSearch implements index and count for lists and tuples.
func seqSearch(owner, name string, items func() []Value) Value {
	return method(owner, name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		a, err := bindArgs(name, args, kwargs, []string{"value"}, 1)
		if err != nil {
			return nil, err
		}
		count := 0
		for i, v := range items() {
			if err := in.tick(); err != nil {
				return nil, err
			}
			eq, err := valuesEqual(v, a[0], 0)
			if err != nil {
				return nil, err
			}
			if !eq {
				continue
			}
			if name == "index" {
				return Int(i), nil
			}
			count++
		}
		if name == "index" {
			if owner == "tuple" {
				return nil, newExc(ValueError, "tuple.index(x): x not in tuple")
			}
			return nil, newExc(ValueError, reprValue(a[0])+" is not in list")
		}
		return Int(count), nil
	})
}

func tupleMethod(t Tuple, name string) Value {
	switch name {
	case "index", "count":
		return seqSearch("tuple", name, func() []Value { return t })
	}
	return nil
}

func dictMethod(d *Dict, name string) Value {
	m := func(fn goFunc) Value { return method("dict", name, fn) }
	view := func(kind string) Value {
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			return &DictView{Dict: d, Kind: kind}, nil
		})
	}
	switch name {
	case "keys", "values", "items":
		return view(name)
	case "get":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"key", "default"}, 1)
			if err != nil {
				return nil, err
			}
			v, ok, err := d.Get(a[0])
			if err != nil {
				return nil, err
			}
			if ok {
				return v, nil
			}
			if a[1] != nil {
				return a[1], nil
			}
			return None, nil
		})
	case "pop":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"key", "default"}, 1)
			if err != nil {
				return nil, err
			}
			v, ok, err := d.Delete(a[0])
			if err != nil {
				return nil, err
			}
			if ok {
				return v, nil
			}
			if a[1] != nil {
				return a[1], nil
			}
			return nil, &Exception{Class: KeyError, Args: []Value{a[0]}}
		})
	case "popitem":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			if d.Len() == 0 {
				return nil, newExc(KeyError, "popitem(): dictionary is empty")
			}
			k := d.keys[len(d.keys)-1]
			v, _, err := d.Delete(k)
			if err != nil {
				return nil, err
			}
			return Tuple{k, v}, nil
		})
	case "setdefault":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"key", "default"}, 1)
			if err != nil {
				return nil, err
			}
			v, ok, err := d.Get(a[0])
			if err != nil || ok {
				return v, err
			}
			def := a[1]
			if def == nil {
				def = None
			}
			if err := d.Set(a[0], def); err != nil {
				return nil, err
			}
			return def, in.checkItems(d.Len())
		})
	case "update":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if len(args) > 1 {
				return nil, typeErrorf("update expected at most 1 argument, got %d", len(args))
			}
			if len(args) == 1 {
				src, err := in.newDictFrom(args[0])
				if err != nil {
					return nil, err
				}
				for i, k := range src.keys {
					if err := d.Set(k, src.vals[i]); err != nil {
						return nil, err
					}
				}
			}
			for _, kw := range kwargs {
				if err := d.Set(Str(kw.Name), kw.Value); err != nil {
					return nil, err
				}
			}
			return None, in.checkItems(d.Len())
		})
	case "copy":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			return d.Copy(), nil
		})
	case "clear":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			d.Clear()
			return None, nil
		})
	}
	return nil
}

func setMethod(s *Set, name string) Value {
	m := func(fn goFunc) Value { return method("set", name, fn) }
	combine := func(op string, inPlace bool) Value {
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if err := noKwargs(name, kwargs); err != nil {
				return nil, err
			}
			result := s.Copy()
			for _, a := range args {
				other, err := in.newSetFrom(a)
				if err != nil {
					return nil, err
				}
				r, err := in.setOp(op, result, other)
				if err != nil {
					return nil, err
				}
				result = r.(*Set)
			}
			if inPlace {
				s.items, s.index = result.items, result.index
				return None, nil
			}
			return result, nil
		})
	}
	relation := func(fn func(other *Set) bool) Value {
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"other"}, 1)
			if err != nil {
				return nil, err
			}
			other, err := in.newSetFrom(a[0])
			if err != nil {
				return nil, err
			}
			return Bool(fn(other)), nil
		})
	}
	switch name {
	case "add":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"elem"}, 1)
			if err != nil {
				return nil, err
			}
			if err := s.Add(a[0]); err != nil {
				return nil, err
			}
			return None, in.checkItems(s.Len())
		})
	case "remove", "discard":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"elem"}, 1)
			if err != nil {
				return nil, err
			}
			ok, err := s.Remove(a[0])
			if err != nil {
				return nil, err
			}
			if !ok && name == "remove" {
				return nil, &Exception{Class: KeyError, Args: []Value{a[0]}}
			}
			return None, nil
		})
	case "pop":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			if s.Len() == 0 {
				return nil, newExc(KeyError, "pop from an empty set")
			}
			v := displayOrder(s.items)[0]
			_, err := s.Remove(v)
			return v, err
		})
	case "union":
		return combine("|", false)
	case "intersection":
		return combine("&", false)
	case "difference":
		return combine("-", false)
	case "symmetric_difference":
		return combine("^", false)
	case "update":
		return combine("|", true)
	case "intersection_update":
		return combine("&", true)
	case "difference_update":
		return combine("-", true)
	case "issubset":
		return relation(func(o *Set) bool { return setCompare("<=", s, o) == Bool(true) })
	case "issuperset":
		return relation(func(o *Set) bool { return setCompare(">=", s, o) == Bool(true) })
	case "isdisjoint":
		return relation(func(o *Set) bool {
			for _, v := range s.items {
				if ok, _ := o.Has(v); ok {
					return false
				}
			}
			return true
		})
	case "copy":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			return s.Copy(), nil
		})
	case "clear":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			s.Clear()
			return None, nil
		})
	}
	return nil
}

func intAttr(n int64, name string) Value {
	switch name {
	case "real", "numerator":
		return Int(n)
	case "imag":
		return Int(0)
	case "denominator":
		return Int(1)
	}
	m := func(fn func() Value) Value {
		return method("int", name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			return fn(), nil
		})
	}
	switch name {
	case "bit_length":
		return m(func() Value {
			u := uint64(absInt(n))
			if n == -1<<63 {
				u = 1 << 63
			}
			c := 0
			for ; u > 0; u >>= 1 {
				c++
			}
			return Int(c)
		})
	case "is_integer":
		return m(func() Value { return Bool(true) })
	case "conjugate":
		return m(func() Value { return Int(n) })
	}
	return nil
}

func floatAttr(f float64, name string) Value {
	switch name {
	case "real":
		return Float(f)
	case "imag":
		return Float(0)
	}
	m := func(fn func() Value) Value {
		return method("float", name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if _, err := bindArgs(name, args, kwargs, nil, 0); err != nil {
				return nil, err
			}
			return fn(), nil
		})
	}
	switch name {
	case "is_integer":
		return m(func() Value { return Bool(f == float64(int64(f)) && !isInfOrNaN(f)) })
	case "conjugate":
		return m(func() Value { return Float(f) })
	}
	return nil
}

func rangeAttr(r *Range, name string) Value {
	switch name {
	case "start":
		return Int(r.Start)
	case "stop":
		return Int(r.Stop)
	case "step":
		return Int(r.Step)
	case "index", "count":
		return method("range", name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"value"}, 1)
			if err != nil {
				return nil, err
			}
			ok, err := in.contains(r, a[0])
			if err != nil {
				return nil, err
			}
			if name == "count" {
				if ok {
					return Int(1), nil
				}
				return Int(0), nil
			}
			if !ok {
				return nil, newExc(ValueError, reprValue(a[0])+" is not in range")
			}
			n, _ := toInt(a[0])
			if f, isFloat := a[0].(Float); isFloat {
				n = int64(f)
			}
			pos, _ := r.offset(n)
			if pos > math.MaxInt64 {
				return nil, errIntOverflow()
			}
			return Int(pos), nil
		})
	}
	return nil
}
