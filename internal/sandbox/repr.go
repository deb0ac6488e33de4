package sandbox

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// reprValue is repr(v).
func reprValue(v Value) string {
	var b strings.Builder
	writeRepr(&b, v, map[any]bool{}, 0)
	return b.String()
}

// strValue is str(v).
func strValue(v Value) string {
	switch v := v.(type) {
	case Str:
		return string(v)
	case *Exception:
		return v.Message()
	case *NDArray:
		return v.format(false)
	}
	return reprValue(v)
}

func writeRepr(b *strings.Builder, v Value, seen map[any]bool, depth int) {
	if depth > maxNesting {
		b.WriteString("...")
		return
	}
	switch v := v.(type) {
	case nil, noneType:
		b.WriteString("None")
	case Bool:
		if v {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case Int:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case Float:
		b.WriteString(formatFloatRepr(float64(v)))
	case Str:
		b.WriteString(reprString(string(v)))
	case ellipsisType:
		b.WriteString("Ellipsis")
	case *List:
		if seen[v] {
			b.WriteString("[...]")
			return
		}
		seen[v] = true
		b.WriteByte('[')
		writeItems(b, v.Items, seen, depth)
		b.WriteByte(']')
		delete(seen, v)
	case Tuple:
		b.WriteByte('(')
		writeItems(b, v, seen, depth)
		if len(v) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case *Dict:
		if seen[v] {
			b.WriteString("{...}")
			return
		}
		seen[v] = true
		b.WriteByte('{')
		for i := range v.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeRepr(b, v.keys[i], seen, depth+1)
			b.WriteString(": ")
			writeRepr(b, v.vals[i], seen, depth+1)
		}
		b.WriteByte('}')
		delete(seen, v)
	case *Set:
		if v.Len() == 0 {
			b.WriteString("set()")
			return
		}
		b.WriteByte('{')
		writeItems(b, displayOrder(v.items), seen, depth)
		b.WriteByte('}')
	case *Range:
		if v.Step == 1 {
			fmt.Fprintf(b, "range(%d, %d)", v.Start, v.Stop)
		} else {
			fmt.Fprintf(b, "range(%d, %d, %d)", v.Start, v.Stop, v.Step)
		}
	case *DictView:
		b.WriteString("dict_" + v.Kind + "([")
		switch v.Kind {
		case "keys":
			writeItems(b, v.Dict.keys, seen, depth)
		case "values":
			writeItems(b, v.Dict.vals, seen, depth)
		default:
			items := make([]Value, len(v.Dict.keys))
			for i := range v.Dict.keys {
				items[i] = Tuple{v.Dict.keys[i], v.Dict.vals[i]}
			}
			writeItems(b, items, seen, depth)
		}
		b.WriteString("])")
	case *Function:
		fmt.Fprintf(b, "<function %s>", v.Name)
	case *Builtin:
		if v.Owner != "" {
			fmt.Fprintf(b, "<built-in method %s of %s object>", v.Name, v.Owner)
		} else {
			fmt.Fprintf(b, "<built-in function %s>", v.Name)
		}
	case *Class:
		fmt.Fprintf(b, "<class '%s'>", v.Name)
	case *ExcClass:
		fmt.Fprintf(b, "<class '%s'>", v.Name)
	case *Exception:
		b.WriteString(v.Repr())
	case *Module:
		fmt.Fprintf(b, "<module '%s'>", v.Name)
	case *Iterator:
		fmt.Fprintf(b, "<%s object>", v.Kind)
	case *Opaque:
		b.WriteString(v.Repr)
	case *NDArray:
		b.WriteString(v.format(true))
	case *Figure:
		fmt.Fprintf(b, "<Figure size %gx%g with %d Axes>", v.Width*100, v.Height*100, len(v.Axes))
	case *Axes:
		b.WriteString("<Axes: >")
	default:
		fmt.Fprintf(b, "<%s object>", v.Type())
	}
}

func writeItems(b *strings.Builder, items []Value, seen map[any]bool, depth int) {
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		writeRepr(b, item, seen, depth+1)
	}
}

// displayOrder approximates CPython's set iteration order for display:
// small non-negative integers hash to themselves and so appear sorted.
func displayOrder(items []Value) []Value {
	for _, v := range items {
		i, ok := v.(Int)
		if !ok || i < 0 {
			return items
		}
	}
	out := append([]Value(nil), items...)
	slices.SortFunc(out, func(a, b Value) int { return cmp.Compare(a.(Int), b.(Int)) })
	return out
}

// formatFloatRepr renders f with the shortest digits that round-trip,
// switching to exponent notation outside [1e-4, 1e16) as Python does.
func formatFloatRepr(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	exp := 0
	e := strconv.FormatFloat(f, 'e', -1, 64)
	if i := strings.LastIndexByte(e, 'e'); i >= 0 {
		if x, err := strconv.Atoi(e[i+1:]); err == nil {
			exp = x
		}
	}
	if exp < -4 || exp >= 16 {
		return e
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// reprString quotes s the way Python's str.__repr__ does.
func reprString(s string) string {
	quote := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		quote = '"'
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(quote)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteByte(quote)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r < 0x80 || unicode.IsPrint(r):
			b.WriteRune(r)
		case r <= 0xff:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r <= 0xffff:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			fmt.Fprintf(&b, `\U%08x`, r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}
