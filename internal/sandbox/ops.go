package sandbox

import (
	"math"
	"math/bits"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxNesting bounds recursion through nested containers in equality,
// ordering and repr.
const maxNesting = 1000

func itoa(n int) string { return strconv.Itoa(n) }

func binopTypeError(op string, a, b Value) error {
	return typeErrorf("unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(a), typeName(b))
}

func (in *Interp) binop(op string, a, b Value) (Value, error) {
	if _, ok := a.(*NDArray); ok {
		return in.arrayBinop(op, a, b)
	}
	if _, ok := b.(*NDArray); ok {
		return in.arrayBinop(op, a, b)
	}
	if x, ok := toInt(a); ok {
		if y, ok := toInt(b); ok {
			_, ab := a.(Bool)
			_, bb := b.(Bool)
			if ab && bb && (op == "&" || op == "|" || op == "^") {
				r, _ := intOp(op, x, y)
				return Bool(r.(Int) != 0), nil
			}
			return intOp(op, x, y)
		}
	}
	if isNumber(a) && isNumber(b) {
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		return floatOp(op, x, y, a, b)
	}
	switch x := a.(type) {
	case Str:
		switch op {
		case "+":
			y, ok := b.(Str)
			if !ok {
				return nil, typeErrorf("can only concatenate str (not \"%s\") to str", typeName(b))
			}
			if err := in.checkStr(len(x) + len(y)); err != nil {
				return nil, err
			}
			return x + y, nil
		case "*":
			if n, ok := toInt(b); ok {
				return in.repeatStr(x, n)
			}
		case "%":
			return in.percentFormat(string(x), b)
		}
	case *List:
		switch op {
		case "+":
			y, ok := b.(*List)
			if !ok {
				return nil, typeErrorf("can only concatenate list (not \"%s\") to list", typeName(b))
			}
			if err := in.checkItems(len(x.Items) + len(y.Items)); err != nil {
				return nil, err
			}
			return NewList(concat(x.Items, y.Items)), nil
		case "*":
			if n, ok := toInt(b); ok {
				items, err := in.repeat(x.Items, n)
				return NewList(items), err
			}
		}
	case Tuple:
		switch op {
		case "+":
			y, ok := b.(Tuple)
			if !ok {
				return nil, typeErrorf("can only concatenate tuple (not \"%s\") to tuple", typeName(b))
			}
			if err := in.checkItems(len(x) + len(y)); err != nil {
				return nil, err
			}
			return Tuple(concat(x, y)), nil
		case "*":
			if n, ok := toInt(b); ok {
				items, err := in.repeat(x, n)
				return Tuple(items), err
			}
		}
	case *Set:
		if y, ok := b.(*Set); ok {
			return in.setOp(op, x, y)
		}
	case *DictView:
		if x.Kind == "keys" {
			if y, ok := b.(*Set); ok {
				return in.setOp(op, keySet(x.Dict), y)
			}
			if y, ok := b.(*DictView); ok && y.Kind == "keys" {
				return in.setOp(op, keySet(x.Dict), keySet(y.Dict))
			}
		}
	case *Dict:
		if y, ok := b.(*Dict); ok && op == "|" {
			d := x.Copy()
			for i, k := range y.keys {
				if err := d.Set(k, y.vals[i]); err != nil {
					return nil, err
				}
			}
			return d, nil
		}
	}
	if op == "*" {
		if n, ok := toInt(a); ok {
			switch b.(type) {
			case Str, *List, Tuple:
				return in.binop("*", b, Int(n))
			}
		}
	}
	return nil, binopTypeError(op, a, b)
}

func concat(a, b []Value) []Value {
	out := make([]Value, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}

func keySet(d *Dict) *Set {
	s := NewSet()
	for _, k := range d.keys {
		_ = s.Add(k)
	}
	return s
}

func (in *Interp) repeatStr(s Str, n int64) (Value, error) {
	if n <= 0 || s == "" {
		return Str(""), nil
	}
	if n > int64(in.limits.MaxStrBytes) || int64(len(s))*n > int64(in.limits.MaxStrBytes) {
		return nil, resourceError("string exceeded %d bytes", in.limits.MaxStrBytes)
	}
	if err := in.checkStr(len(s) * int(n)); err != nil {
		return nil, err
	}
	return Str(strings.Repeat(string(s), int(n))), nil
}

func (in *Interp) repeat(items []Value, n int64) ([]Value, error) {
	if n <= 0 || len(items) == 0 {
		return []Value{}, nil
	}
	if n > int64(in.limits.MaxItems) || int64(len(items))*n > int64(in.limits.MaxItems) {
		return nil, resourceError("container exceeded %d items", in.limits.MaxItems)
	}
	if err := in.checkItems(len(items) * int(n)); err != nil {
		return nil, err
	}
	out := make([]Value, 0, len(items)*int(n))
	for range n {
		out = append(out, items...)
	}
	return out, nil
}

func (in *Interp) setOp(op string, x, y *Set) (Value, error) {
	out := NewSet()
	switch op {
	case "|":
		out = x.Copy()
		for _, v := range y.items {
			_ = out.Add(v)
		}
	case "&":
		for _, v := range x.items {
			if ok, _ := y.Has(v); ok {
				_ = out.Add(v)
			}
		}
	case "-":
		for _, v := range x.items {
			if ok, _ := y.Has(v); !ok {
				_ = out.Add(v)
			}
		}
	case "^":
		for _, v := range x.items {
			if ok, _ := y.Has(v); !ok {
				_ = out.Add(v)
			}
		}
		for _, v := range y.items {
			if ok, _ := x.Has(v); !ok {
				_ = out.Add(v)
			}
		}
	default:
		return nil, binopTypeError(op, x, y)
	}
	return out, in.checkItems(out.Len())
}

func errIntOverflow() error {
	return newExc(OverflowError, "integer result too large for a 64-bit int")
}

func intOp(op string, x, y int64) (Value, error) {
	switch op {
	case "+":
		r := x + y
		if (r > x) != (y > 0) {
			return nil, errIntOverflow()
		}
		return Int(r), nil
	case "-":
		r := x - y
		if (r < x) != (y > 0) {
			return nil, errIntOverflow()
		}
		return Int(r), nil
	case "*":
		return mulInt(x, y)
	case "/":
		if y == 0 {
			return nil, newExc(ZeroDivisionError, "division by zero")
		}
		return Float(float64(x) / float64(y)), nil
	case "//":
		if y == 0 {
			return nil, newExc(ZeroDivisionError, "integer division or modulo by zero")
		}
		if x == math.MinInt64 && y == -1 {
			return nil, errIntOverflow()
		}
		return Int(floorDiv(x, y)), nil
	case "%":
		if y == 0 {
			return nil, newExc(ZeroDivisionError, "integer modulo by zero")
		}
		if y == -1 {
			return Int(0), nil
		}
		return Int(x - floorDiv(x, y)*y), nil
	case "**":
		return powInt(x, y)
	case "<<":
		if y < 0 {
			return nil, newExc(ValueError, "negative shift count")
		}
		if x == 0 {
			return Int(0), nil
		}
		if y >= 63 || bits.Len64(uint64(absInt(x)))+int(y) > 63 {
			return nil, errIntOverflow()
		}
		return Int(x << y), nil
	case ">>":
		if y < 0 {
			return nil, newExc(ValueError, "negative shift count")
		}
		if y >= 63 {
			if x < 0 {
				return Int(-1), nil
			}
			return Int(0), nil
		}
		return Int(x >> y), nil
	case "&":
		return Int(x & y), nil
	case "|":
		return Int(x | y), nil
	case "^":
		return Int(x ^ y), nil
	}
	return nil, binopTypeError(op, Int(x), Int(y))
}

func absInt(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func floorDiv(x, y int64) int64 {
	q := x / y
	if (x%y != 0) && ((x < 0) != (y < 0)) {
		q--
	}
	return q
}

func mulInt(x, y int64) (Value, error) {
	if x == 0 || y == 0 {
		return Int(0), nil
	}
	r := x * y
	if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return nil, errIntOverflow()
	}
	return Int(r), nil
}

func powInt(x, y int64) (Value, error) {
	if y < 0 {
		if x == 0 {
			return nil, newExc(ZeroDivisionError, "0.0 cannot be raised to a negative power")
		}
		return Float(math.Pow(float64(x), float64(y))), nil
	}
	result := int64(1)
	base := x
	for y > 0 {
		if y&1 == 1 {
			r, err := mulInt(result, base)
			if err != nil {
				return nil, err
			}
			result = int64(r.(Int))
		}
		y >>= 1
		if y > 0 {
			b, err := mulInt(base, base)
			if err != nil {
				return nil, err
			}
			base = int64(b.(Int))
		}
	}
	return Int(result), nil
}

func floatOp(op string, x, y float64, a, b Value) (Value, error) {
	switch op {
	case "+":
		return Float(x + y), nil
	case "-":
		return Float(x - y), nil
	case "*":
		return Float(x * y), nil
	case "/":
		if y == 0 {
			return nil, newExc(ZeroDivisionError, "float division by zero")
		}
		return Float(x / y), nil
	case "//":
		if y == 0 {
			return nil, newExc(ZeroDivisionError, "float floor division by zero")
		}
		return Float(math.Floor(x / y)), nil
	case "%":
		if y == 0 {
			return nil, newExc(ZeroDivisionError, "float modulo")
		}
		return Float(pyFmod(x, y)), nil
	case "**":
		if x == 0 && y < 0 {
			return nil, newExc(ZeroDivisionError, "0.0 cannot be raised to a negative power")
		}
		if x < 0 && y != math.Trunc(y) {
			return nil, newExc(ValueError, "negative number cannot be raised to a fractional power")
		}
		r := math.Pow(x, y)
		if math.IsInf(r, 0) && !math.IsInf(x, 0) && !math.IsInf(y, 0) {
			return nil, newExc(OverflowError, "(34, 'Numerical result out of range')")
		}
		return Float(r), nil
	}
	return nil, binopTypeError(op, a, b)
}

func pyFmod(x, y float64) float64 {
	m := math.Mod(x, y)
	if m != 0 && (m < 0) != (y < 0) {
		m += y
	}
	return m
}

func (in *Interp) unary(op string, v Value) (Value, error) {
	if op == "not" {
		t, err := in.truthy(v)
		return Bool(!t), err
	}
	if a, ok := v.(*NDArray); ok {
		return in.arrayUnary(op, a)
	}
	if x, ok := toInt(v); ok {
		switch op {
		case "-":
			if x == math.MinInt64 {
				return nil, errIntOverflow()
			}
			return Int(-x), nil
		case "+":
			return Int(x), nil
		case "~":
			return Int(^x), nil
		}
	}
	if f, ok := v.(Float); ok {
		switch op {
		case "-":
			return -f, nil
		case "+":
			return f, nil
		}
	}
	return nil, typeErrorf("bad operand type for unary %s: '%s'", op, typeName(v))
}

func (in *Interp) compare(op string, a, b Value) (Value, error) {
	switch op {
	case "in", "not in":
		ok, err := in.contains(b, a)
		if err != nil {
			return nil, err
		}
		return Bool(ok == (op == "in")), nil
	case "is":
		return Bool(identical(a, b)), nil
	case "is not":
		return Bool(!identical(a, b)), nil
	}
	_, aa := a.(*NDArray)
	_, ba := b.(*NDArray)
	if aa || ba {
		return in.arrayBinop(op, a, b)
	}
	switch op {
	case "==":
		eq, err := valuesEqual(a, b, 0)
		return Bool(eq), err
	case "!=":
		eq, err := valuesEqual(a, b, 0)
		return Bool(!eq), err
	}
	if x, ok := a.(*Set); ok {
		if y, ok := b.(*Set); ok {
			return setCompare(op, x, y), nil
		}
	}
	if isNumber(a) && isNumber(b) {
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		if math.IsNaN(x) || math.IsNaN(y) {
			return Bool(false), nil
		}
	}
	c, err := compareValues(op, a, b, 0)
	if err != nil {
		return nil, err
	}
	switch op {
	case "<":
		return Bool(c < 0), nil
	case "<=":
		return Bool(c <= 0), nil
	case ">":
		return Bool(c > 0), nil
	}
	return Bool(c >= 0), nil
}

func setCompare(op string, x, y *Set) Value {
	subset := func(a, b *Set) bool {
		for _, v := range a.items {
			if ok, _ := b.Has(v); !ok {
				return false
			}
		}
		return true
	}
	switch op {
	case "<":
		return Bool(x.Len() < y.Len() && subset(x, y))
	case "<=":
		return Bool(subset(x, y))
	case ">":
		return Bool(x.Len() > y.Len() && subset(y, x))
	}
	return Bool(subset(y, x))
}

// identical approximates `is`: scalars compare by value, containers by
// reference.
func identical(a, b Value) bool {
	switch x := a.(type) {
	case noneType, ellipsisType:
		return a == b
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		return ok && x == y
	case Str:
		y, ok := b.(Str)
		return ok && x == y
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x) != len(y) {
			return false
		}
		return len(x) == 0 || &x[0] == &y[0]
	case *SliceValue, *List, *Dict, *Set, *Range, *Function, *Builtin, *Class, *ExcClass, *Exception,
		*Module, *Iterator, *Opaque, *DictView, *NDArray, *Figure, *Axes:
		return isComparable(b) && a == b
	}
	return false
}

func isComparable(v Value) bool {
	switch v.(type) {
	case Tuple:
		return false
	}
	return true
}

func valuesEqual(a, b Value, depth int) (bool, error) {
	if depth > maxNesting {
		return false, newExc(RecursionError, "maximum recursion depth exceeded in comparison")
	}
	if isNumber(a) && isNumber(b) {
		if x, ok := toInt(a); ok {
			if y, ok := toInt(b); ok {
				return x == y, nil
			}
		}
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		return x == y, nil
	}
	switch x := a.(type) {
	case noneType:
		return b == None, nil
	case Str:
		y, ok := b.(Str)
		return ok && x == y, nil
	case *List:
		y, ok := b.(*List)
		if !ok {
			return false, nil
		}
		if x == y {
			return true, nil
		}
		return seqEqual(x.Items, y.Items, depth)
	case Tuple:
		y, ok := b.(Tuple)
		if !ok {
			return false, nil
		}
		return seqEqual(x, y, depth)
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.Len() != y.Len() {
			return false, nil
		}
		for i, k := range x.keys {
			v, found, err := y.Get(k)
			if err != nil || !found {
				return false, err
			}
			eq, err := valuesEqual(x.vals[i], v, depth+1)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case *Set:
		y, ok := b.(*Set)
		if !ok || x.Len() != y.Len() {
			return false, nil
		}
		for _, v := range x.items {
			if has, _ := y.Has(v); !has {
				return false, nil
			}
		}
		return true, nil
	case *Range:
		y, ok := b.(*Range)
		if !ok {
			return false, nil
		}
		n := x.Count()
		if n != y.Count() {
			return false, nil
		}
		return n == 0 || (x.Start == y.Start && (n == 1 || x.Step == y.Step)), nil
	case *DictView:
		y, ok := b.(*DictView)
		if !ok || x.Kind != y.Kind || x.Kind == "values" {
			return ok && x == y, nil
		}
		return valuesEqual(keySet(x.Dict), keySet(y.Dict), depth+1)
	}
	return identical(a, b), nil
}

func seqEqual(x, y []Value, depth int) (bool, error) {
	if len(x) != len(y) {
		return false, nil
	}
	for i := range x {
		eq, err := valuesEqual(x[i], y[i], depth+1)
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

// compareValues orders a and b for <, <=, > and >=.
func compareValues(op string, a, b Value, depth int) (int, error) {
	if depth > maxNesting {
		return 0, newExc(RecursionError, "maximum recursion depth exceeded in comparison")
	}
	if isNumber(a) && isNumber(b) {
		if x, ok := toInt(a); ok {
			if y, ok := toInt(b); ok {
				return cmpOrdered(x, y), nil
			}
		}
		x, _ := toFloat(a)
		y, _ := toFloat(b)
		return cmpOrdered(x, y), nil
	}
	switch x := a.(type) {
	case Str:
		if y, ok := b.(Str); ok {
			return strings.Compare(string(x), string(y)), nil
		}
	case *List:
		if y, ok := b.(*List); ok {
			return compareSeq(op, x.Items, y.Items, depth)
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			return compareSeq(op, x, y, depth)
		}
	}
	return 0, typeErrorf("'%s' not supported between instances of '%s' and '%s'", op, typeName(a), typeName(b))
}

func cmpOrdered[T int64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func compareSeq(op string, x, y []Value, depth int) (int, error) {
	for i := 0; i < len(x) && i < len(y); i++ {
		eq, err := valuesEqual(x[i], y[i], depth+1)
		if err != nil {
			return 0, err
		}
		if !eq {
			return compareValues(op, x[i], y[i], depth+1)
		}
	}
	return cmpOrdered(int64(len(x)), int64(len(y))), nil
}

func (in *Interp) contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case Str:
		s, ok := item.(Str)
		if !ok {
			return false, typeErrorf("'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(string(c), string(s)), nil
	case *Dict:
		_, ok, err := c.Get(item)
		return ok, err
	case *Set:
		return c.Has(item)
	case *DictView:
		if c.Kind == "keys" {
			_, ok, err := c.Dict.Get(item)
			return ok, err
		}
	case *Range:
		n, ok := toInt(item)
		if !ok {
			if f, isFloat := item.(Float); isFloat && float64(f) == math.Trunc(float64(f)) {
				n, ok = int64(f), true
			}
		}
		if !ok {
			return false, nil
		}
		_, found := c.offset(n)
		return found, nil
	}
	next, err := in.iterate(container)
	if err != nil {
		return false, typeErrorf("argument of type '%s' is not iterable", typeName(container))
	}
	for {
		if err := in.tick(); err != nil {
			return false, err
		}
		v, ok, err := next()
		if err != nil || !ok {
			return false, err
		}
		eq, err := valuesEqual(v, item, 0)
		if err != nil || eq {
			return eq, err
		}
	}
}

// normIndex resolves a possibly negative index against n.
func normIndex(idx Value, n int, what string) (int, error) {
	i, ok := toInt(idx)
	if !ok {
		return 0, typeErrorf("%s indices must be integers or slices, not %s", what, typeName(idx))
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, newExc(IndexError, what+" index out of range")
	}
	return int(i), nil
}

// sliceIndices applies Python slice semantics to a sequence of length n.
func sliceIndices(sv *SliceValue, n int) (start, stop, step int, err error) {
	get := func(v Value) (int64, bool, error) {
		if v == nil || v == None {
			return 0, false, nil
		}
		i, ok := toInt(v)
		if !ok {
			return 0, false, typeErrorf("slice indices must be integers or None or have an __index__ method")
		}
		return i, true, nil
	}
	st, hasStep, err := get(sv.Step)
	if err != nil {
		return 0, 0, 0, err
	}
	if !hasStep {
		st = 1
	}
	if st == 0 {
		return 0, 0, 0, newExc(ValueError, "slice step cannot be zero")
	}
	clamp := func(v Value, def int64) (int64, error) {
		i, ok, err := get(v)
		if err != nil || !ok {
			return def, err
		}
		if i < 0 {
			i += int64(n)
			if i < 0 {
				if st < 0 {
					return -1, nil
				}
				return 0, nil
			}
		}
		if i >= int64(n) {
			if st < 0 {
				return int64(n) - 1, nil
			}
			return int64(n), nil
		}
		return i, nil
	}
	var lo, hi int64
	if st > 0 {
		lo, err = clamp(sv.Lower, 0)
		if err == nil {
			hi, err = clamp(sv.Upper, int64(n))
		}
	} else {
		lo, err = clamp(sv.Lower, int64(n)-1)
		if err == nil {
			hi, err = clamp(sv.Upper, -1)
		}
	}
	return int(lo), int(hi), int(st), err
}

func sliceOf(items []Value, sv *SliceValue) ([]Value, error) {
	start, stop, step, err := sliceIndices(sv, len(items))
	if err != nil {
		return nil, err
	}
	out := []Value{}
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, items[i])
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, items[i])
		}
	}
	return out, nil
}

func (in *Interp) getItem(obj, idx Value) (Value, error) {
	switch o := obj.(type) {
	case *List:
		if sv, ok := idx.(*SliceValue); ok {
			items, err := sliceOf(o.Items, sv)
			return NewList(items), err
		}
		i, err := normIndex(idx, len(o.Items), "list")
		if err != nil {
			return nil, err
		}
		return o.Items[i], nil
	case Tuple:
		if sv, ok := idx.(*SliceValue); ok {
			items, err := sliceOf(o, sv)
			return Tuple(items), err
		}
		i, err := normIndex(idx, len(o), "tuple")
		if err != nil {
			return nil, err
		}
		return o[i], nil
	case Str:
		if sv, ok := idx.(*SliceValue); ok {
			return strSlice(o, sv)
		}
		if utf8.RuneCountInString(string(o)) == len(o) {
			i, err := normIndex(idx, len(o), "string")
			if err != nil {
				return nil, err
			}
			return o[i : i+1], nil
		}
		runes := []rune(string(o))
		i, err := normIndex(idx, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return Str(string(runes[i])), nil
	case *Dict:
		v, ok, err := o.Get(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &Exception{Class: KeyError, Args: []Value{idx}}
		}
		return v, nil
	case *Range:
		if sv, ok := idx.(*SliceValue); ok {
			return sliceRange(o, sv)
		}
		return rangeItem(o, idx)
	case *NDArray:
		return in.arrayGet(o, idx)
	}
	return nil, typeErrorf("'%s' object is not subscriptable", typeName(obj))
}

func strSlice(s Str, sv *SliceValue) (Value, error) {
	runes := []rune(string(s))
	start, stop, step, err := sliceIndices(sv, len(runes))
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	if step > 0 {
		for i := start; i < stop; i += step {
			b.WriteRune(runes[i])
		}
	} else {
		for i := start; i > stop; i += step {
			b.WriteRune(runes[i])
		}
	}
	return Str(b.String()), nil
}

func (in *Interp) setItem(obj, idx, v Value) error {
	switch o := obj.(type) {
	case *List:
		if sv, ok := idx.(*SliceValue); ok {
			return in.setSlice(o, sv, v)
		}
		i, err := normIndex(idx, len(o.Items), "list assignment")
		if err != nil {
			return err
		}
		o.Items[i] = v
		return nil
	case *Dict:
		if err := o.Set(idx, v); err != nil {
			return err
		}
		return in.checkItems(o.Len())
	case *NDArray:
		return in.arraySet(o, idx, v)
	}
	return typeErrorf("'%s' object does not support item assignment", typeName(obj))
}

func (in *Interp) setSlice(l *List, sv *SliceValue, v Value) error {
	repl, err := in.toSlice(v)
	if err != nil {
		return typeErrorf("can only assign an iterable")
	}
	start, stop, step, err := sliceIndices(sv, len(l.Items))
	if err != nil {
		return err
	}
	if step == 1 {
		if stop < start {
			stop = start
		}
		if err := in.checkItems(len(l.Items) - (stop - start) + len(repl)); err != nil {
			return err
		}
		out := make([]Value, 0, len(l.Items)-(stop-start)+len(repl))
		out = append(out, l.Items[:start]...)
		out = append(out, repl...)
		l.Items = append(out, l.Items[stop:]...)
		return nil
	}
	var idxs []int
	if step > 0 {
		for i := start; i < stop; i += step {
			idxs = append(idxs, i)
		}
	} else {
		for i := start; i > stop; i += step {
			idxs = append(idxs, i)
		}
	}
	if len(idxs) != len(repl) {
		return newExc(ValueError, "attempt to assign sequence of size "+itoa(len(repl))+" to extended slice of size "+itoa(len(idxs)))
	}
	for j, i := range idxs {
		l.Items[i] = repl[j]
	}
	return nil
}

func (in *Interp) delItem(obj, idx Value) error {
	switch o := obj.(type) {
	case *List:
		if sv, ok := idx.(*SliceValue); ok {
			start, stop, step, err := sliceIndices(sv, len(o.Items))
			if err != nil {
				return err
			}
			drop := map[int]bool{}
			if step > 0 {
				for i := start; i < stop; i += step {
					drop[i] = true
				}
			} else {
				for i := start; i > stop; i += step {
					drop[i] = true
				}
			}
			kept := o.Items[:0:0]
			for i, item := range o.Items {
				if !drop[i] {
					kept = append(kept, item)
				}
			}
			o.Items = kept
			return nil
		}
		i, err := normIndex(idx, len(o.Items), "list assignment")
		if err != nil {
			return err
		}
		o.Items = append(o.Items[:i:i], o.Items[i+1:]...)
		return nil
	case *Dict:
		_, ok, err := o.Delete(idx)
		if err != nil {
			return err
		}
		if !ok {
			return &Exception{Class: KeyError, Args: []Value{idx}}
		}
		return nil
	}
	return typeErrorf("'%s' object doesn't support item deletion", typeName(obj))
}

func rangeItem(r *Range, idx Value) (Value, error) {
	i, ok := toInt(idx)
	if !ok {
		return nil, typeErrorf("range indices must be integers or slices, not %s", typeName(idx))
	}
	n := r.Count()
	var pos uint64
	switch {
	case i >= 0 && uint64(i) < n:
		pos = uint64(i)
	case i < 0 && -uint64(i) <= n:
		pos = n - -uint64(i)
	default:
		return nil, newExc(IndexError, "range object index out of range")
	}
	return Int(r.At(int64(pos))), nil
}

// sliceRange slices lazily, as CPython does: the result starts at the
// first selected element and steps by the product of both steps.
func sliceRange(r *Range, sv *SliceValue) (Value, error) {
	n, err := r.CheckedLen()
	if err != nil {
		return nil, err
	}
	start, stop, step, err := sliceIndices(sv, int(n))
	if err != nil {
		return nil, err
	}
	newStep, err := mulInt(r.Step, int64(step))
	if err != nil {
		return nil, err
	}
	out := &Range{Start: r.At(int64(start)), Step: int64(newStep.(Int))}
	end, err := mulInt(int64(stop), r.Step)
	if err == nil {
		end, err = addInt(r.Start, end.(Int))
	}
	if err == nil {
		out.Stop = int64(end.(Int))
		return out, nil
	}
	// the stop lies past the int64 domain; any bound just beyond the last
	// selected element selects the same elements
	var k int
	switch {
	case step > 0 && stop > start:
		k = (stop-start-1)/step + 1
	case step < 0 && start > stop:
		k = (start-stop-1)/(-step) + 1
	}
	if k == 0 {
		out.Stop = out.Start
		return out, nil
	}
	last := r.At(int64(start + (k-1)*step))
	bound := int64(1)
	if out.Step < 0 {
		bound = -1
	}
	end, err = addInt(last, Int(bound))
	if err != nil {
		return nil, err
	}
	out.Stop = int64(end.(Int))
	return out, nil
}

func addInt(x int64, y Int) (Value, error) {
	r := x + int64(y)
	if (r > x) != (y > 0) {
		return nil, errIntOverflow()
	}
	return Int(r), nil
}
