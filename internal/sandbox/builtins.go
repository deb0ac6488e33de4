package sandbox

import (
	"errors"
	"math"
	"math/big"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

type goFunc = func(in *Interp, args []Value, kwargs []KV) (Value, error)

func builtin(name string, fn goFunc) *Builtin {
	return &Builtin{Name: name, Fn: fn}
}

// bindArgs maps the arguments of a Go-implemented callable onto names.
// The first required names must be supplied; the rest come back nil when
// omitted.
func bindArgs(fname string, args []Value, kwargs []KV, names []string, required int) ([]Value, error) {
	if len(args) > len(names) {
		if required == len(names) {
			return nil, typeErrorf("%s() takes exactly %s (%d given)", fname, plural(len(names), "argument"), len(args))
		}
		return nil, typeErrorf("%s() takes at most %s (%d given)", fname, plural(len(names), "argument"), len(args))
	}
	out := make([]Value, len(names))
	copy(out, args)
	for _, kw := range kwargs {
		i := slices.Index(names, kw.Name)
		if i < 0 {
			return nil, typeErrorf("%s() got an unexpected keyword argument '%s'", fname, kw.Name)
		}
		if out[i] != nil {
			return nil, typeErrorf("%s() got multiple values for argument '%s'", fname, kw.Name)
		}
		out[i] = kw.Value
	}
	for i := 0; i < required; i++ {
		if out[i] == nil {
			return nil, typeErrorf("%s() missing required argument '%s' (pos %d)", fname, names[i], i+1)
		}
	}
	return out, nil
}

func noKwargs(fname string, kwargs []KV) error {
	if len(kwargs) > 0 {
		return typeErrorf("%s() takes no keyword arguments", fname)
	}
	return nil
}

func indexArg(v Value) (int64, error) {
	n, ok := toInt(v)
	if !ok {
		return 0, typeErrorf("'%s' object cannot be interpreted as an integer", typeName(v))
	}
	return n, nil
}

var (
	intClass = &Class{Name: "int", Call: callInt, Match: func(v Value) bool {
		_, ok := toInt(v)
		return ok
	}}
	floatClass = &Class{Name: "float", Call: callFloat, Match: func(v Value) bool {
		_, ok := v.(Float)
		return ok
	}}
	strClass = &Class{Name: "str", Call: callStr, Match: func(v Value) bool {
		_, ok := v.(Str)
		return ok
	}}
	boolClass = &Class{Name: "bool", Call: callBool, Match: func(v Value) bool {
		_, ok := v.(Bool)
		return ok
	}}
	listClass = &Class{Name: "list", Call: callList, Match: func(v Value) bool {
		_, ok := v.(*List)
		return ok
	}}
	tupleClass = &Class{Name: "tuple", Call: callTuple, Match: func(v Value) bool {
		_, ok := v.(Tuple)
		return ok
	}}
	dictClass = &Class{Name: "dict", Call: callDict, Match: func(v Value) bool {
		_, ok := v.(*Dict)
		return ok
	}}
	setClass = &Class{Name: "set", Call: callSet, Match: func(v Value) bool {
		_, ok := v.(*Set)
		return ok
	}}
	rangeClass = &Class{Name: "range", Call: callRange, Match: func(v Value) bool {
		_, ok := v.(*Range)
		return ok
	}}
)

// newBuiltins builds the namespace every run starts from. Its keys are
// the capability allowlist.
func newBuiltins() map[string]Value {
	b := map[string]Value{
		"int":   intClass,
		"float": floatClass,
		"str":   strClass,
		"bool":  boolClass,
		"list":  listClass,
		"tuple": tupleClass,
		"dict":  dictClass,
		"set":   setClass,
		"range": rangeClass,

		"print":      builtin("print", builtinPrint),
		"len":        builtin("len", builtinLen),
		"sum":        builtin("sum", builtinSum),
		"min":        builtin("min", func(in *Interp, a []Value, kw []KV) (Value, error) { return in.minmax("min", a, kw) }),
		"max":        builtin("max", func(in *Interp, a []Value, kw []KV) (Value, error) { return in.minmax("max", a, kw) }),
		"abs":        builtin("abs", builtinAbs),
		"sorted":     builtin("sorted", builtinSorted),
		"enumerate":  builtin("enumerate", builtinEnumerate),
		"zip":        builtin("zip", builtinZip),
		"round":      builtin("round", builtinRound),
		"any":        builtin("any", func(in *Interp, a []Value, kw []KV) (Value, error) { return in.anyAll("any", a, kw) }),
		"all":        builtin("all", func(in *Interp, a []Value, kw []KV) (Value, error) { return in.anyAll("all", a, kw) }),
		"reversed":   builtin("reversed", builtinReversed),
		"map":        builtin("map", builtinMap),
		"filter":     builtin("filter", builtinFilter),
		"isinstance": builtin("isinstance", builtinIsinstance),
		"divmod":     builtin("divmod", builtinDivmod),
		"pow":        builtin("pow", builtinPow),
		"repr":       builtin("repr", builtinRepr),
		"chr":        builtin("chr", builtinChr),
		"ord":        builtin("ord", builtinOrd),
	}
	for _, c := range exceptionClasses {
		b[c.Name] = c
	}
	return b
}

// Allowlist returns the sorted names pre-populated in every namespace.
func Allowlist() []string {
	b := newBuiltins()
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func builtinPrint(in *Interp, args []Value, kwargs []KV) (Value, error) {
	sep, end := " ", "\n"
	for _, kw := range kwargs {
		switch kw.Name {
		case "sep", "end":
			var s string
			switch v := kw.Value.(type) {
			case noneType:
				continue
			case Str:
				s = string(v)
			default:
				return nil, typeErrorf("%s must be None or a string, not %s", kw.Name, typeName(v))
			}
			if kw.Name == "sep" {
				sep = s
			} else {
				end = s
			}
		case "flush":
		case "file":
			if kw.Value != None {
				return nil, typeErrorf("print() argument 'file' is not supported")
			}
		default:
			return nil, typeErrorf("print() got an unexpected keyword argument '%s'", kw.Name)
		}
	}
	var b strings.Builder
	for i, a := range args {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(strValue(a))
	}
	b.WriteString(end)
	if err := in.charge(int64(b.Len() / 64)); err != nil {
		return nil, err
	}
	return None, in.write(b.String())
}

func lenOf(v Value) (int, bool) {
	switch v := v.(type) {
	case Str:
		return utf8.RuneCountInString(string(v)), true
	case *List:
		return len(v.Items), true
	case Tuple:
		return len(v), true
	case *Dict:
		return v.Len(), true
	case *Set:
		return v.Len(), true
	case *Range:
		return int(v.Len()), true
	case *DictView:
		return v.Dict.Len(), true
	case *NDArray:
		return len(v.Data), true
	}
	return 0, false
}

func builtinLen(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("len", args, kwargs, []string{"obj"}, 1)
	if err != nil {
		return nil, err
	}
	if r, ok := a[0].(*Range); ok {
		n, err := r.CheckedLen()
		if err != nil {
			return nil, err
		}
		return Int(n), nil
	}
	n, ok := lenOf(a[0])
	if !ok {
		return nil, typeErrorf("object of type '%s' has no len()", typeName(a[0]))
	}
	return Int(n), nil
}

func builtinSum(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("sum", args, kwargs, []string{"iterable", "start"}, 1)
	if err != nil {
		return nil, err
	}
	var total Value = Int(0)
	if a[1] != nil {
		total = a[1]
	}
	switch total.(type) {
	case Str:
		return nil, typeErrorf("sum() can't sum strings [use ''.join(seq) instead]")
	}
	next, err := in.iterate(a[0])
	if err != nil {
		return nil, err
	}
	var acc neumaier
	floating := false
	for {
		if err := in.tick(); err != nil {
			return nil, err
		}
		v, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if floating {
			if f, isNum := toFloat(v); isNum {
				acc.add(f)
				continue
			}
			total, floating = Float(acc.total()), false
		} else if f, isFloat := v.(Float); isFloat && isNumber(total) {
			t, _ := toFloat(total)
			acc = neumaier{}
			acc.add(t)
			acc.add(float64(f))
			floating = true
			continue
		}
		if total, err = in.binop("+", total, v); err != nil {
			return nil, err
		}
	}
	if floating {
		return Float(acc.total()), nil
	}
	return total, nil
}

// neumaier is a compensated float accumulator.
type neumaier struct{ sum, c float64 }

func (n *neumaier) add(f float64) {
	t := n.sum + f
	if math.Abs(n.sum) >= math.Abs(f) {
		n.c += (n.sum - t) + f
	} else {
		n.c += (f - t) + n.sum
	}
	n.sum = t
}

func (n *neumaier) total() float64 { return n.sum + n.c }

func (in *Interp) minmax(name string, args []Value, kwargs []KV) (Value, error) {
	var key, def Value
	hasDefault := false
	for _, kw := range kwargs {
		switch kw.Name {
		case "key":
			key = kw.Value
		case "default":
			def, hasDefault = kw.Value, true
		default:
			return nil, typeErrorf("%s() got an unexpected keyword argument '%s'", name, kw.Name)
		}
	}
	var items []Value
	switch len(args) {
	case 0:
		return nil, typeErrorf("%s expected at least 1 argument, got 0", name)
	case 1:
		var err error
		if items, err = in.toSlice(args[0]); err != nil {
			return nil, err
		}
	default:
		if hasDefault {
			return nil, typeErrorf("Cannot specify a default for %s() with multiple positional arguments", name)
		}
		items = args
	}
	if len(items) == 0 {
		if hasDefault {
			return def, nil
		}
		return nil, newExc(ValueError, name+"() iterable argument is empty")
	}
	op := "<"
	if name == "max" {
		op = ">"
	}
	best := items[0]
	bestKey := best
	if key != nil && key != None {
		var err error
		if bestKey, err = in.call(key, []Value{best}, nil); err != nil {
			return nil, err
		}
	}
	for _, v := range items[1:] {
		k := v
		if key != nil && key != None {
			var err error
			if k, err = in.call(key, []Value{v}, nil); err != nil {
				return nil, err
			}
		}
		better, err := in.compare(op, k, bestKey)
		if err != nil {
			return nil, err
		}
		if better == Bool(true) {
			best, bestKey = v, k
		}
	}
	return best, nil
}

func builtinAbs(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("abs", args, kwargs, []string{"x"}, 1)
	if err != nil {
		return nil, err
	}
	switch v := a[0].(type) {
	case Int, Bool:
		n, _ := toInt(v)
		if n == math.MinInt64 {
			return nil, errIntOverflow()
		}
		return Int(absInt(n)), nil
	case Float:
		return Float(math.Abs(float64(v))), nil
	case *NDArray:
		return in.arrayUnary("abs", v)
	}
	return nil, typeErrorf("bad operand type for abs(): '%s'", typeName(a[0]))
}

// sortValues stably sorts items by key, reporting the first comparison
// error.
func (in *Interp) sortValues(items []Value, key Value, reverse bool) error {
	keys := items
	if key != nil && key != None {
		keys = make([]Value, len(items))
		for i, v := range items {
			k, err := in.call(key, []Value{v}, nil)
			if err != nil {
				return err
			}
			keys[i] = k
		}
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	var cmpErr error
	slices.SortStableFunc(idx, func(i, j int) int {
		if cmpErr != nil {
			return 0
		}
		if err := in.tick(); err != nil {
			cmpErr = err
			return 0
		}
		a, b := keys[i], keys[j]
		if reverse {
			a, b = b, a
		}
		lt, err := in.compare("<", a, b)
		if err != nil {
			cmpErr = err
			return 0
		}
		if lt == Bool(true) {
			return -1
		}
		gt, err := in.compare("<", b, a)
		if err != nil {
			cmpErr = err
			return 0
		}
		if gt == Bool(true) {
			return 1
		}
		return 0
	})
	if cmpErr != nil {
		return cmpErr
	}
	sorted := make([]Value, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
	return nil
}

func sortOptions(fname string, kwargs []KV) (key Value, reverse bool, err error) {
	for _, kw := range kwargs {
		switch kw.Name {
		case "key":
			key = kw.Value
		case "reverse":
			switch v := kw.Value.(type) {
			case Bool:
				reverse = bool(v)
			case Int:
				reverse = v != 0
			default:
				return nil, false, typeErrorf("'%s' object cannot be interpreted as an integer", typeName(v))
			}
		default:
			return nil, false, typeErrorf("%s() got an unexpected keyword argument '%s'", fname, kw.Name)
		}
	}
	return key, reverse, nil
}

func builtinSorted(in *Interp, args []Value, kwargs []KV) (Value, error) {
	if len(args) != 1 {
		return nil, typeErrorf("sorted expected 1 argument, got %d", len(args))
	}
	key, reverse, err := sortOptions("sorted", kwargs)
	if err != nil {
		return nil, err
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	if err := in.sortValues(items, key, reverse); err != nil {
		return nil, err
	}
	return NewList(items), nil
}

func builtinEnumerate(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("enumerate", args, kwargs, []string{"iterable", "start"}, 1)
	if err != nil {
		return nil, err
	}
	var i int64
	if a[1] != nil {
		if i, err = indexArg(a[1]); err != nil {
			return nil, err
		}
	}
	next, err := in.iterate(a[0])
	if err != nil {
		return nil, err
	}
	return &Iterator{Kind: "enumerate", next: func() (Value, bool, error) {
		v, ok, err := next()
		if err != nil || !ok {
			return nil, ok, err
		}
		i++
		return Tuple{Int(i - 1), v}, true, nil
	}}, nil
}

func builtinZip(in *Interp, args []Value, kwargs []KV) (Value, error) {
	strict := false
	for _, kw := range kwargs {
		if kw.Name != "strict" {
			return nil, typeErrorf("zip() got an unexpected keyword argument '%s'", kw.Name)
		}
		t, err := in.truthy(kw.Value)
		if err != nil {
			return nil, err
		}
		strict = t
	}
	nexts := make([]nextFunc, len(args))
	for i, a := range args {
		n, err := in.iterate(a)
		if err != nil {
			return nil, typeErrorf("zip argument #%d must support iteration", i+1)
		}
		nexts[i] = n
	}
	done := len(nexts) == 0
	return &Iterator{Kind: "zip", next: func() (Value, bool, error) {
		if done {
			return nil, false, nil
		}
		row := make(Tuple, len(nexts))
		for i, n := range nexts {
			v, ok, err := n()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				done = true
				if strict && i > 0 {
					return nil, false, newExc(ValueError, "zip() argument "+itoa(i+1)+" is shorter than argument 1")
				}
				if strict && i == 0 {
					for j := 1; j < len(nexts); j++ {
						if _, more, _ := nexts[j](); more {
							return nil, false, newExc(ValueError, "zip() argument "+itoa(j+1)+" is longer than argument 1")
						}
					}
				}
				return nil, false, nil
			}
			row[i] = v
		}
		return row, true, nil
	}}, nil
}

func builtinRound(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("round", args, kwargs, []string{"number", "ndigits"}, 1)
	if err != nil {
		return nil, err
	}
	nd := a[1]
	switch v := a[0].(type) {
	case Int, Bool:
		n, _ := toInt(v)
		if nd == nil || nd == None {
			return Int(n), nil
		}
		d, err := indexArg(nd)
		if err != nil {
			return nil, err
		}
		if d >= 0 {
			return Int(n), nil
		}
		if d < -18 {
			return Int(0), nil
		}
		p := int64(math.Pow10(int(-d)))
		q := floorDiv(n, p)
		r := n - q*p
		if 2*r > p || (2*r == p && q%2 != 0) {
			q++
		}
		return mulInt(q, p)
	case Float:
		f := float64(v)
		if nd == nil || nd == None {
			return floatToInt(math.RoundToEven(f))
		}
		d, err := indexArg(nd)
		if err != nil {
			return nil, err
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return v, nil
		}
		if d >= 0 {
			if d > 323 {
				return v, nil
			}
			r, _ := strconv.ParseFloat(strconv.FormatFloat(f, 'f', int(d), 64), 64)
			return Float(r), nil
		}
		if d < -308 {
			return Float(math.Copysign(0, f)), nil
		}
		p := math.Pow10(int(-d))
		return Float(math.RoundToEven(f/p) * p), nil
	case *NDArray:
		return in.arrayRound(v, nd)
	}
	return nil, typeErrorf("type %s doesn't define __round__ method", typeName(a[0]))
}

func (in *Interp) anyAll(name string, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs(name, args, kwargs, []string{"iterable"}, 1)
	if err != nil {
		return nil, err
	}
	next, err := in.iterate(a[0])
	if err != nil {
		return nil, err
	}
	want := name == "any"
	for {
		if err := in.tick(); err != nil {
			return nil, err
		}
		v, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return Bool(!want), nil
		}
		t, err := in.truthy(v)
		if err != nil {
			return nil, err
		}
		if t == want {
			return Bool(want), nil
		}
	}
}

func builtinReversed(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("reversed", args, kwargs, []string{"sequence"}, 1)
	if err != nil {
		return nil, err
	}
	var items []Value
	switch v := a[0].(type) {
	case *List, Tuple, Str, *Range, *NDArray, *Dict, *DictView:
		if items, err = in.toSlice(v); err != nil {
			return nil, err
		}
	default:
		return nil, typeErrorf("'%s' object is not reversible", typeName(v))
	}
	slices.Reverse(items)
	return &Iterator{Kind: "reversed", next: sliceIter(items)}, nil
}

func builtinMap(in *Interp, args []Value, kwargs []KV) (Value, error) {
	if err := noKwargs("map", kwargs); err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, typeErrorf("map() must have at least two arguments.")
	}
	fn := args[0]
	z, err := builtinZip(in, args[1:], nil)
	if err != nil {
		return nil, err
	}
	rows := z.(*Iterator).next
	return &Iterator{Kind: "map", next: func() (Value, bool, error) {
		row, ok, err := rows()
		if err != nil || !ok {
			return nil, ok, err
		}
		v, err := in.call(fn, row.(Tuple), nil)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}}, nil
}

func builtinFilter(in *Interp, args []Value, kwargs []KV) (Value, error) {
	if err := noKwargs("filter", kwargs); err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, typeErrorf("filter expected 2 arguments, got %d", len(args))
	}
	fn := args[0]
	next, err := in.iterate(args[1])
	if err != nil {
		return nil, err
	}
	return &Iterator{Kind: "filter", next: func() (Value, bool, error) {
		for {
			if err := in.tick(); err != nil {
				return nil, false, err
			}
			v, ok, err := next()
			if err != nil || !ok {
				return nil, ok, err
			}
			test := v
			if fn != None {
				if test, err = in.call(fn, []Value{v}, nil); err != nil {
					return nil, false, err
				}
			}
			t, err := in.truthy(test)
			if err != nil {
				return nil, false, err
			}
			if t {
				return v, true, nil
			}
		}
	}}, nil
}

func isInstance(v, cls Value) (bool, error) {
	switch c := cls.(type) {
	case *Class:
		return c.Match(v), nil
	case *ExcClass:
		if e, ok := v.(*Exception); ok {
			return e.Class.IsSubclass(c), nil
		}
		return false, nil
	case Tuple:
		for _, item := range c {
			ok, err := isInstance(v, item)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	return false, typeErrorf("isinstance() arg 2 must be a type, a tuple of types, or a union")
}

func builtinIsinstance(in *Interp, args []Value, kwargs []KV) (Value, error) {
	if err := noKwargs("isinstance", kwargs); err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, typeErrorf("isinstance expected 2 arguments, got %d", len(args))
	}
	ok, err := isInstance(args[0], args[1])
	return Bool(ok), err
}

func builtinDivmod(in *Interp, args []Value, kwargs []KV) (Value, error) {
	if err := noKwargs("divmod", kwargs); err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, typeErrorf("divmod expected 2 arguments, got %d", len(args))
	}
	if !isNumber(args[0]) || !isNumber(args[1]) {
		return nil, binopTypeError("divmod()", args[0], args[1])
	}
	q, err := in.binop("//", args[0], args[1])
	if err != nil {
		return nil, err
	}
	r, err := in.binop("%", args[0], args[1])
	if err != nil {
		return nil, err
	}
	return Tuple{q, r}, nil
}

func builtinPow(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("pow", args, kwargs, []string{"base", "exp", "mod"}, 2)
	if err != nil {
		return nil, err
	}
	if a[2] == nil || a[2] == None {
		return in.binop("**", a[0], a[1])
	}
	base, ok1 := toInt(a[0])
	exp, ok2 := toInt(a[1])
	mod, ok3 := toInt(a[2])
	if !ok1 || !ok2 || !ok3 {
		return nil, typeErrorf("pow() 3rd argument not allowed unless all arguments are integers")
	}
	if mod == 0 {
		return nil, newExc(ValueError, "pow() 3rd argument cannot be 0")
	}
	m := new(big.Int).Abs(big.NewInt(mod))
	b := new(big.Int).Mod(big.NewInt(base), m)
	e := big.NewInt(exp)
	if exp < 0 {
		if b = new(big.Int).ModInverse(b, m); b == nil {
			return nil, newExc(ValueError, "base is not invertible for the given modulus")
		}
		e.Neg(e)
	}
	r := new(big.Int).Exp(b, e, m)
	if mod < 0 && r.Sign() != 0 {
		r.Add(r, big.NewInt(mod))
	}
	return Int(r.Int64()), nil
}

func builtinRepr(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("repr", args, kwargs, []string{"obj"}, 1)
	if err != nil {
		return nil, err
	}
	return Str(reprValue(a[0])), nil
}

func builtinChr(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("chr", args, kwargs, []string{"i"}, 1)
	if err != nil {
		return nil, err
	}
	n, err := indexArg(a[0])
	if err != nil {
		return nil, err
	}
	if n < 0 || n > 0x10ffff {
		return nil, newExc(ValueError, "chr() arg not in range(0x110000)")
	}
	return Str(string(rune(n))), nil
}

func builtinOrd(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("ord", args, kwargs, []string{"c"}, 1)
	if err != nil {
		return nil, err
	}
	s, ok := a[0].(Str)
	if !ok {
		return nil, typeErrorf("ord() expected string of length 1, but %s found", typeName(a[0]))
	}
	if n := utf8.RuneCountInString(string(s)); n != 1 {
		return nil, typeErrorf("ord() expected a character, but string of length %d found", n)
	}
	r, _ := utf8.DecodeRuneInString(string(s))
	return Int(r), nil
}

func callInt(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("int", args, kwargs, []string{"x", "base"}, 0)
	if err != nil {
		return nil, err
	}
	if a[0] == nil {
		return Int(0), nil
	}
	if a[1] != nil {
		s, ok := a[0].(Str)
		if !ok {
			return nil, typeErrorf("int() can't convert non-string with explicit base")
		}
		base, err := indexArg(a[1])
		if err != nil {
			return nil, err
		}
		if base != 0 && (base < 2 || base > 36) {
			return nil, newExc(ValueError, "int() base must be >= 2 and <= 36, or 0")
		}
		return parseInt(string(s), int(base))
	}
	switch v := a[0].(type) {
	case Int:
		return v, nil
	case Bool:
		n, _ := toInt(v)
		return Int(n), nil
	case Float:
		return floatToInt(float64(v))
	case Str:
		return parseInt(string(v), 10)
	}
	return nil, typeErrorf("int() argument must be a string, a bytes-like object or a real number, not '%s'", typeName(a[0]))
}

func parseInt(s string, base int) (Value, error) {
	t := strings.TrimSpace(s)
	invalid := newExc(ValueError, "invalid literal for int() with base "+itoa(base)+": "+reprString(s))
	if t == "" || strings.HasPrefix(t, "_") || strings.HasSuffix(t, "_") || strings.Contains(t, "__") {
		return nil, invalid
	}
	sign := ""
	if t[0] == '+' || t[0] == '-' {
		sign, t = t[:1], t[1:]
	}
	lower := strings.ToLower(t)
	prefix := map[int]string{16: "0x", 8: "0o", 2: "0b"}[base]
	if prefix != "" && strings.HasPrefix(lower, prefix) {
		t = t[2:]
	}
	if base == 0 {
		n, err := strconv.ParseInt(sign+t, 0, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return nil, newExc(OverflowError, "int too large to convert")
			}
			return nil, invalid
		}
		return Int(n), nil
	}
	t = strings.TrimPrefix(t, "_")
	n, err := strconv.ParseInt(sign+strings.ReplaceAll(t, "_", ""), base, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return nil, newExc(OverflowError, "int too large to convert")
		}
		return nil, invalid
	}
	return Int(n), nil
}

func callFloat(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("float", args, kwargs, []string{"x"}, 0)
	if err != nil {
		return nil, err
	}
	if a[0] == nil {
		return Float(0), nil
	}
	switch v := a[0].(type) {
	case Float:
		return v, nil
	case Int, Bool:
		f, _ := toFloat(v)
		return Float(f), nil
	case Str:
		return parseFloat(string(v))
	}
	return nil, typeErrorf("float() argument must be a string or a real number, not '%s'", typeName(a[0]))
}

func parseFloat(s string) (Value, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	body := strings.TrimLeft(t, "+-")
	switch body {
	case "inf", "infinity":
		if strings.HasPrefix(t, "-") {
			return Float(math.Inf(-1)), nil
		}
		return Float(math.Inf(1)), nil
	case "nan":
		return Float(math.NaN()), nil
	}
	if strings.HasPrefix(body, "0x") || strings.Contains(t, "__") || strings.HasPrefix(body, "_") || strings.HasSuffix(t, "_") {
		return nil, newExc(ValueError, "could not convert string to float: "+reprString(s))
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(t, "_", ""), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, newExc(ValueError, "could not convert string to float: "+reprString(s))
	}
	return Float(f), nil
}

func callStr(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("str", args, kwargs, []string{"object"}, 0)
	if err != nil {
		return nil, err
	}
	if a[0] == nil {
		return Str(""), nil
	}
	return Str(strValue(a[0])), nil
}

func callBool(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("bool", args, kwargs, []string{"x"}, 0)
	if err != nil {
		return nil, err
	}
	if a[0] == nil {
		return Bool(false), nil
	}
	t, err := in.truthy(a[0])
	return Bool(t), err
}

func callList(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("list", args, kwargs, []string{"iterable"}, 0)
	if err != nil {
		return nil, err
	}
	if a[0] == nil {
		return NewList([]Value{}), nil
	}
	items, err := in.toSlice(a[0])
	if err != nil {
		return nil, err
	}
	return NewList(items), nil
}

func callTuple(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("tuple", args, kwargs, []string{"iterable"}, 0)
	if err != nil {
		return nil, err
	}
	if a[0] == nil {
		return Tuple{}, nil
	}
	if t, ok := a[0].(Tuple); ok {
		return t, nil
	}
	items, err := in.toSlice(a[0])
	if err != nil {
		return nil, err
	}
	return Tuple(items), nil
}

func callSet(in *Interp, args []Value, kwargs []KV) (Value, error) {
	a, err := bindArgs("set", args, kwargs, []string{"iterable"}, 0)
	if err != nil {
		return nil, err
	}
	if a[0] == nil {
		return NewSet(), nil
	}
	return in.newSetFrom(a[0])
}

func callDict(in *Interp, args []Value, kwargs []KV) (Value, error) {
	if len(args) > 1 {
		return nil, typeErrorf("dict expected at most 1 argument, got %d", len(args))
	}
	d := NewDict()
	if len(args) == 1 {
		var err error
		if d, err = in.newDictFrom(args[0]); err != nil {
			return nil, err
		}
	}
	for _, kw := range kwargs {
		if err := d.Set(Str(kw.Name), kw.Value); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func callRange(in *Interp, args []Value, kwargs []KV) (Value, error) {
	if err := noKwargs("range", kwargs); err != nil {
		return nil, err
	}
	ints := make([]int64, len(args))
	for i, a := range args {
		n, err := indexArg(a)
		if err != nil {
			return nil, err
		}
		ints[i] = n
	}
	switch len(ints) {
	case 1:
		return &Range{Stop: ints[0], Step: 1}, nil
	case 2:
		return &Range{Start: ints[0], Stop: ints[1], Step: 1}, nil
	case 3:
		if ints[2] == 0 {
			return nil, newExc(ValueError, "range() arg 3 must not be zero")
		}
		return &Range{Start: ints[0], Stop: ints[1], Step: ints[2]}, nil
	case 0:
		return nil, typeErrorf("range expected at least 1 argument, got 0")
	}
	return nil, typeErrorf("range expected at most 3 arguments, got %d", len(ints))
}
