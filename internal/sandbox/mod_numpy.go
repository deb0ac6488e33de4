package sandbox

import (
	"math"
	"math/rand/v2"
	"slices"
)

// cmpNaNLast orders floats ascending with NaN after everything else.
func cmpNaNLast(a, b float64) int {
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return 1
	case math.IsNaN(b):
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func sortFloats(xs []float64) { slices.SortStableFunc(xs, cmpNaNLast) }

// dtypeOf resolves a dtype argument: a name such as "float64" or one of
// the int, float and bool types.
func dtypeOf(v Value) (string, error) {
	switch d := v.(type) {
	case nil, noneType:
		return dtypeFloat, nil
	case Str:
		switch d {
		case "float", "float64", "float32", "f8", "d":
			return dtypeFloat, nil
		case "int", "int64", "int32", "i8":
			return dtypeInt, nil
		case "bool", "bool_", "?":
			return dtypeBool, nil
		}
		return "", typeErrorf("data type %s not understood", reprValue(d))
	case *Class:
		switch d {
		case floatClass, npFloat64:
			return dtypeFloat, nil
		case intClass, npInt64:
			return dtypeInt, nil
		case boolClass, npBool:
			return dtypeBool, nil
		}
	}
	return "", typeErrorf("Cannot interpret '%s' as a data type", reprValue(v))
}

func dtypeClass(name, dtype string, match func(Value) bool) *Class {
	return &Class{
		Name: name,
		Call: func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"x"}, 0)
			if err != nil {
				return nil, err
			}
			if p[0] == nil {
				return scalarOf(0, dtype), nil
			}
			if a, ok := p[0].(*NDArray); ok {
				return a.astype(dtype), nil
			}
			f, err := realArg(p[0])
			if err != nil {
				return nil, err
			}
			if dtype == dtypeInt && isInfOrNaN(f) {
				_, err := floatToInt(f)
				return nil, err
			}
			return scalarOf(cast(f, dtype), dtype), nil
		},
		Match: match,
	}
}

var (
	npFloat64 = dtypeClass("float64", dtypeFloat, func(v Value) bool { _, ok := v.(Float); return ok })
	npInt64   = dtypeClass("int64", dtypeInt, func(v Value) bool { _, ok := v.(Int); return ok })
	npBool    = dtypeClass("bool", dtypeBool, func(v Value) bool { _, ok := v.(Bool); return ok })
)

// arrayArg converts the first argument of a numpy function to an array.
func (in *Interp) arrayArg(v Value) (*NDArray, error) {
	if a, ok, err := in.arrayLike(v); ok || err != nil {
		return a, err
	}
	return in.newArrayFrom(v, "")
}

func emptyReduction(name string) error {
	return newExc(ValueError, "zero-size array to reduction operation "+name+" which has no identity")
}

// arrayReduction returns the numpy function shared by np.<name>(a, ...)
// and the array method a.<name>(...).
func arrayReduction(name string) (goFunc, bool) {
	simple := func(fn func(a *NDArray) (Value, error)) goFunc {
		return func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"a", "axis"}, 1)
			if err != nil {
				return nil, err
			}
			if p[1] != nil && p[1] != None {
				if ax, ok := toInt(p[1]); !ok || (ax != 0 && ax != -1) {
					return nil, newExc(ValueError, "axis "+reprValue(p[1])+" is out of bounds for array of dimension 1")
				}
			}
			a, err := in.arrayArg(p[0])
			if err != nil {
				return nil, err
			}
			if err := in.charge(int64(len(a.Data) / 16)); err != nil {
				return nil, err
			}
			return fn(a)
		}
	}
	switch name {
	case "sum":
		return simple(func(a *NDArray) (Value, error) {
			var acc neumaier
			for _, f := range a.Data {
				acc.add(f)
			}
			if a.Dtype == dtypeFloat {
				return Float(acc.total()), nil
			}
			return Int(int64(acc.total())), nil
		}), true
	case "prod":
		return simple(func(a *NDArray) (Value, error) {
			p := 1.0
			for _, f := range a.Data {
				p *= f
			}
			if a.Dtype == dtypeFloat {
				return Float(p), nil
			}
			return Int(int64(p)), nil
		}), true
	case "mean":
		return simple(func(a *NDArray) (Value, error) { return Float(floatMean(a.Data)), nil }), true
	case "median":
		return simple(func(a *NDArray) (Value, error) { return Float(percentile(a.Data, 50)), nil }), true
	case "min", "amin", "max", "amax":
		isMax := name == "max" || name == "amax"
		return simple(func(a *NDArray) (Value, error) {
			if len(a.Data) == 0 {
				if isMax {
					return nil, emptyReduction("maximum")
				}
				return nil, emptyReduction("minimum")
			}
			best := a.Data[0]
			for _, f := range a.Data[1:] {
				if math.IsNaN(best) {
					break
				}
				if math.IsNaN(f) || (isMax && f > best) || (!isMax && f < best) {
					best = f
				}
			}
			return scalarOf(best, a.Dtype), nil
		}), true
	case "argmin", "argmax":
		isMax := name == "argmax"
		return simple(func(a *NDArray) (Value, error) {
			if len(a.Data) == 0 {
				return nil, newExc(ValueError, "attempt to get "+name+" of an empty sequence")
			}
			best := 0
			for i, f := range a.Data {
				if math.IsNaN(a.Data[best]) {
					break
				}
				if math.IsNaN(f) || (isMax && f > a.Data[best]) || (!isMax && f < a.Data[best]) {
					best = i
				}
			}
			return Int(best), nil
		}), true
	case "std", "var":
		return func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"a", "axis", "dtype", "out", "ddof"}, 1)
			if err != nil {
				return nil, err
			}
			a, err := in.arrayArg(p[0])
			if err != nil {
				return nil, err
			}
			ddof := int64(0)
			if p[4] != nil {
				if ddof, err = indexArg(p[4]); err != nil {
					return nil, err
				}
			}
			v := floatVar(a.Data, int(ddof))
			if name == "std" {
				v = math.Sqrt(v)
			}
			return Float(v), nil
		}, true
	case "cumsum", "cumprod":
		return simple(func(a *NDArray) (Value, error) {
			dtype := a.Dtype
			if dtype == dtypeBool {
				dtype = dtypeInt
			}
			out := make([]float64, len(a.Data))
			acc := 0.0
			if name == "cumprod" {
				acc = 1
			}
			for i, f := range a.Data {
				if name == "cumprod" {
					acc *= f
				} else {
					acc += f
				}
				out[i] = acc
			}
			return newArray(out, dtype), nil
		}), true
	case "any", "all":
		return simple(func(a *NDArray) (Value, error) {
			for _, f := range a.Data {
				if (f != 0) == (name == "any") {
					return Bool(name == "any"), nil
				}
			}
			return Bool(name == "all"), nil
		}), true
	case "round", "around":
		return func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"a", "decimals"}, 1)
			if err != nil {
				return nil, err
			}
			if _, ok := p[0].(*NDArray); !ok {
				if f, ok := toFloat(p[0]); ok {
					r, err := in.arrayRound(newArray([]float64{f}, scalarDtype(p[0])), p[1])
					if err != nil {
						return nil, err
					}
					return r.(*NDArray).item(0), nil
				}
			}
			a, err := in.arrayArg(p[0])
			if err != nil {
				return nil, err
			}
			return in.arrayRound(a, p[1])
		}, true
	case "clip":
		return func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"a", "a_min", "a_max"}, 3)
			if err != nil {
				return nil, err
			}
			a, err := in.arrayArg(p[0])
			if err != nil {
				return nil, err
			}
			lo, hi := math.Inf(-1), math.Inf(1)
			dtype := a.Dtype
			if p[1] != None {
				if lo, err = realArg(p[1]); err != nil {
					return nil, err
				}
				dtype = widen(dtype, scalarDtype(p[1]))
			}
			if p[2] != None {
				if hi, err = realArg(p[2]); err != nil {
					return nil, err
				}
				dtype = widen(dtype, scalarDtype(p[2]))
			}
			out := make([]float64, len(a.Data))
			for i, f := range a.Data {
				out[i] = math.Min(math.Max(f, lo), hi)
			}
			return newArray(out, dtype), nil
		}, true
	}
	return nil, false
}

func floatMean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return meanOf(xs)
}

func floatVar(xs []float64, ddof int) float64 {
	n := len(xs) - ddof
	if n <= 0 {
		return math.NaN()
	}
	m := meanOf(xs)
	var acc neumaier
	for _, f := range xs {
		acc.add((f - m) * (f - m))
	}
	return acc.total() / float64(n)
}

// percentile uses linear interpolation between closest ranks.
func percentile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := slices.Clone(xs)
	sortFloats(s)
	pos := q / 100 * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, len(s)-1)
	frac := pos - float64(lo)
	return s[lo] + (s[hi]-s[lo])*frac
}

func ufunc(name string, f func(float64) float64) *Builtin {
	return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs(name, args, kwargs, []string{"x"}, 1)
		if err != nil {
			return nil, err
		}
		if x, ok := toFloat(p[0]); ok {
			return Float(f(x)), nil
		}
		a, err := in.arrayArg(p[0])
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(a.Data))
		for i, x := range a.Data {
			out[i] = f(x)
		}
		return newArray(out, dtypeFloat), nil
	})
}

// predicateUfunc returns bool results for scalars and arrays alike.
func predicateUfunc(name string, f func(float64) bool) *Builtin {
	return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs(name, args, kwargs, []string{"x"}, 1)
		if err != nil {
			return nil, err
		}
		if x, ok := toFloat(p[0]); ok {
			return Bool(f(x)), nil
		}
		a, err := in.arrayArg(p[0])
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(a.Data))
		for i, x := range a.Data {
			out[i] = boolFloat(f(x))
		}
		return newArray(out, dtypeBool), nil
	})
}

// keepDtype applies f elementwise without changing the dtype.
func keepDtype(name string, f func(float64) float64) *Builtin {
	return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs(name, args, kwargs, []string{"x"}, 1)
		if err != nil {
			return nil, err
		}
		if x, ok := toFloat(p[0]); ok {
			dtype := scalarDtype(p[0])
			if dtype == dtypeBool {
				dtype = dtypeInt
			}
			return scalarOf(cast(f(x), dtype), dtype), nil
		}
		a, err := in.arrayArg(p[0])
		if err != nil {
			return nil, err
		}
		dtype := a.Dtype
		if dtype == dtypeBool {
			dtype = dtypeInt
		}
		out := make([]float64, len(a.Data))
		for i, x := range a.Data {
			out[i] = cast(f(x), dtype)
		}
		return newArray(out, dtype), nil
	})
}

func npDot(in *Interp, args []Value, kwargs []KV) (Value, error) {
	p, err := bindArgs("dot", args, kwargs, []string{"a", "b"}, 2)
	if err != nil {
		return nil, err
	}
	_, aArr := p[0].(*NDArray)
	_, bArr := p[1].(*NDArray)
	if !aArr && !bArr && isNumber(p[0]) && isNumber(p[1]) {
		return in.binop("*", p[0], p[1])
	}
	a, err := in.arrayArg(p[0])
	if err != nil {
		return nil, err
	}
	b, err := in.arrayArg(p[1])
	if err != nil {
		return nil, err
	}
	if len(a.Data) == 1 || len(b.Data) == 1 {
		return in.arrayBinop("*", a, b)
	}
	if len(a.Data) != len(b.Data) {
		return nil, newExc(ValueError, "shapes ("+itoa(len(a.Data))+",) and ("+itoa(len(b.Data))+",) not aligned: "+itoa(len(a.Data))+" (dim 0) != "+itoa(len(b.Data))+" (dim 0)")
	}
	var acc neumaier
	for i := range a.Data {
		acc.add(a.Data[i] * b.Data[i])
	}
	return scalarOf(acc.total(), widen(widen(a.Dtype, b.Dtype), dtypeInt)), nil
}

// sizeArg reads a numpy size argument: None for a scalar, an int, or a
// one-element tuple.
func (in *Interp) sizeArg(v Value) (n int, scalar bool, err error) {
	if v == nil || v == None {
		return 1, true, nil
	}
	if t, ok := v.(Tuple); ok {
		if len(t) != 1 {
			return 0, false, newExc(ValueError, "only 1-dimensional arrays are supported")
		}
		v = t[0]
	}
	k, err := indexArg(v)
	if err != nil {
		return 0, false, err
	}
	if k < 0 {
		return 0, false, newExc(ValueError, "negative dimensions are not allowed")
	}
	if k > int64(in.limits.MaxItems) {
		return 0, false, resourceError("container exceeded %d items", in.limits.MaxItems)
	}
	return int(k), false, in.checkItems(int(k))
}

// filled builds np.zeros, np.ones and np.empty.
func filled(name string, value float64) *Builtin {
	return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs(name, args, kwargs, []string{"shape", "dtype"}, 1)
		if err != nil {
			return nil, err
		}
		n, _, err := in.sizeArg(p[0])
		if err != nil {
			return nil, err
		}
		dtype, err := dtypeOf(p[1])
		if err != nil {
			return nil, err
		}
		return newArray(fill(n, cast(value, dtype)), dtype), nil
	})
}

func newNumpyModule(in *Interp) *Module {
	m := newModule("numpy")
	a := m.Attrs
	a["pi"] = Float(math.Pi)
	a["e"] = Float(math.E)
	a["nan"] = Float(math.NaN())
	a["inf"] = Float(math.Inf(1))
	a["float64"] = npFloat64
	a["int64"] = npInt64
	a["bool_"] = npBool
	a["ndarray"] = &Class{Name: "ndarray", Match: func(v Value) bool { _, ok := v.(*NDArray); return ok }, Call: func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		return nil, typeErrorf("use numpy.array() to create arrays")
	}}

	array := builtin("array", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("array", args, kwargs, []string{"object", "dtype"}, 1)
		if err != nil {
			return nil, err
		}
		dtype := ""
		if p[1] != nil && p[1] != None {
			if dtype, err = dtypeOf(p[1]); err != nil {
				return nil, err
			}
		}
		return in.newArrayFrom(p[0], dtype)
	})
	a["array"] = array
	a["asarray"] = array
	a["zeros"] = filled("zeros", 0)
	a["ones"] = filled("ones", 1)
	a["empty"] = filled("empty", 0)
	a["full"] = builtin("full", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("full", args, kwargs, []string{"shape", "fill_value", "dtype"}, 2)
		if err != nil {
			return nil, err
		}
		n, _, err := in.sizeArg(p[0])
		if err != nil {
			return nil, err
		}
		f, err := realArg(p[1])
		if err != nil {
			return nil, err
		}
		dtype := scalarDtype(p[1])
		if p[2] != nil && p[2] != None {
			if dtype, err = dtypeOf(p[2]); err != nil {
				return nil, err
			}
		}
		return newArray(fill(n, cast(f, dtype)), dtype), nil
	})
	like := func(name string, value float64) *Builtin {
		return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"a"}, 1)
			if err != nil {
				return nil, err
			}
			src, err := in.arrayArg(p[0])
			if err != nil {
				return nil, err
			}
			return newArray(fill(len(src.Data), cast(value, src.Dtype)), src.Dtype), nil
		})
	}
	a["zeros_like"] = like("zeros_like", 0)
	a["ones_like"] = like("ones_like", 1)
	a["arange"] = builtin("arange", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("arange", args, kwargs, []string{"start", "stop", "step", "dtype"}, 1)
		if err != nil {
			return nil, err
		}
		if p[1] == nil || p[1] == None {
			p[0], p[1] = Int(0), p[0]
		}
		if p[2] == nil {
			p[2] = Int(1)
		}
		dtype := dtypeInt
		var fs [3]float64
		for i := range fs {
			if fs[i], err = realArg(p[i]); err != nil {
				return nil, err
			}
			if _, ok := p[i].(Float); ok {
				dtype = dtypeFloat
			}
		}
		if p[3] != nil && p[3] != None {
			if dtype, err = dtypeOf(p[3]); err != nil {
				return nil, err
			}
		}
		start, stop, step := fs[0], fs[1], fs[2]
		if step == 0 {
			return nil, newExc(ZeroDivisionError, "division by zero")
		}
		n := math.Ceil((stop - start) / step)
		if n < 0 || math.IsNaN(n) {
			n = 0
		}
		if n > float64(in.limits.MaxItems) {
			return nil, resourceError("container exceeded %d items", in.limits.MaxItems)
		}
		if err := in.checkItems(int(n)); err != nil {
			return nil, err
		}
		out := make([]float64, int(n))
		for i := range out {
			out[i] = cast(start+float64(i)*step, dtype)
		}
		return newArray(out, dtype), nil
	})
	a["linspace"] = builtin("linspace", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("linspace", args, kwargs, []string{"start", "stop", "num", "endpoint"}, 2)
		if err != nil {
			return nil, err
		}
		start, err := realArg(p[0])
		if err != nil {
			return nil, err
		}
		stop, err := realArg(p[1])
		if err != nil {
			return nil, err
		}
		num := int64(50)
		if p[2] != nil {
			if num, err = indexArg(p[2]); err != nil {
				return nil, err
			}
		}
		if num < 0 {
			return nil, newExc(ValueError, "Number of samples, "+itoa(int(num))+", must be non-negative.")
		}
		if num > int64(in.limits.MaxItems) {
			return nil, resourceError("container exceeded %d items", in.limits.MaxItems)
		}
		if err := in.checkItems(int(num)); err != nil {
			return nil, err
		}
		endpoint := true
		if p[3] != nil {
			if endpoint, err = in.truthy(p[3]); err != nil {
				return nil, err
			}
		}
		div := float64(num)
		if endpoint {
			div = float64(num - 1)
		}
		out := make([]float64, num)
		for i := range out {
			if div > 0 {
				out[i] = start + float64(i)*(stop-start)/div
			} else {
				out[i] = start
			}
		}
		if endpoint && num > 1 {
			out[num-1] = stop
		}
		return newArray(out, dtypeFloat), nil
	})

	for _, name := range []string{"sum", "prod", "mean", "median", "min", "amin", "max", "amax",
		"argmin", "argmax", "std", "var", "cumsum", "cumprod", "any", "all", "round", "around", "clip"} {
		fn, _ := arrayReduction(name)
		a[name] = builtin(name, fn)
	}

	a["sqrt"] = ufunc("sqrt", math.Sqrt)
	a["exp"] = ufunc("exp", math.Exp)
	a["log"] = ufunc("log", math.Log)
	a["log2"] = ufunc("log2", math.Log2)
	a["log10"] = ufunc("log10", math.Log10)
	a["log1p"] = ufunc("log1p", math.Log1p)
	a["sin"] = ufunc("sin", math.Sin)
	a["cos"] = ufunc("cos", math.Cos)
	a["tan"] = ufunc("tan", math.Tan)
	a["arcsin"] = ufunc("arcsin", math.Asin)
	a["arccos"] = ufunc("arccos", math.Acos)
	a["arctan"] = ufunc("arctan", math.Atan)
	a["sinh"] = ufunc("sinh", math.Sinh)
	a["cosh"] = ufunc("cosh", math.Cosh)
	a["tanh"] = ufunc("tanh", math.Tanh)
	a["floor"] = ufunc("floor", math.Floor)
	a["ceil"] = ufunc("ceil", math.Ceil)
	a["trunc"] = ufunc("trunc", math.Trunc)
	a["deg2rad"] = ufunc("deg2rad", func(x float64) float64 { return x * math.Pi / 180 })
	a["rad2deg"] = ufunc("rad2deg", func(x float64) float64 { return x * 180 / math.Pi })
	a["isnan"] = predicateUfunc("isnan", math.IsNaN)
	a["isinf"] = predicateUfunc("isinf", func(x float64) bool { return math.IsInf(x, 0) })
	a["isfinite"] = predicateUfunc("isfinite", func(x float64) bool { return !isInfOrNaN(x) })
	a["abs"] = keepDtype("abs", math.Abs)
	a["absolute"] = a["abs"]
	a["square"] = keepDtype("square", func(x float64) float64 { return x * x })
	a["sign"] = keepDtype("sign", func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return x
	})

	pairwise := func(name string, f func(x, y float64) float64) *Builtin {
		return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"x1", "x2"}, 2)
			if err != nil {
				return nil, err
			}
			x, y, err := in.operands(name, p[0], p[1])
			if err != nil {
				return nil, err
			}
			dtype := widen(x.Dtype, y.Dtype)
			out := make([]float64, len(x.Data))
			for i := range out {
				out[i] = cast(f(x.Data[i], y.Data[i]), dtype)
			}
			res := newArray(out, dtype)
			_, xa := p[0].(*NDArray)
			_, ya := p[1].(*NDArray)
			if !xa && !ya && isNumber(p[0]) && isNumber(p[1]) {
				return res.item(0), nil
			}
			return res, nil
		})
	}
	nanAware := func(pick func(x, y float64) float64) func(x, y float64) float64 {
		return func(x, y float64) float64 {
			if math.IsNaN(x) || math.IsNaN(y) {
				return math.NaN()
			}
			return pick(x, y)
		}
	}
	a["maximum"] = pairwise("maximum", nanAware(math.Max))
	a["minimum"] = pairwise("minimum", nanAware(math.Min))
	a["power"] = pairwise("power", math.Pow)
	a["dot"] = builtin("dot", npDot)

	a["where"] = builtin("where", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("where", args, kwargs, []string{"condition", "x", "y"}, 1)
		if err != nil {
			return nil, err
		}
		cond, err := in.arrayArg(p[0])
		if err != nil {
			return nil, err
		}
		if p[1] == nil && p[2] == nil {
			var idx []float64
			for i, f := range cond.Data {
				if f != 0 {
					idx = append(idx, float64(i))
				}
			}
			return Tuple{newArray(idx, dtypeInt)}, nil
		}
		if p[1] == nil || p[2] == nil {
			return nil, newExc(ValueError, "either both or neither of x and y should be given")
		}
		x, y, err := in.operands("where", p[1], p[2])
		if err != nil {
			return nil, err
		}
		if len(x.Data) == 1 && len(cond.Data) != 1 {
			x = newArray(fill(len(cond.Data), x.Data[0]), x.Dtype)
			y = newArray(fill(len(cond.Data), y.Data[0]), y.Dtype)
		}
		if len(x.Data) != len(cond.Data) {
			return nil, broadcastError(cond, x)
		}
		dtype := widen(x.Dtype, y.Dtype)
		out := make([]float64, len(cond.Data))
		for i, c := range cond.Data {
			if c != 0 {
				out[i] = cast(x.Data[i], dtype)
			} else {
				out[i] = cast(y.Data[i], dtype)
			}
		}
		return newArray(out, dtype), nil
	})
	a["concatenate"] = builtin("concatenate", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("concatenate", args, kwargs, []string{"arrays"}, 1)
		if err != nil {
			return nil, err
		}
		parts, err := in.toSlice(p[0])
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			return nil, newExc(ValueError, "need at least one array to concatenate")
		}
		var out []float64
		dtype := ""
		for _, part := range parts {
			arr, err := in.arrayArg(part)
			if err != nil {
				return nil, err
			}
			out = append(out, arr.Data...)
			if dtype == "" {
				dtype = arr.Dtype
			} else {
				dtype = widen(dtype, arr.Dtype)
			}
			if err := in.checkItems(len(out)); err != nil {
				return nil, err
			}
		}
		return newArray(out, dtype), nil
	})
	a["append"] = builtin("append", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("append", args, kwargs, []string{"arr", "values"}, 2)
		if err != nil {
			return nil, err
		}
		x, err := in.arrayArg(p[0])
		if err != nil {
			return nil, err
		}
		y, err := in.arrayArg(p[1])
		if err != nil {
			return nil, err
		}
		if err := in.checkItems(len(x.Data) + len(y.Data)); err != nil {
			return nil, err
		}
		return newArray(append(slices.Clone(x.Data), y.Data...), widen(x.Dtype, y.Dtype)), nil
	})
	unary := func(name string, fn func(a *NDArray) *NDArray) *Builtin {
		return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"a"}, 1)
			if err != nil {
				return nil, err
			}
			arr, err := in.arrayArg(p[0])
			if err != nil {
				return nil, err
			}
			if err := in.charge(int64(len(arr.Data) / 16)); err != nil {
				return nil, err
			}
			return fn(arr), nil
		})
	}
	a["sort"] = unary("sort", func(x *NDArray) *NDArray {
		out := x.copy()
		sortFloats(out.Data)
		return out
	})
	a["argsort"] = unary("argsort", func(x *NDArray) *NDArray {
		idx := make([]int, len(x.Data))
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(i, j int) int { return cmpNaNLast(x.Data[i], x.Data[j]) })
		out := make([]float64, len(idx))
		for i, j := range idx {
			out[i] = float64(j)
		}
		return newArray(out, dtypeInt)
	})
	a["unique"] = unary("unique", func(x *NDArray) *NDArray {
		out := slices.Clone(x.Data)
		sortFloats(out)
		out = slices.CompactFunc(out, func(p, q float64) bool { return p == q || math.IsNaN(p) && math.IsNaN(q) })
		return newArray(out, x.Dtype)
	})
	a["flip"] = unary("flip", func(x *NDArray) *NDArray {
		out := x.copy()
		slices.Reverse(out.Data)
		return out
	})
	a["count_nonzero"] = builtin("count_nonzero", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("count_nonzero", args, kwargs, []string{"a"}, 1)
		if err != nil {
			return nil, err
		}
		arr, err := in.arrayArg(p[0])
		if err != nil {
			return nil, err
		}
		n := 0
		for _, f := range arr.Data {
			if f != 0 {
				n++
			}
		}
		return Int(n), nil
	})
	a["diff"] = builtin("diff", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("diff", args, kwargs, []string{"a", "n"}, 1)
		if err != nil {
			return nil, err
		}
		arr, err := in.arrayArg(p[0])
		if err != nil {
			return nil, err
		}
		n := int64(1)
		if p[1] != nil {
			if n, err = indexArg(p[1]); err != nil {
				return nil, err
			}
		}
		if n < 0 {
			return nil, newExc(ValueError, "order must be non-negative but got "+reprValue(p[1]))
		}
		data := slices.Clone(arr.Data)
		for range n {
			if len(data) == 0 {
				break
			}
			for i := 0; i+1 < len(data); i++ {
				data[i] = data[i+1] - data[i]
			}
			data = data[:len(data)-1]
		}
		dtype := arr.Dtype
		if dtype == dtypeBool && n > 0 {
			for i := range data {
				data[i] = boolFloat(data[i] != 0)
			}
		}
		return newArray(data, dtype), nil
	})
	quantile := func(name string, scale float64) *Builtin {
		return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"a", "q"}, 2)
			if err != nil {
				return nil, err
			}
			arr, err := in.arrayArg(p[0])
			if err != nil {
				return nil, err
			}
			check := func(q float64) error {
				if q < 0 || q > scale || math.IsNaN(q) {
					if scale == 100 {
						return newExc(ValueError, "Percentiles must be in the range [0, 100]")
					}
					return newExc(ValueError, "Quantiles must be in the range [0, 1]")
				}
				return nil
			}
			if q, ok := toFloat(p[1]); ok {
				if err := check(q); err != nil {
					return nil, err
				}
				return Float(percentile(arr.Data, q*100/scale)), nil
			}
			qs, err := in.arrayArg(p[1])
			if err != nil {
				return nil, err
			}
			out := make([]float64, len(qs.Data))
			for i, q := range qs.Data {
				if err := check(q); err != nil {
					return nil, err
				}
				out[i] = percentile(arr.Data, q*100/scale)
			}
			return newArray(out, dtypeFloat), nil
		})
	}
	a["percentile"] = quantile("percentile", 100)
	a["quantile"] = quantile("quantile", 1)
	a["polyfit"] = builtin("polyfit", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("polyfit", args, kwargs, []string{"x", "y", "deg"}, 3)
		if err != nil {
			return nil, err
		}
		deg, err := indexArg(p[2])
		if err != nil {
			return nil, err
		}
		if deg != 1 {
			return nil, newExc(NotImplementedError, "polyfit supports deg=1 only")
		}
		x, y, err := in.operands("polyfit", p[0], p[1])
		if err != nil {
			return nil, err
		}
		if len(x.Data) < 2 {
			return nil, newExc(ValueError, "polyfit needs at least two points")
		}
		vx := covariance(x.Data, x.Data)
		if vx == 0 {
			return nil, newExc(ValueError, "x is constant")
		}
		slope := covariance(x.Data, y.Data) / vx
		return newArray([]float64{slope, meanOf(y.Data) - slope*meanOf(x.Data)}, dtypeFloat), nil
	})

	a["random"] = in.numpyRandom()
	return m
}

func newNumpyRandomModule(in *Interp) *Module { return in.numpyRandom() }

// numpyRandom builds numpy.random once per run. Its generator is seeded
// from the run's generator, so a seeded run is reproducible end to end.
func (in *Interp) numpyRandom() *Module {
	if m, ok := in.modules["numpy.random"]; ok {
		return m
	}
	g := &npGenerator{rng: newRNG(in.rng.Uint64())}
	m := newModule("numpy.random")
	g.install(m.Attrs, true)
	m.Attrs["seed"] = builtin("seed", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("seed", args, kwargs, []string{"seed"}, 0)
		if err != nil {
			return nil, err
		}
		s, err := seedOf(p[0])
		if err != nil {
			return nil, err
		}
		g.rng = newRNG(s)
		return None, nil
	})
	m.Attrs["default_rng"] = builtin("default_rng", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("default_rng", args, kwargs, []string{"seed"}, 0)
		if err != nil {
			return nil, err
		}
		seed := in.rng.Uint64()
		if p[0] != nil && p[0] != None {
			if seed, err = seedOf(p[0]); err != nil {
				return nil, err
			}
		}
		gen := &npGenerator{rng: newRNG(seed)}
		gm := newModule("Generator")
		gen.install(gm.Attrs, false)
		return gm, nil
	})
	in.modules["numpy.random"] = m
	return m
}

// npGenerator holds one numpy random stream: the numpy.random module's
// global state or a Generator from default_rng.
type npGenerator struct{ rng *rand.Rand }

func (g *npGenerator) sample(in *Interp, size Value, draw func() float64, dtype string) (Value, error) {
	n, scalar, err := in.sizeArg(size)
	if err != nil {
		return nil, err
	}
	if scalar {
		return scalarOf(draw(), dtype), nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = draw()
	}
	return newArray(out, dtype), nil
}

// install adds the sampling functions. legacy selects the module-level
// names (rand, randn, randint); Generator objects use random, integers.
func (g *npGenerator) install(a map[string]Value, legacy bool) {
	uniform01 := func() float64 { return g.rng.Float64() }
	gaussian := func() float64 { return g.rng.NormFloat64() }
	dims := func(args []Value) Value {
		switch len(args) {
		case 0:
			return nil
		case 1:
			return args[0]
		}
		return Tuple(args)
	}
	a["random"] = builtin("random", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("random", args, kwargs, []string{"size"}, 0)
		if err != nil {
			return nil, err
		}
		return g.sample(in, p[0], uniform01, dtypeFloat)
	})
	integers := func(name string) *Builtin {
		return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"low", "high", "size", "dtype", "endpoint"}, 1)
			if err != nil {
				return nil, err
			}
			if p[1] == nil || p[1] == None {
				p[0], p[1] = Int(0), p[0]
			}
			ns, err := intArgs(name, p[:2])
			if err != nil {
				return nil, err
			}
			lo, hi := ns[0], ns[1]
			if p[4] != nil {
				if end, err := in.truthy(p[4]); err != nil {
					return nil, err
				} else if end {
					hi++
				}
			}
			if hi <= lo {
				return nil, newExc(ValueError, "low >= high")
			}
			return g.sample(in, p[2], func() float64 { return float64(lo + g.rng.Int64N(hi-lo)) }, dtypeInt)
		})
	}
	normal := builtin("normal", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("normal", args, kwargs, []string{"loc", "scale", "size"}, 0)
		if err != nil {
			return nil, err
		}
		loc, scale, err := floatPairDefault("normal", p[:2:2], nil, "loc", "scale", 0, 1)
		if err != nil {
			return nil, err
		}
		if scale < 0 {
			return nil, newExc(ValueError, "scale < 0")
		}
		return g.sample(in, p[2], func() float64 { return loc + scale*g.rng.NormFloat64() }, dtypeFloat)
	})
	a["normal"] = normal
	a["uniform"] = builtin("uniform", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("uniform", args, kwargs, []string{"low", "high", "size"}, 0)
		if err != nil {
			return nil, err
		}
		lo, hi, err := floatPairDefault("uniform", p[:2:2], nil, "low", "high", 0, 1)
		if err != nil {
			return nil, err
		}
		return g.sample(in, p[2], func() float64 { return lo + (hi-lo)*g.rng.Float64() }, dtypeFloat)
	})
	a["exponential"] = builtin("exponential", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("exponential", args, kwargs, []string{"scale", "size"}, 0)
		if err != nil {
			return nil, err
		}
		scale := 1.0
		if p[0] != nil {
			if scale, err = realArg(p[0]); err != nil {
				return nil, err
			}
		}
		return g.sample(in, p[1], func() float64 { return scale * g.rng.ExpFloat64() }, dtypeFloat)
	})
	a["choice"] = builtin("choice", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("choice", args, kwargs, []string{"a", "size", "replace", "p"}, 1)
		if err != nil {
			return nil, err
		}
		var pool *NDArray
		if n, ok := p[0].(Int); ok {
			if n <= 0 {
				return nil, newExc(ValueError, "a must be a positive integer unless no samples are taken")
			}
			if err := in.checkItems(int(n)); err != nil {
				return nil, err
			}
			data := make([]float64, n)
			for i := range data {
				data[i] = float64(i)
			}
			pool = newArray(data, dtypeInt)
		} else if pool, err = in.arrayArg(p[0]); err != nil {
			return nil, err
		}
		if len(pool.Data) == 0 {
			return nil, newExc(ValueError, "a cannot be empty unless no samples are taken")
		}
		cum, err := in.cumWeights(len(pool.Data), p[3], nil)
		if err != nil {
			return nil, err
		}
		replace := true
		if p[2] != nil {
			if replace, err = in.truthy(p[2]); err != nil {
				return nil, err
			}
		}
		n, scalar, err := in.sizeArg(p[1])
		if err != nil {
			return nil, err
		}
		if !replace {
			if n > len(pool.Data) {
				return nil, newExc(ValueError, "Cannot take a larger sample than population when 'replace=False'")
			}
			perm := g.rng.Perm(len(pool.Data))[:n]
			out := make([]float64, n)
			for i, j := range perm {
				out[i] = pool.Data[j]
			}
			if scalar {
				return pool.item(perm[0]), nil
			}
			return newArray(out, pool.Dtype), nil
		}
		pick := func() float64 {
			if cum == nil {
				return pool.Data[g.rng.IntN(len(pool.Data))]
			}
			x := g.rng.Float64() * cum[len(cum)-1]
			i := 0
			for i < len(cum)-1 && cum[i] <= x {
				i++
			}
			return pool.Data[i]
		}
		return g.sample(in, p[1], pick, pool.Dtype)
	})
	a["shuffle"] = builtin("shuffle", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("shuffle", args, kwargs, []string{"x"}, 1)
		if err != nil {
			return nil, err
		}
		switch x := p[0].(type) {
		case *NDArray:
			g.rng.Shuffle(len(x.Data), func(i, j int) { x.Data[i], x.Data[j] = x.Data[j], x.Data[i] })
		case *List:
			g.rng.Shuffle(len(x.Items), func(i, j int) { x.Items[i], x.Items[j] = x.Items[j], x.Items[i] })
		default:
			return nil, typeErrorf("'%s' object does not support item assignment", typeName(p[0]))
		}
		return None, nil
	})
	a["permutation"] = builtin("permutation", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("permutation", args, kwargs, []string{"x"}, 1)
		if err != nil {
			return nil, err
		}
		var arr *NDArray
		if n, ok := p[0].(Int); ok {
			if _, _, err := in.sizeArg(n); err != nil {
				return nil, err
			}
			data := make([]float64, n)
			for i := range data {
				data[i] = float64(i)
			}
			arr = newArray(data, dtypeInt)
		} else {
			src, err := in.arrayArg(p[0])
			if err != nil {
				return nil, err
			}
			arr = src.copy()
		}
		g.rng.Shuffle(len(arr.Data), func(i, j int) { arr.Data[i], arr.Data[j] = arr.Data[j], arr.Data[i] })
		return arr, nil
	})
	if !legacy {
		a["integers"] = integers("integers")
		a["standard_normal"] = builtin("standard_normal", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs("standard_normal", args, kwargs, []string{"size"}, 0)
			if err != nil {
				return nil, err
			}
			return g.sample(in, p[0], gaussian, dtypeFloat)
		})
		return
	}
	a["randint"] = integers("randint")
	a["rand"] = builtin("rand", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		if err := noKwargs("rand", kwargs); err != nil {
			return nil, err
		}
		return g.sample(in, dims(args), uniform01, dtypeFloat)
	})
	a["randn"] = builtin("randn", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		if err := noKwargs("randn", kwargs); err != nil {
			return nil, err
		}
		return g.sample(in, dims(args), gaussian, dtypeFloat)
	})
}
