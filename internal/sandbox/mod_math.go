package sandbox

import (
	"math"
	"math/big"
)

func isInfOrNaN(f float64) bool { return math.IsInf(f, 0) || math.IsNaN(f) }

func realArg(v Value) (float64, error) {
	f, ok := toFloat(v)
	if !ok {
		return 0, typeErrorf("must be real number, not %s", typeName(v))
	}
	return f, nil
}

func domainError() error { return newExc(ValueError, "math domain error") }

func rangeError() error { return newExc(OverflowError, "math range error") }

// checked wraps a float result the way the math module reports failures:
// NaN from a non-NaN input is a domain error; an infinity from a finite
// input is a range error, or a domain error for poles such as log(0).
func checked(in, out float64, pole bool) (Value, error) {
	if math.IsNaN(out) && !math.IsNaN(in) {
		return nil, domainError()
	}
	if math.IsInf(out, 0) && !math.IsInf(in, 0) {
		if pole {
			return nil, domainError()
		}
		return nil, rangeError()
	}
	return Float(out), nil
}

func math1(name string, f func(float64) float64, pole bool) *Builtin {
	return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		a, err := bindArgs(name, args, kwargs, []string{"x"}, 1)
		if err != nil {
			return nil, err
		}
		x, err := realArg(a[0])
		if err != nil {
			return nil, err
		}
		return checked(x, f(x), pole)
	})
}

func math2(name string, f func(x, y float64) float64) *Builtin {
	return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		a, err := bindArgs(name, args, kwargs, []string{"x", "y"}, 2)
		if err != nil {
			return nil, err
		}
		x, err := realArg(a[0])
		if err != nil {
			return nil, err
		}
		y, err := realArg(a[1])
		if err != nil {
			return nil, err
		}
		out := f(x, y)
		if math.IsNaN(out) && !math.IsNaN(x) && !math.IsNaN(y) {
			return nil, domainError()
		}
		if math.IsInf(out, 0) && !isInfOrNaN(x) && !isInfOrNaN(y) {
			return nil, rangeError()
		}
		return Float(out), nil
	})
}

func intArgs(name string, args []Value) ([]int64, error) {
	out := make([]int64, len(args))
	for i, a := range args {
		n, ok := toInt(a)
		if !ok {
			return nil, typeErrorf("'%s' object cannot be interpreted as an integer", typeName(a))
		}
		out[i] = n
	}
	return out, nil
}

func bigToInt(b *big.Int) (Value, error) {
	if !b.IsInt64() {
		return nil, errIntOverflow()
	}
	return Int(b.Int64()), nil
}

func gcd(a, b int64) int64 {
	a, b = absInt(a), absInt(b)
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func newMathModule(in *Interp) *Module {
	m := newModule("math")
	a := m.Attrs
	a["pi"] = Float(math.Pi)
	a["e"] = Float(math.E)
	a["tau"] = Float(2 * math.Pi)
	a["inf"] = Float(math.Inf(1))
	a["nan"] = Float(math.NaN())

	a["sqrt"] = math1("sqrt", math.Sqrt, false)
	a["exp"] = math1("exp", math.Exp, false)
	a["expm1"] = math1("expm1", math.Expm1, false)
	a["log2"] = math1("log2", poleLog(math.Log2), true)
	a["log10"] = math1("log10", poleLog(math.Log10), true)
	a["log1p"] = math1("log1p", func(x float64) float64 {
		if x <= -1 {
			return math.NaN()
		}
		return math.Log1p(x)
	}, true)
	a["sin"] = math1("sin", math.Sin, false)
	a["cos"] = math1("cos", math.Cos, false)
	a["tan"] = math1("tan", math.Tan, false)
	a["asin"] = math1("asin", math.Asin, false)
	a["acos"] = math1("acos", math.Acos, false)
	a["atan"] = math1("atan", math.Atan, false)
	a["sinh"] = math1("sinh", math.Sinh, false)
	a["cosh"] = math1("cosh", math.Cosh, false)
	a["tanh"] = math1("tanh", math.Tanh, false)
	a["asinh"] = math1("asinh", math.Asinh, false)
	a["acosh"] = math1("acosh", math.Acosh, false)
	a["atanh"] = math1("atanh", func(x float64) float64 {
		if math.Abs(x) >= 1 {
			return math.NaN()
		}
		return math.Atanh(x)
	}, true)
	a["fabs"] = math1("fabs", math.Abs, false)
	a["degrees"] = math1("degrees", func(x float64) float64 { return x * 180 / math.Pi }, false)
	a["radians"] = math1("radians", func(x float64) float64 { return x * math.Pi / 180 }, false)
	a["erf"] = math1("erf", math.Erf, false)
	a["erfc"] = math1("erfc", math.Erfc, false)
	a["gamma"] = math1("gamma", func(x float64) float64 {
		if x <= 0 && x == math.Trunc(x) {
			return math.NaN()
		}
		return math.Gamma(x)
	}, false)
	a["lgamma"] = math1("lgamma", func(x float64) float64 {
		if x <= 0 && x == math.Trunc(x) {
			return math.Inf(1)
		}
		v, _ := math.Lgamma(x)
		return v
	}, true)
	a["atan2"] = math2("atan2", math.Atan2)
	a["copysign"] = math2("copysign", math.Copysign)
	a["fmod"] = math2("fmod", func(x, y float64) float64 {
		if y == 0 || math.IsInf(x, 0) {
			return math.NaN()
		}
		return math.Mod(x, y)
	})
	a["pow"] = math2("pow", func(x, y float64) float64 {
		if x == 0 && y < 0 {
			return math.NaN()
		}
		return math.Pow(x, y)
	})
	a["remainder"] = math2("remainder", math.Remainder)

	a["log"] = builtin("log", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("log", args, kwargs, []string{"x", "base"}, 1)
		if err != nil {
			return nil, err
		}
		x, err := realArg(p[0])
		if err != nil {
			return nil, err
		}
		if x <= 0 {
			return nil, domainError()
		}
		if p[1] == nil {
			return Float(math.Log(x)), nil
		}
		base, err := realArg(p[1])
		if err != nil {
			return nil, err
		}
		if base <= 0 {
			return nil, domainError()
		}
		if base == 1 {
			return nil, newExc(ZeroDivisionError, "float division by zero")
		}
		return Float(math.Log(x) / math.Log(base)), nil
	})

	rounding := func(name string, f func(float64) float64) *Builtin {
		return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"x"}, 1)
			if err != nil {
				return nil, err
			}
			if n, ok := toInt(p[0]); ok {
				return Int(n), nil
			}
			x, err := realArg(p[0])
			if err != nil {
				return nil, err
			}
			return floatToInt(f(x))
		})
	}
	a["floor"] = rounding("floor", math.Floor)
	a["ceil"] = rounding("ceil", math.Ceil)
	a["trunc"] = rounding("trunc", math.Trunc)

	a["factorial"] = builtin("factorial", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("factorial", args, kwargs, []string{"n"}, 1)
		if err != nil {
			return nil, err
		}
		n, err := indexArg(p[0])
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, newExc(ValueError, "factorial() not defined for negative values")
		}
		if n > 20 {
			return nil, errIntOverflow()
		}
		r := int64(1)
		for i := int64(2); i <= n; i++ {
			r *= i
		}
		return Int(r), nil
	})
	a["gcd"] = builtin("gcd", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		if err := noKwargs("gcd", kwargs); err != nil {
			return nil, err
		}
		ns, err := intArgs("gcd", args)
		if err != nil {
			return nil, err
		}
		var g int64
		for _, n := range ns {
			g = gcd(g, n)
		}
		return Int(g), nil
	})
	a["lcm"] = builtin("lcm", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		if err := noKwargs("lcm", kwargs); err != nil {
			return nil, err
		}
		ns, err := intArgs("lcm", args)
		if err != nil {
			return nil, err
		}
		l := int64(1)
		for _, n := range ns {
			if n == 0 {
				return Int(0), nil
			}
			v, err := mulInt(l/gcd(l, n), absInt(n))
			if err != nil {
				return nil, err
			}
			l = int64(v.(Int))
		}
		return Int(l), nil
	})
	a["comb"] = builtin("comb", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("comb", args, kwargs, []string{"n", "k"}, 2)
		if err != nil {
			return nil, err
		}
		ns, err := intArgs("comb", p)
		if err != nil {
			return nil, err
		}
		if ns[0] < 0 || ns[1] < 0 {
			return nil, newExc(ValueError, "n must be a non-negative integer")
		}
		if ns[1] > ns[0] {
			return Int(0), nil
		}
		return bigToInt(new(big.Int).Binomial(ns[0], ns[1]))
	})
	a["perm"] = builtin("perm", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("perm", args, kwargs, []string{"n", "k"}, 1)
		if err != nil {
			return nil, err
		}
		if p[1] == nil || p[1] == None {
			p[1] = p[0]
		}
		ns, err := intArgs("perm", p)
		if err != nil {
			return nil, err
		}
		if ns[0] < 0 || ns[1] < 0 {
			return nil, newExc(ValueError, "n must be a non-negative integer")
		}
		if ns[1] > ns[0] {
			return Int(0), nil
		}
		r := big.NewInt(1)
		for i := ns[0] - ns[1] + 1; i <= ns[0]; i++ {
			r.Mul(r, big.NewInt(i))
			if r.BitLen() > 64 {
				return nil, errIntOverflow()
			}
		}
		return bigToInt(r)
	})
	a["isqrt"] = builtin("isqrt", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("isqrt", args, kwargs, []string{"n"}, 1)
		if err != nil {
			return nil, err
		}
		n, err := indexArg(p[0])
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, newExc(ValueError, "isqrt() argument must be nonnegative")
		}
		return Int(new(big.Int).Sqrt(big.NewInt(n)).Int64()), nil
	})
	predicate := func(name string, f func(float64) bool) *Builtin {
		return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs(name, args, kwargs, []string{"x"}, 1)
			if err != nil {
				return nil, err
			}
			x, err := realArg(p[0])
			if err != nil {
				return nil, err
			}
			return Bool(f(x)), nil
		})
	}
	a["isfinite"] = predicate("isfinite", func(x float64) bool { return !isInfOrNaN(x) })
	a["isinf"] = predicate("isinf", func(x float64) bool { return math.IsInf(x, 0) })
	a["isnan"] = predicate("isnan", math.IsNaN)
	a["isclose"] = builtin("isclose", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("isclose", args, kwargs, []string{"a", "b", "rel_tol", "abs_tol"}, 2)
		if err != nil {
			return nil, err
		}
		fs := [4]float64{0, 0, 1e-9, 0}
		for i, v := range p {
			if v == nil {
				continue
			}
			if fs[i], err = realArg(v); err != nil {
				return nil, err
			}
		}
		x, y, rel, abs := fs[0], fs[1], fs[2], fs[3]
		if rel < 0 || abs < 0 {
			return nil, newExc(ValueError, "tolerances must be non-negative")
		}
		if x == y {
			return Bool(true), nil
		}
		if math.IsInf(x, 0) || math.IsInf(y, 0) {
			return Bool(false), nil
		}
		diff := math.Abs(x - y)
		return Bool(diff <= math.Abs(rel*y) || diff <= math.Abs(rel*x) || diff <= abs), nil
	})
	a["hypot"] = builtin("hypot", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		if err := noKwargs("hypot", kwargs); err != nil {
			return nil, err
		}
		var sum float64
		for _, v := range args {
			x, err := realArg(v)
			if err != nil {
				return nil, err
			}
			sum = math.Hypot(sum, x)
		}
		return Float(sum), nil
	})
	a["dist"] = builtin("dist", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("dist", args, kwargs, []string{"p", "q"}, 2)
		if err != nil {
			return nil, err
		}
		ps, err := in.toSlice(p[0])
		if err != nil {
			return nil, err
		}
		qs, err := in.toSlice(p[1])
		if err != nil {
			return nil, err
		}
		if len(ps) != len(qs) {
			return nil, newExc(ValueError, "both points must have the same number of dimensions")
		}
		var sum float64
		for i := range ps {
			x, err := realArg(ps[i])
			if err != nil {
				return nil, err
			}
			y, err := realArg(qs[i])
			if err != nil {
				return nil, err
			}
			sum = math.Hypot(sum, x-y)
		}
		return Float(sum), nil
	})
	a["fsum"] = builtin("fsum", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("fsum", args, kwargs, []string{"seq"}, 1)
		if err != nil {
			return nil, err
		}
		items, err := in.toSlice(p[0])
		if err != nil {
			return nil, err
		}
		var acc neumaier
		for _, v := range items {
			x, err := realArg(v)
			if err != nil {
				return nil, err
			}
			acc.add(x)
		}
		return Float(acc.total()), nil
	})
	a["prod"] = builtin("prod", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("prod", args, kwargs, []string{"iterable", "start"}, 1)
		if err != nil {
			return nil, err
		}
		items, err := in.toSlice(p[0])
		if err != nil {
			return nil, err
		}
		var acc Value = Int(1)
		if p[1] != nil {
			acc = p[1]
		}
		for _, v := range items {
			if acc, err = in.binop("*", acc, v); err != nil {
				return nil, err
			}
		}
		return acc, nil
	})
	a["modf"] = builtin("modf", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("modf", args, kwargs, []string{"x"}, 1)
		if err != nil {
			return nil, err
		}
		x, err := realArg(p[0])
		if err != nil {
			return nil, err
		}
		i, f := math.Modf(x)
		return Tuple{Float(f), Float(i)}, nil
	})
	a["frexp"] = builtin("frexp", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("frexp", args, kwargs, []string{"x"}, 1)
		if err != nil {
			return nil, err
		}
		x, err := realArg(p[0])
		if err != nil {
			return nil, err
		}
		frac, exp := math.Frexp(x)
		return Tuple{Float(frac), Int(exp)}, nil
	})
	a["ldexp"] = builtin("ldexp", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("ldexp", args, kwargs, []string{"x", "i"}, 2)
		if err != nil {
			return nil, err
		}
		x, err := realArg(p[0])
		if err != nil {
			return nil, err
		}
		i, err := indexArg(p[1])
		if err != nil {
			return nil, err
		}
		return checked(x, math.Ldexp(x, int(max(min(i, 1<<20), -(1<<20)))), false)
	})
	return m
}

// poleLog turns the -Inf that log functions return at zero into NaN so it
// is reported as a domain error.
func poleLog(f func(float64) float64) func(float64) float64 {
	return func(x float64) float64 {
		if x <= 0 {
			return math.NaN()
		}
		return f(x)
	}
}
