package sandbox

import (
	"math"
	"math/big"
	"slices"
)

func statsError(msg string) error { return newExc(StatisticsError, msg) }

// sample is numeric data drained from an iterable. ints is set when every
// element is an int or bool, which lets mean and variance stay exact.
type sample struct {
	values []Value
	floats []float64
	ints   bool
}

func (in *Interp) numericData(v Value) (*sample, error) {
	items, err := in.toSlice(v)
	if err != nil {
		return nil, err
	}
	s := &sample{values: items, floats: make([]float64, len(items)), ints: true}
	for i, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return nil, typeErrorf("can't convert type '%s' to numerator/denominator", typeName(item))
		}
		s.floats[i] = f
		if _, ok := toInt(item); !ok {
			s.ints = false
		}
	}
	return s, nil
}

// ratValue returns r as an int when it is whole, otherwise as a float.
func ratValue(r *big.Rat) Value {
	if r.IsInt() && r.Num().IsInt64() {
		return Int(r.Num().Int64())
	}
	f, _ := r.Float64()
	return Float(f)
}

func (s *sample) mean() Value {
	if s.ints {
		sum := new(big.Int)
		for _, v := range s.values {
			n, _ := toInt(v)
			sum.Add(sum, big.NewInt(n))
		}
		return ratValue(new(big.Rat).SetFrac(sum, big.NewInt(int64(len(s.values)))))
	}
	var acc neumaier
	for _, f := range s.floats {
		acc.add(f)
	}
	return Float(acc.total() / float64(len(s.floats)))
}

// variance divides the sum of squared deviations by n-ddof.
func (s *sample) variance(ddof int) Value {
	n := len(s.values)
	if s.ints {
		sum, sq := new(big.Int), new(big.Int)
		for _, v := range s.values {
			x, _ := toInt(v)
			b := big.NewInt(x)
			sum.Add(sum, b)
			sq.Add(sq, new(big.Int).Mul(b, b))
		}
		// (n*sum(x^2) - sum(x)^2) / (n*(n-ddof))
		num := new(big.Int).Mul(big.NewInt(int64(n)), sq)
		num.Sub(num, new(big.Int).Mul(sum, sum))
		den := big.NewInt(int64(n) * int64(n-ddof))
		return ratValue(new(big.Rat).SetFrac(num, den))
	}
	var acc neumaier
	for _, f := range s.floats {
		acc.add(f)
	}
	m := acc.total() / float64(n)
	var ss neumaier
	for _, f := range s.floats {
		ss.add((f - m) * (f - m))
	}
	return Float(ss.total() / float64(n-ddof))
}

func (in *Interp) statsFunc(name string, minPoints int, emptyMsg string, fn func(s *sample) (Value, error)) *Builtin {
	return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs(name, args, kwargs, []string{"data"}, 1)
		if err != nil {
			return nil, err
		}
		s, err := in.numericData(p[0])
		if err != nil {
			return nil, err
		}
		if len(s.values) < minPoints {
			return nil, statsError(emptyMsg)
		}
		return fn(s)
	})
}

func sortedFloats(s *sample) []float64 {
	out := slices.Clone(s.floats)
	slices.Sort(out)
	return out
}

// sortedValues orders the sample while keeping each element's own type.
func sortedValues(s *sample) []Value {
	idx := make([]int, len(s.values))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case s.floats[a] < s.floats[b]:
			return -1
		case s.floats[a] > s.floats[b]:
			return 1
		}
		return 0
	})
	out := make([]Value, len(idx))
	for i, j := range idx {
		out[i] = s.values[j]
	}
	return out
}

func newStatisticsModule(in *Interp) *Module {
	m := newModule("statistics")
	a := m.Attrs
	a["StatisticsError"] = StatisticsError

	a["mean"] = in.statsFunc("mean", 1, "mean requires at least one data point", func(s *sample) (Value, error) {
		return s.mean(), nil
	})
	a["fmean"] = in.statsFunc("fmean", 1, "fmean requires at least one data point", func(s *sample) (Value, error) {
		f, _ := toFloat(s.mean())
		return Float(f), nil
	})
	a["geometric_mean"] = in.statsFunc("geometric_mean", 1, "geometric_mean requires a non-empty dataset containing positive numbers", func(s *sample) (Value, error) {
		var acc neumaier
		for _, f := range s.floats {
			if f <= 0 {
				return nil, statsError("geometric_mean requires a non-empty dataset containing positive numbers")
			}
			acc.add(math.Log(f))
		}
		return Float(math.Exp(acc.total() / float64(len(s.floats)))), nil
	})
	a["harmonic_mean"] = in.statsFunc("harmonic_mean", 1, "harmonic_mean requires at least one data point", func(s *sample) (Value, error) {
		var acc neumaier
		for _, f := range s.floats {
			if f < 0 {
				return nil, statsError("harmonic mean does not support negative values")
			}
			if f == 0 {
				return Int(0), nil
			}
			acc.add(1 / f)
		}
		return Float(float64(len(s.floats)) / acc.total()), nil
	})
	a["median"] = in.statsFunc("median", 1, "no median for empty data", func(s *sample) (Value, error) {
		vs := sortedValues(s)
		n := len(vs)
		if n%2 == 1 {
			return vs[n/2], nil
		}
		x, _ := toFloat(vs[n/2-1])
		y, _ := toFloat(vs[n/2])
		return Float((x + y) / 2), nil
	})
	a["median_low"] = in.statsFunc("median_low", 1, "no median for empty data", func(s *sample) (Value, error) {
		vs := sortedValues(s)
		return vs[(len(vs)-1)/2], nil
	})
	a["median_high"] = in.statsFunc("median_high", 1, "no median for empty data", func(s *sample) (Value, error) {
		vs := sortedValues(s)
		return vs[len(vs)/2], nil
	})
	a["variance"] = in.statsFunc("variance", 2, "variance requires at least two data points", func(s *sample) (Value, error) {
		return s.variance(1), nil
	})
	a["pvariance"] = in.statsFunc("pvariance", 1, "pvariance requires at least one data point", func(s *sample) (Value, error) {
		return s.variance(0), nil
	})
	a["stdev"] = in.statsFunc("stdev", 2, "stdev requires at least two data points", func(s *sample) (Value, error) {
		f, _ := toFloat(s.variance(1))
		return Float(math.Sqrt(f)), nil
	})
	a["pstdev"] = in.statsFunc("pstdev", 1, "pstdev requires at least one data point", func(s *sample) (Value, error) {
		f, _ := toFloat(s.variance(0))
		return Float(math.Sqrt(f)), nil
	})

	a["mode"] = builtin("mode", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		modes, err := in.modes("mode", args, kwargs)
		if err != nil {
			return nil, err
		}
		if len(modes) == 0 {
			return nil, statsError("no mode for empty data")
		}
		return modes[0], nil
	})
	a["multimode"] = builtin("multimode", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		modes, err := in.modes("multimode", args, kwargs)
		if err != nil {
			return nil, err
		}
		return NewList(modes), nil
	})
	a["quantiles"] = builtin("quantiles", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("quantiles", args, kwargs, []string{"data", "n", "method"}, 1)
		if err != nil {
			return nil, err
		}
		n := int64(4)
		if p[1] != nil {
			if n, err = indexArg(p[1]); err != nil {
				return nil, err
			}
		}
		if n < 1 {
			return nil, statsError("n must be at least 1")
		}
		method := "exclusive"
		if p[2] != nil {
			ms, ok := p[2].(Str)
			if !ok || (ms != "exclusive" && ms != "inclusive") {
				return nil, newExc(ValueError, "Unknown method: "+reprValue(p[2]))
			}
			method = string(ms)
		}
		s, err := in.numericData(p[0])
		if err != nil {
			return nil, err
		}
		if len(s.values) < 2 {
			return nil, statsError("must have at least two data points")
		}
		if err := in.checkItems(int(n)); err != nil {
			return nil, err
		}
		return NewList(quantiles(sortedFloats(s), int(n), method == "inclusive")), nil
	})
	a["covariance"] = in.pairStats("covariance", func(x, y []float64) (Value, error) {
		return Float(covariance(x, y)), nil
	})
	a["correlation"] = in.pairStats("correlation", func(x, y []float64) (Value, error) {
		sx, sy := math.Sqrt(covariance(x, x)), math.Sqrt(covariance(y, y))
		if sx == 0 || sy == 0 {
			return nil, statsError("at least one of the inputs is constant")
		}
		return Float(covariance(x, y) / (sx * sy)), nil
	})
	a["linear_regression"] = in.pairStats("linear_regression", func(x, y []float64) (Value, error) {
		vx := covariance(x, x)
		if vx == 0 {
			return nil, statsError("x is constant")
		}
		slope := covariance(x, y) / vx
		return Tuple{Float(slope), Float(meanOf(y) - slope*meanOf(x))}, nil
	})
	return m
}

func (in *Interp) modes(name string, args []Value, kwargs []KV) ([]Value, error) {
	p, err := bindArgs(name, args, kwargs, []string{"data"}, 1)
	if err != nil {
		return nil, err
	}
	items, err := in.toSlice(p[0])
	if err != nil {
		return nil, err
	}
	counts := NewDict()
	best := int64(0)
	for _, item := range items {
		c, _, err := counts.Get(item)
		if err != nil {
			return nil, err
		}
		n := int64(1)
		if c != nil {
			n = int64(c.(Int)) + 1
		}
		if err := counts.Set(item, Int(n)); err != nil {
			return nil, err
		}
		best = max(best, n)
	}
	var out []Value
	vals := counts.Values()
	for i, k := range counts.Keys() {
		if vals[i] == Int(best) {
			out = append(out, k)
		}
	}
	if out == nil {
		out = []Value{}
	}
	return out, nil
}

func (in *Interp) pairStats(name string, fn func(x, y []float64) (Value, error)) *Builtin {
	return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs(name, args, kwargs, []string{"x", "y"}, 2)
		if err != nil {
			return nil, err
		}
		x, err := in.numericData(p[0])
		if err != nil {
			return nil, err
		}
		y, err := in.numericData(p[1])
		if err != nil {
			return nil, err
		}
		if len(x.floats) != len(y.floats) {
			return nil, statsError(name + " requires that both inputs have same number of data points")
		}
		if len(x.floats) < 2 {
			return nil, statsError(name + " requires at least two data points")
		}
		return fn(x.floats, y.floats)
	})
}

func meanOf(xs []float64) float64 {
	var acc neumaier
	for _, f := range xs {
		acc.add(f)
	}
	return acc.total() / float64(len(xs))
}

func covariance(x, y []float64) float64 {
	mx, my := meanOf(x), meanOf(y)
	var acc neumaier
	for i := range x {
		acc.add((x[i] - mx) * (y[i] - my))
	}
	return acc.total() / float64(len(x)-1)
}

// quantiles cuts sorted data into n intervals of equal probability.
func quantiles(data []float64, n int, inclusive bool) []Value {
	ld := len(data)
	out := make([]Value, 0, n-1)
	if inclusive {
		m := ld - 1
		for i := 1; i < n; i++ {
			j, delta := i*m/n, i*m%n
			v := data[j]
			if delta != 0 {
				v = (data[j]*float64(n-delta) + data[j+1]*float64(delta)) / float64(n)
			}
			out = append(out, Float(v))
		}
		return out
	}
	m := ld + 1
	for i := 1; i < n; i++ {
		j := min(max(i*m/n, 1), ld-1)
		delta := i*m - j*n
		out = append(out, Float((data[j-1]*float64(n-delta)+data[j]*float64(delta))/float64(n)))
	}
	return out
}
