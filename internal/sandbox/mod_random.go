package sandbox

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// seedOf maps a snippet seed to generator state. Equal seeds always give
// the same sequence within this implementation.
func seedOf(v Value) (uint64, error) {
	switch x := v.(type) {
	case nil, noneType:
		return uint64(time.Now().UnixNano()), nil
	case Int, Bool:
		n, _ := toInt(x)
		return uint64(n), nil
	case Float:
		return math.Float64bits(float64(x)), nil
	case Str:
		h := fnv.New64a()
		h.Write([]byte(x))
		return h.Sum64(), nil
	}
	return 0, typeErrorf("The only supported seed types are: None, int, float, str")
}

func (in *Interp) randBelow(n int64) int64 { return in.rng.Int64N(n) }

func (in *Interp) randrange(start, stop, step int64) (Value, error) {
	if step == 0 {
		return nil, newExc(ValueError, "zero step for randrange()")
	}
	r := &Range{Start: start, Stop: stop, Step: step}
	n := r.Count()
	if n == 0 {
		return nil, newExc(ValueError, "empty range in randrange("+itoa(int(start))+", "+itoa(int(stop))+")")
	}
	return Int(r.At(int64(in.rng.Uint64N(n)))), nil
}

func (in *Interp) population(v Value) ([]Value, error) {
	switch v.(type) {
	case *Set, *Dict:
		return nil, typeErrorf("Population must be a sequence.  For dicts or sets, use sorted(d).")
	}
	return in.toSlice(v)
}

func newRandomModule(in *Interp) *Module {
	m := newModule("random")
	a := m.Attrs
	a["seed"] = builtin("seed", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("seed", args, kwargs, []string{"a"}, 0)
		if err != nil {
			return nil, err
		}
		s, err := seedOf(p[0])
		if err != nil {
			return nil, err
		}
		in.rng = newRNG(s)
		return None, nil
	})
	a["random"] = builtin("random", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		if _, err := bindArgs("random", args, kwargs, nil, 0); err != nil {
			return nil, err
		}
		return Float(in.rng.Float64()), nil
	})
	a["uniform"] = builtin("uniform", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		lo, hi, err := floatPair("uniform", args, kwargs, "a", "b")
		if err != nil {
			return nil, err
		}
		return Float(lo + (hi-lo)*in.rng.Float64()), nil
	})
	a["randint"] = builtin("randint", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("randint", args, kwargs, []string{"a", "b"}, 2)
		if err != nil {
			return nil, err
		}
		ns, err := intArgs("randint", p)
		if err != nil {
			return nil, err
		}
		if ns[1] == math.MaxInt64 {
			return nil, errIntOverflow()
		}
		return in.randrange(ns[0], ns[1]+1, 1)
	})
	a["randrange"] = builtin("randrange", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("randrange", args, kwargs, []string{"start", "stop", "step"}, 1)
		if err != nil {
			return nil, err
		}
		if p[1] == nil || p[1] == None {
			p[0], p[1] = Int(0), p[0]
		}
		if p[2] == nil {
			p[2] = Int(1)
		}
		ns, err := intArgs("randrange", p)
		if err != nil {
			return nil, err
		}
		return in.randrange(ns[0], ns[1], ns[2])
	})
	a["getrandbits"] = builtin("getrandbits", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("getrandbits", args, kwargs, []string{"k"}, 1)
		if err != nil {
			return nil, err
		}
		k, err := indexArg(p[0])
		if err != nil {
			return nil, err
		}
		if k < 0 {
			return nil, newExc(ValueError, "number of bits must be non-negative")
		}
		if k > 63 {
			return nil, errIntOverflow()
		}
		return Int(in.rng.Uint64() >> (64 - k)), nil
	})
	a["choice"] = builtin("choice", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("choice", args, kwargs, []string{"seq"}, 1)
		if err != nil {
			return nil, err
		}
		items, err := in.population(p[0])
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, newExc(IndexError, "Cannot choose from an empty sequence")
		}
		return items[in.randBelow(int64(len(items)))], nil
	})
	a["choices"] = builtin("choices", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("choices", args, kwargs, []string{"population", "weights", "cum_weights", "k"}, 1)
		if err != nil {
			return nil, err
		}
		items, err := in.population(p[0])
		if err != nil {
			return nil, err
		}
		k := int64(1)
		if p[3] != nil {
			if k, err = indexArg(p[3]); err != nil {
				return nil, err
			}
		}
		if err := in.checkItems(int(max(k, 0))); err != nil {
			return nil, err
		}
		cum, err := in.cumWeights(len(items), p[1], p[2])
		if err != nil {
			return nil, err
		}
		out := make([]Value, 0, max(k, 0))
		for range k {
			if len(items) == 0 {
				return nil, newExc(IndexError, "Cannot choose from an empty sequence")
			}
			if cum == nil {
				out = append(out, items[in.randBelow(int64(len(items)))])
				continue
			}
			x := in.rng.Float64() * cum[len(cum)-1]
			i := 0
			for i < len(cum)-1 && cum[i] <= x {
				i++
			}
			out = append(out, items[i])
		}
		return NewList(out), nil
	})
	a["shuffle"] = builtin("shuffle", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("shuffle", args, kwargs, []string{"x"}, 1)
		if err != nil {
			return nil, err
		}
		l, ok := p[0].(*List)
		if !ok {
			return nil, typeErrorf("'%s' object does not support item assignment", typeName(p[0]))
		}
		in.rng.Shuffle(len(l.Items), func(i, j int) { l.Items[i], l.Items[j] = l.Items[j], l.Items[i] })
		return None, nil
	})
	a["sample"] = builtin("sample", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("sample", args, kwargs, []string{"population", "k"}, 2)
		if err != nil {
			return nil, err
		}
		items, err := in.population(p[0])
		if err != nil {
			return nil, err
		}
		k, err := indexArg(p[1])
		if err != nil {
			return nil, err
		}
		if k < 0 || k > int64(len(items)) {
			return nil, newExc(ValueError, "Sample larger than population or is negative")
		}
		for i := range int(k) {
			j := i + int(in.randBelow(int64(len(items)-i)))
			items[i], items[j] = items[j], items[i]
		}
		return NewList(items[:k:k]), nil
	})
	gauss := func(name string) *Builtin {
		return builtin(name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			mu, sigma, err := floatPairDefault(name, args, kwargs, "mu", "sigma", 0, 1)
			if err != nil {
				return nil, err
			}
			return Float(mu + sigma*in.rng.NormFloat64()), nil
		})
	}
	a["gauss"] = gauss("gauss")
	a["normalvariate"] = gauss("normalvariate")
	a["lognormvariate"] = builtin("lognormvariate", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		mu, sigma, err := floatPair("lognormvariate", args, kwargs, "mu", "sigma")
		if err != nil {
			return nil, err
		}
		return Float(math.Exp(mu + sigma*in.rng.NormFloat64())), nil
	})
	a["expovariate"] = builtin("expovariate", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("expovariate", args, kwargs, []string{"lambd"}, 0)
		if err != nil {
			return nil, err
		}
		lambd := 1.0
		if p[0] != nil {
			if lambd, err = realArg(p[0]); err != nil {
				return nil, err
			}
		}
		if lambd == 0 {
			return nil, newExc(ZeroDivisionError, "float division by zero")
		}
		return Float(in.rng.ExpFloat64() / lambd), nil
	})
	a["triangular"] = builtin("triangular", func(in *Interp, args []Value, kwargs []KV) (Value, error) {
		p, err := bindArgs("triangular", args, kwargs, []string{"low", "high", "mode"}, 0)
		if err != nil {
			return nil, err
		}
		fs := [3]float64{0, 1, math.NaN()}
		for i, v := range p {
			if v != nil && v != None {
				if fs[i], err = realArg(v); err != nil {
					return nil, err
				}
			}
		}
		low, high, mode := fs[0], fs[1], fs[2]
		if high == low {
			return Float(low), nil
		}
		c := 0.5
		if !math.IsNaN(mode) {
			c = (mode - low) / (high - low)
		}
		u := in.rng.Float64()
		if u > c {
			u, c = 1-u, 1-c
			low, high = high, low
		}
		return Float(low + (high-low)*math.Sqrt(u*c)), nil
	})
	return m
}

func floatPair(name string, args []Value, kwargs []KV, x, y string) (float64, float64, error) {
	p, err := bindArgs(name, args, kwargs, []string{x, y}, 2)
	if err != nil {
		return 0, 0, err
	}
	a, err := realArg(p[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := realArg(p[1])
	return a, b, err
}

func floatPairDefault(name string, args []Value, kwargs []KV, x, y string, dx, dy float64) (float64, float64, error) {
	p, err := bindArgs(name, args, kwargs, []string{x, y}, 0)
	if err != nil {
		return 0, 0, err
	}
	out := [2]float64{dx, dy}
	for i, v := range p {
		if v != nil {
			if out[i], err = realArg(v); err != nil {
				return 0, 0, err
			}
		}
	}
	return out[0], out[1], nil
}

// cumWeights resolves the weights or cum_weights argument of choices. A
// nil result means uniform selection.
func (in *Interp) cumWeights(n int, weights, cumulative Value) ([]float64, error) {
	if weights != nil && weights != None && cumulative != nil && cumulative != None {
		return nil, typeErrorf("Cannot specify both weights and cumulative weights")
	}
	src, running := weights, true
	if cumulative != nil && cumulative != None {
		src, running = cumulative, false
	}
	if src == nil || src == None {
		return nil, nil
	}
	ws, err := in.numericData(src)
	if err != nil {
		return nil, err
	}
	if len(ws.floats) != n {
		return nil, newExc(ValueError, "The number of weights does not match the population")
	}
	out := ws.floats
	if running {
		var total float64
		out = make([]float64, n)
		for i, w := range ws.floats {
			total += w
			out[i] = total
		}
	}
	if n > 0 && (out[n-1] <= 0 || isInfOrNaN(out[n-1])) {
		return nil, newExc(ValueError, "Total of weights must be greater than zero")
	}
	return out, nil
}
