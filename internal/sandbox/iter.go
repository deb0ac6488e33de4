package sandbox

import "unicode/utf8"

type nextFunc = func() (Value, bool, error)

// iterate returns a pull iterator over v. Lists are iterated live, so
// appending during a loop extends it; dicts and sets fail if their size
// changes.
func (in *Interp) iterate(v Value) (nextFunc, error) {
	switch v := v.(type) {
	case *List:
		i := 0
		return func() (Value, bool, error) {
			if i >= len(v.Items) {
				return nil, false, nil
			}
			i++
			return v.Items[i-1], true, nil
		}, nil
	case Tuple:
		return sliceIter(v), nil
	case Str:
		s := string(v)
		return func() (Value, bool, error) {
			if s == "" {
				return nil, false, nil
			}
			r, size := utf8.DecodeRuneInString(s)
			out := s[:size]
			if r == utf8.RuneError && size == 1 {
				out = string(r)
			}
			s = s[size:]
			return Str(out), true, nil
		}, nil
	case *Range:
		var i uint64
		n := v.Count()
		return func() (Value, bool, error) {
			if i >= n {
				return nil, false, nil
			}
			i++
			return Int(v.At(int64(i - 1))), true, nil
		}, nil
	case *Dict:
		return dictIter(v, "keys"), nil
	case *DictView:
		return dictIter(v.Dict, v.Kind), nil
	case *Set:
		items := v.Items()
		size := v.Len()
		i := 0
		return func() (Value, bool, error) {
			if v.Len() != size {
				return nil, false, newExc(RuntimeError, "Set changed size during iteration")
			}
			if i >= len(items) {
				return nil, false, nil
			}
			i++
			return items[i-1], true, nil
		}, nil
	case *Iterator:
		return v.next, nil
	case *NDArray:
		i := 0
		return func() (Value, bool, error) {
			if i >= len(v.Data) {
				return nil, false, nil
			}
			i++
			return v.item(i - 1), true, nil
		}, nil
	}
	return nil, typeErrorf("'%s' object is not iterable", typeName(v))
}

func sliceIter(items []Value) nextFunc {
	i := 0
	return func() (Value, bool, error) {
		if i >= len(items) {
			return nil, false, nil
		}
		i++
		return items[i-1], true, nil
	}
}

func dictIter(d *Dict, kind string) nextFunc {
	size := d.Len()
	i := 0
	return func() (Value, bool, error) {
		if d.Len() != size {
			return nil, false, newExc(RuntimeError, "dictionary changed size during iteration")
		}
		if i >= len(d.keys) {
			return nil, false, nil
		}
		i++
		switch kind {
		case "values":
			return d.vals[i-1], true, nil
		case "items":
			return Tuple{d.keys[i-1], d.vals[i-1]}, true, nil
		}
		return d.keys[i-1], true, nil
	}
}

// toSlice drains v into a new slice.
func (in *Interp) toSlice(v Value) ([]Value, error) {
	switch v := v.(type) {
	case *List:
		return append([]Value(nil), v.Items...), nil
	case Tuple:
		return append([]Value(nil), v...), nil
	case *Range:
		n := v.Len()
		if v.Count() > uint64(in.limits.MaxItems) {
			return nil, resourceError("container exceeded %d items", in.limits.MaxItems)
		}
		if err := in.checkItems(int(n)); err != nil {
			return nil, err
		}
		out := make([]Value, n)
		for i := range out {
			out[i] = Int(v.At(int64(i)))
		}
		return out, nil
	}
	next, err := in.iterate(v)
	if err != nil {
		return nil, err
	}
	var out []Value
	for {
		if err := in.tick(); err != nil {
			return nil, err
		}
		item, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			if out == nil {
				out = []Value{}
			}
			return out, nil
		}
		out = append(out, item)
		if len(out) > in.limits.MaxItems {
			return nil, resourceError("container exceeded %d items", in.limits.MaxItems)
		}
	}
}

func (in *Interp) newSetFrom(v Value) (*Set, error) {
	items, err := in.toSlice(v)
	if err != nil {
		return nil, err
	}
	s := NewSet()
	for _, item := range items {
		if err := s.Add(item); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (in *Interp) newDictFrom(v Value) (*Dict, error) {
	if src, ok := v.(*Dict); ok {
		return src.Copy(), nil
	}
	items, err := in.toSlice(v)
	if err != nil {
		return nil, err
	}
	d := NewDict()
	for i, item := range items {
		pair, err := in.toSlice(item)
		if err != nil {
			return nil, typeErrorf("cannot convert dictionary update sequence element #%d to a sequence", i)
		}
		if len(pair) != 2 {
			return nil, newExc(ValueError, "dictionary update sequence element #"+itoa(i)+" has length "+itoa(len(pair))+"; 2 is required")
		}
		if err := d.Set(pair[0], pair[1]); err != nil {
			return nil, err
		}
	}
	return d, nil
}
