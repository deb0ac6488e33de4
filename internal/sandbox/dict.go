package sandbox

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type hashKey string

// keyOf derives the identity used for dict keys and set members. Values
// that compare equal in Python (1, 1.0 and True) share a key.
func keyOf(v Value) (hashKey, error) { return keyAt(v, 0) }

func keyAt(v Value, depth int) (hashKey, error) {
	if depth > maxNesting {
		return "", newExc(RecursionError, "maximum recursion depth exceeded while hashing")
	}
	switch v := v.(type) {
	case noneType:
		return "n", nil
	case Bool:
		if v {
			return "i1", nil
		}
		return "i0", nil
	case Int:
		return hashKey("i" + strconv.FormatInt(int64(v), 10)), nil
	case Float:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 9.2e18 {
			return hashKey("i" + strconv.FormatInt(int64(f), 10)), nil
		}
		return hashKey("f" + strconv.FormatUint(math.Float64bits(f), 16)), nil
	case Str:
		return hashKey("s" + string(v)), nil
	case Tuple:
		var b strings.Builder
		b.WriteString("t(")
		for _, item := range v {
			k, err := keyAt(item, depth+1)
			if err != nil {
				return "", err
			}
			b.WriteString(strconv.Itoa(len(k)))
			b.WriteByte(':')
			b.WriteString(string(k))
		}
		b.WriteByte(')')
		return hashKey(b.String()), nil
	case *List, *Dict, *Set, *NDArray, *DictView:
		return "", newExc(TypeError, fmt.Sprintf("unhashable type: '%s'", v.Type()))
	}
	return hashKey(fmt.Sprintf("p%p", v)), nil
}

// Dict is an insertion-ordered mapping.
type Dict struct {
	keys  []Value
	vals  []Value
	index map[hashKey]int
}

func (*Dict) Type() string { return "dict" }

func NewDict() *Dict { return &Dict{index: map[hashKey]int{}} }

func (d *Dict) Len() int { return len(d.keys) }

func (d *Dict) Get(k Value) (Value, bool, error) {
	hk, err := keyOf(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[hk]
	if !ok {
		return nil, false, nil
	}
	return d.vals[i], true, nil
}

func (d *Dict) Set(k, v Value) error {
	hk, err := keyOf(k)
	if err != nil {
		return err
	}
	if i, ok := d.index[hk]; ok {
		d.vals[i] = v
		return nil
	}
	d.index[hk] = len(d.keys)
	d.keys = append(d.keys, k)
	d.vals = append(d.vals, v)
	return nil
}

func (d *Dict) Delete(k Value) (Value, bool, error) {
	hk, err := keyOf(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[hk]
	if !ok {
		return nil, false, nil
	}
	v := d.vals[i]
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	delete(d.index, hk)
	for key, j := range d.index {
		if j > i {
			d.index[key] = j - 1
		}
	}
	return v, true, nil
}

// Keys returns a snapshot of the keys in insertion order.
func (d *Dict) Keys() []Value { return append([]Value(nil), d.keys...) }

// Values returns a snapshot of the values in insertion order.
func (d *Dict) Values() []Value { return append([]Value(nil), d.vals...) }

func (d *Dict) Copy() *Dict {
	c := &Dict{
		keys:  append([]Value(nil), d.keys...),
		vals:  append([]Value(nil), d.vals...),
		index: make(map[hashKey]int, len(d.index)),
	}
	for k, i := range d.index {
		c.index[k] = i
	}
	return c
}

func (d *Dict) Clear() {
	d.keys, d.vals = nil, nil
	d.index = map[hashKey]int{}
}

// Set is an insertion-ordered set.
type Set struct {
	items []Value
	index map[hashKey]int
}

func (*Set) Type() string { return "set" }

func NewSet() *Set { return &Set{index: map[hashKey]int{}} }

func (s *Set) Len() int { return len(s.items) }

func (s *Set) Has(v Value) (bool, error) {
	hk, err := keyOf(v)
	if err != nil {
		return false, err
	}
	_, ok := s.index[hk]
	return ok, nil
}

func (s *Set) Add(v Value) error {
	hk, err := keyOf(v)
	if err != nil {
		return err
	}
	if _, ok := s.index[hk]; ok {
		return nil
	}
	s.index[hk] = len(s.items)
	s.items = append(s.items, v)
	return nil
}

func (s *Set) Remove(v Value) (bool, error) {
	hk, err := keyOf(v)
	if err != nil {
		return false, err
	}
	i, ok := s.index[hk]
	if !ok {
		return false, nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, hk)
	for key, j := range s.index {
		if j > i {
			s.index[key] = j - 1
		}
	}
	return true, nil
}

// Items returns a snapshot of the members in insertion order.
func (s *Set) Items() []Value { return append([]Value(nil), s.items...) }

func (s *Set) Copy() *Set {
	c := NewSet()
	for _, v := range s.items {
		_ = c.Add(v)
	}
	return c
}

func (s *Set) Clear() {
	s.items = nil
	s.index = map[hashKey]int{}
}
