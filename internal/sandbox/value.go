package sandbox

import (
	"math"

	"github.com/sakif/pygate/internal/script"
)

// Value is any runtime value a snippet can hold. The set of implementations
// is closed: there is no way for a snippet to define a new type or to reach
// a Go value that is not one of these.
type Value interface {
	Type() string
}

type noneType struct{}

func (noneType) Type() string { return "NoneType" }

// None is the single None value.
var None Value = noneType{}

type (
	Bool  bool
	Int   int64
	Float float64
	Str   string
)

func (Bool) Type() string  { return "bool" }
func (Int) Type() string   { return "int" }
func (Float) Type() string { return "float" }
func (Str) Type() string   { return "str" }

type List struct {
	Items []Value
}

func (*List) Type() string { return "list" }

func NewList(items []Value) *List { return &List{Items: items} }

type Tuple []Value

func (Tuple) Type() string { return "tuple" }

type ellipsisType struct{}

func (ellipsisType) Type() string { return "ellipsis" }

var Ellipsis Value = ellipsisType{}

// Range is a lazy arithmetic progression.
type Range struct {
	Start, Stop, Step int64
}

func (*Range) Type() string { return "range" }

// Count is the exact number of elements. It exceeds math.MaxInt64 only
// for ranges spanning more than half of the int64 domain.
func (r *Range) Count() uint64 {
	switch {
	case r.Step > 0 && r.Start < r.Stop:
		return (uint64(r.Stop)-uint64(r.Start)-1)/uint64(r.Step) + 1
	case r.Step < 0 && r.Start > r.Stop:
		return (uint64(r.Start)-uint64(r.Stop)-1)/(-uint64(r.Step)) + 1
	}
	return 0
}

// Len is Count clamped to math.MaxInt64.
func (r *Range) Len() int64 {
	if n := r.Count(); n <= math.MaxInt64 {
		return int64(n)
	}
	return math.MaxInt64
}

// CheckedLen is what len() reports: an OverflowError when Count does
// not fit in an int64.
func (r *Range) CheckedLen() (int64, error) {
	n := r.Count()
	if n > math.MaxInt64 {
		return 0, newExc(OverflowError, "Python int too large to convert to C ssize_t")
	}
	return int64(n), nil
}

// At returns element i. Wrapping int64 arithmetic keeps the result exact
// for every 0 <= i < Count.
func (r *Range) At(i int64) int64 { return r.Start + i*r.Step }

// offset reports how many steps n lies after Start, and false when n is
// not an element.
func (r *Range) offset(n int64) (uint64, bool) {
	var dist, step uint64
	if r.Step > 0 {
		if n < r.Start || n >= r.Stop {
			return 0, false
		}
		dist, step = uint64(n)-uint64(r.Start), uint64(r.Step)
	} else {
		if n > r.Start || n <= r.Stop {
			return 0, false
		}
		dist, step = uint64(r.Start)-uint64(n), -uint64(r.Step)
	}
	if dist%step != 0 {
		return 0, false
	}
	return dist / step, true
}

// Function is a snippet-defined function or lambda.
type Function struct {
	Name     string
	Params   *script.Params
	Defaults []Value // aligned with Params.Args; nil entries have no default
	KwDefs   []Value // aligned with Params.KwOnly
	Body     []script.Stmt
	Expr     script.Expr // lambda body
	Closure  *Scope
	info     *scopeInfo
}

func (*Function) Type() string { return "function" }

// KV is one keyword argument.
type KV struct {
	Name  string
	Value Value
}

// Builtin is a Go-implemented callable. Methods are builtins bound to a
// receiver through a closure; Owner names the receiver type for repr.
type Builtin struct {
	Name  string
	Owner string
	Fn    func(in *Interp, args []Value, kwargs []KV) (Value, error)
}

func (*Builtin) Type() string { return "builtin_function_or_method" }

// Class is a builtin type such as int or list. Calling it constructs a
// value; isinstance uses Match.
type Class struct {
	Name  string
	Call  func(in *Interp, args []Value, kwargs []KV) (Value, error)
	Match func(v Value) bool
}

func (*Class) Type() string { return "type" }

// Module is an imported module instance. Each run builds its own.
type Module struct {
	Name  string
	Attrs map[string]Value
}

func (*Module) Type() string { return "module" }

func newModule(name string) *Module {
	return &Module{Name: name, Attrs: map[string]Value{}}
}

// Iterator is a one-shot iterator such as a map, zip or generator object.
type Iterator struct {
	Kind string
	next func() (Value, bool, error)
}

func (*Iterator) Type() string { return "iterator" }

// Opaque is a value with a fixed repr and no behaviour, such as the line
// handles returned by plotting calls.
type Opaque struct {
	TypeName string
	Repr     string
}

func (o *Opaque) Type() string { return o.TypeName }

// DictView is the result of dict.keys(), dict.values() or dict.items().
type DictView struct {
	Dict *Dict
	Kind string // "keys", "values" or "items"
}

func (v *DictView) Type() string { return "dict_" + v.Kind }

func typeName(v Value) string {
	if v == nil {
		return "NoneType"
	}
	return v.Type()
}

// truthy implements Python truth testing.
func (in *Interp) truthy(v Value) (bool, error) {
	switch v := v.(type) {
	case noneType:
		return false, nil
	case Bool:
		return bool(v), nil
	case Int:
		return v != 0, nil
	case Float:
		return v != 0, nil
	case Str:
		return v != "", nil
	case *List:
		return len(v.Items) > 0, nil
	case Tuple:
		return len(v) > 0, nil
	case *Dict:
		return v.Len() > 0, nil
	case *Set:
		return v.Len() > 0, nil
	case *Range:
		return v.Len() > 0, nil
	case *DictView:
		return v.Dict.Len() > 0, nil
	case *NDArray:
		if len(v.Data) == 1 {
			return v.Data[0] != 0, nil
		}
		if len(v.Data) == 0 {
			return false, nil
		}
		return false, newExc(ValueError, "The truth value of an array with more than one element is ambiguous. Use a.any() or a.all()")
	}
	return true, nil
}

// toFloat converts numeric values. ok is false for non-numbers.
func toFloat(v Value) (float64, bool) {
	switch v := v.(type) {
	case Int:
		return float64(v), true
	case Float:
		return float64(v), true
	case Bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// toInt converts int-like values (int and bool).
func toInt(v Value) (int64, bool) {
	switch v := v.(type) {
	case Int:
		return int64(v), true
	case Bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isNumber(v Value) bool {
	_, ok := toFloat(v)
	return ok
}

func fromBool(b bool) Value { return Bool(b) }

// floatToInt truncates f toward zero, failing for values int64 cannot hold.
func floatToInt(f float64) (Int, error) {
	if math.IsNaN(f) {
		return 0, newExc(ValueError, "cannot convert float NaN to integer")
	}
	if math.IsInf(f, 0) {
		return 0, newExc(OverflowError, "cannot convert float infinity to integer")
	}
	t := math.Trunc(f)
	if t >= 9.223372036854775807e18 || t < -9.223372036854775808e18 {
		return 0, newExc(OverflowError, "int too large to convert")
	}
	return Int(t), nil
}
