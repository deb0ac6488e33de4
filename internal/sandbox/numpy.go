package sandbox

import (
	"math"
	"strconv"
	"strings"
)

// Array element types. Elements are stored as float64 whatever the dtype;
// int64 arrays are exact up to 2^53.
const (
	dtypeFloat = "float64"
	dtypeInt   = "int64"
	dtypeBool  = "bool"
)

// NDArray is a one-dimensional numeric numpy array.
type NDArray struct {
	Data  []float64
	Dtype string
}

func (*NDArray) Type() string { return "numpy.ndarray" }

func newArray(data []float64, dtype string) *NDArray {
	if data == nil {
		data = []float64{}
	}
	return &NDArray{Data: data, Dtype: dtype}
}

func (a *NDArray) item(i int) Value { return scalarOf(a.Data[i], a.Dtype) }

func scalarOf(f float64, dtype string) Value {
	switch dtype {
	case dtypeInt:
		return Int(int64(f))
	case dtypeBool:
		return Bool(f != 0)
	}
	return Float(f)
}

// cast converts f to the representation dtype stores.
func cast(f float64, dtype string) float64 {
	switch dtype {
	case dtypeInt:
		if isInfOrNaN(f) {
			return math.MinInt64
		}
		return math.Trunc(f)
	case dtypeBool:
		if f != 0 {
			return 1
		}
		return 0
	}
	return f
}

const (
	printThreshold = 1000
	printEdgeItems = 3
	printLineWidth = 75
)

// format renders the array like numpy's str (repr false) or repr.
func (a *NDArray) format(repr bool) string {
	prefix, sep, suffix := "[", " ", "]"
	if repr {
		prefix, sep, suffix = "array([", ",", "])"
		if len(a.Data) == 0 {
			suffix = "], dtype=" + a.Dtype + ")"
		}
	}
	if len(a.Data) == 0 {
		return prefix + suffix
	}
	data := a.Data
	summarized := len(data) > printThreshold
	if summarized {
		data = append(append([]float64(nil), data[:printEdgeItems]...), data[len(data)-printEdgeItems:]...)
	}
	words := a.formatWords(data)
	if summarized {
		words = append(words[:printEdgeItems:printEdgeItems], append([]string{"..."}, words[printEdgeItems:]...)...)
	}
	indent := strings.Repeat(" ", len(prefix))
	var lines []string
	line := prefix
	for i, w := range words {
		word := w
		if i < len(words)-1 {
			if repr {
				word += sep
			}
		} else {
			word += suffix
		}
		if len(line)+len(word) > printLineWidth && line != prefix {
			lines = append(lines, strings.TrimRight(line, " "))
			line = indent
		}
		line += word
		if i < len(words)-1 {
			line += " "
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func (a *NDArray) formatWords(data []float64) []string {
	words := make([]string, len(data))
	switch a.Dtype {
	case dtypeBool:
		for i, f := range data {
			if f != 0 {
				words[i] = " True"
			} else {
				words[i] = "False"
			}
		}
		return words
	case dtypeInt:
		width := 0
		for i, f := range data {
			words[i] = strconv.FormatInt(int64(f), 10)
			width = max(width, len(words[i]))
		}
		for i := range words {
			words[i] = strings.Repeat(" ", width-len(words[i])) + words[i]
		}
		return words
	}
	for _, f := range data {
		if !isInfOrNaN(f) && f != 0 && (math.Abs(f) >= 1e16 || math.Abs(f) < 1e-4) {
			for i, f := range data {
				words[i] = strconv.FormatFloat(f, 'e', -1, 64)
			}
			return words
		}
	}
	ints := make([]string, len(data))
	fracs := make([]string, len(data))
	intW, fracW := 0, 0
	for i, f := range data {
		switch {
		case math.IsNaN(f):
			ints[i] = "nan"
		case math.IsInf(f, 1):
			ints[i] = "inf"
		case math.IsInf(f, -1):
			ints[i] = "-inf"
		default:
			s := strconv.FormatFloat(f, 'f', 8, 64)
			s = strings.TrimRight(s, "0")
			ip, fp, _ := strings.Cut(s, ".")
			ints[i], fracs[i] = ip+".", fp
		}
		intW = max(intW, len(ints[i]))
		fracW = max(fracW, len(fracs[i]))
	}
	for i := range data {
		words[i] = strings.Repeat(" ", intW-len(ints[i])) + ints[i] + fracs[i] + strings.Repeat(" ", fracW-len(fracs[i]))
	}
	return words
}

// arrayLike converts v to an array when it is one or a flat sequence of
// numbers. ok is false for scalars.
func (in *Interp) arrayLike(v Value) (*NDArray, bool, error) {
	switch v := v.(type) {
	case *NDArray:
		return v, true, nil
	case *List, Tuple, *Range:
		a, err := in.newArrayFrom(v, "")
		return a, err == nil, err
	}
	return nil, false, nil
}

// newArrayFrom builds an array from an iterable. An empty dtype infers the
// narrowest of bool, int64 and float64 that holds every element.
func (in *Interp) newArrayFrom(v Value, dtype string) (*NDArray, error) {
	if a, ok := v.(*NDArray); ok {
		if dtype == "" || dtype == a.Dtype {
			return newArray(append([]float64(nil), a.Data...), a.Dtype), nil
		}
		return a.astype(dtype), nil
	}
	if f, ok := toFloat(v); ok {
		if dtype == "" {
			dtype = scalarDtype(v)
		}
		return newArray([]float64{cast(f, dtype)}, dtype), nil
	}
	items, err := in.toSlice(v)
	if err != nil {
		return nil, err
	}
	if err := in.checkItems(len(items)); err != nil {
		return nil, err
	}
	data := make([]float64, len(items))
	inferred := dtypeBool
	if len(items) == 0 {
		inferred = dtypeFloat
	}
	for i, item := range items {
		if e, ok := item.(*NDArray); ok && len(e.Data) == 1 {
			item = e.item(0)
		}
		f, ok := toFloat(item)
		if !ok {
			switch item.(type) {
			case *List, Tuple, *NDArray:
				return nil, newExc(ValueError, "only 1-dimensional arrays are supported")
			}
			return nil, typeErrorf("array elements must be numbers, not '%s'", typeName(item))
		}
		data[i] = f
		inferred = widen(inferred, scalarDtype(item))
	}
	if dtype == "" {
		dtype = inferred
	}
	for i := range data {
		data[i] = cast(data[i], dtype)
	}
	return newArray(data, dtype), nil
}

func scalarDtype(v Value) string {
	switch v.(type) {
	case Bool:
		return dtypeBool
	case Int:
		return dtypeInt
	}
	return dtypeFloat
}

func widen(a, b string) string {
	switch {
	case a == dtypeFloat || b == dtypeFloat:
		return dtypeFloat
	case a == dtypeInt || b == dtypeInt:
		return dtypeInt
	}
	return dtypeBool
}

func (a *NDArray) astype(dtype string) *NDArray {
	out := make([]float64, len(a.Data))
	for i, f := range a.Data {
		out[i] = cast(f, dtype)
	}
	return newArray(out, dtype)
}

func (a *NDArray) copy() *NDArray {
	return newArray(append([]float64(nil), a.Data...), a.Dtype)
}

func shapeOf(a *NDArray) Tuple { return Tuple{Int(len(a.Data))} }

func broadcastError(a, b *NDArray) error {
	return newExc(ValueError, "operands could not be broadcast together with shapes ("+itoa(len(a.Data))+",) ("+itoa(len(b.Data))+",) ")
}

// operands resolves both sides of an array operation to arrays of equal
// length, stretching scalars and length-1 arrays.
func (in *Interp) operands(op string, x, y Value) (*NDArray, *NDArray, error) {
	toArr := func(v Value) (*NDArray, error) {
		if a, ok, err := in.arrayLike(v); ok || err != nil {
			return a, err
		}
		if f, ok := toFloat(v); ok {
			return newArray([]float64{f}, scalarDtype(v)), nil
		}
		return nil, binopTypeError(op, x, y)
	}
	a, err := toArr(x)
	if err != nil {
		return nil, nil, err
	}
	b, err := toArr(y)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case len(a.Data) == len(b.Data):
	case len(a.Data) == 1:
		a = newArray(fill(len(b.Data), a.Data[0]), a.Dtype)
	case len(b.Data) == 1:
		b = newArray(fill(len(a.Data), b.Data[0]), b.Dtype)
	default:
		return nil, nil, broadcastError(a, b)
	}
	if err := in.checkItems(len(a.Data)); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func fill(n int, f float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f
	}
	return out
}

func (in *Interp) arrayBinop(op string, x, y Value) (Value, error) {
	a, b, err := in.operands(op, x, y)
	if err != nil {
		return nil, err
	}
	n := len(a.Data)
	out := make([]float64, n)
	dtype := widen(a.Dtype, b.Dtype)
	var fn func(p, q float64) float64
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		for i := range out {
			out[i] = boolFloat(cmpFloat(op, a.Data[i], b.Data[i]))
		}
		return newArray(out, dtypeBool), nil
	case "+":
		fn = func(p, q float64) float64 { return p + q }
		if dtype == dtypeBool {
			fn = func(p, q float64) float64 { return boolFloat(p != 0 || q != 0) }
		}
	case "-":
		if dtype == dtypeBool {
			return nil, typeErrorf("numpy boolean subtract, the `-` operator, is not supported, use the bitwise_xor, the `^` operator, or the logical_xor function instead.")
		}
		fn = func(p, q float64) float64 { return p - q }
	case "*":
		fn = func(p, q float64) float64 { return p * q }
		if dtype == dtypeBool {
			fn = func(p, q float64) float64 { return boolFloat(p != 0 && q != 0) }
		}
	case "/":
		dtype = dtypeFloat
		fn = func(p, q float64) float64 { return p / q }
	case "//":
		if dtype == dtypeBool {
			dtype = dtypeInt
		}
		fn = func(p, q float64) float64 {
			if q == 0 && dtype == dtypeInt {
				return 0
			}
			return math.Floor(p / q)
		}
	case "%":
		if dtype == dtypeBool {
			dtype = dtypeInt
		}
		fn = func(p, q float64) float64 {
			if q == 0 && dtype == dtypeInt {
				return 0
			}
			return pyFmod(p, q)
		}
	case "**":
		if dtype == dtypeBool {
			dtype = dtypeInt
		}
		if dtype == dtypeInt {
			for _, q := range b.Data {
				if q < 0 {
					return nil, newExc(ValueError, "Integers to negative integer powers are not allowed.")
				}
			}
		}
		fn = math.Pow
	case "&", "|", "^":
		if dtype == dtypeFloat {
			return nil, typeErrorf("ufunc 'bitwise_%s' not supported for the input types", map[string]string{"&": "and", "|": "or", "^": "xor"}[op])
		}
		fn = func(p, q float64) float64 {
			x, y := int64(p), int64(q)
			switch op {
			case "&":
				return float64(x & y)
			case "|":
				return float64(x | y)
			}
			return float64(x ^ y)
		}
	default:
		return nil, binopTypeError(op, x, y)
	}
	for i := range out {
		out[i] = cast(fn(a.Data[i], b.Data[i]), dtype)
	}
	if err := in.charge(int64(n / 16)); err != nil {
		return nil, err
	}
	return newArray(out, dtype), nil
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func cmpFloat(op string, p, q float64) bool {
	switch op {
	case "==":
		return p == q
	case "!=":
		return p != q
	case "<":
		return p < q
	case "<=":
		return p <= q
	case ">":
		return p > q
	}
	return p >= q
}

func (in *Interp) arrayUnary(op string, a *NDArray) (Value, error) {
	out := make([]float64, len(a.Data))
	dtype := a.Dtype
	switch op {
	case "-":
		if dtype == dtypeBool {
			return nil, typeErrorf("The numpy boolean negative, the `-` operator, is not supported, use the `~` operator or the logical_not function instead.")
		}
		for i, f := range a.Data {
			out[i] = -f
		}
	case "+":
		copy(out, a.Data)
	case "abs":
		for i, f := range a.Data {
			out[i] = math.Abs(f)
		}
	case "~":
		switch dtype {
		case dtypeBool:
			for i, f := range a.Data {
				out[i] = boolFloat(f == 0)
			}
		case dtypeInt:
			for i, f := range a.Data {
				out[i] = float64(^int64(f))
			}
		default:
			return nil, typeErrorf("ufunc 'invert' not supported for the input types")
		}
	default:
		return nil, typeErrorf("bad operand type for unary %s: 'numpy.ndarray'", op)
	}
	return newArray(out, dtype), nil
}

func (in *Interp) arrayRound(a *NDArray, nd Value) (Value, error) {
	digits := int64(0)
	if nd != nil && nd != None {
		var err error
		if digits, err = indexArg(nd); err != nil {
			return nil, err
		}
	}
	out := make([]float64, len(a.Data))
	p := math.Pow10(int(digits))
	for i, f := range a.Data {
		if a.Dtype == dtypeFloat {
			out[i] = math.RoundToEven(f*p) / p
		} else {
			out[i] = f
		}
	}
	return newArray(out, a.Dtype), nil
}

// indexSet resolves an array index to element positions. Integer indexes
// report scalar so the caller returns an element instead of an array.
func (in *Interp) indexSet(a *NDArray, idx Value) (pos []int, scalar bool, err error) {
	n := len(a.Data)
	switch ix := idx.(type) {
	case *SliceValue:
		start, stop, step, err := sliceIndices(ix, n)
		if err != nil {
			return nil, false, err
		}
		for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
			pos = append(pos, i)
		}
		return pos, false, nil
	case Tuple:
		if len(ix) == 1 {
			return in.indexSet(a, ix[0])
		}
		return nil, false, newExc(IndexError, "too many indices for array: array is 1-dimensional, but "+itoa(len(ix))+" were indexed")
	case Int:
		i, err := arrayIndex(int64(ix), n)
		return []int{i}, true, err
	}
	mask, ok, err := in.arrayLike(idx)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, newExc(IndexError, "only integers, slices (`:`), ellipsis (`...`), numpy.newaxis (`None`) and integer or boolean arrays are valid indices")
	}
	switch mask.Dtype {
	case dtypeBool:
		if len(mask.Data) != n {
			return nil, false, newExc(IndexError, "boolean index did not match indexed array along axis 0; size of axis is "+itoa(n)+" but size of corresponding boolean axis is "+itoa(len(mask.Data)))
		}
		pos = []int{}
		for i, f := range mask.Data {
			if f != 0 {
				pos = append(pos, i)
			}
		}
		return pos, false, nil
	case dtypeInt:
		pos = make([]int, len(mask.Data))
		for i, f := range mask.Data {
			if pos[i], err = arrayIndex(int64(f), n); err != nil {
				return nil, false, err
			}
		}
		return pos, false, nil
	}
	return nil, false, newExc(IndexError, "arrays used as indices must be of integer (or boolean) type")
}

func arrayIndex(i int64, n int) (int, error) {
	j := i
	if j < 0 {
		j += int64(n)
	}
	if j < 0 || j >= int64(n) {
		return 0, newExc(IndexError, "index "+strconv.FormatInt(i, 10)+" is out of bounds for axis 0 with size "+itoa(n))
	}
	return int(j), nil
}

func (in *Interp) arrayGet(a *NDArray, idx Value) (Value, error) {
	if b, ok := idx.(Bool); ok {
		idx = Int(fromBoolInt(b))
	}
	pos, scalar, err := in.indexSet(a, idx)
	if err != nil {
		return nil, err
	}
	if scalar {
		return a.item(pos[0]), nil
	}
	out := make([]float64, len(pos))
	for i, p := range pos {
		out[i] = a.Data[p]
	}
	return newArray(out, a.Dtype), nil
}

func fromBoolInt(b Bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (in *Interp) arraySet(a *NDArray, idx, v Value) error {
	pos, _, err := in.indexSet(a, idx)
	if err != nil {
		return err
	}
	if f, ok := toFloat(v); ok {
		for _, p := range pos {
			a.Data[p] = cast(f, a.Dtype)
		}
		return nil
	}
	src, ok, err := in.arrayLike(v)
	if err != nil {
		return err
	}
	if !ok {
		return typeErrorf("float() argument must be a string or a real number, not '%s'", typeName(v))
	}
	switch len(src.Data) {
	case len(pos):
		for i, p := range pos {
			a.Data[p] = cast(src.Data[i], a.Dtype)
		}
	case 1:
		for _, p := range pos {
			a.Data[p] = cast(src.Data[0], a.Dtype)
		}
	default:
		return newExc(ValueError, "could not broadcast input array from shape ("+itoa(len(src.Data))+",) into shape ("+itoa(len(pos))+",)")
	}
	return nil
}

func (in *Interp) arrayAttr(a *NDArray, name string) (Value, error) {
	switch name {
	case "shape":
		return shapeOf(a), nil
	case "size":
		return Int(len(a.Data)), nil
	case "ndim":
		return Int(1), nil
	case "dtype":
		return Str(a.Dtype), nil
	case "T":
		return a, nil
	}
	if fn, ok := arrayReduction(name); ok {
		return method("numpy.ndarray", name, func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			return fn(in, append([]Value{a}, args...), kwargs)
		}), nil
	}
	m := func(fn goFunc) (Value, error) { return method("numpy.ndarray", name, fn), nil }
	switch name {
	case "tolist":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			out := make([]Value, len(a.Data))
			for i := range out {
				out[i] = a.item(i)
			}
			return NewList(out), nil
		})
	case "copy", "flatten", "ravel":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) { return a.copy(), nil })
	case "astype":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs("astype", args, kwargs, []string{"dtype"}, 1)
			if err != nil {
				return nil, err
			}
			dt, err := dtypeOf(p[0])
			if err != nil {
				return nil, err
			}
			return a.astype(dt), nil
		})
	case "reshape":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if len(args) == 1 {
				if t, ok := args[0].(Tuple); ok {
					args = t
				}
			}
			if len(args) == 1 {
				if n, ok := toInt(args[0]); ok && (n == -1 || n == int64(len(a.Data))) {
					return a.copy(), nil
				}
			}
			return nil, newExc(ValueError, "only 1-dimensional arrays are supported")
		})
	case "sort":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			sortFloats(a.Data)
			return None, nil
		})
	case "fill":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			p, err := bindArgs("fill", args, kwargs, []string{"value"}, 1)
			if err != nil {
				return nil, err
			}
			f, err := realArg(p[0])
			if err != nil {
				return nil, err
			}
			for i := range a.Data {
				a.Data[i] = cast(f, a.Dtype)
			}
			return None, nil
		})
	case "item":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			if len(args) == 0 {
				if len(a.Data) != 1 {
					return nil, newExc(ValueError, "can only convert an array of size 1 to a Python scalar")
				}
				return a.item(0), nil
			}
			i, err := indexArg(args[0])
			if err != nil {
				return nil, err
			}
			j, err := arrayIndex(i, len(a.Data))
			if err != nil {
				return nil, err
			}
			return a.item(j), nil
		})
	case "dot":
		return m(func(in *Interp, args []Value, kwargs []KV) (Value, error) {
			return npDot(in, append([]Value{a}, args...), kwargs)
		})
	}
	return nil, newExc(AttributeError, "'numpy.ndarray' object has no attribute '"+name+"'")
}
