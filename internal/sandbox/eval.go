package sandbox

import (
	"strings"

	"github.com/sakif/pygate/internal/script"
)

// SliceValue is the evaluated form of a[lower:upper:step].
type SliceValue struct {
	Lower, Upper, Step Value
}

func (*SliceValue) Type() string { return "slice" }

func constValue(c any) Value {
	switch c := c.(type) {
	case nil:
		return None
	case bool:
		return Bool(c)
	case int64:
		return Int(c)
	case float64:
		return Float(c)
	case string:
		return Str(c)
	}
	if c == script.Ellipsis {
		return Ellipsis
	}
	return None
}

func (in *Interp) eval(s *Scope, e script.Expr) (Value, error) {
	switch e := e.(type) {
	case *script.Name:
		return in.lookup(s, e.ID)
	case *script.Constant:
		return constValue(e.Value), nil
	case *script.JoinedStr:
		return in.joined(s, e)
	case *script.Attribute:
		obj, err := in.eval(s, e.Value)
		if err != nil {
			return nil, err
		}
		return in.getAttr(obj, e.Attr)
	case *script.Subscript:
		obj, err := in.eval(s, e.Value)
		if err != nil {
			return nil, err
		}
		idx, err := in.evalIndex(s, e.Index)
		if err != nil {
			return nil, err
		}
		return in.getItem(obj, idx)
	case *script.Call:
		return in.evalCall(s, e)
	case *script.BinOp:
		l, err := in.eval(s, e.Left)
		if err != nil {
			return nil, err
		}
		r, err := in.eval(s, e.Right)
		if err != nil {
			return nil, err
		}
		return in.binop(e.Op, l, r)
	case *script.UnaryOp:
		v, err := in.eval(s, e.Operand)
		if err != nil {
			return nil, err
		}
		return in.unary(e.Op, v)
	case *script.BoolOp:
		var v Value
		for _, x := range e.Values {
			var err error
			if v, err = in.eval(s, x); err != nil {
				return nil, err
			}
			t, err := in.truthy(v)
			if err != nil {
				return nil, err
			}
			if t == (e.Op == "or") {
				return v, nil
			}
		}
		return v, nil
	case *script.Compare:
		return in.compareChain(s, e)
	case *script.IfExp:
		ok, err := in.test(s, e.Test)
		if err != nil {
			return nil, err
		}
		if ok {
			return in.eval(s, e.Body)
		}
		return in.eval(s, e.OrElse)
	case *script.Lambda:
		return in.makeFunction(s, "<lambda>", e.Params, nil, e.Body)
	case *script.List:
		items, err := in.evalElts(s, e.Elts)
		if err != nil {
			return nil, err
		}
		return NewList(items), nil
	case *script.Tuple:
		items, err := in.evalElts(s, e.Elts)
		if err != nil {
			return nil, err
		}
		return Tuple(items), nil
	case *script.Set:
		items, err := in.evalElts(s, e.Elts)
		if err != nil {
			return nil, err
		}
		set := NewSet()
		for _, v := range items {
			if err := set.Add(v); err != nil {
				return nil, err
			}
		}
		return set, nil
	case *script.Dict:
		return in.evalDict(s, e)
	case *script.ListComp:
		it := in.comprehension(s, e.Generators, func(cs *Scope) (Value, error) { return in.eval(cs, e.Elt) })
		items, err := in.toSlice(it)
		if err != nil {
			return nil, err
		}
		return NewList(items), nil
	case *script.SetComp:
		it := in.comprehension(s, e.Generators, func(cs *Scope) (Value, error) { return in.eval(cs, e.Elt) })
		return in.newSetFrom(it)
	case *script.DictComp:
		it := in.comprehension(s, e.Generators, func(cs *Scope) (Value, error) {
			k, err := in.eval(cs, e.Key)
			if err != nil {
				return nil, err
			}
			v, err := in.eval(cs, e.Value)
			if err != nil {
				return nil, err
			}
			return Tuple{k, v}, nil
		})
		d := NewDict()
		next, _ := in.iterate(it)
		for {
			kv, ok, err := next()
			if err != nil {
				return nil, err
			}
			if !ok {
				return d, nil
			}
			pair := kv.(Tuple)
			if err := d.Set(pair[0], pair[1]); err != nil {
				return nil, err
			}
			if err := in.checkItems(d.Len()); err != nil {
				return nil, err
			}
		}
	case *script.GeneratorExp:
		return in.comprehension(s, e.Generators, func(cs *Scope) (Value, error) { return in.eval(cs, e.Elt) }), nil
	case *script.Starred:
		return nil, newExc(RuntimeError, "can't use starred expression here")
	case *script.Slice:
		return in.evalIndex(s, e)
	}
	return nil, newExc(RuntimeError, "unsupported expression")
}

func (in *Interp) evalElts(s *Scope, elts []script.Expr) ([]Value, error) {
	items := make([]Value, 0, len(elts))
	for _, x := range elts {
		if st, ok := x.(*script.Starred); ok {
			v, err := in.eval(s, st.Value)
			if err != nil {
				return nil, err
			}
			more, err := in.toSlice(v)
			if err != nil {
				return nil, err
			}
			items = append(items, more...)
			if err := in.checkItems(len(items)); err != nil {
				return nil, err
			}
			continue
		}
		v, err := in.eval(s, x)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func (in *Interp) evalDict(s *Scope, e *script.Dict) (Value, error) {
	d := NewDict()
	for i, kx := range e.Keys {
		v, err := in.eval(s, e.Values[i])
		if err != nil {
			return nil, err
		}
		if kx == nil {
			src, ok := v.(*Dict)
			if !ok {
				return nil, typeErrorf("'%s' object is not a mapping", typeName(v))
			}
			for j, k := range src.keys {
				if err := d.Set(k, src.vals[j]); err != nil {
					return nil, err
				}
			}
			continue
		}
		k, err := in.eval(s, kx)
		if err != nil {
			return nil, err
		}
		if err := d.Set(k, v); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// evalIndex evaluates a subscript, keeping slices as SliceValue.
func (in *Interp) evalIndex(s *Scope, e script.Expr) (Value, error) {
	switch e := e.(type) {
	case *script.Slice:
		sv := &SliceValue{Lower: None, Upper: None, Step: None}
		for _, part := range []struct {
			x   script.Expr
			dst *Value
		}{{e.Lower, &sv.Lower}, {e.Upper, &sv.Upper}, {e.Step, &sv.Step}} {
			if part.x == nil {
				continue
			}
			v, err := in.eval(s, part.x)
			if err != nil {
				return nil, err
			}
			*part.dst = v
		}
		return sv, nil
	case *script.Tuple:
		items := make(Tuple, len(e.Elts))
		for i, x := range e.Elts {
			v, err := in.evalIndex(s, x)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	}
	return in.eval(s, e)
}

func (in *Interp) joined(s *Scope, e *script.JoinedStr) (Value, error) {
	var b strings.Builder
	for _, part := range e.Values {
		switch p := part.(type) {
		case *script.Constant:
			b.WriteString(p.Value.(string))
		case *script.FormattedValue:
			v, err := in.eval(s, p.Value)
			if err != nil {
				return nil, err
			}
			switch p.Conversion {
			case 'r', 'a':
				v = Str(reprValue(v))
			case 's':
				v = Str(strValue(v))
			}
			spec := ""
			if p.FormatSpec != nil {
				sv, err := in.eval(s, p.FormatSpec)
				if err != nil {
					return nil, err
				}
				spec = strValue(sv)
			}
			out, err := formatValue(v, spec)
			if err != nil {
				return nil, err
			}
			b.WriteString(out)
		}
		if err := in.checkStr(b.Len()); err != nil {
			return nil, err
		}
	}
	return Str(b.String()), nil
}

func (in *Interp) compareChain(s *Scope, e *script.Compare) (Value, error) {
	left, err := in.eval(s, e.Left)
	if err != nil {
		return nil, err
	}
	var result Value = Bool(true)
	for i, op := range e.Ops {
		right, err := in.eval(s, e.Comparators[i])
		if err != nil {
			return nil, err
		}
		if result, err = in.compare(op, left, right); err != nil {
			return nil, err
		}
		if i < len(e.Ops)-1 {
			ok, err := in.truthy(result)
			if err != nil {
				return nil, err
			}
			if !ok {
				return result, nil
			}
		}
		left = right
	}
	return result, nil
}

// comprehension returns a lazy iterator over the values produced by elt
// for each binding of the generators. The first iterable is evaluated
// eagerly in the enclosing scope; everything else runs in a fresh scope
// that holds the loop targets.
func (in *Interp) comprehension(s *Scope, gens []script.Comprehension, elt func(cs *Scope) (Value, error)) Value {
	info := &scopeInfo{locals: map[string]bool{}, globals: map[string]bool{}, nonlocals: map[string]bool{}}
	for _, g := range gens {
		for name := range analyze(nil, []script.Stmt{&script.Assign{Targets: []script.Expr{g.Target}, Value: g.Iter}}).locals {
			info.locals[name] = true
		}
	}
	cs := &Scope{vars: map[string]Value{}, parent: s, info: info}

	var nexts []func() (Value, bool, error)
	first, err := in.eval(s, gens[0].Iter)
	if err == nil {
		var next0 func() (Value, bool, error)
		if next0, err = in.iterate(first); err == nil {
			nexts = append(nexts, next0)
		}
	}
	pending := err
	next := func() (Value, bool, error) {
		if pending != nil {
			err := pending
			pending = nil
			return nil, false, err
		}
		for len(nexts) > 0 {
			if err := in.tick(); err != nil {
				return nil, false, err
			}
			lvl := len(nexts) - 1
			v, ok, err := nexts[lvl]()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				nexts = nexts[:lvl]
				continue
			}
			g := gens[lvl]
			if err := in.assign(cs, g.Target, v); err != nil {
				return nil, false, err
			}
			pass := true
			for _, cond := range g.Ifs {
				ok, err := in.test(cs, cond)
				if err != nil {
					return nil, false, err
				}
				if !ok {
					pass = false
					break
				}
			}
			if !pass {
				continue
			}
			if lvl+1 < len(gens) {
				it, err := in.eval(cs, gens[lvl+1].Iter)
				if err != nil {
					return nil, false, err
				}
				n, err := in.iterate(it)
				if err != nil {
					return nil, false, err
				}
				nexts = append(nexts, n)
				continue
			}
			out, err := elt(cs)
			if err != nil {
				return nil, false, err
			}
			return out, true, nil
		}
		return nil, false, nil
	}
	return &Iterator{Kind: "generator", next: next}
}

func (in *Interp) evalCall(s *Scope, c *script.Call) (Value, error) {
	fn, err := in.eval(s, c.Func)
	if err != nil {
		return nil, err
	}
	args, err := in.evalElts(s, c.Args)
	if err != nil {
		return nil, err
	}
	var kwargs []KV
	add := func(name string, v Value) error {
		for _, kw := range kwargs {
			if kw.Name == name {
				return typeErrorf("%s got multiple values for keyword argument '%s'", callableName(fn), name)
			}
		}
		kwargs = append(kwargs, KV{Name: name, Value: v})
		return nil
	}
	for _, k := range c.Keywords {
		v, err := in.eval(s, k.Value)
		if err != nil {
			return nil, err
		}
		if k.Name != "" {
			if err := add(k.Name, v); err != nil {
				return nil, err
			}
			continue
		}
		d, ok := v.(*Dict)
		if !ok {
			return nil, typeErrorf("%s argument after ** must be a mapping, not %s", callableName(fn), typeName(v))
		}
		for i, key := range d.keys {
			name, ok := key.(Str)
			if !ok {
				return nil, typeErrorf("keywords must be strings")
			}
			if err := add(string(name), d.vals[i]); err != nil {
				return nil, err
			}
		}
	}
	return in.call(fn, args, kwargs)
}

func callableName(fn Value) string {
	switch f := fn.(type) {
	case *Function:
		return f.Name + "()"
	case *Builtin:
		return f.Name + "()"
	case *Class:
		return f.Name + "()"
	case *ExcClass:
		return f.Name + "()"
	}
	return typeName(fn) + "()"
}

func (in *Interp) call(fn Value, args []Value, kwargs []KV) (Value, error) {
	if err := in.tick(); err != nil {
		return nil, err
	}
	switch f := fn.(type) {
	case *Function:
		return in.callFunction(f, args, kwargs)
	case *Builtin:
		return f.Fn(in, args, kwargs)
	case *Class:
		return f.Call(in, args, kwargs)
	case *ExcClass:
		if len(kwargs) > 0 {
			return nil, typeErrorf("%s() takes no keyword arguments", f.Name)
		}
		return &Exception{Class: f, Args: append([]Value(nil), args...)}, nil
	}
	return nil, typeErrorf("'%s' object is not callable", typeName(fn))
}

func (in *Interp) callFunction(f *Function, args []Value, kwargs []KV) (Value, error) {
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > in.limits.MaxDepth {
		return nil, newExc(RecursionError, "maximum recursion depth exceeded")
	}
	vars, err := bind(f, args, kwargs)
	if err != nil {
		return nil, err
	}
	s := &Scope{vars: vars, parent: f.Closure, info: f.info}
	if f.Expr != nil {
		return in.eval(s, f.Expr)
	}
	switch err := in.execBlock(s, f.Body); err := err.(type) {
	case nil:
		return None, nil
	case *returnSignal:
		return err.value, nil
	default:
		return nil, err
	}
}

func bind(f *Function, args []Value, kwargs []KV) (map[string]Value, error) {
	p := f.Params
	vars := make(map[string]Value, len(p.Args)+len(p.KwOnly)+2)
	n := len(p.Args)
	if len(args) > n && p.VarArg == nil {
		return nil, tooManyPositional(f, len(args))
	}
	for i := 0; i < len(args) && i < n; i++ {
		vars[p.Args[i].Name] = args[i]
	}
	if p.VarArg != nil {
		var extra Tuple
		if len(args) > n {
			extra = append(extra, args[n:]...)
		}
		if extra == nil {
			extra = Tuple{}
		}
		vars[p.VarArg.Name] = extra
	}
	var kwd *Dict
	if p.KwArg != nil {
		kwd = NewDict()
		vars[p.KwArg.Name] = kwd
	}
kw:
	for _, kv := range kwargs {
		for i, a := range p.Args {
			if a.Name == kv.Name {
				if i < len(args) {
					return nil, typeErrorf("%s() got multiple values for argument '%s'", f.Name, kv.Name)
				}
				vars[kv.Name] = kv.Value
				continue kw
			}
		}
		for _, a := range p.KwOnly {
			if a.Name == kv.Name {
				vars[kv.Name] = kv.Value
				continue kw
			}
		}
		if kwd == nil {
			return nil, typeErrorf("%s() got an unexpected keyword argument '%s'", f.Name, kv.Name)
		}
		if err := kwd.Set(Str(kv.Name), kv.Value); err != nil {
			return nil, err
		}
	}
	var missing []string
	for i, a := range p.Args {
		if _, ok := vars[a.Name]; ok {
			continue
		}
		if f.Defaults[i] != nil {
			vars[a.Name] = f.Defaults[i]
			continue
		}
		missing = append(missing, a.Name)
	}
	if len(missing) > 0 {
		return nil, missingArgs(f.Name, "positional", missing)
	}
	for i, a := range p.KwOnly {
		if _, ok := vars[a.Name]; ok {
			continue
		}
		if f.KwDefs[i] != nil {
			vars[a.Name] = f.KwDefs[i]
			continue
		}
		missing = append(missing, a.Name)
	}
	if len(missing) > 0 {
		return nil, missingArgs(f.Name, "keyword-only", missing)
	}
	return vars, nil
}

func tooManyPositional(f *Function, given int) error {
	n := len(f.Params.Args)
	required := 0
	for _, d := range f.Defaults {
		if d == nil {
			required++
		}
	}
	takes := plural(n, "positional argument")
	if required < n {
		takes = "from " + itoa(required) + " to " + itoa(n) + " positional arguments"
	}
	was := "were"
	if given == 1 {
		was = "was"
	}
	return typeErrorf("%s() takes %s but %d %s given", f.Name, takes, given, was)
}

func missingArgs(fn, kind string, names []string) error {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	var list string
	switch len(quoted) {
	case 1:
		list = quoted[0]
	case 2:
		list = quoted[0] + " and " + quoted[1]
	default:
		list = strings.Join(quoted[:len(quoted)-1], ", ") + ", and " + quoted[len(quoted)-1]
	}
	return typeErrorf("%s() missing %s: %s", fn, plural(len(names), "required "+kind+" argument"), list)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return itoa(n) + " " + noun + "s"
}
