package sandbox

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/pygate/internal/script"
)

// Interp evaluates one snippet. It is never shared between runs.
type Interp struct {
	ctx         context.Context
	timeout     time.Duration
	limits      Limits
	out         *BoundedBuffer
	globals     *Scope
	builtins    map[string]Value
	modules     map[string]*Module
	allowImport func(string) bool
	steps       int64
	depth       int
	rng         *rand.Rand
	plots       *plotState
	artifacts   []Artifact
	handling    []*Exception
}

func newInterp(ctx context.Context, opts Options) *Interp {
	limits := opts.Limits.withDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	in := &Interp{
		ctx:         ctx,
		timeout:     opts.Timeout,
		limits:      limits,
		out:         NewBoundedBuffer(limits.OutputKB),
		builtins:    newBuiltins(),
		modules:     map[string]*Module{},
		allowImport: opts.AllowImport,
		rng:         newRNG(seed),
		plots:       &plotState{},
	}
	in.globals = &Scope{vars: map[string]Value{}}
	return in
}

// tick charges one step and polls the context every ctxCheckInterval steps.
func (in *Interp) tick() error {
	return in.charge(1)
}

// charge adds n steps. Allocations are charged by size so that memory use
// is bounded by the same budget as compute.
func (in *Interp) charge(n int64) error {
	before := in.steps
	in.steps += n
	if in.steps > in.limits.MaxSteps {
		return resourceError("step budget of %d exceeded", in.limits.MaxSteps)
	}
	if before/ctxCheckInterval != in.steps/ctxCheckInterval {
		if err := in.ctx.Err(); err != nil {
			return timeoutError(in.timeout)
		}
	}
	return nil
}

// checkItems enforces the per-container cap and charges the allocation.
func (in *Interp) checkItems(n int) error {
	if n > in.limits.MaxItems {
		return resourceError("container exceeded %d items", in.limits.MaxItems)
	}
	return in.charge(int64(n / 16))
}

// checkStr enforces the per-string cap and charges the allocation.
func (in *Interp) checkStr(n int) error {
	if n > in.limits.MaxStrBytes {
		return resourceError("string exceeded %d bytes", in.limits.MaxStrBytes)
	}
	return in.charge(int64(n / 64))
}

func (in *Interp) write(s string) error {
	if _, err := in.out.WriteString(s); err != nil {
		return resourceError("output exceeded %d KiB", in.limits.OutputKB)
	}
	return nil
}

// Control flow travels up the statement stack as errors.
var (
	errBreak    = errors.New("break")
	errContinue = errors.New("continue")
)

type returnSignal struct{ value Value }

func (*returnSignal) Error() string { return "return" }

// scopeInfo is the static shape of a function scope.
type scopeInfo struct {
	locals    map[string]bool
	globals   map[string]bool
	nonlocals map[string]bool
}

// Scope is one namespace in the lexical chain. The module scope has a nil
// info and a nil parent.
type Scope struct {
	vars   map[string]Value
	parent *Scope
	info   *scopeInfo
}

func (in *Interp) lookup(s *Scope, name string) (Value, error) {
	if s.info != nil {
		switch {
		case s.info.globals[name]:
			return in.lookupGlobal(name)
		case s.info.locals[name] && !s.info.nonlocals[name]:
			if v, ok := s.vars[name]; ok {
				return v, nil
			}
			return nil, newExc(UnboundLocalError, "cannot access local variable '"+name+"' where it is not associated with a value")
		}
		for p := s.parent; p != nil && p.info != nil; p = p.parent {
			if v, ok := p.vars[name]; ok {
				return v, nil
			}
		}
	}
	return in.lookupGlobal(name)
}

func (in *Interp) lookupGlobal(name string) (Value, error) {
	if v, ok := in.globals.vars[name]; ok {
		return v, nil
	}
	if v, ok := in.builtins[name]; ok {
		return v, nil
	}
	return nil, newExc(NameError, "name '"+name+"' is not defined")
}

// owner returns the scope that holds name for assignment from s.
func (in *Interp) owner(s *Scope, name string) *Scope {
	if s.info == nil {
		return s
	}
	if s.info.globals[name] {
		return in.globals
	}
	if s.info.nonlocals[name] {
		for p := s.parent; p != nil && p.info != nil; p = p.parent {
			if p.info.locals[name] {
				return p
			}
		}
		return in.globals
	}
	return s
}

func (in *Interp) store(s *Scope, name string, v Value) {
	in.owner(s, name).vars[name] = v
}

func (in *Interp) deleteName(s *Scope, name string) error {
	o := in.owner(s, name)
	if _, ok := o.vars[name]; !ok {
		return newExc(NameError, "name '"+name+"' is not defined")
	}
	delete(o.vars, name)
	return nil
}

// analyze computes the static scope of a function body: every name bound
// by the body or the parameters is local unless declared global or
// nonlocal. Nested function and comprehension bodies are not descended.
func analyze(params *script.Params, body []script.Stmt) *scopeInfo {
	info := &scopeInfo{locals: map[string]bool{}, globals: map[string]bool{}, nonlocals: map[string]bool{}}
	bound := map[string]bool{}
	if params != nil {
		for _, p := range params.Args {
			bound[p.Name] = true
		}
		for _, p := range params.KwOnly {
			bound[p.Name] = true
		}
		if params.VarArg != nil {
			bound[params.VarArg.Name] = true
		}
		if params.KwArg != nil {
			bound[params.KwArg.Name] = true
		}
	}
	var target func(e script.Expr)
	target = func(e script.Expr) {
		switch e := e.(type) {
		case *script.Name:
			bound[e.ID] = true
		case *script.Tuple:
			for _, x := range e.Elts {
				target(x)
			}
		case *script.List:
			for _, x := range e.Elts {
				target(x)
			}
		case *script.Starred:
			target(e.Value)
		}
	}
	for _, st := range body {
		script.Inspect(st, func(n script.Node) bool {
			switch n := n.(type) {
			case *script.Assign:
				for _, t := range n.Targets {
					target(t)
				}
			case *script.AugAssign:
				target(n.Target)
			case *script.AnnAssign:
				target(n.Target)
			case *script.For:
				target(n.Target)
			case *script.Delete:
				for _, t := range n.Targets {
					target(t)
				}
			case *script.Import:
				for _, a := range n.Names {
					bound[aliasName(a)] = true
				}
			case *script.ImportFrom:
				for _, a := range n.Names {
					bound[aliasName(a)] = true
				}
			case *script.Try:
				for _, h := range n.Handlers {
					if h.Name != "" {
						bound[h.Name] = true
					}
				}
			case *script.Global:
				for _, name := range n.Names {
					info.globals[name] = true
				}
			case *script.Nonlocal:
				for _, name := range n.Names {
					info.nonlocals[name] = true
				}
			case *script.FunctionDef:
				bound[n.Name] = true
				return false
			case *script.Lambda, *script.ListComp, *script.SetComp, *script.DictComp, *script.GeneratorExp:
				return false
			}
			return true
		})
	}
	for name := range bound {
		if !info.globals[name] && !info.nonlocals[name] {
			info.locals[name] = true
		}
	}
	return info
}

// aliasName is the name an import alias binds.
func aliasName(a script.Alias) string {
	if a.AsName != "" {
		return a.AsName
	}
	root, _, _ := strings.Cut(a.Name, ".")
	return root
}

func (in *Interp) execBlock(s *Scope, body []script.Stmt) error {
	for _, st := range body {
		if err := in.exec(s, st); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) exec(s *Scope, st script.Stmt) error {
	if err := in.tick(); err != nil {
		return err
	}
	switch st := st.(type) {
	case *script.ExprStmt:
		_, err := in.eval(s, st.Value)
		return err
	case *script.Assign:
		v, err := in.eval(s, st.Value)
		if err != nil {
			return err
		}
		for _, t := range st.Targets {
			if err := in.assign(s, t, v); err != nil {
				return err
			}
		}
		return nil
	case *script.AugAssign:
		return in.augAssign(s, st)
	case *script.AnnAssign:
		if st.Value == nil {
			return nil
		}
		v, err := in.eval(s, st.Value)
		if err != nil {
			return err
		}
		return in.assign(s, st.Target, v)
	case *script.If:
		ok, err := in.test(s, st.Test)
		if err != nil {
			return err
		}
		if ok {
			return in.execBlock(s, st.Body)
		}
		return in.execBlock(s, st.OrElse)
	case *script.While:
		return in.execWhile(s, st)
	case *script.For:
		return in.execFor(s, st)
	case *script.Break:
		return errBreak
	case *script.Continue:
		return errContinue
	case *script.Pass, *script.Global, *script.Nonlocal:
		return nil
	case *script.Return:
		var v Value = None
		if st.Value != nil {
			var err error
			if v, err = in.eval(s, st.Value); err != nil {
				return err
			}
		}
		return &returnSignal{value: v}
	case *script.FunctionDef:
		return in.execDef(s, st)
	case *script.Import:
		return in.execImport(s, st)
	case *script.ImportFrom:
		return in.execImportFrom(s, st)
	case *script.Delete:
		for _, t := range st.Targets {
			if err := in.del(s, t); err != nil {
				return err
			}
		}
		return nil
	case *script.Assert:
		ok, err := in.test(s, st.Test)
		if err != nil || ok {
			return err
		}
		exc := &Exception{Class: AssertionError}
		if st.Msg != nil {
			msg, err := in.eval(s, st.Msg)
			if err != nil {
				return err
			}
			exc.Args = []Value{msg}
		}
		return exc
	case *script.Raise:
		return in.execRaise(s, st)
	case *script.Try:
		return in.execTry(s, st)
	}
	return newExc(RuntimeError, "unsupported statement")
}

func (in *Interp) test(s *Scope, e script.Expr) (bool, error) {
	v, err := in.eval(s, e)
	if err != nil {
		return false, err
	}
	return in.truthy(v)
}

func (in *Interp) execWhile(s *Scope, st *script.While) error {
	for {
		if err := in.tick(); err != nil {
			return err
		}
		ok, err := in.test(s, st.Test)
		if err != nil {
			return err
		}
		if !ok {
			return in.execBlock(s, st.OrElse)
		}
		switch err := in.execBlock(s, st.Body); err {
		case nil, errContinue:
		case errBreak:
			return nil
		default:
			return err
		}
	}
}

func (in *Interp) execFor(s *Scope, st *script.For) error {
	iterable, err := in.eval(s, st.Iter)
	if err != nil {
		return err
	}
	next, err := in.iterate(iterable)
	if err != nil {
		return err
	}
	for {
		if err := in.tick(); err != nil {
			return err
		}
		v, ok, err := next()
		if err != nil {
			return err
		}
		if !ok {
			return in.execBlock(s, st.OrElse)
		}
		if err := in.assign(s, st.Target, v); err != nil {
			return err
		}
		switch err := in.execBlock(s, st.Body); err {
		case nil, errContinue:
		case errBreak:
			return nil
		default:
			return err
		}
	}
}

func (in *Interp) execDef(s *Scope, st *script.FunctionDef) error {
	fn, err := in.makeFunction(s, st.Name, st.Params, st.Body, nil)
	if err != nil {
		return err
	}
	var v Value = fn
	decorators := make([]Value, len(st.Decorators))
	for i, d := range st.Decorators {
		if decorators[i], err = in.eval(s, d); err != nil {
			return err
		}
	}
	for i := len(decorators) - 1; i >= 0; i-- {
		if v, err = in.call(decorators[i], []Value{v}, nil); err != nil {
			return err
		}
	}
	in.store(s, st.Name, v)
	return nil
}

func (in *Interp) makeFunction(s *Scope, name string, params *script.Params, body []script.Stmt, e script.Expr) (*Function, error) {
	fn := &Function{Name: name, Params: params, Body: body, Expr: e, Closure: s}
	fn.Defaults = make([]Value, len(params.Args))
	for i, p := range params.Args {
		if p.Default == nil {
			continue
		}
		v, err := in.eval(s, p.Default)
		if err != nil {
			return nil, err
		}
		fn.Defaults[i] = v
	}
	fn.KwDefs = make([]Value, len(params.KwOnly))
	for i, p := range params.KwOnly {
		if p.Default == nil {
			continue
		}
		v, err := in.eval(s, p.Default)
		if err != nil {
			return nil, err
		}
		fn.KwDefs[i] = v
	}
	if e != nil {
		fn.info = analyze(params, nil)
	} else {
		fn.info = analyze(params, body)
	}
	return fn, nil
}

func (in *Interp) execRaise(s *Scope, st *script.Raise) error {
	if st.Exc == nil {
		if len(in.handling) == 0 {
			return newExc(RuntimeError, "No active exception to reraise")
		}
		return in.handling[len(in.handling)-1]
	}
	v, err := in.eval(s, st.Exc)
	if err != nil {
		return err
	}
	exc, err := in.toException(v)
	if err != nil {
		return err
	}
	if st.Cause != nil {
		c, err := in.eval(s, st.Cause)
		if err != nil {
			return err
		}
		if c != None {
			cause, err := in.toException(c)
			if err != nil {
				return err
			}
			exc.Cause = cause
		}
	}
	return exc
}

func (in *Interp) toException(v Value) (*Exception, error) {
	switch v := v.(type) {
	case *Exception:
		return v, nil
	case *ExcClass:
		return &Exception{Class: v}, nil
	}
	return nil, typeErrorf("exceptions must derive from BaseException")
}

func (in *Interp) execTry(s *Scope, st *script.Try) error {
	err := in.execBlock(s, st.Body)
	if exc, ok := err.(*Exception); ok {
		err = in.handle(s, st, exc)
	} else if err == nil {
		err = in.execBlock(s, st.OrElse)
	}
	if len(st.Finalbody) > 0 {
		if ferr := in.execBlock(s, st.Finalbody); ferr != nil {
			return ferr
		}
	}
	return err
}

func (in *Interp) handle(s *Scope, st *script.Try, exc *Exception) error {
	for _, h := range st.Handlers {
		if h.Type != nil {
			t, err := in.eval(s, h.Type)
			if err != nil {
				return err
			}
			match, err := excMatches(exc, t)
			if err != nil {
				return err
			}
			if !match {
				continue
			}
		}
		if h.Name != "" {
			in.store(s, h.Name, exc)
		}
		in.handling = append(in.handling, exc)
		err := in.execBlock(s, h.Body)
		in.handling = in.handling[:len(in.handling)-1]
		if h.Name != "" {
			delete(in.owner(s, h.Name).vars, h.Name)
		}
		return err
	}
	return exc
}

func excMatches(exc *Exception, t Value) (bool, error) {
	switch t := t.(type) {
	case *ExcClass:
		return exc.Class.IsSubclass(t), nil
	case Tuple:
		for _, item := range t {
			ok, err := excMatches(exc, item)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	return false, typeErrorf("catching classes that do not inherit from BaseException is not allowed")
}

func (in *Interp) augAssign(s *Scope, st *script.AugAssign) error {
	switch t := st.Target.(type) {
	case *script.Name:
		cur, err := in.lookup(s, t.ID)
		if err != nil {
			return err
		}
		rhs, err := in.eval(s, st.Value)
		if err != nil {
			return err
		}
		v, err := in.inplace(st.Op, cur, rhs)
		if err != nil {
			return err
		}
		in.store(s, t.ID, v)
		return nil
	case *script.Attribute:
		return newExc(AttributeError, "attribute assignment is not supported")
	case *script.Subscript:
		obj, err := in.eval(s, t.Value)
		if err != nil {
			return err
		}
		idx, err := in.evalIndex(s, t.Index)
		if err != nil {
			return err
		}
		cur, err := in.getItem(obj, idx)
		if err != nil {
			return err
		}
		rhs, err := in.eval(s, st.Value)
		if err != nil {
			return err
		}
		v, err := in.inplace(st.Op, cur, rhs)
		if err != nil {
			return err
		}
		return in.setItem(obj, idx, v)
	}
	return newExc(RuntimeError, "invalid augmented assignment target")
}

// inplace is the augmented form of binop; lists extend in place.
func (in *Interp) inplace(op string, cur, rhs Value) (Value, error) {
	if l, ok := cur.(*List); ok && op == "+" {
		items, err := in.toSlice(rhs)
		if err != nil {
			return nil, err
		}
		if err := in.checkItems(len(l.Items) + len(items)); err != nil {
			return nil, err
		}
		l.Items = append(l.Items, items...)
		return l, nil
	}
	if d, ok := cur.(*Dict); ok && op == "|" {
		other, ok := rhs.(*Dict)
		if !ok {
			return nil, binopTypeError("|=", cur, rhs)
		}
		for i, k := range other.keys {
			if err := d.Set(k, other.vals[i]); err != nil {
				return nil, err
			}
		}
		return d, nil
	}
	return in.binop(op, cur, rhs)
}

func (in *Interp) assign(s *Scope, target script.Expr, v Value) error {
	switch t := target.(type) {
	case *script.Name:
		in.store(s, t.ID, v)
		return nil
	case *script.Tuple:
		return in.unpack(s, t.Elts, v)
	case *script.List:
		return in.unpack(s, t.Elts, v)
	case *script.Subscript:
		obj, err := in.eval(s, t.Value)
		if err != nil {
			return err
		}
		idx, err := in.evalIndex(s, t.Index)
		if err != nil {
			return err
		}
		return in.setItem(obj, idx, v)
	case *script.Attribute:
		obj, err := in.eval(s, t.Value)
		if err != nil {
			return err
		}
		return newExc(AttributeError, "'"+typeName(obj)+"' object attribute '"+t.Attr+"' is read-only")
	case *script.Starred:
		return newExc(RuntimeError, "starred assignment target must be in a list or tuple")
	}
	return newExc(RuntimeError, "invalid assignment target")
}

func (in *Interp) unpack(s *Scope, targets []script.Expr, v Value) error {
	items, err := in.toSlice(v)
	if err != nil {
		if exc, ok := err.(*Exception); ok && exc.Class == TypeError {
			return typeErrorf("cannot unpack non-iterable %s object", typeName(v))
		}
		return err
	}
	star := -1
	for i, t := range targets {
		if _, ok := t.(*script.Starred); ok {
			star = i
		}
	}
	if star < 0 {
		switch {
		case len(items) > len(targets):
			return newExc(ValueError, "too many values to unpack (expected "+strconv.Itoa(len(targets))+")")
		case len(items) < len(targets):
			return newExc(ValueError, "not enough values to unpack (expected "+strconv.Itoa(len(targets))+", got "+strconv.Itoa(len(items))+")")
		}
		for i, t := range targets {
			if err := in.assign(s, t, items[i]); err != nil {
				return err
			}
		}
		return nil
	}
	after := len(targets) - star - 1
	if len(items) < len(targets)-1 {
		return newExc(ValueError, "not enough values to unpack (expected at least "+strconv.Itoa(len(targets)-1)+", got "+strconv.Itoa(len(items))+")")
	}
	for i := 0; i < star; i++ {
		if err := in.assign(s, targets[i], items[i]); err != nil {
			return err
		}
	}
	rest := append([]Value(nil), items[star:len(items)-after]...)
	if err := in.assign(s, targets[star].(*script.Starred).Value, NewList(rest)); err != nil {
		return err
	}
	for i := 0; i < after; i++ {
		if err := in.assign(s, targets[star+1+i], items[len(items)-after+i]); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) del(s *Scope, target script.Expr) error {
	switch t := target.(type) {
	case *script.Name:
		return in.deleteName(s, t.ID)
	case *script.Tuple:
		for _, e := range t.Elts {
			if err := in.del(s, e); err != nil {
				return err
			}
		}
		return nil
	case *script.List:
		for _, e := range t.Elts {
			if err := in.del(s, e); err != nil {
				return err
			}
		}
		return nil
	case *script.Subscript:
		obj, err := in.eval(s, t.Value)
		if err != nil {
			return err
		}
		idx, err := in.evalIndex(s, t.Index)
		if err != nil {
			return err
		}
		return in.delItem(obj, idx)
	}
	return newExc(AttributeError, "attribute deletion is not supported")
}

func (in *Interp) execImport(s *Scope, st *script.Import) error {
	for _, a := range st.Names {
		m, err := in.importModule(a.Name)
		if err != nil {
			return err
		}
		if a.AsName != "" {
			in.store(s, a.AsName, m)
			continue
		}
		root, _, _ := strings.Cut(a.Name, ".")
		in.store(s, root, in.modules[root])
	}
	return nil
}

func (in *Interp) execImportFrom(s *Scope, st *script.ImportFrom) error {
	if st.Level > 0 {
		return newExc(ImportError, "attempted relative import with no known parent package")
	}
	m, err := in.importModule(st.Module)
	if err != nil {
		return err
	}
	for _, a := range st.Names {
		if a.Name == "*" {
			for name, v := range m.Attrs {
				if !strings.HasPrefix(name, "_") {
					in.store(s, name, v)
				}
			}
			continue
		}
		v, ok := m.Attrs[a.Name]
		if !ok {
			if _, known := providers[st.Module+"."+a.Name]; known {
				if v, err = in.importModule(st.Module + "." + a.Name); err != nil {
					return err
				}
				ok = true
			}
		}
		if !ok {
			return newExc(ImportError, "cannot import name '"+a.Name+"' from '"+st.Module+"'")
		}
		in.store(s, aliasName(a), v)
	}
	return nil
}

// importModule loads path and its parents, caching them for this run only.
func (in *Interp) importModule(path string) (*Module, error) {
	if m, ok := in.modules[path]; ok {
		return m, nil
	}
	if in.allowImport != nil && !in.allowImport(path) {
		return nil, newExc(ImportError, "Import of '"+path+"' is not allowed")
	}
	var parent *Module
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		p, err := in.importModule(path[:i])
		if err != nil {
			return nil, err
		}
		parent = p
		// loading the parent may have built this submodule already
		if m, ok := in.modules[path]; ok {
			return m, nil
		}
	}
	build, ok := providers[path]
	if !ok {
		return nil, &Exception{Class: ModuleNotFoundError, Args: []Value{Str("No module named '" + path + "'")}}
	}
	m := build(in)
	in.modules[path] = m
	if parent != nil {
		parent.Attrs[path[strings.LastIndexByte(path, '.')+1:]] = m
	}
	return m, nil
}
