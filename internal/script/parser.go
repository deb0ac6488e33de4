package script

import (
	"slices"
	"strconv"
	"strings"
)

const maxNesting = 200

var augAssignOps = map[string]bool{
	"+=": true, "-=": true, "*=": true, "/=": true, "//=": true, "%=": true,
	"**=": true, ">>=": true, "<<=": true, "&=": true, "|=": true, "^=": true,
	"@=": true,
}

type parser struct {
	toks  []Token
	pos   int
	depth int
	loops int
	funcs int
}

// Parse parses a complete snippet. Any failure, including constructs the
// snippet language does not support, is returned as a *SyntaxError.
func Parse(src string) (*Module, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var mod *Module
	if err := p.guard(func() { mod = p.file() }); err != nil {
		return nil, err
	}
	return mod, nil
}

// guard runs fn, converting a parser bailout into an error.
func (p *parser) guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(*SyntaxError); ok {
				err = se
				return
			}
			err = &SyntaxError{Msg: "invalid syntax", Pos: p.peek().Pos}
		}
	}()
	fn()
	return nil
}

// ---------------------------------------------------------------------------
// Token helpers
// ---------------------------------------------------------------------------

func (p *parser) peek() Token { return p.peekAt(0) }

func (p *parser) peekAt(n int) Token {
	if i := p.pos + n; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() Token {
	t := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) isOp(s string) bool {
	t := p.peek()
	return t.Kind == OP && t.Text == s
}

func (p *parser) isKw(s string) bool {
	t := p.peek()
	return t.Kind == KEYWORD && t.Text == s
}

func (p *parser) acceptOp(s string) bool {
	if p.isOp(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptKw(s string) bool {
	if p.isKw(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectOp(s string) Token {
	if !p.isOp(s) {
		if s == ":" {
			p.fail(p.peek(), "expected ':'")
		}
		p.fail(p.peek(), "invalid syntax")
	}
	return p.next()
}

func (p *parser) expectKw(s string) {
	if !p.acceptKw(s) {
		p.fail(p.peek(), "expected '"+s+"'")
	}
}

func (p *parser) expectName() string {
	t := p.peek()
	if t.Kind != NAME {
		p.fail(t, "invalid syntax")
	}
	p.next()
	return t.Text
}

func (p *parser) atStmtEnd() bool {
	t := p.peek()
	return t.Kind == NEWLINE || t.Kind == EOF || (t.Kind == OP && t.Text == ";")
}

func (p *parser) fail(t Token, msg string) {
	p.failAt(t.Pos, msg)
}

func (p *parser) failAt(pos Pos, msg string) {
	panic(&SyntaxError{Msg: msg, Pos: pos})
}

func (p *parser) enter(t Token) {
	p.depth++
	if p.depth > maxNesting {
		p.fail(t, "too many nested expressions")
	}
}

func (p *parser) leave() { p.depth-- }

type positioned interface{ setPos(Pos) }

func (n *node) setPos(p Pos) { n.P = p }

func at[T positioned](p Pos, n T) T {
	n.setPos(p)
	return n
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *parser) file() *Module {
	m := &Module{}
	for p.peek().Kind != EOF {
		if p.peek().Kind == NEWLINE {
			p.next()
			continue
		}
		m.Body = append(m.Body, p.statement()...)
	}
	return m
}

func (p *parser) statement() []Stmt {
	t := p.peek()
	switch t.Kind {
	case INDENT:
		p.fail(t, "unexpected indent")
	case KEYWORD:
		switch t.Text {
		case "if":
			return []Stmt{p.ifStmt()}
		case "while":
			return []Stmt{p.whileStmt()}
		case "for":
			return []Stmt{p.forStmt()}
		case "def":
			return []Stmt{p.funcDef(nil)}
		case "try":
			return []Stmt{p.tryStmt()}
		case "class":
			p.fail(t, "class definitions are not supported")
		case "with":
			p.fail(t, "'with' statements are not supported")
		case "async":
			p.fail(t, "async code is not supported")
		}
	case OP:
		if t.Text == "@" {
			return []Stmt{p.decorated()}
		}
	}
	return p.simpleStmt()
}

func (p *parser) simpleStmt() []Stmt {
	var out []Stmt
	for {
		out = append(out, p.smallStmt())
		if !p.acceptOp(";") || p.peek().Kind == NEWLINE {
			break
		}
	}
	if t := p.next(); t.Kind != NEWLINE && t.Kind != EOF {
		p.fail(t, "invalid syntax")
	}
	return out
}

func (p *parser) smallStmt() Stmt {
	t := p.peek()
	if t.Kind != KEYWORD {
		return p.exprStmt()
	}
	switch t.Text {
	case "pass":
		p.next()
		return at(t.Pos, &Pass{})
	case "break":
		p.next()
		if p.loops == 0 {
			p.fail(t, "'break' outside loop")
		}
		return at(t.Pos, &Break{})
	case "continue":
		p.next()
		if p.loops == 0 {
			p.fail(t, "'continue' not properly in loop")
		}
		return at(t.Pos, &Continue{})
	case "return":
		p.next()
		if p.funcs == 0 {
			p.fail(t, "'return' outside function")
		}
		r := at(t.Pos, &Return{})
		if !p.atStmtEnd() {
			r.Value = p.testList()
		}
		return r
	case "import":
		return p.importStmt()
	case "from":
		return p.fromStmt()
	case "global", "nonlocal":
		p.next()
		var names []string
		for {
			names = append(names, p.expectName())
			if !p.acceptOp(",") {
				break
			}
		}
		if t.Text == "global" {
			return at(t.Pos, &Global{Names: names})
		}
		if p.funcs == 0 {
			p.fail(t, "nonlocal declaration not allowed at module level")
		}
		return at(t.Pos, &Nonlocal{Names: names})
	case "del":
		p.next()
		target := p.exprList()
		targets := []Expr{target}
		if tup, ok := target.(*Tuple); ok {
			targets = tup.Elts
		}
		for _, e := range targets {
			p.checkTarget(e, true)
		}
		return at(t.Pos, &Delete{Targets: targets})
	case "assert":
		p.next()
		s := at(t.Pos, &Assert{Test: p.test()})
		if p.acceptOp(",") {
			s.Msg = p.test()
		}
		return s
	case "raise":
		p.next()
		s := at(t.Pos, &Raise{})
		if !p.atStmtEnd() {
			s.Exc = p.test()
			if p.acceptKw("from") {
				s.Cause = p.test()
			}
		}
		return s
	case "yield":
		p.fail(t, "'yield' is not supported")
	case "await":
		p.fail(t, "'await' is not supported")
	}
	return p.exprStmt()
}

func (p *parser) exprStmt() Stmt {
	t := p.peek()
	first := p.testList()
	next := p.peek()
	switch {
	case p.isOp("="):
		targets := []Expr{first}
		for p.acceptOp("=") {
			if p.isKw("yield") {
				p.fail(p.peek(), "'yield' is not supported")
			}
			targets = append(targets, p.testList())
		}
		value := targets[len(targets)-1]
		targets = targets[:len(targets)-1]
		for _, tg := range targets {
			p.checkTarget(tg, false)
		}
		return at(t.Pos, &Assign{Targets: targets, Value: value})

	case next.Kind == OP && augAssignOps[next.Text]:
		p.next()
		switch first.(type) {
		case *Name, *Attribute, *Subscript:
		default:
			p.failAt(first.Position(), "'"+describe(first)+"' is an illegal expression for augmented assignment")
		}
		value := p.testList()
		return at(t.Pos, &AugAssign{Target: first, Op: strings.TrimSuffix(next.Text, "="), Value: value})

	case p.isOp(":"):
		p.next()
		switch first.(type) {
		case *Name, *Attribute, *Subscript:
		case *Tuple:
			p.failAt(first.Position(), "only single target (not tuple) can be annotated")
		default:
			p.failAt(first.Position(), "illegal target for annotation")
		}
		s := at(t.Pos, &AnnAssign{Target: first, Annotation: p.test()})
		if p.acceptOp("=") {
			s.Value = p.testList()
		}
		return s
	}
	if _, ok := first.(*Starred); ok {
		p.failAt(first.Position(), "can't use starred expression here")
	}
	return at(t.Pos, &ExprStmt{Value: first})
}

func (p *parser) dottedName() string {
	name := p.expectName()
	for p.acceptOp(".") {
		name += "." + p.expectName()
	}
	return name
}

func (p *parser) importStmt() Stmt {
	t := p.next()
	s := at(t.Pos, &Import{})
	for {
		a := Alias{Name: p.dottedName()}
		if p.acceptKw("as") {
			a.AsName = p.expectName()
		}
		s.Names = append(s.Names, a)
		if !p.acceptOp(",") {
			break
		}
	}
	return s
}

func (p *parser) fromStmt() Stmt {
	t := p.next()
	s := at(t.Pos, &ImportFrom{})
	for {
		if p.acceptOp(".") {
			s.Level++
		} else if p.acceptOp("...") {
			s.Level += 3
		} else {
			break
		}
	}
	if !p.isKw("import") {
		s.Module = p.dottedName()
	}
	if s.Level == 0 && s.Module == "" {
		p.fail(p.peek(), "invalid syntax")
	}
	p.expectKw("import")
	if p.acceptOp("*") {
		s.Names = []Alias{{Name: "*"}}
		return s
	}
	paren := p.acceptOp("(")
	for {
		a := Alias{Name: p.expectName()}
		if p.acceptKw("as") {
			a.AsName = p.expectName()
		}
		s.Names = append(s.Names, a)
		if !p.acceptOp(",") {
			break
		}
		if paren && p.isOp(")") {
			break
		}
		if !paren && p.atStmtEnd() {
			p.fail(p.peek(), "trailing comma not allowed without surrounding parentheses")
		}
	}
	if paren {
		p.expectOp(")")
	}
	return s
}

// block parses the suite following a compound statement header.
func (p *parser) block() []Stmt {
	if p.peek().Kind != NEWLINE {
		return p.simpleStmt()
	}
	p.next()
	t := p.peek()
	if t.Kind != INDENT {
		p.fail(t, "expected an indented block")
	}
	p.next()
	p.enter(t)
	defer p.leave()
	var body []Stmt
	for p.peek().Kind != DEDENT && p.peek().Kind != EOF {
		if p.peek().Kind == NEWLINE {
			p.next()
			continue
		}
		body = append(body, p.statement()...)
	}
	p.next()
	return body
}

func (p *parser) loopBody() []Stmt {
	p.loops++
	defer func() { p.loops-- }()
	return p.block()
}

func (p *parser) elseBlock() []Stmt {
	if !p.acceptKw("else") {
		return nil
	}
	p.expectOp(":")
	return p.block()
}

func (p *parser) ifStmt() Stmt {
	t := p.next()
	s := at(t.Pos, &If{Test: p.test()})
	p.expectOp(":")
	s.Body = p.block()
	if p.isKw("elif") {
		s.OrElse = []Stmt{p.ifStmt()}
	} else {
		s.OrElse = p.elseBlock()
	}
	return s
}

func (p *parser) whileStmt() Stmt {
	t := p.next()
	s := at(t.Pos, &While{Test: p.test()})
	p.expectOp(":")
	s.Body = p.loopBody()
	s.OrElse = p.elseBlock()
	return s
}

func (p *parser) forStmt() Stmt {
	t := p.next()
	target := p.exprList()
	p.checkTarget(target, false)
	p.expectKw("in")
	s := at(t.Pos, &For{Target: target, Iter: p.testList()})
	p.expectOp(":")
	s.Body = p.loopBody()
	s.OrElse = p.elseBlock()
	return s
}

func (p *parser) tryStmt() Stmt {
	t := p.next()
	p.expectOp(":")
	s := at(t.Pos, &Try{Body: p.block()})
	for p.isKw("except") {
		et := p.next()
		if p.isOp("*") {
			p.fail(p.peek(), "'except*' is not supported")
		}
		if n := len(s.Handlers); n > 0 && s.Handlers[n-1].Type == nil {
			p.fail(et, "default 'except:' must be last")
		}
		h := ExceptHandler{P: et.Pos}
		if !p.isOp(":") {
			h.Type = p.test()
			if p.acceptKw("as") {
				h.Name = p.expectName()
			} else if p.isOp(",") {
				p.fail(p.peek(), "multiple exception types must be parenthesized")
			}
		}
		p.expectOp(":")
		h.Body = p.block()
		s.Handlers = append(s.Handlers, h)
	}
	if p.isKw("else") {
		if len(s.Handlers) == 0 {
			p.fail(p.peek(), "expected 'except' or 'finally' block")
		}
		s.OrElse = p.elseBlock()
	}
	if p.acceptKw("finally") {
		p.expectOp(":")
		s.Finalbody = p.block()
	}
	if len(s.Handlers) == 0 && s.Finalbody == nil {
		p.fail(p.peek(), "expected 'except' or 'finally' block")
	}
	return s
}

func (p *parser) decorated() Stmt {
	var decorators []Expr
	for p.acceptOp("@") {
		decorators = append(decorators, p.test())
		if t := p.next(); t.Kind != NEWLINE {
			p.fail(t, "invalid syntax")
		}
	}
	switch {
	case p.isKw("def"):
		return p.funcDef(decorators)
	case p.isKw("class"):
		p.fail(p.peek(), "class definitions are not supported")
	}
	p.fail(p.peek(), "invalid syntax")
	return nil
}

func (p *parser) funcDef(decorators []Expr) Stmt {
	t := p.next()
	s := at(t.Pos, &FunctionDef{Name: p.expectName(), Decorators: decorators})
	p.expectOp("(")
	s.Params = p.params(")", true)
	p.expectOp(")")
	if p.acceptOp("->") {
		s.Returns = p.test()
	}
	p.expectOp(":")
	loops := p.loops
	p.loops = 0
	p.funcs++
	s.Body = p.block()
	p.funcs--
	p.loops = loops
	return s
}

// params parses a parameter list up to (not including) closer. Lambda
// parameters carry no annotations.
func (p *parser) params(closer string, annotated bool) *Params {
	ps := &Params{}
	seen := map[string]bool{}
	star, sawDefault := false, false
	param := func() Param {
		t := p.peek()
		name := p.expectName()
		if seen[name] {
			p.fail(t, "duplicate argument '"+name+"' in function definition")
		}
		seen[name] = true
		prm := Param{Name: name}
		if annotated && p.acceptOp(":") {
			prm.Annotation = p.test()
		}
		return prm
	}
	for !p.isOp(closer) {
		t := p.peek()
		switch {
		case p.acceptOp("**"):
			kw := param()
			ps.KwArg = &kw
			p.acceptOp(",")
			if !p.isOp(closer) {
				p.fail(p.peek(), "arguments cannot follow var-keyword argument")
			}
			return ps
		case p.acceptOp("*"):
			if star {
				p.fail(t, "* argument may appear only once")
			}
			star = true
			if p.peek().Kind == NAME {
				va := param()
				ps.VarArg = &va
			} else if p.isOp(closer) {
				p.fail(t, "named arguments must follow bare *")
			}
		case p.acceptOp("/"):
			if star || len(ps.Args) == 0 {
				p.fail(t, "invalid syntax")
			}
		default:
			prm := param()
			if p.acceptOp("=") {
				prm.Default = p.test()
				if !star {
					sawDefault = true
				}
			} else if !star && sawDefault {
				p.fail(t, "non-default argument follows default argument")
			}
			if star {
				ps.KwOnly = append(ps.KwOnly, prm)
			} else {
				ps.Args = append(ps.Args, prm)
			}
		}
		if !p.acceptOp(",") {
			break
		}
	}
	return ps
}

// checkTarget reports targets that cannot be bound or deleted.
func (p *parser) checkTarget(e Expr, del bool) {
	switch t := e.(type) {
	case *Name, *Attribute, *Subscript:
	case *Tuple:
		p.checkTargets(t.Elts, del)
	case *List:
		p.checkTargets(t.Elts, del)
	case *Starred:
		if del {
			p.failAt(e.Position(), "cannot delete starred")
		}
		p.failAt(e.Position(), "starred assignment target must be in a list or tuple")
	default:
		if del {
			p.failAt(e.Position(), "cannot delete "+describe(e))
		}
		p.failAt(e.Position(), "cannot assign to "+describe(e))
	}
}

func (p *parser) checkTargets(elts []Expr, del bool) {
	stars := 0
	for _, el := range elts {
		if s, ok := el.(*Starred); ok && !del {
			stars++
			if stars > 1 {
				p.failAt(el.Position(), "multiple starred expressions in assignment")
			}
			p.checkTarget(s.Value, del)
			continue
		}
		p.checkTarget(el, del)
	}
}

func describe(e Expr) string {
	switch e := e.(type) {
	case *Constant:
		switch v := e.Value.(type) {
		case nil:
			return "None"
		case bool:
			if v {
				return "True"
			}
			return "False"
		}
		if e.Value == Ellipsis {
			return "ellipsis"
		}
		return "literal"
	case *Call:
		return "function call"
	case *Compare:
		return "comparison"
	case *Lambda:
		return "lambda"
	case *IfExp:
		return "conditional expression"
	case *JoinedStr:
		return "f-string expression"
	case *ListComp:
		return "list comprehension"
	case *SetComp:
		return "set comprehension"
	case *DictComp:
		return "dict comprehension"
	case *GeneratorExp:
		return "generator expression"
	case *Dict:
		return "dict literal"
	case *Set:
		return "set display"
	case *Name:
		return "name"
	}
	return "expression"
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *parser) tupleEnd() bool {
	t := p.peek()
	if p.atStmtEnd() {
		return true
	}
	if t.Kind == OP {
		switch t.Text {
		case "=", ")", "]", "}", ":":
			return true
		}
		return augAssignOps[t.Text]
	}
	return false
}

// testList parses a comma separated expression list, producing a Tuple
// when a comma is present. Starred items are allowed.
func (p *parser) testList() Expr {
	t := p.peek()
	first := p.starOrTest()
	if !p.isOp(",") {
		return first
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.tupleEnd() {
			break
		}
		elts = append(elts, p.starOrTest())
	}
	return at(t.Pos, &Tuple{Elts: elts})
}

// exprList parses loop and deletion targets, which stop short of the
// comparison operators so `for x in y` leaves `in` unconsumed.
func (p *parser) exprList() Expr {
	t := p.peek()
	first := p.starOrExpr()
	if !p.isOp(",") {
		return first
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isKw("in") || p.tupleEnd() {
			break
		}
		elts = append(elts, p.starOrExpr())
	}
	return at(t.Pos, &Tuple{Elts: elts})
}

func (p *parser) starOrTest() Expr {
	if t := p.peek(); p.acceptOp("*") {
		return at(t.Pos, &Starred{Value: p.bitOr()})
	}
	return p.test()
}

func (p *parser) starOrExpr() Expr {
	if t := p.peek(); p.acceptOp("*") {
		return at(t.Pos, &Starred{Value: p.bitOr()})
	}
	return p.bitOr()
}

func (p *parser) test() Expr {
	t := p.peek()
	p.enter(t)
	defer p.leave()
	if p.isKw("lambda") {
		return p.lambda()
	}
	e := p.orTest()
	if p.acceptKw("if") {
		cond := p.orTest()
		if !p.acceptKw("else") {
			p.fail(p.peek(), "expected 'else' after 'if' expression")
		}
		e = at(t.Pos, &IfExp{Test: cond, Body: e, OrElse: p.test()})
	}
	if p.isOp(":=") {
		p.fail(p.peek(), "assignment expressions are not supported")
	}
	return e
}

func (p *parser) lambda() Expr {
	t := p.next()
	params := p.params(":", false)
	p.expectOp(":")
	return at(t.Pos, &Lambda{Params: params, Body: p.test()})
}

func (p *parser) boolOp(op string, operand func() Expr) Expr {
	t := p.peek()
	e := operand()
	if !p.isKw(op) {
		return e
	}
	vals := []Expr{e}
	for p.acceptKw(op) {
		vals = append(vals, operand())
	}
	return at(t.Pos, &BoolOp{Op: op, Values: vals})
}

func (p *parser) orTest() Expr { return p.boolOp("or", p.andTest) }

func (p *parser) andTest() Expr { return p.boolOp("and", p.notTest) }

func (p *parser) notTest() Expr {
	t := p.peek()
	if p.acceptKw("not") {
		p.enter(t)
		defer p.leave()
		return at(t.Pos, &UnaryOp{Op: "not", Operand: p.notTest()})
	}
	return p.comparison()
}

func (p *parser) compOp() string {
	t := p.peek()
	switch t.Kind {
	case OP:
		switch t.Text {
		case "<", ">", "==", ">=", "<=", "!=":
			p.next()
			return t.Text
		}
	case KEYWORD:
		switch t.Text {
		case "in":
			p.next()
			return "in"
		case "not":
			if n := p.peekAt(1); n.Kind == KEYWORD && n.Text == "in" {
				p.next()
				p.next()
				return "not in"
			}
		case "is":
			p.next()
			if p.acceptKw("not") {
				return "is not"
			}
			return "is"
		}
	}
	return ""
}

func (p *parser) comparison() Expr {
	t := p.peek()
	left := p.bitOr()
	var ops []string
	var comps []Expr
	for {
		op := p.compOp()
		if op == "" {
			break
		}
		ops = append(ops, op)
		comps = append(comps, p.bitOr())
	}
	if len(ops) == 0 {
		return left
	}
	return at(t.Pos, &Compare{Left: left, Ops: ops, Comparators: comps})
}

func (p *parser) binary(operand func() Expr, ops ...string) Expr {
	t := p.peek()
	e := operand()
	for {
		op := p.peek()
		if op.Kind != OP || !slices.Contains(ops, op.Text) {
			return e
		}
		p.next()
		e = at(t.Pos, &BinOp{Left: e, Op: op.Text, Right: operand()})
	}
}

func (p *parser) bitOr() Expr  { return p.binary(p.bitXor, "|") }
func (p *parser) bitXor() Expr { return p.binary(p.bitAnd, "^") }
func (p *parser) bitAnd() Expr { return p.binary(p.shift, "&") }
func (p *parser) shift() Expr  { return p.binary(p.arith, "<<", ">>") }
func (p *parser) arith() Expr  { return p.binary(p.term, "+", "-") }
func (p *parser) term() Expr   { return p.binary(p.factor, "*", "/", "//", "%", "@") }

func (p *parser) factor() Expr {
	t := p.peek()
	if t.Kind == OP && (t.Text == "-" || t.Text == "+" || t.Text == "~") {
		p.next()
		p.enter(t)
		defer p.leave()
		return at(t.Pos, &UnaryOp{Op: t.Text, Operand: p.factor()})
	}
	return p.power()
}

func (p *parser) power() Expr {
	t := p.peek()
	if p.isKw("await") {
		p.fail(t, "'await' is not supported")
	}
	e := p.atomExpr()
	if p.acceptOp("**") {
		p.enter(t)
		defer p.leave()
		e = at(t.Pos, &BinOp{Left: e, Op: "**", Right: p.factor()})
	}
	return e
}

func (p *parser) atomExpr() Expr {
	e := p.atom()
	for {
		switch {
		case p.acceptOp("("):
			e = p.call(e)
		case p.acceptOp("["):
			idx := p.subscriptList()
			p.expectOp("]")
			e = at(e.Position(), &Subscript{Value: e, Index: idx})
		case p.acceptOp("."):
			e = at(e.Position(), &Attribute{Value: e, Attr: p.expectName()})
		default:
			return e
		}
	}
}

func (p *parser) call(fn Expr) Expr {
	c := at(fn.Position(), &Call{Func: fn})
	sawKeyword, sawUnpack := false, false
	seen := map[string]bool{}
	for !p.isOp(")") {
		t := p.peek()
		switch {
		case p.acceptOp("*"):
			if sawUnpack {
				p.fail(t, "iterable argument unpacking follows keyword argument unpacking")
			}
			c.Args = append(c.Args, at(t.Pos, &Starred{Value: p.test()}))
		case p.acceptOp("**"):
			c.Keywords = append(c.Keywords, Keyword{Value: p.test()})
			sawUnpack = true
		case t.Kind == NAME && p.peekAt(1).Kind == OP && p.peekAt(1).Text == "=":
			p.next()
			p.next()
			if seen[t.Text] {
				p.fail(t, "keyword argument repeated: "+t.Text)
			}
			seen[t.Text] = true
			c.Keywords = append(c.Keywords, Keyword{Name: t.Text, Value: p.test()})
			sawKeyword = true
		default:
			e := p.test()
			if p.isKw("for") {
				e = at(t.Pos, &GeneratorExp{Elt: e, Generators: p.compFor()})
				if len(c.Args) > 0 || len(c.Keywords) > 0 || !p.isOp(")") {
					p.fail(t, "Generator expression must be parenthesized")
				}
			}
			if sawUnpack {
				p.fail(t, "positional argument follows keyword argument unpacking")
			}
			if sawKeyword {
				p.fail(t, "positional argument follows keyword argument")
			}
			c.Args = append(c.Args, e)
		}
		if !p.acceptOp(",") {
			break
		}
	}
	p.expectOp(")")
	return c
}

func (p *parser) subscriptList() Expr {
	t := p.peek()
	first := p.subscript()
	if !p.isOp(",") {
		return first
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp("]") {
			break
		}
		elts = append(elts, p.subscript())
	}
	return at(t.Pos, &Tuple{Elts: elts})
}

func (p *parser) subscript() Expr {
	t := p.peek()
	var lower Expr
	if !p.isOp(":") {
		lower = p.test()
		if !p.isOp(":") {
			return lower
		}
	}
	p.expectOp(":")
	s := at(t.Pos, &Slice{Lower: lower})
	if !p.isOp(":") && !p.isOp("]") && !p.isOp(",") {
		s.Upper = p.test()
	}
	if p.acceptOp(":") && !p.isOp("]") && !p.isOp(",") {
		s.Step = p.test()
	}
	return s
}

func (p *parser) compFor() []Comprehension {
	var gens []Comprehension
	for p.isKw("for") || p.isKw("async") {
		if p.isKw("async") {
			p.fail(p.peek(), "async comprehensions are not supported")
		}
		p.next()
		target := p.exprList()
		p.checkTarget(target, false)
		p.expectKw("in")
		g := Comprehension{Target: target, Iter: p.orTest()}
		for p.acceptKw("if") {
			g.Ifs = append(g.Ifs, p.orTest())
		}
		gens = append(gens, g)
	}
	return gens
}

func (p *parser) atom() Expr {
	t := p.next()
	switch t.Kind {
	case NAME:
		return at(t.Pos, &Name{ID: t.Text})
	case INT:
		v, _ := strconv.ParseInt(t.Text, 10, 64)
		return at(t.Pos, &Constant{Value: v})
	case FLOAT:
		v, _ := strconv.ParseFloat(t.Text, 64)
		return at(t.Pos, &Constant{Value: v})
	case STRING:
		return p.stringLiteral(t)
	case KEYWORD:
		switch t.Text {
		case "None":
			return at(t.Pos, &Constant{})
		case "True":
			return at(t.Pos, &Constant{Value: true})
		case "False":
			return at(t.Pos, &Constant{Value: false})
		case "yield":
			p.fail(t, "'yield' is not supported")
		case "await":
			p.fail(t, "'await' is not supported")
		}
	case OP:
		switch t.Text {
		case "(":
			return p.paren(t)
		case "[":
			return p.listDisplay(t)
		case "{":
			return p.braceDisplay(t)
		case "...":
			return at(t.Pos, &Constant{Value: Ellipsis})
		case ":=":
			p.fail(t, "assignment expressions are not supported")
		}
	case INDENT:
		p.fail(t, "unexpected indent")
	}
	p.fail(t, "invalid syntax")
	return nil
}

func (p *parser) paren(t Token) Expr {
	p.enter(t)
	defer p.leave()
	if p.acceptOp(")") {
		return at(t.Pos, &Tuple{})
	}
	if p.isKw("yield") {
		p.fail(p.peek(), "'yield' is not supported")
	}
	first := p.starOrTest()
	if p.isKw("for") {
		g := at(t.Pos, &GeneratorExp{Elt: first, Generators: p.compFor()})
		p.expectOp(")")
		return g
	}
	if p.acceptOp(")") {
		if _, ok := first.(*Starred); ok {
			p.failAt(first.Position(), "cannot use starred expression here")
		}
		return first
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp(")") {
			break
		}
		elts = append(elts, p.starOrTest())
	}
	p.expectOp(")")
	return at(t.Pos, &Tuple{Elts: elts})
}

func (p *parser) listDisplay(t Token) Expr {
	p.enter(t)
	defer p.leave()
	if p.acceptOp("]") {
		return at(t.Pos, &List{})
	}
	first := p.starOrTest()
	if p.isKw("for") {
		lc := at(t.Pos, &ListComp{Elt: first, Generators: p.compFor()})
		p.expectOp("]")
		return lc
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp("]") {
			break
		}
		elts = append(elts, p.starOrTest())
	}
	p.expectOp("]")
	return at(t.Pos, &List{Elts: elts})
}

func (p *parser) braceDisplay(t Token) Expr {
	p.enter(t)
	defer p.leave()
	if p.acceptOp("}") {
		return at(t.Pos, &Dict{})
	}
	if p.isOp("**") {
		return p.dictDisplay(t, nil)
	}
	first := p.starOrTest()
	if _, starred := first.(*Starred); !starred && p.acceptOp(":") {
		return p.dictDisplay(t, first)
	}
	if p.isKw("for") {
		sc := at(t.Pos, &SetComp{Elt: first, Generators: p.compFor()})
		p.expectOp("}")
		return sc
	}
	elts := []Expr{first}
	for p.acceptOp(",") {
		if p.isOp("}") {
			break
		}
		elts = append(elts, p.starOrTest())
	}
	p.expectOp("}")
	return at(t.Pos, &Set{Elts: elts})
}

// dictDisplay continues a dict display. When firstKey is non-nil its ':'
// has been consumed; otherwise the display starts with `**`.
func (p *parser) dictDisplay(t Token, firstKey Expr) Expr {
	d := at(t.Pos, &Dict{})
	entry := func(key Expr) {
		if key == nil {
			p.expectOp("**")
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, p.bitOr())
			return
		}
		d.Keys = append(d.Keys, key)
		d.Values = append(d.Values, p.test())
	}
	entry(firstKey)
	if firstKey != nil && p.isKw("for") {
		dc := at(t.Pos, &DictComp{Key: firstKey, Value: d.Values[0], Generators: p.compFor()})
		p.expectOp("}")
		return dc
	}
	for p.acceptOp(",") {
		if p.isOp("}") {
			break
		}
		if p.isOp("**") {
			entry(nil)
			continue
		}
		key := p.test()
		p.expectOp(":")
		entry(key)
	}
	p.expectOp("}")
	return d
}

// stringLiteral joins adjacent string tokens. Any f-string part turns the
// result into a JoinedStr.
func (p *parser) stringLiteral(first Token) Expr {
	toks := []Token{first}
	for p.peek().Kind == STRING {
		toks = append(toks, p.next())
	}
	hasF := slices.ContainsFunc(toks, func(t Token) bool { return t.FString })
	if !hasF {
		var b strings.Builder
		for _, t := range toks {
			b.WriteString(t.Text)
		}
		return at(first.Pos, &Constant{Value: b.String()})
	}
	var parts []Expr
	for _, t := range toks {
		if t.FString {
			parts = append(parts, p.fstring(t, t.Text, 0)...)
		} else if t.Text != "" {
			parts = append(parts, at(t.Pos, &Constant{Value: t.Text}))
		}
	}
	return at(first.Pos, &JoinedStr{Values: mergeConstants(parts)})
}

func mergeConstants(parts []Expr) []Expr {
	var out []Expr
	for _, e := range parts {
		c, ok := e.(*Constant)
		if ok && len(out) > 0 {
			if prev, ok := out[len(out)-1].(*Constant); ok {
				out[len(out)-1] = at(prev.Position(), &Constant{Value: prev.Value.(string) + c.Value.(string)})
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
