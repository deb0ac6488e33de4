package script

// Node is any syntax tree node.
type Node interface {
	Position() Pos
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

type node struct{ P Pos }

func (n node) Position() Pos { return n.P }

type expr struct{ node }

func (expr) exprNode() {}

type stmt struct{ node }

func (stmt) stmtNode() {}

// Module is the root of a parsed snippet.
type Module struct {
	Body []Stmt
}

func (m *Module) Position() Pos { return Pos{Line: 1, Col: 1} }

// Ellipsis is the value of the `...` literal.
var Ellipsis = &struct{ name string }{"Ellipsis"}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

type (
	Name struct {
		expr
		ID string
	}

	// Constant holds nil, bool, int64, float64, string or Ellipsis.
	Constant struct {
		expr
		Value any
	}

	// JoinedStr is an f-string; Values are *Constant strings and
	// *FormattedValue parts.
	JoinedStr struct {
		expr
		Values []Expr
	}

	FormattedValue struct {
		expr
		Value      Expr
		Conversion byte // 0, 'r', 's' or 'a'
		FormatSpec Expr // nil or *JoinedStr
	}

	Attribute struct {
		expr
		Value Expr
		Attr  string
	}

	Subscript struct {
		expr
		Value Expr
		Index Expr
	}

	Slice struct {
		expr
		Lower, Upper, Step Expr
	}

	Keyword struct {
		Name  string // empty for **kwargs
		Value Expr
	}

	Call struct {
		expr
		Func     Expr
		Args     []Expr
		Keywords []Keyword
	}

	Starred struct {
		expr
		Value Expr
	}

	BinOp struct {
		expr
		Left  Expr
		Op    string
		Right Expr
	}

	UnaryOp struct {
		expr
		Op      string // "-", "+", "~", "not"
		Operand Expr
	}

	BoolOp struct {
		expr
		Op     string // "and" or "or"
		Values []Expr
	}

	// Compare is a chained comparison. Ops may include "in", "not in",
	// "is" and "is not".
	Compare struct {
		expr
		Left        Expr
		Ops         []string
		Comparators []Expr
	}

	IfExp struct {
		expr
		Test, Body, OrElse Expr
	}

	Lambda struct {
		expr
		Params *Params
		Body   Expr
	}

	List struct {
		expr
		Elts []Expr
	}

	Tuple struct {
		expr
		Elts []Expr
	}

	Set struct {
		expr
		Elts []Expr
	}

	// Dict entries with a nil key are `**mapping` unpackings.
	Dict struct {
		expr
		Keys   []Expr
		Values []Expr
	}

	Comprehension struct {
		Target Expr
		Iter   Expr
		Ifs    []Expr
	}

	ListComp struct {
		expr
		Elt        Expr
		Generators []Comprehension
	}

	SetComp struct {
		expr
		Elt        Expr
		Generators []Comprehension
	}

	DictComp struct {
		expr
		Key, Value Expr
		Generators []Comprehension
	}

	GeneratorExp struct {
		expr
		Elt        Expr
		Generators []Comprehension
	}
)

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

type (
	ExprStmt struct {
		stmt
		Value Expr
	}

	// Assign is `a = b = value`.
	Assign struct {
		stmt
		Targets []Expr
		Value   Expr
	}

	AugAssign struct {
		stmt
		Target Expr
		Op     string // binary operator without '='
		Value  Expr
	}

	AnnAssign struct {
		stmt
		Target     Expr
		Annotation Expr
		Value      Expr // may be nil
	}

	If struct {
		stmt
		Test   Expr
		Body   []Stmt
		OrElse []Stmt
	}

	While struct {
		stmt
		Test   Expr
		Body   []Stmt
		OrElse []Stmt
	}

	For struct {
		stmt
		Target Expr
		Iter   Expr
		Body   []Stmt
		OrElse []Stmt
	}

	Break struct{ stmt }

	Continue struct{ stmt }

	Pass struct{ stmt }

	Param struct {
		Name       string
		Annotation Expr
		Default    Expr
	}

	Params struct {
		Args   []Param
		VarArg *Param
		KwOnly []Param
		KwArg  *Param
	}

	FunctionDef struct {
		stmt
		Name       string
		Params     *Params
		Body       []Stmt
		Decorators []Expr
		Returns    Expr
	}

	Return struct {
		stmt
		Value Expr
	}

	Alias struct {
		Name   string // dotted path
		AsName string
	}

	Import struct {
		stmt
		Names []Alias
	}

	// ImportFrom is `from module import names`. Level counts leading dots.
	ImportFrom struct {
		stmt
		Module string
		Names  []Alias
		Level  int
	}

	Global struct {
		stmt
		Names []string
	}

	Nonlocal struct {
		stmt
		Names []string
	}

	Delete struct {
		stmt
		Targets []Expr
	}

	Assert struct {
		stmt
		Test Expr
		Msg  Expr
	}

	Raise struct {
		stmt
		Exc   Expr
		Cause Expr
	}

	ExceptHandler struct {
		P    Pos
		Type Expr // nil catches everything
		Name string
		Body []Stmt
	}

	Try struct {
		stmt
		Body      []Stmt
		Handlers  []ExceptHandler
		OrElse    []Stmt
		Finalbody []Stmt
	}
)

// Inspect traverses the tree rooted at n in depth-first pre-order, calling
// f for each node. If f returns false the children of that node are
// skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	expr := func(e Expr) {
		if e != nil {
			Inspect(e, f)
		}
	}
	exprs := func(es []Expr) {
		for _, e := range es {
			expr(e)
		}
	}
	stmts := func(ss []Stmt) {
		for _, s := range ss {
			Inspect(s, f)
		}
	}
	params := func(p *Params) {
		if p == nil {
			return
		}
		each := func(ps []Param) {
			for _, a := range ps {
				expr(a.Annotation)
				expr(a.Default)
			}
		}
		each(p.Args)
		if p.VarArg != nil {
			expr(p.VarArg.Annotation)
		}
		each(p.KwOnly)
		if p.KwArg != nil {
			expr(p.KwArg.Annotation)
		}
	}
	gens := func(gs []Comprehension) {
		for _, g := range gs {
			expr(g.Target)
			expr(g.Iter)
			exprs(g.Ifs)
		}
	}

	switch n := n.(type) {
	case *Module:
		stmts(n.Body)
	case *Name, *Constant:
	case *JoinedStr:
		exprs(n.Values)
	case *FormattedValue:
		expr(n.Value)
		expr(n.FormatSpec)
	case *Attribute:
		expr(n.Value)
	case *Subscript:
		expr(n.Value)
		expr(n.Index)
	case *Slice:
		expr(n.Lower)
		expr(n.Upper)
		expr(n.Step)
	case *Call:
		expr(n.Func)
		exprs(n.Args)
		for _, k := range n.Keywords {
			expr(k.Value)
		}
	case *Starred:
		expr(n.Value)
	case *BinOp:
		expr(n.Left)
		expr(n.Right)
	case *UnaryOp:
		expr(n.Operand)
	case *BoolOp:
		exprs(n.Values)
	case *Compare:
		expr(n.Left)
		exprs(n.Comparators)
	case *IfExp:
		expr(n.Test)
		expr(n.Body)
		expr(n.OrElse)
	case *Lambda:
		params(n.Params)
		expr(n.Body)
	case *List:
		exprs(n.Elts)
	case *Tuple:
		exprs(n.Elts)
	case *Set:
		exprs(n.Elts)
	case *Dict:
		for i := range n.Values {
			expr(n.Keys[i])
			expr(n.Values[i])
		}
	case *ListComp:
		expr(n.Elt)
		gens(n.Generators)
	case *SetComp:
		expr(n.Elt)
		gens(n.Generators)
	case *DictComp:
		expr(n.Key)
		expr(n.Value)
		gens(n.Generators)
	case *GeneratorExp:
		expr(n.Elt)
		gens(n.Generators)

	case *ExprStmt:
		expr(n.Value)
	case *Assign:
		exprs(n.Targets)
		expr(n.Value)
	case *AugAssign:
		expr(n.Target)
		expr(n.Value)
	case *AnnAssign:
		expr(n.Target)
		expr(n.Annotation)
		expr(n.Value)
	case *If:
		expr(n.Test)
		stmts(n.Body)
		stmts(n.OrElse)
	case *While:
		expr(n.Test)
		stmts(n.Body)
		stmts(n.OrElse)
	case *For:
		expr(n.Target)
		expr(n.Iter)
		stmts(n.Body)
		stmts(n.OrElse)
	case *Break, *Continue, *Pass, *Global, *Nonlocal, *Import, *ImportFrom:
	case *FunctionDef:
		exprs(n.Decorators)
		params(n.Params)
		expr(n.Returns)
		stmts(n.Body)
	case *Return:
		expr(n.Value)
	case *Delete:
		exprs(n.Targets)
	case *Assert:
		expr(n.Test)
		expr(n.Msg)
	case *Raise:
		expr(n.Exc)
		expr(n.Cause)
	case *Try:
		stmts(n.Body)
		for _, h := range n.Handlers {
			expr(h.Type)
			stmts(h.Body)
		}
		stmts(n.OrElse)
		stmts(n.Finalbody)
	}
}
