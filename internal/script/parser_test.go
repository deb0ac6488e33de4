package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseExprStmt(t *testing.T, src string) Expr {
	t.Helper()
	mod, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)
	es, ok := mod.Body[0].(*ExprStmt)
	require.True(t, ok, "expected expression statement, got %T", mod.Body[0])
	return es.Value
}

func TestParse_Programs(t *testing.T) {
	srcs := map[string]string{
		"arithmetic":     "x = 2 + 3 * 4 ** 2 // 5 % 3\nprint(x)\n",
		"functions":      "def f(a, b=2, *args, c, d=4, **kw) -> int:\n    return a + b\n",
		"lambda":         "sq = lambda x, y=1: x * y\n",
		"comprehensions": "a = [x for x in range(3) if x]\nb = {k: v for k, v in d.items()}\nc = {x for x in a}\nd = sum(x for x in a)\n",
		"loops":          "for i, (a, b) in enumerate(pairs):\n    if a:\n        continue\n    break\nelse:\n    pass\nwhile x < 3:\n    x += 1\n",
		"try":            "try:\n    x = 1 / 0\nexcept (ZeroDivisionError, ValueError) as e:\n    print(e)\nelse:\n    pass\nfinally:\n    print('done')\n",
		"imports":        "import math\nimport numpy as np, random\nfrom statistics import mean, median as med\nfrom matplotlib import (pyplot,)\n",
		"slices":         "a[1:2]\na[::2]\na[:, 0]\na[-1]\n",
		"strings":        "s = 'a' 'b'\nt = f'{x!r:>{width}} and {y=}'\n",
		"starred":        "a, *rest = [1, 2, 3]\nprint(*rest, **opts)\n",
		"conditional":    "y = 1 if x else 2\nz = not a and b or c\n",
		"comparisons":    "ok = 1 < x <= 3 and y not in z and w is not None\n",
		"semicolons":     "a = 1; b = 2;\n",
		"decorated":      "@dec\ndef f():\n    pass\n",
		"nested def":     "def outer():\n    n = 0\n    def inner():\n        nonlocal n\n        n += 1\n    return inner\n",
		"annotated":      "x: int = 5\n",
		"dict unpack":    "d = {**a, 'k': 1}\n",
		"assert raise":   "assert x, 'msg'\nraise ValueError('bad') from None\n",
		"global del":     "global g\ndel a[0], b\n",
		"no newline":     "print(1)",
		"empty":          "",
		"crlf":           "x = 1\r\nprint(x)\r\n",
	}
	for name, src := range srcs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(src)
			require.NoError(t, err)
		})
	}
}

func TestParse_Precedence(t *testing.T) {
	e := parseExprStmt(t, "1 + 2 * 3")
	bin, ok := e.(*BinOp)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
	right, ok := bin.Right.(*BinOp)
	require.True(t, ok)
	assert.Equal(t, "*", right.Op)

	e = parseExprStmt(t, "-2 ** 2")
	un, ok := e.(*UnaryOp)
	require.True(t, ok)
	assert.Equal(t, "-", un.Op)
	_, ok = un.Operand.(*BinOp)
	assert.True(t, ok)

	e = parseExprStmt(t, "2 ** 3 ** 2")
	pow, ok := e.(*BinOp)
	require.True(t, ok)
	_, ok = pow.Right.(*BinOp)
	assert.True(t, ok, "** is right associative")
}

func TestParse_ChainedCompare(t *testing.T) {
	e := parseExprStmt(t, "a < b not in c is not d")
	cmp, ok := e.(*Compare)
	require.True(t, ok)
	assert.Equal(t, []string{"<", "not in", "is not"}, cmp.Ops)
	assert.Len(t, cmp.Comparators, 3)
}

func TestParse_FString(t *testing.T) {
	e := parseExprStmt(t, `f"a{x}b{y!r:>{w}}{{}}"`)
	js, ok := e.(*JoinedStr)
	require.True(t, ok)
	require.Len(t, js.Values, 5)

	assert.Equal(t, "a", js.Values[0].(*Constant).Value)
	assert.Equal(t, "x", js.Values[1].(*FormattedValue).Value.(*Name).ID)
	assert.Equal(t, "b", js.Values[2].(*Constant).Value)

	fv := js.Values[3].(*FormattedValue)
	assert.Equal(t, byte('r'), fv.Conversion)
	spec, ok := fv.FormatSpec.(*JoinedStr)
	require.True(t, ok)
	assert.Len(t, spec.Values, 2)

	assert.Equal(t, "{}", js.Values[4].(*Constant).Value)
}

func TestParse_FStringDebug(t *testing.T) {
	e := parseExprStmt(t, `f"{x + 1 = }"`)
	js := e.(*JoinedStr)
	require.Len(t, js.Values, 2)
	assert.Equal(t, "x + 1 = ", js.Values[0].(*Constant).Value)
	assert.Equal(t, byte('r'), js.Values[1].(*FormattedValue).Conversion)
}

func TestParse_ImportFrom(t *testing.T) {
	mod, err := Parse("from .. import a\nfrom .pkg import b as c\n")
	require.NoError(t, err)

	first := mod.Body[0].(*ImportFrom)
	assert.Equal(t, 2, first.Level)
	assert.Equal(t, "", first.Module)
	assert.Equal(t, []Alias{{Name: "a"}}, first.Names)

	second := mod.Body[1].(*ImportFrom)
	assert.Equal(t, 1, second.Level)
	assert.Equal(t, "pkg", second.Module)
	assert.Equal(t, []Alias{{Name: "b", AsName: "c"}}, second.Names)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"missing colon", "if x\n    pass\n", "expected ':'"},
		{"unexpected indent", "x = 1\n    y = 2\n", "unexpected indent"},
		{"expected block", "if x:\npass\n", "expected an indented block"},
		{"assign literal", "1 = x\n", "cannot assign to literal"},
		{"assign call", "f() = 1\n", "cannot assign to function call"},
		{"break outside", "break\n", "'break' outside loop"},
		{"return outside", "return 1\n", "'return' outside function"},
		{"class", "class A:\n    pass\n", "class definitions are not supported"},
		{"with", "with open('f') as f:\n    pass\n", "'with' statements are not supported"},
		{"walrus", "if (n := 10) > 5:\n    pass\n", "assignment expressions are not supported"},
		{"yield", "def f():\n    yield 1\n", "'yield' is not supported"},
		{"default order", "def f(a=1, b):\n    pass\n", "non-default argument follows default argument"},
		{"duplicate arg", "def f(a, a):\n    pass\n", "duplicate argument 'a' in function definition"},
		{"positional after keyword", "f(a=1, 2)\n", "positional argument follows keyword argument"},
		{"repeated keyword", "f(a=1, a=2)\n", "keyword argument repeated: a"},
		{"bare genexp", "f(x for x in y, 1)\n", "Generator expression must be parenthesized"},
		{"single brace", "f'a}'\n", "f-string: single '}' is not allowed"},
		{"empty field", "f'{}'\n", "f-string: valid expression required before '}'"},
		{"stray token", "x y\n", "invalid syntax"},
		{"two stars", "*a, *b = c\n", "multiple starred expressions in assignment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.msg, se.Msg)
			assert.Positive(t, se.Pos.Line)
		})
	}
}

func TestParse_NestingLimit(t *testing.T) {
	src := ""
	for i := 0; i < 300; i++ {
		src += "("
	}
	src += "1"
	for i := 0; i < 300; i++ {
		src += ")"
	}
	_, err := Parse(src)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "too many nested expressions", se.Msg)
}

func TestInspect_VisitsNestedNodes(t *testing.T) {
	mod, err := Parse("def f(a=__import__):\n    return [g(x) for x in y if h.__dict__]\n")
	require.NoError(t, err)

	var names []string
	var attrs []string
	Inspect(mod, func(n Node) bool {
		switch n := n.(type) {
		case *Name:
			names = append(names, n.ID)
		case *Attribute:
			attrs = append(attrs, n.Attr)
		}
		return true
	})
	assert.Equal(t, []string{"__import__", "g", "x", "x", "y", "h"}, names)
	assert.Equal(t, []string{"__dict__"}, attrs)
}

func TestInspect_Prune(t *testing.T) {
	mod, err := Parse("f(g(h(1)))\n")
	require.NoError(t, err)

	calls := 0
	Inspect(mod, func(n Node) bool {
		if _, ok := n.(*Call); ok {
			calls++
			return false
		}
		return true
	})
	assert.Equal(t, 1, calls)
}
