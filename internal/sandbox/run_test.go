package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sakif/pygate/internal/script"
)

func run(t *testing.T, src string) Outcome {
	t.Helper()
	return Run(context.Background(), src, Options{Seed: 42, Timeout: 5 * time.Second})
}

func TestRun_Output(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"print", "print('hello')", "hello"},
		{"trimmed", "print('  a  ')\nprint()", "a"},
		{"empty", "x = 1", ""},
		{"arithmetic", "print(2 ** 10, 7 // 2, -7 // 2, 7 % -3, 10 / 4)", "1024 3 -4 -2 2.5"},
		{"float repr", "print(0.1 + 0.2)", "0.30000000000000004"},
		{"sep and end", "print(1, 2, 3, sep='-', end='!')", "1-2-3!"},
		{"sum list", "print(sum([1, 2, 3]))", "6"},
		{"list repr", "print([1, 'a', None, True, 2.0])", "[1, 'a', None, True, 2.0]"},
		{"tuple repr", "print((1,), ())", "(1,) ()"},
		{"dict insertion order", "d = {'b': 1, 'a': 2}\nd['c'] = 3\nprint(d)", "{'b': 1, 'a': 2, 'c': 3}"},
		{"comprehensions", "print([x * x for x in range(5) if x % 2 == 0])", "[0, 4, 16]"},
		{"dict comprehension", "print({k: len(k) for k in ['a', 'bb']})", "{'a': 1, 'bb': 2}"},
		{"generator expression", "print(sum(x for x in range(101)))", "5050"},
		{"chained comparison", "x = 5\nprint(1 < x < 10, 1 < x > 10)", "True False"},
		{"slicing", "s = 'abcdef'\nprint(s[1:4], s[::-1], s[-2:])", "bcd fedcba ef"},
		{"tuple unpacking", "a, (b, *c) = 1, (2, 3, 4)\nprint(a, b, c)", "1 2 [3, 4]"},
		{"augmented", "x = [1]\nx += [2]\nn = 3\nn *= 4\nprint(x, n)", "[1, 2] 12"},
		{"fstring", "name = 'pi'\nv = 3.14159\nprint(f'{name}={v:.2f} {v!r:>10}')", "pi=3.14    3.14159"},
		{"percent format", "print('%s has %d items (%.1f%%)' % ('box', 3, 12.5))", "box has 3 items (12.5%)"},
		{"str.format", "print('{0}-{1}-{0}'.format('a', 'b'))", "a-b-a"},
		{"string methods", "print(' x,y '.strip().split(','), '-'.join(['a', 'b']).upper())", "['x', 'y'] A-B"},
		{"sorted key", "print(sorted(['bb', 'a', 'ccc'], key=len, reverse=True))", "['ccc', 'bb', 'a']"},
		{"enumerate zip", "for i, (a, b) in enumerate(zip('ab', [1, 2])):\n    print(i, a, b)", "0 a 1\n1 b 2"},
		{"map filter", "print(list(map(lambda x: x + 1, filter(lambda x: x > 1, [1, 2, 3]))))", "[3, 4]"},
		{"while else", "i = 0\nwhile i < 3:\n    i += 1\nelse:\n    print('done', i)", "done 3"},
		{"for break else", "for i in range(5):\n    if i == 2:\n        break\nelse:\n    print('no')\nprint(i)", "2"},
		{"defaults and kwargs", "def f(a, b=2, *args, c=3, **kw):\n    return a, b, args, c, kw\nprint(f(1, c=4, d=5))", "(1, 2, (), 4, {'d': 5})"},
		{"closure nonlocal", "def counter():\n    n = 0\n    def inc():\n        nonlocal n\n        n += 1\n        return n\n    return inc\nc = counter()\nc()\nprint(c())", "2"},
		{"global", "n = 1\ndef f():\n    global n\n    n = 5\nf()\nprint(n)", "5"},
		{"decorator", "def twice(fn):\n    def w(x):\n        return fn(fn(x))\n    return w\n@twice\ndef inc(x):\n    return x + 1\nprint(inc(1))", "3"},
		{"recursion", "def fib(n):\n    return n if n < 2 else fib(n - 1) + fib(n - 2)\nprint(fib(20))", "6765"},
		{"try except else finally", "try:\n    x = 1 / 1\nexcept ZeroDivisionError:\n    print('no')\nelse:\n    print('else')\nfinally:\n    print('fin')", "else\nfin"},
		{"except as", "try:\n    [][1]\nexcept LookupError as e:\n    print(repr(e))", "IndexError('list index out of range')"},
		{"str of caught", "try:\n    raise ValueError('bad')\nexcept Exception as e:\n    print(e)", "bad"},
		{"bare reraise", "try:\n    try:\n        1 / 0\n    except ZeroDivisionError:\n        raise\nexcept ArithmeticError as e:\n    print(repr(e))", "ZeroDivisionError('division by zero')"},
		{"isinstance", "print(isinstance(1, int), isinstance(True, int), isinstance(1.0, (str, float)))", "True True True"},
		{"divmod pow", "print(divmod(17, 5), pow(2, 10, 1000))", "(3, 2) 24"},
		{"round", "print(round(2.5), round(3.5), round(2.675, 2))", "2 4 2.67"},
		{"chr ord", "print(chr(ord('a') + 1))", "b"},
		{"del", "d = {'a': 1, 'b': 2}\ndel d['a']\nprint(d)", "{'b': 2}"},
		{"assert passes", "assert 1 + 1 == 2, 'math'\nprint('ok')", "ok"},
		{"set ops", "print(sorted({1, 2, 3} & {2, 3, 4}))", "[2, 3]"},
		{"conditional expression", "print('even' if 4 % 2 == 0 else 'odd')", "even"},
		{"import math", "import math\nprint(math.sqrt(16))", "4.0"},
		{"from import", "from statistics import mean\nprint(mean([1, 2, 3, 4]))", "2.5"},
		{"numpy alias", "import numpy as np\nprint(np.arange(4) * 2)", "[0 2 4 6]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, tt.src)
			require.NoError(t, out.Err, Reason(out.Err))
			assert.Equal(t, tt.want, out.Output)
		})
	}
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		reason string
	}{
		{"zero division", "print(1 / 0)", "ZeroDivisionError('division by zero')"},
		{"integer modulo", "print(1 % 0)", "ZeroDivisionError('integer modulo by zero')"},
		{"name error", "print(missing)", "NameError(\"name 'missing' is not defined\")"},
		{"key error", "{}['k']", "KeyError('k')"},
		{"raise", "raise ValueError('bad value')", "ValueError('bad value')"},
		{"raise no args", "raise RuntimeError", "RuntimeError()"},
		{"assert message", "assert 1 == 2, 'nope'", "AssertionError('nope')"},
		{"int overflow", "print(2 ** 64)", "OverflowError('integer result too large for a 64-bit int')"},
		{"missing module", "import pandas", "ModuleNotFoundError(\"No module named 'pandas'\")"},
		{"missing submodule", "import seaborn.objects", "ModuleNotFoundError(\"No module named 'seaborn'\")"},
		{"eval is absent", "eval('1')", "NameError(\"name 'eval' is not defined\")"},
		{"getattr is absent", "getattr(1, 'real')", "NameError(\"name 'getattr' is not defined\")"},
		{"type is absent", "type(1)", "NameError(\"name 'type' is not defined\")"},
		{"dunder attribute", "x = (1).__class__", "AttributeError(\"'int' object has no attribute '__class__'\")"},
		{"syntax", "print(", "SyntaxError("},
		{"syntax quotes the message", "print(", "SyntaxError(\"'(' was never closed"},
		{"class unsupported", "class A:\n    pass", "SyntaxError("},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, tt.src)
			require.Error(t, out.Err)
			assert.True(t, strings.HasPrefix(Reason(out.Err), tt.reason), Reason(out.Err))
		})
	}
}

func TestRun_SyntaxErrorIsScriptError(t *testing.T) {
	out := run(t, "x = = 1")
	var se *script.SyntaxError
	require.True(t, errors.As(out.Err, &se))
	assert.Equal(t, 1, se.Pos.Line)
	assert.Equal(t, "SyntaxError("+reprString(se.Error())+")", Reason(out.Err))
}

func TestRun_OutputKeptOnFailure(t *testing.T) {
	out := run(t, "print('before')\nraise ValueError('x')\nprint('after')")
	require.Error(t, out.Err)
	assert.Equal(t, "before", out.Output)
}

func TestRun_ExceptionCarriesClass(t *testing.T) {
	out := run(t, "[1, 2][5]")
	var exc *Exception
	require.True(t, errors.As(out.Err, &exc))
	assert.True(t, exc.Class.IsSubclass(LookupError))
	assert.Equal(t, "list index out of range", exc.Message())
}

func TestRun_Timeout(t *testing.T) {
	start := time.Now()
	// a budget the loop cannot exhaust before the deadline
	out := Run(context.Background(), "while True:\n    pass", Options{
		Timeout: 50 * time.Millisecond,
		Limits:  Limits{MaxSteps: 1 << 62},
	})
	var le *LimitError
	require.True(t, errors.As(out.Err, &le), "got %v", out.Err)
	assert.Equal(t, LimitTimeout, le.Kind)
	assert.Equal(t, "Timeout('execution exceeded 50ms')", Reason(out.Err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := Run(ctx, "while True:\n    pass", Options{})
	var le *LimitError
	require.True(t, errors.As(out.Err, &le))
	assert.Equal(t, "Timeout('execution cancelled')", Reason(out.Err))
}

func TestRun_LimitsAreNotCatchable(t *testing.T) {
	src := "try:\n    while True:\n        pass\nexcept Exception:\n    print('caught')"
	out := Run(context.Background(), src, Options{Limits: Limits{MaxSteps: 10_000}})
	var le *LimitError
	require.True(t, errors.As(out.Err, &le))
	assert.Equal(t, LimitResource, le.Kind)
	assert.Equal(t, "ResourceLimit('step budget of 10000 exceeded')", Reason(out.Err))
	assert.Empty(t, out.Output)
}

func TestRun_ResourceLimits(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		limits Limits
		reason string
	}{
		{
			name:   "output",
			src:    "while True:\n    print('x' * 100)",
			limits: Limits{OutputKB: 1},
			reason: "ResourceLimit('output exceeded 1 KiB')",
		},
		{
			name:   "list size",
			src:    "x = [0] * 1001",
			limits: Limits{MaxItems: 1000},
			reason: "ResourceLimit('container exceeded 1000 items')",
		},
		{
			name:   "string size",
			src:    "s = 'ab' * 600",
			limits: Limits{MaxStrBytes: 1000},
			reason: "ResourceLimit('string exceeded 1000 bytes')",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Run(context.Background(), tt.src, Options{Limits: tt.limits})
			assert.Equal(t, tt.reason, Reason(out.Err))
		})
	}
}

func TestRun_OutputTruncatedAtCap(t *testing.T) {
	out := Run(context.Background(), "while True:\n    print('x' * 100)", Options{Limits: Limits{OutputKB: 1}})
	require.Error(t, out.Err)
	assert.LessOrEqual(t, len(out.Output), 1024)
	assert.NotEmpty(t, out.Output)
}

func TestRun_LargeRanges(t *testing.T) {
	const (
		evens = "range(0, 9223372036854775807, 2)"
		full  = "range(-9223372036854775807 - 1, 9223372036854775807)"
	)
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"len near max", "print(len(" + evens + "))", "4611686018427387904"},
		{"len negative step", "print(len(range(9223372036854775807, -9223372036854775807, -3)))", "6148914691236517205"},
		{"last element", "print(" + evens + "[-1])", "9223372036854775806"},
		{"first element", "print(" + full + "[0])", "-9223372036854775808"},
		{"loop over full domain", "for i in " + full + ":\n    print(i)\n    break", "-9223372036854775808"},
		{"contains", "r = " + evens + "\nprint(9223372036854775806 in r, 9223372036854775805 in r, -2 in r)", "True False False"},
		{"index", "print(" + evens + ".index(9223372036854775806))", "4611686018427387903"},
		{"tail slice", "print(list(" + evens + "[-2:]))", "[9223372036854775804, 9223372036854775806]"},
		{"reversed slice", "print(range(5)[::-1], list(range(5)[::-2]))", "range(4, -1, -1) [4, 2, 0]"},
		{"equality", "print(range(0, 3, 2) == range(0, 4, 2), range(0) == range(5, 1))", "True True"},
		{"full domain truthy", "print(bool(" + full + "))", "True"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, tt.src)
			require.NoError(t, out.Err, Reason(out.Err))
			assert.Equal(t, tt.want, out.Output)
		})
	}

	out := run(t, "len("+full+")")
	assert.Equal(t, "OverflowError('Python int too large to convert to C ssize_t')", Reason(out.Err))
}

func TestRun_RecursionDepth(t *testing.T) {
	out := Run(context.Background(), "def f(n):\n    return f(n + 1)\nf(0)", Options{Limits: Limits{MaxDepth: 50}})
	assert.Equal(t, "RecursionError('maximum recursion depth exceeded')", Reason(out.Err))

	// RecursionError is an ordinary exception and can be handled.
	out = Run(context.Background(), "def f(n):\n    return f(n + 1)\ntry:\n    f(0)\nexcept RecursionError:\n    print('deep')", Options{Limits: Limits{MaxDepth: 50}})
	require.NoError(t, out.Err)
	assert.Equal(t, "deep", out.Output)
}

func TestRun_AllowImport(t *testing.T) {
	allow := func(path string) bool { return path == "math" }
	out := Run(context.Background(), "import math\nimport random", Options{AllowImport: allow})
	assert.Equal(t, "ImportError(\"Import of 'random' is not allowed\")", Reason(out.Err))
}

func TestRun_Isolation(t *testing.T) {
	first := run(t, "import matplotlib.pyplot as plt\nplt.plot([1, 2])\nx = 1\nprint(x)")
	require.NoError(t, first.Err)
	assert.Equal(t, "1", first.Output)

	second := run(t, "import matplotlib.pyplot as plt\nprint(len(plt.gcf().axes))\nprint(x)")
	assert.Equal(t, "0", second.Output)
	assert.Equal(t, "NameError(\"name 'x' is not defined\")", Reason(second.Err))
}

func TestRun_ModuleAttributesAreReadOnly(t *testing.T) {
	out := run(t, "import math\nmath.pi = 3")
	assert.Equal(t, "AttributeError(\"'module' object attribute 'pi' is read-only\")", Reason(out.Err))
}

func TestRun_SeedIsDeterministic(t *testing.T) {
	src := "import random\nprint([random.randint(1, 100) for _ in range(5)])"
	a := Run(context.Background(), src, Options{Seed: 7})
	b := Run(context.Background(), src, Options{Seed: 7})
	require.NoError(t, a.Err)
	assert.Equal(t, a.Output, b.Output)
}

func TestRun_CountsSteps(t *testing.T) {
	out := run(t, "for i in range(100):\n    pass")
	require.NoError(t, out.Err)
	assert.GreaterOrEqual(t, out.Steps, int64(100))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "RuntimeError('boom')", Reason(errors.New("boom")))
	assert.Equal(t, "SystemError('x')", Reason(&InternalError{Msg: "x"}))
	assert.Equal(t, "SyntaxError('invalid syntax')", Reason(&script.SyntaxError{Msg: "invalid syntax"}))
}

func TestAllowlist(t *testing.T) {
	names := Allowlist()
	for _, want := range []string{"print", "range", "len", "ValueError", "StopIteration", "ord"} {
		assert.Contains(t, names, want)
	}
	for _, banned := range []string{"eval", "exec", "compile", "open", "input", "__import__", "getattr", "type", "globals"} {
		assert.NotContains(t, names, banned)
	}
}

func TestRun_IntegerArithmeticProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(-1_000_000, 1_000_000).Draw(t, "a")
		b := rapid.Int64Range(-1_000_000, 1_000_000).Filter(func(v int64) bool { return v != 0 }).Draw(t, "b")
		src := fmt.Sprintf("a, b = %d, %d\nprint(a + b, a - b, a * b, a // b, a %% b)", a, b)
		out := Run(context.Background(), src, Options{})
		if out.Err != nil {
			t.Fatalf("unexpected error: %s", Reason(out.Err))
		}
		q, r := a/b, a%b
		if r != 0 && (r < 0) != (b < 0) {
			q, r = q-1, r+b
		}
		want := fmt.Sprintf("%d %d %d %d %d", a+b, a-b, a*b, q, r)
		if out.Output != want {
			t.Fatalf("got %q, want %q", out.Output, want)
		}
	})
}

func TestRun_PrintedStringsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[a-zA-Z0-9 .,:;!?-]{0,40}`).Draw(t, "s")
		out := Run(context.Background(), "print("+reprString(s)+")", Options{})
		if out.Err != nil {
			t.Fatalf("unexpected error: %s", Reason(out.Err))
		}
		if out.Output != strings.TrimSpace(s) {
			t.Fatalf("got %q, want %q", out.Output, strings.TrimSpace(s))
		}
	})
}
