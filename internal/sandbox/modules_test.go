package sandbox

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type moduleCase struct {
	name string
	src  string
	want string
}

func runCases(t *testing.T, tests []moduleCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, tt.src)
			require.NoError(t, out.Err, Reason(out.Err))
			assert.Equal(t, tt.want, out.Output)
		})
	}
}

func TestModules(t *testing.T) {
	assert.Equal(t, []string{"math", "matplotlib", "matplotlib.pyplot", "numpy", "numpy.random", "random", "statistics"}, Modules())
}

func TestMath(t *testing.T) {
	runCases(t, []moduleCase{
		{"constants", "import math\nprint(math.pi, math.e)", "3.141592653589793 2.718281828459045"},
		{"sqrt", "import math\nprint(math.sqrt(2))", "1.4142135623730951"},
		{"floor ceil return int", "import math\nprint(math.floor(2.7), math.ceil(2.1), math.trunc(-2.7))", "2 3 -2"},
		{"factorial", "import math\nprint(math.factorial(10))", "3628800"},
		{"gcd lcm", "import math\nprint(math.gcd(12, 18), math.lcm(4, 6))", "6 12"},
		{"comb perm", "import math\nprint(math.comb(5, 2), math.perm(5, 2))", "10 20"},
		{"isqrt", "import math\nprint(math.isqrt(99))", "9"},
		{"log2", "import math\nprint(math.log2(8), math.log10(1000))", "3.0 3.0"},
		{"isclose", "import math\nprint(math.isclose(0.1 + 0.2, 0.3))", "True"},
		{"fsum", "import math\nprint(math.fsum([0.1] * 10))", "1.0"},
		{"predicates", "import math\nprint(math.isnan(math.nan), math.isinf(-math.inf), math.isfinite(1.0))", "True True True"},
		{"hypot", "import math\nprint(math.hypot(3, 4))", "5.0"},
		{"degrees", "import math\nprint(math.degrees(math.pi))", "180.0"},
		{"from import", "from math import pi, sqrt\nprint(round(pi * sqrt(4), 4))", "6.2832"},
	})
}

func TestMath_Errors(t *testing.T) {
	tests := map[string]string{
		"import math\nmath.sqrt(-1)":      "ValueError('math domain error')",
		"import math\nmath.log(0)":        "ValueError('math domain error')",
		"import math\nmath.factorial(-1)": "ValueError('factorial() not defined for negative values')",
		"import math\nmath.exp(1000)":     "OverflowError('math range error')",
		"import math\nmath.nope":          "AttributeError(\"module 'math' has no attribute 'nope'\")",
	}
	for src, reason := range tests {
		out := run(t, src)
		assert.Equal(t, reason, Reason(out.Err), src)
	}
}

func TestStatistics(t *testing.T) {
	runCases(t, []moduleCase{
		{"mean exact", "import statistics\nprint(statistics.mean([1, 2, 3]), statistics.mean([1, 2]))", "2 1.5"},
		{"median", "import statistics as st\nprint(st.median([3, 1, 2]), st.median([1, 2, 3, 4]))", "2 2.5"},
		{"median low high", "import statistics as st\nprint(st.median_low([1, 2, 3, 4]), st.median_high([1, 2, 3, 4]))", "2 3"},
		{"mode", "import statistics as st\nprint(st.mode([1, 1, 2]), st.multimode('aabbc'))", "1 ['a', 'b']"},
		{"stdev", "import statistics as st\nprint(st.pstdev([2, 4, 4, 4, 5, 5, 7, 9]))", "2.0"},
		{"sample stdev", "import statistics as st\nprint(st.stdev([2, 4, 4, 4, 5, 5, 7, 9]))", "2.138089935299395"},
		{"fmean", "from statistics import fmean\nprint(fmean([1, 2, 3]))", "2.0"},
	})
}

func TestStatistics_Errors(t *testing.T) {
	out := run(t, "import statistics\nstatistics.mean([])")
	assert.Equal(t, "StatisticsError('mean requires at least one data point')", Reason(out.Err))

	out = run(t, "import statistics\ntry:\n    statistics.variance([1])\nexcept ValueError:\n    print('caught')")
	require.NoError(t, out.Err)
	assert.Equal(t, "caught", out.Output)
}

func TestRandom_Ranges(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64Min(1).Draw(t, "seed")
		lo := rapid.IntRange(-100, 100).Draw(t, "lo")
		hi := lo + rapid.IntRange(0, 100).Draw(t, "span")
		src := "import random\n" +
			"print(random.randint(" + strconv.Itoa(lo) + ", " + strconv.Itoa(hi) + "))\n" +
			"r = random.random()\nprint(0 <= r < 1)"
		out := Run(context.Background(), src, Options{Seed: seed})
		if out.Err != nil {
			t.Fatalf("unexpected error: %s", Reason(out.Err))
		}
		lines := strings.Split(out.Output, "\n")
		n, err := strconv.Atoi(lines[0])
		if err != nil || n < lo || n > hi {
			t.Fatalf("randint(%d, %d) gave %q", lo, hi, lines[0])
		}
		if lines[1] != "True" {
			t.Fatalf("random() out of range")
		}
	})
}

func TestRandom_SeedWithinRun(t *testing.T) {
	src := "import random\nrandom.seed(3)\na = [random.random() for _ in range(3)]\nrandom.seed(3)\nb = [random.random() for _ in range(3)]\nprint(a == b)"
	out := Run(context.Background(), src, Options{})
	require.NoError(t, out.Err)
	assert.Equal(t, "True", out.Output)
}

func TestRandom_Collections(t *testing.T) {
	runCases(t, []moduleCase{
		{"shuffle keeps items", "import random\nx = list(range(10))\nrandom.shuffle(x)\nprint(sorted(x) == list(range(10)))", "True"},
		{"sample distinct", "import random\ns = random.sample(range(100), 10)\nprint(len(set(s)))", "10"},
		{"choice member", "import random\nprint(random.choice('abc') in 'abc')", "True"},
		{"choices k", "import random\nprint(len(random.choices([1, 2], weights=[1, 0], k=5)), set(random.choices([1, 2], weights=[1, 0], k=5)))", "5 {1}"},
	})
	out := run(t, "import random\nrandom.choice([])")
	assert.Equal(t, "IndexError('Cannot choose from an empty sequence')", Reason(out.Err))
}

func TestNumpy(t *testing.T) {
	runCases(t, []moduleCase{
		{"int array", "import numpy as np\nprint(np.array([1, 2, 3]))", "[1 2 3]"},
		{"float array", "import numpy as np\nprint(np.array([1.0, 2.5]))", "[1.  2.5]"},
		{"repr", "import numpy as np\nprint(repr(np.array([1.0, 2.5])))", "array([1. , 2.5])"},
		{"empty repr", "import numpy as np\nprint(repr(np.array([])))", "array([], dtype=float64)"},
		{"linspace", "import numpy as np\nprint(np.linspace(0, 1, 5))", "[0.   0.25 0.5  0.75 1.  ]"},
		{"broadcast", "import numpy as np\na = np.arange(3)\nprint(a + 1, a * 0.5)", "[1 2 3] [0.  0.5 1. ]"},
		{"comparison mask", "import numpy as np\na = np.array([1, 2, 3, 4])\nprint(a > 2, a[a > 2])", "[False False  True  True] [3 4]"},
		{"reductions", "import numpy as np\na = np.array([1, 2, 3, 4])\nprint(a.sum(), np.mean(a), a.max(), np.argmin(a))", "10 2.5 4 0"},
		{"std", "import numpy as np\nprint(np.std([2, 4, 4, 4, 5, 5, 7, 9]))", "2.0"},
		{"shape", "import numpy as np\na = np.zeros(4)\nprint(a.shape, a.size, a.dtype)", "(4,) 4 float64"},
		{"cumsum", "import numpy as np\nprint(np.cumsum([1, 2, 3]))", "[1 3 6]"},
		{"tolist", "import numpy as np\nprint(np.arange(3).tolist())", "[0, 1, 2]"},
		{"setitem", "import numpy as np\na = np.zeros(3, dtype=int)\na[1] = 5\nprint(a)", "[0 5 0]"},
		{"where", "import numpy as np\na = np.arange(5)\nprint(np.where(a % 2 == 0, a, -1))", "[ 0 -1  2 -1  4]"},
		{"sort unique", "import numpy as np\nprint(np.unique([3, 1, 3, 2]), np.sort([3, 1, 2]))", "[1 2 3] [1 2 3]"},
		{"polyfit", "import numpy as np\nm, b = np.polyfit([0, 1, 2], [1, 3, 5], 1)\nprint(round(m, 6), round(b, 6))", "2.0 1.0"},
		{"random seeded", "import numpy as np\nnp.random.seed(1)\na = np.random.rand(3)\nnp.random.seed(1)\nb = np.random.rand(3)\nprint((a == b).all())", "True"},
		{"default_rng", "import numpy as np\nrng = np.random.default_rng(5)\nx = rng.integers(0, 10, size=100)\nprint(x.min() >= 0, x.max() < 10)", "True True"},
	})
}

func TestNumpy_Errors(t *testing.T) {
	tests := map[string]string{
		"import numpy as np\nnp.array([[1, 2], [3, 4]])":  "ValueError('only 1-dimensional arrays are supported')",
		"import numpy as np\nnp.arange(3) + np.arange(4)": "ValueError('operands could not be broadcast together with shapes (3,) (4,) ')",
		"import numpy as np\nnp.arange(3)[5]":             "IndexError('index 5 is out of bounds for axis 0 with size 3')",
	}
	for src, reason := range tests {
		out := run(t, src)
		assert.Equal(t, reason, Reason(out.Err), src)
	}
}
