package policy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pygate/internal/apperror"
)

const allowedRootsText = "['math', 'matplotlib', 'matplotlib.pyplot', 'numpy', 'pandas', 'random', 'seaborn', 'statistics']"

func TestValidate_Accepts(t *testing.T) {
	p := Default()
	srcs := []string{
		"print(sum([1, 2, 3]))",
		"import math\nprint(math.sqrt(16))",
		"import numpy as np\nimport matplotlib.pyplot as plt",
		"from matplotlib import pyplot as plt",
		"from statistics import mean, median",
		"from math import sqrt\nprint(sqrt(4))",
		"import numpy.linalg",
		"x = {'__name__': 1}\nprint(x['__name__'])",
		"def f(x):\n    return x.real",
		"",
	}
	for _, src := range srcs {
		t.Run(src, func(t *testing.T) {
			assert.NoError(t, p.Validate(src))
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	p := Default()
	tests := []struct {
		name    string
		src     string
		rule    string
		message string
	}{
		{
			name:    "disallowed import",
			src:     "import os\nprint(os.getcwd())",
			rule:    RuleImport,
			message: "Import 'os' is not allowed. Allowed roots: " + allowedRootsText,
		},
		{
			name:    "disallowed from import",
			src:     "from subprocess import run",
			rule:    RuleImport,
			message: "Import 'subprocess' is not allowed. Allowed roots: " + allowedRootsText,
		},
		{
			name:    "relative import",
			src:     "from . import secrets",
			rule:    RuleImport,
			message: "Import 'secrets' is not allowed. Allowed roots: " + allowedRootsText,
		},
		{
			name:    "relative import with module",
			src:     "from .math import sqrt",
			rule:    RuleImport,
			message: "Import '.math' is not allowed. Allowed roots: " + allowedRootsText,
		},
		{
			name:    "forbidden call",
			src:     "eval('1+1')",
			rule:    RuleIdentifier,
			message: "Use of 'eval' is not allowed",
		},
		{
			name:    "forbidden name as value",
			src:     "f = exec",
			rule:    RuleIdentifier,
			message: "Use of 'exec' is not allowed",
		},
		{
			name:    "forbidden name as argument",
			src:     "print(open)",
			rule:    RuleIdentifier,
			message: "Use of 'open' is not allowed",
		},
		{
			name:    "forbidden name in default",
			src:     "def f(g=compile):\n    pass",
			rule:    RuleIdentifier,
			message: "Use of 'compile' is not allowed",
		},
		{
			name:    "forbidden name in decorator",
			src:     "@input\ndef f():\n    pass",
			rule:    RuleIdentifier,
			message: "Use of 'input' is not allowed",
		},
		{
			name:    "forbidden name in f-string",
			src:     "print(f'{__import__}')",
			rule:    RuleIdentifier,
			message: "Use of '__import__' is not allowed",
		},
		{
			name:    "dunder attribute",
			src:     "print(().__class__.__bases__)",
			rule:    RuleAttribute,
			message: "Dunder attribute access is not allowed",
		},
		{
			name:    "dunder in format spec",
			src:     "print(f'{1:{x.__doc__}}')",
			rule:    RuleAttribute,
			message: "Dunder attribute access is not allowed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.src)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrPolicyViolation))

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.rule, appErr.Field)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestValidate_SyntaxError(t *testing.T) {
	p := Default()
	for _, src := range []string{"def f(:\n", "x = (1,", "if True:\nprint(1)", "\x00", "class A: pass"} {
		err := p.Validate(src)
		assert.True(t, errors.Is(err, apperror.ErrSyntax), "source %q: %v", src, err)
	}

	err := p.Validate("x = = 1")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "invalid syntax (line 1, column 5)", appErr.Message)
}

func TestValidate_FirstViolationInSourceOrder(t *testing.T) {
	p := Default()
	err := p.Validate("x = eval\nimport os\ny.__dict__")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, RuleIdentifier, appErr.Field)
}

func TestInspect_ReportsAllViolations(t *testing.T) {
	p := Default()
	r := p.Inspect("import os, sys\nx = eval\ny.__dict__\n")
	assert.False(t, r.Accepted)
	require.Len(t, r.Violations, 4)

	rules := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		rules = append(rules, v.Rule)
	}
	assert.Equal(t, []string{RuleImport, RuleImport, RuleIdentifier, RuleAttribute}, rules)
	assert.Equal(t, 2, r.Violations[2].Line)
	assert.Equal(t, 5, r.Violations[2].Column)

	// The accept decision matches Validate.
	assert.Equal(t, p.Validate("import os"), p.Inspect("import os").Err())
	assert.True(t, p.Inspect("print(1)").Accepted)
}

func TestNew(t *testing.T) {
	p, err := New([]string{"math"}, []string{"breakpoint"})
	require.NoError(t, err)

	assert.Equal(t, []string{"math"}, p.AllowedImportRoots())
	assert.True(t, p.Forbids("breakpoint"))
	for _, name := range DefaultForbiddenIdentifiers {
		assert.True(t, p.Forbids(name), "default %q must stay forbidden", name)
	}
	assert.Error(t, p.Validate("import numpy"))
	assert.NoError(t, p.Validate("import math"))
}

func TestNew_RejectsInvalidEntries(t *testing.T) {
	_, err := New([]string{"os path"}, nil)
	assert.Error(t, err)
	_, err = New(nil, []string{"1abc"})
	assert.Error(t, err)
	_, err = New([]string{"math"}, []string{"math"})
	assert.Error(t, err)
}

func TestAccessorsReturnCopies(t *testing.T) {
	p := Default()
	roots := p.AllowedImportRoots()
	roots[0] = "os"
	assert.False(t, p.AllowsImport("os"))

	ids := p.ForbiddenIdentifiers()
	ids[0] = "print"
	assert.False(t, p.Forbids("print"))
}

func TestAllowsImport(t *testing.T) {
	p := Default()
	tests := map[string]bool{
		"math":              true,
		"matplotlib.pyplot": true,
		"numpy.random":      true,
		"os":                false,
		"os.path":           false,
		"mathx":             false,
		"":                  false,
	}
	for path, want := range tests {
		t.Run(fmt.Sprintf("%q", path), func(t *testing.T) {
			assert.Equal(t, want, p.AllowsImport(path))
		})
	}
}
