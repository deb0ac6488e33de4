package policy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/sakif/pygate/internal/apperror"
)

var notAllowedRoots = []string{"os", "sys", "subprocess", "socket", "shutil", "ctypes", "importlib", "pathlib", "builtins", "requests"}

// Any import whose root is outside the allowed set is rejected, whatever
// form the import statement takes and wherever it sits in the snippet.
func TestProperty_DisallowedImportsRejected(t *testing.T) {
	p := Default()
	rapid.Check(t, func(rt *rapid.T) {
		root := rapid.SampledFrom(notAllowedRoots).Draw(rt, "root")
		sub := rapid.StringMatching(`(\.[a-z]{1,6})?`).Draw(rt, "sub")
		form := rapid.IntRange(0, 3).Draw(rt, "form")

		var stmt string
		switch form {
		case 0:
			stmt = fmt.Sprintf("import %s%s", root, sub)
		case 1:
			stmt = fmt.Sprintf("import math, %s%s as m", root, sub)
		case 2:
			stmt = fmt.Sprintf("from %s%s import thing", root, sub)
		case 3:
			stmt = fmt.Sprintf("def f():\n    import %s%s\n    return 1", root, sub)
		}
		src := wrap(rt, stmt)

		err := p.Validate(src)
		assert.True(rt, errors.Is(err, apperror.ErrPolicyViolation), "source %q: %v", src, err)
	})
}

// Every forbidden identifier is rejected in any syntactic position.
func TestProperty_ForbiddenIdentifiersRejected(t *testing.T) {
	p := Default()
	positions := []string{
		"%s('1')",
		"x = %s",
		"print(%s)",
		"y = [%s for _ in range(2)]",
		"z = {'k': %s}",
		"f = lambda: %s",
		"def g(a=%s):\n    pass",
		"print(f'{%s}')",
		"if %s:\n    pass",
	}
	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.SampledFrom(DefaultForbiddenIdentifiers).Draw(rt, "name")
		pos := rapid.SampledFrom(positions).Draw(rt, "position")
		src := wrap(rt, fmt.Sprintf(pos, name))

		err := p.Validate(src)
		var appErr *apperror.AppError
		if assert.ErrorAs(rt, err, &appErr, "source %q", src) {
			assert.Equal(rt, RuleIdentifier, appErr.Field)
			assert.Equal(rt, fmt.Sprintf("Use of '%s' is not allowed", name), appErr.Message)
		}
	})
}

// Any attribute starting with a double underscore is rejected.
func TestProperty_DunderAttributesRejected(t *testing.T) {
	p := Default()
	rapid.Check(t, func(rt *rapid.T) {
		attr := rapid.StringMatching(`__[a-z]{1,10}(__)?`).Draw(rt, "attr")
		base := rapid.SampledFrom([]string{"x", "()", "[]", "'s'", "print", "(1).real"}).Draw(rt, "base")
		src := wrap(rt, fmt.Sprintf("v = %s.%s", base, attr))

		err := p.Validate(src)
		var appErr *apperror.AppError
		if assert.ErrorAs(rt, err, &appErr, "source %q", src) {
			assert.Equal(rt, RuleAttribute, appErr.Field)
		}
	})
}

// Validate and Inspect always agree on the accept decision, and neither
// panics on arbitrary input.
func TestProperty_ValidateNeverPanics(t *testing.T) {
	p := Default()
	rapid.Check(t, func(rt *rapid.T) {
		src := rapid.String().Draw(rt, "src")
		err := p.Validate(src)
		report := p.Inspect(src)
		assert.Equal(rt, err == nil, report.Accepted)
	})
}

// wrap surrounds stmt with harmless statements so position in the snippet
// does not matter.
func wrap(rt *rapid.T, stmt string) string {
	before := rapid.SampledFrom([]string{"", "a = 1\n", "print('hi')\n", "import math\n"}).Draw(rt, "before")
	after := rapid.SampledFrom([]string{"", "\nb = 2", "\nprint(len([1]))"}).Draw(rt, "after")
	return before + stmt + after
}
