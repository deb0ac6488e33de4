// Package policy decides whether a snippet is acceptable to run.
//
// A Policy is an immutable value built once at startup. It is shared by
// every request without locking, so nothing in this package mutates a
// Policy after New returns.
package policy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sakif/pygate/internal/script"
)

// DefaultAllowedImportRoots lists the modules snippets may import. The
// dotted entry is deliberate: an import is accepted when either its full
// path or its root is listed.
var DefaultAllowedImportRoots = []string{
	"math", "statistics", "random", "numpy", "pandas",
	"matplotlib", "matplotlib.pyplot", "seaborn",
}

// DefaultForbiddenIdentifiers are rejected wherever they appear as a bare
// name. Configuration can add to this set but never shrink it.
var DefaultForbiddenIdentifiers = []string{
	"eval", "exec", "compile", "open", "input", "__import__",
}

// ForbiddenAttributePrefix marks attribute names that reach an object's
// internal state.
const ForbiddenAttributePrefix = "__"

type Policy struct {
	allowedRoots map[string]struct{}
	forbidden    map[string]struct{}
	rootsMessage string
}

// Default returns the policy with the built-in allow and deny lists.
func Default() *Policy {
	p, err := New(nil, nil)
	if err != nil {
		panic(err)
	}
	return p
}

// New builds a policy. An empty allowedRoots selects
// DefaultAllowedImportRoots; extraForbidden is added to the defaults.
func New(allowedRoots, extraForbidden []string) (*Policy, error) {
	if len(allowedRoots) == 0 {
		allowedRoots = DefaultAllowedImportRoots
	}
	p := &Policy{
		allowedRoots: make(map[string]struct{}, len(allowedRoots)),
		forbidden:    make(map[string]struct{}, len(DefaultForbiddenIdentifiers)+len(extraForbidden)),
	}
	for _, root := range allowedRoots {
		if !isDottedName(root) {
			return nil, fmt.Errorf("policy: invalid import root %q", root)
		}
		p.allowedRoots[root] = struct{}{}
	}
	for _, names := range [][]string{DefaultForbiddenIdentifiers, extraForbidden} {
		for _, name := range names {
			if !isIdentifier(name) {
				return nil, fmt.Errorf("policy: invalid forbidden identifier %q", name)
			}
			p.forbidden[name] = struct{}{}
		}
	}
	for name := range p.forbidden {
		if _, ok := p.allowedRoots[name]; ok {
			return nil, fmt.Errorf("policy: %q is both an allowed import root and a forbidden identifier", name)
		}
	}

	quoted := make([]string, 0, len(p.allowedRoots))
	for _, root := range p.AllowedImportRoots() {
		quoted = append(quoted, "'"+root+"'")
	}
	p.rootsMessage = "[" + strings.Join(quoted, ", ") + "]"
	return p, nil
}

// AllowedImportRoots returns the allowed roots in sorted order.
func (p *Policy) AllowedImportRoots() []string {
	return sortedKeys(p.allowedRoots)
}

// ForbiddenIdentifiers returns the forbidden names in sorted order.
func (p *Policy) ForbiddenIdentifiers() []string {
	return sortedKeys(p.forbidden)
}

// AllowsImport reports whether the dotted module path, or its root, is
// allowed.
func (p *Policy) AllowsImport(path string) bool {
	if _, ok := p.allowedRoots[path]; ok {
		return true
	}
	root, _, _ := strings.Cut(path, ".")
	_, ok := p.allowedRoots[root]
	return ok
}

// Forbids reports whether name may not appear as a bare identifier.
func (p *Policy) Forbids(name string) bool {
	_, ok := p.forbidden[name]
	return ok
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func isDottedName(s string) bool {
	if s == "" {
		return false
	}
	for part := range strings.SplitSeq(s, ".") {
		if !isIdentifier(part) {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
	if s == "" || script.IsKeyword(s) {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
