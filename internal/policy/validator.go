package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/pygate/internal/apperror"
	"github.com/sakif/pygate/internal/script"
)

// Rule names carried in apperror.AppError.Field and Violation.Rule.
const (
	RuleSyntax     = "syntax"
	RuleImport     = "import"
	RuleIdentifier = "identifier"
	RuleAttribute  = "attribute"
)

// Violation is one rejected construct.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// Report lists every violation in a snippet, in source order.
type Report struct {
	Accepted   bool        `json:"accepted"`
	Violations []Violation `json:"violations"`
}

// Err converts the report to the error Validate would return.
func (r Report) Err() error {
	if r.Accepted || len(r.Violations) == 0 {
		return nil
	}
	v := r.Violations[0]
	if v.Rule == RuleSyntax {
		return apperror.SyntaxInvalid(v.Message)
	}
	return apperror.PolicyViolation(v.Rule, v.Message)
}

// Validate parses source and returns nil when it is acceptable. Otherwise
// it returns an *apperror.AppError wrapping apperror.ErrSyntax or
// apperror.ErrPolicyViolation that describes the first violation in
// source order. Validate never executes any part of source.
func (p *Policy) Validate(source string) error {
	return p.check(source, true).Err()
}

// Inspect is Validate reporting every violation instead of the first.
func (p *Policy) Inspect(source string) Report {
	return p.check(source, false)
}

func (p *Policy) check(source string, firstOnly bool) Report {
	mod, err := script.Parse(source)
	if err != nil {
		v := Violation{Rule: RuleSyntax, Message: err.Error()}
		var se *script.SyntaxError
		if errors.As(err, &se) {
			v.Line, v.Column = se.Pos.Line, se.Pos.Col
		}
		return Report{Violations: []Violation{v}}
	}

	var out []Violation
	add := func(rule string, pos script.Pos, msg string) {
		out = append(out, Violation{Rule: rule, Message: msg, Line: pos.Line, Column: pos.Col})
	}
	script.Inspect(mod, func(n script.Node) bool {
		if firstOnly && len(out) > 0 {
			return false
		}
		switch n := n.(type) {
		case *script.Import:
			for _, a := range n.Names {
				if !p.AllowsImport(a.Name) {
					add(RuleImport, n.Position(), p.importMessage(a.Name))
				}
			}
		case *script.ImportFrom:
			for _, path := range importFromPaths(n) {
				if !p.AllowsImport(path) {
					add(RuleImport, n.Position(), p.importMessage(path))
				}
			}
		case *script.Name:
			if p.Forbids(n.ID) {
				add(RuleIdentifier, n.Position(), fmt.Sprintf("Use of '%s' is not allowed", n.ID))
			}
		case *script.Attribute:
			if strings.HasPrefix(n.Attr, ForbiddenAttributePrefix) {
				add(RuleAttribute, n.Position(), "Dunder attribute access is not allowed")
			}
		}
		return true
	})
	if firstOnly && len(out) > 1 {
		out = out[:1]
	}
	return Report{Accepted: len(out) == 0, Violations: out}
}

func (p *Policy) importMessage(path string) string {
	return fmt.Sprintf("Import '%s' is not allowed. Allowed roots: %s", path, p.rootsMessage)
}

// importFromPaths returns the dotted paths a from-import can bind: the
// module clause and module.name for each imported name. A relative import
// is resolved against nothing, so `from . import x` yields the bare name
// and `from .m import x` yields a path that can never be allowed.
func importFromPaths(n *script.ImportFrom) []string {
	var paths []string
	prefix := ""
	switch {
	case n.Level > 0 && n.Module != "":
		prefix = strings.Repeat(".", n.Level) + n.Module
		return []string{prefix}
	case n.Module != "":
		paths = append(paths, n.Module)
		prefix = n.Module + "."
	}
	for _, a := range n.Names {
		if a.Name == "*" {
			continue
		}
		paths = append(paths, prefix+a.Name)
	}
	return paths
}
