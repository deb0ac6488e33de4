package gatekeeper

import (
	"time"

	"github.com/sakif/pygate/internal/apperror"
	"github.com/sakif/pygate/internal/sandbox"
)

// Kind classifies a failed run.
type Kind string

const (
	KindSyntax          Kind = "SyntaxError"
	KindPolicyViolation Kind = "PolicyViolation"
	KindRuntime         Kind = "RuntimeError"
	KindTimeout         Kind = "Timeout"
	KindResourceLimit   Kind = "ResourceLimit"
)

// Sentinel maps the kind onto the apperror taxonomy.
func (k Kind) Sentinel() error {
	switch k {
	case KindSyntax:
		return apperror.ErrSyntax
	case KindPolicyViolation:
		return apperror.ErrPolicyViolation
	case KindTimeout:
		return apperror.ErrTimeout
	case KindResourceLimit:
		return apperror.ErrResourceLimit
	}
	return apperror.ErrRuntime
}

// Result is either a success carrying captured output or a failure
// carrying a kind and reason. Build it with Success or Failure.
type Result struct {
	ok        bool
	output    string
	kind      Kind
	reason    string
	artifacts []sandbox.Artifact
	duration  time.Duration
	steps     int64
}

// Success is a completed run. output should already be trimmed.
func Success(output string, artifacts ...sandbox.Artifact) Result {
	return Result{ok: true, output: output, artifacts: artifacts}
}

// Failure is a rejected or failed run. reason is in exception repr form,
// for example ZeroDivisionError('division by zero').
func Failure(kind Kind, reason string) Result {
	return Result{kind: kind, reason: reason}
}

func (r Result) OK() bool { return r.ok }

// Output is the captured output of a successful run.
func (r Result) Output() string { return r.output }

// Kind is empty on success.
func (r Result) Kind() Kind { return r.kind }

func (r Result) Reason() string { return r.reason }

func (r Result) Artifacts() []sandbox.Artifact { return r.artifacts }

// Duration is the time spent in the executor; zero for rejected snippets.
func (r Result) Duration() time.Duration { return r.duration }

// Steps is the interpreter work charged, when the backend reports it.
func (r Result) Steps() int64 { return r.steps }

// Err returns nil on success, otherwise an *apperror.AppError wrapping the
// kind's sentinel with the reason as its message.
func (r Result) Err() error {
	if r.ok {
		return nil
	}
	return &apperror.AppError{Err: r.kind.Sentinel(), Message: r.reason, Field: string(r.kind)}
}

func (r Result) withStats(d time.Duration, steps int64) Result {
	r.duration, r.steps = d, steps
	return r
}
