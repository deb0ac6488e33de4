package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/pygate/internal/script"
)

// Options configures one Run.
type Options struct {
	Limits Limits
	// AllowImport reports whether a dotted module path may be imported.
	// A nil func allows every module the interpreter provides.
	AllowImport func(path string) bool
	// Timeout is used for the deadline and for the Timeout message. Zero
	// leaves the deadline to ctx.
	Timeout time.Duration
	// Seed fixes the random and numpy.random streams. Zero picks one from
	// the clock.
	Seed uint64
}

// Artifact is a file produced by a run, such as a saved chart.
type Artifact struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

// Outcome is the result of Run. Err is nil on success, a *script.SyntaxError,
// an *Exception raised by the snippet, a *LimitError, or an *InternalError.
// Output holds whatever was printed, trimmed, even when Err is set.
type Outcome struct {
	Output    string
	Err       error
	Artifacts []Artifact
	Steps     int64
}

// InternalError reports a bug in the interpreter rather than the snippet.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "internal error: " + e.Msg }

// Run parses and evaluates source in a fresh interpreter. Nothing in the
// interpreter outlives the call: globals, modules, RNG, plot state and the
// output buffer are all created here.
func Run(ctx context.Context, source string, opts Options) Outcome {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	mod, err := script.Parse(source)
	if err != nil {
		return Outcome{Err: err}
	}

	in := newInterp(ctx, opts)
	type result struct {
		err       error
		artifacts []Artifact
		steps     int64
	}
	done := make(chan result, 1)
	go func() {
		var r result
		defer func() {
			if p := recover(); p != nil {
				r.err = &InternalError{Msg: fmt.Sprint(p)}
			}
			r.artifacts, r.steps = in.artifacts, in.steps
			done <- r
		}()
		r.err = in.execModule(mod)
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		timer := time.NewTimer(gracePeriod)
		defer timer.Stop()
		select {
		case r = <-done:
		case <-timer.C:
			// The goroutine is abandoned and stops at its step budget.
			return Outcome{Output: strings.TrimSpace(in.out.String()), Err: timeoutError(opts.Timeout)}
		}
	}
	return Outcome{
		Output:    strings.TrimSpace(in.out.String()),
		Err:       r.err,
		Artifacts: r.artifacts,
		Steps:     r.steps,
	}
}

func (in *Interp) execModule(mod *script.Module) error {
	err := in.execBlock(in.globals, mod.Body)
	var ret *returnSignal
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errBreak), errors.Is(err, errContinue), errors.As(err, &ret):
		return &InternalError{Msg: "control flow escaped the module: " + err.Error()}
	}
	return err
}

// Reason renders a run error the way the tool contract reports it:
// SyntaxError('...'), the exception repr, or Timeout('...') and
// ResourceLimit('...') for limit breaches.
func Reason(err error) string {
	var (
		se  *script.SyntaxError
		exc *Exception
		le  *LimitError
		ie  *InternalError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return "SyntaxError(" + reprString(se.Error()) + ")"
	case errors.As(err, &exc):
		return exc.Repr()
	case errors.As(err, &le):
		return le.Repr()
	case errors.As(err, &ie):
		return "SystemError(" + reprString(ie.Msg) + ")"
	}
	return "RuntimeError(" + reprString(err.Error()) + ")"
}
