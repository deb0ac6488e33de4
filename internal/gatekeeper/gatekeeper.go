// Package gatekeeper runs untrusted snippets: the policy validator decides
// whether a snippet may run, and an executor backend runs the ones it
// accepts. It also owns the text contract of the python_repl tool.
package gatekeeper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/pygate/internal/apperror"
	"github.com/sakif/pygate/internal/executor"
	"github.com/sakif/pygate/internal/policy"
	"github.com/sakif/pygate/internal/sandbox"
)

const (
	// DefaultTimeout bounds every execution when Options.Timeout is zero.
	DefaultTimeout = 5 * time.Second

	failurePrefix  = "Failed to execute. Error: "
	successTrailer = "\n\nIf you have completed all tasks, respond with FINAL ANSWER."
)

// Recorder receives run and validation events. *metrics.Collector
// implements it.
type Recorder interface {
	RecordRun(backend, kind string, d time.Duration, steps int64, artifacts int)
	RecordValidation(accepted bool, rule string)
}

// Options configures a Gatekeeper.
type Options struct {
	Timeout time.Duration
	// Seed is passed to every execution; zero lets each run pick its own.
	Seed uint64
	// Backend names the executor in logs and metrics.
	Backend  string
	Logger   *slog.Logger
	Recorder Recorder
}

// Gatekeeper is immutable after New and safe for concurrent use.
type Gatekeeper struct {
	policy  *policy.Policy
	backend executor.Executor
	opts    Options
	logger  *slog.Logger
}

// New checks that no capability is also a forbidden identifier and that
// every module the interpreter provides is importable under the policy.
func New(p *policy.Policy, backend executor.Executor, opts Options) (*Gatekeeper, error) {
	if p == nil || backend == nil {
		return nil, errors.New("gatekeeper: policy and backend are required")
	}
	for _, name := range sandbox.Allowlist() {
		if p.Forbids(name) {
			return nil, fmt.Errorf("gatekeeper: capability %q is also a forbidden identifier", name)
		}
	}
	for _, mod := range sandbox.Modules() {
		if !p.AllowsImport(mod) {
			return nil, fmt.Errorf("gatekeeper: module %q is provided but not allowed by the policy", mod)
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Backend == "" {
		opts.Backend = "inproc"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gatekeeper{policy: p, backend: backend, opts: opts, logger: logger}, nil
}

// Policy returns the policy the gatekeeper enforces.
func (g *Gatekeeper) Policy() *policy.Policy { return g.policy }

// Timeout is the limit applied to every execution.
func (g *Gatekeeper) Timeout() time.Duration { return g.opts.Timeout }

// Backend names the executor behind the gatekeeper.
func (g *Gatekeeper) Backend() string { return g.opts.Backend }

// Check runs the validator only.
func (g *Gatekeeper) Check(source string) error {
	err := g.policy.Validate(source)
	if g.opts.Recorder != nil {
		var appErr *apperror.AppError
		rule := ""
		if errors.As(err, &appErr) {
			rule = appErr.Field
		}
		g.opts.Recorder.RecordValidation(err == nil, rule)
	}
	return err
}

// Inspect reports every violation instead of the first one.
func (g *Gatekeeper) Inspect(source string) policy.Report {
	report := g.policy.Inspect(source)
	if g.opts.Recorder != nil {
		rule := ""
		if len(report.Violations) > 0 {
			rule = report.Violations[0].Rule
		}
		g.opts.Recorder.RecordValidation(report.Accepted, rule)
	}
	return report
}

// Run validates source and, when accepted, executes it. Every outcome,
// including a broken backend, is reported as a Result.
func (g *Gatekeeper) Run(ctx context.Context, source string) Result {
	log := g.logger.With(slog.Int("sourceLen", len(source)), slog.String("sourceHash", hashPrefix(source)))

	if err := g.Check(source); err != nil {
		r := Rejected(err)
		log.Info("snippet rejected by policy", slog.String("kind", string(r.Kind())), slog.String("reason", r.Reason()))
		g.record(r)
		return r
	}

	res, err := g.backend.Execute(ctx, executor.ExecutionRequest{
		Code:    source,
		Timeout: g.opts.Timeout,
		Seed:    g.opts.Seed,
	})
	if err != nil {
		log.Error("executor failed", slog.String("backend", g.opts.Backend), slog.String("error", err.Error()))
		kind := KindRuntime
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		r := Failure(kind, sandbox.FormatException(string(kind), "executor unavailable: "+err.Error()))
		g.record(r)
		return r
	}

	r := fromExecution(res)
	log.Info("run completed",
		slog.Bool("ok", r.OK()),
		slog.String("kind", string(r.Kind())),
		slog.Duration("duration", r.Duration()),
		slog.Int("artifacts", len(r.Artifacts())),
	)
	g.record(r)
	return r
}

// Tool is the single callable consumed by the agent layer: Run followed by
// ToolResponse.
func (g *Gatekeeper) Tool(ctx context.Context, code string) string {
	return ToolResponse(code, g.Run(ctx, code))
}

// ToolResponse renders r in the tool text contract.
func ToolResponse(source string, r Result) string {
	if !r.OK() {
		return failurePrefix + r.Reason()
	}
	return "Successfully executed:\n```python\n" + source + "\n```\nStdout: " + r.Output() + successTrailer
}

func (g *Gatekeeper) record(r Result) {
	if g.opts.Recorder == nil {
		return
	}
	kind := "ok"
	if !r.OK() {
		kind = string(r.Kind())
	}
	g.opts.Recorder.RecordRun(g.opts.Backend, kind, r.Duration(), r.Steps(), len(r.Artifacts()))
}

// Rejected converts a validator error into a Failure.
func Rejected(err error) Result {
	var appErr *apperror.AppError
	msg := err.Error()
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if errors.Is(err, apperror.ErrSyntax) {
		return Failure(KindSyntax, sandbox.FormatException(string(KindSyntax), msg))
	}
	return Failure(KindPolicyViolation, sandbox.FormatException(string(KindPolicyViolation), msg))
}

// fromExecution maps backend exit codes onto result kinds.
func fromExecution(res *executor.ExecutionResult) Result {
	var r Result
	switch res.ExitCode {
	case executor.ExitOK:
		r = Success(strings.TrimSpace(res.Stdout), res.Artifacts...)
	case executor.ExitTimeout:
		r = Failure(KindTimeout, reasonOf(res))
	case executor.ExitResourceLimit, executor.ExitKilled:
		r = Failure(KindResourceLimit, reasonOf(res))
	default:
		reason := reasonOf(res)
		kind := KindRuntime
		if strings.HasPrefix(reason, string(KindSyntax)+"(") {
			kind = KindSyntax
		}
		r = Failure(kind, reason)
	}
	return r.withStats(res.Duration, res.Steps)
}

func reasonOf(res *executor.ExecutionResult) string {
	if res.Reason != "" {
		return res.Reason
	}
	return executor.ReasonFromTraceback(res.Stderr)
}

func hashPrefix(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}
