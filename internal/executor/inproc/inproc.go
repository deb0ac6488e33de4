// Package inproc runs snippets in the in-process interpreter.
package inproc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/pygate/internal/executor"
	"github.com/sakif/pygate/internal/sandbox"
)

// Config holds the interpreter limits applied to every run.
type Config struct {
	Limits  sandbox.Limits
	Timeout time.Duration
	// AllowImport is consulted for every import the snippet performs.
	AllowImport func(path string) bool
}

// DefaultConfig uses the sandbox defaults and a 5 second timeout.
func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second}
}

// Executor implements executor.Executor with sandbox.Run.
type Executor struct {
	config Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Executor {
	return &Executor{config: cfg, logger: logger}
}

// Execute never returns an error: every failure is reported through the
// exit code and Reason of the result.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()
	timeout := e.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	out := sandbox.Run(ctx, req.Code, sandbox.Options{
		Limits:      e.config.Limits,
		AllowImport: e.config.AllowImport,
		Timeout:     timeout,
		Seed:        req.Seed,
	})

	res := &executor.ExecutionResult{
		Stdout:    out.Output,
		ExitCode:  ExitCode(out.Err),
		Duration:  time.Since(start),
		Reason:    sandbox.Reason(out.Err),
		Artifacts: out.Artifacts,
		Steps:     out.Steps,
	}
	if out.Err != nil {
		res.Stderr = res.Reason
		var ie *sandbox.InternalError
		if errors.As(out.Err, &ie) {
			e.logger.Error("interpreter failure", slog.String("error", ie.Msg))
		}
	}
	e.logger.Debug("snippet executed",
		slog.Int("exitCode", res.ExitCode),
		slog.Int64("steps", res.Steps),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// ExitCode maps a sandbox error onto the shared exit codes.
func ExitCode(err error) int {
	var le *sandbox.LimitError
	switch {
	case err == nil:
		return executor.ExitOK
	case errors.As(err, &le) && le.Kind == sandbox.LimitTimeout:
		return executor.ExitTimeout
	case errors.As(err, &le):
		return executor.ExitResourceLimit
	}
	return executor.ExitError
}
