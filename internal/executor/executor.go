package executor

import (
	"context"
	"strings"
	"time"

	"github.com/sakif/pygate/internal/sandbox"
)

// Exit codes shared by every backend. They follow the conventions of the
// unix timeout command and of a container killed by the OOM killer.
const (
	ExitOK            = 0
	ExitError         = 1
	ExitTimeout       = 124
	ExitResourceLimit = 125
	ExitKilled        = 137
)

// ExecutionRequest represents a request to execute a snippet.
type ExecutionRequest struct {
	Code string `json:"code"`
	// Timeout overrides the backend default when positive.
	Timeout time.Duration `json:"timeout,omitempty"`
	// Seed fixes random streams where the backend supports it.
	Seed uint64 `json:"seed,omitempty"`
}

// ExecutionResult represents the output and status of the code execution.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	// Reason is the failure in exception repr form, such as
	// ZeroDivisionError('division by zero'). Empty on success.
	Reason    string             `json:"reason,omitempty"`
	Artifacts []sandbox.Artifact `json:"artifacts,omitempty"`
	Steps     int64              `json:"steps,omitempty"`
}

// Executor represents the core interface for running code in an isolated environment.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

// ReasonFromTraceback turns the last line of a CPython traceback, such as
// "ZeroDivisionError: division by zero", into its repr form. Output without
// a recognisable exception line is reported as a RuntimeError.
func ReasonFromTraceback(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		class, msg, found := strings.Cut(line, ": ")
		if !found {
			class, msg = line, ""
		}
		if isExceptionName(class) {
			return sandbox.FormatException(class, msg)
		}
		return sandbox.FormatException("RuntimeError", line)
	}
	return sandbox.FormatException("RuntimeError", "process exited without output")
}

func isExceptionName(s string) bool {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	if s == "" || !(s[0] >= 'A' && s[0] <= 'Z') {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return strings.HasSuffix(s, "Error") || strings.HasSuffix(s, "Exception") ||
		s == "KeyboardInterrupt" || s == "StopIteration" || s == "SystemExit"
}
