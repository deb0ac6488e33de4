package inproc_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pygate/internal/executor"
	"github.com/sakif/pygate/internal/executor/inproc"
)

func newExecutor(cfg inproc.Config) *inproc.Executor {
	return inproc.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInprocExecutor(t *testing.T) {
	exec := newExecutor(inproc.DefaultConfig())

	t.Run("successful execution", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
			Code: `print("Hello from test sandbox!")`,
		})
		require.NoError(t, err)
		assert.Equal(t, executor.ExitOK, res.ExitCode)
		assert.Equal(t, "Hello from test sandbox!", res.Stdout)
		assert.Empty(t, res.Stderr)
		assert.Empty(t, res.Reason)
		assert.Greater(t, res.Duration, time.Duration(0))
	})

	t.Run("snippet exception", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{Code: "print('a')\n1 / 0"})
		require.NoError(t, err)
		assert.Equal(t, executor.ExitError, res.ExitCode)
		assert.Equal(t, "a", res.Stdout)
		assert.Equal(t, "ZeroDivisionError('division by zero')", res.Reason)
		assert.Equal(t, res.Reason, res.Stderr)
	})

	t.Run("syntax error", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{Code: `print("Missing parenthesis"`})
		require.NoError(t, err)
		assert.Equal(t, executor.ExitError, res.ExitCode)
		assert.Contains(t, res.Reason, "SyntaxError")
	})

	t.Run("infinite loop timeout", func(t *testing.T) {
		cfg := inproc.DefaultConfig()
		cfg.Limits.MaxSteps = 1 << 62
		res, err := newExecutor(cfg).Execute(context.Background(), executor.ExecutionRequest{
			Code:    `while True: pass`,
			Timeout: 100 * time.Millisecond,
		})
		require.NoError(t, err)
		assert.Equal(t, executor.ExitTimeout, res.ExitCode)
		assert.Equal(t, "Timeout('execution exceeded 100ms')", res.Reason)
	})

	t.Run("artifacts", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
			Code: "import matplotlib.pyplot as plt\nplt.plot([1, 2, 3])\nplt.savefig('line.png')",
		})
		require.NoError(t, err)
		require.Len(t, res.Artifacts, 1)
		assert.Equal(t, "line.pdf", res.Artifacts[0].Name)
	})
}

func TestInprocExecutor_ResourceLimit(t *testing.T) {
	cfg := inproc.DefaultConfig()
	cfg.Limits.OutputKB = 1
	exec := newExecutor(cfg)

	res, err := exec.Execute(context.Background(), executor.ExecutionRequest{Code: "while True:\n    print('spam')"})
	require.NoError(t, err)
	assert.Equal(t, executor.ExitResourceLimit, res.ExitCode)
	assert.Equal(t, "ResourceLimit('output exceeded 1 KiB')", res.Reason)
}

func TestInprocExecutor_AllowImport(t *testing.T) {
	cfg := inproc.DefaultConfig()
	cfg.AllowImport = func(path string) bool { return path == "math" }
	exec := newExecutor(cfg)

	res, err := exec.Execute(context.Background(), executor.ExecutionRequest{Code: "import random"})
	require.NoError(t, err)
	assert.Equal(t, executor.ExitError, res.ExitCode)
	assert.Equal(t, "ImportError(\"Import of 'random' is not allowed\")", res.Reason)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, executor.ExitOK, inproc.ExitCode(nil))
	assert.Equal(t, executor.ExitError, inproc.ExitCode(errors.New("x")))
}
