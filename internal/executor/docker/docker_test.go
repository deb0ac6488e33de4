package docker_test

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pygate/internal/executor"
	"github.com/sakif/pygate/internal/executor/docker"
)

func TestDockerExecutor(t *testing.T) {
	if os.Getenv("PYGATE_DOCKER_TESTS") != "1" {
		t.Skip("set PYGATE_DOCKER_TESTS=1 to run tests against a docker daemon")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := docker.DefaultConfig()
	cfg.PoolSize = 1

	exec, err := docker.New(cfg, logger)
	require.NoError(t, err, "Should initialize docker executor without error")
	defer exec.Close()

	t.Run("successful execution", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
			Code: `print("Hello from test sandbox!")`,
		})
		require.NoError(t, err)
		assert.Equal(t, executor.ExitOK, res.ExitCode)
		assert.Contains(t, res.Stdout, "Hello from test sandbox!")
		assert.Empty(t, res.Stderr)
		assert.Empty(t, res.Reason)
		assert.Greater(t, res.Duration, time.Duration(0))
	})

	t.Run("exception", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{Code: "1 / 0"})
		require.NoError(t, err)
		assert.Equal(t, executor.ExitError, res.ExitCode)
		assert.Equal(t, "ZeroDivisionError('division by zero')", res.Reason)
	})

	t.Run("no network", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
			Code: "import socket\nsocket.create_connection(('1.1.1.1', 53), timeout=1)",
		})
		require.NoError(t, err)
		assert.NotEqual(t, executor.ExitOK, res.ExitCode)
	})

	t.Run("infinite loop timeout", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
			Code:    `while True: pass`,
			Timeout: 2 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, executor.ExitTimeout, res.ExitCode)
		assert.Equal(t, "Timeout('execution exceeded 2s')", res.Reason)
	})

	t.Run("multiline logic", func(t *testing.T) {
		res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
			Code: strings.Join([]string{
				"def fib(n):",
				"    if n <= 1: return n",
				"    return fib(n-1) + fib(n-2)",
				"print(fib(5))",
			}, "\n"),
		})
		require.NoError(t, err)
		assert.Equal(t, executor.ExitOK, res.ExitCode)
		assert.Contains(t, res.Stdout, "5")
	})
}
