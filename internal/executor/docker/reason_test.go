package docker

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pygate/internal/executor"
	"github.com/sakif/pygate/internal/sandbox"
)

func TestReason(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputKB = 1
	tests := []struct {
		name     string
		exitCode int
		stderr   string
		want     string
	}{
		{"ok", executor.ExitOK, "", ""},
		{"timeout", executor.ExitTimeout, "", "Timeout('execution exceeded 2s')"},
		{"killed", executor.ExitKilled, "Killed", "ResourceLimit('process killed, memory limit is 128 MiB')"},
		{"output", executor.ExitResourceLimit, "", "ResourceLimit('output exceeded 1 KiB')"},
		{"traceback", 1, "Traceback (most recent call last):\nValueError: bad\n", "ValueError('bad')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reason(tt.exitCode, tt.stderr, 2*time.Second, cfg))
		})
	}
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 10))
	assert.Equal(t, "bc", tail("abc", 2))
	assert.Equal(t, "abc", tail("abc", 0))
}

func muxed(t *testing.T, stdout, stderr string) *bytes.Buffer {
	t.Helper()
	var stream bytes.Buffer
	_, err := stdcopy.NewStdWriter(&stream, stdcopy.Stdout).Write([]byte(stdout))
	require.NoError(t, err)
	_, err = stdcopy.NewStdWriter(&stream, stdcopy.Stderr).Write([]byte(stderr))
	require.NoError(t, err)
	return &stream
}

func TestCopyOutput(t *testing.T) {
	t.Run("within cap", func(t *testing.T) {
		stdout, stderr := sandbox.NewBoundedBuffer(1), sandbox.NewBoundedBuffer(1)
		require.NoError(t, copyOutput(stdout, stderr, muxed(t, "hello\n", "warn\n")))
		assert.Equal(t, "hello\n", stdout.String())
		assert.Equal(t, "warn\n", stderr.String())
	})

	t.Run("stdout over cap", func(t *testing.T) {
		stdout, stderr := sandbox.NewBoundedBuffer(1), sandbox.NewBoundedBuffer(1)
		err := copyOutput(stdout, stderr, muxed(t, strings.Repeat("x", 4096), "never read"))
		require.ErrorIs(t, err, sandbox.ErrOutputLimit)
		assert.Len(t, stdout.String(), 1024)
		assert.True(t, stdout.Truncated())
		assert.Empty(t, stderr.String())
	})

	t.Run("stderr over cap", func(t *testing.T) {
		stdout, stderr := sandbox.NewBoundedBuffer(1), sandbox.NewBoundedBuffer(1)
		err := copyOutput(stdout, stderr, muxed(t, "ok", strings.Repeat("e", 2048)))
		require.ErrorIs(t, err, sandbox.ErrOutputLimit)
		assert.Equal(t, "ok", stdout.String())
		assert.Len(t, stderr.String(), 1024)
	})
}

func TestDefaultConfig_CapsOutput(t *testing.T) {
	assert.Equal(t, sandbox.DefaultOutputKB, DefaultConfig().OutputKB)
}
