// Package docker runs snippets with CPython inside pooled, network-less
// containers. It is the isolating alternative to the in-process backend.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/pygate/internal/executor"
	"github.com/sakif/pygate/internal/sandbox"
)

// Executor implements the executor.Executor interface using Docker.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New creates a new Docker Executor, pulls the image and starts the pool.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// block until the pull is complete
	if _, err := io.Copy(io.Discard, reader); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	logger.Info("docker image is ready")

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
	}

	exec.pool = NewPool(cli, cfg, logger)
	exec.pool.Start()

	return exec, nil
}

// Close shuts down the executor pool and docker client.
func (e *Executor) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// Execute runs the snippet with `python -I -c` in a pre-warmed container.
// Each container serves exactly one request and is removed afterwards.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	start := time.Now()

	containerID, err := e.pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{
			Force: true,
		})
		if err != nil {
			e.logger.Error("failed to remove container", slog.String("id", containerID), slog.String("error", err.Error()))
		}
	}()

	timeout := e.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	executeCtx, executeCancel := context.WithTimeout(ctx, timeout)
	defer executeCancel()

	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          []string{"python", "-I", "-c", req.Code},
		Env:          []string{"PYTHONHASHSEED=0", "MPLBACKEND=Agg"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	stdout := sandbox.NewBoundedBuffer(e.config.OutputKB)
	stderr := sandbox.NewBoundedBuffer(e.config.OutputKB)
	done := make(chan error, 1)
	go func() {
		done <- copyOutput(stdout, stderr, attachResp.Reader)
	}()

	res := &executor.ExecutionResult{}
	select {
	case err := <-done:
		if errors.Is(err, sandbox.ErrOutputLimit) {
			// the forced container removal kills the snippet
			res.ExitCode = executor.ExitResourceLimit
			break
		}
		inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect exec: %w", err)
		}
		res.ExitCode = inspectResp.ExitCode
	case <-executeCtx.Done():
		// closing the hijacked connection unblocks StdCopy
		attachResp.Close()
		<-done
		res.ExitCode = executor.ExitTimeout
	}

	res.Stdout = stdout.String()
	res.Stderr = tail(stderr.String(), e.config.StderrTail)
	res.Duration = time.Since(start)
	res.Reason = reason(res.ExitCode, res.Stderr, timeout, e.config)

	e.logger.Debug("snippet executed in container",
		slog.String("container", shortID(containerID)),
		slog.Int("exitCode", res.ExitCode),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// copyOutput demultiplexes an attached exec stream into the bounded
// buffers. It stops at the first write past either cap and returns
// sandbox.ErrOutputLimit.
func copyOutput(stdout, stderr io.Writer, r io.Reader) error {
	_, err := stdcopy.StdCopy(stdout, stderr, r)
	return err
}

// reason renders the failure for an exit code in the same form the
// in-process backend uses.
func reason(exitCode int, stderr string, timeout time.Duration, cfg Config) string {
	switch exitCode {
	case executor.ExitOK:
		return ""
	case executor.ExitTimeout:
		return fmt.Sprintf("Timeout('execution exceeded %s')", timeout)
	case executor.ExitKilled:
		return fmt.Sprintf("ResourceLimit('process killed, memory limit is %d MiB')", cfg.MemoryLimit>>20)
	case executor.ExitResourceLimit:
		outputKB := cfg.OutputKB
		if outputKB <= 0 {
			outputKB = sandbox.DefaultOutputKB
		}
		return fmt.Sprintf("ResourceLimit('output exceeded %d KiB')", outputKB)
	}
	return executor.ReasonFromTraceback(stderr)
}

func tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
