package server

import (
	"fmt"
	"log/slog"

	"github.com/sakif/pygate/internal/config"
	"github.com/sakif/pygate/internal/executor"
	"github.com/sakif/pygate/internal/executor/docker"
	"github.com/sakif/pygate/internal/executor/inproc"
	"github.com/sakif/pygate/internal/gatekeeper"
	"github.com/sakif/pygate/internal/policy"
)

// NewPolicy builds the effective policy from the defaults and cfg.
func NewPolicy(cfg config.PolicyConfig) (*policy.Policy, error) {
	p, err := policy.New(cfg.AllowedImportRoots, cfg.ExtraForbidden)
	if err != nil {
		return nil, fmt.Errorf("building policy: %w", err)
	}
	return p, nil
}

// NewExecutor starts the configured backend. The returned func releases
// it and is never nil.
func NewExecutor(cfg config.ExecutorConfig, p *policy.Policy, logger *slog.Logger) (executor.Executor, func() error, error) {
	switch cfg.Backend {
	case config.BackendDocker:
		dcfg := cfg.Docker
		dcfg.Timeout = cfg.Timeout
		exec, err := docker.New(dcfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("starting docker executor: %w", err)
		}
		return exec, exec.Close, nil
	case config.BackendInproc, "":
		exec := inproc.New(inproc.Config{
			Limits:      cfg.Sandbox.Limits(),
			Timeout:     cfg.Timeout,
			AllowImport: p.AllowsImport,
		}, logger)
		return exec, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown executor backend %q", cfg.Backend)
}

// NewGatekeeper wires policy, backend and gatekeeper. rec may be nil.
func NewGatekeeper(cfg config.Config, logger *slog.Logger, rec gatekeeper.Recorder) (*gatekeeper.Gatekeeper, func() error, error) {
	p, err := NewPolicy(cfg.Policy)
	if err != nil {
		return nil, nil, err
	}
	exec, closeExec, err := NewExecutor(cfg.Executor, p, logger)
	if err != nil {
		return nil, nil, err
	}
	opts := gatekeeper.Options{
		Timeout:  cfg.Executor.Timeout,
		Seed:     cfg.Executor.Seed,
		Backend:  cfg.Executor.Backend,
		Logger:   logger,
		Recorder: rec,
	}
	gk, err := gatekeeper.New(p, exec, opts)
	if err != nil {
		closeExec()
		return nil, nil, err
	}
	return gk, closeExec, nil
}
