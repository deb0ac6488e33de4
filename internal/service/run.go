package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/pygate/internal/gatekeeper"
	"github.com/sakif/pygate/internal/model"
	"github.com/sakif/pygate/internal/repository"
)

// Runner is the gatekeeper as seen by the services.
type Runner interface {
	Run(ctx context.Context, source string) gatekeeper.Result
	Backend() string
}

// RunService sends snippets through the gatekeeper and keeps the run
// history.
type RunService struct {
	runner Runner
	runs   repository.RunRepository
	logger *slog.Logger
}

func NewRunService(runner Runner, runs repository.RunRepository, logger *slog.Logger) *RunService {
	return &RunService{runner: runner, runs: runs, logger: logger}
}

// Execute runs code and returns the stored run record. A snippet that is
// rejected or fails is not an error here: the record carries the kind
// and reason.
func (s *RunService) Execute(ctx context.Context, caller, code string) (*model.Run, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}
	return s.execute(ctx, caller, "", code)
}

// Tool runs code and renders the python_repl text response. The response
// does not depend on whether the run could be stored.
func (s *RunService) Tool(ctx context.Context, caller, code string) (string, error) {
	if err := validateCode(code); err != nil {
		return "", err
	}
	result := s.runner.Run(ctx, code)
	if _, err := s.store(ctx, caller, "", code, result); err != nil {
		s.logger.Error("failed to store tool run", slog.String("error", err.Error()))
	}
	return gatekeeper.ToolResponse(code, result), nil
}

func (s *RunService) Get(ctx context.Context, id string) (*model.Run, error) {
	return s.runs.GetRun(ctx, strings.TrimSpace(id))
}

// List returns runs newest first. kind and ok narrow the listing when set.
func (s *RunService) List(ctx context.Context, filter repository.RunFilter) ([]model.Run, error) {
	filter.ListOptions = listOptions(filter.Limit, filter.Offset)
	runs, err := s.runs.ListRuns(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list runs", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// Artifact returns one artifact of a run with its data.
func (s *RunService) Artifact(ctx context.Context, runID, name string) (*model.Artifact, error) {
	return s.runs.GetArtifact(ctx, runID, name)
}

func (s *RunService) execute(ctx context.Context, caller, snippetID, code string) (*model.Run, error) {
	return s.store(ctx, caller, snippetID, code, s.runner.Run(ctx, code))
}

func (s *RunService) store(ctx context.Context, caller, snippetID, code string, r gatekeeper.Result) (*model.Run, error) {
	run := &model.Run{
		SnippetID:  snippetID,
		Caller:     caller,
		Backend:    s.runner.Backend(),
		Code:       code,
		OK:         r.OK(),
		Kind:       string(r.Kind()),
		Reason:     r.Reason(),
		Output:     r.Output(),
		DurationMS: r.Duration().Milliseconds(),
		Steps:      r.Steps(),
	}
	for _, a := range r.Artifacts() {
		run.Artifacts = append(run.Artifacts, model.Artifact{
			Name:      a.Name,
			MediaType: a.MediaType,
			Size:      len(a.Data),
			Data:      a.Data,
		})
	}

	// stored even when the caller has gone away
	if err := s.runs.CreateRun(context.WithoutCancel(ctx), run); err != nil {
		return nil, fmt.Errorf("storing run: %w", err)
	}
	s.logger.Debug("run stored", slog.String("id", run.ID), slog.Bool("ok", run.OK))
	return run, nil
}
