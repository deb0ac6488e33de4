package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/pygate/internal/apperror"
	"github.com/sakif/pygate/internal/gatekeeper"
	"github.com/sakif/pygate/internal/model"
	"github.com/sakif/pygate/internal/policy"
	"github.com/sakif/pygate/internal/repository"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// fakeSnippetRepo stores copies so tests cannot reach into its state.
type fakeSnippetRepo struct {
	snippets map[string]*model.Snippet
	nextID   int
}

func newFakeSnippetRepo() *fakeSnippetRepo {
	return &fakeSnippetRepo{snippets: make(map[string]*model.Snippet)}
}

func (m *fakeSnippetRepo) Create(_ context.Context, snippet *model.Snippet) error {
	m.nextID++
	snippet.ID = fmt.Sprintf("snip-%d", m.nextID)
	stored := *snippet
	m.snippets[snippet.ID] = &stored
	return nil
}

func (m *fakeSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	s, ok := m.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	out := *s
	return &out, nil
}

func (m *fakeSnippetRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	out := make([]model.Snippet, 0, len(m.snippets))
	for _, s := range m.snippets {
		out = append(out, *s)
	}
	if opts.Offset >= len(out) {
		return []model.Snippet{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *fakeSnippetRepo) Update(_ context.Context, snippet *model.Snippet) error {
	if _, ok := m.snippets[snippet.ID]; !ok {
		return apperror.NotFound("snippet", snippet.ID)
	}
	stored := *snippet
	m.snippets[snippet.ID] = &stored
	return nil
}

func (m *fakeSnippetRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(m.snippets, id)
	return nil
}

type fakeRunRepo struct {
	mu        sync.Mutex
	runs      []*model.Run
	lastOpts  repository.RunFilter
	createErr error
}

func (f *fakeRunRepo) CreateRun(_ context.Context, run *model.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	run.ID = fmt.Sprintf("run-%d", len(f.runs)+1)
	stored := *run
	f.runs = append(f.runs, &stored)
	return nil
}

func (f *fakeRunRepo) GetRun(_ context.Context, id string) (*model.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			out := *r
			return &out, nil
		}
	}
	return nil, apperror.NotFound("run", id)
}

func (f *fakeRunRepo) ListRuns(_ context.Context, filter repository.RunFilter) ([]model.Run, error) {
	f.lastOpts = filter
	out := make([]model.Run, 0, len(f.runs))
	for _, r := range f.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRunRepo) GetArtifact(_ context.Context, runID, name string) (*model.Artifact, error) {
	for _, r := range f.runs {
		if r.ID != runID {
			continue
		}
		for _, a := range r.Artifacts {
			if a.Name == name {
				return &a, nil
			}
		}
	}
	return nil, apperror.NotFound("artifact", runID+"/"+name)
}

// fakeRunner validates with the real default policy and returns a canned
// result for accepted code.
type fakeRunner struct {
	result gatekeeper.Result
	calls  int
}

func (f *fakeRunner) Run(_ context.Context, source string) gatekeeper.Result {
	if err := policy.Default().Validate(source); err != nil {
		return gatekeeper.Rejected(err)
	}
	f.calls++
	return f.result
}

func (f *fakeRunner) Backend() string { return "fake" }

type policyChecker struct{}

func (policyChecker) Check(source string) error { return policy.Default().Validate(source) }

var errDatabaseDown = errors.New("database is down")
