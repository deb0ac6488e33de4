// Package repository declares the storage interfaces the services depend
// on. internal/repository/sqlite implements all of them.
package repository

import (
	"context"

	"github.com/sakif/pygate/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// RunFilter narrows a run listing. Zero values match everything.
type RunFilter struct {
	ListOptions
	SnippetID string
	Kind      string
	OK        *bool
}

type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
}

type RunRepository interface {
	// CreateRun stores the run and its artifacts in one transaction.
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	// GetArtifact returns one artifact of a run with its data.
	GetArtifact(ctx context.Context, runID, name string) (*model.Artifact, error)
}

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type ClientRepository interface {
	CreateClient(ctx context.Context, client *model.Client) error
	GetClient(ctx context.Context, id string) (*model.Client, error)
	TouchClient(ctx context.Context, id string) error
}
