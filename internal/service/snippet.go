// Package service holds the business logic between the HTTP handlers and
// the repositories.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/pygate/internal/apperror"
	"github.com/sakif/pygate/internal/gatekeeper"
	"github.com/sakif/pygate/internal/model"
	"github.com/sakif/pygate/internal/repository"
)

const (
	MaxSnippetNameLength = 100
	MaxCodeLength        = 100000
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

// Checker validates source without running it. *gatekeeper.Gatekeeper
// implements it.
type Checker interface {
	Check(source string) error
}

// SnippetService manages saved snippets. Every save records the policy
// verdict so a listing shows which snippets would be rejected.
type SnippetService struct {
	repo    repository.SnippetRepository
	checker Checker
	runs    *RunService
	logger  *slog.Logger
}

func NewSnippetService(repo repository.SnippetRepository, checker Checker, runs *RunService, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:    repo,
		checker: checker,
		runs:    runs,
		logger:  logger,
	}
}

// Create saves a new snippet owned by userID, which may be empty when
// auth is disabled.
func (s *SnippetService) Create(ctx context.Context, userID, name, code, description string) (*model.Snippet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "snippet name is required")
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateCode(code); err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		Name:        name,
		Code:        code,
		Description: strings.TrimSpace(description),
		UserID:      userID,
	}
	s.applyVerdict(snippet)

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("name", snippet.Name),
		slog.Bool("accepted", snippet.Accepted),
	)
	return snippet, nil
}

func (s *SnippetService) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *SnippetService) List(ctx context.Context, limit, offset int) ([]model.Snippet, error) {
	snippets, err := s.repo.List(ctx, listOptions(limit, offset))
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return snippets, nil
}

// Update replaces the code and description and re-checks the policy. An
// empty name keeps the current one.
func (s *SnippetService) Update(ctx context.Context, userID, id, name, code, description string) (*model.Snippet, error) {
	snippet, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		if err := validateName(name); err != nil {
			return nil, err
		}
		snippet.Name = name
	}
	if err := validateCode(code); err != nil {
		return nil, err
	}
	snippet.Code = code
	snippet.Description = strings.TrimSpace(description)
	s.applyVerdict(snippet)

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated",
		slog.String("id", snippet.ID),
		slog.Bool("accepted", snippet.Accepted),
	)
	return snippet, nil
}

func (s *SnippetService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("snippet deleted", slog.String("id", id))
	return nil
}

// Run executes a saved snippet through the gatekeeper and records the
// run against it. Rejected snippets are still submitted so the rejection
// shows up in the run history.
func (s *SnippetService) Run(ctx context.Context, caller, id string) (*model.Run, error) {
	snippet, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.runs.execute(ctx, caller, snippet.ID, snippet.Code)
}

// owned loads a snippet and checks that userID may change it. Snippets
// saved without an owner can be changed by anyone.
func (s *SnippetService) owned(ctx context.Context, userID, id string) (*model.Snippet, error) {
	snippet, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if snippet.UserID != "" && snippet.UserID != userID {
		return nil, apperror.Forbidden("you do not own this snippet")
	}
	return snippet, nil
}

func (s *SnippetService) applyVerdict(snippet *model.Snippet) {
	snippet.Accepted, snippet.Rejection = true, ""
	if err := s.checker.Check(snippet.Code); err != nil {
		snippet.Accepted = false
		snippet.Rejection = gatekeeper.Rejected(err).Reason()
	}
}

func validateName(name string) error {
	if len(name) > MaxSnippetNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("snippet name must be %d characters or less", MaxSnippetNameLength))
	}
	return nil
}

func validateCode(code string) error {
	if len(code) > MaxCodeLength {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	return nil
}

func listOptions(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return repository.ListOptions{Limit: limit, Offset: max(offset, 0)}
}
