package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/pygate/internal/apperror"
	"github.com/sakif/pygate/internal/auth"
	"github.com/sakif/pygate/internal/model"
	"github.com/sakif/pygate/internal/repository"
)

// ClientTokenTTL is the lifetime of a token issued to an agent client.
const ClientTokenTTL = time.Hour

// AuthService covers operator login through GitHub and the
// client-credentials exchange used by agent callers.
type AuthService struct {
	users     repository.UserRepository
	clients   repository.ClientRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	clients repository.ClientRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		clients:   clients,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegisterGitHub upserts the GitHub identity and issues a session
// token for it.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ValidateToken returns the subject of a valid token: a user ID, or
// auth.ClientSubject(id) for an agent client.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	subject, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return subject, nil
}

// CreateClient registers an agent client. The plaintext secret is
// returned once and only its hash is stored.
func (s *AuthService) CreateClient(ctx context.Context, name string) (*model.Client, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", apperror.ValidationFailed("name", "client name is required")
	}
	if len(name) > MaxSnippetNameLength {
		return nil, "", apperror.ValidationFailed("name",
			fmt.Sprintf("client name must be %d characters or less", MaxSnippetNameLength))
	}

	secret, err := newSecret()
	if err != nil {
		return nil, "", fmt.Errorf("service/auth: generating client secret: %w", err)
	}
	hash, err := s.passwords.Hash(secret)
	if err != nil {
		return nil, "", fmt.Errorf("service/auth: hashing client secret: %w", err)
	}

	client := &model.Client{Name: name, SecretHash: hash}
	if err := s.clients.CreateClient(ctx, client); err != nil {
		return nil, "", fmt.Errorf("service/auth: creating client: %w", err)
	}

	s.logger.Info("client created", slog.String("clientID", client.ID), slog.String("name", name))
	return client, secret, nil
}

// IssueClientToken exchanges client credentials for a token. Unknown
// clients and wrong secrets get the same Unauthorized error.
func (s *AuthService) IssueClientToken(ctx context.Context, clientID, secret string) (string, error) {
	if clientID == "" || secret == "" {
		return "", apperror.Unauthorized("client_id and client_secret are required")
	}

	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.Unauthorized("invalid client credentials")
		}
		return "", fmt.Errorf("service/auth: fetching client %s: %w", clientID, err)
	}
	if err := s.passwords.Verify(client.SecretHash, secret); err != nil {
		s.logger.Warn("client secret rejected", slog.String("clientID", clientID))
		return "", apperror.Unauthorized("invalid client credentials")
	}

	token, err := s.tokens.GenerateWithDuration(auth.ClientSubject(client.ID), ClientTokenTTL)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for client %s: %w", client.ID, err)
	}
	if err := s.clients.TouchClient(ctx, client.ID); err != nil {
		s.logger.Warn("failed to record client use",
			slog.String("clientID", client.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("client token issued", slog.String("clientID", client.ID))
	return token, nil
}

func newSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
