package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sakif/pygate/internal/apperror"
	"github.com/sakif/pygate/internal/auth"
	"github.com/sakif/pygate/internal/model"
)

type fakeUserRepo struct {
	users     map[string]*model.User
	byGHID    map[int64]*model.User
	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		byGHID: make(map[int64]*model.User),
	}
}

func (f *fakeUserRepo) Upsert(_ context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.byGHID[user.GitHubID]; ok {
		existing.Login, existing.Email, existing.AvatarURL = user.Login, user.Email, user.AvatarURL
		*user = *existing
		return nil
	}
	user.ID = fmt.Sprintf("user-%d", len(f.users)+1)
	user.CreatedAt, user.UpdatedAt = time.Now(), time.Now()
	stored := *user
	f.users[user.ID] = &stored
	f.byGHID[user.GitHubID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

type fakeClientRepo struct {
	clients map[string]*model.Client
	touched int
}

func (f *fakeClientRepo) CreateClient(_ context.Context, c *model.Client) error {
	c.ID = fmt.Sprintf("client-%d", len(f.clients)+1)
	stored := *c
	f.clients[c.ID] = &stored
	return nil
}

func (f *fakeClientRepo) GetClient(_ context.Context, id string) (*model.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return nil, apperror.NotFound("client", id)
	}
	out := *c
	return &out, nil
}

func (f *fakeClientRepo) TouchClient(_ context.Context, id string) error {
	f.touched++
	return nil
}

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, *fakeClientRepo, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	users := newFakeUserRepo()
	clients := &fakeClientRepo{clients: make(map[string]*model.Client)}
	svc := NewAuthService(users, clients, tokens, auth.NewPasswordServiceForTest(4), discardLogger())
	return svc, users, clients, tokens
}

func TestLoginOrRegisterGitHub(t *testing.T) {
	svc, _, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	first, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 99, Login: "octo"})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	subject, err := tokens.Validate(first.Token)
	if err != nil || subject != first.User.ID {
		t.Errorf("token subject = %q (%v), want %q", subject, err, first.User.ID)
	}

	again, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 99, Login: "octo-renamed"})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	if again.User.ID != first.User.ID || again.User.Login != "octo-renamed" {
		t.Errorf("re-login = %+v", again.User)
	}

	got, err := svc.GetUserByID(ctx, first.User.ID)
	if err != nil || got.Login != "octo-renamed" {
		t.Errorf("GetUserByID() = %+v, %v", got, err)
	}
}

func TestLoginOrRegisterGitHub_Errors(t *testing.T) {
	svc, users, _, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.LoginOrRegisterGitHub(ctx, nil); err == nil {
		t.Error("nil GitHub user accepted")
	}
	users.upsertErr = errDatabaseDown
	if _, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 1}); !errors.Is(err, errDatabaseDown) {
		t.Errorf("error = %v, want wrapped database error", err)
	}
	if _, err := svc.GetUserByID(ctx, ""); err == nil {
		t.Error("GetUserByID(\"\") should fail")
	}
	if _, err := svc.GetUserByID(ctx, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestClientCredentials(t *testing.T) {
	svc, _, clients, _ := newTestAuthService(t)
	ctx := context.Background()

	client, secret, err := svc.CreateClient(ctx, " agent ")
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}
	if client.Name != "agent" || secret == "" || client.SecretHash == secret {
		t.Errorf("CreateClient() = %+v secret %q", client, secret)
	}

	token, err := svc.IssueClientToken(ctx, client.ID, secret)
	if err != nil {
		t.Fatalf("IssueClientToken() error = %v", err)
	}
	subject, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if id, ok := auth.ClientID(subject); !ok || id != client.ID {
		t.Errorf("subject = %q, want client %s", subject, client.ID)
	}
	if clients.touched != 1 {
		t.Errorf("TouchClient called %d times, want 1", clients.touched)
	}
}

func TestIssueClientToken_Rejects(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	ctx := context.Background()
	client, secret, err := svc.CreateClient(ctx, "agent")
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}

	tests := map[string]struct{ id, secret string }{
		"wrong secret":   {client.ID, secret + "x"},
		"unknown client": {"nobody", secret},
		"missing id":     {"", secret},
		"missing secret": {client.ID, ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.IssueClientToken(ctx, tt.id, tt.secret)
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Errorf("IssueClientToken() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestCreateClient_Validation(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	if _, _, err := svc.CreateClient(context.Background(), "  "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("CreateClient(blank) error = %v, want ErrValidation", err)
	}
}

func TestValidateToken_Invalid(t *testing.T) {
	svc, _, _, _ := newTestAuthService(t)
	if _, err := svc.ValidateToken("garbage"); err == nil {
		t.Error("ValidateToken() accepted garbage")
	}
}
