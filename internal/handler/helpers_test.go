package handler_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/pygate/internal/auth"
	"github.com/sakif/pygate/internal/executor"
	"github.com/sakif/pygate/internal/gatekeeper"
	"github.com/sakif/pygate/internal/handler"
	"github.com/sakif/pygate/internal/policy"
	"github.com/sakif/pygate/internal/repository/sqlite"
	"github.com/sakif/pygate/internal/service"
	"github.com/stretchr/testify/require"
)

// MockExecutor is a backend that returns a canned result without running
// anything.
type MockExecutor struct {
	CapturedReq executor.ExecutionRequest
	Calls       int
	ReturnRes   *executor.ExecutionResult
	ReturnErr   error
}

func (m *MockExecutor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	m.CapturedReq = req
	m.Calls++
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnRes, nil
}

type testAPI struct {
	router chi.Router
	exec   *MockExecutor
	auth   *service.AuthService
	tokens *auth.TokenService
}

// newTestAPI wires real services over an in-memory database and a mock
// backend. Routes that need a user sit behind OptionalAuth.
func newTestAPI(t *testing.T, exec *MockExecutor) *testAPI {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gk, err := gatekeeper.New(policy.Default(), exec, gatekeeper.Options{Backend: "mock"})
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("handler-test-secret-0123")
	require.NoError(t, err)
	authSvc := service.NewAuthService(db, db, tokens, auth.NewPasswordServiceForTest(4), logger)
	runs := service.NewRunService(gk, db, logger)
	snippets := service.NewSnippetService(db, gk, runs, logger)

	exh := handler.NewExecuteHandler(runs, logger)
	rh := handler.NewRunHandler(runs, logger)
	ph := handler.NewPolicyHandler(gk)
	sh := handler.NewSnippetHandler(snippets, logger)
	ah := handler.NewAuthHandler(nil, authSvc, logger)
	pg, err := handler.NewPlaygroundHandler(gk, true, logger)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(auth.OptionalAuth(tokens))
	r.Get("/", pg.HandlePlayground)
	r.Post("/auth/token", ah.HandleToken)
	r.Post("/auth/logout", ah.HandleLogout)
	r.Get("/auth/github/login", ah.HandleGitHubLogin)
	r.Get("/api/me", ah.HandleMe)
	r.Post("/api/tools/python_repl", exh.HandleTool)
	r.Post("/api/execute", exh.HandleExecute)
	r.Post("/api/validate", ph.HandleValidate)
	r.Get("/api/policy", ph.HandlePolicy)
	r.Get("/api/runs", rh.HandleList)
	r.Get("/api/runs/{id}", rh.HandleGet)
	r.Get("/api/runs/{id}/artifacts/{name}", rh.HandleArtifact)
	r.Get("/api/snippets", sh.HandleList)
	r.Post("/api/snippets", sh.HandleCreate)
	r.Get("/api/snippets/{id}", sh.HandleGet)
	r.Put("/api/snippets/{id}", sh.HandleUpdate)
	r.Delete("/api/snippets/{id}", sh.HandleDelete)
	r.Post("/api/snippets/{id}/run", sh.HandleRun)

	return &testAPI{router: r, exec: exec, auth: authSvc, tokens: tokens}
}

func (a *testAPI) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func okResult(stdout string) *executor.ExecutionResult {
	return &executor.ExecutionResult{Stdout: stdout, ExitCode: executor.ExitOK}
}
