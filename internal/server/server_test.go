package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pygate/internal/auth"
	"github.com/sakif/pygate/internal/config"
	"github.com/sakif/pygate/internal/service"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Server.DBPath = ":memory:"
	cfg.Executor.Seed = 1
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	s, err := New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func post(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestServer_ToolEndToEnd(t *testing.T) {
	s := newTestServer(t, testConfig())

	rr := serve(s, post("/api/tools/python_repl", `{"code":"print(sum(range(5)))"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Successfully executed:\n```python\nprint(sum(range(5)))\n```\nStdout: 10\n\nIf you have completed all tasks, respond with FINAL ANSWER.", rr.Body.String())

	rr = serve(s, post("/api/tools/python_repl", `{"code":"import os"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Failed to execute. Error: PolicyViolation("), rr.Body.String())

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)
}

func TestServer_MetricsAndHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	serve(s, post("/api/execute", `{"code":"1/0"}`))
	serve(s, post("/api/validate", `{"code":"eval('1')"}`))

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `pygate_runs_total{kind="RuntimeError"} 1`)
	assert.Contains(t, body, `pygate_http_requests_total`)
	assert.Contains(t, body, `route="/api/execute"`)

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok", rr.Body.String())
}

func TestServer_AuthDisabled(t *testing.T) {
	s := newTestServer(t, testConfig())

	rr := serve(s, post("/auth/token", `{"client_id":"x","client_secret":"y"}`))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/api/policy", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pygate")
}

func TestServer_ClientCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = "server-test-secret-0123456789"
	s := newTestServer(t, cfg)

	rr := serve(s, post("/api/execute", `{"code":"print(1)"}`))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	require.NoError(t, err)
	authService := service.NewAuthService(s.db, s.db, tokens, auth.NewPasswordServiceForTest(4), slog.New(slog.DiscardHandler))
	client, secret, err := authService.CreateClient(context.Background(), "agent")
	require.NoError(t, err)

	form := url.Values{"client_id": {client.ID}, "client_secret": {secret}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = serve(s, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.AccessToken)

	req = post("/api/tools/python_repl", `{"code":"print('hi')"}`)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rr = serve(s, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Stdout: hi")

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rr = serve(s, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"clientId":"`+client.ID+`"}`, rr.Body.String())

	// GitHub is not configured
	rr = serve(s, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServer_StartStops(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = freePort(t)
	s, err := New(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	healthz := "http://127.0.0.1:" + strconv.Itoa(cfg.Server.Port) + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthz)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return string(b) == "ok"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestNewGatekeeper_RejectsBadPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Policy.ExtraForbidden = []string{"math"}
	_, _, err := NewGatekeeper(cfg, slog.New(slog.DiscardHandler), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "math")
}
