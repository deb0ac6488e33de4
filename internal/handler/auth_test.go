package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sakif/pygate/internal/auth"
	"github.com/sakif/pygate/internal/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_HandleToken(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})
	client, secret, err := api.auth.CreateClient(context.Background(), "agent")
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{"client_id": client.ID, "client_secret": secret})
	require.NoError(t, err)
	rr := api.do(t, http.MethodPost, "/auth/token", string(body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	var tok handler.TokenResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tok))
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, 3600, tok.ExpiresIn)

	rr = api.do(t, http.MethodGet, "/api/me", "", "Authorization", "Bearer "+tok.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"clientId":"`+client.ID+`"}`, rr.Body.String())
}

func TestAuthHandler_HandleToken_Form(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})
	client, secret, err := api.auth.CreateClient(context.Background(), "agent")
	require.NoError(t, err)

	form := url.Values{"client_id": {client.ID}, "client_secret": {secret}}.Encode()
	rr := api.do(t, http.MethodPost, "/auth/token", "", "Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	r := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAuthHandler_HandleToken_Rejects(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})
	client, _, err := api.auth.CreateClient(context.Background(), "agent")
	require.NoError(t, err)

	rr := api.do(t, http.MethodPost, "/auth/token", `{"client_id":"`+client.ID+`","client_secret":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthorized","message":"invalid client credentials"}`, rr.Body.String())
}

func TestAuthHandler_HandleMe(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})

	assert.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodGet, "/api/me", "").Code)

	login, err := api.auth.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 5, Login: "octo"})
	require.NoError(t, err)
	rr := api.do(t, http.MethodGet, "/api/me", "", "Cookie", auth.CookieName+"="+login.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"login":"octo"`)
}

func TestAuthHandler_Logout(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})
	rr := api.do(t, http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Set-Cookie"), auth.CookieName+"=;")
}

func TestAuthHandler_GitHubDisabled(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/auth/github/login", "").Code)
}

func TestPlaygroundHandler(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})
	rr := api.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, "<title>pygate</title>")
	assert.Contains(t, body, "<code>matplotlib.pyplot</code>")
	assert.Contains(t, body, "sign in with GitHub")
}
