package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/sakif/pygate/internal/auth"
	"github.com/sakif/pygate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSnippet(t *testing.T, body *strings.Reader) model.Snippet {
	t.Helper()
	var s model.Snippet
	require.NoError(t, json.NewDecoder(body).Decode(&s))
	return s
}

func TestSnippetHandler_CRUD(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{ReturnRes: okResult("6\n")})

	rr := api.do(t, http.MethodPost, "/api/snippets", `{"name":"sum","code":"print(sum([1, 2, 3]))","description":"adds"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeSnippet(t, strings.NewReader(rr.Body.String()))
	assert.True(t, created.Accepted)
	assert.Equal(t, "sum", created.Name)

	rr = api.do(t, http.MethodGet, "/api/snippets/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created.ID, decodeSnippet(t, strings.NewReader(rr.Body.String())).ID)

	rr = api.do(t, http.MethodPut, "/api/snippets/"+created.ID, `{"code":"open('/etc/passwd')"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decodeSnippet(t, strings.NewReader(rr.Body.String()))
	assert.Equal(t, "sum", updated.Name)
	assert.False(t, updated.Accepted)
	assert.Equal(t, `PolicyViolation("Use of 'open' is not allowed")`, updated.Rejection)

	rr = api.do(t, http.MethodGet, "/api/snippets?limit=10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []model.Snippet
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, "/api/snippets/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/snippets/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, "/api/snippets/"+created.ID, "").Code)
}

func TestSnippetHandler_Validation(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})

	rr := api.do(t, http.MethodPost, "/api/snippets", `{"name":"","code":"x = 1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"validation_error","message":"snippet name is required","field":"name"}`, rr.Body.String())

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, "/api/snippets", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/api/snippets?offset=x", "").Code)
}

func TestSnippetHandler_Run(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{ReturnRes: okResult("6\n")})

	rr := api.do(t, http.MethodPost, "/api/snippets", `{"name":"sum","code":"print(sum([1, 2, 3]))"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	s := decodeSnippet(t, strings.NewReader(rr.Body.String()))

	rr = api.do(t, http.MethodPost, "/api/snippets/"+s.ID+"/run", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var run model.Run
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&run))
	assert.True(t, run.OK)
	assert.Equal(t, "6", run.Output)
	assert.Equal(t, s.ID, run.SnippetID)

	rr = api.do(t, http.MethodGet, "/api/runs?snippet="+s.ID, "")
	var runs []model.Run
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&runs))
	assert.Len(t, runs, 1)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPost, "/api/snippets/missing/run", "").Code)
}

func TestSnippetHandler_Ownership(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})
	ctx := context.Background()
	owner, err := api.auth.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 1, Login: "owner"})
	require.NoError(t, err)
	other, err := api.auth.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 2, Login: "other"})
	require.NoError(t, err)

	rr := api.do(t, http.MethodPost, "/api/snippets", `{"name":"mine","code":"x = 1"}`, "Authorization", "Bearer "+owner.Token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	mine := decodeSnippet(t, strings.NewReader(rr.Body.String()))
	assert.Equal(t, owner.User.ID, mine.UserID)

	rr = api.do(t, http.MethodPut, "/api/snippets/"+mine.ID, `{"code":"x = 2"}`, "Authorization", "Bearer "+other.Token)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = api.do(t, http.MethodDelete, "/api/snippets/"+mine.ID, "", "Authorization", "Bearer "+other.Token)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(t, http.MethodPut, "/api/snippets/"+mine.ID, `{"code":"x = 2"}`, "Authorization", "Bearer "+owner.Token)
	assert.Equal(t, http.StatusOK, rr.Code)
}
