package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/sakif/pygate/internal/handler"
	"github.com/sakif/pygate/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyHandler_HandlePolicy(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})

	rr := api.do(t, http.MethodGet, "/api/policy", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got handler.PolicyResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Contains(t, got.AllowedImportRoots, "matplotlib.pyplot")
	assert.Contains(t, got.ForbiddenIdentifiers, "eval")
	assert.Contains(t, got.Capabilities, "print")
	assert.Contains(t, got.Modules, "numpy")
	assert.Equal(t, "5s", got.Timeout)
	assert.Equal(t, "mock", got.Backend)
}

func TestPolicyHandler_HandleValidate(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})

	validate := func(code string) policy.Report {
		t.Helper()
		body, err := json.Marshal(map[string]string{"code": code})
		require.NoError(t, err)
		rr := api.do(t, http.MethodPost, "/api/validate", string(body))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var report policy.Report
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&report))
		return report
	}

	ok := validate("import math\nprint(math.pi)")
	assert.True(t, ok.Accepted)
	assert.Empty(t, ok.Violations)

	bad := validate("import os\nx = 'a'.__class__\nexec('1')")
	assert.False(t, bad.Accepted)
	require.Len(t, bad.Violations, 3)
	assert.Equal(t, policy.RuleImport, bad.Violations[0].Rule)
	assert.Equal(t, 1, bad.Violations[0].Line)
	assert.Equal(t, policy.RuleAttribute, bad.Violations[1].Rule)
	assert.Equal(t, policy.RuleIdentifier, bad.Violations[2].Rule)

	syntax := validate("if x\n  pass")
	assert.False(t, syntax.Accepted)
	require.Len(t, syntax.Violations, 1)
	assert.Equal(t, policy.RuleSyntax, syntax.Violations[0].Rule)

	assert.Zero(t, api.exec.Calls)
}

func TestPolicyHandler_EmptyReportIsArray(t *testing.T) {
	api := newTestAPI(t, &MockExecutor{})
	rr := api.do(t, http.MethodPost, "/api/validate", `{"code":"x = 1"}`)
	assert.JSONEq(t, `{"accepted":true,"violations":[]}`, rr.Body.String())
}
