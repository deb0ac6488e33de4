package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	configPath = ""
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "pygate.db"))
	t.Setenv("PYGATE_EXECUTOR", "inproc")
	t.Setenv("PYGATE_LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func writeSnippet(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func TestRun_Stdin(t *testing.T) {
	out, _, err := execute(t, "print(2 + 2)", "run")
	require.NoError(t, err)
	assert.Equal(t, "Successfully executed:\n```python\nprint(2 + 2)\n```\nStdout: 4\n\nIf you have completed all tasks, respond with FINAL ANSWER.\n", out)
}

func TestRun_FailureExitsNonZero(t *testing.T) {
	path := writeSnippet(t, t.TempDir(), "div.py", "1 / 0")
	out, _, err := execute(t, "", "run", path)
	require.Error(t, err)
	assert.Equal(t, exitError{code: 1}, err)
	assert.Equal(t, "Failed to execute. Error: ZeroDivisionError('division by zero')\n", out)
}

func TestRun_JSON(t *testing.T) {
	out, _, err := execute(t, "import os", "run", "--json", "-")
	require.Error(t, err)

	var res runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.OK)
	assert.Equal(t, "PolicyViolation", res.Kind)
	assert.Contains(t, res.Reason, "Import 'os' is not allowed")
}

func TestRun_MissingFile(t *testing.T) {
	_, _, err := execute(t, "", "run", filepath.Join(t.TempDir(), "nope.py"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read")
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeSnippet(t, dir, "good.py", "import math\nprint(math.pi)")
	bad := writeSnippet(t, dir, "bad.py", "import os\neval('1')")

	out, stderr, err := execute(t, "", "check", good, bad)
	assert.Equal(t, exitError{code: 1}, err)
	assert.Contains(t, out, good+": ok\n")
	assert.Contains(t, out, bad+":1:")
	assert.Contains(t, out, "import: Import 'os' is not allowed")
	assert.Contains(t, out, "identifier: Use of 'eval' is not allowed")
	assert.Contains(t, stderr, "1 of 2 files rejected")

	out, _, err = execute(t, "", "check", good)
	require.NoError(t, err)
	assert.Equal(t, good+": ok\n", out)
}

func TestCheck_JSON(t *testing.T) {
	bad := writeSnippet(t, t.TempDir(), "bad.py", "x.__class__")
	out, _, err := execute(t, "", "check", "--format", "json", bad)
	require.Error(t, err)

	var reports []fileReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, bad, reports[0].File)
	assert.False(t, reports[0].Accepted)
	require.Len(t, reports[0].Violations, 1)
	assert.Equal(t, "attribute", reports[0].Violations[0].Rule)
}

func TestPolicy(t *testing.T) {
	out, _, err := execute(t, "", "policy")
	require.NoError(t, err)
	assert.Contains(t, out, "allowed_import_roots:\n")
	assert.Contains(t, out, "- matplotlib.pyplot\n")
	assert.Contains(t, out, "backend: inproc\n")

	out, _, err = execute(t, "", "policy", "-f", "json")
	require.NoError(t, err)
	var desc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &desc))
	assert.Contains(t, desc, "forbiddenIdentifiers")
}

func TestPolicy_ConfigFile(t *testing.T) {
	cfg := writeSnippet(t, t.TempDir(), "pygate.yaml", "policy:\n  allowed_import_roots: [math, statistics, random, numpy, matplotlib]\n  extra_forbidden: [breakpoint]\n")
	out, _, err := execute(t, "", "policy", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "- breakpoint\n")
	assert.NotContains(t, out, "- pandas\n")
}

func TestClientCreate(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret-0123456789")
	out, stderr, err := execute(t, "", "client", "create", "--name", "agent")
	require.NoError(t, err)
	assert.Contains(t, out, "client_id:")
	assert.Contains(t, out, "client_secret:")
	assert.Contains(t, stderr, "cannot be shown again")
}

func TestClientCreate_RequiresAuth(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, _, err := execute(t, "", "client", "create", "--name", "agent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
