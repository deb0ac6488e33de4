package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pygate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/pygate.db", cfg.Server.DBPath)
	assert.Equal(t, BackendInproc, cfg.Executor.Backend)
	assert.Equal(t, 5*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, "python:3.12-alpine", cfg.Executor.Docker.Image)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.Auth.GitHubCallbackURL)
	assert.False(t, cfg.AuthEnabled())
	assert.False(t, cfg.GitHubEnabled())

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9000
  db_path: /var/lib/pygate/runs.db
executor:
  backend: docker
  timeout: 2s
  seed: 7
  sandbox:
    output_kb: 8
    max_steps: 1000
  docker:
    image: python:3.13-slim
    pool_size: 1
policy:
  allowed_import_roots: [math, random]
  extra_forbidden: [breakpoint]
log_level: debug
`)
	cfg, err := load(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/var/lib/pygate/runs.db", cfg.Server.DBPath)
	assert.Equal(t, BackendDocker, cfg.Executor.Backend)
	assert.Equal(t, 2*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, uint64(7), cfg.Executor.Seed)
	assert.Equal(t, 8, cfg.Executor.Sandbox.Limits().OutputKB)
	assert.Equal(t, int64(1000), cfg.Executor.Sandbox.Limits().MaxSteps)
	assert.Equal(t, "python:3.13-slim", cfg.Executor.Docker.Image)
	assert.Equal(t, 1, cfg.Executor.Docker.PoolSize)
	// unset docker fields keep their defaults
	assert.Equal(t, int64(64), cfg.Executor.Docker.PidsLimit)
	assert.Equal(t, []string{"math", "random"}, cfg.Policy.AllowedImportRoots)
	assert.Equal(t, []string{"breakpoint"}, cfg.Policy.ExtraForbidden)
	assert.Equal(t, "http://localhost:9000/auth/github/callback", cfg.Auth.GitHubCallbackURL)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server:\n  port: 9000\nexecutor:\n  timeout: 2s\n")
	cfg, err := load(path, env(map[string]string{
		"PORT":                 "7000",
		"DB_PATH":              ":memory:",
		"JWT_SECRET":           "0123456789abcdef0123",
		"GITHUB_CLIENT_ID":     "id",
		"GITHUB_CLIENT_SECRET": "secret",
		"PYGATE_TIMEOUT":       "750ms",
		"PYGATE_LOG_LEVEL":     "warn",
		"PYGATE_EXECUTOR":      "inproc",
	}))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Server.DBPath)
	assert.Equal(t, 750*time.Millisecond, cfg.Executor.Timeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.AuthEnabled())
	assert.True(t, cfg.GitHubEnabled())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		want string
	}{
		{name: "bad port env", env: map[string]string{"PORT": "http"}, want: `invalid PORT value "http"`},
		{name: "bad timeout env", env: map[string]string{"PYGATE_TIMEOUT": "soon"}, want: "invalid PYGATE_TIMEOUT"},
		{name: "unknown backend", env: map[string]string{"PYGATE_EXECUTOR": "wasm"}, want: `executor.backend must be "inproc" or "docker", got "wasm"`},
		{name: "short secret", env: map[string]string{"JWT_SECRET": "short"}, want: "auth.jwt_secret must be at least 16 characters"},
		{name: "bad level", env: map[string]string{"PYGATE_LOG_LEVEL": "loud"}, want: "log_level"},
		{name: "port out of range", file: "server:\n  port: 70000\n", want: "server.port 70000 out of range"},
		{name: "negative timeout", file: "executor:\n  timeout: -1s\n", want: "executor.timeout must be positive"},
		{name: "malformed yaml", file: "server: [", want: "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			_, err := load(path, env(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestGitHubEnabled_RequiresAuth(t *testing.T) {
	cfg := Default()
	cfg.Auth.GitHubClientID = "id"
	cfg.Auth.GitHubClientSecret = "secret"
	assert.False(t, cfg.GitHubEnabled())
}
