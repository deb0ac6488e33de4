// Package config loads pygate settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sakif/pygate/internal/executor/docker"
	"github.com/sakif/pygate/internal/sandbox"
)

// Executor backends.
const (
	BackendInproc = "inproc"
	BackendDocker = "docker"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Executor ExecutorConfig `yaml:"executor"`
	Policy   PolicyConfig   `yaml:"policy"`
	LogLevel string         `yaml:"log_level"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`
	// ShutdownTimeout bounds the wait for in-flight requests.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig is empty by default, which leaves the API open.
type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	GitHubClientID     string `yaml:"github_client_id"`
	GitHubClientSecret string `yaml:"github_client_secret"`
	GitHubCallbackURL  string `yaml:"github_callback_url"`
}

type ExecutorConfig struct {
	Backend string        `yaml:"backend"`
	Timeout time.Duration `yaml:"timeout"`
	Seed    uint64        `yaml:"seed"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Docker  docker.Config `yaml:"docker"`
}

// SandboxConfig mirrors sandbox.Limits. Zero fields keep the interpreter
// defaults.
type SandboxConfig struct {
	OutputKB    int   `yaml:"output_kb"`
	MaxSteps    int64 `yaml:"max_steps"`
	MaxDepth    int   `yaml:"max_depth"`
	MaxItems    int   `yaml:"max_items"`
	MaxStrBytes int   `yaml:"max_str_bytes"`
}

func (s SandboxConfig) Limits() sandbox.Limits {
	return sandbox.Limits{
		OutputKB:    s.OutputKB,
		MaxSteps:    s.MaxSteps,
		MaxDepth:    s.MaxDepth,
		MaxItems:    s.MaxItems,
		MaxStrBytes: s.MaxStrBytes,
	}
}

// PolicyConfig adjusts the default policy. Empty AllowedImportRoots keeps
// the defaults; ExtraForbidden only ever adds names.
type PolicyConfig struct {
	AllowedImportRoots []string `yaml:"allowed_import_roots"`
	ExtraForbidden     []string `yaml:"extra_forbidden"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			DBPath:          "data/pygate.db",
			ShutdownTimeout: 30 * time.Second,
		},
		Executor: ExecutorConfig{
			Backend: BackendInproc,
			Timeout: 5 * time.Second,
			Docker:  docker.DefaultConfig(),
		},
		LogLevel: "info",
	}
}

// Load reads path when it is non-empty, then applies the environment.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if cfg.Auth.GitHubCallbackURL == "" {
		cfg.Auth.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("DB_PATH", &c.Server.DBPath)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("GITHUB_CLIENT_ID", &c.Auth.GitHubClientID)
	str("GITHUB_CLIENT_SECRET", &c.Auth.GitHubClientSecret)
	str("GITHUB_CALLBACK_URL", &c.Auth.GitHubCallbackURL)
	str("PYGATE_EXECUTOR", &c.Executor.Backend)
	str("PYGATE_LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT value %q", v)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("PYGATE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PYGATE_TIMEOUT value %q: %w", v, err)
		}
		c.Executor.Timeout = d
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.DBPath == "" {
		errs = append(errs, errors.New("server.db_path is required"))
	}
	switch c.Executor.Backend {
	case BackendInproc, BackendDocker:
	default:
		errs = append(errs, fmt.Errorf("executor.backend must be %q or %q, got %q", BackendInproc, BackendDocker, c.Executor.Backend))
	}
	if c.Executor.Timeout <= 0 {
		errs = append(errs, errors.New("executor.timeout must be positive"))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AuthEnabled reports whether API routes require a token.
func (c Config) AuthEnabled() bool { return c.Auth.JWTSecret != "" }

// GitHubEnabled reports whether operator login through GitHub is configured.
func (c Config) GitHubEnabled() bool {
	return c.AuthEnabled() && c.Auth.GitHubClientID != "" && c.Auth.GitHubClientSecret != ""
}

func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
