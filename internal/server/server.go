// Package server wires the gatekeeper, storage, auth and HTTP handlers
// together and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/pygate/internal/auth"
	"github.com/sakif/pygate/internal/config"
	"github.com/sakif/pygate/internal/gatekeeper"
	"github.com/sakif/pygate/internal/handler"
	"github.com/sakif/pygate/internal/metrics"
	"github.com/sakif/pygate/internal/middleware"
	sqliteRepo "github.com/sakif/pygate/internal/repository/sqlite"
	"github.com/sakif/pygate/internal/service"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "pygate"

// Server owns the database, the executor backend and the router.
type Server struct {
	router    *chi.Mux
	config    config.Config
	logger    *slog.Logger
	db        *sqliteRepo.DB
	gk        *gatekeeper.Gatekeeper
	metrics   *metrics.Collector
	closeExec func() error
}

// New opens the database, starts the executor backend and sets up routes.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Server.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Server.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.Server.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	collector := metrics.NewCollector(MetricsNamespace)
	gk, closeExec, err := NewGatekeeper(cfg, logger, collector)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		db:        db,
		gk:        gk,
		metrics:   collector,
		closeExec: closeExec,
	}
	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))

	runService := service.NewRunService(s.gk, s.db, s.logger)
	snippetService := service.NewSnippetService(s.db, s.gk, runService, s.logger)

	executeHandler := handler.NewExecuteHandler(runService, s.logger)
	runHandler := handler.NewRunHandler(runService, s.logger)
	policyHandler := handler.NewPolicyHandler(s.gk)
	snippetHandler := handler.NewSnippetHandler(snippetService, s.logger)

	playgroundHandler, err := handler.NewPlaygroundHandler(s.gk, s.config.AuthEnabled(), s.logger)
	if err != nil {
		return fmt.Errorf("creating playground handler: %w", err)
	}

	// Without a JWT secret every route is open and /auth is not mounted.
	protect := func(r chi.Router) {}
	var authHandler *handler.AuthHandler
	if s.config.AuthEnabled() {
		tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		authService := service.NewAuthService(s.db, s.db, tokens, auth.NewPasswordService(), s.logger)

		var github *auth.GitHubProvider
		if s.config.GitHubEnabled() {
			github = auth.NewGitHubProvider(s.config.Auth.GitHubClientID, s.config.Auth.GitHubClientSecret, s.config.Auth.GitHubCallbackURL)
		} else {
			s.logger.Info("GitHub login not configured")
		}
		authHandler = handler.NewAuthHandler(github, authService, s.logger)

		s.router.Route("/auth", func(r chi.Router) {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
			r.Post("/logout", authHandler.HandleLogout)
			r.Post("/token", authHandler.HandleToken)
		})
		s.router.With(auth.OptionalAuth(tokens)).Get("/", playgroundHandler.HandlePlayground)

		protect = func(r chi.Router) { r.Use(auth.RequireAuth(tokens)) }
	} else {
		s.logger.Warn("JWT_SECRET not set, authentication is disabled")
		s.router.Get("/", playgroundHandler.HandlePlayground)
	}

	s.router.Handle("/metrics", s.metrics.Handler())
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		protect(r)

		if authHandler != nil {
			r.Get("/me", authHandler.HandleMe)
		}
		r.Post("/tools/python_repl", executeHandler.HandleTool)
		r.Post("/execute", executeHandler.HandleExecute)
		r.Post("/validate", policyHandler.HandleValidate)
		r.Get("/policy", policyHandler.HandlePolicy)

		r.Get("/runs", runHandler.HandleList)
		r.Get("/runs/{id}", runHandler.HandleGet)
		r.Get("/runs/{id}/artifacts/{name}", runHandler.HandleArtifact)

		r.Get("/snippets", snippetHandler.HandleList)
		r.Post("/snippets", snippetHandler.HandleCreate)
		r.Get("/snippets/{id}", snippetHandler.HandleGet)
		r.Put("/snippets/{id}", snippetHandler.HandleUpdate)
		r.Delete("/snippets/{id}", snippetHandler.HandleDelete)
		r.Post("/snippets/{id}/run", snippetHandler.HandleRun)
	})
	return nil
}

// Start serves on the configured port until ctx is cancelled, then shuts
// down gracefully and releases the database and backend.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	addr := net.JoinHostPort("", strconv.Itoa(s.config.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// long enough for the slowest execution plus the response
		WriteTimeout: s.config.Executor.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Server.DBPath),
			slog.String("executor", s.gk.Backend()),
			slog.Bool("auth", s.config.AuthEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		grace := s.config.Server.ShutdownTimeout
		if grace <= 0 {
			grace = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Close releases the backend and the database. It is safe to call twice.
func (s *Server) Close() error {
	var errs []error
	if s.closeExec != nil {
		errs = append(errs, s.closeExec())
		s.closeExec = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}
