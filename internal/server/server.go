// Package server exposes the scan, document, and history operations over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aira-technology/tag-scanner/internal/deploy"
	"github.com/aira-technology/tag-scanner/internal/gitsource"
	"github.com/aira-technology/tag-scanner/internal/history"
	"github.com/aira-technology/tag-scanner/internal/scan"
	"github.com/aira-technology/tag-scanner/internal/store"
)

// Server is the HTTP surface over the scan pipeline.
type Server struct {
	store     *store.Store
	history   *history.DB
	hosted    gitsource.TagSource
	local     gitsource.TagSource
	deployCfg deploy.Config
	scanOpts  scan.Options
	githubSet bool
	http      *http.Server
	logger    *slog.Logger
}

// Options carries the collaborators the server needs.
type Options struct {
	Store            *store.Store
	History          *history.DB
	Hosted           gitsource.TagSource
	Local            gitsource.TagSource
	DeploymentConfig deploy.Config
	ScanOptions      scan.Options
	GitHubConfigured bool
	Addr             string
	Logger           *slog.Logger
}

// New assembles the server and its routes.
func New(opts Options) *Server {
	s := &Server{
		store:     opts.Store,
		history:   opts.History,
		hosted:    opts.Hosted,
		local:     opts.Local,
		deployCfg: opts.DeploymentConfig,
		scanOpts:  opts.ScanOptions,
		githubSet: opts.GitHubConfigured,
		logger:    opts.Logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	handler = loggingMiddleware(opts.Logger, handler)
	handler = recoveryMiddleware(opts.Logger, handler)

	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // organization scans block on the hosting API
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	s.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic", "path", r.URL.Path, "error", rec)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
