// Package web provides the HTTP surface for CSV normalization and run history.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tidy/internal/history"
	"github.com/JonMunkholm/tidy/internal/tabular"
	webmw "github.com/JonMunkholm/tidy/internal/web/middleware"
)

// RunStore is the part of the run ledger the server uses.
type RunStore interface {
	Record(ctx context.Context, run history.Run) (string, error)
	List(ctx context.Context, limit int) ([]history.Run, error)
}

// Options configures a Server.
type Options struct {
	Addr          string
	Normalizer    *tabular.Normalizer
	History       RunStore // nil disables the history endpoint and run recording
	MaxBody       int64
	MaxConcurrent int
	MaxWait       time.Duration
}

// Server is the HTTP server for the normalization API.
type Server struct {
	opts    Options
	limiter *Limiter
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(opts Options) *Server {
	s := &Server{
		opts:    opts,
		limiter: NewLimiter(opts.MaxConcurrent, opts.MaxWait),
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/normalize", s.handleNormalize)
		r.Get("/history", s.handleHistory)
	})
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("server starting", "addr", s.opts.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown waits for in-flight normalizations, then stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if active := s.limiter.ActiveCount(); active > 0 {
		slog.Info("waiting for normalizations to complete", "active", active)
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("normalizations did not complete in time", "error", err)
		}
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
