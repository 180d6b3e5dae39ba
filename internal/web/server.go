// Package web exposes the control plane over HTTP: job submission,
// inspection, cancellation, the resumable event stream, and the admin and
// health surfaces.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gepa-next/innerloop/internal/config"
	"github.com/gepa-next/innerloop/internal/metrics"
	"github.com/gepa-next/innerloop/internal/registry"
	"github.com/gepa-next/innerloop/internal/store"
)

// Server routes control plane requests to the registry and store.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	reg     *registry.Registry
	store   store.Store
	metrics *metrics.Collector
	version string

	tokens  map[string]bool
	limiter *rateLimiter

	handler      http.Handler
	httpServer   *http.Server
	httpListener net.Listener
}

// New wires the router and middleware. Call Start to begin serving.
func New(cfg *config.Config, reg *registry.Registry, st store.Store, col *metrics.Collector, logger *slog.Logger, version string) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		reg:     reg,
		store:   st,
		metrics: col,
		version: version,
		tokens:  make(map[string]bool, len(cfg.Auth.BearerTokens)),
		limiter: newRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}
	for _, t := range cfg.Auth.BearerTokens {
		s.tokens[t] = true
	}

	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	r.HandleFunc("/readyz", s.handleReadyz).Methods("GET")
	r.HandleFunc("/version", s.handleVersion).Methods("GET")
	r.Handle("/metrics", col.Handler()).Methods("GET")

	// The API mounts both versioned and unversioned.
	s.registerAPI(r.PathPrefix("/v1").Subrouter())
	s.registerAPI(r)

	// Middleware wraps the whole router so preflight and unmatched
	// requests still get correlation ids and logging.
	s.handler = s.requestIDMiddleware(s.loggingMiddleware(s.corsMiddleware(s.authMiddleware(r))))
	s.httpServer = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.handler,
	}
	return s
}

func (s *Server) registerAPI(r *mux.Router) {
	r.Handle("/optimize", s.rateLimitMiddleware(http.HandlerFunc(s.handleSubmit))).Methods("POST")
	r.HandleFunc("/optimize/{id}", s.handleGetJob).Methods("GET")
	r.HandleFunc("/optimize/{id}", s.handleCancelJob).Methods("DELETE")
	r.HandleFunc("/optimize/{id}/events", s.handleEvents).Methods("GET")

	r.HandleFunc("/admin/jobs", s.handleAdminList).Methods("GET")
	r.HandleFunc("/admin/jobs/{id}", s.handleAdminDelete).Methods("DELETE")
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening. Non-blocking; errors after startup are logged.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.httpListener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server stopped", "error", err)
		}
	}()
	s.logger.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address, useful with ephemeral ports.
func (s *Server) Addr() string {
	if s.httpListener != nil {
		return s.httpListener.Addr().String()
	}
	return s.httpServer.Addr
}

// Stop drains in-flight requests within the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
