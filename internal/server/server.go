// Package server exposes the risk engine over HTTP: the portfolio
// dashboard, the trailing risk-event window, and candidate-position
// evaluation. Every route is read-only except evaluate, which mutates
// nothing beyond appending rejections to the risk-event log.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
)

// Server serves the risk API over plain HTTP
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *Handlers
	cfg      config.ServerConfig
}

// NewServer wires routes and middleware over the handler set. It
// probes the configured port so a busy address fails at startup
// instead of on the first request.
func NewServer(cfg config.ServerConfig, handlers *Handlers) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("port %d is busy or unavailable: %w", cfg.Port, err)
	}
	listener.Close()

	s := &Server{
		router:   mux.NewRouter(),
		handlers: handlers,
		cfg:      cfg,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware)
	s.router.Use(timeoutMiddleware(defaultRequestTimeout))

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(jsonContentTypeMiddleware)
	api.HandleFunc("/dashboard", s.handlers.Dashboard).Methods(http.MethodGet)
	api.HandleFunc("/metrics/window", s.handlers.MetricsWindow).Methods(http.MethodGet)
	api.HandleFunc("/positions/evaluate", s.handlers.EvaluatePosition).Methods(http.MethodPost)

	s.router.Handle("/health", s.handlers.health).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.handlers.metrics).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
}

// Start serves until the listener closes. A clean Shutdown is not an
// error.
func (s *Server) Start() error {
	log.Info().
		Str("component", "server").
		Str("addr", s.server.Addr).
		Msg("Risk API listening")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until the context expires
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Str("component", "server").Msg("Risk API shutting down")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree for tests and embedding
func (s *Server) Router() http.Handler {
	return s.router
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}
