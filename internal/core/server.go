// Package core provides the HTTP chassis for the katabatic API: a chi router
// with the cross-cutting middleware (request IDs, access logging, panic
// recovery) applied before requests reach the prediction handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"katabatic/internal/config"
)

// RouteRegistrar mounts a group of handlers under /v1. Handler packages
// provide registrars so that core never imports them.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the router and its dependencies.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	HealthProbes      []HealthProbe
	V1RouteRegistrars []RouteRegistrar

	// Closers are released in order on Shutdown (store handles, pools).
	Closers []io.Closer

	router *chi.Mux
}

// NewServer prepares a server for route mounting. The caller mounts routes
// via MountRoutes after registering handlers.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases the registered closers. Every closer is attempted; the
// errors are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")

	var errs []error
	for _, c := range s.Closers {
		if err := c.Close(); err != nil {
			s.Logger.ErrorContext(ctx, "error closing resource", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing resources: %w", err)
	}

	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
