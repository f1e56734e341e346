// Package core provides the API chassis for the EquityLens platform.
// It builds the chi router and enforces cross-cutting concerns -- security
// headers, logging, observability, and error handling -- before requests reach
// domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"equitylens/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
type MetricsCollector interface {
	// RecordRequest records request latency and count for the given route.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar registers a group of domain routes on the v1 router. The
// application entry point populates Server.V1RouteRegistrars with these,
// which avoids import cycles between core and handler packages.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the chassis dependencies for the EquityLens API,
// allowing injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// HealthProbes are checked concurrently by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1.
	V1RouteRegistrars []RouteRegistrar

	// RootRouteRegistrars mount routes outside /v1 (e.g. provider webhooks,
	// which must not share the browser-facing middleware expectations).
	RootRouteRegistrars []RouteRegistrar

	// closers are shut down in order during Shutdown (DB pools, cache clients).
	closers []namedCloser

	router *chi.Mux
}

type namedCloser struct {
	name  string
	close func() error
}

// NewServer initializes the chassis and prepares the server for route
// mounting. The caller is responsible for mounting routes (via MountRoutes)
// after registering handlers; this separation allows tests to customize route
// registration.
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
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// AddCloser registers a resource to be released during Shutdown.
func (s *Server) AddCloser(name string, close func() error) {
	s.closers = append(s.closers, namedCloser{name: name, close: close})
}

// Shutdown performs a graceful termination of server resources: database
// pools, cache connections, and anything else registered via AddCloser.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var firstErr error
	for _, c := range s.closers {
		if err := c.close(); err != nil {
			s.Logger.Error("error closing resource", "resource", c.name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("closing %s: %w", c.name, err)
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}
	s.Logger.Info("server shutdown complete")
	return nil
}
