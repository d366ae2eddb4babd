// Package server exposes the generation service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/auth"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/middleware"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/openapi"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/service"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

// Generator is the part of service.Service the API needs.
type Generator interface {
	GenerateIncidentSOP(ctx context.Context, rawContext string) service.IncidentResponse
	GenerateOnboardingPlan(ctx context.Context, role, tools, goals string) *types.SOP
	Run(ctx context.Context, input types.RawInput, forced *types.Category) types.PipelineResult
}

var _ Generator = (*service.Service)(nil)

// Dependencies are the collaborators of a Server. Auth and RateLimiter are
// optional.
type Dependencies struct {
	Generator      Generator
	Auth           *auth.Authenticator
	RateLimiter    *middleware.RateLimiter
	MetricsEnabled bool
}

// Server is the bone HTTP API.
type Server struct {
	log    logrus.FieldLogger
	cfg    config.ServerConfig
	deps   Dependencies
	router chi.Router

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	started  bool
}

// New creates a Server and registers its routes.
func New(log logrus.FieldLogger, cfg config.ServerConfig, deps Dependencies) (*Server, error) {
	if deps.Generator == nil {
		return nil, errors.New("server requires a generator")
	}

	s := &Server{
		log:  log.WithField("component", "server"),
		cfg:  cfg,
		deps: deps,
	}

	router, err := s.routes()
	if err != nil {
		return nil, err
	}

	s.router = router

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() (chi.Router, error) {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(observability.RequestLogger(s.log))
	r.Use(countRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !s.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if s.deps.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	if err := openapi.Mount(r); err != nil {
		return nil, fmt.Errorf("mounting api docs: %w", err)
	}

	r.Route("/api", func(api chi.Router) {
		if s.deps.Auth != nil {
			api.Use(s.deps.Auth.Middleware())
		}

		api.With(s.limit("incidents")).Post("/incidents/generate-sop", s.handleIncident)
		api.With(s.limit("onboarding")).Post("/onboarding/generate-plan", s.handleOnboarding)
		api.With(s.limit("pipeline")).Post("/pipeline/run", s.handlePipelineRun)
	})

	return r, nil
}

// limit returns the rate limiting middleware for route, or a pass-through
// when rate limiting is off.
func (s *Server) limit(route string) func(http.Handler) http.Handler {
	if s.deps.RateLimiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return s.deps.RateLimiter.Middleware(route)
}

// countRequests records bone_http_requests_total by matched route pattern.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		observability.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// Ready reports whether the server is accepting connections.
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.started
}

// Addr returns the bound listen address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("binding to %s: %w", s.cfg.Address(), err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.log.WithField("addr", listener.Addr().String()).Info("Starting HTTP server")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	s.started = true

	return nil
}

// Stop shuts the server down gracefully and releases the rate limiter.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deps.RateLimiter != nil {
		_ = s.deps.RateLimiter.Close()
	}

	if !s.started {
		return nil
	}

	s.started = false

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}

	s.log.Info("HTTP server stopped")

	return nil
}
