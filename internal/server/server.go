// Package server assembles the gateway's HTTP router and listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/issgate/internal/errors"
	"github.com/3leaps/issgate/internal/observability"
	"github.com/3leaps/issgate/internal/server/handlers"
	"github.com/3leaps/issgate/internal/server/middleware"
)

// Server owns the router and the HTTP listener.
type Server struct {
	host   string
	port   int
	router chi.Router
	logger *zap.Logger

	jobs      *handlers.JobsHandler
	platforms *handlers.PlatformsHandler
	instances *handlers.InstancesHandler
	files     *handlers.FilesHandler
	collector *observability.Collector

	authToken    string
	rateLimitRPS float64
	rateBurst    int

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	httpServer *http.Server
}

// Option configures optional server wiring.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithJobs mounts the jobs routes.
func WithJobs(h *handlers.JobsHandler) Option {
	return func(s *Server) { s.jobs = h }
}

// WithPlatforms mounts the platform routes.
func WithPlatforms(h *handlers.PlatformsHandler) Option {
	return func(s *Server) { s.platforms = h }
}

// WithInstances mounts the instance routes.
func WithInstances(h *handlers.InstancesHandler) Option {
	return func(s *Server) { s.instances = h }
}

// WithFiles mounts the job file routes.
func WithFiles(h *handlers.FilesHandler) Option {
	return func(s *Server) { s.files = h }
}

// WithMetrics mounts /metrics and records per-request metrics.
func WithMetrics(c *observability.Collector) Option {
	return func(s *Server) { s.collector = c }
}

// WithAuthToken gates /api behind a static bearer token.
func WithAuthToken(token string) Option {
	return func(s *Server) { s.authToken = token }
}

// WithRateLimit bounds the inbound request rate on /api.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rateLimitRPS = rps
		s.rateBurst = burst
	}
}

// WithTimeouts sets the listener timeouts.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
		s.idleTimeout = idle
	}
}

// New builds a server with its routes registered. Route groups without a
// configured handler are not mounted.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:         host,
		port:         port,
		logger:       zap.NewNop(),
		readTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		idleTimeout:  120 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(s.logger))
	if s.collector != nil {
		r.Use(middleware.Metrics(s.collector))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, req, http.StatusNotFound, "NOT_FOUND", "no route for "+req.URL.Path, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", req.Method+" is not allowed on "+req.URL.Path, nil)
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", handlers.VersionHandler)

	if s.collector != nil {
		r.Method(http.MethodGet, "/metrics", s.collector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.BearerAuth(s.authToken))
		if s.rateLimitRPS > 0 {
			api.Use(middleware.RateLimit(s.rateLimitRPS, s.rateBurst))
		}

		if s.jobs != nil {
			api.Get("/jobs", s.jobs.List)
			api.Get("/jobs/stats", s.jobs.Stats)
			api.Get("/jobs/{jobID}", s.jobs.Get)
		}
		if s.files != nil {
			api.Get("/jobs/{jobID}/files", s.files.List)
			api.Get("/jobs/{jobID}/files/*", s.files.Download)
		}
		if s.platforms != nil {
			api.Get("/platforms", s.platforms.List)
			api.Get("/platforms/{platformID}", s.platforms.Get)
		}
		if s.instances != nil {
			api.Get("/instances", s.instances.List)
			api.Get("/instances/{instanceID}", s.instances.Get)
		}
	})

	return r
}

// Handler returns the assembled router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// Start runs the listener until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	s.logger.Info("Server listening", zap.String("addr", s.Addr()))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
