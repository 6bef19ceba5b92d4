// Package server provides HTTP server management and lifecycle handling for the drugcheck API.
// It includes server setup, middleware configuration, route management, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"sync"
	"time"

	"github.com/giygas/drugcheck-api/config"
	"github.com/giygas/drugcheck-api/handlers"
	"github.com/giygas/drugcheck-api/logging"
	"github.com/giygas/drugcheck-api/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const rateLimitCleanupInterval = 30 * time.Minute

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	router   chi.Router
	config   *config.Config
	handler  *handlers.HTTPHandlerImpl
	limiter  *RateLimiter
	stop     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, handler *handlers.HTTPHandlerImpl) *Server {
	router := chi.NewRouter()

	// The slowest route runs a search, a fetch and one completion back to back
	writeTimeout := cfg.LLMTimeout + 2*cfg.UpstreamTimeout + 15*time.Second

	s := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		router:  router,
		config:  cfg,
		handler: handler,
		limiter: NewRateLimiter(),
		stop:    make(chan struct{}),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	if s.config.RequireProxy {
		s.router.Use(BlockDirectAccessMiddleware) // before RealIPMiddleware to see the original RemoteAddr
	}
	s.router.Use(RealIPMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(logging.LoggingMiddleware(logging.Default()))
	s.router.Use(metrics.Metrics)
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(s.limiter.Middleware)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handler.HealthCheck)
	s.router.Get("/api", s.handler.APIInfo)
	s.router.Get("/api/data", s.handler.GetData)
	s.router.Post("/api/data", s.handler.PostData)
	s.router.Get("/api/compatibility", s.handler.Compatibility)
	s.router.Get("/api/research", s.handler.Research)
	s.router.Get("/api/user", s.handler.User)

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.NotFound(handlers.NotFound)
	s.router.MethodNotAllowed(handlers.MethodNotAllowed)
}

// Router exposes the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the server and blocks until it stops
func (s *Server) Start() error {
	if s.config.Env == config.EnvDevelopment {
		s.startProfilingServer()
	}

	go s.limiter.runCleanup(rateLimitCleanupInterval, s.stop)

	logging.Info("Starting server", "address", s.server.Addr, "env", s.config.Env.String())
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")
	s.stopOnce.Do(func() { close(s.stop) })

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		logging.Info("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			logging.Warn("Profiling server failed", "error", err)
		}
	}()
}
