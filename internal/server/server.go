// Package server exposes the gateway over HTTP: the relay entry point
// under /api, health and metrics endpoints, and a token-guarded admin
// surface for circuit breaker inspection and reset.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apiconduit/conduit/internal/circuitbreaker"
	"github.com/apiconduit/conduit/internal/identity"
	"github.com/apiconduit/conduit/internal/observability"
	"github.com/apiconduit/conduit/internal/pipeline"
	"github.com/apiconduit/conduit/internal/ratelimit"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// Config holds the HTTP listener settings.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps inbound request bodies. Zero disables the cap.
	MaxBodyBytes int64

	// AdminToken guards the admin endpoints. Empty disables them.
	AdminToken string
}

// DefaultConfig returns the listener defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:         ":8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		MaxBodyBytes:    8 << 20,
	}
}

// Options wires the server's collaborators.
type Options struct {
	Config   *Config
	Pipeline *pipeline.Pipeline

	// Verifier extracts the principal from bearer tokens. Nil means
	// every caller is anonymous.
	Verifier *identity.Verifier

	// Limiter applies the gateway-wide per-client rate limit. Nil
	// disables entry-point limiting.
	Limiter ratelimit.Limiter
	Limit   ratelimit.Limit

	// Breakers backs the admin read/reset endpoints.
	Breakers *circuitbreaker.Registry

	Logger observability.Logger
}

// Server is the public HTTP front of the gateway.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	pipeline   *pipeline.Pipeline
	verifier   *identity.Verifier
	limiter    ratelimit.Limiter
	limit      ratelimit.Limit
	breakers   *circuitbreaker.Registry
	logger     observability.Logger
	config     *Config

	mu      sync.Mutex
	running bool
}

// New creates the server and registers all routes.
func New(opts Options) (*Server, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("server: pipeline is required")
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	s := &Server{
		engine:   gin.New(),
		pipeline: opts.Pipeline,
		verifier: opts.Verifier,
		limiter:  opts.Limiter,
		limit:    opts.Limit,
		breakers: opts.Breakers,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.engine.Use(s.requestID(), s.accessLog(), s.recovery(), s.observeRequests())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	if s.config.MaxBodyBytes > 0 {
		api.Use(s.bodyLimit())
	}
	if s.limiter != nil {
		api.Use(s.rateLimit())
	}
	api.Any("/:module/*path", s.handleRelay)

	if s.config.AdminToken != "" {
		admin := s.engine.Group("/admin", s.adminAuth())
		admin.GET("/breakers", s.listBreakers)
		admin.POST("/breakers/reset", s.resetAllBreakers)
		admin.POST("/breakers/:id/reset", s.resetBreaker)
	}
}

// Handler returns the HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the listener until it fails or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.httpServer = &http.Server{
		Addr:         s.config.Address,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", s.config.Address),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop drains inflight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
