package server

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"procrecipe/internal/engine"
	"procrecipe/internal/handlers"
	applog "procrecipe/internal/log"
)

const (
	defaultRateLimit      = 50
	defaultRateLimitBurst = 100
)

// Config captures the runtime configuration for the HTTP server.
type Config struct {
	Addr           string
	RateLimit      float64
	RateLimitBurst int
	Engine         *engine.Engine
}

// Server wraps an http.Server and exposes helpers for bootstrapping a
// production-ready web service.
type Server struct {
	config      Config
	httpServer  *http.Server
	rateLimiter *rate.Limiter
}

// New builds a new Server using the provided configuration.
func New(cfg Config) (*Server, error) {
	applog.Debug(context.Background(), "initializing server",
		"addr", cfg.Addr,
		"rateLimit", cfg.RateLimit,
		"rateLimitBurst", cfg.RateLimitBurst,
	)

	if cfg.RateLimit <= 0 {
		applog.Debug(context.Background(), "rate limit not provided, using default")
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateLimitBurst <= 0 {
		applog.Debug(context.Background(), "rate limit burst not provided, using default")
		cfg.RateLimitBurst = defaultRateLimitBurst
	}

	handlers.Configure(cfg.Engine)

	applog.Debug(context.Background(), "handler dependencies configured", "engine", cfg.Engine != nil)

	s := &Server{
		config:      cfg,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.newRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	applog.Debug(context.Background(), "http handler chain prepared")

	return s, nil
}

// Start begins serving HTTP traffic using the underlying http.Server.
func (s *Server) Start() error {
	applog.Debug(context.Background(), "server starting listener", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with a timeout.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	applog.Debug(ctx, "server initiating graceful shutdown")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured HTTP handler, enabling integration tests.
func (s *Server) Handler() http.Handler {
	applog.Debug(context.Background(), "server handler requested")
	return s.httpServer.Handler
}
