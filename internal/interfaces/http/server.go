// Package http provides the HTTP adapter: health, status, remote commands,
// the transition table, prometheus metrics and the live event stream.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/garyjia/recordlight/internal/application/service"
	"github.com/garyjia/recordlight/internal/domain/statemachine"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// CommandRate limits remote commands per second across all clients; zero disables limiting
	CommandRate  float64
	CommandBurst int
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         8090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		CommandRate:  5,
		CommandBurst: 10,
	}
}

// HealthFunc reports overall health and per-component details
type HealthFunc func() (healthy bool, components interface{})

// Dependencies are the application services the server exposes
type Dependencies struct {
	Commands service.CommandService
	Status   service.StatusService
	Table    *statemachine.Table
	Health   HealthFunc

	// Events serves the websocket stream; the route is omitted when nil
	Events http.Handler

	Version string
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	listener   net.Listener
	router     *gin.Engine
	deps       Dependencies
	logger     Logger

	stopOnce sync.Once
	stopped  chan struct{}
	stopErr  error
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config: config,
		router: router,
		deps:    deps,
		logger:  logger,
		stopped: make(chan struct{}),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	limit := rate.Inf
	if s.config.CommandRate > 0 {
		limit = rate.Limit(s.config.CommandRate)
	}
	burst := s.config.CommandBurst
	if burst < 1 {
		burst = 1
	}
	handlers := NewHandlers(s.deps, rate.NewLimiter(limit, burst), s.logger)

	s.router.GET("/health", handlers.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	{
		api.GET("/status", handlers.GetStatus)
		api.GET("/transitions", handlers.ListTransitions)
		api.POST("/commands/:command", handlers.ExecuteCommand)
		if s.deps.Events != nil {
			api.GET("/events", gin.WrapH(s.deps.Events))
		}
	}
}

// Start binds the listener and serves until Stop or context cancellation.
// It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info("HTTP server shutdown requested")
			_ = s.Stop()
		case <-s.stopped:
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server. It is safe to call more than once.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.stopOnce.Do(func() {
		defer close(s.stopped)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err)
			s.stopErr = err
			return
		}
		s.logger.Info("HTTP server stopped")
	})
	return s.stopErr
}

// Name returns the worker name
func (s *Server) Name() string {
	return "HTTPServer"
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the configured server address
func (s *Server) Address() string {
	return net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
}

// BoundAddress returns the listening address once started, which differs from
// Address when port 0 was configured
func (s *Server) BoundAddress() string {
	if s.listener == nil {
		return s.Address()
	}
	return s.listener.Addr().String()
}
