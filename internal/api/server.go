package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rish742/telematics-Dashboard/internal/cache"
	"github.com/rish742/telematics-Dashboard/internal/config"
)

// SnapshotProvider supplies normalized telemetry snapshots to the handlers
type SnapshotProvider interface {
	// FetchAndNormalize returns the current snapshot; the bool reports
	// whether it was served from cache
	FetchAndNormalize(ctx context.Context) (cache.Snapshot, bool, error)
	// Refresh invalidates the cached snapshot and fetches a fresh one
	Refresh(ctx context.Context) (cache.Snapshot, error)
}

// Server represents the API server
type Server struct {
	router     *gin.Engine
	logger     zerolog.Logger
	httpServer *http.Server
	snapshots  SnapshotProvider
	version    string
}

// NewServer creates a new API server instance
func NewServer(logger zerolog.Logger, snapshots SnapshotProvider, cfg *config.Config) *Server {
	srv := &Server{
		logger:    logger,
		snapshots: snapshots,
		version:   cfg.App.Version,
	}

	// Configure Gin
	if os.Getenv("GIN_MODE") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv.router = gin.New()
	srv.router.Use(
		gin.Recovery(),
		requestLogger(logger),
	)

	// Register routes
	srv.registerRoutes()

	// Create HTTP server
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTP.Port),
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
	}

	return srv
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting API server")

	// Start server in a separate goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for either an error or interrupt signal
	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server...")

	// Create a deadline to wait for
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	// Shutdown the server
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error during server shutdown")
		return err
	}

	s.logger.Info().Msg("Server stopped")
	return nil
}

// Router returns the underlying handler, used by in-process tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/records", s.getRecords)
		v1.GET("/summary", s.getSummary)
		v1.POST("/refresh", s.postRefresh)
	}
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.version,
	})
}

// requestLogger is a middleware that logs HTTP requests
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)

		statusCode := c.Writer.Status()
		errMsg := c.Errors.ByType(gin.ErrorTypePrivate).String()

		event := logger.Info()
		if statusCode >= 400 {
			event = logger.Error().Str("error", errMsg)
		}

		event.Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", statusCode).
			Str("ip", c.ClientIP()).
			Str("user-agent", c.Request.UserAgent()).
			Dur("latency", latency).
			Msg("Request processed")
	}
}
