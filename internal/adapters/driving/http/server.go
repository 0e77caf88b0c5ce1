// Package http exposes the job API over HTTP using gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/imdeck/internal/core/ports/driving"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// Defaults.
const (
	DefaultMaxUploadBytes = 100 << 20
	DefaultListLimit      = 50
	shutdownTimeout       = 10 * time.Second
)

// Config holds HTTP server settings.
type Config struct {
	// Version is reported by GET /.
	Version string

	// MaxUploadBytes bounds each uploaded file (default: 100 MiB).
	MaxUploadBytes int64

	// ListLimit is the default page size of GET /jobs (default: 50).
	ListLimit int

	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// Server routes API requests to the job and deck services.
type Server struct {
	jobs   driving.JobService
	decks  driving.DeckService
	cfg    Config
	router *gin.Engine
}

// NewServer creates the API router.
func NewServer(jobs driving.JobService, decks driving.DeckService, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = DefaultListLimit
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.MaxMultipartMemory = 32 << 20
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger.Zap()))

	s := &Server{jobs: jobs, decks: decks, cfg: cfg, router: router}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.cfg.Metrics))
	}

	s.router.POST("/jobs", s.handleCreateJob)
	s.router.GET("/jobs", s.handleListJobs)
	s.router.GET("/jobs/:id", s.handleGetJob)
	s.router.GET("/download/:id", s.handleDownload)
	s.router.POST("/inspect-template", s.handleInspectTemplate)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
