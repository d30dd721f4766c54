// Package server exposes the answering service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/rag"
)

// Service is the part of *rag.Service the API calls.
type Service interface {
	Ask(ctx context.Context, query string, history []rag.Message) rag.Reply
	Retrieve(ctx context.Context, query string, k, topN int) ([]rag.Passage, error)
}

// Options configures the router.
type Options struct {
	// Metrics, when non-nil, is mounted at /metrics.
	Metrics http.Handler
	// MaxBodyBytes bounds request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
	Logger       *charmlog.Logger
}

// Server serves the Manara HTTP API.
type Server struct {
	svc    Service
	opts   Options
	engine *gin.Engine
}

// New builds the router for svc.
func New(svc Service, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Logger == nil {
		opts.Logger = logging.Logger()
	}
	s := &Server{svc: svc, opts: opts}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(accessLog(s.opts.Logger))

	router.GET("/healthz", s.health)
	if s.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}

	api := router.Group("/api/v1")
	api.POST("/answer", s.answer)
	api.POST("/retrieve", s.retrieve)
	api.GET("/quick-actions", s.quickActions)
	return router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.opts.Logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// readBody reads the request body up to the configured limit.
func (s *Server) readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxBodyBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}
