// Package web exposes the HTTP API: photo uploads, group timelines and
// meeting listings. Authorization is the deployment's concern; the API
// trusts the uploader header and group ids it is handed.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/photo-timeline/internal/web/handlers"
	"github.com/kozaktomas/photo-timeline/internal/web/middleware"
)

// Deps holds the service dependencies the handlers need.
type Deps struct {
	Ingestor handlers.Ingestor
	Photos   interface {
		handlers.PhotoReader
		handlers.PhotoLister
	}
	Meetings handlers.MeetingLister
	Logger   *slog.Logger
}

// Server represents the web server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new web server.
func NewServer(port int, host string, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		logger: deps.Logger,
	}

	// Set up middleware stack.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS())

	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  2 * time.Minute, // Uploads can be slow on bad links.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
