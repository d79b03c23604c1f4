// Package web serves the operational HTTP endpoints of a running watcher.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/recognition"
)

// FaceService is the face index as the HTTP API manages it. The watcher
// passes its engine, so enrollments made over HTTP are seen by the running
// sessions and saved by the only process holding the index.
type FaceService interface {
	Stats() database.Stats
	Identities() []database.IdentitySummary
	Enroll(ctx context.Context, label string, images [][]byte) (recognition.EnrollResult, error)
	Rename(oldLabel, newName string) error
	Delete(label string) (int, error)
}

// Server represents the ops server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	faces      FaceService
	gatherer   prometheus.Gatherer
}

// NewServer creates an ops server listening on addr.
func NewServer(addr string, faces FaceService, gatherer prometheus.Gatherer) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:   r,
		faces:    faces,
		gatherer: gatherer,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Starting ops server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down ops server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
