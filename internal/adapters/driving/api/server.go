// Package api exposes the catalog and search services over HTTP for
// local producers. The surface is JSON only; attachments travel
// base64-encoded inside the envelope.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/haven-labs/haven/internal/core/ports/driven"
	"github.com/haven-labs/haven/internal/core/ports/driving"
	"github.com/haven-labs/haven/internal/logger"
)

// Server serves the HTTP API.
type Server struct {
	catalog driving.CatalogService
	search  driving.SearchService
	queue   driven.ChunkQueue
	version string
}

// NewServer creates an API server over the given services. queue is
// optional and only backs the health endpoint's pending count.
func NewServer(
	catalog driving.CatalogService,
	search driving.SearchService,
	queue driven.ChunkQueue,
	version string,
) *Server {
	return &Server{
		catalog: catalog,
		search:  search,
		queue:   queue,
		version: version,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/v1/ingest/batch", s.handleIngestBatch)
	mux.HandleFunc("POST /api/v1/documents/{id}/version", s.handleVersion)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/v1/submissions/{ref}", s.handleSubmissionStatus)

	mux.HandleFunc("POST /api/v1/search", s.handleSearch)

	return s.logRequests(mux)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// logRequests is the single piece of middleware: method, path, duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
