package api

import (
	"encoding/json"
	"net/http"

	"github.com/haven-labs/haven/internal/core/domain"
)

// healthPayload reports liveness and queue depth.
type healthPayload struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	PendingChunks int    `json:"pending_chunks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := healthPayload{Status: "ok", Version: s.version}
	if s.queue != nil {
		if pending, err := s.queue.PendingCount(r.Context()); err == nil {
			payload.PendingChunks = pending
		}
	}
	jsonResponse(w, http.StatusOK, payload)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req domain.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := s.catalog.Ingest(r.Context(), &req)
	if err != nil {
		domainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	jsonResponse(w, status, result)
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []*domain.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	batch, err := s.catalog.IngestBatch(r.Context(), reqs)
	if err != nil {
		domainError(w, err)
		return
	}

	// Partial success is still a processed batch; the per-item results
	// carry the failures.
	jsonResponse(w, http.StatusOK, batch)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	var patch domain.VersionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := s.catalog.Version(r.Context(), r.PathValue("id"), &patch)
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, result)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"doc_id": r.PathValue("id")})
}

func (s *Server) handleSubmissionStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.catalog.SubmissionStatus(r.Context(), r.PathValue("ref"))
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, report)
}

// searchRequest is the POST /api/v1/search body.
type searchRequest struct {
	Query         string              `json:"query"`
	Limit         int                 `json:"limit,omitempty"`
	Offset        int                 `json:"offset,omitempty"`
	Filter        domain.SearchFilter `json:"filter,omitempty"`
	ContextWindow int                 `json:"context_window,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	resp, err := s.search.Search(r.Context(), req.Query, domain.SearchOptions{
		Limit:         req.Limit,
		Offset:        req.Offset,
		Filter:        req.Filter,
		ContextWindow: req.ContextWindow,
	})
	if err != nil {
		domainError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}
