package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haven-labs/haven/internal/core/domain"
)

// apiResponse wraps all responses. Clients check success first.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// jsonResponse sends a standard JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

// errorResponse sends a standard error response.
func errorResponse(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: msg})
}

// domainError maps domain errors to HTTP status codes.
func domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		errorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		errorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotActive):
		errorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSearchUnavailable):
		errorResponse(w, http.StatusServiceUnavailable, err.Error())
	default:
		errorResponse(w, http.StatusInternalServerError, err.Error())
	}
}
