package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bobmcallan/ghostwatch/internal/services/limit"
	"github.com/bobmcallan/ghostwatch/internal/services/portfolio"
	"github.com/bobmcallan/ghostwatch/internal/services/snapshot"
	"github.com/bobmcallan/ghostwatch/internal/storage/limitdb"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteServiceError maps a service error to a status and error code.
// Unrecognised errors are 500 without a code.
func WriteServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portfolio.ErrNoSnapshot):
		WriteErrorWithCode(w, http.StatusServiceUnavailable, err.Error(), "no_snapshot")
	case errors.Is(err, snapshot.ErrUpdateFailed):
		WriteErrorWithCode(w, http.StatusBadGateway, err.Error(), "update_failed")
	case errors.Is(err, limit.ErrInvalidKey):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_key")
	case errors.Is(err, limit.ErrInvalidValue):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_value")
	case errors.Is(err, limitdb.ErrNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "not_found")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// PathParam returns the path segment that follows prefix, up to the next
// "/". /api/limits/{key} yields {key}; an empty string means no segment.
func PathParam(r *http.Request, prefix string) string {
	rest, ok := strings.CutPrefix(r.URL.Path, prefix)
	if !ok {
		return ""
	}
	key, _, _ := strings.Cut(rest, "/")
	return key
}
