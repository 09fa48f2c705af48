// Handler helper functions shared by every endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

const headerContentType = "Content-Type"

// writeJSON writes v as a JSON body with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set(headerContentType, "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// writeError writes {"error": message} with the given status code.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set(headerContentType, "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		http.Error(w, `{"error":"failed to encode error response"}`, http.StatusInternalServerError)
	}
}

// writeDomainError maps err onto an HTTP status and writes it.
// Client mistakes echo the error text; server-side failures get a fixed message.
func writeDomainError(w http.ResponseWriter, err error) {
	status := StatusFromError(err)
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusBadGateway:
		writeError(w, status, err.Error())
	case http.StatusGatewayTimeout:
		writeError(w, status, "upstream service timed out")
	default:
		writeError(w, status, "internal error")
	}
}

// StatusFromError maps the apperr taxonomy onto HTTP status codes.
func StatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperr.ErrDecomposition),
		errors.Is(err, apperr.ErrSchemaMismatch),
		errors.Is(err, apperr.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
