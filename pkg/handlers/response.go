package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/auditsource/engine/pkg/apperrors"
	"github.com/auditsource/engine/pkg/auth"
)

// ApiResponse is the envelope for all JSON responses.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Middleware wraps a handler func, e.g. auth or database scoping.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(ApiResponse{
		Success: false,
		Error:   errorCode,
		Message: message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// respondServiceError maps service-layer errors onto HTTP statuses and
// writes the error response.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status, code = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperrors.ErrPermissionDenied):
		status, code = http.StatusForbidden, "permission_denied"
	case errors.Is(err, apperrors.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrLocked):
		status, code = http.StatusLocked, "locked"
	case errors.Is(err, apperrors.ErrConsistency):
		status, code = http.StatusUnprocessableEntity, "inconsistent_state"
	default:
		logger.Error("Unhandled service error", zap.Error(err))
		status, code = http.StatusInternalServerError, "internal_error"
	}
	if writeErr := ErrorResponse(w, status, code, err.Error()); writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}

// parsePathID extracts and parses a UUID path value, writing a 400 on
// failure. The second return value reports whether parsing succeeded.
func parsePathID(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (id uuid.UUID, ok bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		if writeErr := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Invalid "+name+" format"); writeErr != nil {
			logger.Error("Failed to write error response", zap.Error(writeErr))
		}
		return uuid.Nil, false
	}
	return id, true
}

// requireActor pulls the resolved actor out of the context; absent means
// a route was wired without the auth middleware.
func requireActor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (auth.Actor, bool) {
	actor, err := auth.RequireActor(r.Context())
	if err != nil {
		logger.Error("No actor in request context", zap.Error(err))
		if writeErr := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); writeErr != nil {
			logger.Error("Failed to write error response", zap.Error(writeErr))
		}
		return auth.Actor{}, false
	}
	return actor, true
}
