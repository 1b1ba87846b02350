package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/foresee-health/outbreaklens-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps domain errors onto HTTP responses. Unrecognized
// errors become a 500 with the action-specific message and a log entry;
// domain errors carry their own message.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger, action string) {
	var status int
	var code string
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrEmailConflict):
		status, code = http.StatusConflict, "email_conflict"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperrors.ErrInvalidConfidence):
		status, code = http.StatusBadRequest, "invalid_confidence"
	case errors.Is(err, apperrors.ErrValidation):
		status, code = http.StatusBadRequest, "validation_failed"
	default:
		logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		if werr := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to "+action); werr != nil {
			logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	if werr := ErrorResponse(w, status, code, err.Error()); werr != nil {
		logger.Error("Failed to write error response", zap.Error(werr))
	}
}
