package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/apperrors"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ApiResponse is the envelope for successful API responses.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

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

// writeData writes data in the success envelope.
func writeData(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeError writes an error response, logging encoding failures.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// decodeJSON reads a JSON request body into dst. It writes a 400 response
// and returns false when the body is unreadable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", logger)
		return false
	}
	return true
}

// errorStatus maps a service error to a status code and error code.
// Errors outside the taxonomy are store or transport failures.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperrors.ErrAssemblyDeployed):
		return http.StatusConflict, "assembly_deployed"
	case errors.Is(err, apperrors.ErrDuplicatePart):
		return http.StatusConflict, "duplicate_part"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperrors.ErrInvalidPermutation):
		return http.StatusBadRequest, "invalid_permutation"
	case errors.Is(err, apperrors.ErrInvalidConfig):
		return http.StatusUnprocessableEntity, "invalid_config"
	case errors.Is(err, apperrors.ErrUnsafeValue):
		return http.StatusUnprocessableEntity, "unsafe_value"
	case errors.Is(err, apperrors.ErrMalformedConfig):
		return http.StatusUnprocessableEntity, "malformed_config"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeServiceError writes the response for a failed operation. Refusals
// carry the error text; internal failures are logged and reported as
// retryable without leaking details.
func writeServiceError(w http.ResponseWriter, err error, operation string, logger *zap.Logger) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Operation failed", zap.String("operation", operation), zap.Error(err))
		message = fmt.Sprintf("Failed to %s, please retry", operation)
	}
	writeError(w, status, code, message, logger)
}
