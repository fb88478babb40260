package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/digitalis/digitalis/internal/models"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable reason code
	Message string `json:"message"`           // Human-readable message
	Details string `json:"details,omitempty"` // Host error code, when known
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	}

	// Log encoding errors but don't expose them to client
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes v as a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// Common error writers for consistency
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// StatusForError maps a service error to its HTTP status and reason code
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidCriteria):
		return http.StatusBadRequest, "invalid_criteria"
	case errors.Is(err, models.ErrInvalidParameter), errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest, "invalid_parameter"
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrNotConfigured):
		return http.StatusConflict, "not_configured"
	case errors.Is(err, models.ErrRejected):
		return http.StatusUnprocessableEntity, "rejected"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// WriteServiceError writes err as a JSON error response and returns the status used.
// The host error code of a *models.ServiceError is reported in details.
// Internal errors never expose their message.
func WriteServiceError(w http.ResponseWriter, err error) int {
	status, reason := StatusForError(err)

	if status == http.StatusInternalServerError {
		WriteInternalError(w, "internal server error")
		return status
	}

	var svcErr *models.ServiceError
	if errors.As(err, &svcErr) {
		message := svcErr.Message
		if message == "" {
			message = svcErr.Kind.Error()
		}
		WriteErrorWithDetails(w, status, reason, message, svcErr.Code)
		return status
	}

	WriteError(w, status, reason, err.Error())
	return status
}
