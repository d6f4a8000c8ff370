package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/codequest-dev/codequest/internal/domain"
)

// APIError represents a structured API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// NewAPIError creates a new API error.
func NewAPIError(code string, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// WithCause wraps an underlying error.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// ErrorResponse is the JSON structure for error responses.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// WriteError writes an error response to the response writer.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *APIError) {
	logAttrs := []any{
		"code", apiErr.Code,
		"message", apiErr.Message,
		"status", statusCode,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if apiErr.cause != nil {
		logAttrs = append(logAttrs, "cause", apiErr.cause.Error())
	}
	if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
		logAttrs = append(logAttrs, "request_id", requestID)
	}

	if statusCode >= 500 {
		slog.Error("api error", logAttrs...)
	} else if statusCode >= 400 {
		slog.Warn("api error", logAttrs...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: apiErr})
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// Helper functions for common responses
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, NewAPIError("BAD_REQUEST", message))
}

func NotFound(w http.ResponseWriter, r *http.Request, resource string) {
	WriteError(w, r, http.StatusNotFound, NewAPIError("NOT_FOUND", resource+" not found"))
}

func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusUnauthorized, NewAPIError("UNAUTHORIZED", message))
}

func Forbidden(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusForbidden, NewAPIError("FORBIDDEN", message))
}

func Conflict(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusConflict, NewAPIError("CONFLICT", message))
}

func InternalError(w http.ResponseWriter, r *http.Request, message string, cause error) {
	WriteError(w, r, http.StatusInternalServerError, NewAPIError("INTERNAL_ERROR", message).WithCause(cause))
}

// WriteDomainError maps domain sentinel errors onto HTTP responses so every
// handler reports the same failure the same way.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrPuzzleNotFound),
		errors.Is(err, domain.ErrCategoryNotFound),
		errors.Is(err, domain.ErrAchievementNotFound),
		errors.Is(err, domain.ErrProgressNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, NewAPIError("NOT_FOUND", err.Error()))

	case errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrConflict):
		WriteError(w, r, http.StatusConflict, NewAPIError("CONFLICT", err.Error()))

	case errors.Is(err, domain.ErrInvalidPassword),
		errors.Is(err, domain.ErrTokenNotFound),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, r, http.StatusUnauthorized, NewAPIError("UNAUTHORIZED", err.Error()))

	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrPuzzleLocked):
		WriteError(w, r, http.StatusForbidden, NewAPIError("FORBIDDEN", err.Error()))

	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrEmptyCode),
		errors.Is(err, domain.ErrUnsupportedLanguage):
		WriteError(w, r, http.StatusBadRequest, NewAPIError("BAD_REQUEST", err.Error()))

	case errors.Is(err, domain.ErrExecutionUnavailable):
		WriteError(w, r, http.StatusServiceUnavailable, NewAPIError("EXECUTION_UNAVAILABLE", domain.ErrExecutionUnavailable.Error()))

	default:
		InternalError(w, r, "internal server error", err)
	}
}
