package errors

import (
	"encoding/json"
	"net/http"
	"time"
)

// HTTPResponder renders application errors as JSON HTTP responses with
// standardized error handling.
type HTTPResponder struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewHTTPResponder(logger Logger) *HTTPResponder {
	return &HTTPResponder{logger: logger}
}

// WriteError normalizes err to a StandardError, logs it and writes the
// matching HTTP status plus a JSON body.
func (h *HTTPResponder) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := h.normalizeError(err)
	status := StatusFor(stdErr.Code)

	h.logger.Error("request failed", map[string]interface{}{
		"method":    r.Method,
		"path":      r.URL.Path,
		"errorCode": string(stdErr.Code),
		"message":   stdErr.Message,
		"details":   stdErr.Details,
		"retryable": stdErr.Retryable,
		"status":    status,
	})

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":    false,
		"error": string(stdErr.Code),
		"detail": func() string {
			if stdErr.Details != "" {
				return stdErr.Details
			}
			return stdErr.Message
		}(),
	})
}

// normalizeError ensures we always have a StandardError
func (h *HTTPResponder) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// StatusFor maps standardized error codes to HTTP status codes.
func StatusFor(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidReservationPayload,
		ErrCodeInvalidReservationStatus,
		ErrCodeEmptyNotificationChannels,
		ErrCodeInvalidNotificationChannel:
		return http.StatusUnprocessableEntity
	case ErrCodeReservationNotFound, ErrCodeNotificationNotFound:
		return http.StatusNotFound
	case ErrCodeNotificationNotRetryable:
		return http.StatusConflict
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
