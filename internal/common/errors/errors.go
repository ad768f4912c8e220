// Package errors provides standardized error handling for the reservations API.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes. Values are the
// lowercase wire codes the admin panel and public API expect.
type ErrorCode string

const (
	ErrCodeInvalidReservationPayload ErrorCode = "invalid_reservation_payload"
	ErrCodeInvalidReservationStatus  ErrorCode = "invalid_reservation_status"
	ErrCodeReservationNotFound       ErrorCode = "reservation_not_found"

	ErrCodeEmptyNotificationChannels  ErrorCode = "empty_notification_channels"
	ErrCodeInvalidNotificationChannel ErrorCode = "invalid_notification_channel"
	ErrCodeNotificationNotFound       ErrorCode = "notification_not_found"
	ErrCodeNotificationNotRetryable   ErrorCode = "notification_not_retryable"

	ErrCodeEmailDeliveryDisabled    ErrorCode = "email_delivery_disabled"
	ErrCodeWhatsAppDeliveryDisabled ErrorCode = "whatsapp_delivery_disabled"
	ErrCodeProviderConfigMissing    ErrorCode = "provider_config_missing"
	ErrCodeProviderRejected         ErrorCode = "provider_rejected"
	ErrCodeProviderRateLimited      ErrorCode = "provider_rate_limited"
	ErrCodeProviderUnavailable      ErrorCode = "provider_unavailable"
	ErrCodeProviderTimeout          ErrorCode = "provider_timeout"

	ErrCodeDatabaseQueryFailed ErrorCode = "database_query_failed"
	ErrCodeUnauthorized        ErrorCode = "unauthorized"
	ErrCodeInternal            ErrorCode = "internal_error"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidReservationPayloadError creates a non-retryable validation error.
func NewInvalidReservationPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidReservationPayload,
		Message:   "Reservation payload failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidReservationStatusError creates a non-retryable validation error.
func NewInvalidReservationStatusError(status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidReservationStatus,
		Message:   "Unknown reservation status",
		Details:   fmt.Sprintf("status: %s", status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewReservationNotFoundError creates a non-retryable not-found error.
func NewReservationNotFoundError(reservationID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeReservationNotFound,
		Message:   "Reservation not found",
		Details:   fmt.Sprintf("reservationId: %d", reservationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyNotificationChannelsError creates a non-retryable enqueue error.
func NewEmptyNotificationChannelsError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyNotificationChannels,
		Message:   "Notification channel list is empty",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidNotificationChannelError creates a non-retryable enqueue error.
func NewInvalidNotificationChannelError(channel string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidNotificationChannel,
		Message:   "Unknown notification channel",
		Details:   fmt.Sprintf("channel: %s", channel),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationNotFoundError creates a non-retryable not-found error.
func NewNotificationNotFoundError(notificationID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotFound,
		Message:   "Notification not found",
		Details:   fmt.Sprintf("notificationId: %d", notificationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationNotRetryableError signals a retry on a row that is not failed.
func NewNotificationNotRetryableError(notificationID int64, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationNotRetryable,
		Message:   "Only failed notifications can be retried",
		Details:   fmt.Sprintf("notificationId: %d, status: %s", notificationID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelDisabledError creates a non-retryable delivery error for a disabled channel.
func NewChannelDisabledError(channel string) *StandardError {
	code := ErrCodeEmailDeliveryDisabled
	if channel == "whatsapp" {
		code = ErrCodeWhatsAppDeliveryDisabled
	}
	return &StandardError{
		Code:      code,
		Message:   "Delivery is disabled for this channel",
		Details:   fmt.Sprintf("channel: %s", channel),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderConfigMissingError creates a non-retryable delivery error.
// Missing credentials degrade the single send, not the process.
func NewProviderConfigMissingError(provider, detail string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderConfigMissing,
		Message:   "Provider configuration is incomplete",
		Details:   fmt.Sprintf("provider: %s, %s", provider, detail),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderRejectedError creates a non-retryable delivery error for a permanent 4xx.
func NewProviderRejectedError(provider string, status int, detail string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderRejected,
		Message:   "Provider rejected the message",
		Details:   fmt.Sprintf("provider: %s, status: %d, %s", provider, status, detail),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderRateLimitedError creates a retryable delivery error for HTTP 429.
func NewProviderRateLimitedError(provider, detail string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderRateLimited,
		Message:   "Provider rate limit hit",
		Details:   fmt.Sprintf("provider: %s, %s", provider, detail),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderUnavailableError creates a retryable delivery error for a 5xx or transport failure.
func NewProviderUnavailableError(provider, detail string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderUnavailable,
		Message:   "Provider is unavailable",
		Details:   fmt.Sprintf("provider: %s, %s", provider, detail),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderTimeoutError creates a retryable delivery error for an upstream timeout.
func NewProviderTimeoutError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderTimeout,
		Message:   "Provider call timed out",
		Details:   fmt.Sprintf("provider: %s", provider),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseQueryFailedError creates a retryable persistence error.
func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Database query failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthorizedError creates a non-retryable auth error.
func NewUnauthorizedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Missing or invalid admin token",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// IsRetryable reports whether err carries a retryable classification.
// Unknown errors default to non-retryable.
func IsRetryable(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Retryable
	}
	return false
}

// CodeOf extracts the standardized code from err, or internal_error.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}
