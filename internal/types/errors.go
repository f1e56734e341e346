package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode identifies a failure class. The prefix carries the HTTP status
// (validation_/webhook_ → 400, not_found_ → 404, upstream_ → 502,
// internal_ → 500) so new codes map without touching the API layer.
type ErrorCode string

const (
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidField  ErrorCode = "validation_invalid_field"
	ErrCodeValidationInvalidTicker ErrorCode = "validation_invalid_ticker"

	// A bad webhook signature is a malformed request, not an auth failure;
	// the caller is the payment provider, not a user session.
	ErrCodeWebhookSignatureMissing ErrorCode = "webhook_signature_missing"
	ErrCodeWebhookSignatureInvalid ErrorCode = "webhook_signature_invalid"
	ErrCodeWebhookPayloadInvalid   ErrorCode = "webhook_payload_invalid"

	// Quota exhaustion is the one 403 in the service.
	ErrCodeLimitReportsExceeded ErrorCode = "limit_reports_exceeded"

	ErrCodeNotFoundSubscription ErrorCode = "not_found_subscription"
	ErrCodeNotFoundReport       ErrorCode = "not_found_report"
	ErrCodeNotFoundCompany      ErrorCode = "not_found_company"

	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"

	ErrCodeUpstreamModel       ErrorCode = "upstream_model_unavailable"
	ErrCodeUpstreamStripe      ErrorCode = "upstream_stripe_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_service_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus derives the response status from the code's prefix. Unknown
// codes fall back to 500.
func (c ErrorCode) HTTPStatus() int {
	if c == ErrCodeLimitReportsExceeded {
		return http.StatusForbidden
	}
	switch {
	case strings.HasPrefix(string(c), "validation_"), strings.HasPrefix(string(c), "webhook_"):
		return http.StatusBadRequest
	case strings.HasPrefix(string(c), "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(string(c), "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the error type that crosses layer boundaries. Message and
// Details are safe for clients; Err is the internal cause and never leaves
// the server.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status implied by the error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewAppErrorWithDetails additionally attaches structured, client-visible
// details (field maps, quota counters).
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, Err: err, Details: details}
}

// IsNotFound reports whether err carries a not_found_* code. The
// lookup-or-create path uses it to tell "row absent" from storage failure.
func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && strings.HasPrefix(string(appErr.Code), "not_found_")
}
