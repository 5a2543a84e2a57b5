package vendorapi

import (
	"errors"
	"fmt"
)

// Gateway errors.
var (
	// ErrCircuitOpen is returned without a network attempt while the
	// circuit breaker cooldown is in effect. Retryable by a future
	// caller once the cooldown elapses, never retried internally.
	ErrCircuitOpen = errors.New("vendor circuit open")

	// ErrInvalidInput is returned for bad request parameters before any
	// network call is made. Never retried.
	ErrInvalidInput = errors.New("invalid input")
)

// APIError is the normalized vendor failure. Callers branch on its fields
// instead of parsing vendor-specific payload shapes.
type APIError struct {
	Message    string
	HTTPStatus int    // 0 for network-level failures
	VendorCode string // vendor error code when the response carried one
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("vendor API error (status %d): %s", e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("vendor API error: %s", e.Message)
}

// IsRetryable reports whether err is a vendor failure worth retrying:
// network-level errors and 5xx responses. Client errors (4xx) are not
// transient and are never retried.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

// networkError wraps a transport-level failure (includes timeouts).
func networkError(err error) *APIError {
	return &APIError{
		Message:   err.Error(),
		Retryable: true,
	}
}

// statusError builds an APIError from an HTTP status and vendor payload.
func statusError(status int, vendorCode, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", status)
	}
	return &APIError{
		Message:    message,
		HTTPStatus: status,
		VendorCode: vendorCode,
		Retryable:  status >= 500 || status == 429,
	}
}
