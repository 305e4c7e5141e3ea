// Package smartsheet provides an HTTP client for the Smartsheet 2.0 API
// with automatic retry, OAuth token management, and error classification.
package smartsheet

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, smartsheet.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("smartsheet: bad request")
	ErrUnauthorized = errors.New("smartsheet: unauthorized")
	ErrForbidden    = errors.New("smartsheet: forbidden")
	ErrNotFound     = errors.New("smartsheet: not found")
	ErrConflict     = errors.New("smartsheet: conflict")
	ErrThrottled    = errors.New("smartsheet: rate limited")
	ErrServerError  = errors.New("smartsheet: server error")
)

// ErrNotAuthorized is returned when no usable credential exists in the
// configured store. The user must run the login flow.
var ErrNotAuthorized = errors.New("smartsheet: not authorized (run login)")

// APIError wraps a sentinel error with the HTTP status code, the Smartsheet
// error code, and the API error message body for debugging.
type APIError struct {
	StatusCode int
	ErrorCode  int // Smartsheet-specific error code from the response body
	RefID      string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.RefID != "" {
		return fmt.Sprintf("smartsheet: HTTP %d (errorCode %d, refId %s): %s",
			e.StatusCode, e.ErrorCode, e.RefID, e.Message)
	}

	return fmt.Sprintf("smartsheet: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
