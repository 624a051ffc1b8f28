package notion

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind is the coarse classification callers switch on.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindValidation   ErrorKind = "validation_error"
	KindRateLimited  ErrorKind = "rate_limited"
	KindOther        ErrorKind = "other"
)

// APIError is a failed record store call.
type APIError struct {
	StatusCode int
	Code       string // record store error code, e.g. "object_not_found"
	Kind       ErrorKind
	Message    string

	// retryAfter is the server-advised backoff for rate_limited errors.
	retryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion: %s (%d %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("notion: %s (%d)", e.Message, e.StatusCode)
}

// KindOf classifies any error returned by a Client call.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindOther
}

// IsNotFound reports whether err is a not_found record store error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func classify(status int, code string) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || code == "unauthorized":
		return KindUnauthorized
	case status == http.StatusNotFound || code == "object_not_found":
		return KindNotFound
	case status == http.StatusBadRequest || code == "validation_error":
		return KindValidation
	case status == http.StatusTooManyRequests || code == "rate_limited":
		return KindRateLimited
	default:
		return KindOther
	}
}
