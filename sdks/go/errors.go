package owlbridge

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrUnauthorized is returned when the server rejects the API key.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited is returned when the server answers 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout is returned when the engine did not answer in time.
	ErrTimeout = errors.New("analysis timeout")

	// ErrServerUnreachable is returned when the owlbridge server cannot be contacted.
	ErrServerUnreachable = errors.New("server unreachable")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Kind is the machine-readable failure class. Empty when the body was
	// not an owlbridge error document.
	Kind Kind
	// Message is the human-readable description from the server.
	Message string
	// RequestID echoes the X-Request-ID response header.
	RequestID string
	// RetryAfter is set from the Retry-After header on 429 responses.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("owlbridge [%d %s]: %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("owlbridge [%d]: %s", e.StatusCode, e.Message)
}

// Is supports errors.Is(err, ErrUnauthorized), ErrRateLimited and ErrTimeout.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrTimeout:
		return e.Kind == KindTimeout
	}
	return false
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindSpawn:
		return true
	}
	return false
}

// ServerUnreachableError is returned when the owlbridge server cannot be contacted.
type ServerUnreachableError struct {
	// Cause is the underlying transport error.
	Cause error
}

func (e *ServerUnreachableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("server unreachable: %v", e.Cause)
	}
	return "server unreachable"
}

// Unwrap returns the underlying error cause.
func (e *ServerUnreachableError) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is(err, ErrServerUnreachable).
func (e *ServerUnreachableError) Is(target error) bool {
	return target == ErrServerUnreachable
}
