package lsp

import (
	"errors"
	"fmt"
)

// Frame failure reasons. A *FrameError always unwraps to exactly one of these,
// so callers can match with errors.Is.
var (
	ErrMalformedHeader = errors.New("malformed frame header")
	ErrMissingLength   = errors.New("missing Content-Length header")
	ErrInvalidLength   = errors.New("invalid Content-Length value")
	ErrFrameTooLarge   = errors.New("frame exceeds size limit")
	ErrTruncated       = errors.New("stream ended before frame was complete")
	ErrInvalidBody     = errors.New("frame body is not valid JSON")
	ErrInvalidMessage  = errors.New("frame body is not a JSON-RPC 2.0 message")
)

// FrameError reports a failure to extract a message from the inbound stream.
// Reason is one of the Err* sentinels above; Err carries the underlying cause
// (read error, strconv error, decode error) when there is one.
type FrameError struct {
	Reason error
	Err    error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame error: %v: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("frame error: %v", e.Reason)
}

// Unwrap exposes both the reason and the cause to errors.Is / errors.As.
func (e *FrameError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

func frameError(reason, cause error) *FrameError {
	return &FrameError{Reason: reason, Err: cause}
}

// ResultError reports that the response correlated to an awaited request could
// not be used: either the peer answered with a JSON-RPC error object, or the
// response carried no result member at all.
type ResultError struct {
	// ID is the request id the response was correlated to.
	ID int64

	// PeerReported is true when the peer sent an error object.
	PeerReported bool

	// Code and Message mirror the peer's error object when PeerReported is set.
	Code    int64
	Message string
}

func (e *ResultError) Error() string {
	if e.PeerReported {
		return fmt.Sprintf("result error: peer answered request %d with error %d: %s", e.ID, e.Code, e.Message)
	}
	return fmt.Sprintf("result error: response to request %d carried no result", e.ID)
}
