package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/owlbridge/owlbridge/pkg/lsp"
)

// Kind names the class of failure that ended a transaction. Kinds are stable
// strings exposed to clients in error bodies and used as metric labels.
type Kind string

const (
	KindOK             Kind = "ok"
	KindFrame          Kind = "frame"
	KindResult         Kind = "result"
	KindSpawn          Kind = "spawn"
	KindTimeout        Kind = "timeout"
	KindInvalidRequest Kind = "invalid_request"
	KindPeerIO         Kind = "peer_io"
	KindInternal       Kind = "internal"
)

// InvalidRequestError rejects client input before any peer is started.
// Message is safe to return to the client.
type InvalidRequestError struct {
	Message string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Message
}

// NewInvalidRequestError creates an InvalidRequestError.
func NewInvalidRequestError(message string) *InvalidRequestError {
	return &InvalidRequestError{Message: message}
}

// SpawnError reports that the analysis peer process could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TimeoutError reports that the transaction context expired or was cancelled
// while the session was still running. Err is the context error; Cause is the
// failure the session observed when the peer was torn down, if any.
type TimeoutError struct {
	Err   error
	Cause error
}

func (e *TimeoutError) Error() string {
	if errors.Is(e.Err, context.Canceled) {
		return "analysis cancelled"
	}
	return "analysis timed out"
}

func (e *TimeoutError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// PeerIOError reports a failed write to the peer's input stream, usually
// because the process exited early.
type PeerIOError struct {
	Op  string
	Err error
}

func (e *PeerIOError) Error() string {
	return fmt.Sprintf("peer %s: %v", e.Op, e.Err)
}

func (e *PeerIOError) Unwrap() error { return e.Err }

// KindOf classifies err. A nil error is KindOK. TimeoutError is checked first
// because it wraps whatever failure the teardown caused.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}

	var (
		timeoutErr *TimeoutError
		invalidErr *InvalidRequestError
		spawnErr   *SpawnError
		frameErr   *lsp.FrameError
		resultErr  *lsp.ResultError
		ioErr      *PeerIOError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &invalidErr):
		return KindInvalidRequest
	case errors.As(err, &spawnErr):
		return KindSpawn
	case errors.As(err, &resultErr):
		return KindResult
	case errors.As(err, &frameErr):
		return KindFrame
	case errors.As(err, &ioErr):
		return KindPeerIO
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	default:
		return KindInternal
	}
}
