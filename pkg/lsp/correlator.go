package lsp

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Correlator reads inbound messages until one answers a given request id.
// Messages that do not match are discarded. It is not safe for concurrent use.
type Correlator struct {
	dec     *Decoder
	logger  *slog.Logger
	skipped int
}

// NewCorrelator returns a Correlator reading from dec.
func NewCorrelator(dec *Decoder, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{dec: dec, logger: logger}
}

// Await blocks until a response with the given id arrives and returns it.
//
// Notifications, peer-initiated requests and responses to other ids are
// skipped. A response carrying an error object is returned together with a
// *ResultError. Frame and decode failures are returned as *FrameError.
//
// ctx is checked between frames only; a blocked read is released by closing
// the underlying stream.
func (c *Correlator) Await(ctx context.Context, id int64) (*Inbound, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := c.dec.Next()
		if err != nil {
			return nil, err
		}
		msg, err := DecodeInbound(body)
		if err != nil {
			return nil, err
		}

		got, numeric := msg.NumericID()
		if !msg.IsResponse() || !numeric || got != id {
			c.skipped++
			c.logger.Debug("skipping uncorrelated message",
				"kind", msg.Kind.String(),
				"method", msg.Method,
				"id", msg.ID.Raw(),
				"awaiting", id,
			)
			continue
		}

		if msg.Kind == KindError {
			return msg, &ResultError{
				ID:           id,
				PeerReported: true,
				Code:         msg.Err.Code,
				Message:      msg.Err.Message,
			}
		}
		return msg, nil
	}
}

// Result awaits id and returns its result member verbatim, including a JSON
// null. Only a response without a result member is a *ResultError.
func (c *Correlator) Result(ctx context.Context, id int64) (json.RawMessage, error) {
	msg, err := c.Await(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(msg.Result) == 0 {
		return nil, &ResultError{ID: id}
	}
	return msg.Result, nil
}

// Skipped returns how many messages were discarded so far.
func (c *Correlator) Skipped() int {
	return c.skipped
}
