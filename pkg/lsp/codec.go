package lsp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// codeInternalError is the JSON-RPC 2.0 "internal error" code.
const codeInternalError = -32603

// Kind classifies an inbound message.
type Kind int

const (
	// KindRequest is a peer-initiated call carrying an id.
	KindRequest Kind = iota
	// KindNotification is a peer-initiated message with no id.
	KindNotification
	// KindResult is a response carrying a result member.
	KindResult
	// KindError is a response carrying an error member.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResult:
		return "result"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Inbound is one decoded message read from the peer.
//
// Exactly the fields relevant to Kind are populated: Method and Params for
// requests and notifications, Result for results, Err for errors. ID is the
// zero jsonrpc.ID for notifications.
type Inbound struct {
	Kind   Kind
	ID     jsonrpc.ID
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Err    *jsonrpc.Error
}

// IsResponse reports whether the message answers a request.
func (m *Inbound) IsResponse() bool {
	return m.Kind == KindResult || m.Kind == KindError
}

// NumericID returns the message id as an int64 when it is numeric.
func (m *Inbound) NumericID() (int64, bool) {
	return numericID(m.ID)
}

func numericID(id jsonrpc.ID) (int64, bool) {
	switch v := id.Raw().(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// DecodeInbound decodes a frame body into an Inbound. A body that is valid JSON
// but not a JSON-RPC 2.0 message yields a *FrameError with ErrInvalidMessage.
func DecodeInbound(body []byte) (*Inbound, error) {
	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		return nil, frameError(ErrInvalidMessage, err)
	}

	switch m := msg.(type) {
	case *jsonrpc.Request:
		in := &Inbound{ID: m.ID, Method: m.Method, Params: m.Params}
		if m.IsCall() {
			in.Kind = KindRequest
		} else {
			in.Kind = KindNotification
		}
		return in, nil

	case *jsonrpc.Response:
		if !m.ID.IsValid() {
			return nil, frameError(ErrInvalidMessage, errors.New("response without id"))
		}
		if m.Error != nil {
			var wireErr *jsonrpc.Error
			if !errors.As(m.Error, &wireErr) {
				wireErr = &jsonrpc.Error{Code: codeInternalError, Message: m.Error.Error()}
			}
			return &Inbound{Kind: KindError, ID: m.ID, Err: wireErr}, nil
		}
		return &Inbound{Kind: KindResult, ID: m.ID, Result: m.Result}, nil

	default:
		return nil, frameError(ErrInvalidMessage, fmt.Errorf("unexpected message type %T", msg))
	}
}

// EncodeMessage serializes msg to its JSON-RPC wire form (unframed).
func EncodeMessage(msg jsonrpc.Message) ([]byte, error) {
	return jsonrpc.EncodeMessage(msg)
}

// WriteMessage serializes msg and writes it to w as one frame.
func WriteMessage(w io.Writer, msg jsonrpc.Message) error {
	body, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return WriteFrame(w, body)
}
