package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/owlbridge/owlbridge/internal/domain/analysis"
	"github.com/owlbridge/owlbridge/pkg/lsp"
)

// Request ids of one session. They only need to be unique within a session.
const (
	HandshakeID int64 = 10
	AnalyzeID   int64 = 30
	CursorID    int64 = 40
)

// SyncMode selects how the session waits between protocol steps.
type SyncMode string

const (
	// SyncAck waits for the peer's response to the handshake and the analysis
	// trigger before sending the next message.
	SyncAck SyncMode = "ack"

	// SyncDelay sleeps a fixed delay after each of the first three messages
	// and never reads responses other than the position query's.
	SyncDelay SyncMode = "delay"
)

// DefaultWriteDelay is the pause between messages in SyncDelay mode.
const DefaultWriteDelay = 300 * time.Millisecond

// SessionState is the position of a Session in the protocol sequence.
type SessionState int

const (
	StateStart SessionState = iota
	StateHandshakeSent
	StateDocumentRegistered
	StateAnalysisTriggered
	StateAwaitingCursorResult
	StateDone
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateHandshakeSent:
		return "handshake_sent"
	case StateDocumentRegistered:
		return "document_registered"
	case StateAnalysisTriggered:
		return "analysis_triggered"
	case StateAwaitingCursorResult:
		return "awaiting_cursor_result"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SessionConfig controls the protocol details of a Session.
type SessionConfig struct {
	Builder       lsp.Builder
	Sync          SyncMode
	WriteDelay    time.Duration
	MaxFrameBytes int
}

// DefaultSessionConfig returns the ack-synchronized rustowl configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Builder:       lsp.DefaultBuilder(),
		Sync:          SyncAck,
		WriteDelay:    DefaultWriteDelay,
		MaxFrameBytes: lsp.DefaultMaxFrameBytes,
	}
}

// Session drives one analysis exchange with a started peer: handshake,
// document registration, analysis trigger, position query. A Session is used
// once and is not safe for concurrent use.
type Session struct {
	cfg    SessionConfig
	out    io.Writer
	corr   *lsp.Correlator
	state  SessionState
	logger *slog.Logger
}

// NewSession creates a session writing to the peer's stdin (out) and reading
// from its stdout (in).
func NewSession(out io.Writer, in io.Reader, cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Sync == "" {
		cfg.Sync = SyncAck
	}
	return &Session{
		cfg:    cfg,
		out:    out,
		corr:   lsp.NewCorrelator(lsp.NewDecoder(in, cfg.MaxFrameBytes), logger),
		state:  StateStart,
		logger: logger,
	}
}

// State returns the current state.
func (s *Session) State() SessionState {
	return s.state
}

// Run performs the exchange for the document at uri and returns the raw
// result of the position query. On any failure the session ends in
// StateFailed; the caller owns tearing down the peer.
func (s *Session) Run(ctx context.Context, uri, text string, pos lsp.Position) (result json.RawMessage, err error) {
	defer func() {
		if err != nil {
			s.advance(ctx, StateFailed)
		}
	}()

	if err := s.send(ctx, "initialize", func() (*jsonrpc.Request, error) {
		return s.cfg.Builder.Initialize(HandshakeID)
	}); err != nil {
		return nil, err
	}
	s.advance(ctx, StateHandshakeSent)
	if err := s.settle(ctx, HandshakeID); err != nil {
		return nil, err
	}

	if err := s.send(ctx, "didOpen", func() (*jsonrpc.Request, error) {
		return s.cfg.Builder.DidOpen(uri, text)
	}); err != nil {
		return nil, err
	}
	s.advance(ctx, StateDocumentRegistered)
	if s.cfg.Sync == SyncDelay {
		if err := s.pause(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.send(ctx, "analyze", func() (*jsonrpc.Request, error) {
		return s.cfg.Builder.Analyze(AnalyzeID)
	}); err != nil {
		return nil, err
	}
	s.advance(ctx, StateAnalysisTriggered)
	if err := s.settle(ctx, AnalyzeID); err != nil {
		return nil, err
	}

	if err := s.send(ctx, "cursor", func() (*jsonrpc.Request, error) {
		return s.cfg.Builder.Cursor(CursorID, uri, pos.Line, pos.Character)
	}); err != nil {
		return nil, err
	}
	s.advance(ctx, StateAwaitingCursorResult)

	result, err = s.corr.Result(ctx, CursorID)
	if err != nil {
		return nil, fmt.Errorf("await cursor result: %w", err)
	}
	s.advance(ctx, StateDone)
	return result, nil
}

// send builds one message and writes it as a frame.
func (s *Session) send(ctx context.Context, step string, build func() (*jsonrpc.Request, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := build()
	if err != nil {
		return fmt.Errorf("build %s: %w", step, err)
	}
	if err := lsp.WriteMessage(s.out, msg); err != nil {
		return &analysis.PeerIOError{Op: "send " + step, Err: err}
	}
	return nil
}

// settle waits for the peer to finish the step answered by id.
func (s *Session) settle(ctx context.Context, id int64) error {
	if s.cfg.Sync == SyncDelay {
		return s.pause(ctx)
	}
	if _, err := s.corr.Await(ctx, id); err != nil {
		return fmt.Errorf("await response %d: %w", id, err)
	}
	return nil
}

func (s *Session) pause(ctx context.Context) error {
	if s.cfg.WriteDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.cfg.WriteDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Session) advance(ctx context.Context, next SessionState) {
	s.logger.Debug("session state", "from", s.state.String(), "to", next.String())
	trace.SpanFromContext(ctx).AddEvent("session."+next.String(),
		trace.WithAttributes(attribute.Int("skipped_messages", s.corr.Skipped())))
	s.state = next
}
