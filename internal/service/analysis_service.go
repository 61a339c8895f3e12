// Package service contains the analysis core: the per-transaction protocol
// session and the service that owns a transaction's resources.
package service

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/owlbridge/owlbridge/internal/ctxkey"
	"github.com/owlbridge/owlbridge/internal/domain/analysis"
	"github.com/owlbridge/owlbridge/internal/port/inbound"
	"github.com/owlbridge/owlbridge/internal/port/outbound"
	"github.com/owlbridge/owlbridge/pkg/lsp"
)

const (
	// DefaultTimeout bounds one transaction.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxConcurrent is the number of peers allowed to run at once.
	DefaultMaxConcurrent = 4

	tracerName = "github.com/owlbridge/owlbridge/internal/service"
)

// loggerFromContext retrieves the enriched logger from context.
// Uses the same key as HTTP middleware for request_id enrichment.
// Returns nil if no logger is in context, allowing caller to fall back.
func loggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return nil
}

// TransactionObserver receives the outcome of every transaction.
type TransactionObserver interface {
	ObserveTransaction(kind analysis.Kind, duration time.Duration)
	ObserveCache(hit bool)
	InFlight(delta int)
}

// AnalysisService runs analysis transactions. Each transaction gets its own
// document and peer process; both are released on every exit path.
type AnalysisService struct {
	peers     outbound.PeerFactory
	workspace outbound.Workspace
	session   SessionConfig
	logger    *slog.Logger

	timeout        time.Duration
	maxSourceBytes int
	slots          chan struct{}
	cache          outbound.ResultCache
	observer       TransactionObserver
	tracer         trace.Tracer
}

// Option configures an AnalysisService.
type Option func(*AnalysisService)

// WithSessionConfig sets the protocol configuration of every session.
func WithSessionConfig(cfg SessionConfig) Option {
	return func(s *AnalysisService) { s.session = cfg }
}

// WithTimeout sets the per-transaction timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *AnalysisService) { s.timeout = d }
}

// WithMaxConcurrent bounds the number of concurrent transactions.
func WithMaxConcurrent(n int) Option {
	return func(s *AnalysisService) {
		if n > 0 {
			s.slots = make(chan struct{}, n)
		}
	}
}

// WithMaxSourceBytes bounds the submitted source size.
func WithMaxSourceBytes(n int) Option {
	return func(s *AnalysisService) { s.maxSourceBytes = n }
}

// WithResultCache enables result caching.
func WithResultCache(c outbound.ResultCache) Option {
	return func(s *AnalysisService) { s.cache = c }
}

// WithObserver reports transaction outcomes to o.
func WithObserver(o TransactionObserver) Option {
	return func(s *AnalysisService) { s.observer = o }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *AnalysisService) { s.tracer = t }
}

// NewAnalysisService creates a service launching peers from peers and
// writing documents into workspace.
func NewAnalysisService(peers outbound.PeerFactory, workspace outbound.Workspace, logger *slog.Logger, opts ...Option) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AnalysisService{
		peers:          peers,
		workspace:      workspace,
		session:        DefaultSessionConfig(),
		logger:         logger,
		timeout:        DefaultTimeout,
		maxSourceBytes: analysis.DefaultMaxSourceBytes,
		slots:          make(chan struct{}, DefaultMaxConcurrent),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// Analyze runs one transaction and returns the peer's raw result.
func (s *AnalysisService) Analyze(ctx context.Context, req analysis.Request) (json.RawMessage, error) {
	logger := loggerFromContext(ctx)
	if logger == nil {
		logger = s.logger
	}

	if err := req.Validate(s.maxSourceBytes); err != nil {
		return nil, err
	}

	var key uint64
	if s.cache != nil {
		key = s.cacheKey(req)
		if result, ok := s.cache.Get(key); ok {
			s.observeCache(true)
			logger.Debug("analysis served from cache", "line", req.Line, "character", req.Character)
			return result, nil
		}
		s.observeCache(false)
	}

	ctx, span := s.tracer.Start(ctx, "analysis.transaction", trace.WithAttributes(
		attribute.Int("source.bytes", len(req.Source)),
		attribute.Int64("position.line", int64(req.Line)),
		attribute.Int64("position.character", int64(req.Character)),
	))
	defer span.End()

	start := time.Now()
	result, err := s.transact(ctx, req, logger)
	elapsed := time.Since(start)

	kind := analysis.KindOf(err)
	if s.observer != nil {
		s.observer.ObserveTransaction(kind, elapsed)
	}
	span.SetAttributes(attribute.String("outcome", string(kind)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		logger.Warn("analysis failed", "kind", string(kind), "error", err, "duration", elapsed)
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	logger.Info("analysis completed", "duration", elapsed, "result_bytes", len(result))
	if s.cache != nil {
		s.cache.Put(key, result)
	}
	return result, nil
}

// transact owns the document and the peer for the lifetime of one session.
func (s *AnalysisService) transact(ctx context.Context, req analysis.Request, logger *slog.Logger) (json.RawMessage, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.acquire(ctx); err != nil {
		return nil, &analysis.TimeoutError{Err: err}
	}
	defer s.release()

	doc, err := s.workspace.Create(req.Source)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := doc.Release(); err != nil {
			logger.Warn("failed to remove document", "error", err)
		}
	}()

	peer := s.peers()
	stdin, stdout, err := peer.Start(ctx)
	if err != nil {
		return nil, &analysis.SpawnError{Command: peerCommand(peer), Err: err}
	}
	defer func() {
		if err := peer.Close(); err != nil {
			logger.Debug("peer close", "error", err)
		}
	}()

	session := NewSession(stdin, stdout, s.session, logger)
	result, err := session.Run(ctx, doc.URI(), req.Source, lsp.Position{Line: req.Line, Character: req.Character})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &analysis.TimeoutError{Err: ctxErr, Cause: err}
		}
		logger.Debug("session failed", "state", session.State().String(), "error", err)
		return nil, err
	}
	return result, nil
}

func (s *AnalysisService) acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		if s.observer != nil {
			s.observer.InFlight(1)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AnalysisService) release() {
	<-s.slots
	if s.observer != nil {
		s.observer.InFlight(-1)
	}
}

// InFlight returns the number of transactions currently holding a slot.
func (s *AnalysisService) InFlight() int {
	return len(s.slots)
}

// Capacity returns the maximum number of concurrent transactions.
func (s *AnalysisService) Capacity() int {
	return cap(s.slots)
}

func (s *AnalysisService) observeCache(hit bool) {
	if s.observer != nil {
		s.observer.ObserveCache(hit)
	}
}

// cacheKey digests everything that influences the peer's answer.
func (s *AnalysisService) cacheKey(req analysis.Request) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(s.session.Builder.LanguageID)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(s.session.Builder.CursorMethod)
	_, _ = h.Write([]byte{0})

	var pos [8]byte
	binary.BigEndian.PutUint32(pos[:4], req.Line)
	binary.BigEndian.PutUint32(pos[4:], req.Character)
	_, _ = h.Write(pos[:])

	_, _ = h.WriteString(req.Source)
	return h.Sum64()
}

// peerCommand names the peer's executable for error messages when the
// adapter exposes it.
func peerCommand(p outbound.Peer) string {
	if named, ok := p.(interface{ Command() string }); ok {
		return named.Command()
	}
	return "peer"
}

// Compile-time check that AnalysisService implements the inbound port.
var _ inbound.Analyzer = (*AnalysisService)(nil)
