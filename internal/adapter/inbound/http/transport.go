package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/owlbridge/owlbridge/internal/domain/auth"
	"github.com/owlbridge/owlbridge/internal/domain/ratelimit"
	"github.com/owlbridge/owlbridge/internal/port/inbound"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:7819"

const shutdownTimeout = 10 * time.Second

// Server serves the analysis API.
type Server struct {
	analyzer      inbound.Analyzer
	server        *http.Server
	addr          string
	logger        *slog.Logger
	maxBodyBytes  int64
	registry      *prometheus.Registry
	metrics       *Metrics
	healthChecker *HealthChecker
	limiter       ratelimit.Limiter
	limit         ratelimit.Config
	keys          *auth.KeyRing

	// ready receives the bound address once the listener is open.
	ready chan string
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxBodyBytes bounds the analyze request body.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

// WithMetrics serves metrics from reg. Use it when m is shared with the
// analysis service as its observer.
func WithMetrics(reg *prometheus.Registry, m *Metrics) Option {
	return func(s *Server) {
		s.registry = reg
		s.metrics = m
	}
}

// WithHealthChecker sets the /health handler.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(s *Server) {
		s.healthChecker = hc
	}
}

// WithRateLimit enables per-IP rate limiting of the analyze endpoint.
func WithRateLimit(limiter ratelimit.Limiter, cfg ratelimit.Config) Option {
	return func(s *Server) {
		s.limiter = limiter
		s.limit = cfg
	}
}

// WithKeyRing requires an API key from keys on the analyze endpoint.
// A nil or empty ring disables authentication.
func WithKeyRing(keys *auth.KeyRing) Option {
	return func(s *Server) {
		s.keys = keys
	}
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewServer creates a Server for analyzer.
func NewServer(analyzer inbound.Analyzer, opts ...Option) *Server {
	s := &Server{
		analyzer:     analyzer,
		addr:         DefaultAddr,
		logger:       slog.Default(),
		maxBodyBytes: DefaultMaxBodyBytes,
		ready:        make(chan string, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(s.registry)
	}

	return s
}

// Metrics returns the server's metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler builds the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	analyze := analyzeHandler(s.analyzer, s.maxBodyBytes)
	if s.keys != nil && s.keys.Len() > 0 {
		analyze = APIKeyMiddleware(s.keys, s.metrics)(analyze)
	}
	if s.limiter != nil {
		analyze = RateLimitMiddleware(s.limiter, s.limit, s.metrics)(analyze)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/analyze", analyze)
	if s.healthChecker != nil {
		mux.Handle("/health", s.healthChecker.Handler())
	} else {
		mux.Handle("/health", healthHandler())
	}
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	}))

	var handler http.Handler = mux
	handler = RealIPMiddleware(handler)
	handler = RequestIDMiddleware(s.logger)(handler)
	handler = MetricsMiddleware(s.metrics)(handler)
	return handler
}

// Start listens and serves until ctx is cancelled, then shuts down gracefully.
// Blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		err := s.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case s.ready <- ln.Addr().String():
	default:
	}

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down HTTP server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// Ready returns a channel that receives the bound address once Start has
// opened its listener.
func (s *Server) Ready() <-chan string {
	return s.ready
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}
