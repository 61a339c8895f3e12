package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/owlbridge/owlbridge/internal/domain/analysis"
	"github.com/owlbridge/owlbridge/internal/service"
)

const metricsNamespace = "owlbridge"

// Metrics holds all Prometheus metrics for owlbridge.
// It doubles as the analysis service's TransactionObserver.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	Transactions        *prometheus.CounterVec
	TransactionDuration *prometheus.HistogramVec
	InFlightSessions    prometheus.Gauge
	CacheLookups        *prometheus.CounterVec
	RateLimited         prometheus.Counter
	AuthFailures        prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "outcome"}, // outcome=ok, an error kind, or error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		Transactions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "transactions_total",
				Help:      "Analysis transactions by outcome kind",
			},
			[]string{"kind"},
		),
		TransactionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "transaction_duration_seconds",
				Help:      "Analysis transaction duration in seconds",
				// Engine runs take seconds to minutes.
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"kind"},
		),
		InFlightSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "in_flight_sessions",
				Help:      "Number of engine sessions currently running",
			},
		),
		CacheLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups",
			},
			[]string{"result"}, // result=hit/miss
		),
		RateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
		AuthFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "auth_failures_total",
				Help:      "Requests rejected for a missing or invalid API key",
			},
		),
	}
}

// ObserveTransaction records one finished transaction.
func (m *Metrics) ObserveTransaction(kind analysis.Kind, duration time.Duration) {
	m.Transactions.WithLabelValues(string(kind)).Inc()
	m.TransactionDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

// ObserveCache records a result cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// InFlight adjusts the running session gauge.
func (m *Metrics) InFlight(delta int) {
	m.InFlightSessions.Add(float64(delta))
}

var _ service.TransactionObserver = (*Metrics)(nil)
