package http

import (
	"net/http"
	"time"

	"github.com/owlbridge/owlbridge/internal/domain/analysis"
)

// unmeteredPaths are scraped or polled often enough to drown the API series.
var unmeteredPaths = map[string]bool{
	"/metrics": true,
	"/health":  true,
}

// MetricsMiddleware records request duration by method and a request count
// by method and outcome. The outcome is the error kind reported through
// writeError, "ok" for successful responses, or "error" for failures that
// carry no kind (unknown routes, wrong method).
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unmeteredPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &outcomeRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			metrics.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
			metrics.RequestsTotal.WithLabelValues(r.Method, rec.outcome()).Inc()
		})
	}
}

// kindReporter is implemented by writers that want to know which error kind
// a response carried.
type kindReporter interface {
	reportKind(kind analysis.Kind)
}

// outcomeRecorder captures the status code and the error kind of a response.
type outcomeRecorder struct {
	http.ResponseWriter
	status int
	kind   analysis.Kind
}

func (r *outcomeRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *outcomeRecorder) reportKind(kind analysis.Kind) {
	r.kind = kind
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *outcomeRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *outcomeRecorder) outcome() string {
	if r.kind != "" {
		return string(r.kind)
	}
	if r.status >= 200 && r.status < 400 {
		return string(analysis.KindOK)
	}
	return "error"
}
