package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"

	"github.com/owlbridge/owlbridge/internal/adapter/outbound/memory"
	"github.com/owlbridge/owlbridge/internal/service"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// HealthChecker verifies component health.
type HealthChecker struct {
	engineCommand string
	analysis      *service.AnalysisService
	rateLimiter   *memory.RateLimiter
	cache         *memory.ResultCache
	version       string

	lookPath func(string) (string, error)
}

// NewHealthChecker creates a HealthChecker with optional components.
// Pass nil (or "" for engineCommand) for components that aren't available.
func NewHealthChecker(
	engineCommand string,
	analysis *service.AnalysisService,
	rateLimiter *memory.RateLimiter,
	cache *memory.ResultCache,
	version string,
) *HealthChecker {
	return &HealthChecker{
		engineCommand: engineCommand,
		analysis:      analysis,
		rateLimiter:   rateLimiter,
		cache:         cache,
		version:       version,
		lookPath:      exec.LookPath,
	}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	healthy := true

	// The engine binary must be resolvable or every transaction fails with 503.
	if h.engineCommand != "" {
		if path, err := h.lookPath(h.engineCommand); err != nil {
			checks["engine"] = fmt.Sprintf("not found: %s", h.engineCommand)
			healthy = false
		} else {
			checks["engine"] = "ok: " + path
		}
	} else {
		checks["engine"] = "not configured"
	}

	if h.analysis != nil {
		inFlight, capacity := h.analysis.InFlight(), h.analysis.Capacity()
		state := "ok"
		if inFlight >= capacity {
			state = "busy"
		}
		checks["sessions"] = fmt.Sprintf("%s: %d/%d", state, inFlight, capacity)
	} else {
		checks["sessions"] = "not configured"
	}

	if h.rateLimiter != nil {
		checks["rate_limiter"] = fmt.Sprintf("ok: %d keys", h.rateLimiter.Size())
	} else {
		checks["rate_limiter"] = "not configured"
	}

	if h.cache != nil {
		hits, misses := h.cache.Stats()
		checks["result_cache"] = fmt.Sprintf("ok: %d entries, %d hits, %d misses", h.cache.Len(), hits, misses)
	} else {
		checks["result_cache"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}

// healthHandler is the fallback when no HealthChecker is configured.
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", Checks: map[string]string{}})
	})
}
