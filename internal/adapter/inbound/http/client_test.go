package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	owlbridge "github.com/owlbridge/owlbridge/sdks/go"

	"github.com/owlbridge/owlbridge/internal/adapter/outbound/memory"
	"github.com/owlbridge/owlbridge/internal/domain/analysis"
	"github.com/owlbridge/owlbridge/internal/domain/ratelimit"
)

// The Go client must understand every error document the server emits.
func TestClientAgainstServer(t *testing.T) {
	limiter := memory.NewRateLimiter(0, 0)
	defer limiter.Stop()

	analyzer := &mockAnalyzer{}
	s := NewServer(analyzer,
		WithLogger(quietLogger()),
		WithKeyRing(newTestKeyRing(t)),
		WithRateLimit(limiter, ratelimit.Config{Rate: 3, Burst: 3, Period: time.Hour}),
	)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx := context.Background()
	client := owlbridge.NewClient(owlbridge.WithServerAddr(ts.URL), owlbridge.WithAPIKey("secret-ci-key"))

	result, err := client.Analyze(ctx, owlbridge.AnalyzeRequest{Source: "fn main() {}", Character: 3})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if string(result) != `{"decorations":[]}` {
		t.Errorf("result = %s", result)
	}
	if analyzer.last.Source != "fn main() {}" || analyzer.last.Character != 3 {
		t.Errorf("server saw %+v", analyzer.last)
	}

	analyzer.analyzeFunc = func(context.Context, analysis.Request) (json.RawMessage, error) {
		return nil, &analysis.TimeoutError{Err: context.DeadlineExceeded}
	}
	_, err = client.Analyze(ctx, owlbridge.AnalyzeRequest{Source: "x"})
	if !errors.Is(err, owlbridge.ErrTimeout) {
		t.Errorf("timeout: got %v", err)
	}

	_, err = owlbridge.NewClient(owlbridge.WithServerAddr(ts.URL), owlbridge.WithAPIKey("wrong")).
		Analyze(ctx, owlbridge.AnalyzeRequest{Source: "x"})
	if !errors.Is(err, owlbridge.ErrUnauthorized) {
		t.Errorf("unauthorized: got %v", err)
	}

	// Rate limiting runs before auth, so the three requests above spent the burst.
	_, err = client.Analyze(ctx, owlbridge.AnalyzeRequest{Source: "x"})
	var apiErr *owlbridge.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != owlbridge.KindRateLimited || apiErr.RetryAfter <= 0 {
		t.Errorf("rate limited: got %v", err)
	}

	h, err := client.Health(ctx)
	if err != nil || !h.Healthy() {
		t.Errorf("Health() = %+v, %v", h, err)
	}
}
