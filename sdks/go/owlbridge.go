// Package owlbridge is a Go client for the owlbridge analysis HTTP API.
//
// It posts Rust source to a running owlbridge server and returns the raw
// analysis result the engine produced. It uses only net/http and has no
// external dependencies.
//
// Quick start:
//
//	// Set OWLBRIDGE_SERVER_ADDR and OWLBRIDGE_API_KEY env vars, then:
//	client := owlbridge.NewClient()
//
//	result, err := client.Analyze(ctx, owlbridge.AnalyzeRequest{
//	    Source:    src,
//	    Line:      3,
//	    Character: 8,
//	})
//	if err != nil {
//	    var apiErr *owlbridge.APIError
//	    if errors.As(err, &apiErr) {
//	        fmt.Printf("analysis failed (%s): %s\n", apiErr.Kind, apiErr.Message)
//	    }
//	}
package owlbridge

import "encoding/json"

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	// Source is the full text of the Rust file.
	Source string `json:"source"`

	// Line is the zero-based cursor line.
	Line uint32 `json:"line"`

	// Character is the zero-based cursor character within Line.
	Character uint32 `json:"character"`
}

// Result is the engine's response payload, passed through verbatim.
type Result = json.RawMessage

// Health is the body returned by GET /health.
type Health struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}

// Healthy reports whether the server considers itself able to serve requests.
func (h *Health) Healthy() bool {
	return h.Status == "healthy"
}

// Kind classifies a failed analysis. Values mirror the "kind" field of the
// server's error body.
type Kind string

const (
	KindFrame          Kind = "frame"
	KindResult         Kind = "result"
	KindSpawn          Kind = "spawn"
	KindTimeout        Kind = "timeout"
	KindInvalidRequest Kind = "invalid_request"
	KindPeerIO         Kind = "peer_io"
	KindInternal       Kind = "internal"
	KindRateLimited    Kind = "rate_limited"
	KindUnauthorized   Kind = "unauthorized"
)
