package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/owlbridge/owlbridge/internal/domain/analysis"
	"github.com/owlbridge/owlbridge/pkg/lsp"
)

// mockAnalyzer implements inbound.Analyzer with a func field.
type mockAnalyzer struct {
	analyzeFunc func(ctx context.Context, req analysis.Request) (json.RawMessage, error)
	calls       int
	last        analysis.Request
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req analysis.Request) (json.RawMessage, error) {
	m.calls++
	m.last = req
	if m.analyzeFunc != nil {
		return m.analyzeFunc(ctx, req)
	}
	return json.RawMessage(`{"decorations":[]}`), nil
}

func failingAnalyzer(err error) *mockAnalyzer {
	return &mockAnalyzer{analyzeFunc: func(context.Context, analysis.Request) (json.RawMessage, error) {
		return nil, err
	}}
}

func postAnalyze(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestAnalyzeHandler_Success(t *testing.T) {
	analyzer := &mockAnalyzer{}
	h := analyzeHandler(analyzer, 0)

	rec := postAnalyze(t, h, `{"source":"fn main() {}","line":0,"character":3}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != `{"decorations":[]}` {
		t.Errorf("body = %s, want raw result", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	want := analysis.Request{Source: "fn main() {}", Line: 0, Character: 3}
	if analyzer.last != want {
		t.Errorf("analyzer got %+v, want %+v", analyzer.last, want)
	}
}

func TestAnalyzeHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   analysis.Kind
	}{
		{
			name:       "invalid request",
			err:        analysis.NewInvalidRequestError("source is empty"),
			wantStatus: http.StatusBadRequest,
			wantKind:   analysis.KindInvalidRequest,
		},
		{
			name:       "frame error",
			err:        &lsp.FrameError{Reason: lsp.ErrTruncated, Err: io.ErrUnexpectedEOF},
			wantStatus: http.StatusBadGateway,
			wantKind:   analysis.KindFrame,
		},
		{
			name:       "result error",
			err:        &lsp.ResultError{ID: 40, PeerReported: true, Code: -32603, Message: "boom"},
			wantStatus: http.StatusBadGateway,
			wantKind:   analysis.KindResult,
		},
		{
			name:       "peer io error",
			err:        &analysis.PeerIOError{Op: "send initialize", Err: io.ErrClosedPipe},
			wantStatus: http.StatusBadGateway,
			wantKind:   analysis.KindPeerIO,
		},
		{
			name:       "spawn error",
			err:        &analysis.SpawnError{Command: "rustowl", Err: errors.New("executable file not found")},
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   analysis.KindSpawn,
		},
		{
			name:       "timeout",
			err:        &analysis.TimeoutError{Err: context.DeadlineExceeded},
			wantStatus: http.StatusGatewayTimeout,
			wantKind:   analysis.KindTimeout,
		},
		{
			name:       "internal",
			err:        errors.New("create document /tmp/secret/abc.rs: permission denied"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   analysis.KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := analyzeHandler(failingAnalyzer(tt.err), 0)
			rec := postAnalyze(t, h, `{"source":"fn main() {}","line":0,"character":3}`)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decodeError(t, rec)
			if resp.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp.Kind, tt.wantKind)
			}
			if resp.Message == "" {
				t.Error("message is empty")
			}
			if strings.Contains(resp.Message, "/tmp") {
				t.Errorf("message leaks a path: %q", resp.Message)
			}
		})
	}
}

func TestAnalyzeHandler_InvalidMessageIsClientSafe(t *testing.T) {
	h := analyzeHandler(failingAnalyzer(analysis.NewInvalidRequestError("line 7 is past the end of the source")), 0)
	rec := postAnalyze(t, h, `{"source":"x","line":7,"character":0}`)

	resp := decodeError(t, rec)
	if resp.Message != "line 7 is past the end of the source" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestAnalyzeHandler_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{name: "GET", method: http.MethodGet, wantStatus: http.StatusMethodNotAllowed},
		{name: "malformed JSON", method: http.MethodPost, contentType: "application/json", body: `{"source":`, wantStatus: http.StatusBadRequest},
		{name: "wrong field type", method: http.MethodPost, contentType: "application/json", body: `{"source":"x","line":"zero"}`, wantStatus: http.StatusBadRequest},
		{name: "wrong content type", method: http.MethodPost, contentType: "text/plain", body: `{"source":"x"}`, wantStatus: http.StatusBadRequest},
		{name: "too large", method: http.MethodPost, contentType: "application/json", body: `{"source":"` + strings.Repeat("a", 200) + `"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &mockAnalyzer{}
			h := analyzeHandler(analyzer, 128)

			req := httptest.NewRequest(tt.method, "/api/analyze", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if analyzer.calls != 0 {
				t.Errorf("analyzer called %d times, want 0", analyzer.calls)
			}
		})
	}
}

func TestAnalyzeHandler_ContentTypeWithCharset(t *testing.T) {
	h := analyzeHandler(&mockAnalyzer{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"source":"x"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestStatusForKind(t *testing.T) {
	tests := map[analysis.Kind]int{
		analysis.KindInvalidRequest: 400,
		KindUnauthorized:            401,
		KindRateLimited:             429,
		analysis.KindFrame:          502,
		analysis.KindResult:         502,
		analysis.KindPeerIO:         502,
		analysis.KindSpawn:          503,
		analysis.KindTimeout:        504,
		analysis.KindInternal:       500,
	}
	for kind, want := range tests {
		if got := statusForKind(kind); got != want {
			t.Errorf("statusForKind(%q) = %d, want %d", kind, got, want)
		}
	}
}
