package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/owlbridge/owlbridge/internal/domain/analysis"
	"github.com/owlbridge/owlbridge/internal/port/inbound"
)

// DefaultMaxBodyBytes is the maximum allowed request body size (1 MiB).
const DefaultMaxBodyBytes = 1 << 20

// Error kinds produced by the HTTP layer itself, alongside analysis.Kind.
const (
	KindRateLimited  analysis.Kind = "rate_limited"
	KindUnauthorized analysis.Kind = "unauthorized"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string        `json:"message"`
	Kind    analysis.Kind `json:"kind"`
}

// statusForKind maps an error kind to its HTTP status.
func statusForKind(kind analysis.Kind) int {
	switch kind {
	case analysis.KindInvalidRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case analysis.KindFrame, analysis.KindResult, analysis.KindPeerIO:
		return http.StatusBadGateway
	case analysis.KindSpawn:
		return http.StatusServiceUnavailable
	case analysis.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the message shown to the client for err. Internal
// failures never expose details such as document paths.
func clientMessage(kind analysis.Kind, err error) string {
	var invalid *analysis.InvalidRequestError
	switch {
	case errors.As(err, &invalid):
		return invalid.Message
	case kind == analysis.KindFrame:
		return "analysis engine sent a malformed response"
	case kind == analysis.KindResult:
		return err.Error()
	case kind == analysis.KindPeerIO:
		return "analysis engine stopped accepting input"
	case kind == analysis.KindSpawn:
		return "analysis engine could not be started"
	case kind == analysis.KindTimeout:
		return err.Error()
	default:
		return "internal error"
	}
}

// writeError writes a JSON error body with the status for kind.
func writeError(w http.ResponseWriter, kind analysis.Kind, message string) {
	if kr, ok := w.(kindReporter); ok {
		kr.reportKind(kind)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(kind))
	_ = json.NewEncoder(w).Encode(ErrorResponse{Message: message, Kind: kind})
}

// analyzeHandler serves POST /api/analyze.
func analyzeHandler(analyzer inbound.Analyzer, maxBodyBytes int64) http.Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := LoggerFromContext(r.Context())

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		if ct := r.Header.Get("Content-Type"); ct != "" {
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil || mediaType != "application/json" {
				writeError(w, analysis.KindInvalidRequest, "content type must be application/json")
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		defer func() { _ = r.Body.Close() }()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(w, analysis.KindInvalidRequest, "request body too large")
				return
			}
			writeError(w, analysis.KindInvalidRequest, "failed to read request body")
			return
		}

		var req analysis.Request
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, analysis.KindInvalidRequest, "request body must be a JSON object with source, line and character")
			return
		}

		result, err := analyzer.Analyze(r.Context(), req)
		if err != nil {
			kind := analysis.KindOf(err)
			if kind == analysis.KindInternal {
				logger.Error("analysis failed", "error", err)
			}
			writeError(w, kind, clientMessage(kind, err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result)
	})
}
