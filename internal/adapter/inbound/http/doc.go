// Package http exposes the analysis bridge over HTTP.
//
// # Usage
//
//	server := http.NewServer(analysisService,
//	    http.WithAddr("127.0.0.1:7819"),
//	    http.WithLogger(logger),
//	    http.WithRateLimit(limiter, ratelimit.PerMinute(60)),
//	)
//	err := server.Start(ctx)
//
// # Endpoints
//
//	POST /api/analyze  - run one analysis transaction
//	GET  /health       - component health as JSON
//	GET  /metrics      - Prometheus exposition
//
// The analyze request body is
//
//	{"source": "fn main() {}", "line": 0, "character": 3}
//
// and a successful response is the engine's raw result JSON. Failures return
// {"message": "...", "kind": "..."} with a status derived from the kind:
//
//	invalid_request  400
//	unauthorized     401
//	rate_limited     429
//	frame, result,
//	peer_io          502
//	spawn            503
//	timeout          504
//
// # Middleware Chain
//
// Requests pass through middleware in this order:
//
//  1. MetricsMiddleware - request count and duration
//  2. RequestIDMiddleware - X-Request-ID and the request-scoped logger
//  3. RealIPMiddleware - client address from proxy headers
//  4. RateLimitMiddleware - per-IP GCRA limit (optional)
//  5. APIKeyMiddleware - Bearer or X-API-Key check (optional)
//  6. analyze handler
package http
