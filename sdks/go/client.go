package owlbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultServerAddr = "http://127.0.0.1:7819"
	defaultTimeout    = 90 * time.Second

	// maxErrorBody caps how much of a non-2xx body is read.
	maxErrorBody = 64 << 10
)

// Client talks to an owlbridge server. It is safe for concurrent use.
type Client struct {
	serverAddr string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. It reads OWLBRIDGE_SERVER_ADDR,
// OWLBRIDGE_API_KEY and OWLBRIDGE_TIMEOUT by default; options override them.
func NewClient(opts ...Option) *Client {
	c := &Client{
		serverAddr: envOrDefault("OWLBRIDGE_SERVER_ADDR", defaultServerAddr),
		apiKey:     os.Getenv("OWLBRIDGE_API_KEY"),
		timeout:    parseDurationEnv("OWLBRIDGE_TIMEOUT", defaultTimeout),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
		}
	}
	if !strings.Contains(c.serverAddr, "://") {
		c.serverAddr = "http://" + c.serverAddr
	}

	return c
}

// Analyze runs one analysis and returns the engine's result verbatim.
//
// Errors are *APIError for server-side failures and *ServerUnreachableError
// when the request never got a response.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	for attempt := 0; ; attempt++ {
		var result Result
		err := c.doRequest(ctx, http.MethodPost, "/api/analyze", body, &result)
		if err == nil {
			return result, nil
		}

		var apiErr *APIError
		if attempt >= c.maxRetries || !errors.As(err, &apiErr) || apiErr.Kind != KindRateLimited {
			return nil, err
		}

		wait := apiErr.RetryAfter
		if wait <= 0 {
			wait = time.Second
		}
		c.logger.Debug("rate limited, retrying", "attempt", attempt+1, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Health fetches GET /health. An unhealthy server answers 503 with a
// regular health body, which is returned without error.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	err := c.doRequest(ctx, http.MethodGet, "/health", nil, &h)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable && h.Status != "" {
		return &h, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// doRequest performs an HTTP request against the server. On a non-2xx
// response it still decodes the body into result when possible, so callers
// can inspect documents such as the 503 health body.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, result any) error {
	url := strings.TrimRight(c.serverAddr, "/") + path

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ServerUnreachableError{Cause: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		if result != nil {
			_ = json.Unmarshal(respBody, result)
		}
		return newAPIError(httpResp, respBody)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// newAPIError builds an APIError from a non-2xx response. Bodies that are
// not owlbridge error documents keep their text as the message.
func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-ID"),
	}

	var doc struct {
		Message string `json:"message"`
		Kind    Kind   `json:"kind"`
	}
	if err := json.Unmarshal(body, &doc); err == nil && doc.Message != "" {
		apiErr.Message = doc.Message
		apiErr.Kind = doc.Kind
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}

	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}

// Helper functions for env var parsing.

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func parseDurationEnv(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	// Try parsing as seconds (integer).
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultVal
}
