package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion when many
// unit operations are in flight against the same host
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// Response holds the result of an HTTP request made by [Client].
//
// Response captures all relevant information from an HTTP request
// including the body (limited to 1MB), status code, latency, and any
// error that occurred. Errors are carried in the Error field rather
// than returned separately; the caller decides which failures matter
// for its operation.
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code (e.g., 200, 404, 500).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any error that occurred during the request.
	// nil indicates the request completed (though the status code may
	// still indicate an error).
	Error error
}

// Client is an HTTP client wrapper for JSON request/response exchanges
// against a job service.
//
// Client uses per-request timeouts via context rather than a global
// timeout. Response bodies are limited to 1MB to prevent memory issues.
// It is safe for concurrent use; no per-call state is retained between
// requests.
type Client struct {
	httpClient *http.Client
	ownsPool   bool
	logger     *slog.Logger
}

// New creates a [Client].
//
// When httpClient is nil, a client with pooled connections is built:
//   - MaxIdleConns: 100 total idle connections
//   - MaxIdleConnsPerHost: 10 idle connections per host
//   - MaxConnsPerHost: 10 concurrent connections per host
//   - IdleConnTimeout: 60 seconds before closing idle connections
//
// A non-nil httpClient is used as-is, letting callers supply custom
// transports. Timeouts are applied per request via the context in
// [Client.Do], not as a global client timeout. When logger is nil,
// [slog.Default] is used.
func New(httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient != nil {
		return &Client{httpClient: httpClient, logger: logger}
	}
	return &Client{
		httpClient: &http.Client{
			// no default timeout - per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
				DisableKeepAlives:   false, // explicitly enable connection reuse
			},
		},
		ownsPool: true,
		logger:   logger,
	}
}

// Do performs an HTTP request and returns a structured [Response].
//
// If payload is non-nil it is JSON-encoded as the request body and the
// Content-Type header is set to application/json. If method is empty,
// GET is used. The timeout is applied via context cancellation. Each
// call is tagged with a generated request id that appears in the debug
// log line alongside status and latency.
//
// Do always returns a Response; errors are captured in the Error field
// rather than returned separately.
func (c *Client) Do(ctx context.Context, method, url string, payload any, headers map[string]string, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqID := uuid.NewString()
	start := time.Now()

	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return Response{
				Latency: time.Since(start),
				Error:   fmt.Errorf("failed to encode request body: %w", err),
			}
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("http request failed",
			"req_id", reqID,
			"method", method,
			"url", url,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// read body with size limit
	limitedReader := io.LimitReader(resp.Body, maxResponseBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	c.logger.Debug("http request complete",
		"req_id", reqID,
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
		Error:      nil,
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Close only acts when the client built its own pool; an injected
// http.Client is left untouched since its lifecycle belongs to the
// caller. Safe to call multiple times. After Close, the client remains
// usable but new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil || !c.ownsPool {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
