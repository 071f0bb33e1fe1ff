package jobpoll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/stillriver/jobpoll/internal/httpx"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 5 * time.Second
	defaultMaxWait      = 10 * time.Minute
)

// errServerStatus marks a 5xx response for circuit breaker accounting.
// It never escapes do; callers see the response and judge the status
// code themselves.
var errServerStatus = errors.New("server error status")

// Client talks to an asynchronous job service: submit a job, poll its
// status, and fetch its results once completed.
//
// Client is created with [New] and configured through functional
// options. It is safe for concurrent use; many goroutines can submit
// and poll jobs through one Client, sharing its connection pool. The
// typical lifecycle is:
//
//	client, err := jobpoll.New("https://jobs.example.com",
//	    jobpoll.WithTimeout(10*time.Second),
//	    jobpoll.WithPollInterval(2*time.Second),
//	)
//	if err != nil {
//	    slog.Error("failed to create client", "error", err)
//	    os.Exit(1)
//	}
//	defer client.Close()
//
//	result, err := client.Run(ctx, jobpoll.JobRequest{
//	    Mode:    "extract",
//	    Payload: map[string]any{"companies": []string{"acme"}},
//	})
//
// The caller controls cancellation via the context passed to each
// operation; cancelling it stops the work at the next network call or
// sleep.
type Client struct {
	baseURL      string
	timeout      time.Duration
	pollInterval time.Duration
	maxWait      time.Duration
	headers      map[string]string
	logger       *slog.Logger

	http    *httpx.Client
	breaker *gobreaker.CircuitBreaker

	closeOnce sync.Once
}

// New creates a [Client] for the job service at baseURL.
//
// The baseURL must include a scheme (http:// or https://); a trailing
// slash is tolerated. Options have sensible defaults:
//   - Per-call timeout: 30 seconds
//   - Poll interval: 5 seconds
//   - Max wait: 10 minutes
//
// Returns an error if the URL is invalid or any option fails
// validation.
//
// Example:
//
//	client, err := jobpoll.New("https://jobs.example.com",
//	    jobpoll.WithHeaders(map[string]string{"Authorization": "Bearer " + token}),
//	    jobpoll.WithMaxWait(5*time.Minute),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.New("invalid base URL: " + err.Error())
	}
	if parsed.Scheme == "" {
		return nil, errors.New("base URL must have a scheme (http:// or https://)")
	}

	cfg := &clientConfig{
		timeout:      defaultTimeout,
		pollInterval: defaultPollInterval,
		maxWait:      defaultMaxWait,
		headers:      make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.maxWait < cfg.pollInterval {
		return nil, fmt.Errorf("max wait %s must be at least the poll interval %s", cfg.maxWait, cfg.pollInterval)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		timeout:      cfg.timeout,
		pollInterval: cfg.pollInterval,
		maxWait:      cfg.maxWait,
		headers:      cfg.headers,
		logger:       logger,
		http:         httpx.New(cfg.httpClient, logger),
	}

	if cfg.useBreaker {
		c.breaker = newBreaker(parsed.Host, logger)
	}

	return c, nil
}

// Submit sends a job to the remote service and returns its handle.
//
// The request is validated locally first; an empty priority defaults to
// [PriorityNormal]. The payload is serialized at this point, so later
// mutations of the map do not affect the submitted job.
//
// The returned handle is an opaque string owned by the remote service.
// A 2xx response that carries no handle is reported as a
// [*TransportError]; submission failures are never retried here.
func (c *Client) Submit(ctx context.Context, req JobRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	body := submitRequest{
		Mode:     req.Mode,
		Priority: priority.String(),
		Payload:  req.Payload,
	}

	resp, err := c.do(ctx, "submit", http.MethodPost, "/v1/jobs", body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		return "", &TransportError{Op: "submit", StatusCode: resp.StatusCode, Body: bodySnippet(resp.Body)}
	}

	var decoded submitResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", &TransportError{
			Op:         "submit",
			StatusCode: resp.StatusCode,
			Body:       bodySnippet(resp.Body),
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	if decoded.JobID == "" {
		return "", &TransportError{
			Op:         "submit",
			StatusCode: resp.StatusCode,
			Body:       bodySnippet(resp.Body),
			Err:        errors.New("response carried no job id"),
		}
	}

	c.logger.Debug("job submitted",
		"handle", decoded.JobID,
		"mode", req.Mode,
		"priority", priority.String(),
	)
	return decoded.JobID, nil
}

// Status fetches the current lifecycle state of a job.
//
// On success the returned [StatusInfo] carries one of the five remote
// statuses plus optional progress counters. When the call itself fails
// (network failure, non-2xx response, undecodable body, or a status
// value outside the service's vocabulary) the returned status is
// [StatusUnknown] and the error describes the failure; StatusUnknown is
// always produced locally, never by the remote service.
//
// Status is read-only on the remote side: calling it any number of
// times never changes the job.
func (c *Client) Status(ctx context.Context, handle string) (StatusInfo, error) {
	unknown := StatusInfo{Status: StatusUnknown}
	if handle == "" {
		return unknown, errors.New("job handle cannot be empty")
	}

	resp, err := c.do(ctx, "status", http.MethodGet, "/v1/jobs/"+url.PathEscape(handle), nil)
	if err != nil {
		return unknown, err
	}
	if resp.StatusCode/100 != 2 {
		return unknown, &TransportError{Op: "status", StatusCode: resp.StatusCode, Body: bodySnippet(resp.Body)}
	}

	var decoded statusResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return unknown, &TransportError{
			Op:         "status",
			StatusCode: resp.StatusCode,
			Body:       bodySnippet(resp.Body),
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}

	parsed := ParseStatus(decoded.Status)
	if parsed == StatusUnknown {
		return unknown, &TransportError{
			Op:         "status",
			StatusCode: resp.StatusCode,
			Body:       bodySnippet(resp.Body),
			Err:        fmt.Errorf("unrecognized job status %q", decoded.Status),
		}
	}
	if decoded.Progress != nil {
		if err := decoded.Progress.validate(); err != nil {
			return unknown, &TransportError{
				Op:         "status",
				StatusCode: resp.StatusCode,
				Body:       bodySnippet(resp.Body),
				Err:        err,
			}
		}
	}

	return StatusInfo{Status: parsed, Progress: decoded.Progress}, nil
}

// Result fetches the per-item outcomes of a completed job.
//
// Result is only valid once the job has reached [StatusCompleted]. When
// called earlier, the remote answers 409 or 425 and the returned
// [*TransportError] wraps [ErrResultNotReady] so callers can test for
// the condition with [errors.Is]. Result never fabricates placeholder
// data.
func (c *Client) Result(ctx context.Context, handle string) (*BatchOutcome, error) {
	if handle == "" {
		return nil, errors.New("job handle cannot be empty")
	}

	resp, err := c.do(ctx, "result", http.MethodGet, "/v1/jobs/"+url.PathEscape(handle)+"/result", nil)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusTooEarly:
		return nil, &TransportError{
			Op:         "result",
			StatusCode: resp.StatusCode,
			Body:       bodySnippet(resp.Body),
			Err:        ErrResultNotReady,
		}
	case resp.StatusCode/100 != 2:
		return nil, &TransportError{Op: "result", StatusCode: resp.StatusCode, Body: bodySnippet(resp.Body)}
	}

	var outcome BatchOutcome
	if err := json.Unmarshal(resp.Body, &outcome); err != nil {
		return nil, &TransportError{
			Op:         "result",
			StatusCode: resp.StatusCode,
			Body:       bodySnippet(resp.Body),
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return &outcome, nil
}

// Health probes the service's health endpoint.
//
// Health is a pre-flight collaborator check: nil means the service
// answered 2xx. It plays no part in the submit/poll/result contract.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, "health", http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return &TransportError{Op: "health", StatusCode: resp.StatusCode, Body: bodySnippet(resp.Body)}
	}
	return nil
}

// Close releases the client's connection pool.
//
// Close is safe to call multiple times; only the first call acts.
// In-flight operations are not interrupted, and the client remains
// usable afterwards at the cost of fresh connections.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.http.Close()
	})
}

// BaseURL returns the configured service base URL without a trailing
// slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PollInterval returns the configured delay between status calls.
func (c *Client) PollInterval() time.Duration {
	return c.pollInterval
}

// MaxWait returns the configured wall-clock wait budget for [Client.Wait].
func (c *Client) MaxWait() time.Duration {
	return c.maxWait
}

// do performs one HTTP exchange against the service and reports
// network-level failures (including a rejected call while the circuit
// breaker is open) as transport errors. Status-code semantics are left
// to the calling operation.
func (c *Client) do(ctx context.Context, op, method, path string, payload any) (httpx.Response, error) {
	target := c.baseURL + path

	if c.breaker == nil {
		resp := c.http.Do(ctx, method, target, payload, c.headers, c.timeout)
		if resp.Error != nil {
			return resp, &TransportError{Op: op, Err: resp.Error}
		}
		return resp, nil
	}

	v, err := c.breaker.Execute(func() (any, error) {
		resp := c.http.Do(ctx, method, target, payload, c.headers, c.timeout)
		if resp.Error != nil {
			return resp, resp.Error
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})
	resp, _ := v.(httpx.Response)
	if err != nil && !errors.Is(err, errServerStatus) {
		if resp.Error != nil {
			return resp, &TransportError{Op: op, Err: resp.Error}
		}
		// the breaker rejected the call before it was issued
		return resp, &TransportError{Op: op, Err: err}
	}
	return resp, nil
}

// newBreaker builds the circuit breaker used by WithCircuitBreaker:
// trips when at least 3 calls in a 5 second window failed at a ratio of
// 0.6 or higher, stays open for 3 seconds, then allows up to 100
// half-open probes.
func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 100,
		Interval:    5 * time.Second,
		Timeout:     3 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"service", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

// wire types for the job service's JSON contract

type submitRequest struct {
	Mode     string         `json:"mode"`
	Priority string         `json:"priority"`
	Payload  map[string]any `json:"payload,omitempty"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	Status   string    `json:"status"`
	Progress *Progress `json:"progress,omitempty"`
}
