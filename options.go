package jobpoll

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// clientConfig holds mutable state during Client construction.
type clientConfig struct {
	timeout      time.Duration
	pollInterval time.Duration
	maxWait      time.Duration
	headers      map[string]string
	logger       *slog.Logger
	httpClient   *http.Client
	useBreaker   bool
}

// Option is a function that configures a [Client] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithTimeout], [WithPollInterval], [WithMaxWait],
// [WithHeaders], [WithLogger], [WithUserAgent], [WithHTTPClient],
// [WithCircuitBreaker].
type Option func(*clientConfig) error

// WithTimeout sets the timeout applied to each HTTP call.
//
// The timeout covers a single submit, status, result, or health call,
// not a whole poll loop; [WithMaxWait] bounds the loop. Defaults to
// 30 seconds if not specified.
//
// Example:
//
//	client, err := jobpoll.New(baseURL,
//	    jobpoll.WithTimeout(10 * time.Second),
//	)
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithPollInterval sets the delay between consecutive status calls in
// [Client.Wait].
//
// The first status call happens one interval after the wait begins, and
// each later call one interval after the previous one. Defaults to
// 5 seconds if not specified.
//
// Example:
//
//	client, err := jobpoll.New(baseURL,
//	    jobpoll.WithPollInterval(2 * time.Second),
//	)
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithMaxWait sets the wall-clock budget for a single [Client.Wait]
// call.
//
// The budget is measured from the moment the wait starts, regardless of
// how many status calls fail along the way. It must be at least the
// poll interval; [New] validates the pair after all options are
// applied. Defaults to 10 minutes if not specified.
//
// Example:
//
//	client, err := jobpoll.New(baseURL,
//	    jobpoll.WithMaxWait(5 * time.Minute),
//	)
//
// Returns an error if the duration is zero or negative.
func WithMaxWait(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d <= 0 {
			return errors.New("max wait must be positive")
		}
		cfg.maxWait = d
		return nil
	}
}

// WithHeaders adds HTTP headers sent with every call to the service.
//
// Typical uses are authorization tokens and tenant selectors. Can be
// called multiple times; later values overwrite earlier ones for the
// same key.
//
// Example:
//
//	client, err := jobpoll.New(baseURL,
//	    jobpoll.WithHeaders(map[string]string{
//	        "Authorization": "Bearer " + token,
//	    }),
//	)
func WithHeaders(headers map[string]string) Option {
	return func(cfg *clientConfig) error {
		for k, v := range headers {
			cfg.headers[k] = v
		}
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent with every call.
//
// Equivalent to passing the header through [WithHeaders]; provided
// separately because service operators commonly require an identifying
// agent string.
//
// Returns an error if the value is empty.
func WithUserAgent(ua string) Option {
	return func(cfg *clientConfig) error {
		if ua == "" {
			return errors.New("user agent cannot be empty")
		}
		cfg.headers["User-Agent"] = ua
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the client.
//
// This allows SDK consumers to control where logs are written and in
// what format. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	client, err := jobpoll.New(baseURL,
//	    jobpoll.WithLogger(logger),
//	)
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithHTTPClient supplies a custom [http.Client] for all calls.
//
// Use this to install custom transports, proxies, or TLS settings. The
// client's lifecycle stays with the caller: [Client.Close] will not
// close an injected client's connections. Per-call timeouts are still
// applied via context, so the injected client should not set a
// conflicting global timeout.
//
// Returns an error if the client is nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *clientConfig) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.httpClient = hc
		return nil
	}
}

// WithCircuitBreaker protects all calls with a circuit breaker.
//
// After repeated transport failures (3 or more calls in a 5 second
// window failing at a ratio of 0.6 or higher) the breaker opens and
// calls fail fast with a [*TransportError] wrapping
// [gobreaker.ErrOpenState] for 3 seconds before half-open probing
// resumes. Responses with 5xx status codes count as failures for the
// breaker even though they are reported to callers as ordinary non-2xx
// responses.
//
// The breaker is off by default: the poll loop already tolerates
// transient status failures, so the breaker mainly benefits workloads
// with many concurrent unit operations against a struggling service.
func WithCircuitBreaker() Option {
	return func(cfg *clientConfig) error {
		cfg.useBreaker = true
		return nil
	}
}
