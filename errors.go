package jobpoll

import (
	"errors"
	"fmt"
	"time"
)

// maxErrorBodyBytes caps the response body snippet carried inside a
// [TransportError]. Full bodies can be large and are not useful past the
// first few hundred bytes of an error page.
const maxErrorBodyBytes = 512

// ErrResultNotReady indicates a result fetch was attempted before the
// job reached [StatusCompleted].
//
// The remote service answers such requests with 409 or 425; the client
// wraps this sentinel into the returned [TransportError] so callers can
// test for the condition with [errors.Is] instead of matching status
// codes:
//
//	outcome, err := client.Result(ctx, handle)
//	if errors.Is(err, jobpoll.ErrResultNotReady) {
//	    // poll some more
//	}
var ErrResultNotReady = errors.New("job result not ready")

// TransportError reports a failed HTTP call: a network-level failure or
// a non-2xx response. It is never used for business outcomes such as a
// job finishing in [StatusFailed]; those are data, not errors.
//
// TransportError wraps its underlying cause, so [errors.Is] and
// [errors.As] see through it.
type TransportError struct {
	// Op names the logical operation that failed: "submit", "status",
	// "result", or "health".
	Op string

	// StatusCode is the HTTP status code of the response, or zero when
	// the failure happened before a response was received.
	StatusCode int

	// Body holds up to 512 bytes of the response body, for diagnostics.
	// Empty when no response was received.
	Body string

	// Err is the underlying cause, when one exists.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": transport error"
}

// Unwrap returns the underlying cause for use with [errors.Is] and
// [errors.As].
func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a poll loop exhausted its wait budget
// without observing a terminal status.
//
// A timeout is deliberately distinct from every terminal status and
// from cancellation: the job may still be running remotely, the client
// just stopped waiting for it.
type TimeoutError struct {
	// Handle identifies the job that was being polled.
	Handle string

	// Waited is how long the loop ran before giving up.
	Waited time.Duration

	// LastStatus is the most recent status observed before the budget
	// ran out. [StatusUnknown] when no status call ever succeeded.
	LastStatus Status
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s: timed out after %s (last status: %s)", e.Handle, e.Waited, e.LastStatus)
}

// bodySnippet truncates a response body for inclusion in a
// [TransportError].
func bodySnippet(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		return string(body[:maxErrorBodyBytes])
	}
	return string(body)
}
