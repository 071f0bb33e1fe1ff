package jobpoll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WaitResult holds the outcome of waiting for a job to finish.
//
// Status is always one of the three terminal states. Outcome is non-nil
// only when Status is [StatusCompleted]; for [StatusFailed] and
// [StatusCancelled] the remote has no results to give and Outcome is
// nil. Progress carries the last counters observed during the wait,
// when the service reported any.
type WaitResult struct {
	// Handle identifies the job that was waited on.
	Handle string

	// Status is the terminal state the job reached.
	Status Status

	// Outcome holds the per-item results. Non-nil only for
	// [StatusCompleted].
	Outcome *BatchOutcome

	// Progress is the most recent progress observed, or nil if the
	// service never reported counters.
	Progress *Progress

	// Elapsed is how long the wait ran before the terminal status was
	// observed.
	Elapsed time.Duration
}

// Wait polls a job's status until it reaches a terminal state or the
// wait budget runs out.
//
// The first status call happens one poll interval after Wait begins,
// and each subsequent call one interval after the previous one. Before
// every call the elapsed wall-clock time (measured from the start of
// Wait, regardless of any failed calls in between) is checked against
// the max wait; once the budget is spent, no further calls are issued
// and Wait returns a [*TimeoutError] carrying the last observed status.
// A timeout is never reported as success.
//
// A failed status call is logged and swallowed: transient transport
// errors should not abort a long wait. The budget still applies, so a
// service that never answers produces a timeout, not an infinite loop.
//
// On the first terminal status the loop exits immediately:
//
//   - [StatusCompleted]: the job's results are fetched and returned in
//     [WaitResult.Outcome]. A failing result fetch is returned as its
//     transport error.
//   - [StatusFailed], [StatusCancelled]: returned as data in
//     [WaitResult.Status] with a nil error; a job failing remotely is a
//     legitimate outcome, not a client error.
//
// Cancelling the context stops the wait at the next sleep or network
// call and returns the context's error, wrapped so that
// [errors.Is](err, [context.Canceled]) holds. Cancellation is
// deliberately distinct from a timeout.
func (c *Client) Wait(ctx context.Context, handle string) (*WaitResult, error) {
	if handle == "" {
		return nil, errors.New("job handle cannot be empty")
	}

	start := time.Now()
	deadline := start.Add(c.maxWait)
	lastStatus := StatusUnknown
	var lastProgress *Progress

	c.logger.Debug("wait started",
		"handle", handle,
		"interval", c.pollInterval.String(),
		"max_wait", c.maxWait.String(),
	)

	for {
		// sleep one interval, but never past the deadline
		sleep := c.pollInterval
		if remaining := time.Until(deadline); remaining < sleep {
			sleep = remaining
		}
		if sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("wait for job %s: %w", handle, ctx.Err())
			case <-timer.C:
			}
		}

		// budget check before each status call
		if time.Since(start) >= c.maxWait {
			waited := time.Since(start)
			c.logger.Warn("wait budget exhausted",
				"handle", handle,
				"waited", waited.String(),
				"last_status", lastStatus.String(),
			)
			return nil, &TimeoutError{Handle: handle, Waited: waited, LastStatus: lastStatus}
		}

		info, err := c.Status(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("wait for job %s: %w", handle, ctx.Err())
			}
			// soft failure: keep polling within the budget
			c.logger.Warn("status poll failed",
				"handle", handle,
				"elapsed_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			continue
		}

		lastStatus = info.Status
		if info.Progress != nil {
			lastProgress = info.Progress
		}
		c.logger.Debug("status poll",
			"handle", handle,
			"status", info.Status.String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)

		if !info.Status.Terminal() {
			continue
		}

		result := &WaitResult{
			Handle:   handle,
			Status:   info.Status,
			Progress: lastProgress,
			Elapsed:  time.Since(start),
		}
		if info.Status != StatusCompleted {
			// failed or cancelled: the remote has no results to give
			return result, nil
		}

		outcome, err := c.Result(ctx, handle)
		if err != nil {
			return nil, err
		}
		result.Outcome = outcome
		return result, nil
	}
}

// Run submits a job and waits for it to finish.
//
// Run is shorthand for [Client.Submit] followed by [Client.Wait] on the
// returned handle; see both for the error contract. The submission is
// never retried.
func (c *Client) Run(ctx context.Context, req JobRequest) (*WaitResult, error) {
	handle, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Wait(ctx, handle)
}
