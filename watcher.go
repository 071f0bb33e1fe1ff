package jobpoll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Update is one observation of a tracked job, emitted by [Watcher].
//
// When the underlying status call failed, Err is set and Status is
// [StatusUnknown]; the watcher keeps tracking the handle.
type Update struct {
	// Handle identifies the observed job.
	Handle string

	// Status is the observed lifecycle state.
	Status Status

	// Progress holds the observed counters, when the service reported
	// any.
	Progress *Progress

	// Err is the status call's error, if it failed.
	Err error

	// CheckedAt is the timestamp when the observation was made.
	CheckedAt time.Time
}

// Watcher tracks a set of job handles until every one of them reaches a
// terminal state.
//
// Watcher polls all handles at the client's poll interval with a
// bounded number of concurrent status calls, and emits an [Update] per
// observation on the channel returned by [Watcher.Updates]. Handles
// that reach a terminal state are no longer polled; once all handles
// are terminal the watcher stops on its own and closes the channel.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Watcher struct {
	client         *Client
	handles        []string
	maxConcurrency int
	updates        chan Update
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once

	// handles that reached a terminal state and left the polling set
	terminal map[string]bool
}

// NewWatcher creates a [Watcher] tracking the given handles through
// client.
//
// The watcher polls at the client's configured poll interval. At least
// one handle is required and handles must be unique. The watcher must
// be started with [Watcher.Start] and stopped with [Watcher.Stop];
// updates are available via [Watcher.Updates].
//
// Returns an error if client is nil, no handles are given, a handle is
// empty, or a handle repeats.
func NewWatcher(client *Client, handles []string, opts ...WatcherOption) (*Watcher, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if len(handles) == 0 {
		return nil, errors.New("at least one handle is required")
	}

	seen := make(map[string]bool, len(handles))
	for _, h := range handles {
		if h == "" {
			return nil, errors.New("job handle cannot be empty")
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate job handle: %q", h)
		}
		seen[h] = true
	}

	cfg := &watcherConfig{
		maxConcurrency: defaultWatchConcurrency,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = client.logger
	}

	return &Watcher{
		client:         client,
		handles:        append([]string(nil), handles...),
		maxConcurrency: cfg.maxConcurrency,
		updates:        make(chan Update, len(handles)),
		logger:         logger,
		terminal:       make(map[string]bool, len(handles)),
	}, nil
}

// Updates returns a receive-only channel that emits [Update] values.
//
// The channel is closed when the watcher stops, either via
// [Watcher.Stop] or on its own once every handle is terminal. Consumers
// should read from this channel until it is closed to receive all
// observations.
func (w *Watcher) Updates() <-chan Update {
	return w.updates
}

// Start begins the watch loop in a background goroutine.
//
// Start is non-blocking and returns immediately. The watcher will:
//  1. Poll all handles immediately
//  2. Re-poll the non-terminal handles at the client's poll interval
//  3. Stop on its own once every handle is terminal
//  4. Continue until [Watcher.Stop] is called or the context is cancelled
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return
	}
	w.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	watchCtx := w.ctx // capture under lock to avoid race
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer w.closeOnce.Do(func() { close(w.updates) })

		w.logger.Info("watcher started",
			"handle_count", len(w.handles),
			"interval", w.client.PollInterval().String(),
		)

		w.pollPending(watchCtx)
		if w.allTerminal() {
			w.logger.Info("watcher finished", "handle_count", len(w.handles))
			return
		}

		ticker := time.NewTicker(w.client.PollInterval())
		defer ticker.Stop()

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				w.pollPending(watchCtx)
				if w.allTerminal() {
					w.logger.Info("watcher finished", "handle_count", len(w.handles))
					return
				}
			}
		}
	}()
}

// Stop halts the watcher and waits for all goroutines to complete.
//
// Stop cancels the watcher's context and blocks until the watch loop
// exits, all in-flight status calls complete, and the updates channel
// is closed. Stop is idempotent and safe to call multiple times.
// Calling Stop before Start is a safe no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		if w.cancel != nil {
			w.cancel()
		}
	}
	w.mu.Unlock()

	w.wg.Wait()

	// ensure channel is closed even if Start() was never called
	w.closeOnce.Do(func() { close(w.updates) })
}

// pollPending checks every handle that has not yet reached a terminal
// state, with at most maxConcurrency status calls in flight.
func (w *Watcher) pollPending(ctx context.Context) {
	w.mu.Lock()
	pending := make([]string, 0, len(w.handles))
	for _, h := range w.handles {
		if !w.terminal[h] {
			pending = append(pending, h)
		}
	}
	w.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	workers := w.maxConcurrency
	if workers > len(pending) {
		workers = len(pending)
	}

	jobs := make(chan string, len(pending))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for handle := range jobs {
				update := w.check(ctx, handle)
				select {
				case w.updates <- update:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for _, h := range pending {
		jobs <- h
	}
	close(jobs)

	wg.Wait()
}

// check performs one status call and records a terminal observation.
func (w *Watcher) check(ctx context.Context, handle string) Update {
	info, err := w.client.Status(ctx, handle)

	update := Update{
		Handle:    handle,
		Status:    info.Status,
		Progress:  info.Progress,
		Err:       err,
		CheckedAt: time.Now(),
	}

	if err != nil {
		w.logger.Warn("watch poll failed", "handle", handle, "error", err)
		return update
	}

	if info.Status.Terminal() {
		w.mu.Lock()
		w.terminal[handle] = true
		w.mu.Unlock()
	}
	return update
}

// allTerminal reports whether every tracked handle has reached a
// terminal state.
func (w *Watcher) allTerminal() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.terminal) == len(w.handles)
}
