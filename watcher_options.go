package jobpoll

import (
	"errors"
	"log/slog"
)

const defaultWatchConcurrency = 10

// watcherConfig holds mutable state during Watcher construction.
type watcherConfig struct {
	maxConcurrency int
	logger         *slog.Logger
}

// WatcherOption configures a [Watcher] during construction via
// [NewWatcher].
type WatcherOption func(*watcherConfig) error

// WithWatchConcurrency sets the maximum number of concurrent status
// calls per polling cycle.
//
// Use this to avoid overwhelming the service when tracking many
// handles. Defaults to 10 if not specified.
//
// Returns an error if the value is zero or negative.
func WithWatchConcurrency(n int) WatcherOption {
	return func(cfg *watcherConfig) error {
		if n <= 0 {
			return errors.New("watch concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithWatcherLogger sets a custom [slog.Logger] for the watcher.
//
// If not specified, the client's logger is used.
//
// Returns an error if the logger is nil.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(cfg *watcherConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}
