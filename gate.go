package jobpoll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// maxUnitErrorLen caps the error description carried in a [UnitResult].
const maxUnitErrorLen = 256

// Unit is a single item-level operation to run through a [Gate].
//
// ID identifies the item in the returned [UnitResult]. Op does the
// work; it receives the gate's context and returns an opaque payload or
// an error. Op must respect context cancellation if it performs
// blocking work.
type Unit struct {
	// ID identifies the item this operation belongs to.
	ID string

	// Op performs the operation. A nil Op yields a failure result.
	Op func(ctx context.Context) (any, error)
}

// gateConfig holds mutable state during Gate construction.
type gateConfig struct {
	logger *slog.Logger
}

// GateOption configures a [Gate] during construction via [NewGate].
type GateOption func(*gateConfig) error

// WithGateLogger sets a custom [slog.Logger] for the gate.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(cfg *gateConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// Gate runs collections of independent unit operations with a bound on
// simultaneous execution.
//
// A Gate admits at most its limit of operations at any instant; as soon
// as one finishes, the next queued operation starts. No operation is
// ever dropped or skipped. Failures are isolated: an operation that
// returns an error or panics becomes a failure entry in the results,
// never an abort of its siblings.
//
// A Gate is stateless between runs and safe for concurrent use; the
// limit applies per [Gate.Run] call.
type Gate struct {
	limit  int
	logger *slog.Logger
}

// NewGate creates a [Gate] admitting at most limit concurrent
// operations.
//
// Example:
//
//	gate, err := jobpoll.NewGate(4)
//	if err != nil {
//	    return err
//	}
//	results, err := gate.Run(ctx, units)
//
// Returns an error if limit is less than 1 or an option fails
// validation.
func NewGate(limit int, opts ...GateOption) (*Gate, error) {
	if limit < 1 {
		return nil, fmt.Errorf("concurrency limit must be at least 1, got %d", limit)
	}

	cfg := &gateConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gate{limit: limit, logger: logger}, nil
}

// Limit returns the gate's concurrency bound.
func (g *Gate) Limit() int {
	return g.limit
}

// Run executes the units with at most the gate's limit in flight and
// returns one [UnitResult] per unit, in the original order.
//
// Results are reordered by original index regardless of completion
// order. An erroring or panicking unit contributes a failure entry with
// a truncated description; panics additionally log the stack with a
// correlation id. Run itself returns an error only when the context is
// cancelled: admission stops at the next opportunity, in-flight
// operations see the cancelled context, and the collected results are
// discarded rather than returned partially. A nil context is treated as
// [context.Background].
func (g *Gate) Run(ctx context.Context, units []Unit) ([]UnitResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gate run: %w", err)
	}
	if len(units) == 0 {
		return []UnitResult{}, nil
	}

	workers := g.limit
	if workers > len(units) {
		workers = len(units)
	}

	jobs := make(chan int, len(units))
	results := make([]UnitResult, len(units))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					// stop admitting units; the run reports the cancellation
					return
				}
				results[idx] = g.runUnit(ctx, units[idx])
			}
		}()
	}

	for idx := range units {
		jobs <- idx
	}
	close(jobs)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gate run: %w", err)
	}
	return results, nil
}

// runUnit executes a single unit with panic recovery.
// If the operation panics, the full stack trace is logged with a
// correlation ID and the result carries a short error referencing it.
func (g *Gate) runUnit(ctx context.Context, unit Unit) (result UnitResult) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			// log full context for debugging
			g.logger.Error("unit operation panic",
				"correlation_id", correlationID,
				"item_id", unit.ID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			result = UnitResult{
				ItemID:  unit.ID,
				Success: false,
				Error:   fmt.Sprintf("unit panic (correlation_id: %s)", correlationID),
			}
		}
	}()

	if unit.Op == nil {
		return UnitResult{ItemID: unit.ID, Success: false, Error: "unit operation is nil"}
	}

	payload, err := unit.Op(ctx)
	if err != nil {
		return UnitResult{ItemID: unit.ID, Success: false, Error: truncateError(err.Error())}
	}
	return UnitResult{ItemID: unit.ID, Success: true, Payload: payload}
}

// truncateError caps an error description at maxUnitErrorLen runes.
func truncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= maxUnitErrorLen {
		return msg
	}
	return string(runes[:maxUnitErrorLen]) + "..."
}
