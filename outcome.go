package jobpoll

// UnitResult holds the outcome of a single item-level operation.
//
// UnitResult is always returned as data: a failing unit operation
// produces a UnitResult with Success=false and a populated Error string,
// never a raised error. This keeps one bad item from aborting the rest
// of a batch.
type UnitResult struct {
	// ItemID identifies the item this result belongs to.
	ItemID string `json:"item_id"`

	// Success reports whether the operation completed successfully.
	Success bool `json:"success"`

	// Payload carries the operation's opaque output. nil on failure or
	// when the operation produced no output.
	Payload any `json:"payload,omitempty"`

	// Error is a truncated human-readable description of the failure.
	// Empty when Success is true.
	Error string `json:"error,omitempty"`
}

// BatchOutcome holds the per-item results of a completed job.
//
// Results preserves the original submission order regardless of the
// order in which items finished. Success and failure counts are derived
// by scanning Results on demand rather than maintained incrementally,
// so they can never drift from the underlying data.
type BatchOutcome struct {
	// Results lists one entry per item, in submission order.
	Results []UnitResult `json:"results"`

	// Metadata carries service-defined batch-level data, such as
	// timings or resource usage. May be nil.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Successes returns the number of results with Success=true.
func (b *BatchOutcome) Successes() int {
	n := 0
	for _, r := range b.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Failures returns the number of results with Success=false.
func (b *BatchOutcome) Failures() int {
	return len(b.Results) - b.Successes()
}
