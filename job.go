package jobpoll

import (
	"errors"
	"fmt"
)

// Priority indicates how the remote service should schedule a job
// relative to its other work.
//
// Priority is a closed two-value enumeration: [PriorityNormal] and
// [PriorityHigh]. The zero value is treated as [PriorityNormal] at
// submission time.
type Priority string

const (
	// PriorityNormal is the default scheduling class.
	PriorityNormal Priority = "normal"

	// PriorityHigh requests expedited scheduling.
	PriorityHigh Priority = "high"
)

// String returns the string representation of the priority.
// This implements the fmt.Stringer interface.
func (p Priority) String() string {
	return string(p)
}

// valid reports whether p is one of the defined priority values.
func (p Priority) valid() bool {
	return p == PriorityNormal || p == PriorityHigh
}

// JobRequest describes a job to submit to the remote service.
//
// Payload is an opaque mapping handed to the remote service as the job
// body; the client never interprets it. Mode selects the remote
// processing mode and is an open string set defined by the service.
// Priority defaults to [PriorityNormal] when left empty.
//
// A JobRequest is snapshotted by [Client.Submit] when it is serialized;
// mutating the Payload map after submission has no effect on the
// submitted job.
type JobRequest struct {
	// Payload is the opaque job body. Values must be JSON-serializable.
	Payload map[string]any

	// Priority is the scheduling class. Empty means [PriorityNormal].
	Priority Priority

	// Mode selects the remote processing mode, e.g. "extract" or
	// "search". The set of valid modes is owned by the remote service.
	Mode string
}

// Validate checks that the request can be submitted.
//
// A request must carry a non-empty mode and, when a priority is set, one
// of the defined [Priority] values. An empty payload is allowed; some
// modes take no parameters.
func (r JobRequest) Validate() error {
	if r.Mode == "" {
		return errors.New("job request mode cannot be empty")
	}
	if r.Priority != "" && !r.Priority.valid() {
		return fmt.Errorf("invalid priority %q (must be %q or %q)", r.Priority, PriorityNormal, PriorityHigh)
	}
	return nil
}

// Progress holds a job's completion counters as reported by the remote
// service.
//
// Both counters are non-negative and Completed never exceeds Total.
// Progress is optional on status responses; a nil *Progress means the
// service reported no counters for the job.
type Progress struct {
	// Completed is the number of items finished so far.
	Completed int `json:"completed"`

	// Total is the total number of items in the job.
	Total int `json:"total"`
}

// validate checks the counter invariants on a decoded progress pair.
func (p Progress) validate() error {
	if p.Completed < 0 || p.Total < 0 {
		return fmt.Errorf("progress counters cannot be negative (completed=%d total=%d)", p.Completed, p.Total)
	}
	if p.Completed > p.Total {
		return fmt.Errorf("progress completed %d exceeds total %d", p.Completed, p.Total)
	}
	return nil
}
