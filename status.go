package jobpoll

// Status represents the lifecycle state of a remote job.
//
// Status is a string type that can hold one of six predefined values:
// [StatusQueued], [StatusRunning], [StatusCompleted], [StatusFailed],
// [StatusCancelled], or [StatusUnknown]. Using a string type allows for
// easy JSON serialization and human-readable logging while maintaining
// type safety through the defined constants.
type Status string

const (
	// StatusQueued indicates the job has been accepted but has not
	// started executing.
	StatusQueued Status = "queued"

	// StatusRunning indicates the job is currently executing.
	StatusRunning Status = "running"

	// StatusCompleted indicates the job finished successfully and its
	// results are available.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the job finished unsuccessfully. This is a
	// legitimate terminal outcome reported by the remote service, not a
	// transport failure.
	StatusFailed Status = "failed"

	// StatusCancelled indicates the job was cancelled on the remote side
	// before it could complete.
	StatusCancelled Status = "cancelled"

	// StatusUnknown indicates the status could not be determined.
	// This value is produced locally when a status call itself fails;
	// it is never reported by the remote service and must not be
	// confused with [StatusFailed].
	StatusUnknown Status = "unknown"
)

// String returns the string representation of the status.
// This implements the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status is a terminal state.
//
// Terminal states are [StatusCompleted], [StatusFailed], and
// [StatusCancelled]; a job in one of these states will never transition
// again, so polling can stop. [StatusUnknown] is not terminal: it means
// the most recent status call failed, not that the job has ended.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ParseStatus maps a raw status string from the remote service onto a
// [Status] value.
//
// Recognized values are matched exactly; anything else maps to
// [StatusUnknown] so that an unexpected remote vocabulary surfaces as an
// inconclusive poll rather than a spurious terminal state.
func ParseStatus(raw string) Status {
	switch Status(raw) {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(raw)
	default:
		return StatusUnknown
	}
}

// StatusInfo holds the outcome of a single status call for a job.
//
// StatusInfo is immutable after creation. Progress is nil when the
// remote service did not report progress counters for the job.
type StatusInfo struct {
	// Status is the job's reported lifecycle state.
	Status Status

	// Progress holds the job's completion counters, when reported.
	Progress *Progress
}
