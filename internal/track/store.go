package track

import "time"

// ProgressCounts mirrors a job's completion counters for storage.
type ProgressCounts struct {
	// Completed is the number of items finished so far.
	Completed int `json:"completed"`

	// Total is the total number of items in the job.
	Total int `json:"total"`
}

// JobRecord represents the latest observed state of a job in storage.
//
// JobRecord is the storage representation of a job observation,
// optimized for JSON serialization (used by the REST API and SSE). It
// is decoupled from the jobpoll package's types to allow independent
// evolution.
type JobRecord struct {
	// Handle is the job's identifier.
	Handle string `json:"handle"`

	// Status is the observed lifecycle state (e.g., "running", "completed").
	Status string `json:"status"`

	// Progress holds the observed counters, when the service reported any.
	Progress *ProgressCounts `json:"progress,omitempty"`

	// Error contains the error message if the observation failed.
	// nil indicates no error (though status may still be "failed").
	Error *string `json:"error"`

	// CheckedAt is the timestamp of the last observation.
	CheckedAt time.Time `json:"checked_at"`
}

// Store defines the interface for storing and subscribing to job
// observations.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Update stores a new job record and notifies all subscribers.
	// The record is keyed by Handle, so subsequent updates replace
	// previous values.
	Update(record JobRecord)

	// Get returns the stored record for a handle, and whether one exists.
	Get(handle string) (JobRecord, bool)

	// List returns all currently stored records, sorted by handle.
	// The returned slice is a snapshot; modifications do not affect the store.
	List() []JobRecord

	// Subscribe returns a channel that receives job updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan JobRecord

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan JobRecord)
}
