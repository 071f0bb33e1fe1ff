package track

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe
// mechanism for real-time updates. Records are keyed by job handle,
// with new observations replacing previous values.
//
// Subscribers receive updates via buffered channels (buffer size 100).
// Updates are sent non-blocking; if a subscriber's buffer is full, the
// update is dropped for that subscriber to prevent blocking the entire
// system.
type MemoryStore struct {
	mu          sync.RWMutex
	records     map[string]JobRecord
	subscribers map[chan JobRecord]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[string]JobRecord),
		subscribers: make(map[chan JobRecord]struct{}),
	}
}

// Update stores a [JobRecord] and notifies all subscribers.
//
// The record is stored using its Handle as the key. Subsequent updates
// with the same handle replace the previous value. All subscribers
// receive the update (unless their buffer is full).
func (m *MemoryStore) Update(record JobRecord) {
	m.mu.Lock()
	m.records[record.Handle] = record
	m.mu.Unlock()

	m.notifySubscribers(record)
}

// Get returns the stored record for a handle, and whether one exists.
func (m *MemoryStore) Get(handle string) (JobRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[handle]
	return record, ok
}

// List returns a snapshot of all currently stored records, sorted by
// handle for deterministic output.
//
// The returned slice is a copy; modifications do not affect the store.
func (m *MemoryStore) List() []JobRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]JobRecord, 0, len(m.records))
	for _, record := range m.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Handle < records[j].Handle
	})
	return records
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan JobRecord {
	ch := make(chan JobRecord, 100)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan JobRecord) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the record to all active subscribers.
//
// This is non-blocking: if a subscriber's channel buffer is full, the message
// is dropped for that subscriber rather than blocking the update path.
func (m *MemoryStore) notifySubscribers(record JobRecord) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- record:
		default:
			// subscriber is slow, drop the message
		}
	}
}
