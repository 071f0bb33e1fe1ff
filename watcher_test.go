package jobpoll

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// watchService simulates a job service whose jobs can be driven to a
// terminal state from the test.
type watchService struct {
	mu       sync.Mutex
	statuses map[string]string
	server   *httptest.Server
}

func newWatchService(t *testing.T, statuses map[string]string) *watchService {
	t.Helper()

	ws := &watchService{statuses: statuses}
	ws.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle := r.URL.Path[len("/v1/jobs/"):]

		ws.mu.Lock()
		status, ok := ws.statuses[handle]
		ws.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}))
	t.Cleanup(ws.server.Close)
	return ws
}

func (ws *watchService) set(handle, status string) {
	ws.mu.Lock()
	ws.statuses[handle] = status
	ws.mu.Unlock()
}

func newWatchClient(t *testing.T, url string) *Client {
	t.Helper()

	client, err := New(url, WithPollInterval(30*time.Millisecond), WithMaxWait(10*time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestNewWatcher_Valid(t *testing.T) {
	client := newWatchClient(t, "http://jobs.test")

	w, err := NewWatcher(client, []string{"a", "b"})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if w == nil {
		t.Fatal("NewWatcher() = nil")
	}
}

func TestNewWatcher_Invalid(t *testing.T) {
	client := newWatchClient(t, "http://jobs.test")

	tests := []struct {
		name    string
		client  *Client
		handles []string
	}{
		{"nil client", nil, []string{"a"}},
		{"no handles", client, nil},
		{"empty handle", client, []string{"a", ""}},
		{"duplicate handle", client, []string{"a", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWatcher(tt.client, tt.handles)
			if err == nil {
				t.Error("NewWatcher() expected error, got nil")
			}
		})
	}
}

func TestNewWatcher_InvalidOptions(t *testing.T) {
	client := newWatchClient(t, "http://jobs.test")

	if _, err := NewWatcher(client, []string{"a"}, WithWatchConcurrency(0)); err == nil {
		t.Error("NewWatcher() expected error for zero concurrency, got nil")
	}
	if _, err := NewWatcher(client, []string{"a"}, WithWatcherLogger(nil)); err == nil {
		t.Error("NewWatcher() expected error for nil logger, got nil")
	}
}

func TestWatcher_StopsWhenAllTerminal(t *testing.T) {
	ws := newWatchService(t, map[string]string{
		"job-a": "completed",
		"job-b": "failed",
	})
	client := newWatchClient(t, ws.server.URL)

	w, err := NewWatcher(client, []string{"job-a", "job-b"})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	w.Start(context.Background())

	seen := make(map[string]Status)
	deadline := time.After(3 * time.Second)
	for {
		select {
		case update, ok := <-w.Updates():
			if !ok {
				// channel closed: the watcher finished on its own
				if seen["job-a"] != StatusCompleted {
					t.Errorf("job-a status = %v, want %v", seen["job-a"], StatusCompleted)
				}
				if seen["job-b"] != StatusFailed {
					t.Errorf("job-b status = %v, want %v", seen["job-b"], StatusFailed)
				}
				w.Stop()
				return
			}
			seen[update.Handle] = update.Status
		case <-deadline:
			t.Fatal("watcher did not stop after all handles became terminal")
		}
	}
}

func TestWatcher_EmitsProgression(t *testing.T) {
	ws := newWatchService(t, map[string]string{"job-a": "running"})
	client := newWatchClient(t, ws.server.URL)

	w, err := NewWatcher(client, []string{"job-a"})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	w.Start(context.Background())
	defer w.Stop()

	var statuses []Status
	deadline := time.After(3 * time.Second)
	for {
		select {
		case update, ok := <-w.Updates():
			if !ok {
				for _, s := range statuses {
					if s == StatusCompleted {
						return
					}
				}
				t.Fatalf("statuses = %v, want a completed observation", statuses)
			}
			statuses = append(statuses, update.Status)
			if len(statuses) == 2 {
				// flip the job after two running observations
				ws.set("job-a", "completed")
			}
		case <-deadline:
			t.Fatal("watcher never observed the completed status")
		}
	}
}

func TestWatcher_ErrorUpdatesKeepTracking(t *testing.T) {
	var healthy bool
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ok := healthy
		mu.Unlock()
		if !ok {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"status": "completed"}`))
	}))
	defer server.Close()

	client := newWatchClient(t, server.URL)
	w, err := NewWatcher(client, []string{"job-a"})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	w.Start(context.Background())
	defer w.Stop()

	var sawError bool
	deadline := time.After(3 * time.Second)
	for {
		select {
		case update, ok := <-w.Updates():
			if !ok {
				if !sawError {
					t.Error("never saw an error observation before recovery")
				}
				return
			}
			if update.Err != nil {
				if update.Status != StatusUnknown {
					t.Errorf("failed observation status = %v, want %v", update.Status, StatusUnknown)
				}
				sawError = true
				mu.Lock()
				healthy = true
				mu.Unlock()
			}
		case <-deadline:
			t.Fatal("watcher never finished after the service recovered")
		}
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	ws := newWatchService(t, map[string]string{"job-a": "running"})
	client := newWatchClient(t, ws.server.URL)

	w, err := NewWatcher(client, []string{"job-a"})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	w.Start(context.Background())
	w.Stop()
	w.Stop() // must not panic or block

	// channel must be closed after Stop
	for range w.Updates() {
	}
}

func TestWatcher_StopBeforeStart(t *testing.T) {
	client := newWatchClient(t, "http://jobs.test")

	w, err := NewWatcher(client, []string{"job-a"})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	w.Stop() // safe no-op

	// Start after Stop must not begin polling
	w.Start(context.Background())
	if _, ok := <-w.Updates(); ok {
		t.Error("received update after Stop-before-Start, want closed channel")
	}
}

func TestWatcher_StartIdempotent(t *testing.T) {
	ws := newWatchService(t, map[string]string{"job-a": "completed"})
	client := newWatchClient(t, ws.server.URL)

	w, err := NewWatcher(client, []string{"job-a"})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx := context.Background()
	w.Start(ctx)
	w.Start(ctx) // second call is a no-op

	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-w.Updates():
			if !ok {
				w.Stop()
				return
			}
		case <-deadline:
			t.Fatal("watcher did not finish")
		}
	}
}

func TestWatcher_ContextCancellation(t *testing.T) {
	ws := newWatchService(t, map[string]string{"job-a": "running"})
	client := newWatchClient(t, ws.server.URL)

	w, err := NewWatcher(client, []string{"job-a"})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	// the loop must exit and close the channel without Stop being called
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-w.Updates():
			if !ok {
				w.Stop()
				return
			}
		case <-deadline:
			t.Fatal("watcher did not exit after context cancellation")
		}
	}
}
