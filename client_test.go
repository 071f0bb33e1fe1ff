package jobpoll

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_Valid(t *testing.T) {
	client, err := New("https://jobs.example.com")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	if client.BaseURL() != "https://jobs.example.com" {
		t.Errorf("BaseURL() = %v, want %v", client.BaseURL(), "https://jobs.example.com")
	}
	if client.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval() = %v, want default %v", client.PollInterval(), 5*time.Second)
	}
	if client.MaxWait() != 10*time.Minute {
		t.Errorf("MaxWait() = %v, want default %v", client.MaxWait(), 10*time.Minute)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	client, err := New("https://jobs.example.com/")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	if client.BaseURL() != "https://jobs.example.com" {
		t.Errorf("BaseURL() = %v, want trailing slash removed", client.BaseURL())
	}
}

func TestNew_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"no scheme", "jobs.example.com"},
		{"just path", "/v1/jobs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.url)
			if err == nil {
				t.Errorf("New() expected error for URL %q, got nil", tt.url)
			}
		})
	}
}

func TestNew_MaxWaitBelowInterval(t *testing.T) {
	_, err := New("http://jobs.test",
		WithPollInterval(10*time.Second),
		WithMaxWait(5*time.Second),
	)
	if err == nil {
		t.Fatal("New() expected error for max wait < interval, got nil")
	}
}

func TestSubmit(t *testing.T) {
	var gotBody submitRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %v, want POST", r.Method)
		}
		if r.URL.Path != "/v1/jobs" {
			t.Errorf("path = %v, want /v1/jobs", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job_id": "job-42"}`))
	}))
	defer server.Close()

	client, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	handle, err := client.Submit(context.Background(), JobRequest{
		Mode:    "extract",
		Payload: map[string]any{"companies": []string{"acme"}},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if handle != "job-42" {
		t.Errorf("handle = %v, want job-42", handle)
	}
	if gotBody.Mode != "extract" {
		t.Errorf("submitted mode = %v, want extract", gotBody.Mode)
	}
	if gotBody.Priority != "normal" {
		t.Errorf("submitted priority = %v, want normal (default)", gotBody.Priority)
	}
}

func TestSubmit_InvalidRequest(t *testing.T) {
	client, err := New("http://jobs.test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	// no network call should happen; the URL does not resolve anyway
	_, err = client.Submit(context.Background(), JobRequest{})
	if err == nil {
		t.Fatal("Submit() expected error for empty mode, got nil")
	}

	_, err = client.Submit(context.Background(), JobRequest{Mode: "extract", Priority: "urgent"})
	if err == nil {
		t.Fatal("Submit() expected error for invalid priority, got nil")
	}
}

func TestSubmit_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	_, err = client.Submit(context.Background(), JobRequest{Mode: "extract"})
	if err == nil {
		t.Fatal("Submit() expected error for 503, got nil")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error type = %T, want *TransportError", err)
	}
	if te.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want %d", te.StatusCode, http.StatusServiceUnavailable)
	}
	if !strings.Contains(te.Body, "queue full") {
		t.Errorf("Body = %q, want response snippet", te.Body)
	}
}

func TestSubmit_EmptyHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"job_id": ""}`))
	}))
	defer server.Close()

	client, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	_, err = client.Submit(context.Background(), JobRequest{Mode: "extract"})
	if err == nil {
		t.Fatal("Submit() expected error for empty job id in 2xx response, got nil")
	}
}

func TestSubmit_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	_, err = client.Submit(context.Background(), JobRequest{Mode: "extract"})
	if err == nil {
		t.Fatal("Submit() expected error for refused connection, got nil")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error type = %T, want *TransportError", err)
	}
	if te.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for network failure", te.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/jobs/job-42" {
			t.Errorf("path = %v, want /v1/jobs/job-42", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status": "running", "progress": {"completed": 3, "total": 10}}`))
	}))
	defer server.Close()

	client, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	info, err := client.Status(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if info.Status != StatusRunning {
		t.Errorf("Status = %v, want %v", info.Status, StatusRunning)
	}
	if info.Progress == nil {
		t.Fatal("Progress = nil, want counters")
	}
	if info.Progress.Completed != 3 || info.Progress.Total != 10 {
		t.Errorf("Progress = %+v, want {3 10}", info.Progress)
	}
}

func TestStatus_EmptyHandle(t *testing.T) {
	client, err := New("http://jobs.test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	info, err := client.Status(context.Background(), "")
	if err == nil {
		t.Fatal("Status() expected error for empty handle, got nil")
	}
	if info.Status != StatusUnknown {
		t.Errorf("Status = %v, want %v on failure", info.Status, StatusUnknown)
	}
}

func TestStatus_FailureYieldsUnknown(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
		{
			name: "unrecognized status value",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status": "paused"}`))
			},
		},
		{
			name: "negative progress",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status": "running", "progress": {"completed": -1, "total": 5}}`))
			},
		},
		{
			name: "completed beyond total",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"status": "running", "progress": {"completed": 7, "total": 5}}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client, err := New(server.URL)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer client.Close()

			info, err := client.Status(context.Background(), "job-42")
			if err == nil {
				t.Fatal("Status() expected error, got nil")
			}
			if info.Status != StatusUnknown {
				t.Errorf("Status = %v, want %v", info.Status, StatusUnknown)
			}

			var te *TransportError
			if !errors.As(err, &te) {
				t.Errorf("error type = %T, want *TransportError", err)
			}
		})
	}
}

func TestStatus_Idempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "running", "progress": {"completed": 3, "total": 10}}`))
	}))
	defer server.Close()

	client, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	var firstTotal int
	for i := 0; i < 3; i++ {
		info, err := client.Status(context.Background(), "job-42")
		if err != nil {
			t.Fatalf("Status() call %d error = %v", i+1, err)
		}
		if i == 0 {
			firstTotal = info.Progress.Total
			continue
		}
		if info.Progress.Total != firstTotal {
			t.Errorf("call %d: Total = %d, want stable %d", i+1, info.Progress.Total, firstTotal)
		}
	}
}

func TestResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/jobs/job-42/result" {
			t.Errorf("path = %v, want /v1/jobs/job-42/result", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"results": [
				{"item_id": "acme", "success": true, "payload": {"employees": 120}},
				{"item_id": "globex", "success": false, "error": "no public filings"}
			],
			"metadata": {"elapsed_ms": 5400}
		}`))
	}))
	defer server.Close()

	client, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	outcome, err := client.Result(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}

	if len(outcome.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(outcome.Results))
	}
	if outcome.Results[0].ItemID != "acme" || !outcome.Results[0].Success {
		t.Errorf("Results[0] = %+v, want successful acme entry", outcome.Results[0])
	}
	if outcome.Results[1].Success {
		t.Errorf("Results[1].Success = true, want false")
	}
	if outcome.Results[1].Error != "no public filings" {
		t.Errorf("Results[1].Error = %q, want failure description", outcome.Results[1].Error)
	}
	if outcome.Successes() != 1 || outcome.Failures() != 1 {
		t.Errorf("counts = %d/%d, want 1 success, 1 failure", outcome.Successes(), outcome.Failures())
	}
}

func TestResult_NotReady(t *testing.T) {
	for _, code := range []int{http.StatusConflict, http.StatusTooEarly} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "job not finished", code)
		}))

		client, err := New(server.URL)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		_, err = client.Result(context.Background(), "job-42")
		if err == nil {
			t.Fatalf("Result() expected error for %d, got nil", code)
		}
		if !errors.Is(err, ErrResultNotReady) {
			t.Errorf("errors.Is(err, ErrResultNotReady) = false for %d, err = %v", code, err)
		}

		client.Close()
		server.Close()
	}
}

func TestResult_EmptyHandle(t *testing.T) {
	client, err := New("http://jobs.test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	_, err = client.Result(context.Background(), "")
	if err == nil {
		t.Fatal("Result() expected error for empty handle, got nil")
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path = %v, want /healthz", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v, want nil", err)
	}
}

func TestHealth_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "draining", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	if err := client.Health(context.Background()); err == nil {
		t.Error("Health() error = nil, want error for 503")
	}
}

func TestClient_SendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", got)
		}
		if got := r.Header.Get("User-Agent"); got != "jobpoll-test/1.0" {
			t.Errorf("User-Agent = %q, want jobpoll-test/1.0", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(server.URL,
		WithHeaders(map[string]string{"Authorization": "Bearer tok"}),
		WithUserAgent("jobpoll-test/1.0"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	client, err := New("http://jobs.test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	client.Close()
	client.Close() // must not panic
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := New(server.URL, WithCircuitBreaker())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	// 5xx responses count as breaker failures but are reported to the
	// caller as ordinary transport errors carrying the status code
	for i := 0; i < 5; i++ {
		err := client.Health(context.Background())
		if err == nil {
			t.Fatalf("Health() call %d error = nil, want error", i+1)
		}
	}

	// breaker should be open now: calls fail fast without reaching the server
	before := calls.Load()
	err = client.Health(context.Background())
	if err == nil {
		t.Fatal("Health() error = nil, want fail-fast error with open breaker")
	}
	if got := calls.Load(); got != before {
		t.Errorf("server calls = %d, want %d (no call while breaker open)", got, before)
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("error type = %T, want *TransportError", err)
	}
}

func TestClient_CircuitBreaker5xxStillReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := New(server.URL, WithCircuitBreaker())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	err = client.Health(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error type = %T, want *TransportError", err)
	}
	if te.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", te.StatusCode)
	}
}
