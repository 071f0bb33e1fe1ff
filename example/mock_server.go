package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// mockJob is one in-memory job: it walks queued -> running -> completed
// on a wall-clock schedule derived from its submission time.
type mockJob struct {
	id          string
	mode        string
	priority    string
	items       []string
	submittedAt time.Time
	queuedFor   time.Duration
	perItem     time.Duration
}

// status derives the job's current state and progress from elapsed time.
func (j *mockJob) status(now time.Time) (string, int) {
	elapsed := now.Sub(j.submittedAt)
	if elapsed < j.queuedFor {
		return "queued", 0
	}

	done := int((elapsed - j.queuedFor) / j.perItem)
	if done >= len(j.items) {
		return "completed", len(j.items)
	}
	return "running", done
}

// MockJobServer is an in-memory asynchronous job service for demos and
// manual testing. Every third item in a job fails, so batch outcomes
// always show some partial-failure bookkeeping.
type MockJobServer struct {
	mu   sync.Mutex
	jobs map[string]*mockJob

	// QueuedFor is how long a job sits in queued before running.
	QueuedFor time.Duration

	// PerItem is the processing time per item.
	PerItem time.Duration
}

// NewMockJobServer creates a mock service with short demo timings.
func NewMockJobServer() *MockJobServer {
	return &MockJobServer{
		jobs:      make(map[string]*mockJob),
		QueuedFor: 2 * time.Second,
		PerItem:   time.Second,
	}
}

// Router builds the gin handler implementing the job service contract.
func (m *MockJobServer) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/v1/jobs", m.handleSubmit)
	r.GET("/v1/jobs/:id", m.handleStatus)
	r.GET("/v1/jobs/:id/result", m.handleResult)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// Start serves the mock service on addr. Blocks; run it in a goroutine.
func (m *MockJobServer) Start(addr string) {
	if err := m.Router().Run(addr); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

func (m *MockJobServer) handleSubmit(c *gin.Context) {
	var body struct {
		Mode     string         `json:"mode"`
		Priority string         `json:"priority"`
		Payload  map[string]any `json:"payload"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.Mode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode is required"})
		return
	}

	job := &mockJob{
		id:          uuid.NewString(),
		mode:        body.Mode,
		priority:    body.Priority,
		items:       itemsFromPayload(body.Payload),
		submittedAt: time.Now(),
		queuedFor:   m.QueuedFor,
		perItem:     m.PerItem,
	}

	// high priority jobs skip the queue in this toy scheduler
	if body.Priority == "high" {
		job.queuedFor = 0
	}

	m.mu.Lock()
	m.jobs[job.id] = job
	m.mu.Unlock()

	slog.Info("job accepted", "job_id", job.id, "mode", job.mode, "items", len(job.items))
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.id})
}

func (m *MockJobServer) handleStatus(c *gin.Context) {
	m.mu.Lock()
	job, ok := m.jobs[c.Param("id")]
	m.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such job"})
		return
	}

	status, done := job.status(time.Now())
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"progress": gin.H{
			"completed": done,
			"total":     len(job.items),
		},
	})
}

func (m *MockJobServer) handleResult(c *gin.Context) {
	m.mu.Lock()
	job, ok := m.jobs[c.Param("id")]
	m.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such job"})
		return
	}

	status, _ := job.status(time.Now())
	if status != "completed" {
		c.JSON(http.StatusTooEarly, gin.H{"error": "job not finished", "status": status})
		return
	}

	results := make([]gin.H, 0, len(job.items))
	for i, item := range job.items {
		if (i+1)%3 == 0 {
			results = append(results, gin.H{
				"item_id": item,
				"success": false,
				"error":   "no public filings found",
			})
			continue
		}
		results = append(results, gin.H{
			"item_id": item,
			"success": true,
			"payload": gin.H{
				"employees": 40 + i*17,
				"industry":  "widgets",
			},
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"metadata": gin.H{
			"mode":       job.mode,
			"elapsed_ms": time.Since(job.submittedAt).Milliseconds(),
		},
	})
}

// itemsFromPayload picks the batch items out of a submitted payload: a
// "companies" string list when present, otherwise a small synthetic
// batch so every job produces results.
func itemsFromPayload(payload map[string]any) []string {
	if raw, ok := payload["companies"].([]any); ok && len(raw) > 0 {
		items := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				items = append(items, s)
			}
		}
		if len(items) > 0 {
			return items
		}
	}

	items := make([]string, 4)
	for i := range items {
		items[i] = fmt.Sprintf("item-%d", i+1)
	}
	return items
}
