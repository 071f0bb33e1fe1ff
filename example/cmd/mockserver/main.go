// Standalone mock job server for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/jobpoll run -c example/jobs.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func main() {
	fmt.Println("Mock job server starting on :9999")
	fmt.Println("Jobs walk queued -> running -> completed; every third item fails")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu   sync.Mutex
		jobs = make(map[string]*jobState)
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/v1/jobs", func(c *gin.Context) {
		var body struct {
			Mode     string         `json:"mode"`
			Priority string         `json:"priority"`
			Payload  map[string]any `json:"payload"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Mode == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		total := 4
		if raw, ok := body.Payload["companies"].([]any); ok && len(raw) > 0 {
			total = len(raw)
		}

		job := &jobState{
			submittedAt: time.Now(),
			total:       total,
		}
		id := uuid.NewString()

		mu.Lock()
		jobs[id] = job
		mu.Unlock()

		slog.Info("job accepted", "job_id", id, "mode", body.Mode, "items", total)
		c.JSON(http.StatusAccepted, gin.H{"job_id": id})
	})

	r.GET("/v1/jobs/:id", func(c *gin.Context) {
		mu.Lock()
		job, ok := jobs[c.Param("id")]
		mu.Unlock()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such job"})
			return
		}

		status, done := job.current()
		c.JSON(http.StatusOK, gin.H{
			"status":   status,
			"progress": gin.H{"completed": done, "total": job.total},
		})
	})

	r.GET("/v1/jobs/:id/result", func(c *gin.Context) {
		mu.Lock()
		job, ok := jobs[c.Param("id")]
		mu.Unlock()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such job"})
			return
		}

		if status, _ := job.current(); status != "completed" {
			c.JSON(http.StatusTooEarly, gin.H{"error": "job not finished", "status": status})
			return
		}

		results := make([]gin.H, 0, job.total)
		for i := 0; i < job.total; i++ {
			if (i+1)%3 == 0 {
				results = append(results, gin.H{
					"item_id": fmt.Sprintf("item-%d", i+1),
					"success": false,
					"error":   "no public filings found",
				})
				continue
			}
			results = append(results, gin.H{
				"item_id": fmt.Sprintf("item-%d", i+1),
				"success": true,
				"payload": gin.H{"employees": 40 + i*17},
			})
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if err := r.Run(":9999"); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// jobState derives status from elapsed time: 2s queued, then one item
// per second.
type jobState struct {
	submittedAt time.Time
	total       int
}

func (j *jobState) current() (string, int) {
	elapsed := time.Since(j.submittedAt)
	if elapsed < 2*time.Second {
		return "queued", 0
	}
	done := int(elapsed/time.Second) - 2
	if done >= j.total {
		return "completed", j.total
	}
	return "running", done
}
