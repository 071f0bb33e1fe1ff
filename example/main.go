package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stillriver/jobpoll"
)

func main() {
	// start mock job service (see mock_server.go)
	go NewMockJobServer().Start(":9999")
	time.Sleep(100 * time.Millisecond)

	client, err := jobpoll.New("http://localhost:9999",
		jobpoll.WithTimeout(5*time.Second),
		jobpoll.WithPollInterval(time.Second),
		jobpoll.WithMaxWait(2*time.Minute),
	)
	if err != nil {
		slog.Error("failed to create client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Health(ctx); err != nil {
		slog.Error("job service not healthy", "error", err)
		os.Exit(1)
	}

	// matrix API: 2 regions × 2 sectors = 4 sibling jobs from one declaration
	jobs, err := jobpoll.NewJobMatrix("search",
		jobpoll.WithMatrixPayload(map[string]any{
			"query": "{{.sector}} companies in {{.region}}",
		}),
		jobpoll.WithMatrixDimensions(map[string][]string{
			"region": {"us-east", "eu-west"},
			"sector": {"fintech", "biotech"},
		}),
	)
	if err != nil {
		slog.Error("failed to create job matrix", "error", err)
		os.Exit(1)
	}

	// one direct extraction job on top of the sweep
	extract := jobpoll.JobRequest{
		Mode:     "extract",
		Priority: jobpoll.PriorityHigh,
		Payload: map[string]any{
			"companies": []string{"Acme Corp", "Globex", "Initech", "Umbrella", "Hooli"},
		},
	}

	fmt.Println()
	fmt.Printf("Submitting %d jobs (4 from the matrix + 1 direct), 2 at a time\n", len(jobs)+1)
	fmt.Println()

	// run everything through a K=2 gate: each unit is a full submit-poll-result cycle
	gate, err := jobpoll.NewGate(2)
	if err != nil {
		slog.Error("failed to create gate", "error", err)
		os.Exit(1)
	}

	units := make([]jobpoll.Unit, 0, len(jobs)+1)
	for _, job := range jobs {
		req := job.Request
		units = append(units, jobpoll.Unit{
			ID: job.Label,
			Op: func(ctx context.Context) (any, error) {
				return client.Run(ctx, req)
			},
		})
	}
	units = append(units, jobpoll.Unit{
		ID: "extract/top-5",
		Op: func(ctx context.Context) (any, error) {
			return client.Run(ctx, extract)
		},
	})

	start := time.Now()
	results, err := gate.Run(ctx, units)
	if err != nil {
		slog.Error("run aborted", "error", err)
		os.Exit(1)
	}

	fmt.Printf("All jobs finished in %s\n\n", time.Since(start).Round(time.Millisecond))
	for _, r := range results {
		if !r.Success {
			fmt.Printf("  %-20s  error: %s\n", r.ItemID, r.Error)
			continue
		}
		wait := r.Payload.(*jobpoll.WaitResult)
		if wait.Outcome != nil {
			fmt.Printf("  %-20s  %s  %d ok / %d failed  (%s)\n",
				r.ItemID, wait.Status, wait.Outcome.Successes(), wait.Outcome.Failures(),
				wait.Elapsed.Round(time.Millisecond))
			continue
		}
		fmt.Printf("  %-20s  %s  (%s)\n", r.ItemID, wait.Status, wait.Elapsed.Round(time.Millisecond))
	}
}
