package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stillriver/jobpoll"
	"github.com/stillriver/jobpoll/config"
)

// timeRounding trims sub-millisecond noise from durations in CLI output.
const timeRounding = time.Millisecond

// runCmd executes every job in a YAML file and waits for the results.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit every configured job and wait for results",
	Long: `Submit every job in the configuration file and wait for each one to
reach a terminal state.

Matrix entries are expanded into one job per dimension combination.
Jobs are executed concurrently, bounded by gate.concurrency; each
admitted job holds a full submit-poll-result cycle. A summary table is
printed when all jobs have finished.

Exit codes:
  0 - every job completed successfully
  1 - at least one job failed, was cancelled, or timed out

Example:
  jobpoll run -c jobs.yaml
  jobpoll run -c jobs.yaml --health-check`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = runCmd.MarkFlagRequired("config")
	runCmd.Flags().Bool("health-check", false, "probe the service before submitting anything")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	requests, err := config.BuildRequests(cfg)
	if err != nil {
		return fmt.Errorf("failed to build requests: %w", err)
	}
	if len(requests) == 0 {
		return fmt.Errorf("no jobs configured")
	}

	client, err := jobpoll.New(cfg.Server.BaseURL,
		append(config.ClientOptions(cfg), jobpoll.WithLogger(logger))...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	logger.Info("config loaded",
		"jobs", len(requests),
		"concurrency", cfg.Gate.Concurrency,
		"interval", cfg.Poll.Interval.Duration().String(),
		"max_wait", cfg.Poll.MaxWait.Duration().String(),
	)

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if healthCheck, _ := cmd.Flags().GetBool("health-check"); healthCheck {
		if err := client.Health(ctx); err != nil {
			return fmt.Errorf("service health check failed: %w", err)
		}
		logger.Info("service healthy", "base_url", client.BaseURL())
	}

	gate, err := jobpoll.NewGate(cfg.Gate.Concurrency, jobpoll.WithGateLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create gate: %w", err)
	}

	units := make([]jobpoll.Unit, len(requests))
	for i, nr := range requests {
		req := nr.Request
		units[i] = jobpoll.Unit{
			ID: nr.Name,
			Op: func(ctx context.Context) (any, error) {
				return client.Run(ctx, req)
			},
		}
	}

	results, err := gate.Run(ctx, units)
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	failed := printSummary(os.Stdout, results)
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs did not complete successfully", failed, len(results))
	}
	return nil
}

// printSummary writes one table row per job and returns the number of
// jobs that did not finish as completed.
func printSummary(out *os.File, results []jobpoll.UnitResult) int {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tSTATUS\tITEMS\tELAPSED\tDETAIL")

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
			fmt.Fprintf(w, "%s\terror\t-\t-\t%s\n", r.ItemID, r.Error)
			continue
		}

		wait, ok := r.Payload.(*jobpoll.WaitResult)
		if !ok {
			failed++
			fmt.Fprintf(w, "%s\terror\t-\t-\tunexpected payload type\n", r.ItemID)
			continue
		}

		switch wait.Status {
		case jobpoll.StatusCompleted:
			items := "-"
			if wait.Outcome != nil {
				items = fmt.Sprintf("%d ok / %d failed", wait.Outcome.Successes(), wait.Outcome.Failures())
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.ItemID, wait.Status, items, wait.Elapsed.Round(timeRounding), wait.Handle)
		default:
			// failed or cancelled on the remote side
			failed++
			fmt.Fprintf(w, "%s\t%s\t-\t%s\t%s\n",
				r.ItemID, wait.Status, wait.Elapsed.Round(timeRounding), wait.Handle)
		}
	}

	_ = w.Flush()
	return failed
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
