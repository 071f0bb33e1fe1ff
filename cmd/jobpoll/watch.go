package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stillriver/jobpoll"
	"github.com/stillriver/jobpoll/config"
	"github.com/stillriver/jobpoll/internal/server"
	"github.com/stillriver/jobpoll/internal/track"
)

// watchCmd follows one or more handles until every job is terminal.
var watchCmd = &cobra.Command{
	Use:   "watch HANDLE [HANDLE...]",
	Short: "Follow jobs until they reach a terminal state",
	Long: `Poll one or more job handles at the configured interval and print
every observation until all jobs are terminal.

With --listen the observations are additionally published on a local
HTTP port: GET /api/jobs for a JSON snapshot, GET /api/events for a
Server-Sent Events stream. Useful for wiring a dashboard or another
process onto a long-running watch.

The watch runs until every handle is terminal or the process is
interrupted (Ctrl+C / SIGTERM).

Example:
  jobpoll watch -c jobs.yaml job-42 job-43
  jobpoll watch -c jobs.yaml --listen 8080 job-42`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = watchCmd.MarkFlagRequired("config")
	watchCmd.Flags().Int("listen", 0, "serve the local status API on this port")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := jobpoll.New(cfg.Server.BaseURL,
		append(config.ClientOptions(cfg), jobpoll.WithLogger(logger))...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	watcher, err := jobpoll.NewWatcher(client, args, jobpoll.WithWatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// optional local status API fed from the same observations
	var store track.Store
	if port, _ := cmd.Flags().GetInt("listen"); port > 0 {
		store = track.NewMemoryStore()
		srv := server.New(store, port, logger)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
		logger.Info("status server listening", "port", port)
	}

	watcher.Start(ctx)
	defer watcher.Stop()

	for update := range watcher.Updates() {
		if store != nil {
			store.Update(toRecord(update))
		}
		printUpdate(update)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("watch interrupted: %w", ctx.Err())
	}
	return nil
}

// printUpdate writes one observation line to stdout.
func printUpdate(u jobpoll.Update) {
	ts := u.CheckedAt.Format(time.TimeOnly)
	if u.Err != nil {
		fmt.Printf("%s  %s  status check failed: %v\n", ts, u.Handle, u.Err)
		return
	}
	if u.Progress != nil {
		fmt.Printf("%s  %s  %s (%d/%d)\n", ts, u.Handle, u.Status, u.Progress.Completed, u.Progress.Total)
		return
	}
	fmt.Printf("%s  %s  %s\n", ts, u.Handle, u.Status)
}

// toRecord converts a watcher observation into its storage shape.
func toRecord(u jobpoll.Update) track.JobRecord {
	record := track.JobRecord{
		Handle:    u.Handle,
		Status:    u.Status.String(),
		CheckedAt: u.CheckedAt,
	}
	if u.Progress != nil {
		record.Progress = &track.ProgressCounts{
			Completed: u.Progress.Completed,
			Total:     u.Progress.Total,
		}
	}
	if u.Err != nil {
		msg := u.Err.Error()
		record.Error = &msg
	}
	return record
}
