package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stillriver/jobpoll"
	"github.com/stillriver/jobpoll/config"
)

// statusCmd fetches the current status of one job.
var statusCmd = &cobra.Command{
	Use:   "status HANDLE",
	Short: "Print the current status of a job",
	Long: `Fetch and print the current lifecycle state of a job, identified by
the handle returned at submission.

With --json the raw status and progress are printed as a JSON object
for scripting.

Example:
  jobpoll status -c jobs.yaml job-42
  jobpoll status -c jobs.yaml --json job-42`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = statusCmd.MarkFlagRequired("config")
	statusCmd.Flags().Bool("json", false, "print the status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handle := args[0]
	info, err := client.Status(ctx, handle)
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(struct {
			Handle   string            `json:"handle"`
			Status   jobpoll.Status    `json:"status"`
			Progress *jobpoll.Progress `json:"progress,omitempty"`
		}{Handle: handle, Status: info.Status, Progress: info.Progress})
	}

	fmt.Printf("%s: %s", handle, info.Status)
	if info.Progress != nil {
		fmt.Printf(" (%d/%d)", info.Progress.Completed, info.Progress.Total)
	}
	fmt.Println()
	return nil
}
