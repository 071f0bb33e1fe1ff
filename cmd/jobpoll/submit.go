package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stillriver/jobpoll"
	"github.com/stillriver/jobpoll/config"
)

// submitCmd submits a single job and prints its handle without waiting.
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit one job and print its handle",
	Long: `Submit a single job to the service and print the returned handle
without waiting for it to finish.

The connection settings come from the configuration file; the job itself
comes from flags. Use "jobpoll watch" or "jobpoll status" with the
printed handle to follow the job afterwards.

Example:
  jobpoll submit -c jobs.yaml --mode extract --payload '{"companies": ["Acme Corp"]}'
  jobpoll submit -c jobs.yaml --mode search --priority high --payload '{"query": "fintech"}'`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = submitCmd.MarkFlagRequired("config")
	submitCmd.Flags().String("mode", "", "remote processing mode (required)")
	_ = submitCmd.MarkFlagRequired("mode")
	submitCmd.Flags().String("priority", "", "scheduling class: normal or high")
	submitCmd.Flags().String("payload", "", "job payload as a JSON object")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	mode, _ := cmd.Flags().GetString("mode")
	priority, _ := cmd.Flags().GetString("priority")
	rawPayload, _ := cmd.Flags().GetString("payload")

	var payload map[string]any
	if rawPayload != "" {
		if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
			return fmt.Errorf("invalid payload JSON: %w", err)
		}
	}

	client, err := jobpoll.New(cfg.Server.BaseURL,
		append(config.ClientOptions(cfg), jobpoll.WithLogger(logger))...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handle, err := client.Submit(ctx, jobpoll.JobRequest{
		Payload:  payload,
		Priority: jobpoll.Priority(priority),
		Mode:     mode,
	})
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}

	fmt.Println(handle)
	return nil
}
