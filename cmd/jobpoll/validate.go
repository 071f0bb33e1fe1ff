package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stillriver/jobpoll/config"
)

// validateCmd validates a config file without contacting the service.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a jobpoll configuration file without submitting anything.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  jobpoll validate -c jobs.yaml
  jobpoll validate --config /etc/jobpoll/jobs.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Count total jobs (direct + expanded from matrices)
	directJobs := 0
	matrixJobs := 0
	for _, j := range cfg.Jobs {
		if j.Matrix == nil {
			directJobs++
			continue
		}
		// Calculate cartesian product size
		size := 1
		for _, vals := range j.Matrix.Dimensions {
			size *= len(vals)
		}
		matrixJobs += size
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Base URL:      %s\n", cfg.Server.BaseURL)
	fmt.Printf("  Poll interval: %s\n", cfg.Poll.Interval.Duration())
	fmt.Printf("  Max wait:      %s\n", cfg.Poll.MaxWait.Duration())
	fmt.Printf("  Concurrency:   %d\n", cfg.Gate.Concurrency)
	fmt.Printf("  Jobs:          %d direct + %d from matrices = %d total\n",
		directJobs, matrixJobs, directJobs+matrixJobs)

	return nil
}
