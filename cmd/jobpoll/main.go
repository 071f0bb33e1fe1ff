// Package main is the entry point for the jobpoll CLI.
//
// The job client can be used either as a library (SDK) or as a
// standalone binary driven by YAML configuration. This CLI provides the
// standalone binary approach.
//
// Usage:
//
//	jobpoll run -c jobs.yaml        # Submit every job and wait for results
//	jobpoll submit -c jobs.yaml     # One-shot submit, print the handle
//	jobpoll status -c jobs.yaml ID  # One-shot status check
//	jobpoll watch -c jobs.yaml ID   # Follow handles until terminal
//	jobpoll validate -c jobs.yaml   # Validate configuration
//	jobpoll version                 # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "jobpoll",
	Short: "A client for asynchronous job services",
	Long: `jobpoll submits jobs to an asynchronous job service over HTTP,
polls their status until they finish, and collects per-item results.

Jobs are declared in a YAML file: connection settings, polling cadence,
a concurrency limit, and the job list. Matrix entries expand into one
job per dimension combination, so a parameter sweep is one declaration.

Quick start:

  jobpoll validate -c jobs.yaml
  jobpoll run -c jobs.yaml`,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this jobpoll binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jobpoll %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
