// Package cmd contains the CLI entry points.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prof-insights",
		Short: "Scrape professor reviews and summarize them with an LLM.",
		Long: `prof-insights runs an asynchronous job service: a submission creates a
queued job, the worker pipeline scrapes the professor's reviews and asks a
model for a summary, and clients poll the job record until it finishes.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults to environment variables only)")

	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
