// Package main provides the entry point for the sitesnap CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitesnap.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitesnap",
		Short: "Authenticated crawler that captures rendered pages and screenshots",
		Long: `sitesnap logs in to a web application, crawls it breadth-first up to a
bounded depth, and captures the rendered HTML and a screenshot of every
in-scope page.

Credentials are read from the environment (SITESNAP_USERNAME and
SITESNAP_PASSWORD by default) or from a dotenv file; they never appear
in config files or logs. Each run is recorded so later runs can be
compared with 'sitesnap compare'.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
