// Package main is the entry point for the pulsewatch CLI.
//
// Pulsewatch can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	pulsewatch serve -c config.yaml    # Start probing and serve the dashboard
//	pulsewatch validate -c config.yaml # Validate configuration
//	pulsewatch version                 # Show version info
package main

import (
	"fmt"
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
	Use:   "pulsewatch",
	Short: "A continuous health prober for HTTP endpoints",
	Long: `Pulsewatch checks a catalog of sites on a fixed cadence, keeps a bounded
history of every check in a JSON status document, and alerts when an
endpoint keeps failing or responding slowly.

Quick start:
  1. Create a config file (pulsewatch.yaml)
  2. Run: pulsewatch serve -c pulsewatch.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  interval: 5m
  webhook_url: ${WEBHOOK_URL}
  server:
    port: 8080
  sites:
    - name: Indexer
      endpoints:
        - name: Health
          url: https://api.example.com/health
          must_find: ok`,
	SilenceUsage: true,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this pulsewatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pulsewatch %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
