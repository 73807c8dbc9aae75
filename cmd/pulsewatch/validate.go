package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/pulsewatch/config"
	"github.com/jpalmerr/pulsewatch/internal/resolve"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a Pulsewatch configuration file without starting the server.

This command parses the YAML, applies environment overrides, expands
environment variables, validates all fields and expands grids. It's useful
for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  pulsewatch validate -c config.yaml
  pulsewatch validate --config /etc/pulsewatch/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithEnv(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sites, err := config.BuildSites(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct, total := 0, 0
	for i, site := range sites {
		direct += len(cfg.Sites[i].Endpoints)
		total += len(site.Endpoints)
	}

	global := resolve.Resolve(cfg.Settings)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Interval:      %s\n", global.Interval)
	fmt.Fprintf(out, "  Sites:         %d\n", len(sites))
	fmt.Fprintf(out, "  Endpoints:     %d direct + %d from grids = %d total\n",
		direct, total-direct, total)
	for _, site := range sites {
		fmt.Fprintf(out, "    %s (%s): %d\n", site.Name, site.ID, len(site.Endpoints))
	}

	return nil
}
