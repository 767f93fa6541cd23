// Package cmd provides the command-line interface for Prism.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/prism/internal/config"
	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/pkg/telemetry"
)

// Version is set at build time with -ldflags "-X github.com/danielolaszy/prism/cmd.Version=...".
var Version = "dev"

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "prism",
	Short: "Prism is a test coverage dashboard for Jira",
	Long: `Prism reads epics, stories and test cases from Jira, rolls test outcomes
up the hierarchy and helps draft and export new test cases and user stories
with a language model.

Run 'prism serve' for the dashboard API, 'prism stats' for a quick look at a
project from the terminal, or 'prism mcp' to expose the same analysis to an
MCP client.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}

		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		logging.Debug("configuration loaded",
			"config_file", configFile,
			"command", cmd.Name())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (yaml, toml or json); environment variables take precedence")
	rootCmd.Version = Version
}

// startTelemetry installs the OpenTelemetry providers when enabled and returns
// the function flushing them.
func startTelemetry(ctx context.Context) func() {
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		logging.Warn("telemetry disabled", "error", err)
		return func() {}
	}

	return func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logging.Warn("failed to flush telemetry", "error", err)
		}
	}
}
