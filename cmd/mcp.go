package cmd

import (
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/danielolaszy/prism/internal/logging"
	"github.com/danielolaszy/prism/internal/mcp"
	"github.com/danielolaszy/prism/internal/snapshot"
	"github.com/danielolaszy/prism/internal/tracker"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve Prism's analysis tools to an MCP client over stdio",
	Long: `Serve classify_status, parse_ai_response and project_stats as MCP tools
over stdio.

project_stats reads Jira with JIRA_URL, JIRA_USERNAME and JIRA_TOKEN. The
other tools work without credentials.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flush := startTelemetry(cmd.Context())
		defer flush()

		var loader snapshot.Loader
		client, err := tracker.NewBasicAuthClient(cfg)
		if err != nil {
			logging.Warn("project_stats unavailable", "error", err)
		} else {
			loader = client
		}

		logging.Info("starting mcp server", "version", Version)
		return mcpserver.ServeStdio(mcp.NewServer(Version, mcp.NewTools(loader)))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
