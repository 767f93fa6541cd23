package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/danielolaszy/prism/internal/config"
	"github.com/danielolaszy/prism/internal/snapshot"
	"github.com/danielolaszy/prism/internal/tracker"
	"github.com/danielolaszy/prism/pkg/models"
)

var (
	titleColor    = color.New(color.FgMagenta, color.Bold)
	passingColor  = color.New(color.FgGreen)
	partialColor  = color.New(color.FgYellow)
	breakingColor = color.New(color.FgRed)
	pendingColor  = color.New(color.FgHiBlack)
)

// newStatsLoader builds the Jira loader for the stats command.
var newStatsLoader = func(cfg *config.Config) (snapshot.Loader, error) {
	c, err := tracker.NewBasicAuthClient(cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show test case rollups for a Jira project",
	Long: `Load every epic, story and test case visible to the configured Jira
account and print the rollups of one project.

Requires JIRA_URL, JIRA_USERNAME and JIRA_TOKEN.

Example:
  prism stats -p PROJ
  prism stats -p PROJ --output yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectKey, err := cmd.Flags().GetString("project")
		if err != nil {
			return err
		}
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}

		projectKey = strings.ToUpper(strings.TrimSpace(projectKey))
		if projectKey == "" {
			return fmt.Errorf("project flag is required")
		}

		loader, err := newStatsLoader(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize jira client: %w", err)
		}

		snap, err := snapshot.NewCache(loader).Get(cmd.Context())
		if err != nil {
			return err
		}
		if _, ok := snap.Project(projectKey); !ok {
			return fmt.Errorf("project %s not found", projectKey)
		}

		return printSummary(cmd.OutOrStdout(), snap.ProjectSummary(projectKey), output)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringP("project", "p", "", "Jira project key")
	statsCmd.Flags().StringP("output", "o", "text", "output format: text, json or yaml")
}

func printSummary(w io.Writer, s snapshot.ProjectSummary, output string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		printText(w, s)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", output)
	}
}

func printText(w io.Writer, s snapshot.ProjectSummary) {
	titleColor.Fprintf(w, "%s", s.ProjectKey)
	if s.LoadedAt != "" {
		fmt.Fprintf(w, " (loaded %s)", s.LoadedAt)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n\n", formatStats(s.Stats))

	if len(s.Epics) == 0 {
		fmt.Fprintln(w, "No epics with stories.")
	}
	for _, e := range s.Epics {
		fmt.Fprintf(w, "%-12s %s (%d %s)\n", e.Key, e.Summary, e.Stories, plural(e.Stories, "story", "stories"))
		fmt.Fprintf(w, "  %s\n", formatStats(e.Stats))
	}

	if len(s.Orphans) > 0 {
		fmt.Fprintf(w, "\n%d %s without a loaded epic\n", len(s.Orphans), plural(len(s.Orphans), "story", "stories"))
	}
}

func formatStats(st models.Stats) string {
	return fmt.Sprintf("%s  %s  %s  %s  total %d, %d%% passing",
		passingColor.Sprintf("passing %d", st.Passing),
		partialColor.Sprintf("partial %d", st.Partial),
		breakingColor.Sprintf("breaking %d", st.Breaking),
		pendingColor.Sprintf("pending %d", st.Pending),
		st.Total, st.PassRate)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
