package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/prism/internal/assistant"
	"github.com/danielolaszy/prism/pkg/models"
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Parse a saved model reply into test cases or user stories",
	Long: `Parse a saved language model reply, heading formatted or JSON, and print
the extracted items as JSON. Use '-' to read from standard input.

Example:
  prism parse --kind story reply.md`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kindFlag, err := cmd.Flags().GetString("kind")
		if err != nil {
			return err
		}
		kind := models.ItemKind(kindFlag)
		if !kind.Valid() {
			return fmt.Errorf("unknown kind %q (want %s or %s)", kindFlag, models.KindTestCase, models.KindStory)
		}

		text, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(assistant.ParseJSON(text, kind))
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringP("kind", "k", string(models.KindTestCase), "item kind: test_case or story")
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(b), nil
}
