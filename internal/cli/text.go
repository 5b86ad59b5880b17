package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/civicner/internal/extract"
	"github.com/ppiankov/civicner/internal/server"
)

var locationsOnly bool

// textCmd represents the text command
var textCmd = &cobra.Command{
	Use:   "text [string|-]",
	Short: "Tag a single piece of text and print the result as JSON",
	Long: `Text runs the extractor on one string, or on stdin when the argument is
"-" or missing, and prints the places and people found.

Example:
  civicner text "Councillor John Smith visited Birmingham"
  echo "Flooding near SW1A 1AA" | civicner text --locations-only`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger("text")
		cfg, err := loadConfig(log)
		if err != nil {
			return err
		}

		text, err := readTextArg(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		ex, err := extract.New(cfg.NLP, log)
		if err != nil {
			return fmt.Errorf("load extractor: %w", err)
		}
		return printExtraction(cmd.OutOrStdout(), ex, text, locationsOnly)
	},
}

func init() {
	rootCmd.AddCommand(textCmd)
	textCmd.Flags().BoolVar(&locationsOnly, "locations-only", false, "skip person and role tagging")
}

func readTextArg(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

type textResult struct {
	Locations []string `json:"locations"`
	Persons   any      `json:"persons,omitempty"`
}

// printExtraction writes the same shape the HTTP API answers with
func printExtraction(w io.Writer, ex server.Extractor, text string, locationsOnly bool) error {
	var out textResult
	if locationsOnly {
		out.Locations = ex.ExtractLocationsOnly(text).Sorted()
	} else {
		result := ex.Extract(text)
		out.Locations = result.Locations.Sorted()
		out.Persons = result.Mentions()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
