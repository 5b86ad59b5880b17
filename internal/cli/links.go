package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/civicner/internal/pipeline"
)

var linksTimeout time.Duration

// linksCmd represents the links command
var linksCmd = &cobra.Command{
	Use:   "links <file>",
	Short: "Resolve titles and descriptions for a list of URLs",
	Long: `Links reads URLs from a file (one per line, # for comments) and fetches
each page's title and description with the same cache, robots.txt and
per-host rate limits scrape uses for link previews.

Example:
  civicner links urls.txt
  civicner links urls.txt --workers 8`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), map[string]string{
			"workers": "concurrency.workers",
		})
	},
	RunE: runLinks,
}

func init() {
	rootCmd.AddCommand(linksCmd)
	linksCmd.Flags().Int("workers", 4, "concurrent fetches")
	linksCmd.Flags().Bool("no-cache", false, "disable the link metadata cache")
	linksCmd.Flags().DurationVar(&linksTimeout, "timeout", 10*time.Minute, "total timeout")
}

func runLinks(cmd *cobra.Command, args []string) error {
	log := newLogger("links")
	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	applyNoCache(cmd, cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), linksTimeout)
	defer cancel()

	printRunHeader("civicner links", [][2]string{
		{"Input file", args[0]},
		{"Workers", fmt.Sprint(cfg.Concurrency.Workers)},
		{"Cache", fmt.Sprint(cfg.Cache.Enabled)},
	})

	start := time.Now()
	results, err := pipeline.NewLinkProcessor(cfg, log).ProcessFile(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", r.URL, r.Error)
			continue
		}
		fmt.Fprintf(out, "✓ %s\n    %s\n", r.URL, r.Meta.Title)
		if r.Meta.Description != "" {
			fmt.Fprintf(out, "    %s\n", r.Meta.Description)
		}
	}

	fmt.Fprintf(os.Stderr, "\n  Resolved:  %d/%d\n", len(results)-failed, len(results))
	fmt.Fprintf(os.Stderr, "  Duration:  %s\n\n", time.Since(start).Round(time.Millisecond))
	if failed > 0 && failed == len(results) {
		return fmt.Errorf("all %d links failed", failed)
	}
	return nil
}
