package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/civicner/internal/extract"
	"github.com/ppiankov/civicner/internal/feed"
)

var enrichTimeout time.Duration

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich <posts.json>",
	Short: "Tag previously saved posts without contacting Bluesky",
	Long: `Enrich reads a JSON array of posts (as written by scrape) and tags
them exactly like scrape does. Useful for re-running extraction after a
gazetteer or model change.

Example:
  civicner enrich reformexposed_bsky_social_posts_20240601_120000.json
  civicner enrich posts.json --format csv --output-dir ./out`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), runFlagKeys())
	},
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(enrichCmd)
	addRunFlags(enrichCmd)

	enrichCmd.Flags().DurationVar(&enrichTimeout, "timeout", 30*time.Minute, "overall run timeout")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	log := newLogger("enrich")
	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	applyNoCache(cmd, cfg)

	input := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), enrichTimeout)
	defer cancel()

	printRunHeader("civicner enrich", [][2]string{
		{"Input file", input},
		{"Output dir", cfg.Output.Dir},
		{"Fetch links", fmt.Sprint(cfg.Links.FetchMissing)},
	})

	posts, err := feed.ReadPostsFile(input)
	if err != nil {
		return err
	}

	extractor, err := extract.New(cfg.NLP, log)
	if err != nil {
		return fmt.Errorf("load extractor: %w", err)
	}

	return enrichAndWrite(ctx, cfg, extractor, posts, enrichedBaseName(input), log)
}

// enrichedBaseName derives the output name from the input file
func enrichedBaseName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_enriched"
}
