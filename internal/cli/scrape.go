package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/civicner/internal/extract"
	"github.com/ppiankov/civicner/internal/feed"
	"github.com/ppiankov/civicner/internal/llm"
	"github.com/ppiankov/civicner/internal/model"
	"github.com/ppiankov/civicner/internal/pipeline"
	"github.com/ppiankov/civicner/internal/sink"
	"github.com/ppiankov/civicner/internal/util"
	"github.com/ppiankov/civicner/internal/worker"
)

var scrapeTimeout time.Duration

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape [account]",
	Short: "Fetch an account's posts, tag them and write the results",
	Long: `Scrape reads a Bluesky account's posts and, for each one:
- tags UK places in the post text and its link preview
- tags people together with their civic role
- writes CSV and JSON files (and Elasticsearch or Kafka when configured)
- prints a run summary

The account may be a handle or a bsky.app profile URL. When omitted,
feed.target_account (or TARGET_ACCOUNT) is used.

Example:
  civicner scrape reformexposed.bsky.social
  civicner scrape https://bsky.app/profile/reformexposed.bsky.social --limit 200
  civicner scrape --fetch-links --llm openai --llm-model gpt-4o-mini`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		keys := runFlagKeys()
		keys["limit"] = "feed.limit"
		return bindFlags(cmd.Flags(), keys)
	},
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
	addRunFlags(scrapeCmd)

	scrapeCmd.Flags().Int("limit", 0, "maximum posts to fetch (0 = all)")
	scrapeCmd.Flags().DurationVar(&scrapeTimeout, "timeout", 30*time.Minute, "overall run timeout")
}

func runFlagKeys() map[string]string {
	return map[string]string{
		"fetch-links":   "links.fetch_missing",
		"output-dir":    "output.dir",
		"format":        "output.formats",
		"workers":       "concurrency.workers",
		"llm":           "llm.provider",
		"llm-model":     "llm.model",
		"es-addr":       "sinks.elasticsearch_addr",
		"kafka-brokers": "sinks.kafka_brokers",
	}
}

// addRunFlags registers the flags shared by scrape and enrich
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("fetch-links", false, "fetch linked pages whose preview lacks a title or description")
	cmd.Flags().Bool("no-cache", false, "disable the link metadata cache")
	cmd.Flags().String("output-dir", ".", "output directory")
	cmd.Flags().StringSlice("format", []string{"csv", "json"}, "output formats (csv, json)")
	cmd.Flags().Int("workers", 4, "concurrent link fetches")
	cmd.Flags().String("llm", "", "write a run digest with this provider (openai, ollama)")
	cmd.Flags().String("llm-model", "", "LLM model name")
	cmd.Flags().String("es-addr", "", "also index records into this Elasticsearch node")
	cmd.Flags().StringSlice("kafka-brokers", nil, "also publish records to these Kafka brokers")
}

func runScrape(cmd *cobra.Command, args []string) error {
	log := newLogger("scrape")
	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	applyNoCache(cmd, cfg)

	account := cfg.Feed.TargetAccount
	if len(args) == 1 {
		account = args[0]
	}
	account = feed.HandleFromProfileURL(account)
	if account == "" {
		return fmt.Errorf("no account given: pass one or set TARGET_ACCOUNT")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), scrapeTimeout)
	defer cancel()

	printRunHeader("civicner scrape", [][2]string{
		{"Account", account},
		{"Limit", limitLabel(cfg.Feed.Limit)},
		{"Output dir", cfg.Output.Dir},
		{"Fetch links", fmt.Sprint(cfg.Links.FetchMissing)},
	})

	extractor, err := extract.New(cfg.NLP, log)
	if err != nil {
		return fmt.Errorf("load extractor: %w", err)
	}

	client := newFeedClient(cfg, log)
	if cfg.Feed.Username != "" && cfg.Feed.Password != "" {
		if err := client.Login(ctx, cfg.Feed.Username, cfg.Feed.Password); err != nil {
			fmt.Fprintf(os.Stderr, "✗ Login failed, continuing without authentication: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "✓ Logged in as %s\n", cfg.Feed.Username)
		}
	}

	posts, err := client.FetchPosts(ctx, account, cfg.Feed.Limit)
	if err != nil {
		if len(posts) == 0 {
			return fmt.Errorf("fetch posts: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✗ Fetch stopped early, keeping %d posts: %v\n", len(posts), err)
	} else {
		fmt.Fprintf(os.Stderr, "✓ Fetched %d posts\n", len(posts))
	}

	return enrichAndWrite(ctx, cfg, extractor, posts, pipeline.OutputBaseName(account, time.Now()), log)
}

// enrichAndWrite is the shared tail of scrape and enrich
func enrichAndWrite(ctx context.Context, cfg *model.Config, extractor *extract.Extractor, posts []model.Post, base string, log *slog.Logger) error {
	records, err := pipeline.NewFromConfig(cfg, extractor, log).Enrich(ctx, posts)
	if err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Tagged %d posts\n", len(records))

	sinks, err := sink.FromConfig(cfg, base, log)
	if err != nil {
		return err
	}
	writeErr := sinks.Write(ctx, records)
	if closeErr := sinks.Close(); closeErr != nil {
		log.Warn("closing sinks", "error", closeErr)
	}
	if writeErr != nil {
		fmt.Fprintf(os.Stderr, "✗ Some outputs failed: %v\n", writeErr)
	}
	for _, s := range sinks {
		if fs, ok := s.(*sink.FileSink); ok {
			for _, p := range fs.Paths() {
				fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", p)
			}
		}
	}

	fmt.Println()
	pipeline.NewRenderer(0).RenderSummary(os.Stdout, records)

	if err := writeDigest(ctx, cfg, records, base, log); err != nil {
		return err
	}
	return writeErr
}

// writeDigest produces <base>.digest.md when an LLM provider is configured.
// Provider failures end up as warnings inside the digest.
func writeDigest(ctx context.Context, cfg *model.Config, records []model.Record, base string, log *slog.Logger) error {
	summarizer, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM, cfg.HTTP), log)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if !summarizer.IsEnabled() {
		return nil
	}

	digest, err := summarizer.GenerateDigest(ctx, records)
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}

	path := filepath.Join(cfg.Output.Dir, base+".digest.md")
	if err := os.WriteFile(path, []byte(llm.RenderMarkdown(digest)), 0o644); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote digest %s (%s)\n", path, summarizer.ProviderName())
	return nil
}

func newFeedClient(cfg *model.Config, log *slog.Logger) *feed.Client {
	return feed.NewClient(feed.Options{
		ServiceURL: cfg.Feed.ServiceURL,
		PublicURL:  cfg.Feed.PublicURL,
		UserAgent:  cfg.HTTP.UserAgent,
		PageSize:   cfg.Feed.PageSize,
		HTTPClient: &http.Client{Timeout: cfg.HTTP.Timeout, Transport: util.NewTransport(cfg.HTTP)},
		Limiter:    worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		Logger:     log,
	})
}

// applyNoCache applies --no-cache, which has no config key of its own
func applyNoCache(cmd *cobra.Command, cfg *model.Config) {
	if f := cmd.Flags().Lookup("no-cache"); f != nil && f.Changed {
		noCache, _ := cmd.Flags().GetBool("no-cache")
		cfg.Cache.Enabled = !noCache
	}
}

func limitLabel(n int) string {
	if n == 0 {
		return "all"
	}
	return fmt.Sprint(n)
}

func printRunHeader(title string, rows [][2]string) {
	fmt.Fprintf(os.Stderr, "\n%s\n  %s\n%s\n\n", banner, title, banner)
	for _, row := range rows {
		fmt.Fprintf(os.Stderr, "  %-13s %s\n", row[0]+":", row[1])
	}
	fmt.Fprintln(os.Stderr)
}
