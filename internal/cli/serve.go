package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/civicner/internal/extract"
	"github.com/ppiankov/civicner/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extractor over HTTP",
	Long: `Serve exposes the extractor as a small JSON API:

  POST /v1/extract    {"text": "..."} -> {"locations": [...], "persons": [...]}
  POST /v1/locations  {"text": "..."} -> {"locations": [...]}
  GET  /healthz

The server shuts down gracefully on SIGINT or SIGTERM.

Example:
  civicner serve --bind 0.0.0.0:8080`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), map[string]string{
			"bind":           "server.bind_addr",
			"max-text-bytes": "server.max_text_bytes",
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger("server")
		cfg, err := loadConfig(log)
		if err != nil {
			return err
		}

		ex, err := extract.New(cfg.NLP, log)
		if err != nil {
			return fmt.Errorf("load extractor: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(os.Stderr, "✓ Listening on %s\n", cfg.Server.BindAddr)
		return server.New(ex, cfg.Server, log).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("bind", "127.0.0.1:8080", "listen address")
	serveCmd.Flags().Int64("max-text-bytes", 64*1024, "largest accepted text")
}
