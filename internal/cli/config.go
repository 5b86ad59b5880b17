package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/civicner/internal/model"
)

const banner = "═══════════════════════════════════════════════════════════"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage civicner configuration",
	Long: `Manage civicner configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CIVICNER_*)
3. Config file (~/.civicner/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(newLogger("config"))
		if err != nil {
			return err
		}

		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", used)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		return showConfig(cmd.OutOrStdout(), cfg)
	},
}

func showConfig(w io.Writer, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Fprintln(w, banner)
	fmt.Fprintln(w, "  Current Configuration")
	fmt.Fprintln(w, banner)
	fmt.Fprintln(w)
	fmt.Fprintln(w, string(data))
	fmt.Fprintln(w, banner)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration hierarchy (highest to lowest priority):")
	fmt.Fprintln(w, "  1. CLI flags")
	fmt.Fprintln(w, "  2. Environment variables (CIVICNER_*, BLUESKY_*, TARGET_ACCOUNT, POST_LIMIT, OPENAI_API_KEY)")
	fmt.Fprintln(w, "  3. Config file (~/.civicner/config.yaml)")
	fmt.Fprintln(w, "  4. Defaults")
	fmt.Fprintln(w)
	return nil
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Create ~/.civicner/config.yaml holding every option at its default value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := configDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		path := filepath.Join(dir, "config.yaml")

		if err := writeDefaultConfig(path); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", path)
		fmt.Fprintf(out, "\nTo view the configuration:\n")
		fmt.Fprintf(out, "  civicner config show\n")
		fmt.Fprintf(out, "\nTo customize, edit the file with your preferred editor:\n")
		fmt.Fprintf(out, "  $EDITOR %s\n\n", path)
		return nil
	},
}

// writeDefaultConfig refuses to overwrite an existing file
func writeDefaultConfig(path string) (err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'civicner config show' to view it, or delete it first to recreate", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	printf := func(format string, a ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(f, format, a...)
	}

	printf("# civicner configuration\n")
	printf("#\n")
	printf("# Configuration hierarchy (highest to lowest priority):\n")
	printf("#   1. CLI flags\n")
	printf("#   2. Environment variables (CIVICNER_*)\n")
	printf("#   3. This config file\n")
	printf("#   4. Built-in defaults\n\n")
	printf("%s", data)
	printf("\n# Credentials are read from the environment, never from this file:\n")
	printf("#   export BLUESKY_USERNAME=you.bsky.social\n")
	printf("#   export BLUESKY_PASSWORD=xxxx-xxxx-xxxx-xxxx\n")
	printf("#   export OPENAI_API_KEY=sk-...\n")
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
