package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/civicner/internal/logger"
	"github.com/ppiankov/civicner/internal/model"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=..."
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "civicner",
	Short: "civicner - UK place and role tagging for Bluesky posts",
	Long: `civicner reads posts from a Bluesky account and tags each one with the
UK places and the people (with their civic roles) it mentions.

Places come from a statistical NER model, a UK gazetteer and UK postcode
patterns. People are classified as MP, Councillor, Candidate, Leader,
Deputy Leader, Political Figure or Person from the words around the name.

Tags are mechanical. civicner does not check whether a post is accurate.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "civicner v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.civicner/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := registerDefaults(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CIVICNER_FEED_TARGET_ACCOUNT overrides feed.target_account
	viper.SetEnvPrefix("CIVICNER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".civicner"), nil
}

// registerDefaults seeds viper with every key of the default config so that
// environment variables resolve for keys absent from the config file
func registerDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	for key, value := range tree {
		v.SetDefault(key, value)
	}
	return nil
}

// bindFlags maps a command's flags onto config keys. Binding happens when the
// command runs so commands sharing a key do not overwrite each other.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// loadConfig resolves flags, env, config file and defaults into a validated Config
func loadConfig(log *slog.Logger) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnv(cfg, os.Getenv, log)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv reads the plain environment variables the scraper has always
// accepted. They only fill values nothing else has set.
func applyEnv(cfg *model.Config, getenv func(string) string, log *slog.Logger) {
	log = logger.OrDiscard(log)

	fill := func(dst *string, name string) {
		if *dst == "" {
			*dst = strings.TrimSpace(getenv(name))
		}
	}
	fill(&cfg.Feed.Username, "BLUESKY_USERNAME")
	fill(&cfg.Feed.Password, "BLUESKY_PASSWORD")
	fill(&cfg.Feed.TargetAccount, "TARGET_ACCOUNT")
	fill(&cfg.LLM.APIKey, "OPENAI_API_KEY")

	if cfg.Feed.Limit == 0 {
		limit, err := parsePostLimit(getenv("POST_LIMIT"))
		if err != nil {
			log.Warn("ignoring POST_LIMIT, fetching all posts", "error", err)
		}
		cfg.Feed.Limit = limit
	}
}

// parsePostLimit treats "", "ALL" and "0" as no limit
func parsePostLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid POST_LIMIT %q", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative POST_LIMIT %d", n)
	}
	return n, nil
}

func newLogger(component string) *slog.Logger {
	return logger.New(component, verbose)
}
