package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/civicner/internal/cache"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the on-disk link metadata cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired and unreadable cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(newLogger("cache"))
		if err != nil {
			return err
		}
		removed, kept, err := cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL).Prune()
		if err != nil {
			return fmt.Errorf("prune %s: %w", cfg.Cache.Dir, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %s: %d removed, %d kept\n", cfg.Cache.Dir, removed, kept)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the whole cache directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(newLogger("cache"))
		if err != nil {
			return err
		}
		if err := cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL).Clear(); err != nil {
			return fmt.Errorf("clear %s: %w", cfg.Cache.Dir, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared %s\n", cfg.Cache.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
