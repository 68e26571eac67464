package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/launchtower/pkg/cache"
	"github.com/matzehuels/launchtower/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the repository index cache and downloaded bundles",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "run configuration (default: ./"+config.FileName+" if present)")

	cmd.AddCommand(c.cacheClearCommand(&configPath))
	cmd.AddCommand(c.cachePathCommand(&configPath))

	return cmd
}

// cacheConfig loads the cache-related settings.
func cacheConfig(path string) (config.Config, error) {
	f := repoFlags{configPath: path}
	return f.load()
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand(configPath *string) *cobra.Command {
	var expired, artifacts bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached repository indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cacheConfig(*configPath)
			if err != nil {
				return err
			}

			if _, err := os.Stat(cfg.Cache.Dir); os.IsNotExist(err) {
				printInfo("Cache is empty")
			} else {
				fc, err := cache.NewFileCache(cfg.Cache.Dir)
				if err != nil {
					return fmt.Errorf("open cache: %w", err)
				}
				removed, err := fc.Prune(cmd.Context(), !expired)
				if err != nil {
					return err
				}
				what := "cached indexes"
				if expired {
					what = "expired indexes"
				}
				printSuccess("Removed %d %s", removed, what)
				printDetail("Directory: %s", cfg.Cache.Dir)
			}

			if artifacts && cfg.Artifacts != "" {
				if err := os.RemoveAll(cfg.Artifacts); err != nil {
					return fmt.Errorf("remove artifacts: %w", err)
				}
				printSuccess("Removed downloaded bundles")
				printDetail("Directory: %s", cfg.Artifacts)
			}
			if cfg.Cache.Redis != "" {
				printDetail("Redis entries at %s expire on their own", cfg.Cache.Redis)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&expired, "expired", false, "only remove expired or unreadable entries")
	cmd.Flags().BoolVar(&artifacts, "artifacts", false, "also remove downloaded repository bundles")
	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cacheConfig(*configPath)
			if err != nil {
				return err
			}
			printKeyValue("index", cfg.Cache.Dir)
			printKeyValue("artifacts", cfg.Artifacts)
			if cfg.Cache.Redis != "" {
				printKeyValue("redis", cfg.Cache.Redis)
			}
			return nil
		},
	}
}
