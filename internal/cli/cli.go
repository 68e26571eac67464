// Package cli implements the launchtower command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/launchtower/pkg/buildinfo"
	"github.com/matzehuels/launchtower/pkg/cache"
	"github.com/matzehuels/launchtower/pkg/config"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "launchtower"

	// redisKeyPrefix scopes keys in a Redis instance shared with other tools.
	redisKeyPrefix = appName + ":"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Launchtower resolves the bundles an OSGi product needs to start",
		Long: `Launchtower walks a product descriptor, resolves every plugin and feature it
needs from local plugin directories and p2 repositories, and writes the
resolved launch configuration along with dependency diagnostics.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.indexCommand())
	root.AddCommand(c.manifestCommand())
	root.AddCommand(c.showCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// versionCommand prints build information.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(buildinfo.String())
		},
	}
}

// =============================================================================
// Cache Factory
// =============================================================================

// newCache picks the index cache for a run: none when disabled, Redis when an
// address is configured and reachable, the file cache otherwise. Redis keys
// are scoped so the instance can be shared.
func (c *CLI) newCache(ctx context.Context, cfg config.Config, noCache bool) (cache.Cache, cache.Keyer, error) {
	if noCache || cfg.Cache.Disabled {
		return cache.NewNullCache(), cache.NewDefaultKeyer(), nil
	}

	if cfg.Cache.Redis != "" {
		var rc cache.Cache
		err := cache.RetryWithBackoff(ctx, func() error {
			var err error
			rc, err = cache.NewRedisCache(ctx, cache.RedisConfig{
				Addr:     cfg.Cache.Redis,
				Password: cfg.Cache.Password,
				DB:       cfg.Cache.DB,
			})
			return err
		})
		if err == nil {
			c.Logger.Debug("using redis cache", "addr", cfg.Cache.Redis)
			return rc, cache.NewScopedKeyer(cache.NewDefaultKeyer(), redisKeyPrefix), nil
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		c.Logger.Warn("redis unavailable, falling back to file cache", "addr", cfg.Cache.Redis, "err", err)
	}

	if cfg.Cache.Dir == "" {
		return cache.NewNullCache(), cache.NewDefaultKeyer(), nil
	}
	fc, err := cache.NewFileCache(cfg.Cache.Dir)
	if err != nil {
		return nil, nil, err
	}
	return fc, cache.NewDefaultKeyer(), nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/launchtower/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
