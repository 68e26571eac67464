package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/matzehuels/launchtower/pkg/buildinfo"
	"github.com/matzehuels/launchtower/pkg/config"
	"github.com/matzehuels/launchtower/pkg/observability"
	"github.com/matzehuels/launchtower/pkg/p2"
)

// repoFlags are the flags shared by commands that read repositories.
type repoFlags struct {
	configPath  string
	repos       []string
	artifacts   string
	refresh     bool
	noCache     bool
	redis       string
	metricsFile string
	os, ws      string
	arch        string
}

func (f *repoFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "run configuration (default: ./"+config.FileName+" if present)")
	fs.StringArrayVar(&f.repos, "repo", nil, "p2 repository URL (repeatable)")
	fs.StringVar(&f.artifacts, "artifacts", "", "directory for downloaded repository bundles")
	fs.BoolVar(&f.refresh, "refresh", false, "re-index repositories instead of using the cache")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the repository index cache")
	fs.StringVar(&f.redis, "redis", "", "Redis address for a shared index cache")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	fs.StringVar(&f.os, "os", "", "target operating system (e.g. linux, win32, macosx)")
	fs.StringVar(&f.ws, "ws", "", "target windowing system (e.g. gtk, win32, cocoa)")
	fs.StringVar(&f.arch, "arch", "", "target architecture (e.g. x86_64, aarch64)")
}

// load reads the configuration file and applies flag overrides on top.
// Flags that are set replace the file value; they do not append to it.
func (f *repoFlags) load() (config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.LoadOptional(config.FileName)
	}
	if err != nil {
		return config.Config{}, err
	}

	if len(f.repos) > 0 {
		cfg.Repositories = f.repos
	}
	if f.artifacts != "" {
		cfg.Artifacts = absPath(f.artifacts)
	}
	if f.redis != "" {
		cfg.Cache.Redis = f.redis
	}
	if f.os != "" {
		cfg.Env.OS = f.os
	}
	if f.ws != "" {
		cfg.Env.WS = f.ws
	}
	if f.arch != "" {
		cfg.Env.Arch = f.arch
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	root, _ := cacheDir()
	return cfg.WithDefaults(root), nil
}

// openIndex indexes the configured repositories. It returns a nil index when
// none are configured. The returned close function releases the cache.
func (c *CLI) openIndex(ctx context.Context, cfg config.Config, f *repoFlags) (*p2.Index, func(), error) {
	if len(cfg.Repositories) == 0 {
		return nil, func() {}, nil
	}

	store, keyer, err := c.newCache(ctx, cfg, f.noCache)
	if err != nil {
		return nil, nil, err
	}
	closeCache := func() { _ = store.Close() }

	client := p2.NewClient(store, keyer, cfg.Cache.TTL.Duration, map[string]string{
		"User-Agent": buildinfo.UserAgent(appName),
	})

	prog := newProgress(c.Logger)
	idx, err := p2.NewIndex(ctx, client, cfg.Repositories, p2.Options{
		Env:         cfg.Env,
		Refresh:     f.refresh,
		ArtifactDir: cfg.Artifacts,
		Logger:      c.Logger,
	})
	if err != nil {
		closeCache()
		return nil, nil, err
	}
	if err := idx.Err(); err != nil {
		c.Logger.Warn("some repository locations could not be indexed", "err", err)
	}
	stats := idx.Stats()
	prog.done(fmt.Sprintf("Indexed %d repositories, %d bundles", len(cfg.Repositories), stats.BundleKeys))
	return idx, closeCache, nil
}

// metrics registers Prometheus-backed hooks when path is set and returns a
// function that writes the textfile. With an empty path both are no-ops.
func (c *CLI) metrics(path string) func() {
	if path == "" {
		return func() {}
	}
	hooks := observability.NewPrometheusHooks(prometheus.NewRegistry())
	observability.SetResolveHooks(hooks)
	observability.SetCacheHooks(hooks)
	observability.SetHTTPHooks(hooks)
	return func() {
		if err := hooks.WriteTextfile(path); err != nil {
			c.Logger.Warn("write metrics", "path", path, "err", err)
			return
		}
		printFile(path)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
