// Package config loads the launchtower.toml run configuration.
//
// Example:
//
//	plugins  = ["/opt/platform/plugins", "./target/plugins"]
//	features = ["/opt/platform/features"]
//	repositories = ["https://download.eclipse.org/releases/2024-03"]
//	artifacts = "./target/p2-artifacts"
//	prefer_older = ["org.apache.commons.logging"]
//	blocked_bundles = ["org.eclipse.osgi.compatibility.state"]
//	exclude_packages = ["com.ibm."]
//	output = "./target/launch"
//
//	[env]
//	os = "linux"
//	ws = "gtk"
//	arch = "x86_64"
//
//	[cache]
//	ttl = "24h"
//	redis = "localhost:6379"
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	errs "github.com/matzehuels/launchtower/pkg/errors"
	"github.com/matzehuels/launchtower/pkg/osgi"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "launchtower.toml"

// DefaultCacheTTL is how long repository indexes stay cached.
const DefaultCacheTTL = 24 * time.Hour

// Duration is a time.Duration that decodes from TOML strings like "12h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Cache configures the repository index cache.
type Cache struct {
	Dir      string   `toml:"dir"`
	TTL      Duration `toml:"ttl"`
	Redis    string   `toml:"redis"`
	Password string   `toml:"redis_password"`
	DB       int      `toml:"redis_db"`
	Disabled bool     `toml:"disabled"`
}

// Config is a run configuration.
type Config struct {
	Plugins         []string `toml:"plugins"`
	Features        []string `toml:"features"`
	Repositories    []string `toml:"repositories"`
	Artifacts       string   `toml:"artifacts"`
	PreferOlder     []string `toml:"prefer_older"`
	BlockedBundles  []string `toml:"blocked_bundles"`
	ExcludePackages []string `toml:"exclude_packages"`
	Output          string   `toml:"output"`
	WorkingDir      string   `toml:"working_dir"`
	SkipImports     bool     `toml:"skip_imports"`
	Env             osgi.Env `toml:"env"`
	Cache           Cache    `toml:"cache"`
}

// Load decodes the configuration at path. Relative directories are resolved
// against the directory holding the file. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	var c Config
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "config %s", path)
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errs.New(errs.ErrCodeInvalidConfig, "config %s: unknown key %q", path, undecoded[0].String())
	}
	c.resolvePaths(filepath.Dir(path))
	return &c, c.Validate()
}

// LoadOptional loads path if it exists and returns an empty Config otherwise.
func LoadOptional(path string) (*Config, error) {
	c, err := Load(path)
	if errs.Is(err, errs.ErrCodeFileNotFound) {
		return &Config{}, nil
	}
	return c, err
}

// Validate checks repository URLs.
func (c *Config) Validate() error {
	for _, u := range c.Repositories {
		if err := errs.ValidateURL(u); err != nil {
			return err
		}
	}
	for _, name := range c.BlockedBundles {
		if err := errs.ValidateSymbolicName(name); err != nil {
			return errs.Wrap(errs.ErrCodeInvalidConfig, err, "blocked bundle %q", name)
		}
	}
	return nil
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
// cacheRoot is the per-user cache directory.
func (c Config) WithDefaults(cacheRoot string) Config {
	out := c
	if out.Cache.TTL.Duration <= 0 {
		out.Cache.TTL.Duration = DefaultCacheTTL
	}
	if out.Cache.Dir == "" && cacheRoot != "" {
		out.Cache.Dir = filepath.Join(cacheRoot, "index")
	}
	if out.Artifacts == "" && cacheRoot != "" {
		out.Artifacts = filepath.Join(cacheRoot, "artifacts")
	}
	return out
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range c.Plugins {
		c.Plugins[i] = abs(c.Plugins[i])
	}
	for i := range c.Features {
		c.Features[i] = abs(c.Features[i])
	}
	c.Artifacts = abs(c.Artifacts)
	c.Output = abs(c.Output)
	c.WorkingDir = abs(c.WorkingDir)
	c.Cache.Dir = abs(c.Cache.Dir)
}
