// Package storage indexes the local plugin and feature directories of a run.
//
// Directory listings and parsed manifests are memoized for the lifetime of a
// [Storage]; the on-disk layout is assumed not to change during a run. The
// export-package index over every local bundle is built lazily, in parallel,
// on the first [Storage.Exporters] call.
package storage

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	errs "github.com/matzehuels/launchtower/pkg/errors"
	"github.com/matzehuels/launchtower/pkg/osgi"
)

// Options configures a Storage.
type Options struct {
	PluginDirs  []string    // searched in order
	FeatureDirs []string    // searched in order
	PreferOlder []string    // names resolved to their lowest matching version
	Logger      *log.Logger // defaults to log.Default()
}

// Storage looks up bundles and features on disk.
type Storage struct {
	opts        Options
	preferOlder map[string]bool

	mu       sync.Mutex
	listings map[string][]string
	bundles  map[string]*osgi.BundleInfo // by path; nil marks an unparseable entry

	exportOnce sync.Once
	exports    map[string][]*osgi.BundleInfo
	exportErr  error
}

// New creates a Storage over the configured directories.
func New(opts Options) *Storage {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	s := &Storage{
		opts:        opts,
		preferOlder: make(map[string]bool, len(opts.PreferOlder)),
		listings:    make(map[string][]string),
		bundles:     make(map[string]*osgi.BundleInfo),
	}
	for _, n := range opts.PreferOlder {
		s.preferOlder[n] = true
	}
	return s
}

// List returns the sorted entry names of dir. Missing directories list as
// empty. Results are memoized.
func (s *Storage) List(dir string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if names, ok := s.listings[dir]; ok {
		return names
	}
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		s.opts.Logger.Warn("cannot list directory", "dir", dir, "err", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	s.listings[dir] = names
	return names
}

// FindBundle returns the local bundle called name whose version lies in rng.
//
// Directories are searched in order and the first one holding a match wins.
// Within a directory the highest matching version is chosen, or the lowest
// when name is in the prefer-older set. The returned value is a copy the
// caller may modify.
func (s *Storage) FindBundle(name string, rng osgi.VersionRange) (*osgi.BundleInfo, bool) {
	for _, dir := range s.opts.PluginDirs {
		var candidates []*osgi.BundleInfo
		for _, b := range s.bundlesIn(dir, name) {
			if rng.Includes(b.ParsedVersion()) {
				candidates = append(candidates, b)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		best := s.pick(name, candidates)
		if len(candidates) > 1 {
			s.opts.Logger.Debug("multiple local candidates", "bundle", name, "dir", dir,
				"count", len(candidates), "chosen", best.Version)
		}
		return best.Clone(), true
	}
	return nil, false
}

func (s *Storage) pick(name string, candidates []*osgi.BundleInfo) *osgi.BundleInfo {
	best := candidates[0]
	older := s.preferOlder[name]
	for _, c := range candidates[1:] {
		cmp := c.ParsedVersion().Compare(best.ParsedVersion())
		if (!older && cmp > 0) || (older && cmp < 0) {
			best = c
		}
	}
	return best
}

// bundlesIn parses every entry of dir whose name, ignoring the version
// suffix, is name.
func (s *Storage) bundlesIn(dir, name string) []*osgi.BundleInfo {
	var out []*osgi.BundleInfo
	for _, entry := range s.List(dir) {
		if entryName(entry) != name {
			continue
		}
		if b := s.bundle(filepath.Join(dir, entry)); b != nil && b.Name == name {
			out = append(out, b)
		}
	}
	return out
}

// bundle parses the manifest at path once. Unparseable bundles are logged
// and remembered as nil.
func (s *Storage) bundle(path string) *osgi.BundleInfo {
	s.mu.Lock()
	b, ok := s.bundles[path]
	s.mu.Unlock()
	if ok {
		return b
	}

	b, err := osgi.ReadBundle(path)
	if err != nil {
		if errs.Is(err, errs.ErrCodeInvalidManifest) {
			s.opts.Logger.Debug("skipping bundle", "path", path, "err", err)
		} else {
			s.opts.Logger.Warn("cannot read bundle", "path", path, "err", err)
		}
		b = nil
	}

	s.mu.Lock()
	s.bundles[path] = b
	s.mu.Unlock()
	return b
}

// entryName strips the ".jar" extension and version suffix from a plugin or
// feature directory entry.
func entryName(entry string) string {
	name, _ := osgi.SplitVersionSuffix(entry)
	return name
}

// isBundleEntry reports whether entry looks like a bundle: a jar or a
// directory.
func isBundleEntry(dir, entry string) bool {
	if strings.HasSuffix(entry, ".jar") {
		return true
	}
	info, err := os.Stat(filepath.Join(dir, entry))
	return err == nil && info.IsDir()
}

// Index parses every local bundle and builds the export-package index. It is
// called implicitly by Exporters; calling it first surfaces parse failures.
// The returned error aggregates every bundle that could not be read.
func (s *Storage) Index(ctx context.Context) error {
	s.exportOnce.Do(func() { s.exportErr = s.buildExports(ctx) })
	return s.exportErr
}

func (s *Storage) buildExports(ctx context.Context) error {
	var paths []string
	for _, dir := range s.opts.PluginDirs {
		for _, entry := range s.List(dir) {
			if isBundleEntry(dir, entry) {
				paths = append(paths, filepath.Join(dir, entry))
			}
		}
	}

	parsed := make([]*osgi.BundleInfo, len(paths))
	failures := make([]error, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := osgi.ReadBundle(path)
			if err != nil {
				failures[i] = err
			}
			parsed[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	exports := make(map[string][]*osgi.BundleInfo)
	s.mu.Lock()
	for i, b := range parsed {
		if _, ok := s.bundles[paths[i]]; !ok {
			s.bundles[paths[i]] = b
		}
		if b == nil {
			continue
		}
		for _, e := range b.ExportedPackages {
			list := exports[e.Name]
			if !slices.Contains(list, b) {
				exports[e.Name] = append(list, b)
			}
		}
	}
	s.mu.Unlock()
	s.exports = exports

	err := multierr.Combine(failures...)
	if err != nil {
		s.opts.Logger.Debug("some local bundles could not be indexed", "count", len(multierr.Errors(err)))
	}
	return err
}

// Exporters returns copies of every local bundle exporting pkg at a version
// inside rng, in directory order.
func (s *Storage) Exporters(ctx context.Context, pkg string, rng osgi.VersionRange) []*osgi.BundleInfo {
	_ = s.Index(ctx)
	var out []*osgi.BundleInfo
	for _, b := range s.exports[pkg] {
		if b.Exports(pkg, rng) {
			out = append(out, b.Clone())
		}
	}
	return out
}

// FindFeature returns the local feature called name, choosing the highest
// version when a directory holds several.
func (s *Storage) FindFeature(name string) (*osgi.FeatureInfo, bool) {
	for _, dir := range s.opts.FeatureDirs {
		var best *osgi.FeatureInfo
		for _, entry := range s.List(dir) {
			if entryName(entry) != name {
				continue
			}
			f, err := osgi.ReadFeature(filepath.Join(dir, entry))
			if err != nil {
				s.opts.Logger.Debug("skipping feature", "path", filepath.Join(dir, entry), "err", err)
				continue
			}
			if f.Name != name {
				continue
			}
			if best == nil || osgi.LenientVersion(f.Version).Compare(osgi.LenientVersion(best.Version)) > 0 {
				best = f
			}
		}
		if best != nil {
			return best, true
		}
	}
	return nil, false
}
