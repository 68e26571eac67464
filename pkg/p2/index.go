package p2

import (
	"context"
	"fmt"
	neturl "net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/launchtower/pkg/cache"
	errs "github.com/matzehuels/launchtower/pkg/errors"
	"github.com/matzehuels/launchtower/pkg/observability"
	"github.com/matzehuels/launchtower/pkg/osgi"
)

// indexSchema versions the cached node encoding.
const indexSchema = 1

// DefaultParallelism bounds concurrent child indexing per composite.
const DefaultParallelism = 8

// Options configures indexing.
type Options struct {
	Env         osgi.Env    // units whose filter rejects Env are dropped
	Refresh     bool        // ignore cached indexes
	Parallelism int         // concurrent children per composite (default: 8)
	ArtifactDir string      // where Materialize stores jars
	Logger      *log.Logger // defaults to log.Default()
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return opts
}

// Node is one indexed repository location.
type Node struct {
	URL        string
	Descriptor string // descriptor file that was read
	Children   []*Node
	Units      int // units read at a leaf
}

// IsComposite reports whether n listed child repositories.
func (n *Node) IsComposite() bool {
	return strings.HasPrefix(n.Descriptor, "composite")
}

// nodeRecord is the cached form of one location.
type nodeRecord struct {
	Descriptor string   `json:"descriptor"`
	Children   []string `json:"children,omitempty"`
	Units      []Unit   `json:"units,omitempty"`
}

// Index is the merged view over all configured repositories.
type Index struct {
	client  *Client
	opts    Options
	fetcher *Fetcher
	props   map[string]string
	roots   []*Node

	mu       sync.Mutex
	visited  map[string]bool
	broken   map[string]error // locations whose indexing failed
	bundles  map[string][]*RemoteBundle
	features map[string][]*osgi.FeatureInfo
	failures []error

	pkgOnce   sync.Once
	byPackage map[string][]*RemoteBundle
}

// NewIndex indexes every repository in urls. A repository root that cannot
// be indexed at all yields a REPOSITORY_INIT error, as does a composite root
// none of whose children could be indexed. Failing children of an otherwise
// usable composite are logged and reported by [Index.Err].
func NewIndex(ctx context.Context, client *Client, urls []string, opts Options) (*Index, error) {
	opts = opts.WithDefaults()
	idx := &Index{
		client:   client,
		opts:     opts,
		props:    opts.Env.Properties(),
		visited:  make(map[string]bool),
		broken:   make(map[string]error),
		bundles:  make(map[string][]*RemoteBundle),
		features: make(map[string][]*osgi.FeatureInfo),
	}
	if opts.ArtifactDir != "" {
		idx.fetcher = NewFetcher(client, opts.ArtifactDir, opts.Logger)
	}

	for _, raw := range urls {
		if err := errs.ValidateURL(raw); err != nil {
			return nil, errs.Wrap(errs.ErrCodeRepositoryInit, err, "repository %s", raw)
		}
		root, err := idx.indexNode(ctx, normalize(raw))
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeRepositoryInit, err, "repository %s", raw)
		}
		idx.roots = append(idx.roots, root)
	}
	return idx, nil
}

// Roots returns the indexed repository trees.
func (idx *Index) Roots() []*Node { return idx.roots }

// Err aggregates failures of composite children. It is nil when every
// location was indexed.
func (idx *Index) Err() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return multierr.Combine(idx.failures...)
}

func (idx *Index) indexNode(ctx context.Context, loc string) (*Node, error) {
	idx.mu.Lock()
	seen, prev := idx.visited[loc], idx.broken[loc]
	idx.visited[loc] = true
	idx.mu.Unlock()
	if prev != nil {
		return nil, prev
	}
	if seen {
		// indexed already, or still in progress on another branch
		return &Node{URL: loc}, nil
	}

	node, err := idx.indexLocation(ctx, loc)
	if err != nil {
		idx.mu.Lock()
		idx.broken[loc] = err
		idx.mu.Unlock()
		return nil, err
	}
	return node, nil
}

func (idx *Index) indexLocation(ctx context.Context, loc string) (*Node, error) {
	start := time.Now()
	rec, err := idx.load(ctx, loc)
	node := &Node{URL: loc, Descriptor: rec.Descriptor, Units: len(rec.Units)}
	observability.Resolve().OnIndexComplete(ctx, loc, len(rec.Units), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if len(rec.Units) > 0 {
		idx.merge(loc, rec.Units)
		idx.opts.Logger.Debug("indexed repository", "url", loc, "units", len(rec.Units))
	}
	if len(rec.Children) == 0 {
		return node, nil
	}

	var (
		mu        sync.Mutex
		childErrs []error
	)
	childFailed := func(err error) {
		idx.fail(err)
		mu.Lock()
		childErrs = append(childErrs, err)
		mu.Unlock()
	}

	node.Children = make([]*Node, len(rec.Children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.opts.Parallelism)
	for i, child := range rec.Children {
		childURL, err := resolveChild(loc, child)
		if err != nil {
			childFailed(fmt.Errorf("%s: child %q: %w", loc, child, err))
			continue
		}
		g.Go(func() error {
			n, err := idx.indexNode(gctx, childURL)
			if err != nil {
				idx.opts.Logger.Warn("skipping child repository", "url", childURL, "err", err)
				childFailed(fmt.Errorf("%s: %w", childURL, err))
				return nil
			}
			node.Children[i] = n
			return nil
		})
	}
	_ = g.Wait()
	node.Children = compact(node.Children)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(node.Children) == 0 {
		return nil, fmt.Errorf("%s: no child repository could be indexed: %w", loc, multierr.Combine(childErrs...))
	}
	return node, nil
}

// load reads the descriptor of loc, from cache when possible.
func (idx *Index) load(ctx context.Context, loc string) (nodeRecord, error) {
	var rec nodeRecord
	key := idx.client.Keyer().IndexKey(loc, cache.IndexKeyOpts{Schema: indexSchema})
	err := idx.client.Cached(ctx, key, idx.opts.Refresh, &rec, func() error {
		var err error
		rec, err = idx.discover(ctx, loc)
		return err
	})
	return rec, err
}

// discover tries composite descriptors first, then content descriptors.
func (idx *Index) discover(ctx context.Context, loc string) (nodeRecord, error) {
	var lastErr error
	for _, name := range compositeDescriptors {
		data, err := idx.fetchDescriptor(ctx, loc, name)
		if err != nil {
			lastErr = err
			continue
		}
		if data == nil {
			continue
		}
		children, err := decodeComposite(name, data)
		if err != nil {
			return nodeRecord{}, err
		}
		return nodeRecord{Descriptor: name, Children: children}, nil
	}
	for _, name := range contentDescriptors {
		data, err := idx.fetchDescriptor(ctx, loc, name)
		if err != nil {
			lastErr = err
			continue
		}
		if data == nil {
			continue
		}
		units, err := decodeContent(name, data)
		if err != nil {
			return nodeRecord{}, err
		}
		return nodeRecord{Descriptor: name, Units: units}, nil
	}
	if lastErr != nil {
		return nodeRecord{}, lastErr
	}
	return nodeRecord{}, fmt.Errorf("%w: no repository descriptor at %s", cache.ErrNotFound, loc)
}

// fetchDescriptor returns nil data when the descriptor does not exist.
func (idx *Index) fetchDescriptor(ctx context.Context, loc, name string) ([]byte, error) {
	u := loc + "/" + name
	ok, err := idx.client.Exists(ctx, u)
	if err != nil || !ok {
		return nil, err
	}
	return idx.client.Get(ctx, u)
}

func (idx *Index) fail(err error) {
	idx.mu.Lock()
	idx.failures = append(idx.failures, err)
	idx.mu.Unlock()
}

// merge adds the units of one leaf. The first leaf to offer a given
// (name, version) wins.
func (idx *Index) merge(loc string, units []Unit) {
	var bundles []*RemoteBundle
	var features []*osgi.FeatureInfo
	for i := range units {
		u := &units[i]
		if !idx.admits(u.Filter) {
			continue
		}
		switch {
		case u.IsFeature():
			features = append(features, idx.featureFromUnit(u))
		case u.IsBundle():
			bundles = append(bundles, &RemoteBundle{Info: idx.bundleFromUnit(u), RepoURL: loc})
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, rb := range bundles {
		if !containsVersion(idx.bundles[rb.Info.Name], rb.Info.Version) {
			idx.bundles[rb.Info.Name] = append(idx.bundles[rb.Info.Name], rb)
		}
	}
	for _, f := range features {
		dup := false
		for _, e := range idx.features[f.Name] {
			dup = dup || e.Version == f.Version
		}
		if !dup {
			idx.features[f.Name] = append(idx.features[f.Name], f)
		}
	}
}

func (idx *Index) admits(filter string) bool {
	if filter == "" {
		return true
	}
	f, err := osgi.ParseFilter(filter)
	if err != nil {
		idx.opts.Logger.Debug("ignoring malformed filter", "filter", filter, "err", err)
		return true
	}
	return f.Match(idx.props)
}

func (idx *Index) bundleFromUnit(u *Unit) *osgi.BundleInfo {
	b := &osgi.BundleInfo{Name: u.ID, Version: u.Version, Remote: true, StartLevel: u.StartLevel}
	for _, p := range u.Provides {
		switch p.Namespace {
		case nsPackage:
			b.ExportedPackages = append(b.ExportedPackages, osgi.PackageExport{Name: p.Name, Version: osgi.LenientVersion(p.Version)})
		case nsFragment:
			b.FragmentHost = &osgi.BundleRequirement{Name: p.Name}
		}
	}
	for _, q := range u.Requires {
		if !idx.admits(q.Filter) {
			continue
		}
		rng, err := osgi.ParseRange(q.Range)
		if err != nil {
			rng = osgi.AnyVersion
		}
		switch q.Namespace {
		case nsBundle:
			if !q.Optional {
				b.RequiredBundles = append(b.RequiredBundles, osgi.BundleRequirement{Name: q.Name, Range: rng})
			}
		case nsPackage:
			b.ImportedPackages = append(b.ImportedPackages, osgi.PackageImport{Name: q.Name, Range: rng, Optional: q.Optional})
		}
	}
	return b
}

func (idx *Index) featureFromUnit(u *Unit) *osgi.FeatureInfo {
	f := &osgi.FeatureInfo{Name: strings.TrimSuffix(u.ID, featureGroupSuffix), Version: u.Version, Remote: true}
	for _, q := range u.Requires {
		if q.Namespace != nsIU || !idx.admits(q.Filter) {
			continue
		}
		switch {
		case strings.HasSuffix(q.Name, featureJarSuffix):
		case strings.HasSuffix(q.Name, featureGroupSuffix):
			f.Features = append(f.Features, osgi.FeatureRef{
				Name:     strings.TrimSuffix(q.Name, featureGroupSuffix),
				Version:  pinnedVersion(q.Range),
				Optional: q.Optional,
			})
		default:
			f.Plugins = append(f.Plugins, osgi.FeaturePlugin{Name: q.Name, Version: pinnedVersion(q.Range)})
		}
	}
	return f
}

// pinnedVersion returns v for an exact range "[v,v]", else "".
func pinnedVersion(rng string) string {
	if !strings.HasPrefix(rng, "[") || !strings.HasSuffix(rng, "]") {
		return ""
	}
	lo, hi, ok := strings.Cut(rng[1:len(rng)-1], ",")
	if !ok || lo != hi {
		return ""
	}
	return lo
}

// Bundles returns every indexed version of name.
func (idx *Index) Bundles(name string) []*RemoteBundle {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return append([]*RemoteBundle(nil), idx.bundles[name]...)
}

// BestBundle returns the highest version of name inside rng, or nil.
func (idx *Index) BestBundle(name string, rng osgi.VersionRange) *RemoteBundle {
	var best *RemoteBundle
	for _, rb := range idx.Bundles(name) {
		v := rb.Info.ParsedVersion()
		if rng.Includes(v) && (best == nil || v.Compare(best.Info.ParsedVersion()) > 0) {
			best = rb
		}
	}
	return best
}

// Exporters returns every indexed bundle exporting pkg at a version in rng.
func (idx *Index) Exporters(pkg string, rng osgi.VersionRange) []*RemoteBundle {
	idx.pkgOnce.Do(idx.buildPackageIndex)
	var out []*RemoteBundle
	for _, rb := range idx.byPackage[pkg] {
		if rb.Info.Exports(pkg, rng) {
			out = append(out, rb)
		}
	}
	return out
}

// BestExporter returns the highest-versioned exporter of pkg in rng whose
// name is not rejected by skip. Ties on version go to the lowest name.
func (idx *Index) BestExporter(pkg string, rng osgi.VersionRange, skip func(name string) bool) *RemoteBundle {
	var best *RemoteBundle
	for _, rb := range idx.Exporters(pkg, rng) {
		if skip != nil && skip(rb.Info.Name) {
			continue
		}
		if best == nil {
			best = rb
			continue
		}
		switch c := rb.Info.ParsedVersion().Compare(best.Info.ParsedVersion()); {
		case c > 0, c == 0 && rb.Info.Name < best.Info.Name:
			best = rb
		}
	}
	return best
}

func (idx *Index) buildPackageIndex() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byPackage = make(map[string][]*RemoteBundle)
	for _, name := range sortedNames(idx.bundles) {
		for _, rb := range idx.bundles[name] {
			seen := make(map[string]bool)
			for _, e := range rb.Info.ExportedPackages {
				if !seen[e.Name] {
					seen[e.Name] = true
					idx.byPackage[e.Name] = append(idx.byPackage[e.Name], rb)
				}
			}
		}
	}
}

// Feature returns the highest version of the feature called name.
func (idx *Index) Feature(name string) (*osgi.FeatureInfo, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var best *osgi.FeatureInfo
	for _, f := range idx.features[name] {
		if best == nil || osgi.LenientVersion(f.Version).Compare(osgi.LenientVersion(best.Version)) > 0 {
			best = f
		}
	}
	return best, best != nil
}

// Stats summarizes an index.
type Stats struct {
	Nodes      int
	Leaves     int
	Bundles    int
	BundleKeys int
	Features   int
	Packages   int
	Fetched    int // bundles whose artifact has been downloaded
}

// Stats counts nodes and indexed entries.
func (idx *Index) Stats() Stats {
	idx.pkgOnce.Do(idx.buildPackageIndex)
	var s Stats
	var walk func(n *Node)
	walk = func(n *Node) {
		s.Nodes++
		if !n.IsComposite() && n.Descriptor != "" {
			s.Leaves++
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range idx.roots {
		walk(r)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	s.Bundles = len(idx.bundles)
	for _, set := range idx.bundles {
		s.BundleKeys += len(set)
		for _, rb := range set {
			if rb.materialized() {
				s.Fetched++
			}
		}
	}
	s.Features = len(idx.features)
	s.Packages = len(idx.byPackage)
	return s
}

func normalize(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// resolveChild resolves a composite child location against its parent.
func resolveChild(parent, child string) (string, error) {
	base, err := neturl.Parse(parent + "/")
	if err != nil {
		return "", err
	}
	ref, err := neturl.Parse(strings.TrimSpace(child))
	if err != nil {
		return "", err
	}
	return normalize(base.ResolveReference(ref).String()), nil
}

func containsVersion(set []*RemoteBundle, version string) bool {
	for _, rb := range set {
		if rb.Info.Version == version {
			return true
		}
	}
	return false
}

func compact(nodes []*Node) []*Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
