package resolve

import (
	"context"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/launchtower/pkg/depgraph"
	"github.com/matzehuels/launchtower/pkg/exclude"
	"github.com/matzehuels/launchtower/pkg/observability"
	"github.com/matzehuels/launchtower/pkg/osgi"
	"github.com/matzehuels/launchtower/pkg/p2"
	"github.com/matzehuels/launchtower/pkg/result"
)

// Local finds bundles and features in local directories.
type Local interface {
	FindBundle(name string, rng osgi.VersionRange) (*osgi.BundleInfo, bool)
	FindFeature(name string) (*osgi.FeatureInfo, bool)
	Exporters(ctx context.Context, pkg string, rng osgi.VersionRange) []*osgi.BundleInfo
}

// Remote finds bundles and features in indexed repositories.
type Remote interface {
	BestBundle(name string, rng osgi.VersionRange) *p2.RemoteBundle
	BestExporter(pkg string, rng osgi.VersionRange, skip func(name string) bool) *p2.RemoteBundle
	Feature(name string) (*osgi.FeatureInfo, bool)
	Materialize(ctx context.Context, rb *p2.RemoteBundle) (*osgi.BundleInfo, error)
}

// Resolver holds the lookup sources shared by resolution runs.
type Resolver struct {
	local   Local
	remote  Remote
	opts    Options
	blocked map[string]bool
}

// New creates a Resolver. remote may be nil when no repository is configured.
func New(local Local, remote Remote, opts Options) *Resolver {
	opts = opts.WithDefaults()
	blocked := make(map[string]bool, len(opts.BlockedBundles))
	for _, name := range opts.BlockedBundles {
		blocked[name] = true
	}
	return &Resolver{local: local, remote: remote, opts: opts, blocked: blocked}
}

type pkgState int

const (
	pkgPending pkgState = iota + 1
	pkgResolved
	pkgFailed
)

type pkgUndo struct {
	key  string
	prev pkgState
}

// Run is one resolution into a Result.
type Run struct {
	r      *Resolver
	ctx    context.Context
	log    *log.Logger
	root   *result.Result
	report *Report

	active    map[string]bool // features being resolved
	fragments map[string]bool // plugins declared as fragments
	packages  map[string]pkgState
	scanned   map[string]bool // bundles whose imports were processed

	// Inside speculative branches (depth > 0), package states are journaled
	// and side effects are deferred until the outermost fork merges.
	depth    int
	undo     []pkgUndo
	deferred []func()
}

// Start begins a run that adds to res.
func (r *Resolver) Start(ctx context.Context, res *result.Result) *Run {
	return &Run{
		r:         r,
		ctx:       ctx,
		log:       r.opts.Logger,
		root:      res,
		report:    newReport(),
		active:    make(map[string]bool),
		fragments: make(map[string]bool),
		packages:  make(map[string]pkgState),
		scanned:   make(map[string]bool),
	}
}

// Report returns what the run failed to resolve so far.
func (run *Run) Report() *Report { return run.report }

// Bundle resolves name and its required bundles into the result. A positive
// startLevel is recorded on the bundle, also when it is already present.
func (run *Run) Bundle(name string, rng osgi.VersionRange, startLevel int, from string) bool {
	return run.bundle(run.root, name, rng, startLevel, from, false)
}

// Plugin resolves a plugin entry of a product or feature. A pinned version
// is preferred; when no bundle has it, any version is accepted.
func (run *Run) Plugin(name, version string, fragment bool, startLevel int, from string) bool {
	rng := pinned(version)
	if !rng.IsAny() && !run.available(name, rng) {
		run.log.Debug("pinned version unavailable, accepting any", "bundle", name, "version", version)
		rng = osgi.AnyVersion
	}
	if fragment {
		run.fragments[name] = true
	}
	return run.bundle(run.root, name, rng, startLevel, from, false)
}

// bundle resolves name into s. In strict mode a missing required bundle
// fails the call; otherwise misses are reported and resolution goes on.
func (run *Run) bundle(s result.Store, name string, rng osgi.VersionRange, startLevel int, from string, strict bool) bool {
	if name == exclude.SystemBundle {
		return true
	}
	if run.ctx.Err() != nil {
		return false
	}

	if existing := result.Lookup(s, name, rng); existing != nil {
		if startLevel > 0 && existing.StartLevel == 0 {
			b := existing.Clone()
			b.StartLevel = startLevel
			s.AddBundle(b)
		}
		run.edge(from, name, depgraph.DirectDependency)
		return true
	}

	b, source := run.find(name, rng)
	if b == nil {
		run.missBundle(name, rng, from, strict)
		return false
	}
	if startLevel > 0 {
		b.StartLevel = startLevel
	}
	s.AddBundle(b)
	run.edge(from, name, depgraph.DirectDependency)
	run.resolved(b, source)
	return run.requirements(s, b, strict)
}

// requirements resolves the fragment host and required bundles of b.
func (run *Run) requirements(s result.Store, b *osgi.BundleInfo, strict bool) bool {
	if h := b.FragmentHost; h != nil {
		if !run.bundle(s, h.Name, h.Range, 0, b.Name, strict) && strict {
			return false
		}
	}
	for _, req := range b.RequiredBundles {
		if !run.bundle(s, req.Name, req.Range, 0, b.Name, strict) && strict {
			return false
		}
	}
	return true
}

// find looks for name locally, then remotely. The returned bundle is owned
// by the caller.
func (run *Run) find(name string, rng osgi.VersionRange) (*osgi.BundleInfo, string) {
	if b, ok := run.r.local.FindBundle(name, rng); ok {
		return b, observability.SourceLocal
	}
	if run.r.remote == nil {
		return nil, ""
	}
	rb := run.r.remote.BestBundle(name, rng)
	if rb == nil {
		return nil, ""
	}
	b, err := run.r.remote.Materialize(run.ctx, rb)
	if err != nil {
		run.log.Warn("fetch failed", "bundle", rb.Info.Key(), "err", err)
		return nil, ""
	}
	return b, observability.SourceRemote
}

// available reports whether find would succeed without fetching anything.
func (run *Run) available(name string, rng osgi.VersionRange) bool {
	if _, ok := run.r.local.FindBundle(name, rng); ok {
		return true
	}
	return run.r.remote != nil && run.r.remote.BestBundle(name, rng) != nil
}

func (run *Run) missBundle(name string, rng osgi.VersionRange, from string, strict bool) {
	if strict {
		run.log.Debug("bundle not found in candidate branch", "bundle", name, "range", rng, "from", from)
		return
	}
	run.log.Warn("bundle not found", "bundle", name, "range", rng, "from", from)
	run.report.Bundles = append(run.report.Bundles, Miss{Name: name, Range: rangeString(rng), From: from})
	observability.Resolve().OnUnresolved(run.ctx, observability.KindBundle, name)
}

// Feature resolves the feature called name with its nested features and
// plugins.
func (run *Run) Feature(name, from string) bool {
	return run.feature(name, from, false)
}

func (run *Run) feature(name, from string, optional bool) bool {
	if _, ok := run.root.Feature(name); ok {
		run.edge(from, name, depgraph.DirectDependency)
		return true
	}
	if run.active[name] {
		run.log.Warn("feature cycle", "feature", name, "from", from)
		if !slices.Contains(run.report.Cycles, name) {
			run.report.Cycles = append(run.report.Cycles, name)
		}
		return true
	}
	if run.ctx.Err() != nil {
		return false
	}

	f, ok := run.r.local.FindFeature(name)
	if !ok && run.r.remote != nil {
		f, ok = run.r.remote.Feature(name)
	}
	if !ok {
		if optional {
			run.log.Debug("optional feature not found", "feature", name, "from", from)
			return false
		}
		run.log.Warn("feature not found", "feature", name, "from", from)
		run.report.Features = append(run.report.Features, Miss{Name: name, From: from})
		observability.Resolve().OnUnresolved(run.ctx, observability.KindFeature, name)
		return false
	}

	run.active[name] = true
	defer delete(run.active, name)
	run.edge(from, name, depgraph.DirectDependency)

	env := run.r.opts.Env
	for _, ref := range f.Features {
		if env.Matches(ref.OS, ref.WS, ref.Arch) {
			run.feature(ref.Name, f.Name, ref.Optional)
		}
	}
	for _, p := range f.Plugins {
		if env.Matches(p.OS, p.WS, p.Arch) {
			run.Plugin(p.Name, p.Version, p.Fragment, 0, f.Name)
		}
	}
	run.root.AddFeature(f)
	return true
}

// Finish records declared fragments on their hosts and logs the summary of
// unresolved imports.
func (run *Run) Finish() *Report {
	run.attachFragments()
	if n := len(run.report.Packages); n > 0 {
		run.log.Info("unresolved imports", "count", n, "packages", run.report.PackageNames())
	}
	return run.report
}

func (run *Run) attachFragments() {
	names := make([]string, 0, len(run.fragments))
	for name := range run.fragments {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		for _, frag := range run.root.Bundles(name) {
			host := frag.FragmentHost
			if host == nil {
				continue
			}
			for _, h := range run.root.Bundles(host.Name) {
				if host.Range.Includes(h.ParsedVersion()) && !slices.Contains(h.RequiredFragments, name) {
					h.RequiredFragments = append(h.RequiredFragments, name)
				}
			}
		}
	}
}

// edge records a graph edge, deferred while inside a branch.
func (run *Run) edge(from, to string, kind depgraph.EdgeKind) {
	if from == "" || from == to {
		return
	}
	g := run.r.opts.Graph
	run.later(func() { g.AddDependency(from, to, kind) })
}

func (run *Run) resolved(b *osgi.BundleInfo, source string) {
	name, version := b.Name, b.Version
	run.later(func() {
		observability.Resolve().OnBundleResolved(run.ctx, name, version, source)
		run.log.Debug("resolved bundle", "bundle", name, "version", version, "source", source)
	})
}

func (run *Run) later(fn func()) {
	if run.depth == 0 {
		fn()
		return
	}
	run.deferred = append(run.deferred, fn)
}

// pinned turns a declared plugin version into a range. Empty and 0.0.0 mean
// any version.
func pinned(version string) osgi.VersionRange {
	if version == "" || version == "0.0.0" {
		return osgi.AnyVersion
	}
	v, err := osgi.ParseVersion(version)
	if err != nil {
		return osgi.AnyVersion
	}
	return osgi.Exactly(v)
}

func rangeString(rng osgi.VersionRange) string {
	if rng.IsAny() {
		return ""
	}
	return rng.String()
}
