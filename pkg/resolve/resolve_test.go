package resolve

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/launchtower/internal/testutil"
	"github.com/matzehuels/launchtower/pkg/depgraph"
	"github.com/matzehuels/launchtower/pkg/exclude"
	"github.com/matzehuels/launchtower/pkg/osgi"
	"github.com/matzehuels/launchtower/pkg/p2"
	"github.com/matzehuels/launchtower/pkg/product"
	"github.com/matzehuels/launchtower/pkg/result"
	"github.com/matzehuels/launchtower/pkg/storage"
)

// fakeRemote is an in-memory repository index.
type fakeRemote struct {
	bundles      []*p2.RemoteBundle
	features     map[string]*osgi.FeatureInfo
	materialized []string
}

func (f *fakeRemote) add(b *osgi.BundleInfo) {
	b.Remote = true
	f.bundles = append(f.bundles, &p2.RemoteBundle{Info: b, RepoURL: "http://repo.invalid"})
}

func (f *fakeRemote) BestBundle(name string, rng osgi.VersionRange) *p2.RemoteBundle {
	var best *p2.RemoteBundle
	for _, rb := range f.bundles {
		v := rb.Info.ParsedVersion()
		if rb.Info.Name == name && rng.Includes(v) && (best == nil || v.Compare(best.Info.ParsedVersion()) > 0) {
			best = rb
		}
	}
	return best
}

func (f *fakeRemote) BestExporter(pkg string, rng osgi.VersionRange, skip func(string) bool) *p2.RemoteBundle {
	var best *p2.RemoteBundle
	for _, rb := range f.bundles {
		if !rb.Info.Exports(pkg, rng) || skip(rb.Info.Name) {
			continue
		}
		if best == nil || rb.Info.ParsedVersion().Compare(best.Info.ParsedVersion()) > 0 {
			best = rb
		}
	}
	return best
}

func (f *fakeRemote) Feature(name string) (*osgi.FeatureInfo, bool) {
	feat, ok := f.features[name]
	return feat, ok
}

func (f *fakeRemote) Materialize(_ context.Context, rb *p2.RemoteBundle) (*osgi.BundleInfo, error) {
	f.materialized = append(f.materialized, rb.Info.Key())
	b := rb.Info.Clone()
	b.Path = filepath.Join("/artifacts", rb.ArtifactPath())
	return b, nil
}

type fixture struct {
	t        *testing.T
	plugins  string
	features string
	remote   *fakeRemote
	graph    *depgraph.DependencyGraph
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	return &fixture{
		t:        t,
		plugins:  filepath.Join(dir, "plugins"),
		features: filepath.Join(dir, "features"),
		remote:   &fakeRemote{features: map[string]*osgi.FeatureInfo{}},
		graph:    depgraph.New(filepath.Join(dir, "trees")),
	}
}

// bundle writes a local bundle jar. Header values use manifest syntax.
func (f *fixture) bundle(name, version string, headers map[string]string) string {
	return testutil.BundleJar(f.t, f.plugins, name, version, headers)
}

func (f *fixture) feature(id, xml string) {
	testutil.WriteFile(f.t, filepath.Join(f.features, id+"_1.0.0", osgi.FeatureFile), xml)
}

func (f *fixture) resolver(opts Options) *Resolver {
	logger := log.New(io.Discard)
	store := storage.New(storage.Options{
		PluginDirs:  []string{f.plugins},
		FeatureDirs: []string{f.features},
		Logger:      logger,
	})
	opts.Logger = logger
	opts.Graph = f.graph
	return New(store, f.remote, opts)
}

func (f *fixture) resolve(p *product.Product) (*result.Result, *Report) {
	f.t.Helper()
	res, report, err := f.resolver(Options{}).ResolveProduct(context.Background(), p)
	require.NoError(f.t, err)
	return res, report
}

func plugins(names ...string) *product.Product {
	p := &product.Product{Name: "test"}
	for _, n := range names {
		p.Plugins = append(p.Plugins, product.Plugin{Name: n})
	}
	return p
}

func versions(res *result.Result, name string) []string {
	var out []string
	for _, b := range res.Bundles(name) {
		out = append(out, b.Version)
	}
	return out
}

func TestLocalBundleBeatsRemote(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{"Require-Bundle": `B;bundle-version="[1.0.0,2.0.0)"`})
	f.bundle("B", "1.5.0", nil)
	f.remote.add(&osgi.BundleInfo{Name: "B", Version: "2.0.0"})

	res, report := f.resolve(plugins("A"))

	assert.Equal(t, []string{"1.5.0"}, versions(res, "B"))
	assert.Empty(t, f.remote.materialized, "the remote index must not be used for B")
	assert.True(t, report.Clean())
	assert.False(t, res.Bundles("B")[0].Remote)
}

func TestRemoteFallback(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{"Require-Bundle": `R;bundle-version="[1.0.0,2.0.0)"`})
	f.remote.add(&osgi.BundleInfo{Name: "R", Version: "1.2.0"})
	f.remote.add(&osgi.BundleInfo{Name: "R", Version: "1.4.0"})
	f.remote.add(&osgi.BundleInfo{Name: "R", Version: "2.0.0"})

	res, report := f.resolve(plugins("A"))

	assert.Equal(t, []string{"1.4.0"}, versions(res, "R"))
	assert.Equal(t, []string{"R@1.4.0"}, f.remote.materialized)
	assert.Equal(t, filepath.Join("/artifacts", "plugins", "R_1.4.0.jar"), res.Bundles("R")[0].Path)
	assert.True(t, report.Clean())
}

func TestMissingBundleIsReported(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{"Require-Bundle": `Gone;bundle-version="[1.0.0,2.0.0)",system.bundle`})

	res, report := f.resolve(plugins("A", "Nowhere"))

	assert.Equal(t, 1, res.BundleCount())
	require.Len(t, report.Bundles, 2)
	assert.Equal(t, Miss{Name: "Gone", Range: "[1.0.0,2.0.0)", From: "A"}, report.Bundles[0])
	assert.Equal(t, "Nowhere", report.Bundles[1].Name)
}

func TestMultipleLocalExportersAreAllUsed(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{"Import-Package": `p;version="[1.0,2.0)"`})
	f.bundle("C", "1.0.0", map[string]string{"Export-Package": `p;version="1.0"`})
	f.bundle("D", "1.0.0", map[string]string{"Export-Package": `p;version="1.0"`})

	res, report := f.resolve(plugins("A"))

	assert.Equal(t, []string{"A", "C", "D"}, res.BundleNames())
	assert.True(t, report.Clean())

	n, ok := f.graph.Node("A")
	require.True(t, ok)
	require.Len(t, n.Edges, 2)
	for _, e := range n.Edges {
		assert.Equal(t, depgraph.BundleImport, e.Kind)
	}
}

func TestFailingImportChainLeavesResultUntouched(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{"Import-Package": "p"})
	f.bundle("C", "1.0.0", map[string]string{"Export-Package": "p", "Import-Package": "q"})
	f.bundle("D", "1.0.0", map[string]string{"Export-Package": "q", "Import-Package": "r"})
	f.bundle("E", "1.0.0", map[string]string{"Export-Package": "r", "Require-Bundle": "Missing"})

	r := f.resolver(Options{})
	res := result.New()
	run := r.Start(context.Background(), res)
	require.True(t, run.Bundle("A", osgi.AnyVersion, 0, "test"))
	before := res.BundleCount()

	run.Imports()
	report := run.Finish()

	assert.Equal(t, before, res.BundleCount())
	assert.Equal(t, []string{"A"}, res.BundleNames())
	assert.Equal(t, map[string][]string{"p": {"A"}}, report.Packages)
	assert.Empty(t, report.Bundles, "misses inside a discarded branch are not reported")

	_, ok := f.graph.Node("C")
	assert.False(t, ok, "edges of a discarded branch are dropped")
}

func TestRequiredBundleImportFailureDiscardsBranch(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{"Import-Package": "p"})
	f.bundle("C", "1.0.0", map[string]string{"Export-Package": "p", "Require-Bundle": "E"})
	f.bundle("E", "1.0.0", map[string]string{"Import-Package": "q"})

	res, report := f.resolve(plugins("A"))

	assert.Equal(t, []string{"A"}, res.BundleNames())
	assert.Equal(t, map[string][]string{"p": {"A"}}, report.Packages)
	_, ok := f.graph.Node("E")
	assert.False(t, ok)
}

func TestRequiredBundleImportsResolveInsideBranch(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{"Import-Package": "p"})
	f.bundle("C", "1.0.0", map[string]string{"Export-Package": "p", "Require-Bundle": "E"})
	f.bundle("E", "1.0.0", map[string]string{"Import-Package": "q"})
	f.bundle("Q", "1.0.0", map[string]string{"Export-Package": "q"})

	res, report := f.resolve(plugins("A"))

	assert.Equal(t, []string{"A", "C", "E", "Q"}, res.BundleNames())
	assert.True(t, report.Clean())
}

func TestImportChainMergesOnSuccess(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{"Import-Package": "p"})
	f.bundle("C", "1.0.0", map[string]string{"Export-Package": "p", "Import-Package": "q", "Require-Bundle": "Base"})
	f.bundle("Base", "1.0.0", nil)
	f.remote.add(&osgi.BundleInfo{
		Name: "Q", Version: "1.0.0",
		ExportedPackages: []osgi.PackageExport{{Name: "q"}},
	})

	res, report := f.resolve(plugins("A"))

	assert.Equal(t, []string{"A", "Base", "C", "Q"}, res.BundleNames())
	assert.True(t, report.Clean())
	assert.Equal(t, []string{"Q@1.0.0"}, f.remote.materialized)

	tree, err := f.graph.PrintTree("test")
	require.NoError(t, err)
	require.NotEmpty(t, tree)
}

func TestExcludedAndOptionalImports(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{
		"Import-Package": `java.util.concurrent,org.w3c.dom,javax.xml.parsers,maybe;resolution:=optional,acme.internal`,
	})

	_, report := f.resolve(plugins("A"))
	assert.Equal(t, []string{"acme.internal"}, report.PackageNames())

	_, report, err := f.resolver(Options{SkipImports: true}).ResolveProduct(context.Background(), plugins("A"))
	require.NoError(t, err)
	assert.True(t, report.Clean(), "imports are skipped when disabled")

	custom := exclude.DefaultPolicy().With("acme.")
	_, report, err = f.resolver(Options{Exclude: custom}).ResolveProduct(context.Background(), plugins("A"))
	require.NoError(t, err)
	assert.True(t, report.Clean(), "extra prefixes are excluded")
}

func TestBlockedRemoteExporter(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{"Import-Package": "p"})
	f.remote.add(&osgi.BundleInfo{Name: "Bad", Version: "9.0.0", ExportedPackages: []osgi.PackageExport{{Name: "p"}}})
	f.remote.add(&osgi.BundleInfo{Name: "Good", Version: "1.0.0", ExportedPackages: []osgi.PackageExport{{Name: "p"}}})

	res, _, err := f.resolver(Options{BlockedBundles: []string{"Bad"}}).ResolveProduct(context.Background(), plugins("A"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "Good"}, res.BundleNames())
}

func TestStartLevelBackfill(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{"Require-Bundle": "B"})
	f.bundle("B", "1.0.0", nil)

	p := plugins("A")
	p.Configurations = []product.StartConfig{{Name: "B", AutoStart: true, StartLevel: 2}}
	res, _ := f.resolve(p)

	require.Len(t, res.Bundles("B"), 1)
	assert.Equal(t, 2, res.Bundles("B")[0].StartLevel)
	assert.Equal(t, 2, res.BundleCount())

	run := f.resolver(Options{}).Start(context.Background(), res)
	run.Bundle("B", osgi.AnyVersion, 2, "again")
	assert.Equal(t, 2, res.BundleCount(), "resolving again with the same level is a no-op")
	run.Bundle("B", osgi.AnyVersion, 5, "again")
	assert.Equal(t, 2, res.Bundles("B")[0].StartLevel, "an existing level is kept")
}

func TestCoInstalledVersions(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", map[string]string{"Require-Bundle": `lib;bundle-version="[1.0.0,2.0.0)"`})
	f.bundle("Z", "1.0.0", map[string]string{"Require-Bundle": `lib;bundle-version="[2.0.0,3.0.0)"`})
	f.bundle("lib", "1.1.0", nil)
	f.bundle("lib", "2.3.0", nil)

	res, report := f.resolve(plugins("A", "Z"))

	assert.Equal(t, []string{"1.1.0", "2.3.0"}, versions(res, "lib"))
	assert.Equal(t, "2.3.0", res.Bundles("lib")[0].AdditionalVersions)
	assert.True(t, report.Clean())
}

func TestFeatureResolution(t *testing.T) {
	f := newFixture(t)
	f.bundle("host", "1.0.0", nil)
	f.bundle("host.gtk", "1.0.0", map[string]string{"Fragment-Host": `host;bundle-version="[1.0.0,2.0.0)"`})
	f.bundle("tool", "2.0.0", nil)
	f.feature("top", `<feature id="top" version="1.0.0">
  <includes id="nested" version="0.0.0"/>
  <includes id="optional.missing" version="0.0.0" optional="true"/>
  <includes id="win.only" version="0.0.0" os="win32"/>
  <plugin id="host" version="0.0.0"/>
  <plugin id="host.gtk" version="0.0.0" fragment="true" os="linux"/>
  <plugin id="host.cocoa" version="0.0.0" fragment="true" os="macosx"/>
</feature>`)
	f.feature("nested", `<feature id="nested" version="1.0.0">
  <includes id="top" version="0.0.0"/>
  <plugin id="tool" version="1.0.0"/>
</feature>`)

	p := &product.Product{Name: "test", Features: []product.Feature{{Name: "top"}}}
	res, report, err := f.resolver(Options{Env: osgi.Env{OS: "linux", WS: "gtk", Arch: "x86_64"}}).ResolveProduct(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, []string{"nested", "top"}, res.FeatureNames())
	assert.Equal(t, []string{"host", "host.gtk", "tool"}, res.BundleNames())
	assert.Equal(t, []string{"host.gtk"}, res.Bundles("host")[0].RequiredFragments)
	assert.Equal(t, []string{"top"}, report.Cycles)
	assert.Empty(t, report.Features, "optional and filtered features are not reported")
}

func TestRemoteFeature(t *testing.T) {
	f := newFixture(t)
	f.remote.features["remote.feature"] = &osgi.FeatureInfo{
		Name: "remote.feature", Version: "1.0.0", Remote: true,
		Plugins: []osgi.FeaturePlugin{{Name: "R", Version: "1.0.0"}},
	}
	f.remote.add(&osgi.BundleInfo{Name: "R", Version: "1.0.0"})

	p := &product.Product{Name: "test", Features: []product.Feature{{Name: "remote.feature"}, {Name: "absent"}}}
	res, report := f.resolve(p)

	assert.Equal(t, []string{"R"}, res.BundleNames())
	require.Len(t, report.Features, 1)
	assert.Equal(t, "absent", report.Features[0].Name)
}

func TestProductMetadata(t *testing.T) {
	f := newFixture(t)
	branding := f.bundle("branding", "1.0.0", nil)

	p := plugins("branding")
	p.ID = "org.acme.product"
	p.Application = "org.acme.app"
	p.Splash = "branding"
	p.ProgramArgs = map[string]string{"": "-consoleLog", "linux": "--launcher.GTK_version 3"}
	p.VMArgs = map[string]string{"": `"-Dtitle=Acme Studio"`}

	res, _, err := f.resolver(Options{Env: osgi.Env{OS: "linux"}}).ResolveProduct(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "org.acme.product", res.Product.ID)
	assert.Equal(t, branding, res.SplashPath, "a jar splash bundle yields the jar")
	assert.Equal(t, []string{"-consoleLog", "--launcher.GTK_version", "3"}, res.ProgramArgs)
	assert.Equal(t, []string{"-Dtitle=Acme Studio"}, res.VMArgs)
	assert.NotEmpty(t, res.RunID)
}

func TestSplashInExplodedBundle(t *testing.T) {
	f := newFixture(t)
	branding := testutil.BundleDir(t, f.plugins, "branding", "1.0.0", nil)

	p := plugins("branding")
	p.Splash = "branding"
	res, _ := f.resolve(p)

	assert.Equal(t, filepath.Join(branding, SplashFile), res.SplashPath)
}

func TestPinnedPluginVersion(t *testing.T) {
	f := newFixture(t)
	f.bundle("lib", "1.0.0", nil)
	f.bundle("lib", "2.0.0", nil)

	p := &product.Product{Name: "test", Plugins: []product.Plugin{{Name: "lib", Version: "1.0.0"}}}
	res, _ := f.resolve(p)
	assert.Equal(t, []string{"1.0.0"}, versions(res, "lib"))

	p.Plugins[0].Version = "3.0.0"
	res, report := f.resolve(p)
	assert.Equal(t, []string{"2.0.0"}, versions(res, "lib"), "an unavailable pinned version falls back to the best one")
	assert.True(t, report.Clean())
}

func TestResolveProductCanceled(t *testing.T) {
	f := newFixture(t)
	f.bundle("A", "1.0.0", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := f.resolver(Options{}).ResolveProduct(ctx, plugins("A"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPinned(t *testing.T) {
	assert.True(t, pinned("").IsAny())
	assert.True(t, pinned("0.0.0").IsAny())
	assert.True(t, pinned("not a version").IsAny())
	assert.True(t, pinned("1.2.3.qualifier").Includes(osgi.MustParseVersion("1.2.3")))
	assert.False(t, pinned("1.2.3").Includes(osgi.MustParseVersion("1.2.4")))
	assert.Empty(t, rangeString(osgi.AnyVersion))
}
