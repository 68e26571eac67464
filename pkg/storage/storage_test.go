package storage

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/matzehuels/launchtower/internal/testutil"
	"github.com/matzehuels/launchtower/pkg/osgi"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestFindBundlePicksMaxInRange(t *testing.T) {
	dir := t.TempDir()
	testutil.BundleJar(t, dir, "b", "1.0.0", nil)
	testutil.BundleJar(t, dir, "b", "1.5.0", nil)
	testutil.BundleDir(t, dir, "b", "2.0.0", nil)
	testutil.BundleJar(t, dir, "b.extra", "9.0.0", nil)

	s := New(Options{PluginDirs: []string{dir}, Logger: quietLogger()})

	b, ok := s.FindBundle("b", osgi.MustParseRange("[1.0.0,2.0.0)"))
	require.True(t, ok)
	assert.Equal(t, "1.5.0", b.Version)
	assert.Equal(t, filepath.Join(dir, "b_1.5.0.jar"), b.Path)

	b, ok = s.FindBundle("b", osgi.AnyVersion)
	require.True(t, ok)
	assert.Equal(t, "2.0.0", b.Version)

	_, ok = s.FindBundle("b", osgi.MustParseRange("[3.0.0,4.0.0)"))
	assert.False(t, ok, "out-of-range local bundles never satisfy a requirement")

	_, ok = s.FindBundle("missing", osgi.AnyVersion)
	assert.False(t, ok)
}

func TestFindBundlePreferOlder(t *testing.T) {
	dir := t.TempDir()
	testutil.BundleJar(t, dir, "org.apache.lucene.core", "8.4.1", nil)
	testutil.BundleJar(t, dir, "org.apache.lucene.core", "9.5.0", nil)

	s := New(Options{PluginDirs: []string{dir}, PreferOlder: []string{"org.apache.lucene.core"}, Logger: quietLogger()})
	b, ok := s.FindBundle("org.apache.lucene.core", osgi.AnyVersion)
	require.True(t, ok)
	assert.Equal(t, "8.4.1", b.Version)
}

func TestFindBundleDirectoryPriority(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	testutil.BundleJar(t, first, "a", "1.0.0", nil)
	testutil.BundleJar(t, second, "a", "5.0.0", nil)

	s := New(Options{PluginDirs: []string{first, second}, Logger: quietLogger()})
	b, ok := s.FindBundle("a", osgi.AnyVersion)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", b.Version, "the first directory with a match wins")

	b, ok = s.FindBundle("a", osgi.MustParseRange("2.0"))
	require.True(t, ok)
	assert.Equal(t, "5.0.0", b.Version)

	assert.Len(t, s.bundlesIn(first, "a"), 1)
	assert.Len(t, s.bundlesIn(second, "a"), 1)
}

func TestFindBundleReturnsCopies(t *testing.T) {
	dir := t.TempDir()
	testutil.BundleJar(t, dir, "a", "1.0.0", nil)
	s := New(Options{PluginDirs: []string{dir}, Logger: quietLogger()})

	b, _ := s.FindBundle("a", osgi.AnyVersion)
	b.StartLevel = 4
	again, _ := s.FindBundle("a", osgi.AnyVersion)
	assert.Zero(t, again.StartLevel)
}

func TestListIsMemoized(t *testing.T) {
	dir := t.TempDir()
	testutil.BundleJar(t, dir, "a", "1.0.0", nil)
	s := New(Options{PluginDirs: []string{dir}, Logger: quietLogger()})

	assert.Equal(t, []string{"a_1.0.0.jar"}, s.List(dir))
	testutil.BundleJar(t, dir, "b", "1.0.0", nil)
	assert.Equal(t, []string{"a_1.0.0.jar"}, s.List(dir), "listings are cached for the run")
	assert.Empty(t, s.List(filepath.Join(dir, "nope")))
}

func TestExporters(t *testing.T) {
	dir := t.TempDir()
	testutil.BundleJar(t, dir, "c", "1.0.0", map[string]string{osgi.HeaderExport: `p;version="1.0"`})
	testutil.BundleDir(t, dir, "d", "1.0.0", map[string]string{osgi.HeaderExport: `p;version="1.0",q`})
	testutil.BundleJar(t, dir, "e", "1.0.0", map[string]string{osgi.HeaderExport: `p;version="2.0"`})
	testutil.WriteJar(t, filepath.Join(dir, "broken_1.0.0.jar"), map[string]string{"x": "y"})
	testutil.WriteFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	s := New(Options{PluginDirs: []string{dir}, Logger: quietLogger()})
	err := s.Index(context.Background())
	require.Error(t, err, "the broken jar is reported")
	assert.Len(t, multierr.Errors(err), 1)

	var names []string
	for _, b := range s.Exporters(context.Background(), "p", osgi.MustParseRange("[1.0,2.0)")) {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"c", "d"}, names)
	assert.Len(t, s.Exporters(context.Background(), "q", osgi.AnyVersion), 1)
	assert.Empty(t, s.Exporters(context.Background(), "r", osgi.AnyVersion))
}

func TestFindFeature(t *testing.T) {
	dir := t.TempDir()
	testutil.FeatureDir(t, dir, "org.acme.feature", "1.0.0", []string{"a"}, nil)
	testutil.FeatureDir(t, dir, "org.acme.feature", "1.2.0", []string{"a", "b"}, nil)
	testutil.WriteJar(t, filepath.Join(dir, "org.acme.other_2.0.0.jar"), map[string]string{
		osgi.FeatureFile: testutil.FeatureXML("org.acme.other", "2.0.0", nil, []string{"org.acme.feature"}),
	})

	s := New(Options{FeatureDirs: []string{dir}, Logger: quietLogger()})

	f, ok := s.FindFeature("org.acme.feature")
	require.True(t, ok)
	assert.Equal(t, "1.2.0", f.Version)
	assert.Len(t, f.Plugins, 2)

	f, ok = s.FindFeature("org.acme.other")
	require.True(t, ok)
	assert.Equal(t, "org.acme.feature", f.Features[0].Name)

	_, ok = s.FindFeature("missing")
	assert.False(t, ok)
}
