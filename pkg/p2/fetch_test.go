package p2

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/launchtower/internal/testutil"
	errs "github.com/matzehuels/launchtower/pkg/errors"
	"github.com/matzehuels/launchtower/pkg/osgi"
)

func TestMaterializeSingleTransfer(t *testing.T) {
	rs := newRepoServer(t)
	rs.put("/leaf/content.xml", []byte(contentXMLDoc(
		bundleUnit("org.acme.core", "1.0.0", `      <provides><provided namespace='java.package' name='org.acme.core' version='1.0.0'/></provides>`),
		bundleUnit("org.acme.core.source", "1.0.0", ""),
	)))
	rs.put("/leaf/plugins/org.acme.core_1.0.0.jar", testutil.JarBytes(t, map[string]string{
		"META-INF/MANIFEST.MF": testutil.Manifest(testutil.BundleHeaders("org.acme.core", "1.0.0", map[string]string{
			"Bundle-ClassPath": ".,lib/dep.jar",
			"Require-Bundle":   `org.acme.base;visibility:=reexport`,
		})),
	}))
	rs.put("/leaf/plugins/org.acme.core.source_1.0.0.jar", []byte("sources"))

	opts := quietOptions(t)
	idx, err := NewIndex(context.Background(), NewClient(nil, nil, time.Hour, nil), []string{rs.URL + "/leaf"}, opts)
	require.NoError(t, err)
	rb := idx.BestBundle("org.acme.core", osgi.AnyVersion)
	require.NotNil(t, rb)
	assert.False(t, rb.materialized())

	const workers = 8
	results := make([]*osgi.BundleInfo, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := idx.Materialize(context.Background(), rb)
			assert.NoError(t, err)
			results[i] = b
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, rs.getCount("/leaf/plugins/org.acme.core_1.0.0.jar"))
	assert.True(t, rb.materialized())
	assert.Equal(t, 1, idx.Stats().Fetched)

	want := filepath.Join(opts.ArtifactDir, "plugins", "org.acme.core_1.0.0.jar")
	for _, b := range results {
		require.NotNil(t, b)
		assert.Equal(t, want, b.Path)
		assert.Equal(t, []string{".", "lib/dep.jar"}, b.ClassPath)
		assert.Equal(t, []string{"org.acme.base"}, b.ReexportedBundles)
		assert.True(t, b.Exports("org.acme.core", osgi.AnyVersion), "index metadata is kept")
	}
	assert.Empty(t, rb.Info.Path, "the indexed entry itself is not modified")

	_, err = os.Stat(filepath.Join(opts.ArtifactDir, "plugins", "org.acme.core.source_1.0.0.jar"))
	assert.NoError(t, err, "source companion should be fetched")

	entries, err := os.ReadDir(filepath.Join(opts.ArtifactDir, "plugins"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files are left behind")
}

func TestMaterializeMissingArtifact(t *testing.T) {
	rs := newRepoServer(t)
	rs.put("/leaf/content.xml", []byte(contentXMLDoc(bundleUnit("org.acme.gone", "1.0.0", ""))))

	idx, err := NewIndex(context.Background(), NewClient(nil, nil, time.Hour, nil), []string{rs.URL + "/leaf"}, quietOptions(t))
	require.NoError(t, err)

	_, err = idx.Materialize(context.Background(), idx.BestBundle("org.acme.gone", osgi.AnyVersion))
	assert.True(t, errs.Is(err, errs.ErrCodeArtifactNotFound), "got %v", err)
}

func TestMaterializeWithoutArtifactDir(t *testing.T) {
	rs := newRepoServer(t)
	rs.put("/leaf/content.xml", []byte(contentXMLDoc(bundleUnit("org.acme.a", "1.0.0", ""))))

	opts := quietOptions(t)
	opts.ArtifactDir = ""
	idx, err := NewIndex(context.Background(), NewClient(nil, nil, time.Hour, nil), []string{rs.URL + "/leaf"}, opts)
	require.NoError(t, err)

	_, err = idx.Materialize(context.Background(), idx.BestBundle("org.acme.a", osgi.AnyVersion))
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidConfig), "got %v", err)
}

func TestFetchRedirectIsNotFound(t *testing.T) {
	rs := newRepoServer(t)
	client := NewClient(nil, nil, time.Hour, nil)

	ok, err := client.Exists(context.Background(), rs.URL+"/redirect/plugins/x.jar")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = client.Exists(context.Background(), rs.URL+"/moved/plugins/x.jar")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = client.Get(context.Background(), rs.URL+"/redirect/plugins/x.jar")
	assert.Error(t, err)

	f := NewFetcher(client, t.TempDir(), nil)
	_, err = f.Fetch(context.Background(), "plugins/x.jar", rs.URL+"/redirect/plugins/x.jar")
	assert.True(t, errs.Is(err, errs.ErrCodeArtifactNotFound), "got %v", err)
}

func TestFetchReusesExistingFile(t *testing.T) {
	rs := newRepoServer(t)
	dir := t.TempDir()
	existing := testutil.WriteFile(t, filepath.Join(dir, "plugins", "a_1.0.0.jar"), "cached")

	f := NewFetcher(NewClient(nil, nil, time.Hour, nil), dir, nil)
	path, err := f.Fetch(context.Background(), "plugins/a_1.0.0.jar", rs.URL+"/plugins/a_1.0.0.jar")
	require.NoError(t, err)
	assert.Equal(t, existing, path)
	assert.Zero(t, rs.getCount("/plugins/a_1.0.0.jar"))
}

func TestFetchRejectsTraversal(t *testing.T) {
	f := NewFetcher(NewClient(nil, nil, time.Hour, nil), t.TempDir(), nil)
	_, err := f.Fetch(context.Background(), "plugins/../../etc/passwd", "http://127.0.0.1:1/x")
	assert.True(t, errs.Is(err, errs.ErrCodeInvalidPath), "got %v", err)
}
