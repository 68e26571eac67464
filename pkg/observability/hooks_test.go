package observability

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Resolve hooks
	r := NoopResolveHooks{}
	r.OnResolveStart(ctx, "acme.product")
	r.OnResolveComplete(ctx, "acme.product", 120, 8, time.Second, nil)
	r.OnBundleResolved(ctx, "org.acme.core", "1.0.0", SourceLocal)
	r.OnUnresolved(ctx, KindPackage, "org.slf4j")
	r.OnForkComplete(ctx, false)
	r.OnIndexComplete(ctx, "https://example.com/repo", 10, time.Second, nil)
	r.OnArtifactFetch(ctx, "org.acme.core", 1024, time.Second, nil)

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "index")
	c.OnCacheMiss(ctx, "index")
	c.OnCacheSet(ctx, "index", 1024)

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "download.eclipse.org", "/releases/content.jar")
	h.OnResponse(ctx, "GET", "download.eclipse.org", "/releases/content.jar", 200, time.Second)
	h.OnError(ctx, "GET", "download.eclipse.org", "/releases/content.jar", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Resolve().(NoopResolveHooks); !ok {
		t.Error("Resolve() should return NoopResolveHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	// Set custom hooks
	customResolve := &testResolveHooks{}
	SetResolveHooks(customResolve)
	if Resolve() != customResolve {
		t.Error("SetResolveHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Resolve().(NoopResolveHooks); !ok {
		t.Error("Reset() should restore NoopResolveHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testResolveHooks{}
	SetResolveHooks(custom)

	// Setting nil should be ignored
	SetResolveHooks(nil)

	if Resolve() != custom {
		t.Error("SetResolveHooks(nil) should be ignored")
	}

	Reset()
}

func TestPrometheusHooks(t *testing.T) {
	ctx := context.Background()
	h := NewPrometheusHooks(prometheus.NewRegistry())

	h.OnBundleResolved(ctx, "a", "1.0.0", SourceLocal)
	h.OnBundleResolved(ctx, "b", "1.0.0", SourceLocal)
	h.OnBundleResolved(ctx, "c", "2.0.0", SourceRemote)
	h.OnUnresolved(ctx, KindPackage, "org.slf4j")
	h.OnForkComplete(ctx, true)
	h.OnForkComplete(ctx, false)
	h.OnForkComplete(ctx, false)
	h.OnArtifactFetch(ctx, "c", 2048, time.Millisecond, nil)
	h.OnArtifactFetch(ctx, "d", 0, time.Millisecond, errors.New("boom"))
	h.OnCacheHit(ctx, "index")
	h.OnResolveComplete(ctx, "p", 3, 0, time.Second, errors.New("fatal"))

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"local bundles", testutil.ToFloat64(h.bundlesResolved.WithLabelValues(SourceLocal)), 2},
		{"remote bundles", testutil.ToFloat64(h.bundlesResolved.WithLabelValues(SourceRemote)), 1},
		{"unresolved packages", testutil.ToFloat64(h.unresolved.WithLabelValues(KindPackage)), 1},
		{"merged forks", testutil.ToFloat64(h.forks.WithLabelValues("merged")), 1},
		{"discarded forks", testutil.ToFloat64(h.forks.WithLabelValues("discarded")), 2},
		{"fetch ok", testutil.ToFloat64(h.artifactFetches.WithLabelValues("ok")), 1},
		{"fetch error", testutil.ToFloat64(h.artifactFetches.WithLabelValues("error")), 1},
		{"artifact bytes", testutil.ToFloat64(h.artifactBytes), 2048},
		{"cache hits", testutil.ToFloat64(h.cacheEvents.WithLabelValues("index", "hit")), 1},
		{"run errors", testutil.ToFloat64(h.runErrors), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestPrometheusHooksWriteTextfile(t *testing.T) {
	h := NewPrometheusHooks(prometheus.NewRegistry())
	h.OnUnresolved(context.Background(), KindBundle, "org.missing")

	path := filepath.Join(t.TempDir(), "launchtower.prom")
	if err := h.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `launchtower_unresolved_total{kind="bundle"} 1`) {
		t.Errorf("textfile missing unresolved counter:\n%s", data)
	}
}

// Test implementations
type testResolveHooks struct{ NoopResolveHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
