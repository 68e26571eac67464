package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/launchtower/pkg/osgi"
)

func TestForkReadsFallThrough(t *testing.T) {
	r := New()
	r.AddBundle(bundle("a", "1.0.0", 0))
	r.AddFeature(&osgi.FeatureInfo{Name: "f"})

	f := NewFork(r)
	assert.Len(t, f.Bundles("a"), 1)
	_, ok := f.Feature("f")
	assert.True(t, ok)
	assert.False(t, f.AddBundle(bundle("a", "1.0.0", 0)))
	assert.False(t, f.AddFeature(&osgi.FeatureInfo{Name: "f"}))
	assert.Empty(t, f.Added())
}

func TestForkWritesStayLocal(t *testing.T) {
	r := New()
	r.AddBundle(bundle("a", "1.0.0", 0))

	f := NewFork(r)
	assert.True(t, f.AddBundle(bundle("a", "2.0.0", 0)))
	assert.True(t, f.AddBundle(bundle("b", "1.0.0", 0)))
	assert.True(t, f.AddFeature(&osgi.FeatureInfo{Name: "g"}))

	assert.Len(t, f.Bundles("a"), 2)
	assert.Equal(t, []string{"a", "b"}, f.BundleNames())
	assert.Len(t, r.Bundles("a"), 1, "parent must not see fork writes")
	assert.Empty(t, r.Bundles("b"))
	_, ok := r.Feature("g")
	assert.False(t, ok)
}

func TestForkDiscardLeavesParentUntouched(t *testing.T) {
	r := New()
	r.AddBundle(bundle("a", "1.0.0", 0))
	r.AddBundle(bundle("b", "1.0.0", 0))
	before := r.BundleCount()
	beforeNames := r.BundleNames()

	f := NewFork(r)
	f.AddBundle(bundle("c", "1.0.0", 0))
	f.AddBundle(bundle("d", "3.0.0", 0))
	f.AddBundle(bundle("a", "1.0.0", 7))

	inner := NewFork(f)
	inner.AddBundle(bundle("e", "1.0.0", 0))
	require.NoError(t, inner.Merge())
	assert.Len(t, f.Bundles("e"), 1)

	f.Discard()

	assert.Equal(t, before, r.BundleCount())
	assert.Equal(t, beforeNames, r.BundleNames())
	assert.Equal(t, 0, r.Bundles("a")[0].StartLevel, "start-level backfill in a fork must not leak")
	assert.ErrorIs(t, f.Merge(), ErrForkClosed)
}

func TestForkMerge(t *testing.T) {
	r := New()
	a := bundle("a", "1.0.0", 0)
	r.AddBundle(a)

	f := NewFork(r)
	f.AddBundle(bundle("a", "1.0.0", 3))
	f.AddBundle(bundle("a", "2.0.0", 0))
	f.AddBundle(bundle("b", "1.0.0", 0))
	f.AddFeature(&osgi.FeatureInfo{Name: "g"})
	assert.Equal(t, 0, a.StartLevel)

	require.NoError(t, f.Merge())

	require.Len(t, r.Bundles("a"), 2)
	assert.Same(t, a, r.Bundles("a")[0], "merge keeps the parent's entry")
	assert.Equal(t, 3, a.StartLevel)
	assert.Equal(t, "2.0.0", a.AdditionalVersions)
	assert.Len(t, r.Bundles("b"), 1)
	_, ok := r.Feature("g")
	assert.True(t, ok)
	assert.Equal(t, 3, r.BundleCount())

	assert.ErrorIs(t, f.Merge(), ErrForkClosed)
}

func TestNestedForkMergeChain(t *testing.T) {
	r := New()
	outer := NewFork(r)
	outer.AddBundle(bundle("x", "1.0.0", 0))

	inner := NewFork(outer)
	inner.AddBundle(bundle("y", "1.0.0", 0))
	assert.Len(t, inner.Bundles("x"), 1, "inner reads through outer")

	require.NoError(t, inner.Merge())
	assert.Empty(t, r.Bundles("y"))

	require.NoError(t, outer.Merge())
	assert.Equal(t, []string{"x", "y"}, r.BundleNames())
}
