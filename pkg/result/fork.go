package result

import (
	"errors"
	"slices"

	"github.com/matzehuels/launchtower/pkg/osgi"
)

// ErrForkClosed is returned when a fork is merged after Merge or Discard.
var ErrForkClosed = errors.New("result: fork already closed")

// Fork is a write overlay on a parent [Store]. Reads fall through to the
// parent for names the fork has not written; writes never touch the parent
// until [Fork.Merge].
type Fork struct {
	parent   Store
	bundles  map[string][]*osgi.BundleInfo
	features map[string]*osgi.FeatureInfo

	// writes in order, replayed by Merge
	bundleWrites  []*osgi.BundleInfo
	featureWrites []*osgi.FeatureInfo
	closed        bool
}

// NewFork starts an overlay on parent.
func NewFork(parent Store) *Fork {
	return &Fork{
		parent:   parent,
		bundles:  make(map[string][]*osgi.BundleInfo),
		features: make(map[string]*osgi.FeatureInfo),
	}
}

// Bundles implements [Store].
func (f *Fork) Bundles(name string) []*osgi.BundleInfo {
	if set, ok := f.bundles[name]; ok {
		return set
	}
	return f.parent.Bundles(name)
}

// AddBundle implements [Store]. A start-level backfill of an entry owned by
// the parent is applied to a private copy.
func (f *Fork) AddBundle(b *osgi.BundleInfo) bool {
	set, local := f.bundles[b.Name]
	if !local {
		set = f.parent.Bundles(b.Name)
	}

	if i := slices.IndexFunc(set, b.SameIdentity); i >= 0 {
		e := set[i]
		if e.StartLevel != 0 || b.StartLevel == 0 {
			return false
		}
		upd := e.Clone()
		upd.StartLevel = b.StartLevel
		set = slices.Clone(set)
		set[i] = upd
		f.bundles[b.Name] = set
		f.bundleWrites = append(f.bundleWrites, upd)
		return true
	}

	f.bundles[b.Name] = append(slices.Clone(set), b)
	f.bundleWrites = append(f.bundleWrites, b)
	return true
}

// Feature implements [Store].
func (f *Fork) Feature(name string) (*osgi.FeatureInfo, bool) {
	if feat, ok := f.features[name]; ok {
		return feat, true
	}
	return f.parent.Feature(name)
}

// AddFeature implements [Store].
func (f *Fork) AddFeature(feat *osgi.FeatureInfo) bool {
	if _, ok := f.Feature(feat.Name); ok {
		return false
	}
	f.features[feat.Name] = feat
	f.featureWrites = append(f.featureWrites, feat)
	return true
}

// BundleNames implements [Store].
func (f *Fork) BundleNames() []string {
	return union(f.parent.BundleNames(), sortedKeys(f.bundles))
}

// FeatureNames implements [Store].
func (f *Fork) FeatureNames() []string {
	return union(f.parent.FeatureNames(), sortedKeys(f.features))
}

// Added returns the bundles written to the fork, in write order.
func (f *Fork) Added() []*osgi.BundleInfo {
	return slices.Clone(f.bundleWrites)
}

// Merge replays the fork's writes into the parent, name by name, under the
// parent's own no-duplicate rules, then closes the fork.
func (f *Fork) Merge() error {
	if f.closed {
		return ErrForkClosed
	}
	f.closed = true

	var order []string
	byName := make(map[string][]*osgi.BundleInfo)
	for _, b := range f.bundleWrites {
		if _, ok := byName[b.Name]; !ok {
			order = append(order, b.Name)
		}
		byName[b.Name] = append(byName[b.Name], b)
	}
	for _, name := range order {
		for _, b := range byName[name] {
			f.parent.AddBundle(b)
		}
	}
	for _, feat := range f.featureWrites {
		f.parent.AddFeature(feat)
	}
	f.reset()
	return nil
}

// Discard drops every write made through the fork.
func (f *Fork) Discard() {
	f.closed = true
	f.reset()
}

func (f *Fork) reset() {
	f.bundles = make(map[string][]*osgi.BundleInfo)
	f.features = make(map[string]*osgi.FeatureInfo)
	f.bundleWrites = nil
	f.featureWrites = nil
}

func union(a, b []string) []string {
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}

var _ Store = (*Fork)(nil)
