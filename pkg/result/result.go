// Package result accumulates the bundles and features resolved for a product.
//
// A [Result] lives for one resolution run. Speculative work goes through a
// [Fork]: an overlay whose writes stay local until [Fork.Merge] replays them
// into the parent, or vanish with [Fork.Discard]. Forks can be nested, since a
// Fork is itself a [Store].
//
// Neither type is safe for concurrent use; resolution is single-threaded.
package result

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/matzehuels/launchtower/pkg/osgi"
)

// Store is the read/write surface shared by [Result] and [Fork].
type Store interface {
	// Bundles returns every resolved version of name.
	Bundles(name string) []*osgi.BundleInfo
	// AddBundle records b. Adding an existing (name, version) is a no-op,
	// except that a start level missing on the existing entry is taken from
	// b. It reports whether anything changed.
	AddBundle(b *osgi.BundleInfo) bool
	// Feature returns the resolved feature called name.
	Feature(name string) (*osgi.FeatureInfo, bool)
	// AddFeature records f unless a feature with that name exists already.
	AddFeature(f *osgi.FeatureInfo) bool
	// BundleNames returns the names of all resolved bundles, sorted.
	BundleNames() []string
	// FeatureNames returns the names of all resolved features, sorted.
	FeatureNames() []string
}

// Product identifies the product being launched.
type Product struct {
	Name        string `json:"name"`
	UID         string `json:"uid,omitempty"`
	ID          string `json:"id,omitempty"`
	Application string `json:"application,omitempty"`
	Version     string `json:"version,omitempty"`
}

// Result is the root accumulator of a resolution run.
type Result struct {
	RunID       string
	Product     Product
	SplashPath  string
	WorkingDir  string
	ProgramArgs []string
	VMArgs      []string

	bundles  map[string][]*osgi.BundleInfo
	features map[string]*osgi.FeatureInfo
}

// New returns an empty result with a fresh run id.
func New() *Result {
	return &Result{
		RunID:    uuid.NewString(),
		bundles:  make(map[string][]*osgi.BundleInfo),
		features: make(map[string]*osgi.FeatureInfo),
	}
}

// Bundles returns every resolved version of name in insertion order.
func (r *Result) Bundles(name string) []*osgi.BundleInfo {
	return r.bundles[name]
}

// AddBundle implements [Store]. Existing entries are updated in place.
func (r *Result) AddBundle(b *osgi.BundleInfo) bool {
	set := r.bundles[b.Name]
	if e := find(set, b); e != nil {
		if e.StartLevel == 0 && b.StartLevel > 0 {
			e.StartLevel = b.StartLevel
			return true
		}
		return false
	}
	set = append(set, b)
	r.bundles[b.Name] = set
	if len(set) > 1 {
		linkVersions(set)
	}
	return true
}

// Feature implements [Store].
func (r *Result) Feature(name string) (*osgi.FeatureInfo, bool) {
	f, ok := r.features[name]
	return f, ok
}

// AddFeature implements [Store].
func (r *Result) AddFeature(f *osgi.FeatureInfo) bool {
	if _, ok := r.features[f.Name]; ok {
		return false
	}
	r.features[f.Name] = f
	return true
}

// BundleNames implements [Store].
func (r *Result) BundleNames() []string {
	return sortedKeys(r.bundles)
}

// FeatureNames implements [Store].
func (r *Result) FeatureNames() []string {
	return sortedKeys(r.features)
}

// AllBundles returns every resolved bundle ordered by name, then insertion.
func (r *Result) AllBundles() []*osgi.BundleInfo {
	return All(r)
}

// BundleCount returns the number of (name, version) entries.
func (r *Result) BundleCount() int {
	n := 0
	for _, set := range r.bundles {
		n += len(set)
	}
	return n
}

// All returns every bundle visible through s ordered by name.
func All(s Store) []*osgi.BundleInfo {
	var out []*osgi.BundleInfo
	for _, name := range s.BundleNames() {
		out = append(out, s.Bundles(name)...)
	}
	return out
}

// Lookup returns the first bundle called name whose version lies within rng.
func Lookup(s Store, name string, rng osgi.VersionRange) *osgi.BundleInfo {
	for _, b := range s.Bundles(name) {
		if rng.Includes(b.ParsedVersion()) {
			return b
		}
	}
	return nil
}

func find(set []*osgi.BundleInfo, b *osgi.BundleInfo) *osgi.BundleInfo {
	for _, e := range set {
		if e.SameIdentity(b) {
			return e
		}
	}
	return nil
}

// linkVersions fills AdditionalVersions on every member of a multi-version set.
func linkVersions(set []*osgi.BundleInfo) {
	for _, b := range set {
		var others []string
		for _, o := range set {
			if o != b {
				others = append(others, o.Version)
			}
		}
		b.AdditionalVersions = strings.Join(others, ",")
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ Store = (*Result)(nil)
