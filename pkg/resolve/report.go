package resolve

import (
	"slices"
	"sort"
)

// Miss is a bundle or feature that could not be found.
type Miss struct {
	Name  string `json:"name"`
	Range string `json:"range,omitempty"`
	From  string `json:"from,omitempty"` // requesting bundle, feature or product
}

// Report lists what a run could not resolve.
type Report struct {
	Bundles  []Miss `json:"bundles,omitempty"`
	Features []Miss `json:"features,omitempty"`
	// Packages maps each unresolved package to the bundles importing it.
	Packages map[string][]string `json:"packages,omitempty"`
	// Cycles lists features that were reached again while being resolved.
	Cycles []string `json:"cycles,omitempty"`
}

func newReport() *Report {
	return &Report{Packages: make(map[string][]string)}
}

func (r *Report) addPackage(pkg, importer string) {
	if !slices.Contains(r.Packages[pkg], importer) {
		r.Packages[pkg] = append(r.Packages[pkg], importer)
	}
}

// PackageNames returns the unresolved packages, sorted.
func (r *Report) PackageNames() []string {
	names := make([]string, 0, len(r.Packages))
	for name := range r.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clean reports whether nothing is missing.
func (r *Report) Clean() bool {
	return len(r.Bundles) == 0 && len(r.Features) == 0 && len(r.Packages) == 0
}
