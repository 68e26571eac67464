package osgi

import (
	"slices"
	"strings"
)

// BundleRequirement is a dependency on another bundle by name and version range,
// as declared by Require-Bundle or Fragment-Host.
type BundleRequirement struct {
	Name     string
	Range    VersionRange
	Reexport bool // visibility:=reexport
}

// PackageExport is a package exported by a bundle at a specific version.
type PackageExport struct {
	Name    string
	Version Version
}

// PackageImport is a package imported by a bundle with an acceptable range.
type PackageImport struct {
	Name     string
	Range    VersionRange
	Optional bool // resolution:=optional
}

// BundleInfo describes a bundle: its identity (Name, Version) plus what it
// requires, imports and exports.
//
// Version holds the raw trimmed Bundle-Version header; it is empty when the
// manifest did not declare one. Use [BundleInfo.ParsedVersion] for ordering.
//
// Bundles indexed from a remote repository start without Path, ClassPath,
// ReexportedBundles and FragmentHost; those are filled in once the artifact is
// fetched and its manifest read (see [BundleInfo.Augment]).
type BundleInfo struct {
	Name    string
	Version string
	Path    string // jar file or exploded directory; empty until materialized
	Remote  bool   // originates from a p2 repository

	ClassPath         []string
	RequiredBundles   []BundleRequirement
	ReexportedBundles []string
	ExportedPackages  []PackageExport
	ImportedPackages  []PackageImport
	FragmentHost      *BundleRequirement
	RequiredFragments []string

	// StartLevel is the launcher start level; zero means unset.
	StartLevel int
	// AdditionalVersions lists other versions of the same bundle installed
	// alongside this one, comma separated.
	AdditionalVersions string
}

// Key returns the identity of b as "name@version".
func (b *BundleInfo) Key() string { return b.Name + "@" + b.Version }

// ParsedVersion returns the parsed bundle version, or 0.0.0 if the version is
// missing or malformed.
func (b *BundleInfo) ParsedVersion() Version {
	return LenientVersion(b.Version)
}

// SameIdentity reports whether b and o have the same name and version.
func (b *BundleInfo) SameIdentity(o *BundleInfo) bool {
	return b.Name == o.Name && b.Version == o.Version
}

// IsFragment reports whether b attaches to a host bundle.
func (b *BundleInfo) IsFragment() bool { return b.FragmentHost != nil }

// Exports reports whether b exports pkg at a version inside r.
func (b *BundleInfo) Exports(pkg string, r VersionRange) bool {
	for _, e := range b.ExportedPackages {
		if e.Name == pkg && r.Includes(e.Version) {
			return true
		}
	}
	return false
}

// Augment copies the fields only known after reading the bundle's own
// manifest (class path, re-exports, fragment host) from m into b.
func (b *BundleInfo) Augment(m *BundleInfo) {
	b.ClassPath = slices.Clone(m.ClassPath)
	b.ReexportedBundles = slices.Clone(m.ReexportedBundles)
	if m.FragmentHost != nil {
		h := *m.FragmentHost
		b.FragmentHost = &h
	}
	if len(b.ExportedPackages) == 0 {
		b.ExportedPackages = slices.Clone(m.ExportedPackages)
	}
	if len(b.ImportedPackages) == 0 {
		b.ImportedPackages = slices.Clone(m.ImportedPackages)
	}
	if len(b.RequiredBundles) == 0 {
		b.RequiredBundles = slices.Clone(m.RequiredBundles)
	}
}

// Clone returns a deep copy of b.
func (b *BundleInfo) Clone() *BundleInfo {
	c := *b
	c.ClassPath = slices.Clone(b.ClassPath)
	c.RequiredBundles = slices.Clone(b.RequiredBundles)
	c.ReexportedBundles = slices.Clone(b.ReexportedBundles)
	c.ExportedPackages = slices.Clone(b.ExportedPackages)
	c.ImportedPackages = slices.Clone(b.ImportedPackages)
	c.RequiredFragments = slices.Clone(b.RequiredFragments)
	if b.FragmentHost != nil {
		h := *b.FragmentHost
		c.FragmentHost = &h
	}
	return &c
}

func (b *BundleInfo) String() string {
	if b.Version == "" {
		return b.Name
	}
	return b.Name + " " + b.Version
}

// SplitVersionSuffix splits a plugin file or directory name such as
// "org.foo.bar_1.2.3.v2020.jar" into its symbolic name and version. The
// version is empty when the name carries none.
func SplitVersionSuffix(name string) (string, string) {
	name = strings.TrimSuffix(name, ".jar")
	for i := 1; i < len(name)-1; i++ {
		if name[i] != '_' || name[i+1] < '0' || name[i+1] > '9' {
			continue
		}
		if _, err := ParseVersion(name[i+1:]); err == nil {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}
