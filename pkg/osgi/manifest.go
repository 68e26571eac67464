package osgi

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	errs "github.com/matzehuels/launchtower/pkg/errors"
)

// ManifestPath is the location of the manifest inside a bundle.
const ManifestPath = "META-INF/MANIFEST.MF"

// Manifest header names recognized by [ParseManifest].
const (
	HeaderSymbolicName  = "Bundle-SymbolicName"
	HeaderVersion       = "Bundle-Version"
	HeaderClassPath     = "Bundle-ClassPath"
	HeaderRequireBundle = "Require-Bundle"
	HeaderExport        = "Export-Package"
	HeaderImport        = "Import-Package"
	HeaderFragmentHost  = "Fragment-Host"
)

// ParseManifest builds a BundleInfo from manifest headers. It returns an
// INVALID_MANIFEST error when Bundle-SymbolicName is missing.
func ParseManifest(h Header) (*BundleInfo, error) {
	name := TrimDirectives(h.Get(HeaderSymbolicName))
	if name == "" {
		return nil, errs.New(errs.ErrCodeInvalidManifest, "missing %s", HeaderSymbolicName)
	}

	b := &BundleInfo{
		Name:    name,
		Version: strings.TrimSpace(h.Get(HeaderVersion)),
	}

	for _, c := range ParseClauses(h.Get(HeaderClassPath)) {
		b.ClassPath = append(b.ClassPath, c.Paths...)
	}

	for _, c := range ParseClauses(h.Get(HeaderRequireBundle)) {
		if c.Directives["resolution"] == "optional" {
			continue
		}
		req := BundleRequirement{
			Name:     c.Path(),
			Range:    parseRangeLenient(c.Attrs["bundle-version"]),
			Reexport: c.Directives["visibility"] == "reexport",
		}
		b.RequiredBundles = append(b.RequiredBundles, req)
		if req.Reexport {
			b.ReexportedBundles = append(b.ReexportedBundles, req.Name)
		}
	}

	for _, c := range ParseClauses(h.Get(HeaderExport)) {
		raw := c.Attrs["version"]
		if raw == "" {
			raw = c.Attrs["specification-version"]
		}
		v, _ := ParseVersion(raw)
		for _, p := range c.Paths {
			b.ExportedPackages = append(b.ExportedPackages, PackageExport{Name: p, Version: v})
		}
	}

	for _, c := range ParseClauses(h.Get(HeaderImport)) {
		raw := c.Attrs["version"]
		if raw == "" {
			raw = c.Attrs["specification-version"]
		}
		r := parseRangeLenient(raw)
		optional := c.Directives["resolution"] == "optional"
		for _, p := range c.Paths {
			b.ImportedPackages = append(b.ImportedPackages, PackageImport{Name: p, Range: r, Optional: optional})
		}
	}

	if cs := ParseClauses(h.Get(HeaderFragmentHost)); len(cs) > 0 {
		b.FragmentHost = &BundleRequirement{
			Name:  cs[0].Path(),
			Range: parseRangeLenient(cs[0].Attrs["bundle-version"]),
		}
	}

	return b, nil
}

// ReadBundle reads the manifest of the bundle at path, which may be a jar or
// an exploded directory, and sets Path on the result.
func ReadBundle(path string) (*BundleInfo, error) {
	h, err := ReadBundleHeader(path)
	if err != nil {
		return nil, err
	}
	b, err := ParseManifest(h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.Path = path
	return b, nil
}

// ReadBundleHeader returns the raw manifest headers of the bundle at path.
func ReadBundleHeader(path string) (Header, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		f, err := os.Open(filepath.Join(path, filepath.FromSlash(ManifestPath)))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadManifest(f)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle archive %s: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !strings.EqualFold(f.Name, ManifestPath) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open manifest in %s: %w", path, err)
		}
		defer rc.Close()
		return ReadManifest(rc)
	}
	return nil, errs.New(errs.ErrCodeInvalidManifest, "%s: no %s", path, ManifestPath)
}

func parseRangeLenient(raw string) VersionRange {
	r, err := ParseRange(raw)
	if err != nil {
		return AnyVersion
	}
	return r
}
