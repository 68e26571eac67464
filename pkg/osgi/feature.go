package osgi

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errs "github.com/matzehuels/launchtower/pkg/errors"
)

// FeatureFile is the descriptor name inside a feature directory or jar.
const FeatureFile = "feature.xml"

// FeaturePlugin is a bundle pulled in by a feature.
type FeaturePlugin struct {
	Name     string
	Version  string
	Fragment bool
	OS       string
	WS       string
	Arch     string
}

// FeatureRef is a nested feature pulled in by a feature.
type FeatureRef struct {
	Name     string
	Version  string
	Optional bool
	OS       string
	WS       string
	Arch     string
}

// FeatureInfo is a named grouping of bundles and other features.
type FeatureInfo struct {
	Name     string
	Version  string
	Path     string
	Remote   bool
	Plugins  []FeaturePlugin
	Features []FeatureRef
}

func (f *FeatureInfo) String() string {
	if f.Version == "" {
		return f.Name
	}
	return f.Name + " " + f.Version
}

type featureXML struct {
	ID       string `xml:"id,attr"`
	Version  string `xml:"version,attr"`
	Includes []struct {
		ID       string `xml:"id,attr"`
		Version  string `xml:"version,attr"`
		Optional bool   `xml:"optional,attr"`
		OS       string `xml:"os,attr"`
		WS       string `xml:"ws,attr"`
		Arch     string `xml:"arch,attr"`
	} `xml:"includes"`
	Imports []struct {
		Plugin  string `xml:"plugin,attr"`
		Feature string `xml:"feature,attr"`
		Version string `xml:"version,attr"`
	} `xml:"requires>import"`
	Plugins []struct {
		ID       string `xml:"id,attr"`
		Version  string `xml:"version,attr"`
		Fragment bool   `xml:"fragment,attr"`
		OS       string `xml:"os,attr"`
		WS       string `xml:"ws,attr"`
		Arch     string `xml:"arch,attr"`
	} `xml:"plugin"`
}

// ParseFeature decodes a feature.xml document. It returns an
// INVALID_DESCRIPTOR error when the feature id is missing.
func ParseFeature(r io.Reader) (*FeatureInfo, error) {
	var doc featureXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidDescriptor, err, "decode %s", FeatureFile)
	}
	if strings.TrimSpace(doc.ID) == "" {
		return nil, errs.New(errs.ErrCodeInvalidDescriptor, "%s without id", FeatureFile)
	}

	f := &FeatureInfo{Name: strings.TrimSpace(doc.ID), Version: strings.TrimSpace(doc.Version)}
	for _, inc := range doc.Includes {
		if inc.ID == "" {
			continue
		}
		f.Features = append(f.Features, FeatureRef{
			Name: inc.ID, Version: inc.Version, Optional: inc.Optional,
			OS: inc.OS, WS: inc.WS, Arch: inc.Arch,
		})
	}
	for _, imp := range doc.Imports {
		switch {
		case imp.Feature != "":
			f.Features = append(f.Features, FeatureRef{Name: imp.Feature, Version: imp.Version})
		case imp.Plugin != "":
			f.Plugins = append(f.Plugins, FeaturePlugin{Name: imp.Plugin})
		}
	}
	for _, p := range doc.Plugins {
		if p.ID == "" {
			continue
		}
		f.Plugins = append(f.Plugins, FeaturePlugin{
			Name: p.ID, Version: p.Version, Fragment: p.Fragment,
			OS: p.OS, WS: p.WS, Arch: p.Arch,
		})
	}
	return f, nil
}

// ReadFeature reads the feature at path: a directory holding feature.xml, a
// feature jar, or the feature.xml file itself. Path on the result is set to
// path.
func ReadFeature(path string) (*FeatureInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var f *FeatureInfo
	switch {
	case info.IsDir():
		f, err = readFeatureFile(filepath.Join(path, FeatureFile))
	case strings.HasSuffix(path, ".jar"):
		f, err = readFeatureJar(path)
	default:
		f, err = readFeatureFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

func readFeatureFile(path string) (*FeatureInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseFeature(file)
}

func readFeatureJar(path string) (*FeatureInfo, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	rc, err := zr.Open(FeatureFile)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ParseFeature(rc)
}
