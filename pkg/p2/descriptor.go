package p2

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"

	errs "github.com/matzehuels/launchtower/pkg/errors"
)

// Descriptor lookup orders.
var (
	compositeDescriptors = []string{"compositeContent.jar", "compositeContent.xml.xz", "compositeContent.xml"}
	contentDescriptors   = []string{"content.jar", "content.xml.xz", "content.xml"}
)

// Capability namespaces used by p2 metadata.
const (
	nsIU       = "org.eclipse.equinox.p2.iu"
	nsBundle   = "osgi.bundle"
	nsPackage  = "java.package"
	nsFragment = "osgi.fragment"

	featureGroupSuffix = ".feature.group"
	featureJarSuffix   = ".feature.jar"
)

var startLevelRe = regexp.MustCompile(`setStartLevel\(startLevel:(\d+)\)`)

type compositeXML struct {
	Children []struct {
		Location string `xml:"location,attr"`
	} `xml:"children>child"`
}

type contentXML struct {
	Units []unitXML `xml:"units>unit"`
}

type unitXML struct {
	ID       string `xml:"id,attr"`
	Version  string `xml:"version,attr"`
	Filter   string `xml:"filter"`
	Provides []struct {
		Namespace string `xml:"namespace,attr"`
		Name      string `xml:"name,attr"`
		Version   string `xml:"version,attr"`
	} `xml:"provides>provided"`
	Requires []struct {
		Namespace string `xml:"namespace,attr"`
		Name      string `xml:"name,attr"`
		Range     string `xml:"range,attr"`
		Optional  bool   `xml:"optional,attr"`
		Filter    string `xml:"filter"`
	} `xml:"requires>required"`
	Instructions []struct {
		Key  string `xml:"key,attr"`
		Text string `xml:",chardata"`
	} `xml:"touchpointData>instructions>instruction"`
}

// Capability is a provided capability of a unit.
type Capability struct {
	Namespace string `json:"ns"`
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
}

// Requirement is a required capability of a unit.
type Requirement struct {
	Namespace string `json:"ns"`
	Name      string `json:"name"`
	Range     string `json:"range,omitempty"`
	Optional  bool   `json:"optional,omitempty"`
	Filter    string `json:"filter,omitempty"`
}

// Unit is an installable unit of a leaf repository, reduced to what the
// resolver needs. Units are cached as JSON.
type Unit struct {
	ID         string        `json:"id"`
	Version    string        `json:"version"`
	Filter     string        `json:"filter,omitempty"`
	Provides   []Capability  `json:"provides,omitempty"`
	Requires   []Requirement `json:"requires,omitempty"`
	StartLevel int           `json:"start_level,omitempty"`
}

// IsBundle reports whether u describes an OSGi bundle.
func (u *Unit) IsBundle() bool {
	for _, p := range u.Provides {
		if p.Namespace == nsBundle {
			return true
		}
	}
	return false
}

// IsFeature reports whether u is a feature group.
func (u *Unit) IsFeature() bool {
	return strings.HasSuffix(u.ID, featureGroupSuffix)
}

// decodeComposite parses a composite descriptor and returns child locations.
func decodeComposite(name string, data []byte) ([]string, error) {
	r, err := openDescriptor(name, data)
	if err != nil {
		return nil, err
	}
	var doc compositeXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidDescriptor, err, "decode %s", name)
	}
	var children []string
	for _, c := range doc.Children {
		if loc := strings.TrimSpace(c.Location); loc != "" {
			children = append(children, loc)
		}
	}
	return children, nil
}

// decodeContent parses a content index into units. Units without an id are
// skipped.
func decodeContent(name string, data []byte) ([]Unit, error) {
	r, err := openDescriptor(name, data)
	if err != nil {
		return nil, err
	}
	var doc contentXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidDescriptor, err, "decode %s", name)
	}

	units := make([]Unit, 0, len(doc.Units))
	for _, ux := range doc.Units {
		if ux.ID == "" {
			continue
		}
		u := Unit{ID: ux.ID, Version: ux.Version, Filter: strings.TrimSpace(ux.Filter)}
		for _, p := range ux.Provides {
			u.Provides = append(u.Provides, Capability{Namespace: p.Namespace, Name: p.Name, Version: p.Version})
		}
		for _, q := range ux.Requires {
			u.Requires = append(u.Requires, Requirement{
				Namespace: q.Namespace, Name: q.Name, Range: q.Range,
				Optional: q.Optional, Filter: strings.TrimSpace(q.Filter),
			})
		}
		for _, in := range ux.Instructions {
			if m := startLevelRe.FindStringSubmatch(in.Text); m != nil {
				u.StartLevel, _ = strconv.Atoi(m[1])
			}
		}
		units = append(units, u)
	}
	return units, nil
}

// openDescriptor unwraps a descriptor payload according to its file name:
// jars hold a single XML entry, .xz files are xz streams.
func openDescriptor(name string, data []byte) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".jar"):
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidDescriptor, err, "open %s", name)
		}
		want := strings.TrimSuffix(name, ".jar") + ".xml"
		for _, f := range zr.File {
			if f.Name == want {
				return f.Open()
			}
		}
		return nil, errs.New(errs.ErrCodeInvalidDescriptor, "%s does not contain %s", name, want)
	case strings.HasSuffix(name, ".xz"):
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidDescriptor, err, "open %s", name)
		}
		return r, nil
	case strings.HasSuffix(name, ".xml"):
		return bytes.NewReader(data), nil
	}
	return nil, fmt.Errorf("p2: unknown descriptor type %q", name)
}
