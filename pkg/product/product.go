// Package product reads product descriptors (.product files).
//
// A descriptor names the plugins and features a product is built from, the
// start levels of selected plugins, a splash bundle and launcher argument
// blocks. [Parse] keeps the data as declared; filtering by target
// environment and tokenizing arguments happen on demand.
package product

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"

	errs "github.com/matzehuels/launchtower/pkg/errors"
	"github.com/matzehuels/launchtower/pkg/osgi"
)

// Plugin is a bundle listed by the product.
type Plugin struct {
	Name     string
	Version  string
	Fragment bool
	OS       string
	WS       string
	Arch     string
}

// Feature is a feature listed by the product.
type Feature struct {
	Name    string
	Version string
}

// StartConfig assigns a start level to a plugin.
type StartConfig struct {
	Name       string
	AutoStart  bool
	StartLevel int
}

// Product is a parsed product descriptor.
type Product struct {
	Name        string
	UID         string
	ID          string
	Application string
	Version     string
	UseFeatures bool
	Splash      string // bundle holding splash.bmp

	Plugins        []Plugin
	Features       []Feature
	Configurations []StartConfig

	// Program and VM argument blobs keyed by OS; "" holds the generic block.
	ProgramArgs map[string]string
	VMArgs      map[string]string
}

type productXML struct {
	XMLName     xml.Name `xml:"product"`
	Name        string   `xml:"name,attr"`
	UID         string   `xml:"uid,attr"`
	ID          string   `xml:"id,attr"`
	Application string   `xml:"application,attr"`
	Version     string   `xml:"version,attr"`
	UseFeatures string   `xml:"useFeatures,attr"`
	Type        string   `xml:"type,attr"`
	Splash      struct {
		Location string `xml:"location,attr"`
	} `xml:"splash"`
	LauncherArgs struct {
		Blocks []struct {
			XMLName xml.Name
			Text    string `xml:",chardata"`
		} `xml:",any"`
	} `xml:"launcherArgs"`
	Plugins []struct {
		ID       string `xml:"id,attr"`
		Version  string `xml:"version,attr"`
		Fragment bool   `xml:"fragment,attr"`
		OS       string `xml:"os,attr"`
		WS       string `xml:"ws,attr"`
		Arch     string `xml:"arch,attr"`
	} `xml:"plugins>plugin"`
	Features []struct {
		ID      string `xml:"id,attr"`
		Version string `xml:"version,attr"`
	} `xml:"features>feature"`
	Configurations []struct {
		ID         string `xml:"id,attr"`
		AutoStart  bool   `xml:"autoStart,attr"`
		StartLevel string `xml:"startLevel,attr"`
	} `xml:"configurations>plugin"`
}

// argument block suffixes and the OS names they stand for
var osSuffixes = map[string]string{
	"Lin": "linux",
	"Mac": "macosx",
	"Sol": "solaris",
	"Win": "win32",
}

// Parse decodes a product descriptor. Plugins, features and start level
// entries without an id are dropped.
func Parse(r io.Reader) (*Product, error) {
	var doc productXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidDescriptor, err, "decode product")
	}
	if doc.ID == "" && doc.UID == "" && doc.Name == "" {
		return nil, errs.New(errs.ErrCodeInvalidDescriptor, "product has no name, uid or id")
	}

	p := &Product{
		Name:        doc.Name,
		UID:         doc.UID,
		ID:          doc.ID,
		Application: doc.Application,
		Version:     doc.Version,
		UseFeatures: doc.UseFeatures == "true" || doc.Type == "features" || doc.Type == "mixed",
		Splash:      strings.TrimSpace(doc.Splash.Location),
		ProgramArgs: make(map[string]string),
		VMArgs:      make(map[string]string),
	}
	for _, pl := range doc.Plugins {
		if pl.ID == "" {
			continue
		}
		p.Plugins = append(p.Plugins, Plugin{
			Name: pl.ID, Version: pl.Version, Fragment: pl.Fragment,
			OS: pl.OS, WS: pl.WS, Arch: pl.Arch,
		})
	}
	for _, f := range doc.Features {
		if f.ID != "" {
			p.Features = append(p.Features, Feature{Name: f.ID, Version: f.Version})
		}
	}
	for _, c := range doc.Configurations {
		if c.ID == "" {
			continue
		}
		level, _ := strconv.Atoi(strings.TrimSpace(c.StartLevel))
		p.Configurations = append(p.Configurations, StartConfig{Name: c.ID, AutoStart: c.AutoStart, StartLevel: level})
	}
	for _, b := range doc.LauncherArgs.Blocks {
		name := b.XMLName.Local
		var target map[string]string
		switch {
		case strings.HasPrefix(name, "programArgs"):
			target, name = p.ProgramArgs, strings.TrimPrefix(name, "programArgs")
		case strings.HasPrefix(name, "vmArgs"):
			target, name = p.VMArgs, strings.TrimPrefix(name, "vmArgs")
		default:
			continue
		}
		if name != "" {
			sys, ok := osSuffixes[name]
			if !ok {
				continue
			}
			name = sys
		}
		target[name] = strings.TrimSpace(b.Text)
	}
	return p, nil
}

// Read parses the product descriptor at path.
func Read(path string) (*Product, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "product %s", path)
		}
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// DisplayName returns the first non-empty of Name, ID and UID.
func (p *Product) DisplayName() string {
	for _, s := range []string{p.Name, p.ID, p.UID} {
		if s != "" {
			return s
		}
	}
	return ""
}

// PluginsFor returns the plugins that apply to env.
func (p *Product) PluginsFor(env osgi.Env) []Plugin {
	var out []Plugin
	for _, pl := range p.Plugins {
		if env.Matches(pl.OS, pl.WS, pl.Arch) {
			out = append(out, pl)
		}
	}
	return out
}

// StartLevels maps plugin names to their configured start level. Entries
// without a positive level are left out.
func (p *Product) StartLevels() map[string]int {
	levels := make(map[string]int)
	for _, c := range p.Configurations {
		if c.StartLevel > 0 {
			levels[c.Name] = c.StartLevel
		}
	}
	return levels
}

// ProgramArgsFor returns the generic program arguments followed by those
// for osName.
func (p *Product) ProgramArgsFor(osName string) []string {
	return argsFor(p.ProgramArgs, osName)
}

// VMArgsFor returns the generic VM arguments followed by those for osName.
func (p *Product) VMArgsFor(osName string) []string {
	return argsFor(p.VMArgs, osName)
}

func argsFor(blocks map[string]string, osName string) []string {
	args := Tokenize(blocks[""])
	if osName != "" {
		args = append(args, Tokenize(blocks[osName])...)
	}
	return args
}
