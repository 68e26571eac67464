package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/launchtower/pkg/resolve"
	"github.com/matzehuels/launchtower/pkg/result"
)

// Document is the JSON form of a resolved launch.
type Document struct {
	RunID       string          `json:"run_id"`
	Product     result.Product  `json:"product"`
	Splash      string          `json:"splash,omitempty"`
	WorkingDir  string          `json:"working_dir,omitempty"`
	ProgramArgs []string        `json:"program_args,omitempty"`
	VMArgs      []string        `json:"vm_args,omitempty"`
	Bundles     []Bundle        `json:"bundles"`
	Features    []Feature       `json:"features"`
	Unresolved  *resolve.Report `json:"unresolved,omitempty"`
}

// Bundle is one resolved bundle version.
type Bundle struct {
	Name               string   `json:"name"`
	Version            string   `json:"version,omitempty"`
	Path               string   `json:"path,omitempty"`
	Remote             bool     `json:"remote,omitempty"`
	StartLevel         int      `json:"start_level,omitempty"`
	FragmentHost       string   `json:"fragment_host,omitempty"`
	Fragments          []string `json:"fragments,omitempty"`
	AdditionalVersions string   `json:"additional_versions,omitempty"`
}

// Feature is one resolved feature.
type Feature struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Path    string `json:"path,omitempty"`
	Remote  bool   `json:"remote,omitempty"`
}

// NewDocument snapshots res. A nil or clean report is omitted.
func NewDocument(res *result.Result, report *resolve.Report) *Document {
	doc := &Document{
		RunID:       res.RunID,
		Product:     res.Product,
		Splash:      res.SplashPath,
		WorkingDir:  res.WorkingDir,
		ProgramArgs: res.ProgramArgs,
		VMArgs:      res.VMArgs,
		Bundles:     []Bundle{},
		Features:    []Feature{},
	}
	for _, b := range res.AllBundles() {
		out := Bundle{
			Name:               b.Name,
			Version:            b.Version,
			Path:               b.Path,
			Remote:             b.Remote,
			StartLevel:         b.StartLevel,
			Fragments:          b.RequiredFragments,
			AdditionalVersions: b.AdditionalVersions,
		}
		if b.FragmentHost != nil {
			out.FragmentHost = b.FragmentHost.Name
		}
		doc.Bundles = append(doc.Bundles, out)
	}
	for _, name := range res.FeatureNames() {
		f, _ := res.Feature(name)
		doc.Features = append(doc.Features, Feature{Name: f.Name, Version: f.Version, Path: f.Path, Remote: f.Remote})
	}
	if report != nil && !report.Clean() {
		doc.Unresolved = report
	}
	return doc
}

// WriteJSON encodes the launch described by res and report as indented JSON.
func WriteJSON(res *result.Result, report *resolve.Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(res, report)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes the launch to a JSON file at path.
func ExportJSON(res *result.Result, report *resolve.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(res, report, f)
}
