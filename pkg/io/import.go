package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	errs "github.com/matzehuels/launchtower/pkg/errors"
)

// ReadJSON decodes a launch document from r.
//
// Every bundle and feature must carry a name, and a (name, version) pair may
// appear only once. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "decode launch document")
	}

	seen := make(map[string]bool, len(doc.Bundles))
	for i, b := range doc.Bundles {
		if b.Name == "" {
			return nil, errs.New(errs.ErrCodeInvalidInput, "bundle %d: missing name", i)
		}
		key := b.Name + "@" + b.Version
		if seen[key] {
			return nil, errs.New(errs.ErrCodeInvalidInput, "bundle %s: duplicate entry", key)
		}
		seen[key] = true
	}
	for i, f := range doc.Features {
		if f.Name == "" {
			return nil, errs.New(errs.ErrCodeInvalidInput, "feature %d: missing name", i)
		}
	}
	return &doc, nil
}

// ImportJSON reads a launch document from the file at path.
func ImportJSON(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// StartLevels returns the bundles with an explicit start level, keyed by name.
func (d *Document) StartLevels() map[string]int {
	out := make(map[string]int)
	for _, b := range d.Bundles {
		if b.StartLevel > 0 {
			out[b.Name] = b.StartLevel
		}
	}
	return out
}
