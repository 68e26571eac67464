package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Keyer builds cache keys. Implementations must be deterministic: the same
// inputs always produce the same key.
type Keyer interface {
	// IndexKey keys the parsed unit list of one leaf repository.
	IndexKey(repoURL string, opts IndexKeyOpts) string
}

// IndexKeyOpts are the inputs that change how a leaf index parses.
type IndexKeyOpts struct {
	// Descriptor is the file that produced the index, e.g. "content.jar".
	Descriptor string `json:"descriptor"`
	// Schema is bumped whenever the cached unit encoding changes.
	Schema int `json:"schema"`
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// IndexKey returns "index:<sha256>" over the repository URL and opts, so a
// schema bump or a different descriptor never reads an old entry.
func (DefaultKeyer) IndexKey(repoURL string, opts IndexKeyOpts) string {
	data, _ := json.Marshal(struct {
		URL  string       `json:"url"`
		Opts IndexKeyOpts `json:"opts"`
	}{repoURL, opts})
	sum := sha256.Sum256(data)
	return "index:" + hex.EncodeToString(sum[:])
}
