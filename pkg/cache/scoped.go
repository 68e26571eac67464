package cache

// ScopedKeyer wraps a Keyer with a prefix so several tools or teams can share
// one Redis instance without key collisions.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "launchtower:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// IndexKey generates a prefixed key for repository index caching.
func (k *ScopedKeyer) IndexKey(repoURL string, opts IndexKeyOpts) string {
	return k.prefix + k.inner.IndexKey(repoURL, opts)
}
