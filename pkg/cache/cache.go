// Package cache stores parsed repository indexes between runs.
//
// Indexing a large p2 repository means downloading and parsing tens of
// megabytes of XML. The parsed unit lists are cached under keys produced by a
// [Keyer] so later runs against the same repositories skip the network.
//
// # Backends
//
//   - [FileCache]: one JSON file per key under a directory (CLI default)
//   - [RedisCache]: a shared Redis instance, for build farms running many
//     resolutions against the same mirrors
//   - [NullCache]: stores nothing (--no-cache)
//
// # Retries
//
// [RetryWithBackoff] retries transient transport failures that were wrapped
// with [Retryable]. Not-found responses are never retried.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the stored value and whether it was found. Expired entries
	// are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}
