package cache

import (
	"context"
	"time"
)

// NullCache stores nothing. It backs --no-cache and configs with caching
// disabled, so every index lookup goes to the repository.
type NullCache struct{}

func NewNullCache() Cache {
	return NullCache{}
}

func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NullCache) Delete(context.Context, string) error { return nil }

func (NullCache) Close() error { return nil }
