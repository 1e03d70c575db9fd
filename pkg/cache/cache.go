// Package cache provides the response cache shared by registry clients.
//
// A [Cache] stores opaque byte slices under string keys with a per-entry
// time-to-live. Backends:
//
//   - [MemoryCache]: in-process LRU with expiry, the server default
//   - [FileCache]: one JSON file per entry, the CLI default
//   - [RedisCache]: shared across server instances
//   - [MongoCache]: document store with a TTL index
//   - [NullCache]: caching disabled
//
// [Namespace] scopes a cache with a key prefix so that unrelated lookups
// ("crate metadata" vs "crate version dependencies") never collide.
//
// [Fetch] implements read-through caching: a hit is decoded and returned
// without calling the fetch function, a miss calls it and stores the JSON
// encoding of the result. Errors are never cached.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/matzehuels/cratescope/pkg/observability"
)

// DefaultTTL is how long registry responses stay cached.
const DefaultTTL = 600 * time.Second

// Cache is a key/value store with per-entry expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored bytes and whether the key was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl <= 0 uses the backend default.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Fetch returns the cached value for key or calls fetch on a miss and caches
// its result. A backend read error or an undecodable entry counts as a miss.
// A failed fetch is returned as-is and nothing is stored.
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	kind := keyType(c, key)
	if data, hit, err := c.Get(ctx, key); err == nil && hit {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			observability.Cache().OnCacheHit(ctx, kind)
			return v, nil
		}
		_ = c.Delete(ctx, key)
	}
	observability.Cache().OnCacheMiss(ctx, kind)

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	Store(ctx, c, key, ttl, v)
	return v, nil
}

// Store JSON-encodes v and writes it under key. Write failures are ignored;
// the cache is an optimization and never the source of truth.
func Store[T any](ctx context.Context, c Cache, key string, ttl time.Duration, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.Set(ctx, key, data, ttl); err == nil {
		observability.Cache().OnCacheSet(ctx, keyType(c, key), len(data))
	}
}

// keyType labels cache events by namespace ("crate", "deps", ...).
func keyType(c Cache, key string) string {
	if ns, ok := c.(*Namespaced); ok {
		return strings.TrimSuffix(ns.Prefix(), ":")
	}
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "default"
}
