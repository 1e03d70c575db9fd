package cache

import (
	"context"
	"time"
)

// Namespaced wraps a Cache and prefixes every key.
//
//	crates := cache.Namespace(backend, "crate:")
//	deps := cache.Namespace(backend, "deps:")
//	crates.Set(ctx, "serde", data, 0) // stored as "crate:serde"
//
// Namespaces nest: Namespace(Namespace(c, "a:"), "b:") uses prefix "a:b:".
type Namespaced struct {
	inner  Cache
	prefix string
}

// Namespace returns a view of c whose keys are prefixed with prefix.
// A nil c is replaced with a NullCache.
func Namespace(c Cache, prefix string) *Namespaced {
	if c == nil {
		c = NewNullCache()
	}
	if ns, ok := c.(*Namespaced); ok {
		return &Namespaced{inner: ns.inner, prefix: ns.prefix + prefix}
	}
	return &Namespaced{inner: c, prefix: prefix}
}

// Prefix returns the full key prefix of this view.
func (n *Namespaced) Prefix() string { return n.prefix }

// Get retrieves a prefixed key from the wrapped cache.
func (n *Namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

// Set stores a prefixed key in the wrapped cache.
func (n *Namespaced) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return n.inner.Set(ctx, n.prefix+key, data, ttl)
}

// Delete removes a prefixed key from the wrapped cache.
func (n *Namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

// Close does nothing; the wrapped cache is owned by whoever created it.
func (n *Namespaced) Close() error { return nil }

var _ Cache = (*Namespaced)(nil)
