// Package cache defines the expiring key-value store consumed by the
// session layer.
package cache

import (
	"context"
	"time"
)

// Cache is a flat key-value namespace with per-key time-to-live.
// Implementations must treat an expired key exactly like an absent one.
type Cache interface {
	// Set stores value under key with the given TTL, overwriting any
	// previous value and its remaining TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key, or domain.ErrNotFound if the key
	// is absent or expired. Reads never extend the TTL.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes key and reports whether it was present.
	Delete(ctx context.Context, key string) (bool, error)

	// Ping reports whether the cache is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying store.
	Close() error
}
