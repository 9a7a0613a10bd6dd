// Package cache defines the cache interface.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value cache.
type Cache interface {
	// Get retrieves a value by key. Returns nil if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. If ttl is 0, the default TTL is used.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores a value only if key does not exist and reports whether it
	// was stored. If ttl is 0, the default TTL is used.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a key. Returns true if the key existed.
	Delete(ctx context.Context, key string) (bool, error)

	// DeletePattern removes all keys matching a glob pattern and returns
	// how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int64, error)

	// Ping checks if the cache connection is alive.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}
