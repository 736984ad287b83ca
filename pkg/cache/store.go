// Package cache provides a keyed byte store abstraction, cache key
// templating, and a read-through interceptor for wrapping operations with
// caching and eviction.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrBadPattern reports a malformed DeleteByPattern glob.
var ErrBadPattern = errors.New("cache: bad pattern")

// Store is a keyed byte store with per-entry expiry and glob-pattern
// deletion. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key. The second return value is
	// false on a miss; a miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A ttl of zero stores the entry without
	// expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the entry under key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// DeleteByPattern removes every entry whose key matches the glob
	// pattern, e.g. "user:*", and returns the number deleted.
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}
