package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL is applied to cache writes when neither the interceptor nor
// the per-call options set one.
const DefaultTTL = 300 * time.Second

// writeTimeout bounds a detached cache write.
const writeTimeout = 5 * time.Second

// Options holds configuration for an Interceptor.
type Options struct {
	// DefaultTTL is applied to writes when the per-call options carry
	// none.
	// Default: 300 seconds
	DefaultTTL time.Duration

	// Logger receives warn events for swallowed store failures.
	Logger zerolog.Logger
}

// Interceptor wraps operations with read-through caching and eviction.
// Store failures never propagate: they are logged at warn level and the
// wrapped operation proceeds as if the cache were absent.
type Interceptor struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger

	writes sync.WaitGroup
}

// New creates an Interceptor over store.
func New(store Store, opts Options) *Interceptor {
	ttl := opts.DefaultTTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Interceptor{
		store:  store,
		ttl:    ttl,
		logger: opts.Logger,
	}
}

// CacheableOptions controls the read-through path.
type CacheableOptions struct {
	// Key is the cache key template. When nil, the fallback key derived
	// from Target and the call context is used.
	Key *KeyTemplate

	// Target names the operation for fallback key derivation.
	Target string

	// TTL overrides the interceptor default for this entry.
	TTL time.Duration
}

// EvictOptions controls the eviction path.
type EvictOptions struct {
	// Keys lists templates whose resolved keys are evicted.
	Keys []*KeyTemplate

	// Pattern is the glob used when AllEntries is set, e.g. "user:*".
	// Empty means every entry.
	Pattern string

	// AllEntries switches eviction from Keys to Pattern.
	AllEntries bool

	// Before evicts prior to running the operation instead of after it
	// succeeds.
	Before bool
}

// Cached serves fetch through the read-through cache. A hit decodes the
// stored JSON into T without invoking fetch. A miss, or any store or
// decode failure, falls through to fetch; a successful result is written
// back asynchronously and returned immediately. A fetch error propagates
// unchanged and nothing is written.
func Cached[T any](ctx context.Context, it *Interceptor, cc CallContext, opts CacheableOptions, fetch func(context.Context) (T, error)) (T, error) {
	key := it.resolveKey(cc, opts)

	data, found, err := it.store.Get(ctx, key)
	if err != nil {
		it.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
	} else if found {
		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			it.logger.Warn().Err(err).Str("key", key).Msg("cache entry corrupt, treating as miss")
		} else {
			return value, nil
		}
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = it.ttl
	}
	it.writeAsync(key, value, ttl)

	return value, nil
}

// Evict runs op with cache eviction ordered by opts.Before. With the
// default ordering, eviction happens only after op succeeds, so a failed
// mutation leaves existing entries in place. Store failures are logged
// and never affect op's result.
func Evict[T any](ctx context.Context, it *Interceptor, cc CallContext, opts EvictOptions, op func(context.Context) (T, error)) (T, error) {
	if opts.Before {
		it.evict(ctx, cc, opts)
	}

	value, err := op(ctx)
	if err != nil {
		return value, err
	}

	if !opts.Before {
		it.evict(ctx, cc, opts)
	}
	return value, nil
}

// Flush blocks until all in-flight asynchronous cache writes complete.
func (it *Interceptor) Flush() {
	it.writes.Wait()
}

func (it *Interceptor) resolveKey(cc CallContext, opts CacheableOptions) string {
	if opts.Key != nil {
		return opts.Key.Resolve(cc)
	}
	return FallbackKey(opts.Target, cc)
}

// writeAsync stores the value without blocking the caller. The value is
// encoded before detaching so a later mutation by the caller cannot race
// the write, and the write itself uses a fresh context so it survives the
// request that produced it.
func (it *Interceptor) writeAsync(key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		it.logger.Warn().Err(err).Str("key", key).Msg("cache encode failed, skipping write")
		return
	}

	it.writes.Add(1)
	go func() {
		defer it.writes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := it.store.Set(ctx, key, data, ttl); err != nil {
			it.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}()
}

func (it *Interceptor) evict(ctx context.Context, cc CallContext, opts EvictOptions) {
	if opts.AllEntries {
		pattern := opts.Pattern
		if pattern == "" {
			pattern = "*"
		}
		n, err := it.store.DeleteByPattern(ctx, pattern)
		if err != nil {
			it.logger.Warn().Err(err).Str("pattern", pattern).Msg("cache pattern eviction failed")
			return
		}
		it.logger.Debug().Str("pattern", pattern).Int("deleted", n).Msg("cache entries evicted")
		return
	}

	for _, tmpl := range opts.Keys {
		key := tmpl.Resolve(cc)
		if _, err := it.store.Delete(ctx, key); err != nil {
			it.logger.Warn().Err(err).Str("key", key).Msg("cache eviction failed")
		}
	}
}
