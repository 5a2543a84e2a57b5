// Package cache provides a generic TTL key-value cache over a pluggable
// backing store. The cache is a performance optimization, never a
// correctness dependency: backing-store failures on reads are treated as
// misses, failures on writes and deletes are logged and swallowed.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"stock-gateway/internal/observability"
)

// ErrMiss is returned by a Backend when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// DefaultTTL applies when a Set is issued without an explicit TTL.
// There is no permanent cache entry.
const DefaultTTL = 5 * time.Minute

// Backend is the raw byte-level store behind a Cache. Implementations
// must honor TTL expiry either natively (Redis) or by checking expiry on
// read (memory).
type Backend interface {
	// Get returns the value for key, or ErrMiss if absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. Always overwrites.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}

// Cache is a typed TTL cache for one key family. Keys are prefixed with
// the cache's namespace; payloads are JSON-encoded.
type Cache[T any] struct {
	backend    Backend
	namespace  string
	defaultTTL time.Duration
	logger     *log.Logger
}

// New creates a cache over backend for the given key namespace.
func New[T any](backend Backend, namespace string, defaultTTL time.Duration, logger *log.Logger) *Cache[T] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[cache] ", log.LstdFlags)
	}
	return &Cache[T]{
		backend:    backend,
		namespace:  namespace,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// Get returns the cached value for key. Misses, expired entries and
// backing-store failures all report ok=false; the caller falls through
// to the source of truth.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	data, err := c.backend.Get(ctx, c.key(key))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Printf("get %s: %v (treated as miss)", c.key(key), err)
		}
		observability.RecordCacheOp(c.namespace, "get", "miss")
		return zero, false
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Printf("decode %s: %v (treated as miss)", c.key(key), err)
		observability.RecordCacheOp(c.namespace, "get", "miss")
		return zero, false
	}

	observability.RecordCacheOp(c.namespace, "get", "hit")
	return value, true
}

// Set stores value under key. A non-positive ttl applies the cache's
// default. Failures are logged and swallowed.
func (c *Cache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Printf("encode %s: %v (skipping set)", c.key(key), err)
		return
	}

	if err := c.backend.Set(ctx, c.key(key), data, ttl); err != nil {
		c.logger.Printf("set %s: %v (ignored)", c.key(key), err)
		observability.RecordCacheOp(c.namespace, "set", "error")
		return
	}
	observability.RecordCacheOp(c.namespace, "set", "ok")
}

// Delete invalidates key. Failures are logged and swallowed.
func (c *Cache[T]) Delete(ctx context.Context, key string) {
	if err := c.backend.Delete(ctx, c.key(key)); err != nil {
		c.logger.Printf("delete %s: %v (ignored)", c.key(key), err)
		observability.RecordCacheOp(c.namespace, "delete", "error")
		return
	}
	observability.RecordCacheOp(c.namespace, "delete", "ok")
}

// Available reports whether the backing store answers a ping.
func (c *Cache[T]) Available(ctx context.Context) bool {
	return c.backend.Ping(ctx) == nil
}

func (c *Cache[T]) key(k string) string {
	return c.namespace + ":" + k
}
