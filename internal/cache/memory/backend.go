// Package memory provides an in-memory cache backend for tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"stock-gateway/internal/cache"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Backend is an in-memory implementation of cache.Backend. Expired
// entries are treated as absent on read; they are purged lazily.
type Backend struct {
	mu   sync.RWMutex
	data map[string]entry
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{data: make(map[string]entry)}
}

var _ cache.Backend = (*Backend)(nil)

// Get returns the value for key, or cache.ErrMiss if absent or expired.
func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	e, exists := b.data[key]
	b.mu.RUnlock()

	if !exists {
		return nil, cache.ErrMiss
	}
	if time.Now().After(e.expiresAt) {
		b.mu.Lock()
		// Re-check under write lock: the entry may have been overwritten.
		if cur, ok := b.data[key]; ok && time.Now().After(cur.expiresAt) {
			delete(b.data, key)
		}
		b.mu.Unlock()
		return nil, cache.ErrMiss
	}

	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, nil
}

// Set stores value under key for ttl. Always overwrites.
func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = entry{value: stored, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

// Ping always succeeds.
func (b *Backend) Ping(_ context.Context) error {
	return nil
}

// Len returns the number of stored entries, including expired ones not
// yet purged. Used by tests.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}
