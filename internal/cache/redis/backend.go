// Package redis provides a Redis cache backend. TTL expiry is honored by
// Redis itself via SET with expiration.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"stock-gateway/internal/cache"
)

// Backend is a Redis implementation of cache.Backend.
type Backend struct {
	client goredis.UniversalClient
}

// NewBackend wraps an existing Redis client.
func NewBackend(client goredis.UniversalClient) *Backend {
	return &Backend{client: client}
}

// Connect creates a Redis client for addr and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*Backend, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Backend{client: client}, nil
}

var _ cache.Backend = (*Backend)(nil)

// Get returns the value for key, or cache.ErrMiss if absent. Expired
// keys are already gone on the Redis side.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, cache.ErrMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set stores value under key with ttl. Always overwrites.
func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}
