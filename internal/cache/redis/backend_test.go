package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"stock-gateway/internal/cache"
)

// setupTestRedis starts a Redis container and returns a connected backend.
func setupTestRedis(t *testing.T) (*Backend, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err, "failed to get connection string")
	addr := strings.TrimPrefix(uri, "redis://")

	backend, err := Connect(ctx, addr, "", 0)
	require.NoError(t, err, "failed to connect to redis")

	cleanup := func() {
		backend.Close()
		_ = container.Terminate(ctx)
	}
	return backend, cleanup
}

func TestBackend_SetGetRoundtrip(t *testing.T) {
	backend, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "k1", []byte("v1"), time.Minute))

	got, err := backend.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
}

func TestBackend_MissOnAbsentKey(t *testing.T) {
	backend, cleanup := setupTestRedis(t)
	defer cleanup()

	_, err := backend.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestBackend_Expiry(t *testing.T) {
	backend, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "k1", []byte("v1"), 100*time.Millisecond))
	time.Sleep(200 * time.Millisecond)

	_, err := backend.Get(ctx, "k1")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestBackend_Delete(t *testing.T) {
	backend, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "k1", []byte("v1"), time.Minute))
	require.NoError(t, backend.Delete(ctx, "k1"))

	_, err := backend.Get(ctx, "k1")
	assert.ErrorIs(t, err, cache.ErrMiss)

	// Deleting an absent key is not an error
	assert.NoError(t, backend.Delete(ctx, "absent"))
}

func TestBackend_Ping(t *testing.T) {
	backend, cleanup := setupTestRedis(t)
	defer cleanup()

	assert.NoError(t, backend.Ping(context.Background()))
}
