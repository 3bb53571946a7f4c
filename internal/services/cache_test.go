package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedValue struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func TestDisabledCache(t *testing.T) {
	cache, err := NewCacheServiceFromURL("")
	require.NoError(t, err)
	assert.False(t, cache.Enabled())

	ctx := context.Background()
	assert.NoError(t, cache.Ping(ctx))
	assert.NoError(t, cache.Set(ctx, "k", cachedValue{Name: "a"}, time.Minute))
	assert.NoError(t, cache.SetWithRetry(ctx, "k", cachedValue{Name: "a"}, time.Minute, 3))
	assert.NoError(t, cache.Delete(ctx, "k"))

	var out cachedValue
	assert.ErrorIs(t, cache.Get(ctx, "k", &out), ErrCacheMiss)
	assert.NoError(t, cache.Close())
}

func TestInvalidRedisURL(t *testing.T) {
	_, err := NewCacheServiceFromURL("not-a-url://")
	assert.Error(t, err)
}

func TestCatalogCacheKey(t *testing.T) {
	assert.Equal(t, "catalog:file:latest", CatalogCacheKey("file"))
}

func TestRedisCacheRoundTrip(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("Skipping redis test - TEST_REDIS_URL not set")
	}

	cache, err := NewCacheServiceFromURL(redisURL)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.Ping(ctx))

	key := "cache-test:" + time.Now().Format(time.RFC3339Nano)
	require.NoError(t, cache.SetWithRetry(ctx, key, cachedValue{Name: "Reece Walsh", Price: 3.5}, time.Minute, 2))

	var out cachedValue
	require.NoError(t, cache.Get(ctx, key, &out))
	assert.Equal(t, cachedValue{Name: "Reece Walsh", Price: 3.5}, out)

	require.NoError(t, cache.Delete(ctx, key))
	assert.ErrorIs(t, cache.Get(ctx, key, &out), ErrCacheMiss)
}
