package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping integration test")
	}

	ctx := context.Background()
	c, err := NewRedisCache(ctx, addr, "", 0, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Invalidate(ctx, "price-summary"))

	_, ok, err := c.Get(ctx, "price-summary")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "price-summary", []byte(`{"overAllStockTotal":3}`)))
	payload, ok, err := c.Get(ctx, "price-summary")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"overAllStockTotal":3}`, string(payload))

	require.NoError(t, c.Invalidate(ctx, "price-summary"))
	_, ok, err = c.Get(ctx, "price-summary")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx))
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := NewRedisCache(ctx, "127.0.0.1:1", "", 0, time.Minute)
	assert.Error(t, err)
}
