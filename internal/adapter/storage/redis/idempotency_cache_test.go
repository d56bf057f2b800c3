package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "seller-42:withdrawal:r1"
	value := []byte(`{"key":"seller-42:withdrawal:r1","fingerprint":"5000|m1"}`)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, cache.Set(ctx, key, value, 24*time.Hour))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
	assert.True(t, s.Exists("payout:withdrawal-replay:"+key), "keys are namespaced")
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "seller-1:withdrawal:r2", []byte(`{}`), time.Second))

	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, "seller-1:withdrawal:r2")
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestIdempotencyCache_ServerDown(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	s.Close()

	_, err := cache.Get(context.Background(), "seller-1:withdrawal:r3")
	assert.Error(t, err)
}

func TestIdempotencyCache_SetRequiresExpiry(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)

	err := cache.Set(context.Background(), "seller-1:withdrawal:r4", []byte(`{}`), 0)
	assert.Error(t, err)
	assert.False(t, s.Exists("payout:withdrawal-replay:seller-1:withdrawal:r4"))
}
