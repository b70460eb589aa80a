package redis

import (
	"context"
	"testing"
	"time"

	"idempotency-gateway/internal/core/ports"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayCache_SetAndGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewReplayCache(client)
	ctx := context.Background()

	key := "key-001"
	reply := &ports.CachedReply{
		RequestHash: "abc123",
		StatusCode:  201,
		Body:        []byte(`{"paymentId":"p-1"}`),
	}

	// Get before set => nil, nil
	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	// Set
	err = cache.Set(ctx, key, reply, 24*time.Hour)
	require.NoError(t, err)

	// Get after set
	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "abc123", result.RequestHash)
	assert.Equal(t, 201, result.StatusCode)
	assert.Equal(t, []byte(`{"paymentId":"p-1"}`), result.Body)
}

func TestReplayCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewReplayCache(client)
	ctx := context.Background()

	err := cache.Set(ctx, "key-002", &ports.CachedReply{StatusCode: 200}, 1*time.Second)
	require.NoError(t, err)

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, "key-002")
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestReplayCache_CorruptEntry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewReplayCache(client)
	ctx := context.Background()

	require.NoError(t, s.Set("idempotency:replay:key-003", "not json"))

	result, err := cache.Get(ctx, "key-003")
	assert.Error(t, err)
	assert.Nil(t, result)
}
