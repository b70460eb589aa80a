package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"idempotency-gateway/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// ReplayCache implements ports.ReplayCache using Redis. It is a best-effort
// fast path: a miss or error always falls through to the record store.
type ReplayCache struct {
	client *goredis.Client
	prefix string
}

// NewReplayCache creates a new Redis-backed replay cache.
func NewReplayCache(client *goredis.Client) *ReplayCache {
	return &ReplayCache{
		client: client,
		prefix: "idempotency:replay:",
	}
}

// Get retrieves a cached reply by idempotency key.
// Returns nil, nil if the key does not exist.
func (c *ReplayCache) Get(ctx context.Context, key string) (*ports.CachedReply, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis replay get: %w", err)
	}

	reply := &ports.CachedReply{}
	if err := json.Unmarshal(val, reply); err != nil {
		return nil, fmt.Errorf("decode cached reply: %w", err)
	}
	return reply, nil
}

// Set stores a reply in the replay cache with TTL.
func (c *ReplayCache) Set(ctx context.Context, key string, reply *ports.CachedReply, ttl time.Duration) error {
	val, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("encode cached reply: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis replay set: %w", err)
	}
	return nil
}
