package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache holds the original response of a withdrawal request keyed
// by seller and request id. idempotency_logs stays the source of truth; a
// miss here only costs a database read.
type IdempotencyCache struct {
	client *goredis.Client
}

func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

func replayKey(key string) string {
	return "payout:withdrawal-replay:" + key
}

// Get returns nil, nil on a miss.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, replayKey(key)).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read withdrawal replay: %w", err)
	case len(val) == 0:
		return nil, nil
	}
	return val, nil
}

// Set never stores a record without expiry; ttl must be positive.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("withdrawal replay for %s needs a positive ttl", key)
	}
	if err := c.client.Set(ctx, replayKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("write withdrawal replay: %w", err)
	}
	return nil
}
