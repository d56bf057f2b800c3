package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const healthCheckKey = "payout:health"

// HealthCheck requires a writable Redis; a read-only replica cannot hold
// challenges, nonces or rate counters.
type HealthCheck struct {
	client *goredis.Client
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Set(ctx, healthCheckKey, time.Now().Unix(), 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis health write: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string { return "redis" }
