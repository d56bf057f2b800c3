package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var errEmptyNonce = errors.New("caller key and nonce are required")

// NonceStore remembers the X-Nonce values each partner caller has used, so a
// captured callback cannot be replayed inside the timestamp window.
type NonceStore struct {
	client *goredis.Client
}

func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{client: client}
}

func nonceKey(callerKey, nonce string) string {
	return "payout:caller-nonce:" + callerKey + ":" + nonce
}

// CheckAndSet reports true the first time callerKey presents nonce within ttl.
// The first-seen unix time is stored as the value for debugging replays.
func (s *NonceStore) CheckAndSet(ctx context.Context, callerKey string, nonce string, ttl time.Duration) (bool, error) {
	if callerKey == "" || nonce == "" {
		return false, errEmptyNonce
	}
	fresh, err := s.client.SetNX(ctx, nonceKey(callerKey, nonce), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("record caller nonce: %w", err)
	}
	return fresh, nil
}
