package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"seller-payout-service/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// consumeScript checks and consumes a challenge in one round trip.
//
// KEYS[1] challenge hash, KEYS[2] active pointer for (seller, purpose).
// ARGV: id, seller, purpose, digest, now (unix ms), max attempts.
// Returns 1 when consumed, 0 otherwise.
var consumeScript = goredis.NewScript(`
if redis.call('GET', KEYS[2]) ~= ARGV[1] then
	return 0
end
local h = redis.call('HMGET', KEYS[1], 'seller_id', 'purpose', 'digest', 'expires_at', 'consumed_at')
if not h[1] then
	return 0
end
if h[1] ~= ARGV[2] or h[2] ~= ARGV[3] then
	return 0
end
if h[5] and h[5] ~= '' then
	return 0
end
if tonumber(ARGV[5]) >= tonumber(h[4]) then
	return 0
end
if h[3] ~= ARGV[4] then
	local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
	if attempts >= tonumber(ARGV[6]) then
		redis.call('HSET', KEYS[1], 'consumed_at', ARGV[5])
		redis.call('DEL', KEYS[2])
	end
	return 0
end
redis.call('HSET', KEYS[1], 'consumed_at', ARGV[5])
redis.call('DEL', KEYS[2])
return 1
`)

// ChallengeStore implements ports.ChallengeStore.
type ChallengeStore struct {
	client *goredis.Client
	prefix string
}

// NewChallengeStore creates a Redis-backed challenge store.
func NewChallengeStore(client *goredis.Client) *ChallengeStore {
	return &ChallengeStore{client: client, prefix: "challenge:"}
}

func (s *ChallengeStore) challengeKey(id uuid.UUID) string {
	return s.prefix + id.String()
}

func (s *ChallengeStore) activeKey(sellerID string, purpose domain.ChallengePurpose) string {
	return s.prefix + "active:" + sellerID + ":" + string(purpose)
}

// Save stores ch and points the seller's active slot for its purpose at it,
// which invalidates any earlier challenge for the same purpose.
func (s *ChallengeStore) Save(ctx context.Context, ch *domain.VerificationChallenge) error {
	ttl := ch.ExpiresAt.Sub(ch.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("challenge %s already expired", ch.ID)
	}

	key := s.challengeKey(ch.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"seller_id", ch.SellerID,
			"purpose", string(ch.Purpose),
			"digest", ch.Digest,
			"expires_at", strconv.FormatInt(ch.ExpiresAt.UnixMilli(), 10),
			"attempts", 0,
			"consumed_at", "",
		)
		pipe.PExpire(ctx, key, ttl)
		pipe.Set(ctx, s.activeKey(ch.SellerID, ch.Purpose), ch.ID.String(), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis challenge save: %w", err)
	}
	return nil
}

// Consume reports whether the challenge was valid and is now used up.
func (s *ChallengeStore) Consume(ctx context.Context, id uuid.UUID, sellerID string, purpose domain.ChallengePurpose, digest string, now time.Time, maxAttempts int) (bool, error) {
	keys := []string{s.challengeKey(id), s.activeKey(sellerID, purpose)}
	res, err := consumeScript.Run(ctx, s.client, keys,
		id.String(), sellerID, string(purpose), digest, now.UnixMilli(), maxAttempts,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis challenge consume: %w", err)
	}
	return res == 1, nil
}
