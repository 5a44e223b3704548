package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Maycon01282/bot2/internal/dedupe"
)

// claimValue marks a key that an instance is handling but has not recorded.
const claimValue = "processing"

// releaseScript deletes a key only while it still holds a claim, so a late
// release never drops another instance's record.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DedupeStore keeps processed keys as Redis strings with a TTL, so several
// relay instances share one recency window. Expiry is left to Redis.
type DedupeStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewDedupeStore(client *redis.Client, prefix string, ttl time.Duration) *DedupeStore {
	if prefix == "" {
		prefix = "processed"
	}
	return &DedupeStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *DedupeStore) key(k dedupe.Key) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, k.Source, k.ID)
}

func (s *DedupeStore) Seen(ctx context.Context, k dedupe.Key) (bool, error) {
	val, err := s.client.Get(ctx, s.key(k)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	return val != claimValue, nil
}

// Record overwrites a held claim with the processed timestamp and the
// window TTL.
func (s *DedupeStore) Record(ctx context.Context, k dedupe.Key, at time.Time) error {
	if err := s.client.Set(ctx, s.key(k), at.UTC().Format(time.RFC3339Nano), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *DedupeStore) Claim(ctx context.Context, k dedupe.Key, _ time.Time, lease time.Duration) (dedupe.ClaimState, error) {
	key := s.key(k)

	acquired, err := s.client.SetNX(ctx, key, claimValue, lease).Result()
	if err != nil {
		return dedupe.ClaimBusy, fmt.Errorf("redis setnx: %w", err)
	}
	if acquired {
		return dedupe.ClaimAcquired, nil
	}

	val, err := s.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Released or expired between the two calls; the next attempt wins it.
		return dedupe.ClaimBusy, nil
	case err != nil:
		return dedupe.ClaimBusy, fmt.Errorf("redis get: %w", err)
	case val == claimValue:
		return dedupe.ClaimBusy, nil
	}
	return dedupe.ClaimDone, nil
}

func (s *DedupeStore) Release(ctx context.Context, k dedupe.Key) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.key(k)}, claimValue).Err(); err != nil {
		return fmt.Errorf("redis release: %w", err)
	}
	return nil
}
