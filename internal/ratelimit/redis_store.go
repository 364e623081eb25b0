package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const attemptKeyPrefix = "login_attempts:"

// RedisAttemptStore shares counters between server instances.
type RedisAttemptStore struct {
	client *redis.Client
}

func NewRedisAttemptStore(client *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{client: client}
}

func (s *RedisAttemptStore) Count(ctx context.Context, key string) (int, error) {
	n, err := s.client.Get(ctx, attemptKeyPrefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get attempts: %w", err)
	}
	return n, nil
}

// incrementScript bumps the counter and sets the expiry in one step. A key
// without expiry, left behind by an older writer, gets one too.
var incrementScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func (s *RedisAttemptStore) Increment(ctx context.Context, key string, ttl time.Duration) (int, error) {
	n, err := incrementScript.Run(ctx, s.client, []string{attemptKeyPrefix + key}, ttl.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("redis incr attempts: %w", err)
	}
	return n, nil
}

func (s *RedisAttemptStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, attemptKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del attempts: %w", err)
	}
	return nil
}
