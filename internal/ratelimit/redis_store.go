package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a CounterStore backed by Redis, for deployments where
// several instances must enforce one shared limit. Counters use plain
// INCR with a window-length expiry set atomically on first increment.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// incrScript increments the key and sets its expiry only when the key is
// new, so the fixed window starts at the first request.
var incrScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`)

// NewRedisStore creates a CounterStore on the given Redis client. All keys
// are namespaced under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Incr implements CounterStore.
func (s *RedisStore) Incr(ctx context.Context, key string, windowSize time.Duration) (int, error) {
	count, err := incrScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		windowSize.Milliseconds(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return count, nil
}

// Decr implements CounterStore.
func (s *RedisStore) Decr(ctx context.Context, key string) error {
	if err := s.client.Decr(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis decr %s: %w", key, err)
	}
	return nil
}
