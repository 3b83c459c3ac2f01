package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter for KEYS[1] and starts the window on the first hit.
// Returns {count, remaining ttl in ms}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

const redisKeyPrefix = "evote:ratelimit:"

// RedisStore is a fixed window counter shared between gateway replicas.
type RedisStore struct {
	client redis.Scripter
	max    int
	window time.Duration
}

func NewRedisStore(client redis.Scripter, max int, window time.Duration) *RedisStore {
	return &RedisStore{client: client, max: max, window: window}
}

// RedisStoreFactory adapts NewRedisStore for use with New
func RedisStoreFactory(client redis.Scripter) func(int, time.Duration) (Store, error) {
	return func(max int, window time.Duration) (Store, error) {
		if window < time.Millisecond {
			return nil, fmt.Errorf("redis rate limit window must be at least 1ms")
		}
		return NewRedisStore(client, max, window), nil
	}
}

func (s *RedisStore) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := fixedWindowScript.Run(ctx, s.client, []string{redisKeyPrefix + key}, s.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit script returned %d values, want 2", len(res))
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond

	return Decision{
		Allowed:    count <= s.max,
		Limit:      s.max,
		Remaining:  max(0, s.max-count),
		ResetAfter: ttl,
	}, nil
}

// NewRedisClient parses a redis:// URL and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to reach redis: %w", err)
	}
	return client, nil
}
