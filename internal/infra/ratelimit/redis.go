package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces the limit with a per-conversation counter in Redis.
// The first message in a window creates the counter with a TTL equal to the
// window; subsequent messages increment it. This is a fixed window, which is
// acceptable for chat abuse protection and much cheaper than a store count.
type RedisLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

// NewRedisLimiter returns a Limiter backed by the given Redis client.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, window: window}
}

// Allow increments the conversation's counter and reports whether it is
// still within budget. The increment counts the incoming message, so a
// result over max means this message must be rejected.
func (l *RedisLimiter) Allow(ctx context.Context, conversationID string) (bool, error) {
	key := "ratelimit:conversation:" + conversationID

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("incrementing rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("setting rate limit ttl: %w", err)
		}
	}

	return count <= int64(l.max), nil
}
