package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every replica. A client
// that exceeds the window is blocked for the block duration.
type RedisLimiter struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
	block  time.Duration
}

func NewRedisLimiter(rdb redis.Cmdable, limit int, window, block time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, block: block}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	blockKey := key + ":blocked"

	ttl, err := r.rdb.TTL(ctx, blockKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl > 0 {
		return Decision{Limit: r.limit, RetryAfter: ttl}, nil
	}

	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}

	count := int(incr.Val())
	if count > r.limit {
		if err := r.rdb.Set(ctx, blockKey, "1", r.block).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit block: %w", err)
		}
		return Decision{Limit: r.limit, RetryAfter: r.block}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     r.limit,
		Remaining: r.limit - count,
	}, nil
}
