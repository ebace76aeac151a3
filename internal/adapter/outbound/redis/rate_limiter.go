package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/projecthub/server/internal/port/outbound"
)

const rateLimitKeyPrefix = "projecthub:ratelimit:"

// rateLimiter implements outbound.RateLimiterPort with a sorted set per key.
// Each hit is a member scored by its timestamp; members older than the window
// are trimmed before counting.
type rateLimiter struct {
	client redis.UniversalClient
}

// NewRateLimiter creates a new rate limiter adapter.
func NewRateLimiter(client redis.UniversalClient) outbound.RateLimiterPort {
	return &rateLimiter{client: client}
}

func (r *rateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := rateLimitKeyPrefix + key
	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	// Record the hit and count in one transaction so concurrent callers see each other.
	var countCmd *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, fullKey, "0", strconv.FormatInt(windowStart, 10))
		pipe.ZAdd(ctx, fullKey, redis.Z{Score: float64(now), Member: member})
		countCmd = pipe.ZCard(ctx, fullKey)
		pipe.Expire(ctx, fullKey, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if countCmd.Val() <= int64(limit) {
		return true, nil
	}

	// Rejected hits do not consume the budget.
	if err := r.client.ZRem(ctx, fullKey, member).Err(); err != nil {
		return false, fmt.Errorf("rate limit rollback %s: %w", key, err)
	}
	return false, nil
}

func (r *rateLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	fullKey := rateLimitKeyPrefix + key
	windowStart := time.Now().UnixNano() - window.Nanoseconds()

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, fullKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	remaining := limit - int(countCmd.Val())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Compile-time check
var _ outbound.RateLimiterPort = (*rateLimiter)(nil)
