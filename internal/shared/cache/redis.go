package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/projecthub/server/internal/shared/config"
)

// NewRedisClient creates a Redis client for the rate limiter and verifies it.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Address},
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Address, err)
	}

	return client, nil
}
