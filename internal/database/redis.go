package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/propplyai/propply-ai-sub002/internal/config"
)

// NewRedisClient creates a Redis client for the snapshot cache and the score
// event stream.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// PingRedis verifies the connection at startup.
func PingRedis(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
