package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/KingHippopotamus/pmax-helper/config"
	"github.com/redis/go-redis/v9"
)

var (
	redisOnce   sync.Once
	redisClient *redis.Client
	redisErr    error
)

// GetRedisClient returns a process wide Redis client for cfg.
// Only the first call dials; later calls return the same client or the same error.
func GetRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	redisOnce.Do(func() {
		redisClient, redisErr = dialRedis(cfg)
	})
	return redisClient, redisErr
}

func dialRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("cache: redis address not configured")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis %s failed: %w", addr, err)
	}
	return client, nil
}

// Close releases the shared Redis connection.
func Close() error {
	if redisClient == nil {
		return nil
	}
	return redisClient.Close()
}
