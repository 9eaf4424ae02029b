package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/KingHippopotamus/pmax-helper/config"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const operationTimeout = 300 * time.Millisecond

// Store keeps JSON encodable values for a limited time.
type Store interface {
	// Get decodes the value stored under key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Backend() string
}

// New returns a Redis backed store when Redis answers, and an in-process store otherwise.
func New(cfg config.RedisConfig, log *zap.SugaredLogger) Store {
	client, err := GetRedisClient(cfg)
	if err != nil {
		if log != nil {
			log.Warnw("redis unavailable, using in-memory cache", "error", err)
		}
		return NewMemoryStore()
	}
	return NewRedisStore(client)
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), operationTimeout)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= operationTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, operationTimeout)
}

func (s *redisStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	ctx, cancel := opContext(ctx)
	defer cancel()

	return s.client.Set(ctx, key, payload, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	return s.client.Del(ctx, key).Err()
}

func (s *redisStore) Backend() string { return "redis" }

type memoryStore struct {
	items *gocache.Cache
}

// NewMemoryStore returns a process local store that sweeps expired entries every ten minutes.
func NewMemoryStore() Store {
	return &memoryStore{items: gocache.New(30*time.Minute, 10*time.Minute)}
}

func (s *memoryStore) Get(_ context.Context, key string, dst any) (bool, error) {
	raw, ok := s.items.Get(key)
	if !ok {
		return false, nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	s.items.Set(key, payload, ttl)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

func (s *memoryStore) Backend() string { return "memory" }
