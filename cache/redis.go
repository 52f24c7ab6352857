package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"example.com/backstage/services/saga/config"
)

// ErrMiss is returned by Get when the key is absent or the cache is disabled
var ErrMiss = errors.New("cache miss")

// RedisCache caches view models in front of the read database
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
}

// NewRedisCache connects to Redis; a disabled config yields a cache that
// always misses
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return Disabled(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	return &RedisCache{client: client, ttl: cfg.TTL, enabled: true}, nil
}

// Disabled returns a cache that stores nothing
func Disabled() *RedisCache {
	return &RedisCache{}
}

func (c *RedisCache) Enabled() bool {
	return c != nil && c.enabled
}

// Get decodes the cached value for key into value
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return ErrMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrMiss
	}
	if err != nil {
		return errors.Wrap(err, "failed to get value from Redis")
	}
	if err := json.Unmarshal(data, value); err != nil {
		return errors.Wrap(err, "failed to unmarshal cached value")
	}
	return nil
}

// Set stores value under key for the configured TTL
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "failed to delete value from Redis")
	}
	return nil
}

// SagaInstanceKey is the cache key of a saga instance view
func SagaInstanceKey(id string) string {
	return fmt.Sprintf("saga_instance:%s", id)
}

// SagaStepKey is the cache key of a saga step view
func SagaStepKey(id string) string {
	return fmt.Sprintf("saga_step:%s", id)
}

func (c *RedisCache) Close() error {
	if !c.Enabled() || c.client == nil {
		return nil
	}
	return c.client.Close()
}
