package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache is a ResultCache backed by Redis. Entries expire after ttl;
// a zero ttl keeps them until evicted.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache connects to the Redis server at addr. Read failures are
// logged to logger, which may be nil.
func NewRedisCache(addr string, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return newRedisCache(redis.NewClient(&redis.Options{Addr: addr}), ttl, logger)
}

func newRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached value. Misses and connection failures both report
// false so callers fall through to computing the result; failures other
// than a miss are logged.
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false
	case err != nil:
		r.logger.Warn("Redis read failed, treating as a miss", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return val, true
}

// Set stores value under key with the cache ttl.
func (r *RedisCache) Set(ctx context.Context, key string, value string) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *RedisCache) Close() error {
	if err := r.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
