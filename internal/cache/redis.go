package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 500 * time.Millisecond

// RedisCache stores JSON-encoded values in Redis with a fixed TTL.
// Errors talking to Redis are logged and reported as misses.
type RedisCache[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ Cache[int] = (*RedisCache[int])(nil)

func NewRedisCache[T any](addr, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache[T] {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  redisOpTimeout,
		ReadTimeout:  redisOpTimeout,
		WriteTimeout: redisOpTimeout,
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache[T]{client: rdb, prefix: prefix, ttl: ttl, logger: logger}
}

func (r *RedisCache[T]) key(k string) string { return r.prefix + k }

func (r *RedisCache[T]) Get(key string) (T, bool) {
	var zero T
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Redis get failed", "component", "cache", "key", key, "error", err)
		}
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		r.logger.Warn("Dropping undecodable cache entry", "component", "cache", "key", key, "error", err)
		r.Delete(key)
		return zero, false
	}
	return v, true
}

func (r *RedisCache[T]) Set(key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		r.logger.Error("Failed to encode cache entry", "component", "cache", "key", key, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key(key), raw, r.ttl).Err(); err != nil {
		r.logger.Warn("Redis set failed", "component", "cache", "key", key, "error", err)
	}
}

func (r *RedisCache[T]) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		r.logger.Warn("Redis delete failed", "component", "cache", "key", key, "error", err)
	}
}

// Ping checks connectivity; used by readiness probes.
func (r *RedisCache[T]) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache[T]) Close() error {
	return r.client.Close()
}
