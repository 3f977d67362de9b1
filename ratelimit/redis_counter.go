package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrRedisUnavailable wraps Redis command failures.
var ErrRedisUnavailable = errors.New("ratelimit redis unavailable")

// RedisCounter is a Counter shared across processes through Redis.
type RedisCounter struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisCounter returns a counter storing keys under prefix.
func NewRedisCounter(client redis.UniversalClient, prefix string, now func() time.Time) *RedisCounter {
	if now == nil {
		now = time.Now
	}
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisCounter{redis: client, prefix: prefix, now: now}
}

func (c *RedisCounter) key(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	k := c.key(key)

	count, err := c.redis.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := c.redis.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return 1, c.now().Add(window), nil
	}

	ttl, err := c.redis.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		// Expiry was lost (crash between INCR and PEXPIRE); reopen the window.
		if err := c.redis.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		ttl = window
	}

	return int(count), c.now().Add(ttl), nil
}

func (c *RedisCounter) Peek(ctx context.Context, key string) (int, time.Time, error) {
	k := c.key(key)

	count, err := c.redis.Get(ctx, k).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, time.Time{}, nil
		}
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	ttl, err := c.redis.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return count, time.Time{}, nil
	}

	return count, c.now().Add(ttl), nil
}

func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// FallbackCounter serves from primary and switches to fallback for any call
// where primary fails. Fallback counts are local to the process.
type FallbackCounter struct {
	primary  Counter
	fallback Counter
	logger   *zap.Logger
}

// NewFallbackCounter pairs a durable counter with a local one.
func NewFallbackCounter(primary, fallback Counter, logger *zap.Logger) *FallbackCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackCounter{primary: primary, fallback: fallback, logger: logger}
}

func (c *FallbackCounter) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, resetAt, err := c.primary.Increment(ctx, key, window)
	if err == nil {
		return count, resetAt, nil
	}
	c.logger.Warn("rate limit backend unavailable, using local window", zap.String("key", key), zap.Error(err))
	return c.fallback.Increment(ctx, key, window)
}

func (c *FallbackCounter) Peek(ctx context.Context, key string) (int, time.Time, error) {
	count, resetAt, err := c.primary.Peek(ctx, key)
	if err == nil {
		return count, resetAt, nil
	}
	c.logger.Warn("rate limit backend unavailable, using local window", zap.String("key", key), zap.Error(err))
	return c.fallback.Peek(ctx, key)
}

func (c *FallbackCounter) Reset(ctx context.Context, key string) error {
	_ = c.fallback.Reset(ctx, key)
	return c.primary.Reset(ctx, key)
}
