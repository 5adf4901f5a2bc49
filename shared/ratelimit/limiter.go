package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrRedisUnavailable = errors.New("rate limit redis unavailable")
)

// Limiter is a fixed-window counter keyed by an arbitrary identifier.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// Config describes one fixed window.
type Config struct {
	Prefix      string
	Window      time.Duration
	MaxAttempts int
}

// RedisLimiter counts hits with INCR and arms the window with EXPIRE on the first hit.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedisLimiter creates a RedisLimiter.
func NewRedisLimiter(redisClient redis.UniversalClient, cfg Config) *RedisLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &RedisLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Allow records a hit for key and returns ErrRateLimited once the window is exhausted.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	if l.config.MaxAttempts <= 0 {
		return nil
	}

	fullKey := l.config.Prefix + ":" + key

	count, err := l.redis.Incr(ctx, fullKey).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, fullKey, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// Noop never limits.
type Noop struct{}

func (Noop) Allow(context.Context, string) error { return nil }
