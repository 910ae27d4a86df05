package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/social-scheduler/internal/pkg/logger"
)

// Breaker defaults.
const (
	DefaultStopThreshold = 3
	DefaultFailureWindow = 15 * time.Minute
)

// RedisBreaker counts proxy failures per user in a sliding Redis window.
// Once the count reaches the threshold, proxied failures for that user stop
// falling back to direct connections until the window expires.
type RedisBreaker struct {
	client    *redis.Client
	threshold int64
	window    time.Duration
}

// NewRedisBreaker creates a breaker. Non-positive values use the defaults.
func NewRedisBreaker(client *redis.Client, threshold int, window time.Duration) *RedisBreaker {
	if threshold <= 0 {
		threshold = DefaultStopThreshold
	}
	if window <= 0 {
		window = DefaultFailureWindow
	}
	return &RedisBreaker{client: client, threshold: int64(threshold), window: window}
}

func (b *RedisBreaker) key(userID string) string {
	return fmt.Sprintf("proxy:failures:%s", userID)
}

// RecordFailure increments the user's failure counter, starting the window on
// the first failure.
func (b *RedisBreaker) RecordFailure(ctx context.Context, userID string) (int64, error) {
	key := b.key(userID)
	n, err := b.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("recording proxy failure: %w", err)
	}
	if n == 1 {
		if err := b.client.Expire(ctx, key, b.window).Err(); err != nil {
			return n, fmt.Errorf("setting proxy failure window: %w", err)
		}
	}
	return n, nil
}

// Tripped reports whether the user's failure count reached the threshold.
// Redis errors fail open (not tripped) so a cache outage never blocks
// publishing.
func (b *RedisBreaker) Tripped(ctx context.Context, userID string) bool {
	n, err := b.client.Get(ctx, b.key(userID)).Int64()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("proxy breaker lookup failed", "user_id", userID, "error", err.Error())
		}
		return false
	}
	return n >= b.threshold
}

// Reset clears the user's failure counter.
func (b *RedisBreaker) Reset(ctx context.Context, userID string) error {
	return b.client.Del(ctx, b.key(userID)).Err()
}
