package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter with one Redis key per window.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// windowKey names the counter of the window containing the current time.
func (r *RateLimiter) windowKey(key string, window time.Duration) string {
	return fmt.Sprintf("%s:%d", key, r.now().UnixNano()/int64(window))
}

// Allow counts one hit against key and reports whether it stays within limit for the window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	wk := r.windowKey(key, window)
	count, err := r.client.Incr(ctx, wk)
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", wk, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, wk, window); err != nil {
			return false, fmt.Errorf("expire %s: %w", wk, err)
		}
	}
	return count <= int64(limit), nil
}
