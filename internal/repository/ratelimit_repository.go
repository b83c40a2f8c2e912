package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitRepository counts hits per key in fixed windows.
type RateLimitRepository interface {
	// Incr records one hit and returns the count for the current window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

func windowKey(key string, window time.Duration, now time.Time) string {
	return fmt.Sprintf("rate:%s:%d", key, now.UnixNano()/int64(window))
}

type redisRateLimitRepository struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisRateLimitRepository(client redis.UniversalClient) RateLimitRepository {
	return &redisRateLimitRepository{client: client, now: time.Now}
}

func (r *redisRateLimitRepository) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := windowKey(key, window, r.now())

	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

type windowCount struct {
	window int64
	count  int64
}

type memoryRateLimitRepository struct {
	mu     sync.Mutex
	counts map[string]windowCount
	now    func() time.Time
}

func NewMemoryRateLimitRepository() RateLimitRepository {
	return &memoryRateLimitRepository{counts: make(map[string]windowCount), now: time.Now}
}

func (r *memoryRateLimitRepository) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.now().UnixNano() / int64(window)
	c := r.counts[key]
	if c.window != current {
		c = windowCount{window: current}
	}
	c.count++
	r.counts[key] = c
	return c.count, nil
}
