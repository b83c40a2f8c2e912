package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// LikedRepository remembers which essays a viewer has liked.
type LikedRepository interface {
	Add(ctx context.Context, viewerKey, essayID string) error
	Members(ctx context.Context, viewerKey string) ([]string, error)
}

func likedKey(viewerKey string) string {
	return "liked:" + viewerKey
}

type redisLikedRepository struct {
	client redis.UniversalClient
}

func NewRedisLikedRepository(client redis.UniversalClient) LikedRepository {
	return &redisLikedRepository{client: client}
}

func (r *redisLikedRepository) Add(ctx context.Context, viewerKey, essayID string) error {
	return r.client.SAdd(ctx, likedKey(viewerKey), essayID).Err()
}

func (r *redisLikedRepository) Members(ctx context.Context, viewerKey string) ([]string, error) {
	return r.client.SMembers(ctx, likedKey(viewerKey)).Result()
}

type memoryLikedRepository struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

func NewMemoryLikedRepository() LikedRepository {
	return &memoryLikedRepository{sets: make(map[string]map[string]struct{})}
}

func (r *memoryLikedRepository) Add(_ context.Context, viewerKey, essayID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[viewerKey]
	if !ok {
		set = make(map[string]struct{})
		r.sets[viewerKey] = set
	}
	set[essayID] = struct{}{}
	return nil
}

func (r *memoryLikedRepository) Members(_ context.Context, viewerKey string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sets[viewerKey]))
	for id := range r.sets[viewerKey] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
