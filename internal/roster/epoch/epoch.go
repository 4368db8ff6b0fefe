// Package epoch tracks which natural keys the primary reconciler has handled
// in the current reconciliation epoch. The secondary sync consults it before
// its best-effort person correction so the two jobs do not race on the same
// linkage field; the mark expires with the epoch TTL.
package epoch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mealcard/internal/roster/models"
)

const keyPrefix = "mealcard:epoch:"

// RedisGuard stores per-natural-key marks in Redis with a TTL.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) MarkReconciled(ctx context.Context, key models.NaturalKey) error {
	if err := g.client.Set(ctx, keyPrefix+key.String(), "1", g.ttl).Err(); err != nil {
		return fmt.Errorf("mark reconciled %s: %w", key, err)
	}
	return nil
}

func (g *RedisGuard) Reconciled(ctx context.Context, key models.NaturalKey) (bool, error) {
	n, err := g.client.Exists(ctx, keyPrefix+key.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check reconciled %s: %w", key, err)
	}
	return n > 0, nil
}

// MemoryGuard backs unit tests.
type MemoryGuard struct {
	mu   sync.RWMutex
	keys map[models.NaturalKey]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{keys: make(map[models.NaturalKey]struct{})}
}

func (g *MemoryGuard) MarkReconciled(_ context.Context, key models.NaturalKey) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys[key] = struct{}{}
	return nil
}

func (g *MemoryGuard) Reconciled(_ context.Context, key models.NaturalKey) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.keys[key]
	return ok, nil
}

// NopGuard is used when Redis is not configured: nothing is marked and every
// correction is allowed, which matches the uncoordinated legacy behavior.
type NopGuard struct{}

func (NopGuard) MarkReconciled(context.Context, models.NaturalKey) error { return nil }

func (NopGuard) Reconciled(context.Context, models.NaturalKey) (bool, error) { return false, nil }
