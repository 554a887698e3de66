package attempt

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard de-duplicates submissions by idempotency key.
// Acquire returns false when the key was already taken and has not expired.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type MemoryGuard struct {
	clock Clock
	mu    sync.Mutex
	keys  map[string]time.Time // key -> expiry
}

func NewMemoryGuard(c Clock) *MemoryGuard {
	if c == nil {
		c = RealClock{}
	}
	return &MemoryGuard{clock: c, keys: map[string]time.Time{}}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	if exp, ok := g.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	for k, exp := range g.keys {
		if !now.Before(exp) {
			delete(g.keys, k)
		}
	}
	g.keys[key] = now.Add(ttl)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

// RedisGuard shares the key space between composer replicas.
type RedisGuard struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisGuard(rdb redis.UniversalClient) *RedisGuard {
	return &RedisGuard{rdb: rdb, prefix: "composer:submit:"}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.rdb.SetNX(ctx, g.prefix+key, time.Now().Unix(), ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, g.prefix+key).Err()
}
