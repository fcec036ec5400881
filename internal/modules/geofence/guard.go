// README: Per-user evaluation guard: atomic cooldown reservation plus the last-attempted-park marker.
package geofence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pickleheart/internal/types"
)

// Guard serialises geofence evaluations per user across watches and instances.
type Guard interface {
	// Acquire atomically checks the cooldown and, when it has elapsed,
	// reserves the next period. It reports whether the caller may evaluate.
	Acquire(ctx context.Context, userID types.ID) (bool, error)
	// Release drops a reservation whose evaluation aborted before deciding.
	Release(ctx context.Context, userID types.ID) error
	LastAttempt(ctx context.Context, userID types.ID) (types.ID, error)
	SetLastAttempt(ctx context.Context, userID, parkID types.ID) error
	ClearLastAttempt(ctx context.Context, userID types.ID) error
}

type MemoryGuard struct {
	mu       sync.Mutex
	cooldown time.Duration
	now      func() time.Time
	until    map[types.ID]time.Time
	marker   map[types.ID]types.ID
}

func NewMemoryGuard(cooldown time.Duration) *MemoryGuard {
	return &MemoryGuard{
		cooldown: cooldown,
		now:      time.Now,
		until:    make(map[types.ID]time.Time),
		marker:   make(map[types.ID]types.ID),
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, userID types.ID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if until, ok := g.until[userID]; ok && now.Before(until) {
		return false, nil
	}
	g.until[userID] = now.Add(g.cooldown)
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, userID types.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.until, userID)
	return nil
}

func (g *MemoryGuard) LastAttempt(_ context.Context, userID types.ID) (types.ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.marker[userID], nil
}

func (g *MemoryGuard) SetLastAttempt(_ context.Context, userID, parkID types.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marker[userID] = parkID
	return nil
}

func (g *MemoryGuard) ClearLastAttempt(_ context.Context, userID types.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.marker, userID)
	return nil
}

const (
	cooldownKeyPrefix = "geofence:cooldown:"
	markerKeyPrefix   = "geofence:marker:"
	markerTTL         = 12 * time.Hour
)

// RedisGuard keeps guard state in Redis so every API instance agrees.
type RedisGuard struct {
	redis    *redis.Client
	cooldown time.Duration
}

func NewRedisGuard(client *redis.Client, cooldown time.Duration) *RedisGuard {
	return &RedisGuard{redis: client, cooldown: cooldown}
}

func (g *RedisGuard) Acquire(ctx context.Context, userID types.ID) (bool, error) {
	if g.cooldown <= 0 {
		return true, nil
	}
	return g.redis.SetNX(ctx, cooldownKeyPrefix+string(userID), 1, g.cooldown).Result()
}

func (g *RedisGuard) Release(ctx context.Context, userID types.ID) error {
	return g.redis.Del(ctx, cooldownKeyPrefix+string(userID)).Err()
}

func (g *RedisGuard) LastAttempt(ctx context.Context, userID types.ID) (types.ID, error) {
	v, err := g.redis.Get(ctx, markerKeyPrefix+string(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return types.ID(v), nil
}

func (g *RedisGuard) SetLastAttempt(ctx context.Context, userID, parkID types.ID) error {
	return g.redis.Set(ctx, markerKeyPrefix+string(userID), string(parkID), markerTTL).Err()
}

func (g *RedisGuard) ClearLastAttempt(ctx context.Context, userID types.ID) error {
	return g.redis.Del(ctx, markerKeyPrefix+string(userID)).Err()
}
