package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRevocations remembers login sessions that ended before their tokens
// expired. Entries only need to outlive the longest token of the session.
type SessionRevocations interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	Revoked(ctx context.Context, sessionID string) (bool, error)
}

// RedisSessionRevocations shares revocations between server instances.
type RedisSessionRevocations struct {
	redis *redis.Client
}

func NewRedisSessionRevocations(client *redis.Client) *RedisSessionRevocations {
	return &RedisSessionRevocations{redis: client}
}

func (r *RedisSessionRevocations) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if err := r.redis.Set(ctx, revokedSessionKey(sessionID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisSessionRevocations) Revoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.redis.Exists(ctx, revokedSessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w: %w", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

func revokedSessionKey(sessionID string) string {
	return "revoked-session:" + sessionID
}

// MemorySessionRevocations is the single-instance fallback used when Redis
// is not configured.
type MemorySessionRevocations struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemorySessionRevocations() *MemorySessionRevocations {
	return &MemorySessionRevocations{
		until: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (m *MemorySessionRevocations) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, until := range m.until {
		if !now.Before(until) {
			delete(m.until, id)
		}
	}
	m.until[sessionID] = now.Add(ttl)
	return nil
}

func (m *MemorySessionRevocations) Revoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.until[sessionID]
	return ok && m.now().Before(until), nil
}
