package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records session ids whose stateless tokens must be refused
// before their natural expiry.
type RevocationList interface {
	// Add denies tokens bound to sessionID until until. Past deadlines are ignored.
	Add(ctx context.Context, sessionID string, until time.Time) error
	Contains(ctx context.Context, sessionID string) (bool, error)
}

// RedisRevocationList stores one expiring key per revoked session.
type RedisRevocationList struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisRevocationList returns a denylist under prefix ("srv" when empty).
func NewRedisRevocationList(client redis.UniversalClient, prefix string, now func() time.Time) *RedisRevocationList {
	if prefix == "" {
		prefix = "srv"
	}
	if now == nil {
		now = time.Now
	}
	return &RedisRevocationList{redis: client, prefix: prefix, now: now}
}

func (l *RedisRevocationList) key(sessionID string) string {
	return l.prefix + ":" + sessionID
}

func (l *RedisRevocationList) Add(ctx context.Context, sessionID string, until time.Time) error {
	ttl := until.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	if err := l.redis.Set(ctx, l.key(sessionID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *RedisRevocationList) Contains(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	_, err := l.redis.Get(ctx, l.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return true, nil
}

// MemoryRevocationList is a process-local denylist. Entries are dropped
// lazily once their deadline passes.
type MemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationList returns an empty denylist.
func NewMemoryRevocationList(now func() time.Time) *MemoryRevocationList {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocationList{entries: make(map[string]time.Time), now: now}
}

func (l *MemoryRevocationList) Add(_ context.Context, sessionID string, until time.Time) error {
	if !until.After(l.now()) {
		return nil
	}
	l.mu.Lock()
	if existing, ok := l.entries[sessionID]; !ok || until.After(existing) {
		l.entries[sessionID] = until
	}
	l.mu.Unlock()
	return nil
}

func (l *MemoryRevocationList) Contains(_ context.Context, sessionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until, ok := l.entries[sessionID]
	if !ok {
		return false, nil
	}
	if !l.now().Before(until) {
		delete(l.entries, sessionID)
		return false, nil
	}
	return true, nil
}
