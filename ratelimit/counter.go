package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Counter counts events per key inside fixed windows.
type Counter interface {
	// Increment adds one to key, opening a new window of length window when
	// none is active, and returns the count and window end.
	Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error)
	// Peek returns the current count and window end without mutating.
	Peek(ctx context.Context, key string) (int, time.Time, error)
	Reset(ctx context.Context, key string) error
}

const memorySweepThreshold = 10000

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// MemoryCounter is a process-local Counter. Expired windows are dropped on
// access; there is no background sweep. In multi-process deployments it
// undercounts globally and is only a secondary guard.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryCounter returns an empty counter. A nil now uses time.Now.
func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{
		entries: make(map[string]*memoryEntry),
		now:     now,
	}
}

func (c *MemoryCounter) Increment(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.entries) >= memorySweepThreshold {
		c.sweepLocked(now)
	}

	e, ok := c.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &memoryEntry{resetAt: now.Add(window)}
		c.entries[key] = e
	}
	e.count++

	return e.count, e.resetAt, nil
}

func (c *MemoryCounter) Peek(_ context.Context, key string) (int, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, time.Time{}, nil
	}
	if !c.now().Before(e.resetAt) {
		delete(c.entries, key)
		return 0, time.Time{}, nil
	}
	return e.count, e.resetAt, nil
}

func (c *MemoryCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len reports the number of tracked keys, including expired ones not yet dropped.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCounter) sweepLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.resetAt) {
			delete(c.entries, k)
		}
	}
}
