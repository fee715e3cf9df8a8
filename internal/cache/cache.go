package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"forecourt/backend/internal/domain"
)

const dashboardKeyPrefix = "dashboard_cache"

// DashboardKey is the cache entry for one store's dashboard over a window.
func DashboardKey(storeID string, window domain.Window) string {
	return dashboardKeyPrefix + ":" + storeID + ":" + window.Key()
}

type SnapshotCache interface {
	Get(ctx context.Context, key string) (*domain.DashboardSnapshot, bool, error)
	Set(ctx context.Context, key string, value *domain.DashboardSnapshot, ttl time.Duration) error
}

type NoopSnapshotCache struct{}

func (NoopSnapshotCache) Get(_ context.Context, _ string) (*domain.DashboardSnapshot, bool, error) {
	return nil, false, nil
}

func (NoopSnapshotCache) Set(_ context.Context, _ string, _ *domain.DashboardSnapshot, _ time.Duration) error {
	return nil
}

type memoryEntry struct {
	value     domain.DashboardSnapshot
	expiresAt time.Time
}

// MemorySnapshotCache is a process-local cache. Entries are cloned on the way
// in and out, so callers may mutate what they pass or receive.
type MemorySnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemorySnapshotCache() *MemorySnapshotCache {
	return &MemorySnapshotCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// WithClock replaces the time source; tests use it to step past expiry.
func (c *MemorySnapshotCache) WithClock(now func() time.Time) *MemorySnapshotCache {
	c.now = now
	return c
}

func (c *MemorySnapshotCache) Get(_ context.Context, key string) (*domain.DashboardSnapshot, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	value := entry.value.Clone()
	return &value, true, nil
}

func (c *MemorySnapshotCache) Set(_ context.Context, key string, value *domain.DashboardSnapshot, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{value: value.Clone(), expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// ErrLockHeld means another process holds the refresh lock.
var ErrLockHeld = errors.New("refresh lock held elsewhere")

type Lock interface {
	Release(ctx context.Context) error
}

type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

type NoopLocker struct{}

type noopLock struct{}

func (noopLock) Release(context.Context) error { return nil }

func (NoopLocker) Obtain(context.Context, string, time.Duration) (Lock, error) {
	return noopLock{}, nil
}
