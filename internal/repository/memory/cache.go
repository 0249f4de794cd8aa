package memory

import (
	"context"
	"sync"
	"time"

	"github.com/3Health-View/backend/internal/domain"
)

type cacheEntry struct {
	records   []domain.DisplayRecord
	expiresAt time.Time
}

// DisplayCache implements repository.DisplayCache with per-entry expiry.
type DisplayCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewDisplayCache(ttl time.Duration) *DisplayCache {
	return &DisplayCache{ttl: ttl, entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *DisplayCache) Get(_ context.Context, token string) ([]domain.DisplayRecord, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[token]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, token)
		return nil, false, nil
	}
	return append([]domain.DisplayRecord(nil), e.records...), true, nil
}

func (c *DisplayCache) Set(_ context.Context, token string, records []domain.DisplayRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[token] = cacheEntry{
		records:   append([]domain.DisplayRecord(nil), records...),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}
