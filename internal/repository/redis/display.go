package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/3Health-View/backend/internal/domain"
)

// DisplayCache implements repository.DisplayCache using Redis. Entries are
// keyed by the raw session token, so a token refresh starts a fresh entry.
type DisplayCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDisplayCache creates a new Redis-backed display cache.
func NewDisplayCache(client *redis.Client, ttl time.Duration) *DisplayCache {
	return &DisplayCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached display list for token.
func (c *DisplayCache) Get(ctx context.Context, token string) ([]domain.DisplayRecord, bool, error) {
	data, err := c.client.Get(ctx, token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get display: %w", err)
	}

	var records []domain.DisplayRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("unmarshal display: %w", err)
	}

	return records, true, nil
}

// Set stores the display list for token with the configured TTL.
func (c *DisplayCache) Set(ctx context.Context, token string, records []domain.DisplayRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal display: %w", err)
	}

	if err := c.client.Set(ctx, token, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set display: %w", err)
	}

	return nil
}
