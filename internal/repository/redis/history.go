package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"officehours/backend/internal/domain"
)

const historyCachePrefix = "history:"

// HistoryCache caches recent conversation turns per session so a
// streaming turn does not hit Postgres for context
type HistoryCache struct {
	client *Client
	ttl    time.Duration
}

// NewHistoryCache creates a new history cache
func NewHistoryCache(client *Client, ttl time.Duration) *HistoryCache {
	return &HistoryCache{client: client, ttl: ttl}
}

// Get retrieves cached history for a session. A miss returns (nil, nil).
func (c *HistoryCache) Get(ctx context.Context, sessionID uuid.UUID) ([]domain.HistoryEntry, error) {
	key := fmt.Sprintf("%s%s", historyCachePrefix, sessionID.String())

	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, nil // Cache miss
	}

	var history []domain.HistoryEntry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	return history, nil
}

// Set caches history for a session
func (c *HistoryCache) Set(ctx context.Context, sessionID uuid.UUID, history []domain.HistoryEntry) error {
	key := fmt.Sprintf("%s%s", historyCachePrefix, sessionID.String())

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	return c.client.rdb.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate removes cached history for a session
func (c *HistoryCache) Invalidate(ctx context.Context, sessionID uuid.UUID) error {
	key := fmt.Sprintf("%s%s", historyCachePrefix, sessionID.String())
	return c.client.rdb.Del(ctx, key).Err()
}
