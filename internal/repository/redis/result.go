package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const resultCachePrefix = "result:"

// ResultCache stores completed reply text per session so a repeated
// question replays instantly without an upstream call
type ResultCache struct {
	client *Client
	ttl    time.Duration
}

// NewResultCache creates a new result cache
func NewResultCache(client *Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

// Key derives the cache key from the session, the question, and the
// history length. Including history length keeps a repeat of an old
// question from replaying a stale answer after the conversation moved on.
func (c *ResultCache) Key(sessionID uuid.UUID, message string, historyLen int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%s", sessionID, historyLen, message))
	return resultCachePrefix + hex.EncodeToString(sum[:])
}

// Get retrieves a cached reply. A miss returns ("", nil).
func (c *ResultCache) Get(ctx context.Context, key string) (string, error) {
	text, err := c.client.rdb.Get(ctx, key).Result()
	if err != nil {
		return "", nil // Cache miss
	}
	return text, nil
}

// Set caches a completed reply
func (c *ResultCache) Set(ctx context.Context, key string, text string) error {
	return c.client.rdb.Set(ctx, key, text, c.ttl).Err()
}
