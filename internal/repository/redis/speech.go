package redis

import (
	"context"
	"time"
)

// SpeechCache stores synthesized audio bytes keyed by content hash.
// Keys carry their prefix already, derived by the speech package.
type SpeechCache struct {
	client *Client
	ttl    time.Duration
}

// NewSpeechCache creates a new speech cache
func NewSpeechCache(client *Client, ttl time.Duration) *SpeechCache {
	return &SpeechCache{client: client, ttl: ttl}
}

// Get retrieves cached audio. A miss returns (nil, nil).
func (c *SpeechCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, nil // Cache miss
	}
	return data, nil
}

// Set caches audio bytes
func (c *SpeechCache) Set(ctx context.Context, key string, audio []byte) error {
	return c.client.rdb.Set(ctx, key, audio, c.ttl).Err()
}
