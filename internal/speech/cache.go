package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
)

// Cache stores synthesized audio keyed by content hash. A miss returns
// (nil, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, audio []byte) error
}

// CachedSynthesizer wraps a Synthesizer with a byte cache so repeated
// sentences skip the upstream call entirely.
type CachedSynthesizer struct {
	inner  Synthesizer
	cache  Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedSynthesizer wraps inner with cache
func NewCachedSynthesizer(inner Synthesizer, cache Cache) *CachedSynthesizer {
	return &CachedSynthesizer{inner: inner, cache: cache}
}

// Voice returns the underlying synthesizer voice
func (c *CachedSynthesizer) Voice() string { return c.inner.Voice() }

// Model returns the underlying synthesizer model
func (c *CachedSynthesizer) Model() string { return c.inner.Model() }

// Key derives the cache key for a sentence. Voice and model are part
// of the key so a config change never serves stale audio.
func (c *CachedSynthesizer) Key(text string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s", c.inner.Voice(), c.inner.Model(), text))
	return "speech:" + hex.EncodeToString(sum[:])
}

// Synthesize returns cached audio when available, otherwise calls the
// underlying synthesizer and stores the result. Cache read and write
// failures are swallowed so audio still flows when Redis is down.
func (c *CachedSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	key := c.Key(text)

	if cached, err := c.cache.Get(ctx, key); err == nil && cached != nil {
		c.hits.Add(1)
		return cached, nil
	}
	c.misses.Add(1)

	audio, err := c.inner.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	_ = c.cache.Set(ctx, key, audio)
	return audio, nil
}

// Stats returns cache hit and miss counts since startup
func (c *CachedSynthesizer) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
