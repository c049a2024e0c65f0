// Package cache stores produced responses keyed by a request fingerprint.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/teasru/Secure-LLM-Gateway/internal/store"
)

// Fingerprint returns the deterministic cache key for a normalized
// (prompt, maxTokens) pair. The NUL separator keeps distinct pairs from
// colliding on concatenation.
func Fingerprint(prompt string, maxTokens int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d", prompt, maxTokens)))
	return fmt.Sprintf("%x", hash)
}

type ResponseCache struct {
	kv  store.KV
	ttl time.Duration
}

func NewResponseCache(kv store.KV, ttl time.Duration) *ResponseCache {
	return &ResponseCache{kv: kv, ttl: ttl}
}

// Get looks up a cached response. Absence and expiry are indistinguishable:
// both report a miss with no error. Backend errors also read as a miss but
// are surfaced so the caller can log the degradation.
func (c *ResponseCache) Get(ctx context.Context, fingerprint string) (string, bool, error) {
	value, err := c.kv.Get(ctx, "cache:"+fingerprint)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Put stores a response under the fingerprint with the configured TTL.
// Last write wins.
func (c *ResponseCache) Put(ctx context.Context, fingerprint, response string) error {
	return c.kv.SetEx(ctx, "cache:"+fingerprint, response, c.ttl)
}
