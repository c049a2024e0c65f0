// Package store exposes the narrow key-value and counter capabilities the
// gateway's shared state (rate-limit counters, response cache, policy
// persistence) is built on, with Redis and in-memory backends.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested key does not exist or has expired.
var ErrNotFound = errors.New("key not found")

// KV is a string key-value store with optional per-key expiry.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
}

// Counter supports fixed-window rate limiting. Incr atomically increments
// the key and guarantees an expiry of window is armed on it; arming must
// be part of the same atomic step so no failure can leave a counter that
// never expires.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}
