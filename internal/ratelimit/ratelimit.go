// Package ratelimit implements per-subject fixed-window request counting.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/teasru/Secure-LLM-Gateway/internal/store"
)

type RateLimiter struct {
	counter store.Counter
	limit   int
	window  time.Duration
}

func NewRateLimiter(counter store.Counter, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{counter: counter, limit: limit, window: window}
}

// Allow increments the subject's counter for the current window and reports
// whether the request is admitted. A rejected request still counts against
// the window. The counter arms its own expiry atomically with the
// increment, so a transient backend error can never strand a counter that
// outlives its window.
//
// Fail-open: if the counter backend errors, Allow returns true together
// with the error so the caller can log the degradation. Quota enforcement
// is never allowed to take the generation service down with it.
func (rl *RateLimiter) Allow(ctx context.Context, subject string) (bool, error) {
	count, err := rl.counter.Incr(ctx, fmt.Sprintf("rate:%s", subject), rl.window)
	if err != nil {
		return true, err
	}
	return count <= int64(rl.limit), nil
}
