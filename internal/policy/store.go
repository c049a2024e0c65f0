package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/teasru/Secure-LLM-Gateway/internal/store"
)

const kvKey = "active_policy"

// Store holds the single active policy. Load is a lock-free pointer read;
// Replace swaps the snapshot for all subsequent readers in one atomic step.
// The backing KV persists the raw document across restarts, best-effort.
type Store struct {
	current atomic.Pointer[Policy]
	kv      store.KV
	logger  *slog.Logger
}

// NewStore initializes the store from the KV-persisted document if present,
// otherwise from the bundled default file at path. Missing both is a fatal
// configuration error: the service must not start without a policy.
func NewStore(ctx context.Context, kv store.KV, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{kv: kv, logger: logger}

	if raw, err := kv.Get(ctx, kvKey); err == nil {
		p, perr := ParseDocument([]byte(raw))
		if perr == nil {
			s.current.Store(p)
			return s, nil
		}
		logger.Warn("persisted policy is invalid, falling back to bundled default", "error", perr)
	} else if !errors.Is(err, store.ErrNotFound) {
		logger.Warn("policy backend unreachable, falling back to bundled default", "error", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no active policy and default document unavailable: %w", err)
	}
	p, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("default policy document: %w", err)
	}
	s.current.Store(p)

	if err := kv.Set(ctx, kvKey, string(data)); err != nil {
		logger.Warn("failed to persist default policy", "error", err)
	}
	return s, nil
}

// Load returns the current active policy. Never nil after NewStore succeeds.
func (s *Store) Load() *Policy {
	return s.current.Load()
}

// Replace atomically swaps the active policy and persists the document.
// The in-process swap always takes effect; a persistence failure is logged
// and does not undo it.
func (s *Store) Replace(ctx context.Context, p *Policy) {
	s.current.Store(p)

	data, err := json.Marshal(p.Document())
	if err == nil {
		err = s.kv.Set(ctx, kvKey, string(data))
	}
	if err != nil {
		s.logger.Warn("failed to persist replaced policy", "error", err)
	}
}
