package store

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-memory implementation of KV and Counter, used in
// tests and single-process deployments without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	counts  map[string]*counterEntry

	// Now is the clock used for expiry checks; tests may override it.
	Now func() time.Time
}

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		counts:  make(map[string]*counterEntry),
		Now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		return "", ErrNotFound
	}
	return e.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &entry{value: value}
	return nil
}

func (s *MemoryStore) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &entry{value: value, expiresAt: s.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counts[key]
	if !ok || (!c.expiresAt.IsZero() && !s.Now().Before(c.expiresAt)) {
		c = &counterEntry{}
		s.counts[key] = c
	}
	c.count++
	if c.expiresAt.IsZero() {
		c.expiresAt = s.Now().Add(window)
	}
	return c.count, nil
}
