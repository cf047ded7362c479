// Package memory provides in-process implementations of the gateway's
// persistence contracts. They back single-instance deployments and tests;
// multi-replica deployments use the redis implementations instead.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/guardgate/api/pkg/domain/ratelimit"
)

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// CounterStore is a thread-safe in-process counter backend with fixed-window
// expiry semantics matching the redis implementation.
type CounterStore struct {
	mu       sync.Mutex
	counters map[string]*counterEntry
	now      func() time.Time
}

// NewCounterStore creates an in-memory counter store.
func NewCounterStore() *CounterStore {
	return &CounterStore{
		counters: make(map[string]*counterEntry),
		now:      time.Now,
	}
}

// WithClock overrides the store's clock. Test hook.
func (s *CounterStore) WithClock(now func() time.Time) *CounterStore {
	s.now = now
	return s
}

// Increment atomically increments key, setting the expiry on first increment
// only. Expired keys restart at one with a fresh window.
func (s *CounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.counters[key]
	if !ok || !entry.expiresAt.After(now) {
		entry = &counterEntry{expiresAt: now.Add(window)}
		s.counters[key] = entry
	}
	entry.count++
	return entry.count, entry.expiresAt.Sub(now), nil
}

// Get returns the current count for key, zero when absent or expired.
func (s *CounterStore) Get(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.counters[key]
	if !ok || !entry.expiresAt.After(s.now()) {
		return 0, nil
	}
	return entry.count, nil
}

// Ping always succeeds for the in-process store.
func (s *CounterStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

var _ ratelimit.CounterStore = (*CounterStore)(nil)
