package memory

import (
	"context"
	"sync"
	"time"

	"github.com/guardgate/api/pkg/domain/threat"
)

// EventStore is a thread-safe in-process append-only threat event log.
// The log is bounded: once maxEvents is reached the oldest events are
// discarded on append.
type EventStore struct {
	mu        sync.RWMutex
	events    []threat.Event
	maxEvents int
}

// NewEventStore creates an in-memory event store capped at maxEvents.
// A non-positive cap disables the bound.
func NewEventStore(maxEvents int) *EventStore {
	return &EventStore{maxEvents: maxEvents}
}

// Append adds one event to the log, evicting the oldest events when the
// cap is exceeded.
func (s *EventStore) Append(ctx context.Context, event threat.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if s.maxEvents > 0 && len(s.events) > s.maxEvents {
		s.events = s.events[len(s.events)-s.maxEvents:]
	}
	return nil
}

// ListSince returns all events at or after since, oldest first.
func (s *EventStore) ListSince(ctx context.Context, since time.Time) ([]threat.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]threat.Event, 0, len(s.events))
	for _, ev := range s.events {
		if !ev.At.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Trim discards events older than before and returns how many were removed.
func (s *EventStore) Trim(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var removed int64
	for _, ev := range s.events {
		if ev.At.Before(before) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return removed, nil
}

var _ threat.Store = (*EventStore)(nil)
