package threat

import (
	"context"
	"time"
)

// Store defines the persistence contract for the bounded recent-events log.
//
// Implementations must be safe for concurrent appends and reads; reads take
// snapshot semantics (a read never observes a partially appended event).
type Store interface {
	// Append adds one event to the log.
	Append(ctx context.Context, event Event) error

	// ListSince returns all events at or after the given instant, oldest
	// first.
	ListSince(ctx context.Context, since time.Time) ([]Event, error)

	// Trim discards events older than the given instant and returns how
	// many were removed.
	Trim(ctx context.Context, before time.Time) (int64, error)
}
