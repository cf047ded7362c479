package accesslist

import (
	"context"
	"time"
)

// Repository defines the persistence contract for allow/deny entries.
//
// Implementations must be safe for concurrent use. Consistency is eventual:
// brief staleness across gateway replicas is acceptable. Find filters expiry
// itself so a lapsed exact entry never shadows an active CIDR entry; List
// returns entries as stored and leaves filtering to the caller.
type Repository interface {
	// Upsert stores an entry, replacing any existing entry with the same
	// kind and IP.
	Upsert(ctx context.Context, entry *Entry) error

	// Find returns the entry of the given kind active at now and covering
	// ip: an exact match when present, otherwise the first stored CIDR
	// entry containing ip. Expired entries are skipped. Returns
	// ErrEntryNotFound when nothing active covers it.
	Find(ctx context.Context, kind Kind, ip string, now time.Time) (*Entry, error)

	// Remove deletes the exact entry for (kind, ip). Returns
	// ErrEntryNotFound when no such entry is stored.
	Remove(ctx context.Context, kind Kind, ip string) error

	// List returns all stored entries of the given kind.
	List(ctx context.Context, kind Kind) ([]*Entry, error)

	// RemoveExpired deletes entries whose expiry precedes now and returns
	// how many were removed.
	RemoveExpired(ctx context.Context, now time.Time) (int64, error)
}
