package memory

import (
	"context"
	"sync"
	"time"

	"github.com/guardgate/api/pkg/domain/accesslist"
)

// AccessListRepository is a thread-safe in-process allow/deny list store.
// Entries are indexed by kind and normalized IP; CIDR containment falls back
// to a scan, mirroring the redis implementation.
type AccessListRepository struct {
	mu      sync.RWMutex
	entries map[accesslist.Kind]map[string]*accesslist.Entry
}

// NewAccessListRepository creates an in-memory access list repository.
func NewAccessListRepository() *AccessListRepository {
	return &AccessListRepository{
		entries: map[accesslist.Kind]map[string]*accesslist.Entry{
			accesslist.KindAllow: {},
			accesslist.KindDeny:  {},
		},
	}
}

// Upsert stores entry, replacing any existing entry with the same kind and IP.
func (r *AccessListRepository) Upsert(ctx context.Context, entry *accesslist.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	r.entries[entry.Kind][entry.IP] = &cp
	return nil
}

// Find returns the active entry of kind covering ip, exact match first. An
// expired exact entry does not stop the CIDR fallback.
func (r *AccessListRepository) Find(ctx context.Context, kind accesslist.Kind, ip string, now time.Time) (*accesslist.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	byIP := r.entries[kind]
	if entry, ok := byIP[ip]; ok && entry.Active(now) {
		cp := *entry
		return &cp, nil
	}
	for _, entry := range byIP {
		if entry.IsCIDR() && entry.Active(now) && entry.Matches(ip) {
			cp := *entry
			return &cp, nil
		}
	}
	return nil, accesslist.ErrEntryNotFound
}

// Remove deletes the exact entry for (kind, ip).
func (r *AccessListRepository) Remove(ctx context.Context, kind accesslist.Kind, ip string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[kind][ip]; !ok {
		return accesslist.ErrEntryNotFound
	}
	delete(r.entries[kind], ip)
	return nil
}

// List returns all stored entries of kind.
func (r *AccessListRepository) List(ctx context.Context, kind accesslist.Kind) ([]*accesslist.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*accesslist.Entry, 0, len(r.entries[kind]))
	for _, entry := range r.entries[kind] {
		cp := *entry
		out = append(out, &cp)
	}
	return out, nil
}

// RemoveExpired deletes entries whose expiry precedes now.
func (r *AccessListRepository) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for _, byIP := range r.entries {
		for ip, entry := range byIP {
			if entry.ExpiresAt != nil && entry.ExpiresAt.Before(now) {
				delete(byIP, ip)
				removed++
			}
		}
	}
	return removed, nil
}

var _ accesslist.Repository = (*AccessListRepository)(nil)
