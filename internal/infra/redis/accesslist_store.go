package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guardgate/api/pkg/domain/accesslist"
)

const accessListKeyPrefix = "gateway:accesslist:"

// AccessListStore persists allow/deny entries in one Redis hash per kind,
// keyed by normalized IP or CIDR. Exact lookups are a single HGET; CIDR
// containment falls back to scanning the hash, which stays cheap because
// operator-managed lists are small.
type AccessListStore struct {
	client *Client
}

// NewAccessListStore creates a Redis-backed access list repository.
func NewAccessListStore(client *Client) *AccessListStore {
	return &AccessListStore{client: client}
}

func accessListKey(kind accesslist.Kind) string {
	return accessListKeyPrefix + string(kind)
}

// Upsert stores entry, replacing any existing entry with the same kind and IP.
func (s *AccessListStore) Upsert(ctx context.Context, entry *accesslist.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal access list entry: %w", err)
	}

	if err := s.client.client.HSet(ctx, accessListKey(entry.Kind), entry.IP, data).Err(); err != nil {
		return fmt.Errorf("%w: upsert: %v", accesslist.ErrStoreUnavailable, err)
	}
	return nil
}

// Find returns the active entry of kind covering ip: exact match first, then
// the first stored CIDR entry containing ip. An expired exact entry does not
// stop the CIDR fallback; it behaves like an absent one until the sweeper
// removes it.
func (s *AccessListStore) Find(ctx context.Context, kind accesslist.Kind, ip string, now time.Time) (*accesslist.Entry, error) {
	data, err := s.client.client.HGet(ctx, accessListKey(kind), ip).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: find: %v", accesslist.ErrStoreUnavailable, err)
	}
	if err == nil {
		entry, decodeErr := decodeEntry(data)
		if decodeErr == nil && entry.Active(now) {
			return entry, nil
		}
	}

	all, err := s.client.client.HGetAll(ctx, accessListKey(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: find: %v", accesslist.ErrStoreUnavailable, err)
	}
	for _, raw := range all {
		entry, err := decodeEntry([]byte(raw))
		if err != nil {
			continue
		}
		if entry.IsCIDR() && entry.Active(now) && entry.Matches(ip) {
			return entry, nil
		}
	}
	return nil, accesslist.ErrEntryNotFound
}

// Remove deletes the exact entry for (kind, ip).
func (s *AccessListStore) Remove(ctx context.Context, kind accesslist.Kind, ip string) error {
	removed, err := s.client.client.HDel(ctx, accessListKey(kind), ip).Result()
	if err != nil {
		return fmt.Errorf("%w: remove: %v", accesslist.ErrStoreUnavailable, err)
	}
	if removed == 0 {
		return accesslist.ErrEntryNotFound
	}
	return nil
}

// List returns all stored entries of kind.
func (s *AccessListStore) List(ctx context.Context, kind accesslist.Kind) ([]*accesslist.Entry, error) {
	all, err := s.client.client.HGetAll(ctx, accessListKey(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", accesslist.ErrStoreUnavailable, err)
	}

	entries := make([]*accesslist.Entry, 0, len(all))
	for field, raw := range all {
		entry, err := decodeEntry([]byte(raw))
		if err != nil {
			s.client.logger.Warn("dropping undecodable access list entry",
				"kind", kind,
				"field", field,
				"error", err,
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// RemoveExpired deletes entries whose expiry precedes now.
func (s *AccessListStore) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	for _, kind := range []accesslist.Kind{accesslist.KindAllow, accesslist.KindDeny} {
		all, err := s.client.client.HGetAll(ctx, accessListKey(kind)).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: remove expired: %v", accesslist.ErrStoreUnavailable, err)
		}

		var stale []string
		for field, raw := range all {
			entry, err := decodeEntry([]byte(raw))
			if err != nil {
				stale = append(stale, field)
				continue
			}
			if entry.ExpiresAt != nil && entry.ExpiresAt.Before(now) {
				stale = append(stale, field)
			}
		}
		if len(stale) == 0 {
			continue
		}

		n, err := s.client.client.HDel(ctx, accessListKey(kind), stale...).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: remove expired: %v", accesslist.ErrStoreUnavailable, err)
		}
		removed += n
	}
	return removed, nil
}

func decodeEntry(data []byte) (*accesslist.Entry, error) {
	var entry accesslist.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode access list entry: %w", err)
	}
	return &entry, nil
}

var _ accesslist.Repository = (*AccessListStore)(nil)
