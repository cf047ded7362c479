package memory

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/guardgate/api/pkg/domain/accesslist"
	"github.com/guardgate/api/pkg/domain/threat"
)

func TestCounterStore_Increment(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewCounterStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	count, ttl, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, ttl)

	// Second increment keeps the original expiry.
	now = now.Add(10 * time.Second)
	count, ttl, err = store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 50*time.Second, ttl)

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestCounterStore_Expiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewCounterStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	_, _, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(time.Minute)

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got, "expired key reads as zero")

	count, ttl, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "expired key restarts at one")
	assert.Equal(t, time.Minute, ttl)
}

func TestCounterStore_ConcurrentIncrements(t *testing.T) {
	store := NewCounterStore()
	ctx := context.Background()

	const n = 200
	var g errgroup.Group
	var final atomic.Int64
	for i := 0; i < n; i++ {
		g.Go(func() error {
			count, _, err := store.Increment(ctx, "shared", time.Minute)
			if err != nil {
				return err
			}
			// Track the highest observed count.
			for {
				cur := final.Load()
				if count <= cur || final.CompareAndSwap(cur, count) {
					return nil
				}
			}
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(n), final.Load(), "no increments lost")
}

func TestCounterStore_CanceledContext(t *testing.T) {
	store := NewCounterStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.Increment(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAccessListRepository_UpsertFindRemove(t *testing.T) {
	repo := NewAccessListRepository()
	ctx := context.Background()
	now := time.Now()

	entry, err := accesslist.NewPermanentEntry("203.0.113.7", accesslist.KindDeny, "abuse", now)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, entry))

	found, err := repo.Find(ctx, accesslist.KindDeny, "203.0.113.7", now)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, found.ID)

	_, err = repo.Find(ctx, accesslist.KindAllow, "203.0.113.7", now)
	assert.ErrorIs(t, err, accesslist.ErrEntryNotFound)

	require.NoError(t, repo.Remove(ctx, accesslist.KindDeny, "203.0.113.7"))
	assert.ErrorIs(t, repo.Remove(ctx, accesslist.KindDeny, "203.0.113.7"), accesslist.ErrEntryNotFound)
}

func TestAccessListRepository_CIDRContainment(t *testing.T) {
	repo := NewAccessListRepository()
	ctx := context.Background()
	now := time.Now()

	block, err := accesslist.NewPermanentEntry("10.0.0.0/8", accesslist.KindDeny, "internal range", now)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, block))

	found, err := repo.Find(ctx, accesslist.KindDeny, "10.42.1.9", now)
	require.NoError(t, err)
	assert.Equal(t, block.IP, found.IP)

	_, err = repo.Find(ctx, accesslist.KindDeny, "192.168.0.1", now)
	assert.ErrorIs(t, err, accesslist.ErrEntryNotFound)
}

func TestAccessListRepository_FindSkipsExpiredEntries(t *testing.T) {
	repo := NewAccessListRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	block, err := accesslist.NewPermanentEntry("10.0.0.0/24", accesslist.KindDeny, "internal range", now)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, block))

	exact, err := accesslist.NewEntry("10.0.0.7", accesslist.KindDeny, "temp block", time.Hour, now)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, exact))

	// While the exact entry is active it takes precedence over the range.
	found, err := repo.Find(ctx, accesslist.KindDeny, "10.0.0.7", now)
	require.NoError(t, err)
	assert.Equal(t, exact.ID, found.ID)

	// Once it expires, lookup falls through to the still-active CIDR entry.
	later := now.Add(2 * time.Hour)
	found, err = repo.Find(ctx, accesslist.KindDeny, "10.0.0.7", later)
	require.NoError(t, err)
	assert.Equal(t, block.ID, found.ID)

	// An expired entry with no covering range is simply not found.
	expired, err := accesslist.NewEntry("192.0.2.1", accesslist.KindDeny, "temp", time.Hour, now)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, expired))
	_, err = repo.Find(ctx, accesslist.KindDeny, "192.0.2.1", later)
	assert.ErrorIs(t, err, accesslist.ErrEntryNotFound)
}

func TestAccessListRepository_UpsertReplaces(t *testing.T) {
	repo := NewAccessListRepository()
	ctx := context.Background()
	now := time.Now()

	first, err := accesslist.NewEntry("203.0.113.7", accesslist.KindDeny, "first", time.Hour, now)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, first))

	second, err := accesslist.NewPermanentEntry("203.0.113.7", accesslist.KindDeny, "second", now)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, second))

	entries, err := repo.List(ctx, accesslist.KindDeny)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Reason)
	assert.Nil(t, entries[0].ExpiresAt)
}

func TestAccessListRepository_RemoveExpired(t *testing.T) {
	repo := NewAccessListRepository()
	ctx := context.Background()
	now := time.Now()

	expired, err := accesslist.NewEntry("203.0.113.1", accesslist.KindDeny, "temp", time.Minute, now)
	require.NoError(t, err)
	permanent, err := accesslist.NewPermanentEntry("203.0.113.2", accesslist.KindDeny, "perm", now)
	require.NoError(t, err)
	allowed, err := accesslist.NewEntry("203.0.113.3", accesslist.KindAllow, "temp", time.Minute, now)
	require.NoError(t, err)
	for _, e := range []*accesslist.Entry{expired, permanent, allowed} {
		require.NoError(t, repo.Upsert(ctx, e))
	}

	removed, err := repo.RemoveExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	entries, err := repo.List(ctx, accesslist.KindDeny)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "203.0.113.2", entries[0].IP)
}

func TestEventStore_AppendListTrim(t *testing.T) {
	store := NewEventStore(0)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := store.Append(ctx, threat.Event{
			IP:   fmt.Sprintf("198.51.100.%d", i),
			Kind: threat.KindRateLimitViolation,
			At:   base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	events, err := store.ListSince(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "198.51.100.2", events[0].IP)

	removed, err := store.Trim(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	events, err = store.ListSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestEventStore_Cap(t *testing.T) {
	store := NewEventStore(3)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := store.Append(ctx, threat.Event{
			IP:   fmt.Sprintf("198.51.100.%d", i),
			Kind: threat.KindInvalidToken,
			At:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	events, err := store.ListSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "198.51.100.2", events[0].IP, "oldest events evicted first")
}

func TestEventStore_ConcurrentAppends(t *testing.T) {
	store := NewEventStore(0)
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 100; i++ {
		g.Go(func() error {
			return store.Append(ctx, threat.Event{
				IP:   "198.51.100.1",
				Kind: threat.KindBlacklistedAccess,
				At:   time.Now(),
			})
		})
	}
	require.NoError(t, g.Wait())

	events, err := store.ListSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 100)
}
