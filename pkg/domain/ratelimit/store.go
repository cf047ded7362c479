package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is returned when the counter store cannot be reached.
// Callers resolve it through the configured fail-open or fail-closed policy
// rather than surfacing it to the request path.
var ErrStoreUnavailable = errors.New("ratelimit: counter store unavailable")

// CounterStore is the contract for the distributed atomic counter backend.
//
// Increment must be a single atomic primitive on the backing store: the
// first increment of a key sets its expiry to window, subsequent increments
// within the window must not reset it. The returned TTL comes from the
// store's own clock so windows stay consistent across gateway replicas.
type CounterStore interface {
	// Increment atomically increments the counter for key and returns the
	// new count together with the remaining window TTL.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)

	// Get returns the current count for key, zero when the key does not
	// exist.
	Get(ctx context.Context, key string) (int64, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
