package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guardgate/api/internal/metrics"
	"github.com/guardgate/api/pkg/domain/ratelimit"
)

// incrementScript increments a fixed-window counter atomically. The expiry
// is set only when the increment creates the key, so the window anchor never
// slides under concurrent traffic. Returns the new count and the remaining
// window in milliseconds.
var incrementScript = redis.NewScript(`
	local key = KEYS[1]
	local window_ms = tonumber(ARGV[1])

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, window_ms)
	end

	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		redis.call('PEXPIRE', key, window_ms)
		ttl = window_ms
	end

	return {count, ttl}
`)

const counterKeyPrefix = "gateway:counter:"

// CounterStore implements the distributed fixed-window counter on Redis.
// All gateway replicas share the same keys, so the count observed by any
// replica reflects cluster-wide traffic.
type CounterStore struct {
	client *Client
}

// NewCounterStore creates a Redis-backed counter store.
func NewCounterStore(client *Client) *CounterStore {
	return &CounterStore{client: client}
}

func counterKey(key string) string {
	return counterKeyPrefix + key
}

// Increment atomically increments the counter for key and returns the new
// count with the remaining window TTL. Store failures are reported as
// ratelimit.ErrStoreUnavailable so callers can apply their failure policy.
func (s *CounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	start := time.Now()

	result, err := incrementScript.Run(ctx, s.client.client,
		[]string{counterKey(key)}, window.Milliseconds()).Slice()
	metrics.StoreOperationDuration.WithLabelValues("increment").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("increment").Inc()
		return 0, 0, fmt.Errorf("%w: increment: %v", ratelimit.ErrStoreUnavailable, err)
	}
	if len(result) != 2 {
		metrics.StoreErrorsTotal.WithLabelValues("increment").Inc()
		return 0, 0, fmt.Errorf("%w: increment: unexpected script reply", ratelimit.ErrStoreUnavailable)
	}

	count, _ := result[0].(int64)
	ttlMs, _ := result[1].(int64)
	return count, time.Duration(ttlMs) * time.Millisecond, nil
}

// Get returns the current count for key, zero when the key does not exist.
func (s *CounterStore) Get(ctx context.Context, key string) (int64, error) {
	start := time.Now()

	count, err := s.client.client.Get(ctx, counterKey(key)).Int64()
	metrics.StoreOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("get").Inc()
		return 0, fmt.Errorf("%w: get: %v", ratelimit.ErrStoreUnavailable, err)
	}
	return count, nil
}

// Ping reports whether Redis is reachable.
func (s *CounterStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ratelimit.ErrStoreUnavailable, err)
	}
	return nil
}

var _ ratelimit.CounterStore = (*CounterStore)(nil)
