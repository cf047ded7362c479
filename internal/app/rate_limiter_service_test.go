package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/guardgate/api/internal/config"
	"github.com/guardgate/api/internal/infra/memory"
	"github.com/guardgate/api/pkg/domain/ratelimit"
	"github.com/guardgate/api/pkg/logger"
)

func testGatewayConfig(policy config.FailurePolicy) config.GatewayConfig {
	return config.GatewayConfig{
		FailurePolicy:      policy,
		StoreTimeout:       150 * time.Millisecond,
		FallbackRatePerSec: 1,
		FallbackBurst:      2,
	}
}

func mustRuleSet(t *testing.T, def ratelimit.Rule, endpoints ...ratelimit.Rule) *ratelimit.RuleSet {
	t.Helper()
	rs, err := ratelimit.NewRuleSet(def, endpoints)
	require.NoError(t, err)
	return rs
}

// downStore fails every operation, simulating a store outage.
type downStore struct{}

func (downStore) Increment(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, ratelimit.ErrStoreUnavailable
}

func (downStore) Get(context.Context, string) (int64, error) {
	return 0, ratelimit.ErrStoreUnavailable
}

func (downStore) Ping(context.Context) error {
	return ratelimit.ErrStoreUnavailable
}

func TestRateLimiterService_LoginScenario(t *testing.T) {
	rules := mustRuleSet(t,
		ratelimit.Rule{Limit: 100, Window: time.Minute},
		ratelimit.Rule{Pattern: "/api/login", Limit: 5, Window: time.Minute},
	)
	svc := NewRateLimiterService(memory.NewCounterStore(), rules, testGatewayConfig(config.FailOpen), logger.NewNop())
	ctx := context.Background()

	req := ratelimit.Request{ClientIP: "203.0.113.9", Path: "/api/login", Method: "POST"}
	for i := 1; i <= 5; i++ {
		verdict := svc.Check(ctx, req)
		assert.True(t, verdict.Allowed(), "request %d should pass", i)
		assert.Equal(t, ratelimit.ReasonWithinLimit, verdict.Reason)
		assert.Equal(t, 5-i, verdict.Remaining)
	}

	verdict := svc.Check(ctx, req)
	assert.False(t, verdict.Allowed())
	assert.Equal(t, ratelimit.ReasonRateLimited, verdict.Reason)
	assert.Equal(t, 0, verdict.Remaining)
	assert.Greater(t, verdict.RetryAfter, time.Duration(0))

	// A different identity on the same endpoint is unaffected.
	other := ratelimit.Request{ClientIP: "198.51.100.4", Path: "/api/login", Method: "POST"}
	assert.True(t, svc.Check(ctx, other).Allowed())
}

func TestRateLimiterService_PrincipalIdentity(t *testing.T) {
	rules := mustRuleSet(t, ratelimit.Rule{Limit: 2, Window: time.Minute})
	svc := NewRateLimiterService(memory.NewCounterStore(), rules, testGatewayConfig(config.FailOpen), logger.NewNop())
	ctx := context.Background()

	// Two principals behind one NAT IP get separate quotas.
	alice := ratelimit.Request{ClientIP: "203.0.113.9", PrincipalID: "alice", Path: "/api/data"}
	bob := ratelimit.Request{ClientIP: "203.0.113.9", PrincipalID: "bob", Path: "/api/data"}

	assert.True(t, svc.Check(ctx, alice).Allowed())
	assert.True(t, svc.Check(ctx, alice).Allowed())
	assert.False(t, svc.Check(ctx, alice).Allowed())
	assert.True(t, svc.Check(ctx, bob).Allowed())
}

func TestRateLimiterService_BurstTolerance(t *testing.T) {
	rules := mustRuleSet(t,
		ratelimit.Rule{Limit: 100, Window: time.Minute},
		ratelimit.Rule{Pattern: "/api/upload", Limit: 2, Window: time.Minute, Burst: 1},
	)
	svc := NewRateLimiterService(memory.NewCounterStore(), rules, testGatewayConfig(config.FailOpen), logger.NewNop())
	ctx := context.Background()

	req := ratelimit.Request{ClientIP: "203.0.113.9", Path: "/api/upload"}
	for i := 0; i < 3; i++ {
		assert.True(t, svc.Check(ctx, req).Allowed(), "limit plus burst admits 3")
	}
	assert.False(t, svc.Check(ctx, req).Allowed())
}

func TestRateLimiterService_WindowReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := memory.NewCounterStore().WithClock(clock)
	rules := mustRuleSet(t, ratelimit.Rule{Limit: 1, Window: time.Minute})
	svc := NewRateLimiterService(store, rules, testGatewayConfig(config.FailOpen), logger.NewNop()).WithClock(clock)
	ctx := context.Background()

	req := ratelimit.Request{ClientIP: "203.0.113.9", Path: "/x"}
	assert.True(t, svc.Check(ctx, req).Allowed())
	assert.False(t, svc.Check(ctx, req).Allowed())

	now = now.Add(time.Minute)
	assert.True(t, svc.Check(ctx, req).Allowed(), "fresh window restores quota")
}

func TestRateLimiterService_WindowBoundaryAdmitsUpToDouble(t *testing.T) {
	// Fixed windows reset the count at the bucket boundary, so a client that
	// exhausts its quota at the end of one window and again at the start of
	// the next gets up to 2x the limit inside a span shorter than one window.
	// That is the accepted trade-off for a single atomic increment per check.
	now := time.Date(2025, 6, 1, 12, 0, 55, 0, time.UTC) // 5s before the boundary
	clock := func() time.Time { return now }
	store := memory.NewCounterStore().WithClock(clock)
	rules := mustRuleSet(t, ratelimit.Rule{Limit: 5, Window: time.Minute})
	svc := NewRateLimiterService(store, rules, testGatewayConfig(config.FailOpen), logger.NewNop()).WithClock(clock)
	ctx := context.Background()

	req := ratelimit.Request{ClientIP: "203.0.113.9", Path: "/x"}
	for i := 0; i < 5; i++ {
		assert.True(t, svc.Check(ctx, req).Allowed())
	}
	assert.False(t, svc.Check(ctx, req).Allowed())

	now = now.Add(10 * time.Second) // crosses into the next bucket
	for i := 0; i < 5; i++ {
		assert.True(t, svc.Check(ctx, req).Allowed(), "fresh bucket admits a full quota")
	}
	assert.False(t, svc.Check(ctx, req).Allowed())
}

func TestRateLimiterService_ConcurrentChecks(t *testing.T) {
	const limit = 50
	const total = 120

	rules := mustRuleSet(t, ratelimit.Rule{Limit: limit, Window: time.Minute})
	svc := NewRateLimiterService(memory.NewCounterStore(), rules, testGatewayConfig(config.FailOpen), logger.NewNop())
	ctx := context.Background()

	req := ratelimit.Request{ClientIP: "203.0.113.9", Path: "/x"}
	var allowed atomic.Int64
	var g errgroup.Group
	for i := 0; i < total; i++ {
		g.Go(func() error {
			if svc.Check(ctx, req).Allowed() {
				allowed.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(limit), allowed.Load(), "exactly the limit admitted under contention")
}

func TestRateLimiterService_FailOpen(t *testing.T) {
	rules := mustRuleSet(t, ratelimit.Rule{Limit: 1, Window: time.Minute})
	svc := NewRateLimiterService(downStore{}, rules, testGatewayConfig(config.FailOpen), logger.NewNop())
	ctx := context.Background()

	req := ratelimit.Request{ClientIP: "203.0.113.9", Path: "/x"}

	// The local bucket admits the configured burst, then keeps denying:
	// the outage degrades enforcement without suspending it.
	allowed := 0
	for i := 0; i < 10; i++ {
		verdict := svc.Check(ctx, req)
		if verdict.Allowed() {
			assert.Equal(t, ratelimit.ReasonFailOpen, verdict.Reason)
			allowed++
		} else {
			assert.Equal(t, ratelimit.ReasonRateLimited, verdict.Reason)
		}
	}
	assert.Equal(t, 2, allowed, "fallback burst admits 2")

	// A second identity gets its own bucket.
	other := ratelimit.Request{ClientIP: "198.51.100.7", Path: "/x"}
	assert.True(t, svc.Check(ctx, other).Allowed())
}

func TestRateLimiterService_FailClosed(t *testing.T) {
	rules := mustRuleSet(t, ratelimit.Rule{Limit: 100, Window: time.Minute})
	svc := NewRateLimiterService(downStore{}, rules, testGatewayConfig(config.FailClosed), logger.NewNop())
	ctx := context.Background()

	req := ratelimit.Request{ClientIP: "203.0.113.9", Path: "/x"}
	for i := 0; i < 10; i++ {
		verdict := svc.Check(ctx, req)
		assert.False(t, verdict.Allowed())
		assert.Equal(t, ratelimit.ReasonFailClosed, verdict.Reason)
		assert.Equal(t, time.Second, verdict.RetryAfter)
	}
}

func TestRateLimiterService_ReplaceRules(t *testing.T) {
	rules := mustRuleSet(t, ratelimit.Rule{Limit: 1, Window: time.Minute})
	svc := NewRateLimiterService(memory.NewCounterStore(), rules, testGatewayConfig(config.FailOpen), logger.NewNop())
	ctx := context.Background()

	req := ratelimit.Request{ClientIP: "203.0.113.9", Path: "/x"}
	assert.True(t, svc.Check(ctx, req).Allowed())
	assert.False(t, svc.Check(ctx, req).Allowed())

	svc.ReplaceRules(mustRuleSet(t, ratelimit.Rule{Limit: 100, Window: time.Minute}))
	assert.True(t, svc.Check(ctx, req).Allowed(), "new rules apply immediately")
}

func TestRateLimiterService_Status(t *testing.T) {
	rules := mustRuleSet(t, ratelimit.Rule{Limit: 3, Window: time.Minute})
	svc := NewRateLimiterService(memory.NewCounterStore(), rules, testGatewayConfig(config.FailOpen), logger.NewNop())
	ctx := context.Background()

	req := ratelimit.Request{ClientIP: "203.0.113.9", Path: "/x"}
	svc.Check(ctx, req)

	verdict, err := svc.Status(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, verdict.Remaining)

	// Status does not consume quota.
	verdict, err = svc.Status(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, verdict.Remaining)
}

func TestRateLimiterService_StatusStoreError(t *testing.T) {
	rules := mustRuleSet(t, ratelimit.Rule{Limit: 3, Window: time.Minute})
	svc := NewRateLimiterService(downStore{}, rules, testGatewayConfig(config.FailOpen), logger.NewNop())

	_, err := svc.Status(context.Background(), ratelimit.Request{ClientIP: "203.0.113.9", Path: "/x"})
	assert.True(t, errors.Is(err, ratelimit.ErrStoreUnavailable))
}
