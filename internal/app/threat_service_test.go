package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardgate/api/internal/infra/memory"
	"github.com/guardgate/api/pkg/domain/threat"
	"github.com/guardgate/api/pkg/logger"
)

func newThreatService(store threat.Store) *ThreatService {
	return NewThreatService(store, threat.DefaultThresholds(), 24*time.Hour, logger.NewNop())
}

func TestThreatService_RecordAndAnalyze(t *testing.T) {
	store := memory.NewEventStore(0)
	svc := newThreatService(store)
	ctx := context.Background()

	// Three limiter violations from one IP, two token violations from
	// another.
	for i := 0; i < 3; i++ {
		svc.RecordSync(ctx, "203.0.113.7", threat.KindRateLimitViolation)
	}
	svc.RecordSync(ctx, "198.51.100.4", threat.KindInvalidToken)
	svc.RecordSync(ctx, "198.51.100.4", threat.KindInvalidToken)

	analysis, err := svc.Analyze(ctx, 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 5, analysis.TotalThreats)
	assert.Equal(t, 2, analysis.UniqueIPs)
	assert.Equal(t, 3, analysis.CountsByKind[threat.KindRateLimitViolation])
	assert.Equal(t, 2, analysis.CountsByKind[threat.KindInvalidToken])
	assert.Equal(t, threat.LevelMinimal, analysis.Level)
	require.Len(t, analysis.TopThreatIPs, 2)
	assert.Equal(t, "203.0.113.7", analysis.TopThreatIPs[0].IP)
}

func TestThreatService_AnalyzeWindowClamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewEventStore(0)
	svc := newThreatService(store).WithClock(func() time.Time { return now })
	ctx := context.Background()

	old := threat.Event{IP: "203.0.113.7", Kind: threat.KindInvalidToken, At: now.Add(-30 * time.Hour)}
	recent := threat.Event{IP: "203.0.113.7", Kind: threat.KindInvalidToken, At: now.Add(-time.Hour)}
	require.NoError(t, store.Append(ctx, old))
	require.NoError(t, store.Append(ctx, recent))

	// A window beyond retention is clamped to 24h.
	analysis, err := svc.Analyze(ctx, 100*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, analysis.TotalThreats)
	assert.Equal(t, 24, analysis.WindowHours)

	analysis, err = svc.Analyze(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 24, analysis.WindowHours, "non-positive window defaults to retention")
}

func TestThreatService_AsyncRecord(t *testing.T) {
	store := memory.NewEventStore(0)
	svc := newThreatService(store)

	svc.Record("203.0.113.7", threat.KindBlacklistedAccess)

	assert.Eventually(t, func() bool {
		events, err := store.ListSince(context.Background(), time.Time{})
		return err == nil && len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestThreatService_SweepExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewEventStore(0)
	svc := newThreatService(store).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, threat.Event{IP: "a", Kind: threat.KindInvalidToken, At: now.Add(-25 * time.Hour)}))
	require.NoError(t, store.Append(ctx, threat.Event{IP: "b", Kind: threat.KindInvalidToken, At: now.Add(-time.Hour)}))

	removed, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	events, err := store.ListSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].IP)
}
