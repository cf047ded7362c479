package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardgate/api/internal/app"
	"github.com/guardgate/api/internal/infra/memory"
	"github.com/guardgate/api/pkg/domain/accesslist"
	"github.com/guardgate/api/pkg/domain/threat"
	"github.com/guardgate/api/pkg/logger"
)

func TestSweeper_ReclaimsExpiredData(t *testing.T) {
	log := logger.NewNop()
	ctx := context.Background()

	now := time.Now()
	clock := func() time.Time { return now }

	events := memory.NewEventStore(100)
	lists := app.NewAccessListService(memory.NewAccessListRepository(), log).WithClock(clock)
	threats := app.NewThreatService(events, threat.DefaultThresholds(), time.Hour, log).WithClock(clock)

	_, err := lists.Add(ctx, accesslist.KindDeny, "203.0.113.5", "short ban", 30*time.Minute)
	require.NoError(t, err)
	_, err = lists.Add(ctx, accesslist.KindDeny, "203.0.113.6", "long ban", 24*time.Hour)
	require.NoError(t, err)
	threats.RecordSync(ctx, "203.0.113.5", threat.KindRateLimitViolation)

	// Past the short ban and the event retention window.
	now = now.Add(2 * time.Hour)

	s := NewSweeper(lists, threats, time.Minute, log)
	s.sweep()

	entries, err := lists.List(ctx, accesslist.KindDeny)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "203.0.113.6", entries[0].IP)

	remaining, err := events.ListSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSweeper_StartStop(t *testing.T) {
	log := logger.NewNop()
	lists := app.NewAccessListService(memory.NewAccessListRepository(), log)
	threats := app.NewThreatService(memory.NewEventStore(100), threat.DefaultThresholds(), time.Hour, log)

	s := NewSweeper(lists, threats, time.Minute, log)
	require.NoError(t, s.Start())
	s.Stop()
}
