// Package jobs runs the gateway's periodic maintenance work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/guardgate/api/internal/app"
	"github.com/guardgate/api/pkg/logger"
)

// sweepTimeout bounds one maintenance pass.
const sweepTimeout = 30 * time.Second

// Sweeper periodically removes expired access list entries and threat
// events older than the retention window. Both stores tolerate missed
// sweeps: reads filter expired data, the sweep only reclaims space.
type Sweeper struct {
	lists    *app.AccessListService
	threats  *app.ThreatService
	interval time.Duration
	cron     *cron.Cron
	logger   *logger.Logger
}

// NewSweeper creates a sweeper running at the given interval.
func NewSweeper(lists *app.AccessListService, threats *app.ThreatService, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		lists:    lists,
		threats:  threats,
		interval: interval,
		cron:     cron.New(),
		logger:   log.With("job", "sweeper"),
	}
}

// Start schedules the sweep and begins running it.
func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("sweeper started", "interval", s.interval.String())
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	entries, err := s.lists.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("access list sweep failed", "error", err)
	}

	events, err := s.threats.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("threat event sweep failed", "error", err)
	}

	if entries > 0 || events > 0 {
		s.logger.Info("sweep completed",
			"expired_entries", entries,
			"trimmed_events", events,
		)
	}
}
