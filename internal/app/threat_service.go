package app

import (
	"context"
	"fmt"
	"time"

	"github.com/guardgate/api/internal/metrics"
	"github.com/guardgate/api/pkg/domain/threat"
	"github.com/guardgate/api/pkg/logger"
)

// recordTimeout bounds the background append so a slow store cannot pile
// up goroutines.
const recordTimeout = 2 * time.Second

// ThreatService records policy violations and aggregates them into threat
// analyses. Recording is best effort and fully decoupled from the request
// path: a failed append is counted and logged, never surfaced to a client.
type ThreatService struct {
	store      threat.Store
	thresholds threat.Thresholds
	retention  time.Duration
	clock      func() time.Time
	logger     *logger.Logger
}

// NewThreatService creates a threat service.
func NewThreatService(store threat.Store, thresholds threat.Thresholds, retention time.Duration, log *logger.Logger) *ThreatService {
	return &ThreatService{
		store:      store,
		thresholds: thresholds,
		retention:  retention,
		clock:      time.Now,
		logger:     log.With("service", "threat"),
	}
}

// WithClock overrides the service clock. Test hook.
func (s *ThreatService) WithClock(now func() time.Time) *ThreatService {
	s.clock = now
	return s
}

// Record appends one violation asynchronously. It returns immediately; the
// append runs on its own goroutine detached from the request context.
func (s *ThreatService) Record(ip string, kind threat.EventKind) {
	event := threat.Event{IP: ip, Kind: kind, At: s.clock()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		s.record(ctx, event)
	}()
}

// RecordSync appends one violation on the caller's goroutine.
func (s *ThreatService) RecordSync(ctx context.Context, ip string, kind threat.EventKind) {
	s.record(ctx, threat.Event{IP: ip, Kind: kind, At: s.clock()})
}

func (s *ThreatService) record(ctx context.Context, event threat.Event) {
	if err := s.store.Append(ctx, event); err != nil {
		metrics.ThreatEventsDroppedTotal.Inc()
		s.logger.Warn("threat event dropped",
			"ip", event.IP,
			"kind", string(event.Kind),
			"error", err,
		)
		return
	}
	metrics.ThreatEventsTotal.WithLabelValues(string(event.Kind)).Inc()
}

// Analyze aggregates the events of the trailing window into an analysis
// report. The window is clamped to the retention period, events beyond it
// no longer exist.
func (s *ThreatService) Analyze(ctx context.Context, window time.Duration) (*threat.Analysis, error) {
	if window <= 0 || window > s.retention {
		window = s.retention
	}

	now := s.clock()
	events, err := s.store.ListSince(ctx, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("load threat events: %w", err)
	}

	analysis := threat.Analyze(events, window, now, s.thresholds)
	metrics.ThreatLevel.Set(float64(analysis.Level.Rank()))
	return &analysis, nil
}

// SweepExpired trims events past retention and returns the count removed.
func (s *ThreatService) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.store.Trim(ctx, s.clock().Add(-s.retention))
	if err != nil {
		return 0, fmt.Errorf("trim threat events: %w", err)
	}
	if removed > 0 {
		metrics.ThreatEventsTrimmedTotal.Add(float64(removed))
		s.logger.Info("old threat events trimmed", "count", removed)
	}
	return removed, nil
}
