package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/guardgate/api/pkg/domain/threat"
)

const eventsKey = "gateway:threat:events"

// eventRecord is the stored form of a threat event. The ID keeps sorted set
// members unique so identical events recorded in the same instant are not
// collapsed.
type eventRecord struct {
	ID   string           `json:"id"`
	IP   string           `json:"ip"`
	Kind threat.EventKind `json:"kind"`
	At   time.Time        `json:"at"`
}

// EventStore persists threat events in a Redis sorted set scored by event
// time. Range reads and retention trims are score-range operations, so both
// stay proportional to the events touched.
type EventStore struct {
	client    *Client
	maxEvents int64
}

// NewEventStore creates a Redis-backed threat event store. A positive
// maxEvents bounds the log; the oldest events are evicted on append.
func NewEventStore(client *Client, maxEvents int64) *EventStore {
	return &EventStore{client: client, maxEvents: maxEvents}
}

// Append adds one event to the log, evicting the oldest events past the cap.
func (s *EventStore) Append(ctx context.Context, event threat.Event) error {
	data, err := json.Marshal(eventRecord{
		ID:   uuid.New().String(),
		IP:   event.IP,
		Kind: event.Kind,
		At:   event.At,
	})
	if err != nil {
		return fmt.Errorf("marshal threat event: %w", err)
	}

	pipe := s.client.client.TxPipeline()
	pipe.ZAdd(ctx, eventsKey, redis.Z{
		Score:  float64(event.At.UnixNano()),
		Member: data,
	})
	if s.maxEvents > 0 {
		pipe.ZRemRangeByRank(ctx, eventsKey, 0, -(s.maxEvents + 1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append threat event: %w", err)
	}
	return nil
}

// ListSince returns all events at or after since, oldest first.
func (s *EventStore) ListSince(ctx context.Context, since time.Time) ([]threat.Event, error) {
	raw, err := s.client.client.ZRangeByScore(ctx, eventsKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.UnixNano()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list threat events: %w", err)
	}

	events := make([]threat.Event, 0, len(raw))
	for _, member := range raw {
		var rec eventRecord
		if err := json.Unmarshal([]byte(member), &rec); err != nil {
			s.client.logger.Warn("dropping undecodable threat event", "error", err)
			continue
		}
		events = append(events, threat.Event{IP: rec.IP, Kind: rec.Kind, At: rec.At})
	}
	return events, nil
}

// Trim discards events older than before and returns how many were removed.
func (s *EventStore) Trim(ctx context.Context, before time.Time) (int64, error) {
	removed, err := s.client.client.ZRemRangeByScore(ctx, eventsKey,
		"-inf", fmt.Sprintf("(%d", before.UnixNano())).Result()
	if err != nil {
		return 0, fmt.Errorf("trim threat events: %w", err)
	}
	return removed, nil
}

var _ threat.Store = (*EventStore)(nil)
