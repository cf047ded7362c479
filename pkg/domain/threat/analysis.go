package threat

import (
	"sort"
	"time"
)

// Level is a coarse, threshold-derived severity label summarizing recent
// violation volume.
type Level string

const (
	LevelMinimal Level = "minimal"
	LevelLow     Level = "low"
	LevelMedium  Level = "medium"
	LevelHigh    Level = "high"
)

// Rank orders levels for comparison and export: minimal is 0, high is 3.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	default:
		return 0
	}
}

// Thresholds define the monotonic cutoffs between threat levels. A total
// below Low is minimal, below Medium is low, below High is medium,
// otherwise high. The values are policy knobs, not derived constants.
type Thresholds struct {
	Low    int
	Medium int
	High   int
}

// DefaultThresholds are the default level cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 10, Medium: 50, High: 200}
}

// LevelFor maps a total threat count onto a level.
func (t Thresholds) LevelFor(total int) Level {
	switch {
	case total < t.Low:
		return LevelMinimal
	case total < t.Medium:
		return LevelLow
	case total < t.High:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// IPCount is one entry of the top-offender ranking.
type IPCount struct {
	IP       string    `json:"ip"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// Analysis is a read-time projection over the recent event log. It is never
// stored.
type Analysis struct {
	Window       time.Duration     `json:"-"`
	WindowHours  int               `json:"window_hours"`
	GeneratedAt  time.Time         `json:"generated_at"`
	TotalThreats int               `json:"total_threats"`
	CountsByKind map[EventKind]int `json:"counts_by_kind"`
	UniqueIPs    int               `json:"unique_ips"`
	TopThreatIPs []IPCount         `json:"top_threat_ips"`
	Level        Level             `json:"threat_level"`
}

// TopOffenderLimit caps the top_threat_ips ranking.
const TopOffenderLimit = 10

// Analyze aggregates events into an Analysis using the given thresholds.
// It is a pure function of the event slice and the current time.
func Analyze(events []Event, window time.Duration, now time.Time, thresholds Thresholds) Analysis {
	counts := make(map[EventKind]int)
	perIP := make(map[string]*IPCount)

	for _, ev := range events {
		counts[ev.Kind]++
		ipc, ok := perIP[ev.IP]
		if !ok {
			ipc = &IPCount{IP: ev.IP}
			perIP[ev.IP] = ipc
		}
		ipc.Count++
		if ev.At.After(ipc.LastSeen) {
			ipc.LastSeen = ev.At
		}
	}

	top := make([]IPCount, 0, len(perIP))
	for _, ipc := range perIP {
		top = append(top, *ipc)
	}
	// Count descending, ties broken by most recent event.
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].LastSeen.After(top[j].LastSeen)
	})
	if len(top) > TopOffenderLimit {
		top = top[:TopOffenderLimit]
	}

	return Analysis{
		Window:       window,
		WindowHours:  int(window / time.Hour),
		GeneratedAt:  now.UTC(),
		TotalThreats: len(events),
		CountsByKind: counts,
		UniqueIPs:    len(perIP),
		TopThreatIPs: top,
		Level:        thresholds.LevelFor(len(events)),
	}
}
