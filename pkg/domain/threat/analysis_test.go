package threat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholds_LevelFor(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name  string
		total int
		want  Level
	}{
		{name: "zero is minimal", total: 0, want: LevelMinimal},
		{name: "just below low cutoff", total: 9, want: LevelMinimal},
		{name: "low cutoff", total: 10, want: LevelLow},
		{name: "just below medium cutoff", total: 49, want: LevelLow},
		{name: "medium cutoff", total: 50, want: LevelMedium},
		{name: "just below high cutoff", total: 199, want: LevelMedium},
		{name: "high cutoff", total: 200, want: LevelHigh},
		{name: "far above high cutoff", total: 10000, want: LevelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, th.LevelFor(tt.total))
		})
	}
}

func TestAnalyze_Aggregation(t *testing.T) {
	now := time.Now()

	// 3 rate limit violations and 2 invalid tokens across 2 distinct IPs.
	events := []Event{
		{IP: "1.1.1.1", Kind: KindRateLimitViolation, At: now.Add(-5 * time.Minute)},
		{IP: "1.1.1.1", Kind: KindRateLimitViolation, At: now.Add(-4 * time.Minute)},
		{IP: "1.1.1.1", Kind: KindRateLimitViolation, At: now.Add(-3 * time.Minute)},
		{IP: "2.2.2.2", Kind: KindInvalidToken, At: now.Add(-2 * time.Minute)},
		{IP: "2.2.2.2", Kind: KindInvalidToken, At: now.Add(-1 * time.Minute)},
	}

	analysis := Analyze(events, 24*time.Hour, now, DefaultThresholds())

	assert.Equal(t, 5, analysis.TotalThreats)
	assert.Equal(t, 2, analysis.UniqueIPs)
	assert.Equal(t, 3, analysis.CountsByKind[KindRateLimitViolation])
	assert.Equal(t, 2, analysis.CountsByKind[KindInvalidToken])
	assert.Equal(t, 24, analysis.WindowHours)
	assert.Equal(t, LevelMinimal, analysis.Level)

	require.Len(t, analysis.TopThreatIPs, 2)
	assert.Equal(t, "1.1.1.1", analysis.TopThreatIPs[0].IP)
	assert.Equal(t, 3, analysis.TopThreatIPs[0].Count)
	assert.Equal(t, "2.2.2.2", analysis.TopThreatIPs[1].IP)
	assert.Equal(t, 2, analysis.TopThreatIPs[1].Count)
}

func TestAnalyze_TopOffenderTieBreak(t *testing.T) {
	now := time.Now()

	// Same count: the IP with the more recent last event ranks first.
	events := []Event{
		{IP: "1.1.1.1", Kind: KindRateLimitViolation, At: now.Add(-10 * time.Minute)},
		{IP: "2.2.2.2", Kind: KindRateLimitViolation, At: now.Add(-1 * time.Minute)},
	}

	analysis := Analyze(events, time.Hour, now, DefaultThresholds())

	require.Len(t, analysis.TopThreatIPs, 2)
	assert.Equal(t, "2.2.2.2", analysis.TopThreatIPs[0].IP)
	assert.Equal(t, "1.1.1.1", analysis.TopThreatIPs[1].IP)
}

func TestAnalyze_TopOffenderCap(t *testing.T) {
	now := time.Now()

	var events []Event
	for i := 0; i < TopOffenderLimit+5; i++ {
		ip := "10.0.0." + string(rune('0'+i%10)) + string(rune('a'+i/10))
		events = append(events, Event{IP: ip, Kind: KindRateLimitViolation, At: now})
	}

	analysis := Analyze(events, time.Hour, now, DefaultThresholds())
	assert.Len(t, analysis.TopThreatIPs, TopOffenderLimit)
	assert.Equal(t, TopOffenderLimit+5, analysis.UniqueIPs)
}

func TestAnalyze_Empty(t *testing.T) {
	analysis := Analyze(nil, time.Hour, time.Now(), DefaultThresholds())

	assert.Zero(t, analysis.TotalThreats)
	assert.Zero(t, analysis.UniqueIPs)
	assert.Empty(t, analysis.TopThreatIPs)
	assert.Equal(t, LevelMinimal, analysis.Level)
}

func TestParseEventKind(t *testing.T) {
	k, err := ParseEventKind("RATE_LIMIT_VIOLATION")
	require.NoError(t, err)
	assert.Equal(t, KindRateLimitViolation, k)

	_, err = ParseEventKind("ddos")
	assert.Error(t, err)
}
