package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway decision metrics
var (
	// DecisionsTotal tracks gateway decisions by outcome and reason
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_decisions_total",
			Help: "Total number of gateway decisions by outcome and reason",
		},
		[]string{"decision", "reason"},
	)

	// DecisionDuration tracks decision latency
	DecisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_decision_duration_seconds",
			Help:    "Gateway decision latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	// RateLimitDenialsTotal tracks rate limit denials by scope
	RateLimitDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_denials_total",
			Help: "Total number of rate limited requests by scope",
		},
		[]string{"scope"},
	)

	// FallbackDecisionsTotal tracks decisions taken while the counter store
	// was unavailable
	FallbackDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_fallback_decisions_total",
			Help: "Total number of decisions taken during counter store outages",
		},
		[]string{"policy"},
	)

	// RuleReloadsTotal tracks rule file reloads by status
	RuleReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rule_reloads_total",
			Help: "Total number of rate limit rule reloads",
		},
		[]string{"status"},
	)
)

// Counter store metrics
var (
	// StoreErrorsTotal tracks counter store failures by operation
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_store_errors_total",
			Help: "Total number of counter store errors by operation",
		},
		[]string{"operation"},
	)

	// StoreOperationDuration tracks counter store call latency
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_store_operation_duration_seconds",
			Help:    "Counter store operation latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"operation"},
	)
)

// Access list metrics
var (
	// AccessListEntries tracks current entries per list kind
	AccessListEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_access_list_entries",
			Help: "Number of active access list entries by kind",
		},
		[]string{"kind"},
	)

	// AccessListMutationsTotal tracks list mutations by kind and action
	AccessListMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_access_list_mutations_total",
			Help: "Total number of access list mutations by kind and action",
		},
		[]string{"kind", "action"},
	)

	// AccessListExpiredTotal tracks entries removed by the sweeper
	AccessListExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_access_list_expired_total",
			Help: "Total number of expired access list entries removed",
		},
	)
)

// Threat metrics
var (
	// ThreatEventsTotal tracks recorded threat events by kind
	ThreatEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_threat_events_total",
			Help: "Total number of threat events recorded by kind",
		},
		[]string{"kind"},
	)

	// ThreatEventsDroppedTotal tracks events lost to store failures
	ThreatEventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_threat_events_dropped_total",
			Help: "Total number of threat events dropped due to store failures",
		},
	)

	// ThreatEventsTrimmedTotal tracks events removed by retention sweeps
	ThreatEventsTrimmedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_threat_events_trimmed_total",
			Help: "Total number of threat events trimmed by retention sweeps",
		},
	)

	// ThreatLevel tracks the level of the most recent analysis (0 minimal,
	// 1 low, 2 medium, 3 high)
	ThreatLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_threat_level",
			Help: "Threat level of the most recent analysis",
		},
	)
)
