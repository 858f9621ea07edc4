package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FailuresDetected tracks failure events entering the coordinator
	FailuresDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selfmend_failures_detected_total",
			Help: "Total number of failure events detected",
		},
		[]string{"kind", "source"},
	)

	// HealingAttempts tracks remediation attempts per strategy and outcome
	HealingAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selfmend_healing_attempts_total",
			Help: "Total number of remediation attempts",
		},
		[]string{"kind", "strategy", "outcome"},
	)

	// HealingLatency tracks remediation attempt latency
	HealingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "selfmend_healing_latency_seconds",
			Help:    "Remediation attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "strategy"},
	)

	// EventsEscalated tracks events that exhausted their retry bound
	EventsEscalated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selfmend_events_escalated_total",
			Help: "Total number of failure events escalated",
		},
		[]string{"kind"},
	)

	// EventsOpen tracks failure events currently being healed
	EventsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selfmend_events_open",
			Help: "Number of failure events currently being healed",
		},
	)

	// LedgerAppends tracks experience records written to the ledger
	LedgerAppends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "selfmend_ledger_appends_total",
			Help: "Total number of experience records appended",
		},
	)

	// HealthScore tracks the monitor's aggregate health score
	HealthScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selfmend_health_score",
			Help: "Aggregate health score between 0 and 1",
		},
	)
)
