package domain

import "time"

// ComponentStatus is the health state of a monitored component.
type ComponentStatus string

const (
	StatusHealthy  ComponentStatus = "healthy"
	StatusDegraded ComponentStatus = "degraded"
	StatusFailed   ComponentStatus = "failed"
)

// HealthSnapshot is a point-in-time view of process health.
// Snapshots are ephemeral; only a rolling window is kept.
type HealthSnapshot struct {
	Timestamp       time.Time                  `json:"timestamp"`
	Goroutines      int                        `json:"goroutines"`
	HeapBytes       uint64                     `json:"heap_bytes"`
	QueueDepth      int                        `json:"queue_depth"`
	OpenEvents      int                        `json:"open_events"`
	EscalatedEvents int                        `json:"escalated_events"`
	Components      map[string]ComponentStatus `json:"components"`
	Trends          map[string]string          `json:"trends,omitempty"`
	Score           float64                    `json:"score"`
}

// Worst returns the worst component status in the snapshot.
func (s *HealthSnapshot) Worst() ComponentStatus {
	worst := StatusHealthy
	for _, st := range s.Components {
		if st == StatusFailed {
			return StatusFailed
		}
		if st == StatusDegraded {
			worst = StatusDegraded
		}
	}
	return worst
}
