package domain

import "time"

// ExperienceRecord is one entry of the append-only outcome ledger.
// The ledger is the sole source of truth for learning: every aggregate
// must be recomputable from these records alone.
type ExperienceRecord struct {
	Seq        int64         `json:"seq"`
	EventID    string        `json:"event_id"`
	Kind       FailureKind   `json:"kind"`
	Bucket     string        `json:"bucket"`
	StrategyID string        `json:"strategy_id"`
	Success    bool          `json:"success"`
	Latency    time.Duration `json:"latency"`
	Timestamp  time.Time     `json:"timestamp"`
}

// StrategyStats aggregates ledger outcomes for one (kind, bucket, strategy).
// SuccessRate is always Successes/Attempts; Confidence grows with sample size.
type StrategyStats struct {
	Attempts    int     `json:"attempts"`
	Successes   int     `json:"successes"`
	SuccessRate float64 `json:"success_rate"`
	Confidence  float64 `json:"confidence"`
}
