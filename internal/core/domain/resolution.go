package domain

import "time"

// Resolution is the terminal result of healing one failure event.
// It is the only thing surfaced to the caller: either the event succeeded
// transparently or it escalated with diagnostic context. The original
// failure is never re-raised to an unrelated caller.
type Resolution struct {
	EventID    string        `json:"event_id"`
	State      EventState    `json:"state"`
	StrategyID string        `json:"strategy_id,omitempty"`
	Attempted  []string      `json:"attempted"`
	Attempts   int           `json:"attempts"`
	Cause      string        `json:"cause,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Succeeded reports whether the event was transparently recovered.
func (r *Resolution) Succeeded() bool {
	return r.State == StateSucceeded
}
