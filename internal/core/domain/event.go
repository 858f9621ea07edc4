package domain

import "time"

// FailureSource identifies where a failure event originated.
type FailureSource string

const (
	SourceMonitor   FailureSource = "monitor"
	SourceExecution FailureSource = "execution"
)

// Severity grades a failure event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// EventState tracks a failure event through the healing state machine.
type EventState string

const (
	StateDetected  EventState = "detected"
	StateSelecting EventState = "selecting"
	StateApplying  EventState = "applying"
	StateRetrying  EventState = "retrying"
	StateSucceeded EventState = "succeeded"
	StateEscalated EventState = "escalated"
)

// Terminal reports whether the state closes the event.
func (s EventState) Terminal() bool {
	return s == StateSucceeded || s == StateEscalated
}

// FailureEvent represents a single detected failure awaiting remediation.
type FailureEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Source    FailureSource     `json:"source"`
	Kind      FailureKind       `json:"kind"`
	Cause     string            `json:"cause"`
	Context   map[string]string `json:"context"`
	Severity  Severity          `json:"severity"`
}
