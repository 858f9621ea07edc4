package domain

import "context"

// Capability is a remediation action invoked by strategy ID.
// Implementations are provided by external collaborators (or builtin remedies)
// and must honor the context deadline.
type Capability interface {
	Apply(ctx context.Context, event *FailureEvent) error
}

// CapabilityFunc adapts a function to the Capability interface.
type CapabilityFunc func(ctx context.Context, event *FailureEvent) error

func (f CapabilityFunc) Apply(ctx context.Context, event *FailureEvent) error {
	return f(ctx, event)
}

// Strategy is a named remediation capability with applicability, cost,
// and a static prior score in [0,1].
type Strategy struct {
	ID         string
	Kinds      []FailureKind
	Capability Capability
	Cost       float64
	Prior      float64
}

// AppliesTo reports whether the strategy handles the given failure kind.
func (s Strategy) AppliesTo(kind FailureKind) bool {
	for _, k := range s.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

