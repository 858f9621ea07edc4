package knowledge

import (
	"strings"

	"selfmend/internal/core/domain"
)

// Projection derives a context bucket from a failure event. The projection
// is declared in configuration, so learning scope (broad vs. narrow) is a
// policy choice rather than hardcoded. For the same event it always yields
// the same bucket.
type Projection struct {
	keys            []string
	includeSeverity bool
}

// NewProjection builds a projection over the given context keys, in order.
func NewProjection(keys []string, includeSeverity bool) Projection {
	owned := make([]string, len(keys))
	copy(owned, keys)
	return Projection{keys: owned, includeSeverity: includeSeverity}
}

// Bucket computes the context bucket for an event.
func (p Projection) Bucket(ev *domain.FailureEvent) string {
	parts := make([]string, 0, len(p.keys)+1)
	for _, key := range p.keys {
		if v, ok := ev.Context[key]; ok && v != "" {
			parts = append(parts, key+"="+v)
		}
	}
	if p.includeSeverity {
		parts = append(parts, "sev="+coarseSeverity(ev.Severity))
	}
	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, ":")
}

// coarseSeverity collapses severity into two grades so buckets stay coarse.
func coarseSeverity(s domain.Severity) string {
	if s == domain.SeverityCritical {
		return "high"
	}
	return "normal"
}
