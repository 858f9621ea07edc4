package classifier

import (
	"context"
	"errors"
	"net"
	"strings"

	"selfmend/internal/core/domain"
)

// Pattern tables are checked in order; the first match wins, so
// classification is deterministic for a given error text.
var (
	dependencyPatterns = []string{
		"connection refused",
		"no such host",
		"unreachable",
		"service unavailable",
		"not installed",
		"missing dependency",
		"module not found",
		"executable file not found",
		"provider unavailable",
		"broken pipe",
	}

	capacityPatterns = []string{
		"out of memory",
		"resource exhausted",
		"too many open files",
		"disk full",
		"no space left",
		"capacity",
		"memory pressure",
	}

	transientPatterns = []string{
		"rate limit",
		"too many requests",
		"429",
		"quota exceeded",
		"timeout",
		"timed out",
		"deadline exceeded",
		"temporarily",
		"connection reset",
		"503",
	}
)

// Classify maps an execution error to the closed failure taxonomy.
// Unrecognized errors map to KindUnknown, so a valid dispatch key always
// exists. The function is pure: equal inputs yield equal kinds.
func Classify(err error) domain.FailureKind {
	if err == nil {
		return domain.KindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindTransientResource
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.KindTransientResource
	}

	msg := strings.ToLower(err.Error())
	for _, p := range dependencyPatterns {
		if strings.Contains(msg, p) {
			return domain.KindDependencyUnavailable
		}
	}
	for _, p := range capacityPatterns {
		if strings.Contains(msg, p) {
			return domain.KindCapacity
		}
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return domain.KindTransientResource
		}
	}
	return domain.KindUnknown
}

// ClassifySignal maps a monitor-synthesized resource signal to a kind.
// Threshold breaches are capacity pressure by definition.
func ClassifySignal(metric string) domain.FailureKind {
	switch metric {
	case "goroutines", "heap_bytes", "queue_depth":
		return domain.KindCapacity
	default:
		return domain.KindUnknown
	}
}
