// Package remedy holds builtin process-local remediation capabilities.
// External collaborators register richer strategies at runtime; these keep
// a bare deployment able to act on its own resource pressure.
package remedy

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"selfmend/internal/core/domain"
)

// FreeMemory forces a garbage collection pass and returns freed heap to the
// OS. Applicable to capacity failures.
func FreeMemory() domain.Capability {
	return domain.CapabilityFunc(func(ctx context.Context, _ *domain.FailureEvent) error {
		runtime.GC()
		debug.FreeOSMemory()
		return nil
	})
}

// Cooldown waits out transient pressure (rate limits, brief saturation)
// before reporting success, honoring the attempt deadline.
func Cooldown(d time.Duration) domain.Capability {
	return domain.CapabilityFunc(func(ctx context.Context, _ *domain.FailureEvent) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	})
}

// Reconnect probes a dependency via the supplied check until it answers or
// the attempt deadline expires. Applicable to unavailable dependencies.
func Reconnect(check func(ctx context.Context) error, every time.Duration) domain.Capability {
	return domain.CapabilityFunc(func(ctx context.Context, _ *domain.FailureEvent) error {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			if err := check(ctx); err == nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
}
