package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects a call without invoking it.
var ErrOpen = errors.New("circuit breaker is open")

// BreakerState is the circuit breaker state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"    // normal operation
	BreakerOpen     BreakerState = "open"      // failing, reject calls
	BreakerHalfOpen BreakerState = "half_open" // probing for recovery
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           // failures in window before opening
	SuccessThreshold int           // successes in half-open before closing
	OpenTimeout      time.Duration // time open before probing half-open
	Window           time.Duration // rolling window for failure counting
}

// DefaultBreakerConfig returns sensible defaults for remediation capabilities.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
		Window:           5 * time.Minute,
	}
}

// Breaker shields a repeatedly failing capability: after enough failures in
// the rolling window it rejects calls outright until a probe succeeds.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu           sync.Mutex
	state        BreakerState
	failures     []time.Time
	successCount int
	changedAt    time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	return &Breaker{
		name:      name,
		cfg:       cfg,
		state:     BreakerClosed,
		changedAt: time.Now(),
	}
}

// Allow reports whether a call may proceed. An open breaker transitions to
// half-open once its timeout elapses.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if time.Since(b.changedAt) < b.cfg.OpenTimeout {
			return ErrOpen
		}
		b.state = BreakerHalfOpen
		b.successCount = 0
	}
	return nil
}

// OnSuccess records a successful call.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = BreakerClosed
			b.failures = nil
			b.successCount = 0
			b.changedAt = time.Now()
		}
		return
	}
	// Success in the closed state clears the failure window.
	b.failures = nil
}

// OnFailure records a failed call.
func (b *Breaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.failures = append(b.failures, now)
	cutoff := now.Add(-b.cfg.Window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept

	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.changedAt = now
	case BreakerClosed:
		if len(b.failures) >= b.cfg.FailureThreshold {
			b.state = BreakerOpen
			b.changedAt = now
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}
