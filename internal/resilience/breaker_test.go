package resilience

import (
	"testing"
	"time"
)

func testBreaker(openTimeout time.Duration) *Breaker {
	return NewBreaker("test", BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      openTimeout,
		Window:           time.Minute,
	})
}

func TestBreakerStartsClosed(t *testing.T) {
	b := testBreaker(time.Minute)
	if b.State() != BreakerClosed {
		t.Errorf("Expected closed, got %s", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("Closed breaker must allow calls: %v", err)
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := testBreaker(time.Minute)

	b.OnFailure()
	b.OnFailure()
	if b.State() != BreakerClosed {
		t.Fatal("Breaker opened before threshold")
	}

	b.OnFailure()
	if b.State() != BreakerOpen {
		t.Fatal("Breaker did not open at threshold")
	}
	if err := b.Allow(); err != ErrOpen {
		t.Errorf("Open breaker must reject calls, got %v", err)
	}
}

func TestBreakerSuccessClearsWindow(t *testing.T) {
	b := testBreaker(time.Minute)

	b.OnFailure()
	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()
	b.OnFailure()

	if b.State() != BreakerClosed {
		t.Error("Success should have reset the failure count")
	}
}

func TestBreakerHalfOpenProbeAndClose(t *testing.T) {
	b := testBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		b.OnFailure()
	}
	if b.State() != BreakerOpen {
		t.Fatal("Breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)
	if err := b.Allow(); err != nil {
		t.Fatalf("Expected half-open probe to be allowed: %v", err)
	}
	if b.State() != BreakerHalfOpen {
		t.Fatalf("Expected half_open, got %s", b.State())
	}

	b.OnSuccess()
	if b.State() != BreakerHalfOpen {
		t.Fatal("One success must not close the breaker yet")
	}
	b.OnSuccess()
	if b.State() != BreakerClosed {
		t.Errorf("Expected closed after success threshold, got %s", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := testBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		b.OnFailure()
	}
	time.Sleep(20 * time.Millisecond)
	if err := b.Allow(); err != nil {
		t.Fatalf("Expected probe allowed: %v", err)
	}

	b.OnFailure()
	if b.State() != BreakerOpen {
		t.Errorf("Failed probe must reopen the breaker, got %s", b.State())
	}
	if err := b.Allow(); err != ErrOpen {
		t.Errorf("Reopened breaker must reject, got %v", err)
	}
}
