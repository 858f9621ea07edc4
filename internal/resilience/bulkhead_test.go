package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBulkheadRunsWithinLimit(t *testing.T) {
	b := NewBulkhead("test", 2, 2)

	err := b.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	st := b.Status()
	if st.Processed != 1 {
		t.Errorf("Expected 1 processed, got %d", st.Processed)
	}
}

func TestBulkheadPropagatesFnError(t *testing.T) {
	b := NewBulkhead("test", 1, 0)
	want := errors.New("boom")

	err := b.Execute(context.Background(), func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("Expected fn error, got %v", err)
	}
}

func TestBulkheadRejectsWhenSaturated(t *testing.T) {
	b := NewBulkhead("test", 1, 0)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	// Slot taken and no queue room: immediate rejection.
	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if err != ErrQueueFull {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	if got := b.Status().Rejected; got != 1 {
		t.Errorf("Expected 1 rejection, got %d", got)
	}

	close(release)
	wg.Wait()
}

func TestBulkheadQueuedCallerWaitsForSlot(t *testing.T) {
	b := NewBulkhead("test", 1, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan error, 1)
	go func() {
		done <- b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		t.Fatalf("Queued caller ran before slot freed: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("Queued caller failed after slot freed: %v", err)
	}
	wg.Wait()
}

func TestBulkheadQueuedCallerHonorsContext(t *testing.T) {
	b := NewBulkhead("test", 1, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := b.Execute(ctx, func(ctx context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded for queued caller, got %v", err)
	}

	close(release)
	wg.Wait()
}
