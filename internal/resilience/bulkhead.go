package resilience

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrQueueFull is returned when the bulkhead's waiting queue is saturated.
var ErrQueueFull = errors.New("bulkhead queue is full")

// Bulkhead isolates a resource behind bounded concurrency so one failing
// dependency cannot absorb every worker in the process.
type Bulkhead struct {
	name          string
	maxConcurrent int64
	maxQueued     int64

	sem      *semaphore.Weighted
	active   atomic.Int64
	queued   atomic.Int64
	done     atomic.Int64
	rejected atomic.Int64
}

// NewBulkhead creates a bulkhead with the given concurrency and queue caps.
func NewBulkhead(name string, maxConcurrent, maxQueued int) *Bulkhead {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxQueued < 0 {
		maxQueued = 0
	}
	return &Bulkhead{
		name:          name,
		maxConcurrent: int64(maxConcurrent),
		maxQueued:     int64(maxQueued),
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Execute runs fn inside the bulkhead, waiting for a slot if needed.
func (b *Bulkhead) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.sem.TryAcquire(1) {
		if b.queued.Load() >= b.maxQueued {
			b.rejected.Add(1)
			return ErrQueueFull
		}
		b.queued.Add(1)
		err := b.sem.Acquire(ctx, 1)
		b.queued.Add(-1)
		if err != nil {
			return err
		}
	}
	defer b.sem.Release(1)

	b.active.Add(1)
	defer b.active.Add(-1)

	err := fn(ctx)
	b.done.Add(1)
	return err
}

// BulkheadStatus is a point-in-time view of bulkhead usage.
type BulkheadStatus struct {
	Name          string `json:"name"`
	Active        int64  `json:"active"`
	Queued        int64  `json:"queued"`
	MaxConcurrent int64  `json:"max_concurrent"`
	MaxQueued     int64  `json:"max_queued"`
	Processed     int64  `json:"processed"`
	Rejected      int64  `json:"rejected"`
}

// Status returns current usage counters.
func (b *Bulkhead) Status() BulkheadStatus {
	return BulkheadStatus{
		Name:          b.name,
		Active:        b.active.Load(),
		Queued:        b.queued.Load(),
		MaxConcurrent: b.maxConcurrent,
		MaxQueued:     b.maxQueued,
		Processed:     b.done.Load(),
		Rejected:      b.rejected.Load(),
	}
}
