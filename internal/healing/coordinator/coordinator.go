package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"selfmend/internal/core/domain"
	"selfmend/internal/healing/registry"
	"selfmend/internal/metrics"
	"selfmend/internal/resilience"
)

var (
	// ErrQueueFull is returned when the inbound event queue is saturated.
	ErrQueueFull = errors.New("healing queue is full")

	// ErrDuplicate is returned when an event with the same ID is already
	// being healed. At most one remediation attempt runs per event.
	ErrDuplicate = errors.New("event is already being healed")

	errNoCandidates = errors.New("no applicable strategies")
)

// Config holds coordinator settings.
type Config struct {
	MaxRetryAttempts int
	AttemptTimeout   time.Duration
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	WorkerCount      int
	QueueSize        int
}

// QueryRegistry supplies ranked remediation candidates.
type QueryRegistry interface {
	Query(kind domain.FailureKind, bucket string) []registry.Candidate
}

// Recorder persists attempt outcomes and derives context buckets.
type Recorder interface {
	Bucket(ev *domain.FailureEvent) string
	Append(ctx context.Context, rec *domain.ExperienceRecord) error
}

// Observer is notified after each acknowledged experience record.
type Observer interface {
	OnRecord(rec *domain.ExperienceRecord)
}

// Coordinator drains the inbound failure queue and drives each event through
// the healing state machine:
//
//	Detected -> Selecting -> Applying -> {Succeeded | Retrying | Escalated}
//
// Suspensions on one event never block unrelated events; two workers never
// touch the same event concurrently.
type Coordinator struct {
	cfg      Config
	registry QueryRegistry
	recorder Recorder
	observer Observer
	log      *slog.Logger

	queue    chan *domain.FailureEvent
	bulkhead *resilience.Bulkhead

	mu       sync.Mutex
	inflight map[string]struct{}
	waiters  map[string]chan *domain.Resolution
	breakers map[string]*resilience.Breaker

	escalated atomic.Int64
	succeeded atomic.Int64
}

// New creates a coordinator. observer may be nil.
func New(
	cfg Config,
	reg QueryRegistry,
	recorder Recorder,
	observer Observer,
	log *slog.Logger,
) *Coordinator {
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = 3
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 60 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		cfg:      cfg,
		registry: reg,
		recorder: recorder,
		observer: observer,
		log:      log,
		queue:    make(chan *domain.FailureEvent, cfg.QueueSize),
		bulkhead: resilience.NewBulkhead("remediation", cfg.WorkerCount, cfg.QueueSize),
		inflight: make(map[string]struct{}),
		waiters:  make(map[string]chan *domain.Resolution),
		breakers: make(map[string]*resilience.Breaker),
	}
}

// Run processes events until ctx is cancelled, then waits for in-flight
// remediations to finish. An attempt already applying completes or hits its
// own timeout; it is never killed mid-flight.
func (c *Coordinator) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx)
		}()
	}
	wg.Wait()
	return nil
}

func (c *Coordinator) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.queue:
			res := c.heal(ctx, ev)
			c.finish(ev, res)
		}
	}
}

// Submit enqueues a failure event without waiting for its resolution.
// Duplicate IDs are rejected while the event is active.
func (c *Coordinator) Submit(ev *domain.FailureEvent) error {
	_, err := c.enqueue(ev, false)
	return err
}

// SubmitWait enqueues a failure event and blocks until it reaches a terminal
// state or ctx is cancelled.
func (c *Coordinator) SubmitWait(
	ctx context.Context,
	ev *domain.FailureEvent,
) (*domain.Resolution, error) {
	ch, err := c.enqueue(ev, true)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res, nil
	}
}

func (c *Coordinator) enqueue(
	ev *domain.FailureEvent,
	wait bool,
) (chan *domain.Resolution, error) {
	c.mu.Lock()
	if _, active := c.inflight[ev.ID]; active {
		c.mu.Unlock()
		return nil, ErrDuplicate
	}
	c.inflight[ev.ID] = struct{}{}
	var ch chan *domain.Resolution
	if wait {
		ch = make(chan *domain.Resolution, 1)
		c.waiters[ev.ID] = ch
	}
	c.mu.Unlock()

	select {
	case c.queue <- ev:
		metrics.FailuresDetected.WithLabelValues(string(ev.Kind), string(ev.Source)).Inc()
		metrics.EventsOpen.Set(float64(c.Open()))
		return ch, nil
	default:
		c.mu.Lock()
		delete(c.inflight, ev.ID)
		delete(c.waiters, ev.ID)
		c.mu.Unlock()
		return nil, ErrQueueFull
	}
}

func (c *Coordinator) finish(ev *domain.FailureEvent, res *domain.Resolution) {
	if res.State == domain.StateEscalated {
		c.escalated.Add(1)
		metrics.EventsEscalated.WithLabelValues(string(ev.Kind)).Inc()
		c.log.Warn("Failure event escalated",
			"event", ev.ID,
			"kind", ev.Kind,
			"attempts", res.Attempts,
			"attempted", res.Attempted,
			"cause", res.Cause,
			"last_error", res.LastError,
		)
	} else {
		c.succeeded.Add(1)
		c.log.Info("Failure event healed",
			"event", ev.ID,
			"kind", ev.Kind,
			"strategy", res.StrategyID,
			"attempts", res.Attempts,
		)
	}

	c.mu.Lock()
	delete(c.inflight, ev.ID)
	ch := c.waiters[ev.ID]
	delete(c.waiters, ev.ID)
	c.mu.Unlock()

	metrics.EventsOpen.Set(float64(c.Open()))
	if ch != nil {
		ch <- res
	}
}

// heal runs the state machine for one event. Every executed attempt appends
// exactly one experience record, in transition order; breaker-open
// rejections consume an attempt without touching the ledger.
func (c *Coordinator) heal(ctx context.Context, ev *domain.FailureEvent) *domain.Resolution {
	start := time.Now()
	bucket := c.recorder.Bucket(ev)
	maxAttempts := c.attemptBound(ev.Kind)
	backoff := c.newBackoff()

	res := &domain.Resolution{
		EventID: ev.ID,
		State:   domain.StateEscalated,
		Cause:   ev.Cause,
	}
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Selecting
		cand, err := c.selectStrategy(ev.Kind, bucket, res.Attempted)
		if err != nil {
			lastErr = err
			break
		}
		strat := cand.Strategy

		// Applying
		applyStart := time.Now()
		applyErr := c.apply(strat, ev)
		latency := time.Since(applyStart)

		res.Attempts = attempt
		res.Attempted = append(res.Attempted, strat.ID)
		// An open breaker rejects before the capability runs; the ledger
		// records only outcomes of attempts that actually executed, so the
		// strategy's learned rate is not double-charged for the failures
		// that opened the breaker.
		if !errors.Is(applyErr, resilience.ErrOpen) {
			c.record(ctx, ev, bucket, strat.ID, applyErr == nil, latency)
		}

		if applyErr == nil {
			res.State = domain.StateSucceeded
			res.StrategyID = strat.ID
			res.Elapsed = time.Since(start)
			return res
		}
		lastErr = applyErr
		if attempt == maxAttempts {
			break
		}

		// Retrying: back off before re-entering Selecting, so repeated
		// attempts do not storm an already-failing dependency.
		delay, stop := backoff.Next()
		if stop {
			delay = c.cfg.BackoffMax
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.LastError = "shutdown during retry backoff: " + lastErr.Error()
			res.Elapsed = time.Since(start)
			return res
		case <-timer.C:
		}
	}

	if lastErr != nil {
		res.LastError = lastErr.Error()
	}
	res.Elapsed = time.Since(start)
	return res
}

// selectStrategy picks the best-ranked candidate not yet tried on this
// event. When every candidate has been tried, the best overall is reused
// rather than escalating with applicable strategies left.
func (c *Coordinator) selectStrategy(
	kind domain.FailureKind,
	bucket string,
	attempted []string,
) (*registry.Candidate, error) {
	candidates := c.registry.Query(kind, bucket)
	if len(candidates) == 0 {
		return nil, errNoCandidates
	}
	for i := range candidates {
		if !contains(attempted, candidates[i].Strategy.ID) {
			return &candidates[i], nil
		}
	}
	return &candidates[0], nil
}

// apply invokes the capability under its per-strategy circuit breaker and
// the shared bulkhead. The attempt context is detached from the run context:
// shutdown never cancels a remediation mid-flight, only the attempt timeout
// does.
func (c *Coordinator) apply(strat domain.Strategy, ev *domain.FailureEvent) error {
	br := c.breaker(strat.ID)
	if err := br.Allow(); err != nil {
		return err
	}

	actx, cancel := context.WithTimeout(context.Background(), c.cfg.AttemptTimeout)
	defer cancel()

	err := c.bulkhead.Execute(actx, func(ctx context.Context) error {
		return strat.Capability.Apply(ctx, ev)
	})
	if err != nil {
		br.OnFailure()
	} else {
		br.OnSuccess()
	}
	return err
}

func (c *Coordinator) record(
	ctx context.Context,
	ev *domain.FailureEvent,
	bucket, strategyID string,
	success bool,
	latency time.Duration,
) {
	rec := &domain.ExperienceRecord{
		EventID:    ev.ID,
		Kind:       ev.Kind,
		Bucket:     bucket,
		StrategyID: strategyID,
		Success:    success,
		Latency:    latency,
		Timestamp:  time.Now(),
	}
	if err := c.recorder.Append(ctx, rec); err != nil {
		// An unwritable ledger degrades learning but never blocks healing.
		c.log.Warn("Failed to append experience record", "event", ev.ID, "error", err)
		return
	}

	metrics.LedgerAppends.Inc()
	outcome := "failure"
	if success {
		outcome = "success"
	}
	metrics.HealingAttempts.WithLabelValues(string(ev.Kind), strategyID, outcome).Inc()
	metrics.HealingLatency.WithLabelValues(string(ev.Kind), strategyID).Observe(latency.Seconds())

	if c.observer != nil {
		c.observer.OnRecord(rec)
	}
}

// attemptBound caps attempts per kind. Unknown failures get a single retry
// before escalating; everything else uses the configured bound.
func (c *Coordinator) attemptBound(kind domain.FailureKind) int {
	if kind == domain.KindUnknown && c.cfg.MaxRetryAttempts > 2 {
		return 2
	}
	return c.cfg.MaxRetryAttempts
}

func (c *Coordinator) newBackoff() retry.Backoff {
	b := retry.NewExponential(c.cfg.BackoffBase)
	b = retry.WithJitterPercent(50, b)
	b = retry.WithCappedDuration(c.cfg.BackoffMax, b)
	return b
}

func (c *Coordinator) breaker(strategyID string) *resilience.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	br, ok := c.breakers[strategyID]
	if !ok {
		br = resilience.NewBreaker(strategyID, resilience.DefaultBreakerConfig())
		c.breakers[strategyID] = br
	}
	return br
}

// Open returns the number of events currently being healed.
func (c *Coordinator) Open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Escalated returns the cumulative count of escalated events.
func (c *Coordinator) Escalated() int {
	return int(c.escalated.Load())
}

// Succeeded returns the cumulative count of healed events.
func (c *Coordinator) Succeeded() int {
	return int(c.succeeded.Load())
}

// QueueDepth returns the current inbound queue depth.
func (c *Coordinator) QueueDepth() int {
	return len(c.queue)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
