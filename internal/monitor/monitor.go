package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"selfmend/internal/core/domain"
	"selfmend/internal/healing/classifier"
	"selfmend/internal/metrics"
)

// Config holds monitor settings.
type Config struct {
	SamplingInterval time.Duration
	GoroutineLimit   int
	HeapLimitBytes   uint64
	QueueWarnDepth   int
	WindowSize       int
}

// Probe checks one component's health.
type Probe interface {
	Name() string
	Check(ctx context.Context) domain.ComponentStatus
}

// ProbeFunc adapts a named function to the Probe interface.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) domain.ComponentStatus
}

func (p ProbeFunc) Name() string { return p.ProbeName }

func (p ProbeFunc) Check(ctx context.Context) domain.ComponentStatus { return p.Fn(ctx) }

// Submitter accepts synthesized failure events. Satisfied by the healing
// coordinator; the monitor itself makes no remediation decisions.
type Submitter interface {
	Submit(ev *domain.FailureEvent) error
}

// Counters exposes coordinator counters for the snapshot.
type Counters interface {
	Open() int
	Escalated() int
	QueueDepth() int
}

// Monitor samples process health on a fixed interval, keeps a rolling
// window per metric, and synthesizes capacity failure events on threshold
// breach.
type Monitor struct {
	cfg       Config
	submitter Submitter
	counters  Counters
	probes    []Probe
	log       *slog.Logger

	mu       sync.RWMutex
	latest   *domain.HealthSnapshot
	windows  map[string]*window
	breached map[string]bool
}

// New creates a monitor. counters may be nil.
func New(
	cfg Config,
	submitter Submitter,
	counters Counters,
	probes []Probe,
	log *slog.Logger,
) *Monitor {
	if cfg.SamplingInterval <= 0 {
		cfg.SamplingInterval = 30 * time.Second
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 120
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		cfg:       cfg,
		submitter: submitter,
		counters:  counters,
		probes:    probes,
		log:       log,
		windows:   make(map[string]*window),
		breached:  make(map[string]bool),
	}
}

// Run samples until ctx is cancelled. Stopping is cooperative: a sample in
// progress completes before the loop exits, never torn mid-sample.
func (m *Monitor) Run(ctx context.Context) error {
	// Take one sample up front so Latest is populated immediately.
	m.sample(ctx)

	ticker := time.NewTicker(m.cfg.SamplingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

// Latest returns a copy of the most recent snapshot without blocking on
// sampling. Nil until the first sample completes.
func (m *Monitor) Latest() *domain.HealthSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.latest == nil {
		return nil
	}
	snap := *m.latest
	snap.Components = make(map[string]domain.ComponentStatus, len(m.latest.Components))
	for k, v := range m.latest.Components {
		snap.Components[k] = v
	}
	snap.Trends = make(map[string]string, len(m.latest.Trends))
	for k, v := range m.latest.Trends {
		snap.Trends[k] = v
	}
	return &snap
}

func (m *Monitor) sample(ctx context.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := &domain.HealthSnapshot{
		Timestamp:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
		HeapBytes:  mem.HeapAlloc,
		Components: make(map[string]domain.ComponentStatus),
		Trends:     make(map[string]string),
	}
	if m.counters != nil {
		snap.QueueDepth = m.counters.QueueDepth()
		snap.OpenEvents = m.counters.Open()
		snap.EscalatedEvents = m.counters.Escalated()
	}

	for _, p := range m.probes {
		snap.Components[p.Name()] = p.Check(ctx)
	}

	m.mu.Lock()
	m.push("goroutines", float64(snap.Goroutines))
	m.push("heap_bytes", float64(snap.HeapBytes))
	m.push("queue_depth", float64(snap.QueueDepth))
	for name, w := range m.windows {
		snap.Trends[name] = w.trend()
	}
	m.mu.Unlock()

	snap.Score = m.score(snap)
	metrics.HealthScore.Set(snap.Score)

	m.mu.Lock()
	m.latest = snap
	m.mu.Unlock()

	m.checkThreshold(ctx, "goroutines", float64(snap.Goroutines), float64(m.cfg.GoroutineLimit))
	m.checkThreshold(ctx, "heap_bytes", float64(snap.HeapBytes), float64(m.cfg.HeapLimitBytes))
	m.checkThreshold(ctx, "queue_depth", float64(snap.QueueDepth), float64(m.cfg.QueueWarnDepth))
}

func (m *Monitor) push(name string, v float64) {
	w, ok := m.windows[name]
	if !ok {
		w = newWindow(m.cfg.WindowSize)
		m.windows[name] = w
	}
	w.push(v)
}

// score grades each resource metric against its limit and averages the
// grades, mirroring the tiered baseline scoring of the status report.
func (m *Monitor) score(snap *domain.HealthSnapshot) float64 {
	grades := []float64{
		grade(float64(snap.Goroutines), float64(m.cfg.GoroutineLimit)),
		grade(float64(snap.HeapBytes), float64(m.cfg.HeapLimitBytes)),
		grade(float64(snap.QueueDepth), float64(m.cfg.QueueWarnDepth)),
	}
	for _, st := range snap.Components {
		switch st {
		case domain.StatusHealthy:
			grades = append(grades, 1.0)
		case domain.StatusDegraded:
			grades = append(grades, 0.5)
		default:
			grades = append(grades, 0.0)
		}
	}
	return mean(grades)
}

func grade(value, limit float64) float64 {
	if limit <= 0 {
		return 1.0
	}
	switch {
	case value <= 0.5*limit:
		return 1.0
	case value <= 0.75*limit:
		return 0.7
	case value <= limit:
		return 0.3
	default:
		return 0.0
	}
}

// checkThreshold emits a capacity failure event on the rising edge of a
// breach. Sustained pressure does not flood the queue with duplicates; a
// new event fires only after the metric recovers and breaches again.
func (m *Monitor) checkThreshold(ctx context.Context, metric string, value, limit float64) {
	if limit <= 0 {
		return
	}

	breached := value > limit
	m.mu.Lock()
	was := m.breached[metric]
	m.breached[metric] = breached
	m.mu.Unlock()

	if !breached || was {
		return
	}

	ev := &domain.FailureEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Source:    domain.SourceMonitor,
		Kind:      classifier.ClassifySignal(metric),
		Cause:     fmt.Sprintf("%s above limit: %.0f > %.0f", metric, value, limit),
		Severity:  domain.SeverityCritical,
		Context: map[string]string{
			"operation": "monitor." + metric,
			"metric":    metric,
			"value":     fmt.Sprintf("%.0f", value),
			"limit":     fmt.Sprintf("%.0f", limit),
		},
	}

	if m.submitter == nil {
		return
	}
	if err := m.submitter.Submit(ev); err != nil {
		m.log.Warn("Failed to submit resource-pressure event", "metric", metric, "error", err)
	}
}
