package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"selfmend/internal/core/config"
	"selfmend/internal/core/domain"
)

func testAgent(t *testing.T) *Agent {
	t.Helper()

	cfg := &config.AppConfig{}
	cfg.ApplyDefaults()
	// Port 0 picks a free port; no database or redis means the in-memory
	// ledger and no snapshot cache.
	cfg.Server.Port = 0
	cfg.Healing.BackoffBase = config.Duration(time.Millisecond)
	cfg.Healing.BackoffMax = config.Duration(5 * time.Millisecond)

	app, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Stop(ctx)
	})
	return app
}

type flakyCapability struct {
	mu       sync.Mutex
	failures int
}

func (f *flakyCapability) Apply(ctx context.Context, ev *domain.FailureEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("still failing")
	}
	return nil
}

func TestReportFailureHealsAndAdvisesRetry(t *testing.T) {
	app := testAgent(t)
	app.RegisterStrategy(domain.Strategy{
		ID:         "reconnect",
		Kinds:      []domain.FailureKind{domain.KindDependencyUnavailable},
		Capability: &flakyCapability{},
		Cost:       0.2,
		Prior:      0.6,
	})

	decision, res, err := app.ReportFailure(
		context.Background(),
		"query_db",
		errors.New("dial tcp: connection refused"),
		nil,
	)
	if err != nil {
		t.Fatalf("ReportFailure failed: %v", err)
	}
	if decision != DecisionRetry {
		t.Errorf("Expected retry decision, got %s", decision)
	}
	if res == nil || !res.Succeeded() || res.StrategyID != "reconnect" {
		t.Errorf("Unexpected resolution: %+v", res)
	}
}

func TestReportFailureEscalatesWhenNothingApplies(t *testing.T) {
	app := testAgent(t)
	// No strategy registered for dependency failures.

	decision, res, err := app.ReportFailure(
		context.Background(),
		"query_db",
		errors.New("dial tcp: connection refused"),
		nil,
	)
	if err != nil {
		t.Fatalf("ReportFailure failed: %v", err)
	}
	if decision != DecisionUnrecoverable {
		t.Errorf("Expected unrecoverable decision, got %s", decision)
	}
	if res == nil || res.State != domain.StateEscalated {
		t.Errorf("Unexpected resolution: %+v", res)
	}
}

func TestReportFailureNilErrorIsNoop(t *testing.T) {
	app := testAgent(t)

	decision, res, err := app.ReportFailure(context.Background(), "op", nil, nil)
	if err != nil || res != nil || decision != DecisionRetry {
		t.Errorf("Nil error should be a no-op: %s %+v %v", decision, res, err)
	}
}

func TestHealingOutcomesFeedTheLedgerAndReport(t *testing.T) {
	app := testAgent(t)
	app.RegisterStrategy(domain.Strategy{
		ID:         "cooldown",
		Kinds:      []domain.FailureKind{domain.KindTransientResource},
		Capability: &flakyCapability{failures: 1},
		Cost:       0.1,
		Prior:      0.5,
	})

	decision, res, err := app.ReportFailure(
		context.Background(),
		"fetch",
		errors.New("request timed out"),
		nil,
	)
	if err != nil {
		t.Fatalf("ReportFailure failed: %v", err)
	}
	if decision != DecisionRetry || res.Attempts != 2 {
		t.Fatalf("Expected recovery on second attempt, got %s %+v", decision, res)
	}

	report := app.StatusReport(context.Background())
	if report.LedgerRecords != 2 {
		t.Errorf("Expected 2 ledger records, got %d", report.LedgerRecords)
	}
	if report.SucceededEvents != 1 {
		t.Errorf("Expected 1 succeeded event, got %d", report.SucceededEvents)
	}
	if report.DegradedLearning {
		t.Error("In-memory ledger should not be degraded")
	}
	ranks := report.TopStrategies[string(domain.KindTransientResource)]
	if len(ranks) != 1 || ranks[0].StrategyID != "cooldown" {
		t.Errorf("Unexpected strategy ranking: %+v", ranks)
	}
}

func TestReportFailureAsyncDoesNotBlock(t *testing.T) {
	app := testAgent(t)
	app.RegisterStrategy(domain.Strategy{
		ID:         "cooldown",
		Kinds:      []domain.FailureKind{domain.KindTransientResource},
		Capability: &flakyCapability{},
		Cost:       0.1,
		Prior:      0.5,
	})

	if err := app.ReportFailureAsync("fetch", errors.New("request timed out"), nil); err != nil {
		t.Fatalf("ReportFailureAsync failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for app.coordinator.Succeeded() == 0 {
		select {
		case <-deadline:
			t.Fatal("Async event never healed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
