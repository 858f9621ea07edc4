package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"selfmend/internal/core/config"
	"selfmend/internal/core/domain"
	"selfmend/internal/healing/classifier"
	"selfmend/internal/healing/coordinator"
	"selfmend/internal/healing/learning"
	"selfmend/internal/healing/registry"
	redisclient "selfmend/internal/infra/redis"
	"selfmend/internal/infra/storage"
	"selfmend/internal/infra/storage/memory"
	"selfmend/internal/infra/storage/postgres"
	"selfmend/internal/knowledge"
	"selfmend/internal/monitor"
	"selfmend/internal/status"
)

// Decision tells the caller what to do with the original operation after
// healing ran: retry it, or give up and surface the failure.
type Decision string

const (
	DecisionRetry         Decision = "retry"
	DecisionUnrecoverable Decision = "unrecoverable"
)

// Agent wires the monitor, classifier, registry, knowledge store, and healing
// coordinator into one lifecycle. It is the only entry point collaborators
// talk to.
type Agent struct {
	cfg *config.AppConfig
	log *slog.Logger

	db          *postgres.DB
	redisClient *redisclient.Client
	store       *knowledge.Store
	registry    *registry.Registry
	coordinator *coordinator.Coordinator
	reinforcer  *learning.Reinforcer
	monitor     *monitor.Monitor
	server      *status.Server

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates an Agent with all dependencies initialized. The experience
// ledger uses PostgreSQL when a database URL is configured and falls back to
// in-memory storage otherwise; the Redis snapshot cache is likewise optional.
func New(cfg *config.AppConfig, log *slog.Logger) (*Agent, error) {
	if log == nil {
		log = slog.Default()
	}

	var repo storage.ExperienceRepository
	var db *postgres.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate("migrations"); err != nil {
			_ = db.Close()
			return nil, err
		}
		repo = postgres.NewExperienceRepo(db)
		log.Info("Using PostgreSQL experience ledger")
	} else {
		repo = memory.NewExperienceRepo()
		log.Info("Using in-memory experience ledger")
	}

	var redisClient *redisclient.Client
	var snapshots knowledge.SnapshotStore
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			// The snapshot cache is advisory; replay covers its absence.
			log.Warn("Redis unavailable, knowledge snapshots disabled", "error", err)
		} else {
			snapshots = redisClient
		}
	}

	proj := knowledge.NewProjection(cfg.Bucket.Keys, cfg.Bucket.IncludeSeverity)
	store := knowledge.NewStore(repo, snapshots, proj, log)
	reg := registry.New(store, cfg.Healing.MinSampleThreshold, cfg.Healing.MaxPriorStep)
	reinforcer := learning.New(
		reg,
		store,
		cfg.Healing.MaxPriorStep,
		cfg.Healing.ReconcileInterval.Std(),
		log,
	)

	coord := coordinator.New(coordinator.Config{
		MaxRetryAttempts: cfg.Healing.MaxRetryAttempts,
		AttemptTimeout:   cfg.Healing.AttemptTimeout.Std(),
		BackoffBase:      cfg.Healing.BackoffBase.Std(),
		BackoffMax:       cfg.Healing.BackoffMax.Std(),
		WorkerCount:      cfg.Healing.WorkerCount,
		QueueSize:        cfg.Healing.QueueSize,
	}, reg, store, reinforcer, log)

	a := &Agent{
		cfg:         cfg,
		log:         log,
		db:          db,
		redisClient: redisClient,
		store:       store,
		registry:    reg,
		coordinator: coord,
		reinforcer:  reinforcer,
	}

	a.monitor = monitor.New(monitor.Config{
		SamplingInterval: cfg.Monitor.SamplingInterval.Std(),
		GoroutineLimit:   cfg.Monitor.GoroutineLimit,
		HeapLimitBytes:   cfg.Monitor.HeapLimitBytes,
		QueueWarnDepth:   cfg.Monitor.QueueWarnDepth,
		WindowSize:       cfg.Monitor.WindowSize,
	}, coord, coord, a.probes(), log)

	a.server = status.NewServer(a, cfg.Server.Port)
	return a, nil
}

// RegisterStrategy adds or replaces a remediation strategy. Collaborators may
// call this at any time, including while healing is running.
func (a *Agent) RegisterStrategy(s domain.Strategy) {
	a.registry.Register(s)
}

// Start loads the knowledge base and launches the coordinator, reinforcer,
// monitor, and status server. It returns once everything is running.
func (a *Agent) Start(ctx context.Context) error {
	a.store.Load(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return a.coordinator.Run(gctx) })
	g.Go(func() error { return a.reinforcer.Run(gctx) })
	g.Go(func() error { return a.monitor.Run(gctx) })
	g.Go(func() error { return a.server.Start() })
	a.group = g

	a.log.Info("Agent started",
		"port", a.cfg.Server.Port,
		"workers", a.cfg.Healing.WorkerCount,
		"strategies", len(a.registry.IDs()),
	)
	return nil
}

// Stop shuts the agent down: new submissions stop, in-flight remediations
// run to completion, a final knowledge snapshot is flushed, and connections
// close. Stop respects ctx as the drain deadline.
func (a *Agent) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.server.Stop(ctx); err != nil {
		a.log.Warn("Status server shutdown failed", "error", err)
	}

	if a.group != nil {
		done := make(chan error, 1)
		go func() { done <- a.group.Wait() }()
		select {
		case <-ctx.Done():
			a.log.Warn("Shutdown deadline reached before workers drained")
		case err := <-done:
			if err != nil {
				a.log.Warn("Worker group exited with error", "error", err)
			}
		}
	}

	a.store.Flush(ctx)
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
	a.log.Info("Agent stopped")
	return nil
}

// ReportFailure submits an execution failure and blocks until healing reaches
// a terminal state. The returned decision says whether the caller should
// retry the original operation; the resolution carries the diagnostic detail.
func (a *Agent) ReportFailure(
	ctx context.Context,
	operation string,
	cause error,
	extra map[string]string,
) (Decision, *domain.Resolution, error) {
	if cause == nil {
		return DecisionRetry, nil, nil
	}

	ev := a.newEvent(operation, cause, extra)
	res, err := a.coordinator.SubmitWait(ctx, ev)
	if err != nil {
		return DecisionUnrecoverable, nil, err
	}
	if res.Succeeded() {
		return DecisionRetry, res, nil
	}
	return DecisionUnrecoverable, res, nil
}

// ReportFailureAsync submits an execution failure without waiting for the
// outcome.
func (a *Agent) ReportFailureAsync(operation string, cause error, extra map[string]string) error {
	if cause == nil {
		return nil
	}
	return a.coordinator.Submit(a.newEvent(operation, cause, extra))
}

func (a *Agent) newEvent(operation string, cause error, extra map[string]string) *domain.FailureEvent {
	evCtx := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		evCtx[k] = v
	}
	evCtx["operation"] = operation

	return &domain.FailureEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Source:    domain.SourceExecution,
		Kind:      classifier.Classify(cause),
		Cause:     cause.Error(),
		Context:   evCtx,
		Severity:  domain.SeverityWarning,
	}
}

// Health returns the latest monitor snapshot. Nil before the first sample.
func (a *Agent) Health() *domain.HealthSnapshot {
	return a.monitor.Latest()
}

// StatusReport builds the point-in-time report served on /status.
func (a *Agent) StatusReport(ctx context.Context) status.Report {
	report := status.Report{
		Health:           a.monitor.Latest(),
		OpenEvents:       a.coordinator.Open(),
		EscalatedEvents:  a.coordinator.Escalated(),
		SucceededEvents:  a.coordinator.Succeeded(),
		DegradedLearning: a.store.Degraded(),
		TopStrategies:    make(map[string][]status.StrategyRank),
	}
	if n, err := a.store.Count(ctx); err == nil {
		report.LedgerRecords = n
	}

	for _, kind := range domain.AllKinds {
		candidates := a.registry.Query(kind, "default")
		if len(candidates) > 3 {
			candidates = candidates[:3]
		}
		ranks := make([]status.StrategyRank, 0, len(candidates))
		for _, c := range candidates {
			ranks = append(ranks, status.StrategyRank{
				StrategyID: c.Strategy.ID,
				Score:      c.Score,
				Learned:    c.Learned,
				Attempts:   c.Attempts,
			})
		}
		if len(ranks) > 0 {
			report.TopStrategies[string(kind)] = ranks
		}
	}
	return report
}

func (a *Agent) probes() []monitor.Probe {
	probes := []monitor.Probe{
		monitor.ProbeFunc{
			ProbeName: "learning",
			Fn: func(ctx context.Context) domain.ComponentStatus {
				if a.store.Degraded() {
					return domain.StatusDegraded
				}
				return domain.StatusHealthy
			},
		},
	}
	if a.db != nil {
		probes = append(probes, monitor.ProbeFunc{
			ProbeName: "database",
			Fn: func(ctx context.Context) domain.ComponentStatus {
				if err := a.db.Health(ctx); err != nil {
					return domain.StatusFailed
				}
				return domain.StatusHealthy
			},
		})
	}
	if a.redisClient != nil {
		probes = append(probes, monitor.ProbeFunc{
			ProbeName: "redis",
			Fn: func(ctx context.Context) domain.ComponentStatus {
				if err := a.redisClient.Health(ctx); err != nil {
					// Snapshots are a cache; losing redis only degrades.
					return domain.StatusDegraded
				}
				return domain.StatusHealthy
			},
		})
	}
	return probes
}
