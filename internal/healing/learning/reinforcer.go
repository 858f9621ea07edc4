package learning

import (
	"context"
	"log/slog"
	"time"

	"selfmend/internal/core/domain"
)

// PriorAdjuster mutates strategy priors in bounded steps.
type PriorAdjuster interface {
	Prior(id string) (float64, bool)
	BumpPrior(id string, delta float64)
}

// StatsSource exposes the learned aggregate and its full-ledger recompute.
type StatsSource interface {
	StatsFor(kind domain.FailureKind, bucket, strategyID string) (domain.StrategyStats, bool)
	Each(fn func(kind domain.FailureKind, bucket, strategyID string, st domain.StrategyStats))
	Rebuild(ctx context.Context) error
}

// Reinforcer feeds observed outcomes back into strategy priors: an
// incremental nudge after every record, and a periodic reconciliation pass
// that recomputes the aggregate from the full ledger. Priors keep moving
// for strategies below the minimum-sample threshold, so a cold strategy is
// never starved out of the ranking.
type Reinforcer struct {
	registry PriorAdjuster
	stats    StatsSource
	step     float64
	interval time.Duration
	log      *slog.Logger
}

// New creates a reinforcer with the given bounded step size.
func New(
	registry PriorAdjuster,
	stats StatsSource,
	step float64,
	interval time.Duration,
	log *slog.Logger,
) *Reinforcer {
	if step <= 0 {
		step = 0.05
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reinforcer{
		registry: registry,
		stats:    stats,
		step:     step,
		interval: interval,
		log:      log,
	}
}

// OnRecord nudges the strategy's prior toward the observed success rate for
// its (kind, bucket). The move is monotonic in the success rate and clamped
// to the configured step, weighted by sample confidence.
func (r *Reinforcer) OnRecord(rec *domain.ExperienceRecord) {
	st, ok := r.stats.StatsFor(rec.Kind, rec.Bucket, rec.StrategyID)
	if !ok {
		return
	}
	r.align(rec.StrategyID, st)
}

// Run performs the periodic reconciliation pass until ctx is cancelled:
// full recompute from the ledger, then bounded re-alignment of every prior.
func (r *Reinforcer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile recomputes the aggregate from the ledger and re-aligns priors.
func (r *Reinforcer) Reconcile(ctx context.Context) {
	if err := r.stats.Rebuild(ctx); err != nil {
		r.log.Warn("Reconciliation replay failed", "error", err)
		return
	}

	aligned := 0
	r.stats.Each(func(_ domain.FailureKind, _, strategyID string, st domain.StrategyStats) {
		r.align(strategyID, st)
		aligned++
	})
	r.log.Debug("Reconciliation pass complete", "entries", aligned)
}

func (r *Reinforcer) align(strategyID string, st domain.StrategyStats) {
	prior, ok := r.registry.Prior(strategyID)
	if !ok {
		return
	}

	delta := (st.SuccessRate - prior) * st.Confidence
	if delta > r.step {
		delta = r.step
	} else if delta < -r.step {
		delta = -r.step
	}
	if delta != 0 {
		r.registry.BumpPrior(strategyID, delta)
	}
}
