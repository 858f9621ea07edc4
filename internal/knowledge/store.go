package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"selfmend/internal/core/domain"
	"selfmend/internal/infra/storage"
)

// snapshotEvery is how many appends pass between best-effort snapshot saves.
const snapshotEvery = 16

// SnapshotStore caches a serialized knowledge aggregate. Optional; the
// ledger alone is always sufficient to rebuild.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, data []byte) error
	LoadSnapshot(ctx context.Context) ([]byte, error)
}

// Store combines the durable experience ledger with the derived knowledge
// aggregate. Append is the only mutation path and is acknowledged only after
// the ledger write commits.
type Store struct {
	repo      storage.ExperienceRepository
	snapshots SnapshotStore
	proj      Projection
	log       *slog.Logger

	appendMu sync.Mutex // serializes the ledger-write + aggregate-apply pair
	baseMu   sync.RWMutex
	base     *Base

	appends  atomic.Int64
	degraded atomic.Bool
}

// NewStore creates a knowledge store over the given ledger repository.
// snapshots may be nil.
func NewStore(
	repo storage.ExperienceRepository,
	snapshots SnapshotStore,
	proj Projection,
	log *slog.Logger,
) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		repo:      repo,
		snapshots: snapshots,
		proj:      proj,
		log:       log,
		base:      NewBase(),
	}
}

// Bucket computes the configured context bucket for an event.
func (s *Store) Bucket(ev *domain.FailureEvent) string {
	return s.proj.Bucket(ev)
}

// Append durably writes one ledger record, then folds it into the aggregate.
// A non-nil return means the record was not acknowledged and may be lost.
func (s *Store) Append(ctx context.Context, rec *domain.ExperienceRecord) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if err := s.repo.Append(ctx, rec); err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}
	s.currentBase().Apply(rec)

	if n := s.appends.Add(1); s.snapshots != nil && n%snapshotEvery == 0 {
		s.saveSnapshot(ctx)
	}
	return nil
}

// StatsFor returns learned stats for one (kind, bucket, strategy). When the
// store is degraded (unreadable ledger) it reports nothing, so ranking falls
// back to static priors.
func (s *Store) StatsFor(
	kind domain.FailureKind,
	bucket, strategyID string,
) (domain.StrategyStats, bool) {
	if s.degraded.Load() {
		return domain.StrategyStats{}, false
	}
	return s.currentBase().StatsFor(kind, bucket, strategyID)
}

// Stats returns all strategy stats for a (kind, bucket).
func (s *Store) Stats(kind domain.FailureKind, bucket string) map[string]domain.StrategyStats {
	if s.degraded.Load() {
		return nil
	}
	return s.currentBase().Stats(kind, bucket)
}

// Each visits the whole aggregate in deterministic order.
func (s *Store) Each(fn func(kind domain.FailureKind, bucket, strategyID string, st domain.StrategyStats)) {
	s.currentBase().Each(fn)
}

// Degraded reports whether learned ranking is unavailable.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// Count returns the number of ledger records.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Load initializes the aggregate on startup: first from the snapshot cache,
// then by full ledger replay when the snapshot is missing, corrupt, or stale.
// An unreadable ledger degrades ranking to static priors; it never crashes.
func (s *Store) Load(ctx context.Context) {
	if s.snapshots != nil && s.loadSnapshot(ctx) {
		return
	}

	if err := s.Rebuild(ctx); err != nil {
		s.log.Error("Ledger replay failed, degrading to static priors", "error", err)
	}
}

// loadSnapshot tries to initialize the aggregate from the snapshot cache.
// The snapshot only counts when it covers every acknowledged ledger record;
// a save cadence of one per snapshotEvery appends means a crash can leave it
// behind the ledger, and a stale snapshot must lose to replay.
func (s *Store) loadSnapshot(ctx context.Context) bool {
	data, err := s.snapshots.LoadSnapshot(ctx)
	if err != nil {
		s.log.Warn("Failed to load knowledge snapshot", "error", err)
		return false
	}
	if data == nil {
		return false
	}

	restored := NewBase()
	if err := restored.RestoreSnapshot(data); err != nil {
		s.log.Warn("Corrupt knowledge snapshot, replaying ledger", "error", err)
		return false
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		s.log.Warn("Failed to count ledger records, replaying ledger", "error", err)
		return false
	}
	if restored.TotalAttempts() != count {
		s.log.Info("Knowledge snapshot out of step with ledger, replaying",
			"snapshot_records", restored.TotalAttempts(),
			"ledger_records", count,
		)
		return false
	}

	s.swapBase(restored)
	s.appends.Store(int64(count))
	s.log.Info("Knowledge base restored from snapshot", "entries", restored.Len())
	return true
}

// Rebuild recomputes the aggregate from the full ledger. On success the
// rebuilt aggregate replaces the current one and clears any degraded state.
func (s *Store) Rebuild(ctx context.Context) error {
	fresh := NewBase()
	err := s.repo.Replay(ctx, func(rec *domain.ExperienceRecord) error {
		if !rec.Kind.Valid() {
			return fmt.Errorf("ledger record %d has invalid kind %q", rec.Seq, rec.Kind)
		}
		fresh.Apply(rec)
		return nil
	})
	if err != nil {
		s.degraded.Store(true)
		return fmt.Errorf("ledger replay: %w", err)
	}

	s.swapBase(fresh)
	s.degraded.Store(false)
	return nil
}

// Flush persists a snapshot of the aggregate, used on shutdown.
func (s *Store) Flush(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	s.saveSnapshot(ctx)
}

func (s *Store) saveSnapshot(ctx context.Context) {
	data, err := s.currentBase().MarshalSnapshot()
	if err != nil {
		s.log.Warn("Failed to marshal knowledge snapshot", "error", err)
		return
	}
	if err := s.snapshots.SaveSnapshot(ctx, data); err != nil {
		s.log.Warn("Failed to save knowledge snapshot", "error", err)
	}
}

func (s *Store) currentBase() *Base {
	s.baseMu.RLock()
	defer s.baseMu.RUnlock()
	return s.base
}

func (s *Store) swapBase(b *Base) {
	s.baseMu.Lock()
	s.base = b
	s.baseMu.Unlock()
}
