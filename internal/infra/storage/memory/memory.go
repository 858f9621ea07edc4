package memory

import (
	"context"
	"sync"

	"selfmend/internal/core/domain"
)

// ExperienceRepo implements storage.ExperienceRepository in memory.
// Used when no database is configured, and in tests.
type ExperienceRepo struct {
	mu      sync.Mutex
	records []domain.ExperienceRecord
	nextSeq int64
}

// NewExperienceRepo creates an in-memory experience ledger.
func NewExperienceRepo() *ExperienceRepo {
	return &ExperienceRepo{nextSeq: 1}
}

// Append stores a copy of the record and assigns its sequence number.
func (r *ExperienceRepo) Append(ctx context.Context, rec *domain.ExperienceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Seq = r.nextSeq
	r.nextSeq++
	r.records = append(r.records, *rec)
	return nil
}

// Replay iterates records in append order.
func (r *ExperienceRepo) Replay(
	ctx context.Context,
	fn func(*domain.ExperienceRecord) error,
) error {
	r.mu.Lock()
	snapshot := make([]domain.ExperienceRecord, len(r.records))
	copy(snapshot, r.records)
	r.mu.Unlock()

	for i := range snapshot {
		if err := fn(&snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of ledger records.
func (r *ExperienceRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records), nil
}
