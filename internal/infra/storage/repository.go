package storage

import (
	"context"

	"selfmend/internal/core/domain"
)

// ExperienceRepository persists the append-only outcome ledger.
// Append is the only mutation; a successful return means the record is
// durable. Replay yields records in append order so per-event ordering
// is preserved.
type ExperienceRepository interface {
	// Append durably stores a record and fills in its sequence number.
	Append(ctx context.Context, rec *domain.ExperienceRecord) error

	// Replay iterates the full ledger in append order.
	Replay(ctx context.Context, fn func(*domain.ExperienceRecord) error) error

	// Count returns the number of ledger records.
	Count(ctx context.Context) (int, error)
}
