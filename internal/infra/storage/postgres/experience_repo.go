package postgres

import (
	"context"
	"fmt"
	"time"

	"selfmend/internal/core/domain"
)

// ExperienceRepo implements storage.ExperienceRepository using PostgreSQL.
type ExperienceRepo struct {
	db *DB
}

// NewExperienceRepo creates a new PostgreSQL experience ledger repository.
func NewExperienceRepo(db *DB) *ExperienceRepo {
	return &ExperienceRepo{db: db}
}

type experienceRow struct {
	Seq        int64     `db:"seq"`
	EventID    string    `db:"event_id"`
	Kind       string    `db:"kind"`
	Bucket     string    `db:"bucket"`
	StrategyID string    `db:"strategy_id"`
	Success    bool      `db:"success"`
	LatencyMs  int64     `db:"latency_ms"`
	CreatedAt  time.Time `db:"created_at"`
}

// Append inserts a ledger record. The insert commits before returning, so
// an acknowledged record survives a crash.
func (r *ExperienceRepo) Append(ctx context.Context, rec *domain.ExperienceRecord) error {
	query := `
		INSERT INTO experience_records (event_id, kind, bucket, strategy_id, success, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`
	err := r.db.QueryRowxContext(
		ctx,
		query,
		rec.EventID,
		string(rec.Kind),
		rec.Bucket,
		rec.StrategyID,
		rec.Success,
		rec.Latency.Milliseconds(),
		rec.Timestamp,
	).Scan(&rec.Seq)
	if err != nil {
		return fmt.Errorf("failed to append experience record: %w", err)
	}
	return nil
}

// Replay streams the full ledger in append order.
func (r *ExperienceRepo) Replay(
	ctx context.Context,
	fn func(*domain.ExperienceRecord) error,
) error {
	query := `
		SELECT seq, event_id, kind, bucket, strategy_id, success, latency_ms, created_at
		FROM experience_records
		ORDER BY seq ASC
	`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to replay ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row experienceRow
		if err := rows.StructScan(&row); err != nil {
			return fmt.Errorf("failed to scan ledger row: %w", err)
		}
		rec := &domain.ExperienceRecord{
			Seq:        row.Seq,
			EventID:    row.EventID,
			Kind:       domain.FailureKind(row.Kind),
			Bucket:     row.Bucket,
			StrategyID: row.StrategyID,
			Success:    row.Success,
			Latency:    time.Duration(row.LatencyMs) * time.Millisecond,
			Timestamp:  row.CreatedAt,
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of ledger records.
func (r *ExperienceRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM experience_records`)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger records: %w", err)
	}
	return count, nil
}
