package memory

import (
	"context"
	"testing"

	"selfmend/internal/core/domain"
)

func TestAppendAssignsMonotonicSeq(t *testing.T) {
	repo := NewExperienceRepo()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		rec := &domain.ExperienceRecord{EventID: "ev", Kind: domain.KindCapacity, StrategyID: "x"}
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if rec.Seq != int64(i) {
			t.Errorf("Expected seq %d, got %d", i, rec.Seq)
		}
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Expected 5 records, got %d", n)
	}
}

func TestReplayPreservesAppendOrder(t *testing.T) {
	repo := NewExperienceRepo()
	ctx := context.Background()

	strategies := []string{"a", "b", "c", "d"}
	for _, id := range strategies {
		rec := &domain.ExperienceRecord{EventID: "ev", Kind: domain.KindUnknown, StrategyID: id}
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	var seen []string
	err := repo.Replay(ctx, func(rec *domain.ExperienceRecord) error {
		seen = append(seen, rec.StrategyID)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	for i, id := range strategies {
		if seen[i] != id {
			t.Errorf("Replay position %d: got %s, want %s", i, seen[i], id)
		}
	}
}

func TestReplayStopsOnCallbackError(t *testing.T) {
	repo := NewExperienceRepo()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		rec := &domain.ExperienceRecord{EventID: "ev", Kind: domain.KindCapacity, StrategyID: "x"}
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	calls := 0
	err := repo.Replay(ctx, func(rec *domain.ExperienceRecord) error {
		calls++
		if calls == 2 {
			return context.Canceled
		}
		return nil
	})
	if err == nil {
		t.Fatal("Expected replay to surface callback error")
	}
	if calls != 2 {
		t.Errorf("Expected replay to stop after 2 calls, got %d", calls)
	}
}

func TestStoredRecordsAreCopies(t *testing.T) {
	repo := NewExperienceRepo()
	ctx := context.Background()

	rec := &domain.ExperienceRecord{EventID: "ev", Kind: domain.KindCapacity, StrategyID: "x"}
	if err := repo.Append(ctx, rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	rec.StrategyID = "mutated"

	_ = repo.Replay(ctx, func(stored *domain.ExperienceRecord) error {
		if stored.StrategyID != "x" {
			t.Errorf("Stored record aliased caller memory: %s", stored.StrategyID)
		}
		return nil
	})
}
