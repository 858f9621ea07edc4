package knowledge

import (
	"encoding/json"
	"sort"
	"sync"

	"selfmend/internal/core/domain"
)

// confidenceSmoothing controls how fast confidence approaches 1 with sample
// size: confidence = attempts / (attempts + confidenceSmoothing).
const confidenceSmoothing = 5

// Base is the derived knowledge aggregate: per (kind, bucket, strategy)
// success statistics. It is fully recomputable from the experience ledger;
// rates are never edited independently of ledger records.
type Base struct {
	mu    sync.RWMutex
	stats map[statKey]domain.StrategyStats
}

type statKey struct {
	Kind       domain.FailureKind
	Bucket     string
	StrategyID string
}

// NewBase creates an empty knowledge aggregate.
func NewBase() *Base {
	return &Base{stats: make(map[statKey]domain.StrategyStats)}
}

// Apply folds one ledger record into the aggregate.
func (b *Base) Apply(rec *domain.ExperienceRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := statKey{Kind: rec.Kind, Bucket: rec.Bucket, StrategyID: rec.StrategyID}
	st := b.stats[key]
	st.Attempts++
	if rec.Success {
		st.Successes++
	}
	st.SuccessRate = float64(st.Successes) / float64(st.Attempts)
	st.Confidence = float64(st.Attempts) / float64(st.Attempts+confidenceSmoothing)
	b.stats[key] = st
}

// StatsFor returns the stats for one (kind, bucket, strategy).
func (b *Base) StatsFor(
	kind domain.FailureKind,
	bucket, strategyID string,
) (domain.StrategyStats, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.stats[statKey{Kind: kind, Bucket: bucket, StrategyID: strategyID}]
	return st, ok
}

// Stats returns a copy of all strategy stats for a (kind, bucket).
func (b *Base) Stats(kind domain.FailureKind, bucket string) map[string]domain.StrategyStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]domain.StrategyStats)
	for key, st := range b.stats {
		if key.Kind == kind && key.Bucket == bucket {
			out[key.StrategyID] = st
		}
	}
	return out
}

// Each visits every entry in deterministic (sorted) order.
func (b *Base) Each(fn func(kind domain.FailureKind, bucket, strategyID string, st domain.StrategyStats)) {
	b.mu.RLock()
	keys := make([]statKey, 0, len(b.stats))
	for key := range b.stats {
		keys = append(keys, key)
	}
	b.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		if keys[i].Bucket != keys[j].Bucket {
			return keys[i].Bucket < keys[j].Bucket
		}
		return keys[i].StrategyID < keys[j].StrategyID
	})

	for _, key := range keys {
		b.mu.RLock()
		st, ok := b.stats[key]
		b.mu.RUnlock()
		if ok {
			fn(key.Kind, key.Bucket, key.StrategyID, st)
		}
	}
}

// TotalAttempts returns the number of ledger records folded into the
// aggregate. Every record increments exactly one entry's attempt count, so
// this equals the ledger length the aggregate was built from.
func (b *Base) TotalAttempts() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, st := range b.stats {
		total += st.Attempts
	}
	return total
}

// Len returns the number of aggregate entries.
func (b *Base) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.stats)
}

// snapshot is the serialized form: kind -> bucket -> strategy -> stats.
type snapshot map[string]map[string]map[string]domain.StrategyStats

// MarshalSnapshot serializes the aggregate for the snapshot cache.
func (b *Base) MarshalSnapshot() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := make(snapshot)
	for key, st := range b.stats {
		kind := string(key.Kind)
		if snap[kind] == nil {
			snap[kind] = make(map[string]map[string]domain.StrategyStats)
		}
		if snap[kind][key.Bucket] == nil {
			snap[kind][key.Bucket] = make(map[string]domain.StrategyStats)
		}
		snap[kind][key.Bucket][key.StrategyID] = st
	}
	return json.Marshal(snap)
}

// RestoreSnapshot replaces the aggregate with a previously serialized one.
func (b *Base) RestoreSnapshot(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	stats := make(map[statKey]domain.StrategyStats)
	for kind, buckets := range snap {
		for bucket, strategies := range buckets {
			for id, st := range strategies {
				key := statKey{Kind: domain.FailureKind(kind), Bucket: bucket, StrategyID: id}
				stats[key] = st
			}
		}
	}

	b.mu.Lock()
	b.stats = stats
	b.mu.Unlock()
	return nil
}

// Equal reports whether two aggregates hold identical stats.
func (b *Base) Equal(other *Base) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if len(b.stats) != len(other.stats) {
		return false
	}
	for key, st := range b.stats {
		if other.stats[key] != st {
			return false
		}
	}
	return true
}
