package registry

import (
	"sort"
	"sync"

	"selfmend/internal/core/domain"
)

// StatsProvider exposes learned statistics for ranking. When the underlying
// ledger is degraded it reports nothing and ranking uses priors only.
type StatsProvider interface {
	StatsFor(kind domain.FailureKind, bucket, strategyID string) (domain.StrategyStats, bool)
}

// Candidate is a strategy with its ranking score for one query.
type Candidate struct {
	Strategy domain.Strategy
	Score    float64
	Learned  bool
	Attempts int
}

// Registry is the catalog of remediation strategies. Registration is
// last-write-wins by ID; the first-registration sequence is retained so
// tie-breaking stays reproducible across overwrites.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]domain.Strategy
	seq        map[string]int
	nextSeq    int

	stats      StatsProvider
	minSamples int
	maxStep    float64
}

// New creates a registry. stats may be nil (priors-only ranking).
func New(stats StatsProvider, minSamples int, maxStep float64) *Registry {
	if minSamples <= 0 {
		minSamples = 5
	}
	if maxStep <= 0 {
		maxStep = 0.05
	}
	return &Registry{
		strategies: make(map[string]domain.Strategy),
		seq:        make(map[string]int),
		stats:      stats,
		minSamples: minSamples,
		maxStep:    maxStep,
	}
}

// Register adds or overwrites a strategy by ID. New strategies may arrive at
// any time from the tool-building collaborator.
func (r *Registry) Register(s domain.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.seq[s.ID]; !seen {
		r.seq[s.ID] = r.nextSeq
		r.nextSeq++
	}
	s.Prior = clamp01(s.Prior)
	r.strategies[s.ID] = s
}

// Get returns a strategy by ID.
func (r *Registry) Get(id string) (domain.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[id]
	return s, ok
}

// Prior returns the current prior score for a strategy.
func (r *Registry) Prior(id string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[id]
	return s.Prior, ok
}

// BumpPrior moves a strategy's prior by delta. The step is clamped to the
// configured bound and the result stays in [0,1]: priors only ever move in
// bounded increments from learning signals.
func (r *Registry) BumpPrior(id string, delta float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.strategies[id]
	if !ok {
		return
	}
	if delta > r.maxStep {
		delta = r.maxStep
	} else if delta < -r.maxStep {
		delta = -r.maxStep
	}
	s.Prior = clamp01(s.Prior + delta)
	r.strategies[id] = s
}

// Query returns the strategies applicable to kind, ranked best-first.
// A strategy scores by learned success rate once it has at least minSamples
// attempts for this (kind, bucket); otherwise by its static prior. Ties
// break by lower cost, then registration order, so the ranking is
// deterministic and reproducible.
func (r *Registry) Query(kind domain.FailureKind, bucket string) []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]Candidate, 0, len(r.strategies))
	for _, s := range r.strategies {
		if !s.AppliesTo(kind) {
			continue
		}
		c := Candidate{Strategy: s, Score: s.Prior}
		if r.stats != nil {
			if st, ok := r.stats.StatsFor(kind, bucket, s.ID); ok {
				c.Attempts = st.Attempts
				if st.Attempts >= r.minSamples {
					c.Score = st.SuccessRate
					c.Learned = true
				}
			}
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Strategy.Cost != candidates[j].Strategy.Cost {
			return candidates[i].Strategy.Cost < candidates[j].Strategy.Cost
		}
		return r.seq[candidates[i].Strategy.ID] < r.seq[candidates[j].Strategy.ID]
	})
	return candidates
}

// IDs returns all registered strategy IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.seq[ids[i]] < r.seq[ids[j]] })
	return ids
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
