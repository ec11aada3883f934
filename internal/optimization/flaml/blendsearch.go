// Package flaml implements cost-aware local search tuners: LocalSearch, a
// randomized direct search around an incumbent, and BlendSearch, a pool of
// search threads that starts from a cold-start configuration and forks local
// searches from its results.
package flaml

import (
	"slices"

	"go.uber.org/zap"

	"github.com/copyleftdev/hptune/internal/optimization"
	"github.com/copyleftdev/hptune/internal/optimization/random"
	"github.com/copyleftdev/hptune/internal/optimization/space"
)

const blendSearchComponent = "blendsearch"

// BlendSearch orchestrates a pool of search threads. Thread 0 proposes the
// initial configuration; its first result forks a LocalSearch seeded there,
// and later proposals are routed to the fastest local thread.
//
// BlendSearch is not safe for concurrent use.
type BlendSearch struct {
	space    *space.Space
	rng      *random.Source
	minimize bool
	maxLocal int
	logger   *zap.Logger

	initial space.Configuration
	threads []*SearchThread

	proposedBy map[int]int
	configs    map[int]space.Configuration
	seeds      map[int]bool

	regionMin []float64
	regionMax []float64
}

// NewBlendSearch returns a thread pool over s holding only the cold-start
// thread.
func NewBlendSearch(s *space.Space, rng *random.Source, opts ...Option) *BlendSearch {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &BlendSearch{
		space:      s,
		rng:        rng,
		minimize:   cfg.minimize,
		maxLocal:   cfg.maxLocalThreads,
		logger:     cfg.logger.Named(blendSearchComponent),
		initial:    s.InitialConfiguration(),
		threads:    []*SearchThread{newSearchThread(0, nil)},
		proposedBy: make(map[int]int),
		configs:    make(map[int]space.Configuration),
		seeds:      make(map[int]bool),
	}
	b.regionMin = encode(s, b.initial)
	b.regionMax = slices.Clone(b.regionMin)
	return b
}

// GenerateParameters proposes the configuration for trialID.
func (b *BlendSearch) GenerateParameters(trialID int) (optimization.Parameters, error) {
	if _, ok := b.proposedBy[trialID]; ok {
		return nil, optimization.TrialExists(blendSearchComponent, trialID)
	}

	var cfg space.Configuration
	threadID := 0
	switch {
	case b.numLocal() == 0:
		cfg = b.initial.Clone()
	case b.wantsSeed():
		cfg = b.sampleRegion()
		b.seeds[trialID] = true
	default:
		threadID = b.route()
		cfg = b.threads[threadID].search.suggest(trialID)
	}

	b.proposedBy[trialID] = threadID
	b.configs[trialID] = cfg
	b.expandRegion(cfg)

	b.logger.Debug("proposed configuration",
		zap.Int("trial_id", trialID),
		zap.Int("thread_id", threadID),
	)
	return b.space.Format(cfg), nil
}

// ReceiveTrialResult routes the result of trialID to the thread that
// proposed it. The first cold-start result, and the result of every later
// seed proposal, forks a new local search thread while the pool has room.
func (b *BlendSearch) ReceiveTrialResult(trialID int, loss, cost float64) error {
	threadID, ok := b.proposedBy[trialID]
	if !ok {
		return optimization.NoSuchTrial(blendSearchComponent, trialID)
	}
	cfg, seed := b.configs[trialID], b.seeds[trialID]
	delete(b.proposedBy, trialID)
	delete(b.configs, trialID)
	delete(b.seeds, trialID)

	if !b.minimize {
		loss = -loss
	}
	if err := b.threads[threadID].onTrialComplete(trialID, loss, cost); err != nil {
		return optimization.WrapError(err, "route result").
			WithOperation("ReceiveTrialResult").
			WithComponent(blendSearchComponent)
	}

	if threadID == 0 && (b.numLocal() == 0 || seed) && b.numLocal() < b.maxLocal {
		b.fork(cfg, loss, cost)
	}
	return nil
}

func (b *BlendSearch) fork(cfg space.Configuration, obj, cost float64) {
	id := len(b.threads)
	logger := b.logger.Named(localSearchComponent).With(zap.Int("thread_id", id))
	ls := newLocalSearch(b.space, b.rng, cfg, true, logger)
	ls.seed(obj, cost)
	b.threads = append(b.threads, newSearchThread(id, ls))
	b.expandRegion(cfg)

	b.logger.Debug("forked local search thread",
		zap.Int("thread_id", id),
		zap.Float64("objective", obj),
	)
}

func (b *BlendSearch) numLocal() int {
	return len(b.threads) - 1
}

// wantsSeed reports whether thread 0 should propose a new starting point:
// every local thread has converged, the pool has room and no cold-start
// trial is already in flight.
func (b *BlendSearch) wantsSeed() bool {
	if b.numLocal() >= b.maxLocal {
		return false
	}
	for _, t := range b.threads[1:] {
		if !t.search.Converged() {
			return false
		}
	}
	for _, id := range b.proposedBy {
		if id == 0 {
			return false
		}
	}
	return true
}

// route picks the local thread with the highest speed, lowest id first.
// Converged threads are only chosen when no other thread is left.
func (b *BlendSearch) route() int {
	best := -1
	for id := 1; id < len(b.threads); id++ {
		t := b.threads[id]
		if t.search.Converged() {
			continue
		}
		if best < 0 || t.speed > b.threads[best].speed {
			best = id
		}
	}
	if best >= 0 {
		return best
	}
	best = 1
	for id := 2; id < len(b.threads); id++ {
		if b.threads[id].speed > b.threads[best].speed {
			best = id
		}
	}
	return best
}

func (b *BlendSearch) sampleRegion() space.Configuration {
	u := make([]float64, len(b.regionMin))
	for i := range u {
		u[i] = b.rng.Uniform(b.regionMin[i], b.regionMax[i])
	}
	return decode(b.space, u)
}

func (b *BlendSearch) expandRegion(cfg space.Configuration) {
	for i, v := range encode(b.space, cfg) {
		b.regionMin[i] = min(b.regionMin[i], v)
		b.regionMax[i] = max(b.regionMax[i], v)
	}
}

// AdmissibleRegion returns copies of the per-coordinate bounds, in
// normalized space, of every configuration proposed so far.
func (b *BlendSearch) AdmissibleRegion() (lo, hi []float64) {
	return slices.Clone(b.regionMin), slices.Clone(b.regionMax)
}

// Threads returns the pool, cold-start thread first. The slice must not be
// modified.
func (b *BlendSearch) Threads() []*SearchThread {
	return b.threads
}
