// Package tpe implements the Tree-structured Parzen Estimator tuner.
//
// After a startup phase of uniform random proposals, every parameter is
// proposed by splitting the history into a good and a bad set, fitting an
// adaptive Parzen density to each, drawing candidates from the good density
// and keeping the one with the best density ratio. Trials still in flight
// are fantasized with the best loss seen so far so that concurrent proposals
// spread out.
package tpe

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/copyleftdev/hptune/internal/optimization"
	"github.com/copyleftdev/hptune/internal/optimization/random"
	"github.com/copyleftdev/hptune/internal/optimization/space"
)

const (
	// DefaultStartupTrials is the number of results collected before the
	// density model is used.
	DefaultStartupTrials = 20
	// DefaultCandidates is the number of candidates scored per parameter.
	DefaultCandidates = 24

	component = "tpe"
)

// Option configures a Tuner.
type Option func(*Tuner)

// WithMinimize sets whether lower losses are better (the default).
func WithMinimize(minimize bool) Option {
	return func(t *Tuner) { t.minimize = minimize }
}

// WithStartupTrials overrides DefaultStartupTrials.
func WithStartupTrials(n int) Option {
	return func(t *Tuner) {
		if n >= 0 {
			t.startup = n
		}
	}
}

// WithCandidates overrides DefaultCandidates.
func WithCandidates(n int) Option {
	return func(t *Tuner) {
		if n > 0 {
			t.candidates = n
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tuner) {
		if logger != nil {
			t.logger = logger.Named(component)
		}
	}
}

// Tuner is a TPE tuner. It is not safe for concurrent use.
type Tuner struct {
	space      *space.Space
	rng        *random.Source
	minimize   bool
	startup    int
	candidates int
	logger     *zap.Logger

	history *history
	running map[int]space.Configuration
	lie     float64
}

// New returns a TPE tuner over s drawing from rng.
func New(s *space.Space, rng *random.Source, opts ...Option) *Tuner {
	t := &Tuner{
		space:      s,
		rng:        rng,
		minimize:   true,
		startup:    DefaultStartupTrials,
		candidates: DefaultCandidates,
		logger:     zap.NewNop(),
		history:    newHistory(s),
		running:    make(map[int]space.Configuration),
		lie:        math.Inf(1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GenerateParameters proposes the configuration for trialID.
func (t *Tuner) GenerateParameters(trialID int) (optimization.Parameters, error) {
	if _, ok := t.running[trialID]; ok {
		return nil, optimization.TrialExists(component, trialID)
	}

	var cfg space.Configuration
	switch {
	case t.history.Len() < t.startup:
		cfg = t.randomConfiguration()
		t.logger.Debug("proposed startup configuration",
			zap.Int("trial_id", trialID),
			zap.Int("history", t.history.Len()),
		)
	case len(t.running) > 0:
		cfg = t.suggest(t.fantasize())
		t.logger.Debug("proposed configuration with fantasized trials",
			zap.Int("trial_id", trialID),
			zap.Int("running", len(t.running)),
			zap.Float64("lie", t.lie),
		)
	default:
		cfg = t.suggest(t.history)
		t.logger.Debug("proposed configuration", zap.Int("trial_id", trialID))
	}

	t.running[trialID] = cfg
	return t.space.Format(cfg), nil
}

// ReceiveTrialResult records the loss of trialID. Cost is ignored.
func (t *Tuner) ReceiveTrialResult(trialID int, loss, _ float64) error {
	cfg, ok := t.running[trialID]
	if !ok {
		return optimization.NoSuchTrial(component, trialID)
	}
	if !t.minimize {
		loss = -loss
	}
	delete(t.running, trialID)
	t.lie = math.Min(t.lie, loss)
	t.history.append(Record{TrialID: trialID, Loss: loss, Config: cfg})

	t.logger.Debug("received trial result",
		zap.Int("trial_id", trialID),
		zap.Float64("loss", loss),
		zap.Int("history", t.history.Len()),
	)
	return nil
}

// History returns the resolved trials in arrival order.
func (t *Tuner) History() []Record {
	return append([]Record(nil), t.history.records...)
}

// Running returns the ids of trials awaiting a result, ascending.
func (t *Tuner) Running() []int {
	ids := make([]int, 0, len(t.running))
	for id := range t.running {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Best returns the resolved trial with the lowest internal loss.
func (t *Tuner) Best() (Record, bool) {
	if t.history.Len() == 0 {
		return Record{}, false
	}
	best := t.history.records[0]
	for _, r := range t.history.records[1:] {
		if r.Loss < best.Loss {
			best = r
		}
	}
	return best, true
}

// fantasize returns the history extended with one record per running trial
// carrying the best loss seen so far.
func (t *Tuner) fantasize() *history {
	h := t.history.clone()
	for _, id := range t.Running() {
		h.append(Record{TrialID: id, Loss: t.lie, Config: t.running[id]})
	}
	return h
}

func (t *Tuner) randomConfiguration() space.Configuration {
	cfg := t.space.NewConfiguration(t.rng.Integer(t.space.NumGroups()))
	for _, i := range t.space.Active(cfg.Group) {
		cfg.Values[i] = t.space.Domain(i).UniformSample(t.rng)
	}
	return cfg
}
