package flaml

import (
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/copyleftdev/hptune/internal/optimization"
	"github.com/copyleftdev/hptune/internal/optimization/random"
	"github.com/copyleftdev/hptune/internal/optimization/space"
	"github.com/copyleftdev/hptune/internal/optimization/vecmath"
)

const (
	initialStepScale      = 0.1
	defaultStepLowerBound = 1e-4

	localSearchComponent = "localsearch"
)

type proposal struct {
	config     space.Configuration
	generation int
}

// LocalSearch is a randomized direct search around a single incumbent
// (Flow2). Each proposal moves the incumbent by a random direction of
// length Step on the unit sphere, undoing the previous direction first.
// The step grows after improvements and shrinks once the neighbourhood of
// the incumbent has been sampled without success.
//
// LocalSearch is not safe for concurrent use.
type LocalSearch struct {
	space    *space.Space
	rng      *random.Source
	minimize bool
	logger   *zap.Logger

	dim       int
	step      float64
	stepUpper float64

	incumbent     []float64
	generation    int
	bestConfig    space.Configuration
	bestObj       float64
	hasBest       bool
	costIncumbent float64

	direction    []float64
	numAllowed   int
	numComplete  int
	costComplete float64

	k              int
	oldK           int
	iterBestConfig int
	trialCount     int

	proposals map[int]proposal
}

// NewLocalSearch returns a local search over s starting from the initial
// configuration of the space.
func NewLocalSearch(s *space.Space, rng *random.Source, opts ...Option) *LocalSearch {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newLocalSearch(s, rng, s.InitialConfiguration(), cfg.minimize, cfg.logger.Named(localSearchComponent))
}

func newLocalSearch(s *space.Space, rng *random.Source, start space.Configuration, minimize bool, logger *zap.Logger) *LocalSearch {
	dim := dimension(s)
	ls := &LocalSearch{
		space:          s,
		rng:            rng,
		minimize:       minimize,
		logger:         logger,
		dim:            dim,
		stepUpper:      math.Sqrt(float64(dim)),
		bestConfig:     start.Clone(),
		incumbent:      encode(s, start),
		numAllowed:     2 * dim,
		iterBestConfig: 1,
		trialCount:     1,
		proposals:      make(map[int]proposal),
	}
	ls.step = math.Min(initialStepScale*math.Sqrt(float64(dim)), ls.stepUpper)
	return ls
}

// seed makes start, already evaluated at obj for cost, the incumbent.
func (ls *LocalSearch) seed(obj, cost float64) {
	ls.bestObj = obj
	ls.hasBest = true
	ls.costIncumbent = cost
}

// GenerateParameters proposes the configuration for trialID.
func (ls *LocalSearch) GenerateParameters(trialID int) (optimization.Parameters, error) {
	if _, ok := ls.proposals[trialID]; ok {
		return nil, optimization.TrialExists(localSearchComponent, trialID)
	}
	return ls.space.Format(ls.suggest(trialID)), nil
}

func (ls *LocalSearch) suggest(trialID int) space.Configuration {
	ls.numAllowed--

	move := slices.Clone(ls.incumbent)
	if ls.direction != nil {
		move = vecmath.Sub(move, ls.direction)
	}
	ls.direction = ls.sphere()
	move = vecmath.Clip(vecmath.Add(move, ls.direction), 0, 1)

	cfg := decode(ls.space, move)
	ls.proposals[trialID] = proposal{config: cfg, generation: ls.generation}

	ls.logger.Debug("proposed configuration",
		zap.Int("trial_id", trialID),
		zap.Float64("step", ls.step),
		zap.Int("num_allowed", ls.numAllowed),
	)
	return cfg
}

// sphere draws a direction uniformly on the sphere of radius step.
func (ls *LocalSearch) sphere() []float64 {
	v := ls.rng.NormalVector(0, 1, ls.dim)
	return vecmath.Scale(v, ls.step/vecmath.Norm(v))
}

// ReceiveTrialResult records the outcome of trialID. A strictly better loss
// moves the incumbent to the trial's configuration. Results of proposals
// made against an earlier incumbent are otherwise ignored.
func (ls *LocalSearch) ReceiveTrialResult(trialID int, loss, cost float64) error {
	p, ok := ls.proposals[trialID]
	if !ok {
		return optimization.NoSuchTrial(localSearchComponent, trialID)
	}
	delete(ls.proposals, trialID)
	if !ls.minimize {
		loss = -loss
	}
	ls.trialCount++

	if !ls.hasBest || loss < ls.bestObj {
		ls.adopt(p.config, loss, cost)
		return nil
	}
	if p.generation != ls.generation {
		ls.logger.Debug("ignored stale result", zap.Int("trial_id", trialID))
		return nil
	}

	ls.numComplete++
	ls.costComplete += cost
	if ls.numComplete >= 2*ls.dim && ls.numAllowed == 0 {
		ls.numAllowed = 2
	}
	if ls.numComplete == ls.neighbourhood() {
		if ls.step >= ls.StepLowerBound() {
			if ls.k != 0 {
				ls.oldK = ls.k
			} else {
				ls.oldK = ls.iterBestConfig
			}
			ls.k = ls.trialCount + 1
			ls.step *= math.Sqrt(float64(ls.oldK) / float64(ls.k))
			ls.logger.Debug("shrank step", zap.Float64("step", ls.step), zap.Int("k", ls.k))
		}
		ls.numComplete -= 2
		ls.numAllowed = max(ls.numAllowed, 2)
	}
	return nil
}

func (ls *LocalSearch) adopt(cfg space.Configuration, obj, cost float64) {
	ls.seed(obj, cost)
	ls.bestConfig = cfg
	ls.incumbent = encode(ls.space, cfg)
	ls.generation++
	ls.numComplete = 0
	ls.costComplete = 0
	ls.numAllowed = 2 * ls.dim
	if ls.k > 0 {
		ls.step *= math.Sqrt(float64(ls.k) / float64(ls.oldK))
	}
	ls.step = math.Min(ls.step, ls.stepUpper)
	ls.iterBestConfig = ls.trialCount

	ls.logger.Debug("moved incumbent",
		zap.Float64("objective", obj),
		zap.Float64("step", ls.step),
	)
}

// neighbourhood is the number of unsuccessful results after which the step
// shrinks.
func (ls *LocalSearch) neighbourhood() int {
	return 1 << min(ls.dim, 62)
}

// StepLowerBound is the smallest step worth shrinking below. A domain that
// is both integer and log scaled bounds it by one unit of resolution at the
// incumbent's value.
func (ls *LocalSearch) StepLowerBound() float64 {
	for i, d := range ls.space.Domains() {
		if d.IsInteger && d.IsLog {
			x := math.Log(1+1/ls.bestConfig.Values[i]) / (d.High - d.Low)
			return x * math.Sqrt(float64(ls.dim))
		}
	}
	return defaultStepLowerBound
}

// Converged reports whether the step has shrunk below StepLowerBound.
func (ls *LocalSearch) Converged() bool {
	return ls.step < ls.StepLowerBound()
}

// Dim returns the length of the normalized search vector.
func (ls *LocalSearch) Dim() int { return ls.dim }

// Step returns the current step length.
func (ls *LocalSearch) Step() float64 { return ls.step }

// StepUpperBound returns sqrt(Dim).
func (ls *LocalSearch) StepUpperBound() float64 { return ls.stepUpper }

// Incumbent returns a copy of the normalized incumbent.
func (ls *LocalSearch) Incumbent() []float64 { return slices.Clone(ls.incumbent) }

// BestConfiguration returns the configuration of the incumbent.
func (ls *LocalSearch) BestConfiguration() space.Configuration { return ls.bestConfig.Clone() }

// BestObjective returns the internal loss of the incumbent, if any.
func (ls *LocalSearch) BestObjective() (float64, bool) { return ls.bestObj, ls.hasBest }

// CostIncumbent returns the cost of the trial that produced the incumbent.
func (ls *LocalSearch) CostIncumbent() float64 { return ls.costIncumbent }

// NumAllowed returns how many proposals remain against the incumbent.
func (ls *LocalSearch) NumAllowed() int { return ls.numAllowed }

// NumComplete returns how many results failed to improve on the incumbent.
func (ls *LocalSearch) NumComplete() int { return ls.numComplete }
