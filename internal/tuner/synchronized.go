package tuner

import (
	"maps"
	"sync"

	"github.com/copyleftdev/hptune/internal/optimization"
)

// Summary describes the trials a Synchronized tuner has handled.
type Summary struct {
	Generated int
	Reported  int
	Running   int
	// BestLoss and BestParameters are set once a result has been reported.
	BestLoss       *float64
	BestParameters optimization.Parameters
}

// Synchronized serializes every call to the wrapped tuner behind one mutex,
// so a generate never observes a half applied result.
type Synchronized struct {
	mu       sync.Mutex
	tuner    optimization.Tuner
	minimize bool

	running   map[int]optimization.Parameters
	generated int
	reported  int
	bestLoss  *float64
	bestParam optimization.Parameters
}

// Synchronize wraps t. minimize tells which reported loss counts as best.
func Synchronize(t optimization.Tuner, minimize bool) *Synchronized {
	return &Synchronized{tuner: t, minimize: minimize, running: make(map[int]optimization.Parameters)}
}

// GenerateParameters implements optimization.Tuner.
func (s *Synchronized) GenerateParameters(trialID int) (optimization.Parameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	params, err := s.tuner.GenerateParameters(trialID)
	if err != nil {
		return nil, err
	}
	s.generated++
	s.running[trialID] = params
	return maps.Clone(params), nil
}

// ReceiveTrialResult implements optimization.Tuner.
func (s *Synchronized) ReceiveTrialResult(trialID int, loss, cost float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tuner.ReceiveTrialResult(trialID, loss, cost); err != nil {
		return err
	}
	s.reported++
	params := s.running[trialID]
	delete(s.running, trialID)

	if s.bestLoss == nil || (s.minimize && loss < *s.bestLoss) || (!s.minimize && loss > *s.bestLoss) {
		l := loss
		s.bestLoss = &l
		s.bestParam = params
	}
	return nil
}

// Summary returns a snapshot of the handled trials.
func (s *Synchronized) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Generated:      s.generated,
		Reported:       s.reported,
		Running:        len(s.running),
		BestParameters: maps.Clone(s.bestParam),
	}
	if s.bestLoss != nil {
		l := *s.bestLoss
		sum.BestLoss = &l
	}
	return sum
}
