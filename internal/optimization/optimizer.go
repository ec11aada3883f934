package optimization

// Tuner is the capability contract shared by every search strategy.
//
// A caller asks for a proposal for a trial id, runs the trial elsewhere and
// reports the outcome. Several trials may be in flight at once, but each id
// must be generated once and resolved once. Implementations are not safe for
// concurrent use; wrap them with tuner.Synchronized when callers race.
type Tuner interface {
	// GenerateParameters proposes the configuration for trialID.
	GenerateParameters(trialID int) (Parameters, error)

	// ReceiveTrialResult reports the loss and cost observed for trialID.
	// Strategies that are not cost aware ignore cost.
	ReceiveTrialResult(trialID int, loss, cost float64) error
}

// Parameters is the externally formatted configuration of one trial, keyed by
// domain key. Values are string for categorical domains, int for integer
// domains and float64 otherwise.
type Parameters map[string]interface{}

// Strategy names a search strategy.
type Strategy string

const (
	// StrategyTPE is the Tree-structured Parzen Estimator.
	StrategyTPE Strategy = "tpe"
	// StrategyLocalSearch is a single randomized local search thread.
	StrategyLocalSearch Strategy = "localsearch"
	// StrategyBlendSearch is the cost-aware local search thread pool.
	StrategyBlendSearch Strategy = "blendsearch"
)

// Valid reports whether s names a supported strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyTPE, StrategyLocalSearch, StrategyBlendSearch:
		return true
	}
	return false
}
