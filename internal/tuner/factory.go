// Package tuner builds search strategies by name and wraps them for use by
// concurrent callers.
package tuner

import (
	"go.uber.org/zap"

	"github.com/copyleftdev/hptune/internal/optimization"
	"github.com/copyleftdev/hptune/internal/optimization/flaml"
	"github.com/copyleftdev/hptune/internal/optimization/random"
	"github.com/copyleftdev/hptune/internal/optimization/space"
	"github.com/copyleftdev/hptune/internal/optimization/tpe"
)

// Settings selects and configures a strategy. Start from DefaultSettings;
// the zero value maximizes and disables the TPE startup phase.
type Settings struct {
	Strategy optimization.Strategy
	Seed     uint64
	Minimize bool

	// StartupTrials and Candidates apply to TPE.
	StartupTrials int
	Candidates    int

	// MaxLocalThreads applies to BlendSearch.
	MaxLocalThreads int
}

// DefaultSettings returns the settings of a minimizing TPE tuner.
func DefaultSettings() Settings {
	return Settings{
		Strategy:        optimization.StrategyTPE,
		Minimize:        true,
		StartupTrials:   tpe.DefaultStartupTrials,
		Candidates:      tpe.DefaultCandidates,
		MaxLocalThreads: 1,
	}
}

// New returns the strategy named by settings over s, seeded with
// settings.Seed.
func New(s *space.Space, settings Settings, logger *zap.Logger) (optimization.Tuner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := random.New(settings.Seed)

	switch settings.Strategy {
	case optimization.StrategyTPE:
		return tpe.New(s, rng,
			tpe.WithMinimize(settings.Minimize),
			tpe.WithStartupTrials(settings.StartupTrials),
			tpe.WithCandidates(settings.Candidates),
			tpe.WithLogger(logger),
		), nil
	case optimization.StrategyLocalSearch:
		return flaml.NewLocalSearch(s, rng,
			flaml.WithMinimize(settings.Minimize),
			flaml.WithLogger(logger),
		), nil
	case optimization.StrategyBlendSearch:
		return flaml.NewBlendSearch(s, rng,
			flaml.WithMinimize(settings.Minimize),
			flaml.WithMaxLocalThreads(settings.MaxLocalThreads),
			flaml.WithLogger(logger),
		), nil
	}
	return nil, optimization.WrapErrorf(optimization.ErrUnknownStrategy, "%q", settings.Strategy).
		WithOperation("New").
		WithComponent("tuner")
}
