package flaml

import "go.uber.org/zap"

type settings struct {
	minimize        bool
	logger          *zap.Logger
	maxLocalThreads int
}

func defaultSettings() settings {
	return settings{minimize: true, logger: zap.NewNop(), maxLocalThreads: 1}
}

// Option configures a LocalSearch or a BlendSearch.
type Option func(*settings)

// WithMinimize sets whether lower losses are better (the default).
func WithMinimize(minimize bool) Option {
	return func(s *settings) { s.minimize = minimize }
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxLocalThreads bounds how many local search threads a BlendSearch
// may fork. The default of one forks a single thread from the first
// cold-start result. Larger values let the cold-start thread propose again
// once every local thread has converged. LocalSearch ignores it.
func WithMaxLocalThreads(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxLocalThreads = n
		}
	}
}
