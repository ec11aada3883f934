// Package acquisition scores TPE candidates by the ratio of their density
// under the good (below) and bad (above) observation models.
package acquisition

import (
	"github.com/copyleftdev/hptune/internal/optimization/vecmath"
)

// DensityRatio is the log density ratio log l(x) - log g(x), which is
// monotone in expected improvement under the TPE model.
type DensityRatio struct {
	// Below holds log l(x) for each candidate.
	Below []float64
	// Above holds log g(x) for each candidate.
	Above []float64
}

// Scores returns the acquisition value of every candidate.
func (r DensityRatio) Scores() []float64 {
	return vecmath.Sub(r.Below, r.Above)
}

// Best returns the index of the highest scoring candidate; the earliest
// candidate wins ties.
func (r DensityRatio) Best() int {
	return vecmath.ArgMax(r.Scores())
}

// Select returns the candidate with the best density ratio.
func Select[T any](candidates []T, below, above []float64) T {
	return candidates[DensityRatio{Below: below, Above: above}.Best()]
}
