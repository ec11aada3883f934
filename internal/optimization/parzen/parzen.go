// Package parzen builds the adaptive Parzen density estimates used by TPE:
// a Gaussian mixture over numeric observations and a smoothed histogram over
// categorical ones. Observations are expected in arrival order, oldest
// first; the linear forgetting schedule down-weights the oldest ones.
package parzen

import (
	"math"

	"github.com/copyleftdev/hptune/internal/optimization/kernels"
	"github.com/copyleftdev/hptune/internal/optimization/vecmath"
)

const (
	// PriorWeight is the weight of the prior component or per-bin smoothing.
	PriorWeight = 1.0
	// ForgettingWindow is the number of most recent observations that keep
	// full weight.
	ForgettingWindow = 25
)

// LinearForgettingWeights returns the weights of n observations ordered
// oldest first. Up to ForgettingWindow observations all weigh 1; beyond
// that the oldest n-ForgettingWindow ramp linearly from 1/n up to 1.
func LinearForgettingWeights(n int) []float64 {
	weights := vecmath.Fill(n, 1)
	ramp := n - ForgettingWindow
	if ramp <= 0 {
		return weights
	}
	start := 1.0 / float64(n)
	if ramp == 1 {
		weights[0] = start
		return weights
	}
	for i := 0; i < ramp; i++ {
		weights[i] = start + (1.0-start)/float64(ramp-1)*float64(i)
	}
	return weights
}

// Numeric builds the mixture over observed values mus with a prior
// component centered on priorMu with width priorSigma.
//
// Each observation becomes a component whose sigma is the larger gap to
// its sorted neighbours, clipped into [priorSigma/min(100, n+2), priorSigma].
// The prior component always keeps sigma priorSigma and weight PriorWeight
// before normalization.
func Numeric(mus []float64, priorMu, priorSigma float64) kernels.Mixture {
	order := vecmath.ArgSort(mus)
	sorted := vecmath.Index(mus, order)
	priorPos := vecmath.SearchSorted(sorted, priorMu)
	sorted = vecmath.Insert(sorted, priorPos, priorMu)

	n := len(mus)
	sigma := make([]float64, n+1)
	switch n {
	case 0:
		sigma[0] = priorSigma
	case 1:
		sigma[priorPos] = priorSigma
		sigma[1-priorPos] = priorSigma * 0.5
	default:
		sigma[0] = sorted[1] - sorted[0]
		sigma[n] = sorted[n] - sorted[n-1]
		for i := 1; i < n; i++ {
			sigma[i] = math.Max(sorted[i]-sorted[i-1], sorted[i+1]-sorted[i])
		}
	}

	minSigma := priorSigma / math.Min(100, float64(n+2))
	sigma = vecmath.Clip(sigma, minSigma, priorSigma)
	sigma[priorPos] = priorSigma

	var weights []float64
	if n > ForgettingWindow {
		weights = vecmath.Index(LinearForgettingWeights(n), order)
	} else {
		weights = vecmath.Fill(n, 1)
	}
	weights = vecmath.Insert(weights, priorPos, PriorWeight)

	return kernels.Mixture{
		Weights: vecmath.NormalizeToSumOne(weights),
		Means:   sorted,
		Sigmas:  sigma,
	}
}

// Categorical returns the smoothed probability of each of size outcomes
// given the observed choice indices.
func Categorical(obs []float64, size int) []float64 {
	weights := LinearForgettingWeights(len(obs))
	counts := make([]float64, size)
	for i, x := range obs {
		counts[int(x)] += weights[i]
	}
	return vecmath.NormalizeToSumOne(vecmath.AddScalar(counts, PriorWeight))
}
