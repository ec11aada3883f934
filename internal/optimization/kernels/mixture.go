// Package kernels evaluates the one dimensional Gaussian mixtures that the
// Parzen estimators produce: component CDFs, in-bounds mass, normal and
// lognormal log densities, and truncated sampling.
package kernels

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/hptune/internal/optimization/random"
)

// Eps floors standard deviations and probability masses so that densities
// never divide by zero or take log(0).
const Eps = 1e-12

// Mixture is a weighted sum of normal components. Weights sum to one.
type Mixture struct {
	Weights []float64
	Means   []float64
	Sigmas  []float64
}

// Len returns the number of components.
func (m Mixture) Len() int {
	return len(m.Weights)
}

func (m Mixture) component(i int) distuv.Normal {
	return distuv.Normal{Mu: m.Means[i], Sigma: math.Max(m.Sigmas[i], Eps)}
}

// CDF returns the weighted mixture CDF at x.
func (m Mixture) CDF(x float64) float64 {
	p := 0.0
	for i, w := range m.Weights {
		p += w * m.component(i).CDF(x)
	}
	return p
}

// Mass returns the probability the mixture assigns to [low, high].
func (m Mixture) Mass(low, high float64) float64 {
	return m.CDF(high) - m.CDF(low)
}

// NormalLogPDF returns the log density of the mixture at x, renormalized by
// accept, the in-bounds mass of the truncated mixture.
func (m Mixture) NormalLogPDF(x, accept float64) float64 {
	terms := make([]float64, m.Len())
	for i, w := range m.Weights {
		terms[i] = m.component(i).LogProb(x) + math.Log(w)
	}
	return floats.LogSumExp(terms) - math.Log(math.Max(accept, Eps))
}

// LognormalLogPDF returns the log density at x > 0 of the mixture taken as
// a distribution over log(x), renormalized by accept.
func (m Mixture) LognormalLogPDF(x, accept float64) float64 {
	terms := make([]float64, m.Len())
	for i, w := range m.Weights {
		ln := distuv.LogNormal{Mu: m.Means[i], Sigma: math.Max(m.Sigmas[i], Eps)}
		terms[i] = ln.LogProb(x) + math.Log(w)
	}
	return floats.LogSumExp(terms) - math.Log(math.Max(accept, Eps))
}

// Sample draws from the mixture truncated to [low, high): it picks a
// component by weight, draws from it and redraws whenever the value falls
// outside the interval.
func (m Mixture) Sample(rng *random.Source, low, high float64) float64 {
	for {
		i := rng.Categorical(m.Weights)
		x := rng.Normal(m.Means[i], m.Sigmas[i])
		if x >= low && x < high {
			return x
		}
	}
}
