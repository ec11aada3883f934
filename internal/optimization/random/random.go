// Package random provides the seeded random source threaded through every
// tuner. Draws are deterministic for a given seed and call sequence, so a
// tuner replays bit for bit when it is driven the same way.
package random

import (
	"math"
	"math/rand/v2"
)

// Source is a deterministic pseudo random generator. It is not safe for
// concurrent use; each tuner owns one and advances it sequentially.
type Source struct {
	rng *rand.Rand
}

// New returns a Source seeded with seed.
func New(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Integer returns a uniform integer in [0, bound). It panics if bound <= 0.
func (s *Source) Integer(bound int) int {
	return s.rng.IntN(bound)
}

// Uniform returns a uniform float in [low, high).
func (s *Source) Uniform(low, high float64) float64 {
	return s.rng.Float64()*(high-low) + low
}

// Normal draws from N(mean, std²) with the Box-Muller transform. Each sample
// consumes exactly two uniform draws.
func (s *Source) Normal(mean, std float64) float64 {
	u := 1 - s.Uniform(0, 1)
	v := 1 - s.Uniform(0, 1)
	z := math.Sqrt(-2.0*math.Log(u)) * math.Sin(2.0*math.Pi*v)
	return mean + z*std
}

// NormalVector returns n independent draws from N(mean, std²).
func (s *Source) NormalVector(mean, std float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Normal(mean, std)
	}
	return out
}

// Categorical draws index i with probability proportional to weights[i].
// weights are expected to sum to one; any rounding residual falls on the
// last index.
func (s *Source) Categorical(weights []float64) int {
	x := s.Uniform(0, 1)
	for i, w := range weights {
		x -= w
		if x < 0 {
			return i
		}
	}
	return len(weights) - 1
}

// CategoricalN returns count independent Categorical draws.
func (s *Source) CategoricalN(weights []float64, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = s.Categorical(weights)
	}
	return out
}
