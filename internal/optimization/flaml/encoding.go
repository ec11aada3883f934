package flaml

import (
	"math"

	"github.com/copyleftdev/hptune/internal/optimization/space"
)

// dimension returns the length of the normalized vector: one coordinate per
// domain plus one selecting the group when there is a choice of groups.
func dimension(s *space.Space) int {
	if s.NumGroups() > 1 {
		return s.Len() + 1
	}
	return s.Len()
}

// encode maps a configuration into the unit hypercube. Every domain must
// carry a value, active or not.
func encode(s *space.Space, c space.Configuration) []float64 {
	u := make([]float64, dimension(s))
	for i, d := range s.Domains() {
		u[i] = d.Normalize(c.Values[i])
	}
	if g := s.NumGroups(); g > 1 {
		u[s.Len()] = (float64(c.Group) + 0.5) / float64(g)
	}
	return u
}

// decode maps a point of the unit hypercube back to a configuration.
func decode(s *space.Space, u []float64) space.Configuration {
	c := space.Configuration{Values: make([]float64, s.Len())}
	for i, d := range s.Domains() {
		c.Values[i] = d.Denormalize(u[i])
	}
	if g := s.NumGroups(); g > 1 {
		c.Group = int(math.Min(math.Floor(u[s.Len()]*float64(g)), float64(g-1)))
	}
	return c
}
