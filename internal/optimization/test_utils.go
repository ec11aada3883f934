package optimization

import (
	"math"
	"math/rand/v2"
)

// ObjectiveFunction maps a proposed configuration to a loss and a cost. It
// stands in for an external trial in tests and benchmarks.
type ObjectiveFunction func(Parameters) (loss, cost float64)

// SphereObjective returns the squared distance of every numeric parameter to
// its target. Parameters without a target, and categorical parameters, are
// ignored. The cost is constant.
func SphereObjective(target map[string]float64) ObjectiveFunction {
	return func(p Parameters) (float64, float64) {
		sum := 0.0
		for key, want := range target {
			got, ok := numeric(p[key])
			if !ok {
				continue
			}
			sum += (got - want) * (got - want)
		}
		return sum, 1
	}
}

// ChoiceObjective returns 0 when every categorical parameter listed in best
// carries the preferred value and 1 for each miss.
func ChoiceObjective(best map[string]string) ObjectiveFunction {
	return func(p Parameters) (float64, float64) {
		miss := 0.0
		for key, want := range best {
			if got, ok := p[key].(string); !ok || got != want {
				miss++
			}
		}
		return miss, 1
	}
}

// NoisyObjective adds uniform noise in [-scale/2, scale/2) to f.
func NoisyObjective(f ObjectiveFunction, scale float64, seed uint64) ObjectiveFunction {
	rng := rand.New(rand.NewPCG(seed, seed))
	return func(p Parameters) (float64, float64) {
		loss, cost := f(p)
		return loss + scale*(rng.Float64()-0.5), cost
	}
}

func numeric(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return math.NaN(), false
}
