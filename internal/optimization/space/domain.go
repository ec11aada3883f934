package space

import (
	"math"

	"github.com/copyleftdev/hptune/internal/optimization/random"
)

// Kind tells how a Domain is represented.
type Kind int

const (
	// Categorical domains take one of an ordered list of string values; the
	// internal value is the choice index.
	Categorical Kind = iota
	// Numeric domains take a value in [low, high], optionally log scaled or
	// restricted to integers.
	Numeric
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Domain is one tunable variable.
type Domain struct {
	// Name is the parameter name inside its algorithm.
	Name string
	// Algorithm is the named sub-collection holding the parameter.
	Algorithm string
	// Group is the name of the mutually exclusive group, empty if the
	// domain is always active.
	Group string
	// Tag uniquely identifies the domain inside its search space.
	Tag string
	// Key names the parameter in formatted output.
	Key string
	// Index is the dense position of the domain in its search space.
	Index int

	Kind Kind

	// Choices holds the categorical values.
	Choices []string

	// Low and High bound numeric values. They are natural logs of the
	// external bounds when IsLog is set.
	Low       float64
	High      float64
	IsLog     bool
	IsInteger bool

	// qLow and qHigh are the smallest and largest whole numbers inside the
	// external bounds of an integer domain.
	qLow  float64
	qHigh float64

	initial    float64
	hasInitial bool

	group int // -1 when ungrouped
}

// Size returns the number of categories, or 0 for numeric domains.
func (d *Domain) Size() int {
	return len(d.Choices)
}

// ExternalLow returns the lower bound on the external scale.
func (d *Domain) ExternalLow() float64 {
	if d.IsLog {
		return math.Exp(d.Low)
	}
	return d.Low
}

// ExternalHigh returns the upper bound on the external scale.
func (d *Domain) ExternalHigh() float64 {
	if d.IsLog {
		return math.Exp(d.High)
	}
	return d.High
}

// InitialValue returns the configured starting value, or the cheapest
// default: the first choice or the lower bound.
func (d *Domain) InitialValue() float64 {
	if d.hasInitial {
		return d.Quantize(d.initial)
	}
	if d.Kind == Categorical {
		return 0
	}
	return d.Quantize(d.ExternalLow())
}

// Normalize maps an internal value into [0, 1].
func (d *Domain) Normalize(v float64) float64 {
	switch {
	case d.Kind == Categorical:
		return (v + 0.5) / float64(d.Size())
	case d.IsLog:
		return (math.Log(v) - d.Low) / (d.High - d.Low)
	default:
		return (v - d.Low) / (d.High - d.Low)
	}
}

// Denormalize maps u in [0, 1] back to an internal value. Categorical
// results are clamped to the last choice so that u == 1 stays valid.
func (d *Domain) Denormalize(u float64) float64 {
	switch {
	case d.Kind == Categorical:
		return math.Min(math.Floor(u*float64(d.Size())), float64(d.Size()-1))
	case d.IsLog:
		return math.Exp(u*(d.High-d.Low) + d.Low)
	default:
		return u*(d.High-d.Low) + d.Low
	}
}

// UniformSample draws a value uniformly over the domain: a random choice
// index, or a uniform draw over [Low, High) mapped back through exp and
// rounding as the domain requires.
func (d *Domain) UniformSample(rng *random.Source) float64 {
	if d.Kind == Categorical {
		return float64(rng.Integer(d.Size()))
	}
	x := rng.Uniform(d.Low, d.High)
	if d.IsLog {
		x = math.Exp(x)
	}
	return d.Quantize(x)
}

// Format converts an internal value to its presentation value.
func (d *Domain) Format(v float64) interface{} {
	switch {
	case d.Kind == Categorical:
		i := int(math.Round(v))
		if i < 0 {
			i = 0
		} else if i >= d.Size() {
			i = d.Size() - 1
		}
		return d.Choices[i]
	case d.IsInteger:
		return int(d.Quantize(v))
	default:
		return v
	}
}

// Contains reports whether the internal value v is valid for the domain.
func (d *Domain) Contains(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if d.Kind == Categorical {
		return v >= 0 && v < float64(d.Size()) && v == math.Trunc(v)
	}
	if d.IsInteger {
		return v >= d.qLow && v <= d.qHigh
	}
	const tol = 1e-9
	lo, hi := d.ExternalLow(), d.ExternalHigh()
	return v >= lo-tol*math.Abs(lo) && v <= hi+tol*math.Abs(hi)
}

// Quantize rounds an external value of an integer domain half to even and
// clamps it to the whole numbers inside the bounds. Other domains return x
// unchanged.
func (d *Domain) Quantize(x float64) float64 {
	if !d.IsInteger {
		return x
	}
	return math.Min(math.Max(math.RoundToEven(x), d.qLow), d.qHigh)
}
