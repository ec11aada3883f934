package tpe

import (
	"math"

	"github.com/copyleftdev/hptune/internal/optimization/acquisition"
	"github.com/copyleftdev/hptune/internal/optimization/kernels"
	"github.com/copyleftdev/hptune/internal/optimization/parzen"
	"github.com/copyleftdev/hptune/internal/optimization/space"
	"github.com/copyleftdev/hptune/internal/optimization/vecmath"
)

// suggest draws a full configuration from the density model over h: first
// the group, then every domain active in it.
func (t *Tuner) suggest(h *history) space.Configuration {
	cfg := t.space.NewConfiguration(t.suggestCategorical(h, groupDomain, t.space.NumGroups()))
	for _, i := range t.space.Active(cfg.Group) {
		d := t.space.Domain(i)
		if d.Kind == space.Categorical {
			cfg.Values[i] = float64(t.suggestCategorical(h, i, d.Size()))
		} else {
			cfg.Values[i] = t.suggestNumeric(h, d)
		}
	}
	return cfg
}

func (t *Tuner) suggestCategorical(h *history, domain, size int) int {
	obsBelow, obsAbove := h.split(domain)

	below := parzen.Categorical(obsBelow, size)
	samples := t.rng.CategoricalN(below, t.candidates)
	above := parzen.Categorical(obsAbove, size)

	return acquisition.Select(samples,
		vecmath.Log(vecmath.Index(below, samples)),
		vecmath.Log(vecmath.Index(above, samples)),
	)
}

func (t *Tuner) suggestNumeric(h *history, d *space.Domain) float64 {
	obsBelow, obsAbove := h.split(d.Index)
	if d.IsLog {
		obsBelow = vecmath.Log(obsBelow)
		obsAbove = vecmath.Log(obsAbove)
	}

	priorMu := 0.5 * (d.High + d.Low)
	priorSigma := d.High - d.Low

	below := parzen.Numeric(obsBelow, priorMu, priorSigma)
	samples := make([]float64, t.candidates)
	for i := range samples {
		x := below.Sample(t.rng, d.Low, d.High)
		if d.IsLog {
			x = math.Exp(x)
		}
		samples[i] = d.Quantize(x)
	}
	above := parzen.Numeric(obsAbove, priorMu, priorSigma)

	return acquisition.Select(samples, logDensity(samples, below, d), logDensity(samples, above, d))
}

// logDensity evaluates the truncated mixture m at every sample. Quantized
// domains integrate the mass of the ±0.5 window around each value.
func logDensity(samples []float64, m kernels.Mixture, d *space.Domain) []float64 {
	accept := math.Max(m.Mass(d.Low, d.High), kernels.Eps)

	out := make([]float64, len(samples))
	for i, x := range samples {
		switch {
		case !d.IsInteger && d.IsLog:
			out[i] = m.LognormalLogPDF(x, accept)
		case !d.IsInteger:
			out[i] = m.NormalLogPDF(x, accept)
		default:
			var lb, ub float64
			if d.IsLog {
				ub = math.Log(math.Min(x+0.5, math.Exp(d.High)))
				lb = math.Log(math.Max(x-0.5, math.Exp(d.Low)))
			} else {
				ub = math.Min(x+0.5, d.High)
				lb = math.Max(x-0.5, d.Low)
			}
			out[i] = math.Log(math.Max(m.Mass(lb, ub), kernels.Eps)) - math.Log(accept)
		}
	}
	return out
}
