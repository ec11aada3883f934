package tpe

import (
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/copyleftdev/hptune/internal/optimization/space"
	"github.com/copyleftdev/hptune/internal/optimization/vecmath"
)

const (
	// gamma is the fraction, scaled by sqrt(N), of trials modelled as good.
	gamma = 0.25
	// maxBelow caps the size of the good set.
	maxBelow = 25
	// groupDomain selects the synthetic group choice instead of a domain.
	groupDomain = -1
)

// Record is one resolved (or fantasized) trial. Loss is sign-flipped when
// maximizing so lower is always better.
type Record struct {
	TrialID int
	Loss    float64
	Config  space.Configuration
}

// history is an append-only arena of records with one presence bitmap per
// domain marking the positions where that domain was active.
type history struct {
	space   *space.Space
	records []Record
	present []*roaring.Bitmap
}

func newHistory(s *space.Space) *history {
	h := &history{space: s, present: make([]*roaring.Bitmap, s.Len())}
	for i := range h.present {
		h.present[i] = roaring.New()
	}
	return h
}

func (h *history) Len() int {
	return len(h.records)
}

func (h *history) append(r Record) {
	pos := uint32(len(h.records))
	h.records = append(h.records, r)
	for _, i := range h.space.Active(r.Config.Group) {
		h.present[i].Add(pos)
	}
}

func (h *history) clone() *history {
	c := &history{
		space:   h.space,
		records: append(make([]Record, 0, len(h.records)+8), h.records...),
		present: make([]*roaring.Bitmap, len(h.present)),
	}
	for i, b := range h.present {
		c.present[i] = b.Clone()
	}
	return c
}

func (h *history) has(pos, domain int) bool {
	if domain == groupDomain {
		return true
	}
	return h.present[domain].Contains(uint32(pos))
}

func (h *history) value(pos, domain int) float64 {
	c := h.records[pos].Config
	if domain == groupDomain {
		return float64(c.Group)
	}
	return c.Values[domain]
}

// belowCount returns how many of n trials form the good set.
func belowCount(n int) int {
	return min(int(math.Ceil(gamma*math.Sqrt(float64(n)))), maxBelow)
}

// split partitions the records by loss into the good and bad sets, keeps
// those where domain was present, and returns their values ordered by trial
// id. Equal losses keep arrival order.
func (h *history) split(domain int) (below, above []float64) {
	losses := make([]float64, len(h.records))
	for i, r := range h.records {
		losses[i] = r.Loss
	}
	order := vecmath.ArgSort(losses)
	n := belowCount(len(order))

	return h.collect(order[:n], domain), h.collect(order[n:], domain)
}

func (h *history) collect(positions []int, domain int) []float64 {
	kept := make([]int, 0, len(positions))
	for _, pos := range positions {
		if h.has(pos, domain) {
			kept = append(kept, pos)
		}
	}
	sort.SliceStable(kept, func(a, b int) bool {
		return h.records[kept[a]].TrialID < h.records[kept[b]].TrialID
	})
	values := make([]float64, len(kept))
	for i, pos := range kept {
		values[i] = h.value(pos, domain)
	}
	return values
}
