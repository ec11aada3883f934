package flaml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/hptune/internal/optimization"
	"github.com/copyleftdev/hptune/internal/optimization/random"
)

func dist(a, b []float64) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

func TestColdStartProposesInitialConfiguration(t *testing.T) {
	b := NewBlendSearch(twoDim(), random.New(1))

	for id := 0; id < 3; id++ {
		p, err := b.GenerateParameters(id)
		require.NoError(t, err)
		assert.Equal(t, optimization.Parameters{"x": 0.5, "y": 0.5}, p)
	}
	assert.Len(t, b.Threads(), 1)

	require.NoError(t, b.ReceiveTrialResult(1, 4, 2))
	require.Len(t, b.Threads(), 2)

	thread := b.Threads()[1]
	assert.Equal(t, 1, thread.ID())
	assert.Equal(t, 4.0, thread.BestObjective())
	assert.Equal(t, 2.0, thread.CostTotal())
	assert.Equal(t, []float64{0.5, 0.5}, thread.LocalSearch().Incumbent())

	// Further cold-start results do not fork again.
	require.NoError(t, b.ReceiveTrialResult(0, 1, 1))
	require.NoError(t, b.ReceiveTrialResult(2, 1, 1))
	assert.Len(t, b.Threads(), 2)
}

func TestRoutesToLocalSearch(t *testing.T) {
	b := NewBlendSearch(twoDim(), random.New(2))
	_, err := b.GenerateParameters(0)
	require.NoError(t, err)
	require.NoError(t, b.ReceiveTrialResult(0, 5, 1))

	p, err := b.GenerateParameters(1)
	require.NoError(t, err)
	assert.Equal(t, 1, b.proposedBy[1])

	ls := b.Threads()[1].LocalSearch()
	assert.InDelta(t, ls.Step(), dist(point(p), []float64{0.5, 0.5}), 1e-9)

	require.NoError(t, b.ReceiveTrialResult(1, 3, 1))
	assert.InDeltaSlice(t, point(p), ls.Incumbent(), 1e-12)
	assert.InDelta(t, 2.0, b.Threads()[1].Speed(), 1e-6)
}

func TestAdmissibleRegionCoversProposals(t *testing.T) {
	b := NewBlendSearch(twoDim(), random.New(3))
	var seen [][]float64
	for id := 0; id < 40; id++ {
		p, err := b.GenerateParameters(id)
		require.NoError(t, err)
		seen = append(seen, point(p))
		x := point(p)
		require.NoError(t, b.ReceiveTrialResult(id, (x[0]-0.2)*(x[0]-0.2)+(x[1]-0.8)*(x[1]-0.8), 1))
	}

	lo, hi := b.AdmissibleRegion()
	for _, x := range seen {
		for i := range x {
			assert.GreaterOrEqual(t, x[i], lo[i]-1e-12)
			assert.LessOrEqual(t, x[i], hi[i]+1e-12)
		}
	}
	assert.Less(t, lo[0], 0.5)
	assert.Less(t, 0.5, hi[1])
}

func TestBlendSearchMaximize(t *testing.T) {
	b := NewBlendSearch(twoDim(), random.New(4), WithMinimize(false))
	_, err := b.GenerateParameters(0)
	require.NoError(t, err)
	require.NoError(t, b.ReceiveTrialResult(0, 7, 1))

	best, ok := b.Threads()[1].LocalSearch().BestObjective()
	require.True(t, ok)
	assert.Equal(t, -7.0, best)
}

func TestForksAnotherThreadAfterConvergence(t *testing.T) {
	b := NewBlendSearch(twoDim(), random.New(5), WithMaxLocalThreads(2))
	_, err := b.GenerateParameters(0)
	require.NoError(t, err)
	require.NoError(t, b.ReceiveTrialResult(0, 5, 1))

	for id := 1; id < 5; id++ {
		_, err := b.GenerateParameters(id)
		require.NoError(t, err)
		assert.Equal(t, 1, b.proposedBy[id])
		require.NoError(t, b.ReceiveTrialResult(id, 6, 1))
	}

	b.Threads()[1].LocalSearch().step = 0
	_, err = b.GenerateParameters(10)
	require.NoError(t, err)
	assert.Equal(t, 0, b.proposedBy[10])

	// A seed is in flight, so the next proposal goes to the converged thread.
	_, err = b.GenerateParameters(11)
	require.NoError(t, err)
	assert.Equal(t, 1, b.proposedBy[11])

	require.NoError(t, b.ReceiveTrialResult(10, 4, 1))
	require.Len(t, b.Threads(), 3)

	_, err = b.GenerateParameters(12)
	require.NoError(t, err)
	assert.Equal(t, 2, b.proposedBy[12])
}

func TestBlendSearchDeterminism(t *testing.T) {
	run := func() []optimization.Parameters {
		b := NewBlendSearch(groupedSpace(), random.New(99))
		var out []optimization.Parameters
		for id := 0; id < 60; id++ {
			p, err := b.GenerateParameters(id)
			require.NoError(t, err)
			out = append(out, p)
			require.NoError(t, b.ReceiveTrialResult(id, float64((id*7)%11), 1))
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestBlendSearchTrialErrors(t *testing.T) {
	b := NewBlendSearch(twoDim(), random.New(1))
	assert.ErrorIs(t, b.ReceiveTrialResult(3, 1, 1), optimization.ErrNoSuchTrial)

	_, err := b.GenerateParameters(3)
	require.NoError(t, err)
	_, err = b.GenerateParameters(3)
	assert.ErrorIs(t, err, optimization.ErrTrialExists)

	require.NoError(t, b.ReceiveTrialResult(3, 1, 1))
	assert.ErrorIs(t, b.ReceiveTrialResult(3, 1, 1), optimization.ErrNoSuchTrial)
}
