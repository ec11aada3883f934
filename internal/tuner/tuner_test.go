package tuner

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/copyleftdev/hptune/internal/optimization"
	"github.com/copyleftdev/hptune/internal/optimization/space"
)

func testSpace() *space.Space {
	return space.MustBuild(space.Description{Common: []space.AlgorithmSpec{{Params: []space.ParamSpec{
		space.Choice("kind", "a", "b"),
		space.Uniform("x", "uniform", 0, 1).WithInitial(0.5),
	}}}})
}

func TestNewStrategies(t *testing.T) {
	tests := []struct {
		strategy optimization.Strategy
		wantErr  bool
	}{
		{optimization.StrategyTPE, false},
		{optimization.StrategyLocalSearch, false},
		{optimization.StrategyBlendSearch, false},
		{"random", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			settings := DefaultSettings()
			settings.Strategy = tt.strategy
			tn, err := New(testSpace(), settings, zaptest.NewLogger(t))
			if tt.wantErr {
				assert.ErrorIs(t, err, optimization.ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)

			objective := optimization.SphereObjective(map[string]float64{"x": 0.3})
			for id := 0; id < 30; id++ {
				p, err := tn.GenerateParameters(id)
				require.NoError(t, err)
				assert.Contains(t, []string{"a", "b"}, p["kind"])
				loss, cost := objective(p)
				require.NoError(t, tn.ReceiveTrialResult(id, loss, cost))
			}
		})
	}
}

func TestSameSeedSameProposals(t *testing.T) {
	for _, strategy := range []optimization.Strategy{
		optimization.StrategyTPE, optimization.StrategyLocalSearch, optimization.StrategyBlendSearch,
	} {
		t.Run(string(strategy), func(t *testing.T) {
			settings := DefaultSettings()
			settings.Strategy = strategy
			settings.Seed = 17

			run := func() []optimization.Parameters {
				tn, err := New(testSpace(), settings, nil)
				require.NoError(t, err)
				var out []optimization.Parameters
				for id := 0; id < 30; id++ {
					p, err := tn.GenerateParameters(id)
					require.NoError(t, err)
					out = append(out, p)
					require.NoError(t, tn.ReceiveTrialResult(id, float64(id%4), 1))
				}
				return out
			}
			assert.Equal(t, run(), run())
		})
	}
}

func TestSynchronizedConcurrentCallers(t *testing.T) {
	tn, err := New(testSpace(), DefaultSettings(), nil)
	require.NoError(t, err)
	s := Synchronize(tn, true)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := w*perWorker + i
				p, err := s.GenerateParameters(id)
				if !assert.NoError(t, err) {
					return
				}
				x := p["x"].(float64)
				assert.NoError(t, s.ReceiveTrialResult(id, x, 1))
			}
		}(w)
	}
	wg.Wait()

	sum := s.Summary()
	assert.Equal(t, workers*perWorker, sum.Generated)
	assert.Equal(t, workers*perWorker, sum.Reported)
	assert.Equal(t, 0, sum.Running)
	require.NotNil(t, sum.BestLoss)
	assert.Equal(t, *sum.BestLoss, sum.BestParameters["x"])
}

func TestSynchronizedSummaryTracksBest(t *testing.T) {
	settings := DefaultSettings()
	settings.Minimize = false
	tn, err := New(testSpace(), settings, nil)
	require.NoError(t, err)
	s := Synchronize(tn, false)

	assert.Nil(t, s.Summary().BestLoss)
	for id, loss := range []float64{1, 5, 3} {
		_, err := s.GenerateParameters(id)
		require.NoError(t, err)
		require.NoError(t, s.ReceiveTrialResult(id, loss, 1))
	}
	_, err = s.GenerateParameters(3)
	require.NoError(t, err)

	sum := s.Summary()
	assert.Equal(t, 5.0, *sum.BestLoss)
	assert.Equal(t, 1, sum.Running)

	assert.ErrorIs(t, s.ReceiveTrialResult(99, 0, 0), optimization.ErrNoSuchTrial)
	assert.Equal(t, 3, s.Summary().Reported)
}

type recorder struct {
	generated, reported, failed int
	losses                      []float64
}

func (r *recorder) RecordGenerate(_ string, _ time.Duration, err error) {
	if err != nil {
		r.failed++
		return
	}
	r.generated++
}

func (r *recorder) RecordReport(_ string, loss float64, err error) {
	if err != nil {
		r.failed++
		return
	}
	r.reported++
	r.losses = append(r.losses, loss)
}

func (r *recorder) SessionOpened() {}
func (r *recorder) SessionClosed(string, int) {}

func TestInstrumented(t *testing.T) {
	tn, err := New(testSpace(), DefaultSettings(), nil)
	require.NoError(t, err)
	rec := &recorder{}
	in := Instrument(tn, optimization.StrategyTPE, rec)

	_, err = in.GenerateParameters(0)
	require.NoError(t, err)
	_, err = in.GenerateParameters(0)
	require.Error(t, err)
	require.NoError(t, in.ReceiveTrialResult(0, 0.25, 1))

	assert.Equal(t, 1, rec.generated)
	assert.Equal(t, 1, rec.reported)
	assert.Equal(t, 1, rec.failed)
	assert.Equal(t, []float64{0.25}, rec.losses)
}
