package tuner

import (
	"time"

	"github.com/copyleftdev/hptune/internal/metrics"
	"github.com/copyleftdev/hptune/internal/optimization"
)

// Instrumented reports every call on the wrapped tuner to a metrics
// collector.
type Instrumented struct {
	tuner     optimization.Tuner
	strategy  string
	collector metrics.Collector
}

// Instrument wraps t. A nil collector discards events.
func Instrument(t optimization.Tuner, strategy optimization.Strategy, c metrics.Collector) *Instrumented {
	if c == nil {
		c = metrics.Noop{}
	}
	return &Instrumented{tuner: t, strategy: string(strategy), collector: c}
}

// GenerateParameters implements optimization.Tuner.
func (i *Instrumented) GenerateParameters(trialID int) (optimization.Parameters, error) {
	start := time.Now()
	params, err := i.tuner.GenerateParameters(trialID)
	i.collector.RecordGenerate(i.strategy, time.Since(start), err)
	return params, err
}

// ReceiveTrialResult implements optimization.Tuner.
func (i *Instrumented) ReceiveTrialResult(trialID int, loss, cost float64) error {
	err := i.tuner.ReceiveTrialResult(trialID, loss, cost)
	i.collector.RecordReport(i.strategy, loss, err)
	return err
}
