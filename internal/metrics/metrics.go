// Package metrics exposes tuning activity as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector receives tuning events. Implement it to feed another monitoring
// system.
type Collector interface {
	// RecordGenerate is called after each proposal.
	RecordGenerate(strategy string, duration time.Duration, err error)
	// RecordReport is called after each reported result.
	RecordReport(strategy string, loss float64, err error)
	// SessionOpened and SessionClosed track live tuner sessions. running is
	// the number of trials still awaiting a result when the session closed.
	SessionOpened()
	SessionClosed(strategy string, running int)
}

// Noop is a Collector that discards every event.
type Noop struct{}

func (Noop) RecordGenerate(string, time.Duration, error) {}
func (Noop) RecordReport(string, float64, error)         {}
func (Noop) SessionOpened()                              {}
func (Noop) SessionClosed(string, int)                   {}

// Prometheus is a Collector backed by Prometheus metrics.
type Prometheus struct {
	generated *prometheus.CounterVec
	reported  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	loss      *prometheus.HistogramVec
	running   *prometheus.GaugeVec
	sessions  prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hptune_trials_generated_total",
			Help: "Total proposals requested",
		}, []string{"strategy", "status"}),
		reported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hptune_trials_reported_total",
			Help: "Total trial results received",
		}, []string{"strategy", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hptune_generate_duration_seconds",
			Help:    "Time spent proposing a configuration",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"strategy"}),
		loss: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hptune_trial_loss",
			Help:    "Losses reported by trials",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hptune_trials_running",
			Help: "Trials proposed and awaiting a result",
		}, []string{"strategy"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hptune_sessions_open",
			Help: "Open tuner sessions",
		}),
	}

	for _, c := range []prometheus.Collector{p.generated, p.reported, p.latency, p.loss, p.running, p.sessions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordGenerate implements Collector.
func (p *Prometheus) RecordGenerate(strategy string, d time.Duration, err error) {
	p.generated.WithLabelValues(strategy, status(err)).Inc()
	if err != nil {
		return
	}
	p.latency.WithLabelValues(strategy).Observe(d.Seconds())
	p.running.WithLabelValues(strategy).Inc()
}

// RecordReport implements Collector.
func (p *Prometheus) RecordReport(strategy string, loss float64, err error) {
	p.reported.WithLabelValues(strategy, status(err)).Inc()
	if err != nil {
		return
	}
	p.loss.WithLabelValues(strategy).Observe(loss)
	p.running.WithLabelValues(strategy).Dec()
}

// SessionOpened implements Collector.
func (p *Prometheus) SessionOpened() { p.sessions.Inc() }

// SessionClosed implements Collector. Abandoned trials leave the running
// gauge.
func (p *Prometheus) SessionClosed(strategy string, running int) {
	p.sessions.Dec()
	if running > 0 {
		p.running.WithLabelValues(strategy).Sub(float64(running))
	}
}
