// Package metrics counts selection decisions and outcomes for a session and
// exports them in the Prometheus text format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tia/internal/domain"
)

// Collector holds the counters of one session. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry      *prometheus.Registry
	decisions     *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	traceFailures prometheus.Counter
	duration      prometheus.Gauge
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tia_decisions_total",
			Help: "Selection decisions taken before each test.",
		}, []string{"verdict"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tia_outcomes_total",
			Help: "Outcomes of tests that were executed.",
		}, []string{"outcome"}),
		traceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tia_trace_failures_total",
			Help: "Tests that ran untraced because dependency capture failed.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tia_session_duration_seconds",
			Help: "Wall time of the last session.",
		}),
	}
	c.registry.MustRegister(c.decisions, c.outcomes, c.traceFailures, c.duration)
	return c
}

// Registry exposes the underlying registry, e.g. for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObserveDecision(v domain.Verdict) {
	if c == nil {
		return
	}
	c.decisions.WithLabelValues(v.String()).Inc()
}

func (c *Collector) ObserveOutcome(o domain.Outcome) {
	if c == nil {
		return
	}
	c.outcomes.WithLabelValues(string(o)).Inc()
}

func (c *Collector) TraceFailed() {
	if c == nil {
		return
	}
	c.traceFailures.Inc()
}

func (c *Collector) ObserveDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.duration.Set(d.Seconds())
}

// WriteTextfile writes the counters in the format read by the node_exporter
// textfile collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
