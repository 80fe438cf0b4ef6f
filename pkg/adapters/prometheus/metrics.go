// Package prometheus implements the metrics sink receiving tool call
// outcome records from the bridge.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/conduit-ai/conduit/pkg/ports"
)

// Sink implements ports.MetricsSink backed by Prometheus collectors.
type Sink struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewSink creates a sink and registers its collectors with reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func NewSink(reg prometheus.Registerer) *Sink {
	s := &Sink{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_tool_calls_total",
			Help: "Tool calls completed, by provider, tool, and outcome.",
		}, []string{"provider", "tool", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conduit_tool_call_duration_seconds",
			Help:    "Tool call latency from submission to completion.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "tool"}),
	}
	reg.MustRegister(s.calls, s.duration)
	return s
}

// Record counts one completed call. Fire-and-forget: never blocks, never
// fails.
func (s *Sink) Record(outcome ports.CallOutcome) {
	result := "failure"
	if outcome.Success {
		result = "success"
	}
	s.calls.WithLabelValues(outcome.Provider, outcome.ToolName, result).Inc()
	s.duration.WithLabelValues(outcome.Provider, outcome.ToolName).Observe(float64(outcome.DurationMs) / 1000)
}

var _ ports.MetricsSink = (*Sink)(nil)
