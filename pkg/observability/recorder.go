// Package observability turns bridge lifecycle hooks into Prometheus
// series describing the runtime connection.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/conduit-ai/conduit/pkg/domain"
)

// stateValue maps connection states onto gauge values.
var stateValue = map[domain.ConnectionState]float64{
	domain.StateDisconnected: 0,
	domain.StateConnecting:   1,
	domain.StateConnected:    2,
	domain.StateError:        3,
}

// Recorder observes connection state transitions via BridgeHooks.
type Recorder struct {
	state       prometheus.Gauge
	transitions *prometheus.CounterVec
	disconnects prometheus.Counter
}

// NewRecorder creates a recorder and registers its collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "conduit_connection_state",
			Help: "Current runtime connection state (0=disconnected, 1=connecting, 2=connected, 3=error).",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conduit_connection_transitions_total",
			Help: "Connection state transitions, by destination state.",
		}, []string{"to"}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conduit_disconnects_total",
			Help: "Times the runtime stream was lost or torn down.",
		}),
	}
	reg.MustRegister(r.state, r.transitions, r.disconnects)
	return r
}

// Hooks returns the BridgeHooks feeding this recorder. Safe to pass to the
// bridge directly; callbacks only touch Prometheus primitives.
func (r *Recorder) Hooks() *domain.BridgeHooks {
	return &domain.BridgeHooks{
		OnStateChange: func(change domain.StateChange) {
			r.state.Set(stateValue[change.To])
			r.transitions.WithLabelValues(string(change.To)).Inc()
		},
		OnDisconnected: func() {
			r.disconnects.Inc()
		},
	}
}
