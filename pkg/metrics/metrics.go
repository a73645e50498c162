// Package metrics registers the counters and gauge the specification
// requires under their exact names, backed by a real Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names are exact per the specification and are registered without
// any namespace prefix: downstream dashboards key on these literal strings.
const (
	nameMessageTimeout = "critical_logs_message_timeout"
	nameNackReceived   = "critical_logs_nack_received"
	nameAckReceived    = "critical_logs_ack_received"
	namePending        = "pending_critical_logs"
)

// Metrics wraps the four collectors the streaming client, the ack tracker,
// and the logger facade increment or set.
type Metrics struct {
	MessageTimeout prometheus.Counter
	NackReceived   prometheus.Counter
	AckReceived    prometheus.Counter
	Pending        prometheus.Gauge
}

// New registers the metrics against registerer and returns the wrapper.
// Passing a fresh prometheus.NewRegistry() per logger instance is safe;
// passing prometheus.DefaultRegisterer is also safe as long as only one
// logger instance exists per process (a second registration under the same
// name would panic, matching Prometheus's own duplicate-registration
// behavior).
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registerer)

	return &Metrics{
		MessageTimeout: factory.NewCounter(prometheus.CounterOpts{
			Name: nameMessageTimeout,
			Help: "Number of critical log messages that timed out waiting for an acknowledgement.",
		}),
		NackReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: nameNackReceived,
			Help: "Number of NACK responses received for critical log messages.",
		}),
		AckReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: nameAckReceived,
			Help: "Number of ACK responses received for critical log messages.",
		}),
		Pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: namePending,
			Help: "Number of critical log flush batches currently awaiting acknowledgement.",
		}),
	}
}

// IncMessageTimeout implements ack.Metrics.
func (m *Metrics) IncMessageTimeout() { m.MessageTimeout.Inc() }

// IncNackReceived implements streamclient.Metrics.
func (m *Metrics) IncNackReceived() { m.NackReceived.Inc() }

// IncAckReceived implements streamclient.Metrics.
func (m *Metrics) IncAckReceived() { m.AckReceived.Inc() }

// IncPendingCriticalLogs implements streamclient.Metrics.
func (m *Metrics) IncPendingCriticalLogs() { m.Pending.Add(1) }

// DecPendingCriticalLogs implements streamclient.Metrics.
func (m *Metrics) DecPendingCriticalLogs() { m.Pending.Add(-1) }
