// Package metrics provides Prometheus metrics for the pingkit echo servers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "pingkit"
)

// Metrics contains all Prometheus metrics for a server.
type Metrics struct {
	// Traffic metrics
	MessagesReceived *prometheus.CounterVec
	BytesReceived    *prometheus.CounterVec
	BytesEchoed      *prometheus.CounterVec

	// Injection metrics
	Actions *prometheus.CounterVec

	// Error emission metrics
	ErrorsEmitted   *prometheus.CounterVec
	ErrorsFailed    *prometheus.CounterVec
	ErrorsThrottled prometheus.Counter

	// Connection metrics (TCP)
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	ConnectionLength  prometheus.Histogram
	PanicsRecovered   prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total probe messages received by transport",
		}, []string{"transport"}),
		BytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total probe payload bytes received by transport",
		}, []string{"transport"}),
		BytesEchoed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_echoed_total",
			Help:      "Total payload bytes echoed back by transport",
		}, []string{"transport"}),

		Actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Injection decisions by transport and action",
		}, []string{"transport", "action"}),

		ErrorsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icmp_errors_emitted_total",
			Help:      "ICMP error packets sent by code",
		}, []string{"code"}),
		ErrorsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icmp_errors_failed_total",
			Help:      "ICMP error packets that could not be sent by reason",
		}, []string{"reason"}),
		ErrorsThrottled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "icmp_errors_throttled_total",
			Help:      "ICMP error packets suppressed by the rate limit",
		}),

		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of TCP connections being served",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total TCP connections accepted",
		}),
		ConnectionLength: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_messages",
			Help:      "Histogram of messages served per TCP connection",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 1000},
		}),
		PanicsRecovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_recovered_total",
			Help:      "Connection worker panics recovered",
		}),
	}
}

// The Record helpers are no-ops on a nil *Metrics so servers can run
// without a registry.

// RecordMessage records one inbound probe message.
func (m *Metrics) RecordMessage(transport string, bytes int) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(transport).Inc()
	m.BytesReceived.WithLabelValues(transport).Add(float64(bytes))
}

// RecordAction records an injection decision.
func (m *Metrics) RecordAction(transport, action string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(transport, action).Inc()
}

// RecordEcho records bytes echoed back to a client.
func (m *Metrics) RecordEcho(transport string, bytes int) {
	if m == nil {
		return
	}
	m.BytesEchoed.WithLabelValues(transport).Add(float64(bytes))
}

// RecordErrorEmitted records an ICMP error packet sent.
func (m *Metrics) RecordErrorEmitted(code string) {
	if m == nil {
		return
	}
	m.ErrorsEmitted.WithLabelValues(code).Inc()
}

// RecordErrorFailed records an ICMP error packet that could not be sent.
func (m *Metrics) RecordErrorFailed(reason string) {
	if m == nil {
		return
	}
	m.ErrorsFailed.WithLabelValues(reason).Inc()
}

// RecordErrorThrottled records an ICMP error suppressed by the rate limit.
func (m *Metrics) RecordErrorThrottled() {
	if m == nil {
		return
	}
	m.ErrorsThrottled.Inc()
}

// RecordConnectionOpen records a TCP connection being accepted.
func (m *Metrics) RecordConnectionOpen() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
	m.ConnectionsTotal.Inc()
}

// RecordConnectionClose records a TCP connection closing after messages.
func (m *Metrics) RecordConnectionClose(messages int) {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
	m.ConnectionLength.Observe(float64(messages))
}

// RecordPanic records a recovered worker panic.
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsRecovered.Inc()
}
