// Package metrics exposes the monitor's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/mqtt"
)

const namespace = "meshmon"

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	messages          *prometheus.CounterVec
	decryptFailures   *prometheus.CounterVec
	connectionState   prometheus.Gauge
	reconnectAttempts prometheus.Counter
	sinkErrors        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "decoder",
				Name:      "messages_total",
				Help:      "Decoded messages by packet type.",
			},
			[]string{"packet_type"},
		),
		decryptFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "decoder",
				Name:      "undecryptable_total",
				Help:      "Encrypted packets that could not be decrypted, by channel.",
			},
			[]string{"channel"},
		),
		connectionState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "connection_state",
				Help:      "0 disconnected, 1 connecting, 2 connected, 3 reconnecting.",
			},
		),
		reconnectAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "reconnect_attempts_total",
				Help:      "Scheduled reconnect attempts.",
			},
		),
		sinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "errors_total",
				Help:      "Failed publishes by sink.",
			},
			[]string{"sink"},
		),
	}
	m.registry.MustRegister(
		m.messages, m.decryptFailures, m.connectionState, m.reconnectAttempts, m.sinkErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) RecordMessage(msg model.DecodedMessage) {
	m.messages.WithLabelValues(msg.PacketType).Inc()
	if msg.PacketType == model.PacketTypeEncrypted {
		m.decryptFailures.WithLabelValues(msg.Channel).Inc()
	}
}

// RecordState is meant to be used as the connection manager's
// OnStateChange hook.
func (m *Metrics) RecordState(st mqtt.Status) {
	m.connectionState.Set(float64(st.State))
	if st.State == mqtt.Reconnecting {
		m.reconnectAttempts.Inc()
	}
}

func (m *Metrics) RecordSinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
