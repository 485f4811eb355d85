package server

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/tracestream/pkg/protocol"
)

const metricsNamespace = "tracestream"

// metrics holds the Prometheus collectors for a Server. A nil *metrics is
// valid and records nothing, which keeps standalone connections cheap.
type metrics struct {
	framesSent       *prometheus.CounterVec
	framesReceived   *prometheus.CounterVec
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter
	accepted         prometheus.Counter
	rejected         prometheus.Counter
	violations       *prometheus.CounterVec
	pushes           *prometheus.CounterVec
	listening        prometheus.Gauge
	connected        prometheus.Gauge
	bindFailures     prometheus.Counter
	connectionErrors prometheus.Counter
}

// newMetrics creates the collectors and registers them with reg. Collectors
// already registered by an earlier Server are reused.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_sent_total",
			Help:      "Frames written to the client by message type",
		}, []string{"type"}),

		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_received_total",
			Help:      "Complete frames dispatched by message type",
		}, []string{"type"}),

		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to the client",
		}),

		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bytes_received_total",
			Help:      "Bytes read from the client",
		}),

		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_accepted_total",
			Help:      "Connections that took the connection slot",
		}),

		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_rejected_total",
			Help:      "Connections closed because the slot was occupied",
		}),

		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "protocol_violations_total",
			Help:      "Connections closed for protocol violations by kind",
		}, []string{"kind"}),

		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "push_cycles_total",
			Help:      "Notification driven pushes by sync reason (none for info only)",
		}, []string{"sync"}),

		listening: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "listening",
			Help:      "1 while the listener is bound",
		}),

		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connected",
			Help:      "1 while a healthy connection occupies the slot",
		}),

		bindFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bind_failures_total",
			Help:      "Runs that found no free port in the range",
		}),

		connectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connection_errors_total",
			Help:      "Connections discarded after a transport error or close",
		}),
	}

	if reg == nil {
		return m
	}

	m.framesSent = register(reg, m.framesSent)
	m.framesReceived = register(reg, m.framesReceived)
	m.bytesSent = register(reg, m.bytesSent)
	m.bytesReceived = register(reg, m.bytesReceived)
	m.accepted = register(reg, m.accepted)
	m.rejected = register(reg, m.rejected)
	m.violations = register(reg, m.violations)
	m.pushes = register(reg, m.pushes)
	m.listening = register(reg, m.listening)
	m.connected = register(reg, m.connected)
	m.bindFailures = register(reg, m.bindFailures)
	m.connectionErrors = register(reg, m.connectionErrors)
	return m
}

// register registers c, returning the already registered collector when an
// identical one exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) recordSent(mt protocol.MsgType, n int) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(mt.String()).Inc()
	m.bytesSent.Add(float64(n))
}

func (m *metrics) recordFrame(mt protocol.MsgType) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(mt.String()).Inc()
}

func (m *metrics) recordReceived(n int) {
	if m == nil {
		return
	}
	m.bytesReceived.Add(float64(n))
}

func (m *metrics) recordViolation(kind string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(kind).Inc()
}

func (m *metrics) recordAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
}

func (m *metrics) recordRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

func (m *metrics) recordPush(sendSync bool, reason protocol.SyncReason) {
	if m == nil {
		return
	}
	label := "none"
	if sendSync {
		label = reason.String()
	}
	m.pushes.WithLabelValues(label).Inc()
}

func (m *metrics) recordConnectionError() {
	if m == nil {
		return
	}
	m.connectionErrors.Inc()
}

func (m *metrics) recordBindFailure() {
	if m == nil {
		return
	}
	m.bindFailures.Inc()
}

func (m *metrics) setListening(on bool) {
	if m == nil {
		return
	}
	m.listening.Set(boolGauge(on))
}

func (m *metrics) setConnected(on bool) {
	if m == nil {
		return
	}
	m.connected.Set(boolGauge(on))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
