package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/halink-protocol/halink-go/pkg/connection"
)

const metricsNamespace = "halink"

// Metrics holds the session collectors. One Metrics may serve many
// sessions; series are labelled by device. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	framesReceived *prometheus.CounterVec
	framesSent     *prometheus.CounterVec
	frameOverflows *prometheus.CounterVec
	parseErrors    *prometheus.CounterVec
	configErrors   *prometheus.CounterVec
	setCommands    *prometheus.CounterVec
	setExpired     *prometheus.CounterVec
	reconnects     *prometheus.CounterVec

	connectionState *prometheus.GaugeVec
	setQueueDepth   *prometheus.GaugeVec
}

// NewMetrics creates the session collectors and registers them with reg.
// It panics if registration fails.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, append([]string{"device"}, labels...))
	}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, []string{"device"})
	}

	m := &Metrics{
		framesReceived: counter("frames_received_total", "Inbound frames, keepalives excluded."),
		framesSent:     counter("frames_sent_total", "Outbound SET frames."),
		frameOverflows: counter("frame_overflows_total", "Inbound frames discarded for exceeding the size limit."),
		parseErrors:    counter("parse_errors_total", "Inbound frames dropped as unparseable.", "reason"),
		configErrors:   counter("config_errors_total", "CONFIG messages rejected.", "reason"),
		setCommands:    counter("set_commands_total", "SET commands by outcome.", "result"),
		setExpired:     counter("set_expired_total", "Queued SET commands dropped at TTL."),
		reconnects:     counter("reconnects_total", "Transitions into backoff."),

		connectionState: gauge("connection_state", "Connection state (0 disconnected, 1 connecting, 2 awaiting handshake, 3 active, 4 backoff, 5 closed)."),
		setQueueDepth:   gauge("set_queue_depth", "Queued SET commands."),
	}

	if reg != nil {
		reg.MustRegister(
			m.framesReceived, m.framesSent, m.frameOverflows,
			m.parseErrors, m.configErrors, m.setCommands,
			m.setExpired, m.reconnects,
			m.connectionState, m.setQueueDepth,
		)
	}
	return m
}

func (m *Metrics) frameReceived(device string) {
	if m != nil {
		m.framesReceived.WithLabelValues(device).Inc()
	}
}

func (m *Metrics) frameSent(device string) {
	if m != nil {
		m.framesSent.WithLabelValues(device).Inc()
	}
}

func (m *Metrics) overflow(device string) {
	if m != nil {
		m.frameOverflows.WithLabelValues(device).Inc()
	}
}

func (m *Metrics) parseError(device, reason string) {
	if m != nil {
		m.parseErrors.WithLabelValues(device, reason).Inc()
	}
}

func (m *Metrics) configError(device, reason string) {
	if m != nil {
		m.configErrors.WithLabelValues(device, reason).Inc()
	}
}

func (m *Metrics) setCommand(device string, result SendResult) {
	if m != nil {
		m.setCommands.WithLabelValues(device, result.String()).Inc()
	}
}

func (m *Metrics) expired(device string, n int) {
	if m != nil && n > 0 {
		m.setExpired.WithLabelValues(device).Add(float64(n))
	}
}

func (m *Metrics) reconnect(device string) {
	if m != nil {
		m.reconnects.WithLabelValues(device).Inc()
	}
}

func (m *Metrics) state(device string, s connection.State) {
	if m != nil {
		m.connectionState.WithLabelValues(device).Set(float64(s))
	}
}

func (m *Metrics) queueDepth(device string, n int) {
	if m != nil {
		m.setQueueDepth.WithLabelValues(device).Set(float64(n))
	}
}
