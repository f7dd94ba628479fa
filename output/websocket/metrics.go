package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashwingupta21/VR-API/metric"
)

// Metrics tracks WebSocket server activity in Prometheus.
type Metrics struct {
	connections    prometheus.Counter
	disconnections prometheus.Counter
	upgradeErrors  prometheus.Counter
	clients        prometheus.Gauge
}

// newMetrics creates and registers server metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vrapi",
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total accepted WebSocket connections",
		}),
		disconnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vrapi",
			Subsystem: "websocket",
			Name:      "disconnections_total",
			Help:      "Total closed WebSocket connections",
		}),
		upgradeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vrapi",
			Subsystem: "websocket",
			Name:      "upgrade_errors_total",
			Help:      "HTTP requests that failed the WebSocket upgrade",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vrapi",
			Subsystem: "websocket",
			Name:      "clients",
			Help:      "Currently connected WebSocket clients",
		}),
	}

	registry.RegisterCounter("websocket", "connections", metrics.connections)
	registry.RegisterCounter("websocket", "disconnections", metrics.disconnections)
	registry.RegisterCounter("websocket", "upgrade_errors", metrics.upgradeErrors)
	registry.RegisterGauge("websocket", "clients", metrics.clients)

	return metrics
}

func (m *Metrics) incConnections() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) incDisconnections() {
	if m != nil {
		m.disconnections.Inc()
	}
}

func (m *Metrics) incUpgradeErrors() {
	if m != nil {
		m.upgradeErrors.Inc()
	}
}

func (m *Metrics) setClients(n int) {
	if m != nil {
		m.clients.Set(float64(n))
	}
}
