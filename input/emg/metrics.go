package emg

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashwingupta21/VR-API/metric"
)

// Metrics tracks acquisition activity in Prometheus.
type Metrics struct {
	samplesRead  prometheus.Counter
	decodeErrors prometheus.Counter
	reconnects   prometheus.Counter
	connected    prometheus.Gauge
}

// newMetrics creates and registers acquisition metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		samplesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vrapi",
			Subsystem: "emg",
			Name:      "samples_read_total",
			Help:      "Total samples successfully decoded from the device",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vrapi",
			Subsystem: "emg",
			Name:      "decode_errors_total",
			Help:      "Lines that could not be decoded into a sample",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vrapi",
			Subsystem: "emg",
			Name:      "reconnects_total",
			Help:      "Connections lost mid-stream",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vrapi",
			Subsystem: "emg",
			Name:      "device_connected",
			Help:      "1 while streaming from the serial device, 0 otherwise",
		}),
	}

	registry.RegisterCounter("emg", "samples_read", metrics.samplesRead)
	registry.RegisterCounter("emg", "decode_errors", metrics.decodeErrors)
	registry.RegisterCounter("emg", "reconnects", metrics.reconnects)
	registry.RegisterGauge("emg", "device_connected", metrics.connected)

	return metrics
}

func (m *Metrics) incSamplesRead() {
	if m != nil {
		m.samplesRead.Inc()
	}
}

func (m *Metrics) incDecodeErrors() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) incReconnects() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) setConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}
