package nats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashwingupta21/VR-API/metric"
)

// Metrics tracks mirror activity in Prometheus.
type Metrics struct {
	published    prometheus.Counter
	publishFails prometheus.Counter
}

// newMetrics creates and registers mirror metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vrapi",
			Subsystem: "nats",
			Name:      "events_mirrored_total",
			Help:      "Event frames published to the mirror subject",
		}),
		publishFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vrapi",
			Subsystem: "nats",
			Name:      "publish_failures_total",
			Help:      "Event frames the mirror failed to publish",
		}),
	}

	registry.RegisterCounter("nats", "events_mirrored", metrics.published)
	registry.RegisterCounter("nats", "publish_failures", metrics.publishFails)

	return metrics
}

func (m *Metrics) incPublished() {
	if m != nil {
		m.published.Inc()
	}
}

func (m *Metrics) incPublishFails() {
	if m != nil {
		m.publishFails.Inc()
	}
}
