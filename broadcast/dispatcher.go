package broadcast

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashwingupta21/VR-API/metric"
	"github.com/ashwingupta21/VR-API/signal"
)

// Metrics holds Prometheus metrics for the dispatcher
type Metrics struct {
	eventsPublished   prometheus.Counter
	framesSent        prometheus.Counter
	sendErrors        prometheus.Counter
	subscribersActive prometheus.Gauge
	broadcastDuration prometheus.Histogram
}

// newMetrics creates and registers dispatcher metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vrapi",
			Subsystem: "broadcast",
			Name:      "events_published_total",
			Help:      "Total events handed to the dispatcher",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vrapi",
			Subsystem: "broadcast",
			Name:      "frames_sent_total",
			Help:      "Total frames delivered to subscribers",
		}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vrapi",
			Subsystem: "broadcast",
			Name:      "send_errors_total",
			Help:      "Failed subscriber deliveries (subscriber removed)",
		}),
		subscribersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vrapi",
			Subsystem: "broadcast",
			Name:      "subscribers_active",
			Help:      "Number of currently registered subscribers",
		}),
		broadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vrapi",
			Subsystem: "broadcast",
			Name:      "broadcast_duration_seconds",
			Help:      "Time to deliver one event to all subscribers",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}

	registry.RegisterCounter("dispatcher", "events_published", metrics.eventsPublished)
	registry.RegisterCounter("dispatcher", "frames_sent", metrics.framesSent)
	registry.RegisterCounter("dispatcher", "send_errors", metrics.sendErrors)
	registry.RegisterGauge("dispatcher", "subscribers_active", metrics.subscribersActive)
	registry.RegisterHistogram("dispatcher", "broadcast_duration", metrics.broadcastDuration)

	return metrics
}

// Dispatcher pushes each event to every registered subscriber with
// best-effort delivery.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *Metrics
}

// DispatcherDeps holds construction dependencies for the Dispatcher
type DispatcherDeps struct {
	Registry        *Registry
	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
}

// NewDispatcher creates a dispatcher bound to a subscriber registry.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "dispatcher")
	}
	return &Dispatcher{
		registry: deps.Registry,
		logger:   logger,
		metrics:  newMetrics(deps.MetricsRegistry),
	}
}

// Publish delivers the event to every registered subscriber. Subscribers
// whose send fails are collected during the pass and removed afterwards, so
// one failure never blocks delivery to the remainder.
func (d *Dispatcher) Publish(event signal.Event) {
	start := time.Now()
	frame := event.Frame()

	snapshot := d.registry.Snapshot()
	var failed []Subscriber

	for _, sub := range snapshot {
		if err := sub.Send(frame); err != nil {
			d.logger.Warn("subscriber delivery failed, removing",
				"subscriber_id", sub.ID(),
				"error", err)
			failed = append(failed, sub)
		}
	}

	for _, sub := range failed {
		d.registry.Remove(sub)
		_ = sub.Close()
	}

	if d.metrics != nil {
		d.metrics.eventsPublished.Inc()
		d.metrics.framesSent.Add(float64(len(snapshot) - len(failed)))
		d.metrics.sendErrors.Add(float64(len(failed)))
		d.metrics.subscribersActive.Set(float64(d.registry.Len()))
		d.metrics.broadcastDuration.Observe(time.Since(start).Seconds())
	}
}
