package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ashwingupta21/VR-API/component"
	"github.com/ashwingupta21/VR-API/errors"
	"github.com/ashwingupta21/VR-API/metric"
	"github.com/ashwingupta21/VR-API/pkg/retry"
	"github.com/ashwingupta21/VR-API/signal"
)

// DefaultSubject is where event frames are mirrored unless configured
// otherwise.
const DefaultSubject = "emg.events"

// Config holds the mirror settings. An empty URL disables the mirror.
type Config struct {
	URL     string
	Subject string
}

// Deps holds construction dependencies for the Mirror.
type Deps struct {
	Name            string
	Config          Config
	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
}

// Mirror publishes event frames to a NATS subject. It satisfies the
// acquisition loop's Publisher interface alongside the broadcast
// dispatcher.
type Mirror struct {
	name    string
	config  Config
	logger  *slog.Logger
	metrics *Metrics

	mu        sync.Mutex
	conn      *nats.Conn
	started   bool
	startTime time.Time

	published    atomic.Uint64
	publishFails atomic.Uint64
	lastActivity atomic.Int64
}

// NewMirror creates the mirror component.
func NewMirror(deps Deps) (*Mirror, error) {
	if deps.Logger == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Mirror", "NewMirror", "logger is required")
	}

	name := deps.Name
	if name == "" {
		name = "nats-mirror"
	}
	cfg := deps.Config
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}

	return &Mirror{
		name:    name,
		config:  cfg,
		logger:  deps.Logger.With("component", name),
		metrics: newMetrics(deps.MetricsRegistry),
	}, nil
}

// Enabled reports whether a server URL is configured.
func (m *Mirror) Enabled() bool {
	return m.config.URL != ""
}

// Initialize validates the configuration.
func (m *Mirror) Initialize() error {
	if m.config.Subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Mirror", "Initialize", "subject cannot be empty")
	}
	return nil
}

// Start connects to the NATS server, retrying transient failures. A
// disabled mirror starts successfully and publishes nothing.
func (m *Mirror) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.Wrap(errors.ErrAlreadyStarted, "Mirror", "Start", "start component")
	}

	if !m.Enabled() {
		m.started = true
		m.startTime = time.Now()
		m.logger.Info("NATS mirror disabled, no URL configured")
		return nil
	}

	conn, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*nats.Conn, error) {
		return nats.Connect(m.config.URL,
			nats.Name(m.name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				m.logger.Warn("NATS connection lost", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				m.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			}),
		)
	})
	if err != nil {
		return errors.WrapTransient(err, "Mirror", "Start", fmt.Sprintf("connect to %s", m.config.URL))
	}

	m.conn = conn
	m.started = true
	m.startTime = time.Now()
	m.logger.Info("NATS mirror connected", "url", m.config.URL, "subject", m.config.Subject)
	return nil
}

// Publish mirrors one event frame. Failures are counted and logged but
// never propagated; the mirror must not disturb the main delivery path.
func (m *Mirror) Publish(event signal.Event) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	if err := conn.Publish(m.config.Subject, event.Frame()); err != nil {
		m.publishFails.Add(1)
		m.metrics.incPublishFails()
		m.logger.Warn("Mirror publish failed", "subject", m.config.Subject, "error", err)
		return
	}
	m.published.Add(1)
	m.metrics.incPublished()
	m.lastActivity.Store(time.Now().UnixNano())
}

// Stop flushes and closes the connection.
func (m *Mirror) Stop(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return errors.Wrap(errors.ErrNotStarted, "Mirror", "Stop", "stop component")
	}
	m.started = false

	if m.conn != nil {
		if err := m.conn.FlushTimeout(timeout); err != nil {
			m.logger.Warn("Flush on shutdown failed", "error", err)
		}
		m.conn.Close()
		m.conn = nil
	}
	m.logger.Info("NATS mirror stopped")
	return nil
}

// Meta implements component.Discoverable.
func (m *Mirror) Meta() component.Metadata {
	return component.Metadata{
		Name:        m.name,
		Type:        "output",
		Description: fmt.Sprintf("Mirrors EMG events to NATS subject %s", m.config.Subject),
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable. A disabled mirror is always
// healthy; an enabled one is healthy while connected.
func (m *Mirror) Health() component.HealthStatus {
	m.mu.Lock()
	started := m.started
	conn := m.conn
	var uptime time.Duration
	if started {
		uptime = time.Since(m.startTime)
	}
	m.mu.Unlock()

	healthy := started
	if m.Enabled() {
		healthy = started && conn != nil && conn.IsConnected()
	}
	return component.HealthStatus{
		Healthy:    healthy,
		LastCheck:  time.Now(),
		ErrorCount: int64(m.publishFails.Load()),
		Uptime:     uptime,
	}
}

// DataFlow implements component.Discoverable.
func (m *Mirror) DataFlow() component.FlowMetrics {
	var last time.Time
	if ns := m.lastActivity.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	var errRate float64
	total := m.published.Load() + m.publishFails.Load()
	if total > 0 {
		errRate = float64(m.publishFails.Load()) / float64(total)
	}
	return component.FlowMetrics{
		ErrorRate:    errRate,
		LastActivity: last,
	}
}
