package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ashwingupta21/VR-API/broadcast"
	"github.com/ashwingupta21/VR-API/component"
	"github.com/ashwingupta21/VR-API/errors"
	"github.com/ashwingupta21/VR-API/metric"
)

// Config holds the WebSocket server settings.
type Config struct {
	// Bind is the listen address. Defaults to all interfaces.
	Bind string

	// Port is the listen port. Zero asks the kernel for an ephemeral
	// port, which tests rely on.
	Port int

	// Path is the upgrade endpoint.
	Path string
}

// DefaultConfig returns the standard server settings.
func DefaultConfig() Config {
	return Config{
		Bind: "0.0.0.0",
		Port: 8000,
		Path: "/ws",
	}
}

// Deps holds construction dependencies for the Output.
type Deps struct {
	Name            string
	Config          Config
	Registry        *broadcast.Registry
	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
}

// Output is the WebSocket output component. It owns the HTTP server and
// the lifetime of every client connection; delivery itself happens in
// the broadcast dispatcher via the shared registry.
type Output struct {
	name     string
	config   Config
	registry *broadcast.Registry
	logger   *slog.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader

	mu        sync.Mutex
	running   bool
	server    *http.Server
	listener  net.Listener
	wg        *sync.WaitGroup
	shutdown  chan struct{}
	startTime time.Time

	connections    atomic.Uint64
	disconnections atomic.Uint64
	upgradeErrors  atomic.Uint64
	lastActivity   atomic.Int64
}

// NewOutput creates the WebSocket output component.
func NewOutput(deps Deps) (*Output, error) {
	if deps.Registry == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Output", "NewOutput", "subscriber registry is required")
	}
	if deps.Logger == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Output", "NewOutput", "logger is required")
	}

	name := deps.Name
	if name == "" {
		name = "websocket-output"
	}
	cfg := deps.Config
	if cfg.Bind == "" {
		cfg.Bind = "0.0.0.0"
	}
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}

	return &Output{
		name:     name,
		config:   cfg,
		registry: deps.Registry,
		logger:   deps.Logger.With("component", name),
		metrics:  newMetrics(deps.MetricsRegistry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The bridge serves local VR clients, so any origin may
			// connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// Initialize validates the configuration.
func (o *Output) Initialize() error {
	if o.config.Port < 0 || o.config.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "Initialize",
			fmt.Sprintf("invalid port %d", o.config.Port))
	}
	if !strings.HasPrefix(o.config.Path, "/") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "Initialize",
			fmt.Sprintf("path %q must start with /", o.config.Path))
	}
	return nil
}

// Handler returns the HTTP handler serving the upgrade endpoint. Exposed
// so tests can mount it on a httptest server.
func (o *Output) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(o.config.Path, o.handleWebSocket)
	return mux
}

// Start binds the listener and begins serving connections.
func (o *Output) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return errors.Wrap(errors.ErrAlreadyStarted, "Output", "Start", "start component")
	}

	addr := fmt.Sprintf("%s:%d", o.config.Bind, o.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapTransient(err, "Output", "Start", fmt.Sprintf("listen on %s", addr))
	}

	server := &http.Server{Handler: o.Handler()}
	o.listener = listener
	o.server = server
	o.shutdown = make(chan struct{})
	o.wg = &sync.WaitGroup{}
	o.running = true
	o.startTime = time.Now()

	// The serve goroutine gets its own references so a concurrent Stop
	// cannot pull the fields out from under it.
	o.wg.Add(2)
	go o.serve(server, listener)
	go o.maintainClients(ctx)

	o.logger.Info("WebSocket server listening", "addr", listener.Addr().String(), "path", o.config.Path)
	return nil
}

func (o *Output) serve(server *http.Server, listener net.Listener) {
	defer o.wg.Done()
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		o.logger.Error("WebSocket server failed", "error", err)
	}
}

// Addr reports the bound listen address, useful when Port was zero.
func (o *Output) Addr() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.listener == nil {
		return ""
	}
	return o.listener.Addr().String()
}

// handleWebSocket upgrades the connection and registers it for
// broadcast delivery.
func (o *Output) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.upgradeErrors.Add(1)
		o.metrics.incUpgradeErrors()
		o.logger.Warn("Connection upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sub := newSubscriber(conn)
	o.registry.Add(sub)
	o.connections.Add(1)
	o.lastActivity.Store(time.Now().UnixNano())
	o.metrics.incConnections()
	o.metrics.setClients(o.registry.Len())
	o.logger.Info("Client connected", "subscriber", sub.ID(), "remote", r.RemoteAddr)

	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		o.dropSubscriber(sub, "server stopping")
		return
	}
	o.wg.Add(1)
	shutdown := o.shutdown
	o.mu.Unlock()
	go o.readLoop(sub, shutdown)
}

// readLoop drains inbound frames so disconnects surface promptly. Client
// payloads carry no meaning; only the connection state matters.
func (o *Output) readLoop(sub *subscriber, shutdown <-chan struct{}) {
	defer o.wg.Done()
	defer o.dropSubscriber(sub, "connection closed")

	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-shutdown:
			return
		default:
		}

		_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// maintainClients pings every subscriber on a fixed period so dead
// connections are detected between events.
func (o *Output) maintainClients(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.shutdown:
			return
		case <-ticker.C:
			for _, s := range o.registry.Snapshot() {
				pinger, ok := s.(interface{ Ping() error })
				if !ok {
					continue
				}
				if err := pinger.Ping(); err != nil {
					o.logger.Info("Dropping unresponsive client", "subscriber", s.ID(), "error", err)
					o.registry.Remove(s)
					_ = s.Close()
					o.disconnections.Add(1)
					o.metrics.incDisconnections()
				}
			}
			o.metrics.setClients(o.registry.Len())
		}
	}
}

func (o *Output) dropSubscriber(sub *subscriber, reason string) {
	o.registry.Remove(sub)
	_ = sub.Close()
	o.disconnections.Add(1)
	o.metrics.incDisconnections()
	o.metrics.setClients(o.registry.Len())
	o.logger.Info("Client disconnected", "subscriber", sub.ID(), "reason", reason)
}

// Stop shuts the server down, waits for connection goroutines and closes
// every remaining subscriber.
func (o *Output) Stop(timeout time.Duration) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return errors.Wrap(errors.ErrNotStarted, "Output", "Stop", "stop component")
	}
	o.running = false
	close(o.shutdown)
	server := o.server
	wg := o.wg
	o.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("Server shutdown error", "error", err)
	}

	// Closing the remaining connections unblocks their read loops.
	for _, s := range o.registry.Drain() {
		_ = s.Close()
	}
	o.metrics.setClients(0)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("connection goroutines did not exit within %v", timeout),
			"Output", "Stop", "wait for goroutines")
	}

	// Only clear the references once every goroutine has let go of them.
	o.mu.Lock()
	o.server = nil
	o.listener = nil
	o.mu.Unlock()

	o.logger.Info("WebSocket server stopped")
	return nil
}

// Meta implements component.Discoverable.
func (o *Output) Meta() component.Metadata {
	return component.Metadata{
		Name:        o.name,
		Type:        "output",
		Description: fmt.Sprintf("WebSocket server on %s:%d%s broadcasting EMG events", o.config.Bind, o.config.Port, o.config.Path),
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable.
func (o *Output) Health() component.HealthStatus {
	o.mu.Lock()
	running := o.running
	var uptime time.Duration
	if running {
		uptime = time.Since(o.startTime)
	}
	o.mu.Unlock()
	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int64(o.upgradeErrors.Load()),
		Uptime:     uptime,
	}
}

// DataFlow implements component.Discoverable.
func (o *Output) DataFlow() component.FlowMetrics {
	var last time.Time
	if ns := o.lastActivity.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	var errRate float64
	total := o.connections.Load() + o.upgradeErrors.Load()
	if total > 0 {
		errRate = float64(o.upgradeErrors.Load()) / float64(total)
	}
	return component.FlowMetrics{
		ErrorRate:    errRate,
		LastActivity: last,
	}
}
