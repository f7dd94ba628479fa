package emg

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ashwingupta21/VR-API/component"
	"github.com/ashwingupta21/VR-API/errors"
	"github.com/ashwingupta21/VR-API/metric"
	"github.com/ashwingupta21/VR-API/serialport"
	"github.com/ashwingupta21/VR-API/signal"
)

// Loop states. Stored in an atomic so Health can report without taking
// the component lock.
const (
	stateDisconnected int32 = iota
	stateConnecting
	stateStreaming
	stateBackoff
)

func stateName(s int32) string {
	switch s {
	case stateDisconnected:
		return "disconnected"
	case stateConnecting:
		return "connecting"
	case stateStreaming:
		return "streaming"
	case stateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Publisher receives every decoded event. The dispatcher and the NATS
// mirror both satisfy this.
type Publisher interface {
	Publish(event signal.Event)
}

// Resolver picks the serial device to bind when none is bound.
type Resolver interface {
	Resolve() (serialport.Candidate, error)
}

// Link is the device connection the loop drives. *serialport.Link
// satisfies it; tests substitute a fake.
type Link interface {
	EnsureConnected(device string) error
	ReadLines() ([][]byte, error)
	Close() error
}

// Config holds the acquisition loop timing knobs.
type Config struct {
	// PollInterval is how long to sleep when a read returns no complete
	// lines before polling again.
	PollInterval time.Duration

	// ConnectBackoff is the delay after a failed connection attempt or a
	// lost connection.
	ConnectBackoff time.Duration

	// NoPortBackoff is the shorter delay used when resolution found no
	// serial ports at all.
	NoPortBackoff time.Duration

	// RetryThreshold is the number of consecutive connection failures
	// after which the bound device is cleared and re-resolved.
	RetryThreshold int
}

// DefaultConfig returns the standard acquisition timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:   10 * time.Millisecond,
		ConnectBackoff: 5 * time.Second,
		NoPortBackoff:  1 * time.Second,
		RetryThreshold: 3,
	}
}

// Deps holds everything the acquisition component needs.
type Deps struct {
	Name            string
	Config          Config
	Resolver        Resolver
	Link            Link
	Decoder         signal.Decoder
	Publishers      []Publisher
	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
}

// Input is the acquisition component. It owns the device link for its
// whole lifetime and fans decoded events out to the configured
// publishers.
type Input struct {
	name       string
	config     Config
	resolver   Resolver
	link       Link
	decoder    signal.Decoder
	publishers []Publisher
	logger     *slog.Logger
	metrics    *Metrics

	// device is the currently bound serial device, empty when none.
	// Only touched by the run goroutine.
	device   string
	failures int

	state     atomic.Int32
	startTime time.Time

	samplesRead  atomic.Uint64
	decodeErrors atomic.Uint64
	reconnects   atomic.Uint64
	lastActivity atomic.Int64
	lastError    atomic.Value // string

	decodeWarn *rate.Limiter

	mu       sync.Mutex
	started  bool
	shutdown chan struct{}
	done     chan struct{}
}

// NewInput creates the acquisition component from its dependencies.
func NewInput(deps Deps) (*Input, error) {
	if deps.Resolver == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Input", "NewInput", "resolver is required")
	}
	if deps.Link == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Input", "NewInput", "link is required")
	}
	if len(deps.Publishers) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Input", "NewInput", "at least one publisher is required")
	}
	if deps.Logger == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Input", "NewInput", "logger is required")
	}

	name := deps.Name
	if name == "" {
		name = "emg-input"
	}
	cfg := deps.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.ConnectBackoff <= 0 {
		cfg.ConnectBackoff = 5 * time.Second
	}
	if cfg.NoPortBackoff <= 0 {
		cfg.NoPortBackoff = 1 * time.Second
	}
	if cfg.RetryThreshold <= 0 {
		cfg.RetryThreshold = 3
	}
	// A zero-value Deps.Decoder means the caller never built one.
	// Configured thresholds are always positive, validation forbids zero.
	decoder := deps.Decoder
	if decoder.Threshold == 0 {
		decoder = signal.NewDecoder(0)
	}

	in := &Input{
		name:       name,
		config:     cfg,
		resolver:   deps.Resolver,
		link:       deps.Link,
		decoder:    decoder,
		publishers: deps.Publishers,
		logger:     deps.Logger.With("component", name),
		metrics:    newMetrics(deps.MetricsRegistry),
		decodeWarn: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	in.lastError.Store("")
	return in, nil
}

// Initialize prepares the component. The link is opened lazily by the
// run loop, so there is nothing to do here beyond state reset.
func (in *Input) Initialize() error {
	in.state.Store(stateDisconnected)
	return nil
}

// Start launches the acquisition loop.
func (in *Input) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.started {
		return errors.Wrap(errors.ErrAlreadyStarted, "Input", "Start", "start component")
	}
	in.started = true
	in.startTime = time.Now()
	in.shutdown = make(chan struct{})
	in.done = make(chan struct{})
	go in.run(ctx)
	in.logger.Info("Acquisition started",
		"poll_interval", in.config.PollInterval,
		"connect_backoff", in.config.ConnectBackoff,
		"retry_threshold", in.config.RetryThreshold)
	return nil
}

// Stop signals the loop and waits for it to exit, up to timeout.
func (in *Input) Stop(timeout time.Duration) error {
	in.mu.Lock()
	if !in.started {
		in.mu.Unlock()
		return errors.Wrap(errors.ErrNotStarted, "Input", "Stop", "stop component")
	}
	in.started = false
	close(in.shutdown)
	done := in.done
	in.mu.Unlock()

	select {
	case <-done:
		in.logger.Info("Acquisition stopped")
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("acquisition loop did not exit within %v", timeout), "Input", "Stop", "wait for loop")
	}
}

func (in *Input) run(ctx context.Context) {
	defer close(in.done)
	defer func() {
		if err := in.link.Close(); err != nil {
			in.logger.Warn("Closing device link failed", "error", err)
		}
		in.setConnected(false)
		in.state.Store(stateDisconnected)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-in.shutdown:
			return
		default:
		}

		if err := in.connect(); err != nil {
			in.backoff(ctx, err)
			continue
		}

		if err := in.stream(ctx); err != nil {
			in.backoff(ctx, err)
		}
	}
}

// connect resolves a device if none is bound and opens the link to it.
func (in *Input) connect() error {
	in.state.Store(stateConnecting)

	if in.device == "" {
		candidate, err := in.resolver.Resolve()
		if err != nil {
			return errors.Wrap(err, "Input", "connect", "resolve port")
		}
		in.device = candidate.Device
		in.logger.Info("Port bound", "device", candidate.Device, "description", candidate.Description)
	}

	if err := in.link.EnsureConnected(in.device); err != nil {
		return errors.Wrap(err, "Input", "connect", "open device")
	}

	in.failures = 0
	in.setConnected(true)
	in.state.Store(stateStreaming)
	in.logger.Info("Streaming", "device", in.device)
	return nil
}

// stream drains lines from the link until the connection fails or the
// loop is told to stop. Returns nil on shutdown and the read error on a
// lost connection so the caller applies the shared retry accounting.
func (in *Input) stream(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-in.shutdown:
			return nil
		default:
		}

		lines, err := in.link.ReadLines()
		if err != nil {
			in.setConnected(false)
			in.metrics.incReconnects()
			in.reconnects.Add(1)
			in.logger.Warn("Device connection lost", "device", in.device, "error", err)
			return err
		}

		if len(lines) == 0 {
			in.sleep(ctx, in.config.PollInterval)
			continue
		}

		for _, line := range lines {
			value, event, err := in.decoder.Decode(line)
			if err != nil {
				in.decodeErrors.Add(1)
				in.metrics.incDecodeErrors()
				if in.decodeWarn.Allow() {
					in.logger.Warn("Discarding malformed sample", "line", string(line), "error", err)
				}
				continue
			}
			in.samplesRead.Add(1)
			in.metrics.incSamplesRead()
			in.lastActivity.Store(time.Now().UnixNano())
			in.logger.Debug("Sample decoded", "value", value, "event", event.String())
			for _, pub := range in.publishers {
				pub.Publish(event)
			}
		}
	}
}

// backoff handles a failed connection attempt or a lost connection:
// counts it against the retry threshold and sleeps the appropriate
// delay. Reaching the threshold clears the bound device so the next
// attempt re-resolves from scratch.
func (in *Input) backoff(ctx context.Context, err error) {
	in.recordError(err)

	if errors.Is(err, errors.ErrNoPort) {
		in.state.Store(stateBackoff)
		in.logger.Info("No serial port found, retrying", "delay", in.config.NoPortBackoff)
		in.sleep(ctx, in.config.NoPortBackoff)
		return
	}

	in.failures++
	if in.failures >= in.config.RetryThreshold && in.device != "" {
		in.logger.Warn("Too many failures on bound port, re-resolving",
			"device", in.device, "failures", in.failures)
		in.device = ""
		in.failures = 0
	} else {
		in.logger.Warn("Connection attempt failed",
			"device", in.device, "failures", in.failures, "error", err)
	}

	in.state.Store(stateBackoff)
	in.sleep(ctx, in.config.ConnectBackoff)
}

// sleep waits for d unless the context is cancelled or shutdown is
// signalled first.
func (in *Input) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-in.shutdown:
	}
}

func (in *Input) recordError(err error) {
	in.lastError.Store(err.Error())
}

func (in *Input) setConnected(connected bool) {
	in.metrics.setConnected(connected)
}

// Meta implements component.Discoverable.
func (in *Input) Meta() component.Metadata {
	return component.Metadata{
		Name:        in.name,
		Type:        "input",
		Description: "Acquires EMG samples from the serial device and publishes binary events",
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable. Healthy means the loop is
// actively streaming from the device.
func (in *Input) Health() component.HealthStatus {
	state := in.state.Load()
	lastErr := ""
	if v, ok := in.lastError.Load().(string); ok {
		lastErr = v
	}
	var uptime time.Duration
	in.mu.Lock()
	if in.started {
		uptime = time.Since(in.startTime)
	}
	in.mu.Unlock()
	return component.HealthStatus{
		Healthy:    state == stateStreaming,
		LastCheck:  time.Now(),
		ErrorCount: int64(in.decodeErrors.Load() + in.reconnects.Load()),
		LastError:  lastErr,
		Uptime:     uptime,
	}
}

// DataFlow implements component.Discoverable.
func (in *Input) DataFlow() component.FlowMetrics {
	var last time.Time
	if ns := in.lastActivity.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	var perSecond float64
	in.mu.Lock()
	if in.started {
		if elapsed := time.Since(in.startTime).Seconds(); elapsed > 0 {
			perSecond = float64(in.samplesRead.Load()) / elapsed
		}
	}
	in.mu.Unlock()
	var errRate float64
	total := in.samplesRead.Load() + in.decodeErrors.Load()
	if total > 0 {
		errRate = float64(in.decodeErrors.Load()) / float64(total)
	}
	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		ErrorRate:         errRate,
		LastActivity:      last,
	}
}

// State reports the loop state as a string, for logs and health detail.
func (in *Input) State() string {
	return stateName(in.state.Load())
}
