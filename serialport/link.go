package serialport

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/ashwingupta21/VR-API/errors"
)

const (
	// DefaultBaudRate matches the EMG firmware's line speed.
	DefaultBaudRate = 115200
	// DefaultReadTimeout bounds a single read so the acquisition loop
	// stays responsive to shutdown.
	DefaultReadTimeout = 1 * time.Second
	// DefaultReleaseWait is how long the OS gets to release a handle
	// after a busy port's owner was terminated.
	DefaultReleaseWait = 500 * time.Millisecond

	// maxPendingBytes caps the partial-line buffer. A stream that long
	// without a newline is not the EMG protocol.
	maxPendingBytes = 64 * 1024

	readBufferSize = 4096
)

// Port is the narrow surface of an open serial handle the link needs.
type Port interface {
	Read(p []byte) (n int, err error)
	Close() error
}

// Opener opens a serial device. The production opener wraps
// go.bug.st/serial; tests inject fakes.
type Opener func(device string, baudRate int, readTimeout time.Duration) (Port, error)

func defaultOpener(device string, baudRate int, readTimeout time.Duration) (Port, error) {
	mode := &serial.Mode{BaudRate: baudRate}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, err
	}
	return port, nil
}

// isBusy reports whether an open failure means the device is held by
// another process.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortBusy {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "resource busy")
}

// LinkConfig holds tunables for the device link.
type LinkConfig struct {
	BaudRate    int
	ReadTimeout time.Duration
	ReleaseWait time.Duration
}

// DefaultLinkConfig returns the EMG device defaults.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
		ReleaseWait: DefaultReleaseWait,
	}
}

// LinkDeps holds construction dependencies for the Link.
type LinkDeps struct {
	Config    LinkConfig
	Opener    Opener
	Reclaimer Reclaimer
	Logger    *slog.Logger
}

// Link owns the single live device handle. At most one handle exists
// process-wide; all access goes through the link's methods.
type Link struct {
	baudRate    int
	readTimeout time.Duration
	releaseWait time.Duration
	open        Opener
	reclaimer   Reclaimer
	logger      *slog.Logger

	mu      sync.Mutex
	port    Port
	device  string
	pending []byte
	readBuf []byte
}

// NewLink creates a device link. Zero-value config fields fall back to
// defaults; a nil reclaimer disables forced reclaim.
func NewLink(deps LinkDeps) *Link {
	cfg := deps.Config
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.ReleaseWait == 0 {
		cfg.ReleaseWait = DefaultReleaseWait
	}
	open := deps.Opener
	if open == nil {
		open = defaultOpener
	}
	reclaimer := deps.Reclaimer
	if reclaimer == nil {
		reclaimer = NopReclaimer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "device-link")
	}

	return &Link{
		baudRate:    cfg.BaudRate,
		readTimeout: cfg.ReadTimeout,
		releaseWait: cfg.ReleaseWait,
		open:        open,
		reclaimer:   reclaimer,
		logger:      logger,
		readBuf:     make([]byte, readBufferSize),
	}
}

// EnsureConnected opens the device if it is not already open. A no-op when
// a healthy handle for the same device exists.
//
// Before the real open the link probes the port with an open-and-close. A
// busy probe triggers the reclaimer, then a brief wait for the OS to
// release the handle, then exactly one real open attempt whose error
// propagates to the caller.
func (l *Link) EnsureConnected(device string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port != nil {
		if l.device == device {
			return nil
		}
		l.closeLocked()
	}

	if probe, err := l.open(device, l.baudRate, l.readTimeout); err == nil {
		_ = probe.Close()
	} else if isBusy(err) {
		l.logger.Warn("port busy, attempting reclaim", "device", device)
		if rerr := l.reclaimer.Reclaim(device); rerr != nil {
			return errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrPortBusy, rerr),
				"DeviceLink", "EnsureConnected", "reclaim busy port")
		}
		// Give the OS a moment to release the terminated owner's handle
		time.Sleep(l.releaseWait)
	}

	port, err := l.open(device, l.baudRate, l.readTimeout)
	if err != nil {
		if isBusy(err) {
			return errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrPortBusy, err),
				"DeviceLink", "EnsureConnected", "open port")
		}
		return errors.WrapTransient(err, "DeviceLink", "EnsureConnected", "open port")
	}

	l.port = port
	l.device = device
	l.pending = nil
	l.logger.Info("device connected",
		"device", device,
		"baud_rate", l.baudRate,
		"read_timeout", l.readTimeout)
	return nil
}

// ReadLines performs one bounded read and returns the complete lines
// accumulated so far, without trailing newlines. A timeout with no data
// returns (nil, nil).
//
// Any read error is connection-fatal: the handle is force-closed, internal
// state cleared, and an error wrapping errors.ErrConnectionLost returned.
func (l *Link) ReadLines() ([][]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return nil, errors.WrapTransient(errors.ErrNotConnected, "DeviceLink", "ReadLines", "read device")
	}

	n, err := l.port.Read(l.readBuf)
	if err != nil {
		device := l.device
		l.closeLocked()
		l.logger.Warn("device read failed, handle closed", "device", device, "error", err)
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrConnectionLost, err),
			"DeviceLink", "ReadLines", "read device")
	}
	if n == 0 {
		// Read timeout, no pending bytes
		return nil, nil
	}

	l.pending = append(l.pending, l.readBuf[:n]...)

	var lines [][]byte
	for {
		idx := bytes.IndexByte(l.pending, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, l.pending[:idx])
		l.pending = l.pending[idx+1:]
		lines = append(lines, line)
	}

	if len(l.pending) > maxPendingBytes {
		l.logger.Warn("discarding oversized partial line", "bytes", len(l.pending), "device", l.device)
		l.pending = nil
	}

	return lines, nil
}

// Connected reports whether a device handle is currently open.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port != nil
}

// Device returns the port identifier of the open handle, or "".
func (l *Link) Device() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.device
}

// Close releases the device handle. Safe to call repeatedly.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.port == nil {
		return nil
	}
	device := l.device
	err := l.port.Close()
	l.port = nil
	l.device = ""
	l.pending = nil
	l.logger.Info("device closed", "device", device)
	if err != nil {
		return errors.Wrap(err, "DeviceLink", "Close", "close port")
	}
	return nil
}

// closeLocked force-closes the handle with the lock already held.
func (l *Link) closeLocked() {
	if l.port != nil {
		_ = l.port.Close()
	}
	l.port = nil
	l.device = ""
	l.pending = nil
}
