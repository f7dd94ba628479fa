package serialport

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/ashwingupta21/VR-API/errors"
)

// Reclaimer frees a serial device held by another process so the link can
// open it. Implementations are platform-specific and injected into the
// Link, keeping the connection logic platform-agnostic.
type Reclaimer interface {
	Reclaim(device string) error
}

// NopReclaimer never reclaims. Used where forced reclaim is unavailable or
// unwanted; the subsequent open attempt surfaces the busy error instead.
type NopReclaimer struct{}

// Reclaim reports that reclaiming is not supported.
func (NopReclaimer) Reclaim(device string) error {
	return fmt.Errorf("%w: reclaim not supported on this platform", errors.ErrPortBusy)
}

// ProcReclaimer locates the process holding a device by walking /proc for
// open file descriptors pointing at the device node, and terminates it
// with SIGTERM.
type ProcReclaimer struct {
	procRoot string
	kill     func(pid int) error
	logger   *slog.Logger
}

// NewProcReclaimer creates a /proc-based reclaimer.
func NewProcReclaimer(logger *slog.Logger) *ProcReclaimer {
	if logger == nil {
		logger = slog.Default().With("component", "port-reclaimer")
	}
	return &ProcReclaimer{
		procRoot: "/proc",
		kill: func(pid int) error {
			return unix.Kill(pid, unix.SIGTERM)
		},
		logger: logger,
	}
}

// Reclaim scans for processes with the device open and sends each SIGTERM.
// Entries that cannot be inspected (permissions, races with exiting
// processes) are skipped. Returns an error when no owner was found or
// terminated, so the caller can propagate the busy condition.
func (r *ProcReclaimer) Reclaim(device string) error {
	entries, err := os.ReadDir(r.procRoot)
	if err != nil {
		return errors.Wrap(err, "ProcReclaimer", "Reclaim", "scan process table")
	}

	self := os.Getpid()
	terminated := 0

	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self {
			continue
		}

		fdDir := filepath.Join(r.procRoot, entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}

		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil || target != device {
				continue
			}

			r.logger.Warn("terminating process holding device",
				"device", device,
				"pid", pid)
			if err := r.kill(pid); err != nil {
				r.logger.Warn("failed to terminate holder", "pid", pid, "error", err)
				continue
			}
			terminated++
			break
		}
	}

	if terminated == 0 {
		return fmt.Errorf("no terminable process found holding %s", device)
	}
	return nil
}
