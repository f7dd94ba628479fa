package serialport

import (
	"log/slog"
	"strings"

	"go.bug.st/serial/enumerator"

	"github.com/ashwingupta21/VR-API/errors"
)

// DefaultMarkers are the adapter identifiers matched against port
// descriptions when picking the EMG device. Matching is case-sensitive
// substring, in enumeration order.
var DefaultMarkers = []string{"USB", "Serial", "FTDI", "CH340", "CP210"}

// Candidate is a discovered serial device. Ephemeral: produced fresh on
// every resolution attempt, never persisted.
type Candidate struct {
	Device      string
	Description string
}

// enumerateFunc lists the host's serial ports; swapped out in tests.
type enumerateFunc func() ([]*enumerator.PortDetails, error)

// Resolver selects the best serial port candidate by heuristic matching.
type Resolver struct {
	enumerate enumerateFunc
	markers   []string
	logger    *slog.Logger
}

// NewResolver creates a resolver. Nil markers selects DefaultMarkers.
func NewResolver(logger *slog.Logger, markers []string) *Resolver {
	if logger == nil {
		logger = slog.Default().With("component", "port-resolver")
	}
	if markers == nil {
		markers = DefaultMarkers
	}
	return &Resolver{
		enumerate: enumerator.GetDetailedPortsList,
		markers:   markers,
		logger:    logger,
	}
}

// Resolve enumerates the currently visible serial ports and returns the
// first one whose description contains a known marker, or the first port at
// all as a best-effort fallback. Returns an error wrapping errors.ErrNoPort
// when no port is visible.
//
// If several matching devices are present, selection follows enumeration
// order, which the OS does not guarantee to be stable across calls.
func (r *Resolver) Resolve() (Candidate, error) {
	ports, err := r.enumerate()
	if err != nil {
		return Candidate{}, errors.WrapTransient(err, "PortResolver", "Resolve", "enumerate serial ports")
	}

	if len(ports) == 0 {
		return Candidate{}, errors.WrapTransient(errors.ErrNoPort, "PortResolver", "Resolve", "enumerate serial ports")
	}

	for _, p := range ports {
		r.logger.Info("serial port visible",
			"device", p.Name,
			"description", describe(p),
			"usb", p.IsUSB)
	}

	for _, p := range ports {
		desc := describe(p)
		for _, marker := range r.markers {
			if strings.Contains(desc, marker) {
				r.logger.Info("matched serial device",
					"device", p.Name,
					"description", desc,
					"marker", marker)
				return Candidate{Device: p.Name, Description: desc}, nil
			}
		}
	}

	first := ports[0]
	r.logger.Info("no marker matched, using first available port",
		"device", first.Name,
		"description", describe(first))
	return Candidate{Device: first.Name, Description: describe(first)}, nil
}

// describe builds the human-readable description used for matching. USB
// devices report their product string; anything else has no description.
func describe(p *enumerator.PortDetails) string {
	if p.Product != "" {
		return p.Product
	}
	if p.IsUSB {
		return "USB device " + p.VID + ":" + p.PID
	}
	return ""
}
