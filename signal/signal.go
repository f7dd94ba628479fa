// Package signal turns raw device lines into binary activation events.
//
// The EMG sensor emits one ASCII decimal integer per line. A sample strictly
// greater than the activation threshold produces EventActive, anything else
// EventRest. Malformed lines yield an invalid-class error; the acquisition
// loop logs and drops them without touching connection state.
package signal

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/ashwingupta21/VR-API/errors"
)

// DefaultThreshold is the activation cutoff: samples above it count as a
// muscle contraction.
const DefaultThreshold = 100

// Event is the binary broadcast value derived from one sample.
type Event int

const (
	// EventRest indicates the sample was at or below the threshold
	EventRest Event = 0
	// EventActive indicates the sample strictly exceeded the threshold
	EventActive Event = 1
)

// String returns the wire representation sent to subscribers.
func (e Event) String() string {
	if e == EventActive {
		return "1"
	}
	return "0"
}

// Frame returns the event as the UTF-8 text frame payload.
func (e Event) Frame() []byte {
	return []byte(e.String())
}

// Decoder converts device lines into events.
type Decoder struct {
	// Threshold is the exclusive lower bound for EventActive.
	Threshold int
}

// NewDecoder returns a decoder with the given threshold. Zero means
// "not configured" and yields DefaultThreshold; config validation
// rejects an explicit zero, so the two cases cannot collide.
func NewDecoder(threshold int) Decoder {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return Decoder{Threshold: threshold}
}

// Classify applies the activation threshold to an already-parsed sample.
func (d Decoder) Classify(value int) Event {
	if value > d.Threshold {
		return EventActive
	}
	return EventRest
}

// Decode parses one newline-stripped device line into an event, returning
// the raw sample value alongside for logging.
//
// The line must be valid UTF-8 containing a base-10 integer, surrounded by
// optional whitespace. Anything else returns an error wrapping
// errors.ErrParsingFailed.
func (d Decoder) Decode(line []byte) (int, Event, error) {
	trimmed := bytes.TrimSpace(line)

	if len(trimmed) == 0 {
		return 0, EventRest, errors.WrapInvalid(
			fmt.Errorf("%w: empty line", errors.ErrParsingFailed),
			"Decoder", "Decode", "parse sample")
	}
	if !utf8.Valid(trimmed) {
		return 0, EventRest, errors.WrapInvalid(
			fmt.Errorf("%w: line is not valid UTF-8", errors.ErrParsingFailed),
			"Decoder", "Decode", "parse sample")
	}

	value, err := strconv.Atoi(string(trimmed))
	if err != nil {
		return 0, EventRest, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"Decoder", "Decode", "parse sample")
	}

	return value, d.Classify(value), nil
}
