// Package errors provides standardized error handling for the EMG bridge.
//
// It defines the failure taxonomy of the acquisition pipeline as sentinel
// errors (no port, busy port, lost connection, malformed sample, failed
// subscriber delivery), a classification scheme used by the acquisition loop
// to decide between retry, skip and abort, and wrap helpers that produce
// uniform "component.method: action failed: ..." messages.
//
// Classification rules:
//
//   - transient: recovered by backoff and reconnection (device absent,
//     connection lost, busy port)
//   - invalid: the input is bad, skip it and continue (malformed sample
//     lines, bad configuration values caught at startup)
//   - fatal: unrecoverable, stop the process (resource exhaustion)
//
// Use WrapTransient, WrapInvalid and WrapFatal at the point where the
// failure class is known; use Classify or the Is* predicates where errors
// are consumed.
package errors
