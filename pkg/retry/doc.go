// Package retry provides simple exponential backoff retry logic for
// transient failures.
//
// The bridge uses it in two places: binding the NATS mirror connection at
// startup, and the serial open path, where the device may appear a moment
// after the daemon starts. The acquisition loop itself does not use this
// package; its backoff policy is part of the state machine in input/emg.
//
// Basic usage:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return link.EnsureConnected(device)
//	})
//
// All retry operations respect context cancellation and stop immediately
// when the context is cancelled, including during a backoff delay. Errors
// wrapped with NonRetryable abort the loop at once.
package retry
