// Package emg implements the acquisition input component: the single
// long-lived loop that binds port resolution, the device link, sample
// decoding and event publication together.
//
// The loop is a four-state machine:
//
//	DISCONNECTED → CONNECTING → STREAMING
//	                   ↑            │ connection-fatal error
//	                   └─ BACKOFF ←─┘
//
// CONNECTING resolves a port (when none is bound) and opens the link.
// STREAMING drains complete lines, decodes each into an event and hands it
// to every publisher; decode failures are logged and skipped. Any
// connection-level failure moves to BACKOFF and increments the retry
// counter; at three consecutive failures the bound port is cleared, forcing
// a full re-resolution on the next attempt. There is no terminal state:
// only context cancellation or Stop ends the loop, and the device handle is
// closed on every exit path.
package emg
