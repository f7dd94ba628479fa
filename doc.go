// Package vrapi bridges a single EMG sensor on a USB-serial link to any
// number of WebSocket subscribers.
//
// # Architecture
//
// The daemon is built from small lifecycle components driven by cmd/vr-api:
//
//	┌──────────────────────────────────────┐
//	│        Acquisition (input/emg)       │  Resolve port, connect,
//	│  resolver → link → decoder → publish │  retry with backoff
//	└──────────────────┬───────────────────┘
//	                   │ signal.Event ("0" / "1")
//	┌──────────────────┴───────────────────┐
//	│     Broadcast (broadcast package)    │  Registry of subscribers,
//	│   snapshot, deliver, prune failures  │  best-effort fan-out
//	└──────────────────┬───────────────────┘
//	                   │
//	     WebSocket clients (output/websocket)
//	     optional NATS mirror (output/nats)
//
// The device side never blocks indefinitely: reads carry a bounded timeout so
// shutdown signals stay responsive, and any I/O failure on the open handle is
// connection-fatal. Retry policy lives in the acquisition loop, not in the
// link manager.
//
// Delivery to subscribers is fire-and-forget. A subscriber whose write fails
// is removed from the registry after the broadcast pass completes; it never
// prevents delivery to the remainder. Subscribers only ever receive valid
// "0"/"1" text frames, never error frames.
//
// # Device protocol
//
// The sensor emits newline-terminated ASCII decimal integers, one sample per
// line, at 115200 baud by default. A sample strictly greater than the
// activation threshold (100) produces event "1", anything else "0".
package vrapi
