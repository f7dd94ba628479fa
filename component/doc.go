// Package component defines the lifecycle contract shared by the bridge's
// long-running pieces (the EMG acquisition input, the WebSocket output and
// the optional NATS mirror).
//
// Components follow a unified pattern:
//
//   - Initialize() error                 // validate configuration, no I/O
//   - Start(ctx context.Context) error   // spawn goroutines, bind sockets
//   - Stop(timeout time.Duration) error  // graceful shutdown with deadline
//
// Components never store the context passed to Start; they receive it as a
// parameter and derive their own shutdown signalling from it. cmd/vr-api
// starts components in dependency order and stops them in reverse.
package component
