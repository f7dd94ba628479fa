// Package serialport owns the physical side of the bridge: discovering the
// EMG device among the host's serial ports and managing the lifecycle of
// the single open connection to it.
//
// The Resolver enumerates serial-capable devices and picks the best
// candidate by matching known USB-serial adapter markers against port
// descriptions, falling back to the first enumerated port.
//
// The Link holds the process-wide device handle. Opening is idempotent, a
// busy port is reclaimed through an injected Reclaimer before one final
// open attempt, and reads are bounded by the port's read timeout so callers
// are never blocked indefinitely. Any I/O failure on an open handle is
// connection-fatal: the link force-closes, clears its state and returns the
// error; retry policy belongs to the acquisition loop.
//
// The Reclaimer abstracts the platform-specific step of freeing a port
// held by a stale process. ProcReclaimer walks /proc for file descriptors
// pointing at the device node and terminates the owner.
package serialport
