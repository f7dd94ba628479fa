// Package broadcast fans decoded events out to a dynamic set of
// subscribers.
//
// The Registry is the only mutable structure shared between the acquisition
// side (one producer) and the connection-handling side (many goroutines
// adding and removing subscribers). Snapshot returns a point-in-time copy so
// delivery never happens under the registry lock: a slow or failing
// subscriber cannot block registration of others.
//
// The Dispatcher iterates a snapshot, delivers to each subscriber
// independently, collects the ones whose writes fail and removes them after
// the pass completes. Delivery is fire-and-forget: no acknowledgment, no
// retry.
package broadcast
