package broadcast

import (
	"sort"
	"sync"
)

// Subscriber is an addressable endpoint capable of receiving an event frame.
// Implementations must tolerate Close being called more than once.
type Subscriber interface {
	// ID uniquely identifies the subscriber for the registry and logs.
	ID() string
	// Send delivers one UTF-8 text frame. A non-nil error marks the
	// subscriber dead; the dispatcher will remove and close it.
	Send(frame []byte) error
	// Close releases the underlying connection.
	Close() error
}

// Registry is a concurrency-safe set of active subscribers keyed by ID.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber
}

// NewRegistry creates an empty subscriber registry.
func NewRegistry() *Registry {
	return &Registry{
		subscribers: make(map[string]Subscriber),
	}
}

// Add registers a subscriber. Re-adding the same ID replaces the previous
// entry, so a subscriber is never present twice.
func (r *Registry) Add(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[s.ID()] = s
}

// Remove deregisters a subscriber by identity. Removing an absent
// subscriber is a no-op.
func (r *Registry) Remove(s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, s.ID())
}

// Snapshot returns a point-in-time copy sorted by ID, safe to iterate
// without holding the registry lock.
func (r *Registry) Snapshot() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Subscriber, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// Drain removes and returns every registered subscriber. Used at shutdown
// so connections can be closed exactly once.
func (r *Registry) Drain() []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscriber, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		out = append(out, s)
	}
	r.subscribers = make(map[string]Subscriber)
	return out
}
