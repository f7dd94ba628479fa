package broadcast

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriber records frames and can be scripted to fail sends.
type fakeSubscriber struct {
	id     string
	mu     sync.Mutex
	frames []string
	fail   bool
	closed int
}

func newFakeSubscriber(id string) *fakeSubscriber {
	return &fakeSubscriber{id: id}
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("write to closed connection")
	}
	f.frames = append(f.frames, string(frame))
	return nil
}

func (f *fakeSubscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSubscriber) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frames))
	copy(out, f.frames)
	return out
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()
	s := newFakeSubscriber("a")

	r.Add(s)
	assert.Equal(t, 1, r.Len())

	r.Remove(s)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Snapshot())
}

func TestRegistryAddTwiceKeepsOneEntry(t *testing.T) {
	r := NewRegistry()
	s := newFakeSubscriber("a")

	r.Add(s)
	r.Add(s)

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "a", snapshot[0].ID())
}

func TestRegistryRemoveAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Remove(newFakeSubscriber("ghost"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistrySnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	a := newFakeSubscriber("a")
	b := newFakeSubscriber("b")
	r.Add(a)
	r.Add(b)

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 2)

	// Mutating the registry does not affect the snapshot
	r.Remove(a)
	assert.Len(t, snapshot, 2)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDrain(t *testing.T) {
	r := NewRegistry()
	r.Add(newFakeSubscriber("a"))
	r.Add(newFakeSubscriber("b"))

	drained := r.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Drain())
}

func TestRegistryConcurrentMutation(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := newFakeSubscriber(fmt.Sprintf("sub-%d-%d", n, j))
				r.Add(s)
				_ = r.Snapshot()
				r.Remove(s)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
