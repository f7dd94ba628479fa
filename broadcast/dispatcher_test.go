package broadcast

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwingupta21/VR-API/metric"
	"github.com/ashwingupta21/VR-API/signal"
)

func TestPublishDeliversToAll(t *testing.T) {
	r := NewRegistry()
	subs := make([]*fakeSubscriber, 3)
	for i := range subs {
		subs[i] = newFakeSubscriber(fmt.Sprintf("sub-%d", i))
		r.Add(subs[i])
	}

	d := NewDispatcher(DispatcherDeps{Registry: r})
	d.Publish(signal.EventActive)
	d.Publish(signal.EventRest)

	for _, sub := range subs {
		assert.Equal(t, []string{"1", "0"}, sub.received())
	}
}

func TestPublishRemovesExactlyTheFailing(t *testing.T) {
	r := NewRegistry()
	good1 := newFakeSubscriber("good-1")
	bad := newFakeSubscriber("middle-bad")
	good2 := newFakeSubscriber("zgood-2")
	bad.fail = true

	r.Add(good1)
	r.Add(bad)
	r.Add(good2)

	d := NewDispatcher(DispatcherDeps{Registry: r})
	d.Publish(signal.EventActive)

	// Failing subscriber removed and closed; the rest untouched and delivered
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 1, bad.closed)
	assert.Empty(t, bad.received())
	assert.Equal(t, []string{"1"}, good1.received())
	assert.Equal(t, []string{"1"}, good2.received())

	// The survivors keep receiving on the next pass
	d.Publish(signal.EventRest)
	assert.Equal(t, []string{"1", "0"}, good1.received())
	assert.Equal(t, []string{"1", "0"}, good2.received())
}

func TestPublishAllFailingLeavesEmptyRegistry(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 4; i++ {
		s := newFakeSubscriber(fmt.Sprintf("sub-%d", i))
		s.fail = true
		r.Add(s)
	}

	d := NewDispatcher(DispatcherDeps{Registry: r})
	d.Publish(signal.EventActive)

	assert.Equal(t, 0, r.Len())
}

func TestPublishEmptyRegistry(t *testing.T) {
	d := NewDispatcher(DispatcherDeps{Registry: NewRegistry()})
	// Must not panic with no subscribers
	d.Publish(signal.EventActive)
}

func TestPublishWithMetrics(t *testing.T) {
	r := NewRegistry()
	good := newFakeSubscriber("good")
	bad := newFakeSubscriber("bad")
	bad.fail = true
	r.Add(good)
	r.Add(bad)

	registry := metric.NewMetricsRegistry()
	d := NewDispatcher(DispatcherDeps{Registry: r, MetricsRegistry: registry})
	require.NotNil(t, d.metrics)

	d.Publish(signal.EventActive)

	assert.Equal(t, []string{"1"}, good.received())
	assert.Equal(t, 1, r.Len())
}
