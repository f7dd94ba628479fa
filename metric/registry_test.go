package metric

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwingupta21/VR-API/errors"
)

func TestRegisterCounter(t *testing.T) {
	r := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vrapi",
		Subsystem: "emg",
		Name:      "samples_read_total",
		Help:      "Total samples read from the device",
	})

	require.NoError(t, r.RegisterCounter("emg-input", "samples_read", counter))

	// Same component/metric pair is rejected
	err := r.RegisterCounter("emg-input", "samples_read", counter)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegisterDuplicateCollectorDifferentKey(t *testing.T) {
	r := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrapi_test_total",
		Help: "test",
	})
	require.NoError(t, r.RegisterCounter("a", "m", counter))

	// Distinct key but identical prometheus identity: prometheus conflict
	dup := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrapi_test_total",
		Help: "test",
	})
	err := r.RegisterCounter("b", "m", dup)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestUnregister(t *testing.T) {
	r := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vrapi_subscribers_connected",
		Help: "test",
	})
	require.NoError(t, r.RegisterGauge("websocket-output", "subscribers", gauge))

	assert.True(t, r.Unregister("websocket-output", "subscribers"))
	assert.False(t, r.Unregister("websocket-output", "subscribers"))

	// Slot is free again after unregister
	require.NoError(t, r.RegisterGauge("websocket-output", "subscribers", gauge))
}

func TestHandlerServesMetrics(t *testing.T) {
	r := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vrapi_events_published_total",
		Help: "Total events fanned out",
	})
	require.NoError(t, r.RegisterCounter("dispatcher", "events_published", counter))
	counter.Add(4)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "vrapi_events_published_total 4"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
