package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwingupta21/VR-API/component"
)

type stubComponent struct {
	name    string
	healthy bool
	lastErr string
}

func (s *stubComponent) Meta() component.Metadata {
	return component.Metadata{Name: s.name, Type: "test", Version: "1.0.0"}
}

func (s *stubComponent) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    s.healthy,
		LastCheck:  time.Now(),
		LastError:  s.lastErr,
		ErrorCount: 2,
		Uptime:     time.Minute,
	}
}

func (s *stubComponent) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{LastActivity: time.Now()}
}

func TestFromComponent(t *testing.T) {
	status := FromComponent(&stubComponent{name: "emg-input", healthy: true})
	assert.Equal(t, "emg-input", status.Component)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "healthy", status.Status)
	require.NotNil(t, status.Metrics)
	assert.Equal(t, time.Minute, status.Metrics.Uptime)
	assert.Equal(t, int64(2), status.Metrics.ErrorCount)

	status = FromComponent(&stubComponent{name: "emg-input", healthy: false, lastErr: "device gone"})
	assert.False(t, status.IsHealthy())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "device gone", status.Message)
}

func TestAggregate(t *testing.T) {
	healthy := NewHealthy("a", "")
	unhealthy := NewUnhealthy("b", "broken")

	agg := Aggregate("system", []Status{healthy, healthy})
	assert.True(t, agg.Healthy)
	assert.Len(t, agg.SubStatuses, 2)

	agg = Aggregate("system", []Status{healthy, unhealthy})
	assert.False(t, agg.Healthy)
	assert.Equal(t, "unhealthy", agg.Status)

	agg = Aggregate("system", nil)
	assert.True(t, agg.Healthy)
	assert.Equal(t, "no components registered", agg.Message)
}

func TestCheckerHandler(t *testing.T) {
	checker := NewChecker("vr-api")
	checker.Register(&stubComponent{name: "websocket-output", healthy: true})

	srv := httptest.NewServer(checker.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "vr-api", status.Component)
	require.Len(t, status.SubStatuses, 1)
	assert.Equal(t, "websocket-output", status.SubStatuses[0].Component)

	checker.Register(&stubComponent{name: "emg-input", healthy: false, lastErr: "no port"})
	resp, err = http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
