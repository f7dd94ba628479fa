package health

import (
	"time"

	"github.com/ashwingupta21/VR-API/component"
)

// Status represents the health state of a component or the whole system.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy" or "unhealthy"
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics contains health-related metrics.
type Metrics struct {
	Uptime       time.Duration `json:"uptime"`
	ErrorCount   int64         `json:"error_count"`
	LastActivity time.Time     `json:"last_activity,omitempty"`
}

// IsHealthy returns true if the status is healthy.
func (s Status) IsHealthy() bool {
	return s.Healthy
}

// NewHealthy creates a new healthy status.
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    "healthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates a new unhealthy status.
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "unhealthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// FromComponent converts a component's self-report into a Status.
func FromComponent(c component.Discoverable) Status {
	meta := c.Meta()
	ch := c.Health()
	flow := c.DataFlow()

	status := "unhealthy"
	if ch.Healthy {
		status = "healthy"
	}
	return Status{
		Component: meta.Name,
		Healthy:   ch.Healthy,
		Status:    status,
		Message:   ch.LastError,
		Timestamp: ch.LastCheck,
		Metrics: &Metrics{
			Uptime:       ch.Uptime,
			ErrorCount:   ch.ErrorCount,
			LastActivity: flow.LastActivity,
		},
	}
}

// Aggregate combines component statuses into one system status. Any
// unhealthy component makes the system unhealthy.
func Aggregate(systemName string, statuses []Status) Status {
	agg := NewHealthy(systemName, "all components healthy")
	agg.SubStatuses = statuses

	unhealthy := 0
	for _, s := range statuses {
		if !s.Healthy {
			unhealthy++
		}
	}
	if unhealthy > 0 {
		agg.Healthy = false
		agg.Status = "unhealthy"
		agg.Message = "one or more components unhealthy"
	}
	if len(statuses) == 0 {
		agg.Message = "no components registered"
	}
	return agg
}
