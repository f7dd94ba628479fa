package health

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ashwingupta21/VR-API/component"
)

// Checker collects components and serves their aggregated health.
type Checker struct {
	systemName string

	mu         sync.RWMutex
	components []component.Discoverable
}

// NewChecker creates a checker reporting under the given system name.
func NewChecker(systemName string) *Checker {
	return &Checker{systemName: systemName}
}

// Register adds a component to the health report.
func (c *Checker) Register(comp component.Discoverable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, comp)
}

// Check polls every registered component and aggregates the result.
func (c *Checker) Check() Status {
	c.mu.RLock()
	components := make([]component.Discoverable, len(c.components))
	copy(components, c.components)
	c.mu.RUnlock()

	statuses := make([]Status, 0, len(components))
	for _, comp := range components {
		statuses = append(statuses, FromComponent(comp))
	}
	return Aggregate(c.systemName, statuses)
}

// Handler returns the health endpoint. Healthy systems answer 200,
// unhealthy ones 503; both carry the full JSON report.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := c.Check()

		w.Header().Set("Content-Type", "application/json")
		if status.Healthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}
