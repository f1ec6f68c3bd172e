package health

import (
	"sync"
	"time"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
)

// Manager aggregates health checks from gateway components and tracks
// process uptime for the health endpoints.
type Manager struct {
	logger core.ILogger
	start  time.Time
	mu     sync.RWMutex
	checks map[string]func() error
}

// NewManager creates an empty health manager. A manager with no registered
// checks reports healthy.
func NewManager(logger core.ILogger) *Manager {
	m := &Manager{
		start:  time.Now(),
		checks: make(map[string]func() error),
	}
	if logger != nil {
		m.logger = logger.WithField("component", "health_manager")
	}
	return m
}

// Register adds a health check for a component. Re-registering replaces the
// previous check.
func (m *Manager) Register(component string, check func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[component] = check
}

// GetStatus evaluates every registered check and returns a per-component
// status string.
func (m *Manager) GetStatus() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]string, len(m.checks))
	for component, check := range m.checks {
		if err := check(); err != nil {
			status[component] = "Unhealthy: " + err.Error()
		} else {
			status[component] = "Healthy"
		}
	}
	return status
}

// IsHealthy reports whether every registered check passes.
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, check := range m.checks {
		if err := check(); err != nil {
			return false
		}
	}
	return true
}

// Uptime returns the time since the manager was created.
func (m *Manager) Uptime() time.Duration {
	return time.Since(m.start)
}
