package health

import (
	"fmt"
	"testing"
	"time"
)

func TestManager_Aggregation(t *testing.T) {
	m := NewManager(nil)

	if !m.IsHealthy() {
		t.Error("empty manager should be healthy")
	}

	m.Register("terminal", func() error { return nil })
	if !m.IsHealthy() {
		t.Error("healthy component should not fail manager")
	}

	m.Register("bridge", func() error { return fmt.Errorf("socket closed") })
	if m.IsHealthy() {
		t.Error("unhealthy component should fail manager")
	}

	status := m.GetStatus()
	if status["terminal"] != "Healthy" {
		t.Errorf("expected Healthy, got %s", status["terminal"])
	}
	if status["bridge"] != "Unhealthy: socket closed" {
		t.Errorf("expected Unhealthy, got %s", status["bridge"])
	}
}

func TestManager_RegisterReplaces(t *testing.T) {
	m := NewManager(nil)
	m.Register("terminal", func() error { return fmt.Errorf("down") })
	m.Register("terminal", func() error { return nil })
	if !m.IsHealthy() {
		t.Error("replaced check should win")
	}
}

func TestManager_Uptime(t *testing.T) {
	m := NewManager(nil)
	time.Sleep(5 * time.Millisecond)
	if m.Uptime() <= 0 {
		t.Error("uptime should be positive")
	}
}
