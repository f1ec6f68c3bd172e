package server

import (
	"math"
	"net/http"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
)

// handleHealth reports the full picture: process uptime, terminal state, the
// logged-in account, and the last connection diagnostic. Always 200; this is
// a diagnostic view, not a probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":         "healthy",
		"mt5_status":     s.conn.State().String(),
		"uptime_seconds": math.Round(s.health.Uptime().Seconds()*100) / 100,
		"components":     s.health.GetStatus(),
	}

	var account interface{}
	if s.conn.IsConnected() {
		if info, err := s.data.Account(r.Context()); err == nil {
			account = info.Login
		}
	}
	response["mt5_account"] = account

	if lastErr := s.conn.LastError(); lastErr != "" {
		response["last_error"] = lastErr
	} else {
		response["last_error"] = nil
	}

	respondJSON(w, http.StatusOK, response)
}

// handleReady is the readiness probe: 503 exactly when the terminal session
// is not connected.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.conn.State() == core.StateConnected {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "ready",
			"mt5_status": s.conn.State().String(),
		})
		return
	}
	respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
		"status":     "not_ready",
		"mt5_status": s.conn.State().String(),
		"error":      s.conn.LastError(),
	})
}

// handleLive always answers 200 while the process runs.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
