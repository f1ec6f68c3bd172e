// Package connection owns the lifecycle of the single terminal session:
// a state machine over {disconnected, reconnecting, connected} with bounded
// exponential-backoff reconnection and an on-demand liveness probe.
//
// Reconnection is lazy: every trading request passes through Ensure, which
// revalidates the session and reconnects in place when it has gone stale.
// There is no background heartbeat; the blocking backoff wait inside a
// request-handling call is deliberate and mirrors the synchronous nature of
// the underlying session protocol.
package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/config"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
	"github.com/Gabriel-Rockson/mt5-gateway/pkg/telemetry"
)

// Manager drives the terminal session lifecycle. Construct one per process
// and inject it everywhere; the session is inherently singular.
type Manager struct {
	terminal core.Terminal
	logger   core.ILogger

	maxAttempts int
	baseDelay   time.Duration

	mu        sync.RWMutex
	state     core.ConnectionState
	lastError string
}

// NewManager creates a manager in the disconnected state.
func NewManager(terminal core.Terminal, cfg config.ConnectionConfig, logger core.ILogger) *Manager {
	return &Manager{
		terminal:    terminal,
		logger:      logger.WithField("component", "connection"),
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   time.Duration(cfg.BaseDelaySeconds * float64(time.Second)),
		state:       core.StateDisconnected,
	}
}

// setState is the only place the connection status changes. Transitions are
// logged with the prior state and the diagnostic that caused them.
func (m *Manager) setState(newState core.ConnectionState, diagnostic string) {
	m.mu.Lock()
	oldState := m.state
	m.state = newState
	m.lastError = diagnostic
	m.mu.Unlock()

	telemetry.GetGlobalMetrics().SetConnectionState(int64(newState))

	if oldState != newState {
		m.logger.Info("terminal connection state changed",
			"old_status", oldState.String(),
			"new_status", newState.String(),
			"error", diagnostic,
		)
	}
}

// State returns the current connection state.
func (m *Manager) State() core.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastError returns the most recent transition diagnostic.
func (m *Manager) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// IsConnected reports whether the session is believed usable.
func (m *Manager) IsConnected() bool {
	return m.State() == core.StateConnected
}

// Initialize attempts the terminal login up to maxAttempts times. The delay
// before attempt k (k>1) is baseDelay*2^(k-2); the wait blocks the calling
// goroutine. An attempt succeeds only when the handshake completes and the
// account-info probe returns data.
func (m *Manager) Initialize(ctx context.Context) error {
	// Cap high enough that the final delay baseDelay*2^(maxAttempts-2) is
	// never truncated.
	maxBackoff := m.baseDelay
	for i := 1; i < m.maxAttempts; i++ {
		maxBackoff *= 2
	}

	policy := retrypolicy.NewBuilder[*core.AccountInfo]().
		WithMaxAttempts(m.maxAttempts).
		WithBackoff(m.baseDelay, maxBackoff).
		OnRetryScheduled(func(e failsafe.ExecutionScheduledEvent[*core.AccountInfo]) {
			attempt := e.Attempts() + 1
			telemetry.GetGlobalMetrics().RecordReconnect(ctx)
			m.setState(core.StateReconnecting,
				fmt.Sprintf("Reconnection attempt %d/%d", attempt, m.maxAttempts))
		}).
		Build()

	account, err := failsafe.With[*core.AccountInfo](policy).
		WithContext(ctx).
		Get(func() (*core.AccountInfo, error) {
			return m.attempt(ctx)
		})
	if err != nil {
		finalError := fmt.Sprintf("Failed to initialize terminal after %d attempts", m.maxAttempts)
		m.logger.Error(finalError, "last_error", err.Error())
		m.setState(core.StateDisconnected, finalError)
		return apperrors.Connection("initialize", finalError)
	}

	m.logger.Info("terminal initialized successfully",
		"account", account.Login,
		"server", account.Server,
	)
	m.setState(core.StateConnected, "")
	return nil
}

// attempt performs one handshake plus account-info probe.
func (m *Manager) attempt(ctx context.Context) (*core.AccountInfo, error) {
	if err := m.terminal.Connect(ctx); err != nil {
		errMsg := fmt.Sprintf("terminal initialization failed: %s", err)
		m.logger.Error(errMsg)
		m.setState(core.StateDisconnected, errMsg)
		return nil, err
	}

	account, err := m.terminal.AccountInfo(ctx)
	if err == nil && account == nil {
		err = fmt.Errorf("account info probe returned no data")
	}
	if err != nil {
		errMsg := fmt.Sprintf("terminal initialization failed: %s", err)
		m.logger.Error(errMsg)
		m.setState(core.StateDisconnected, errMsg)
		return nil, err
	}

	return account, nil
}

// Ensure makes the session usable or returns a connection error. When the
// state is connected it runs a cheap liveness probe; a failed probe drops the
// state and falls through to a full Initialize. Safe to call concurrently:
// probes and reconnect attempts are idempotent, so racing callers at worst
// duplicate work.
func (m *Manager) Ensure(ctx context.Context) error {
	if m.IsConnected() {
		account, err := m.terminal.AccountInfo(ctx)
		if err == nil && account != nil {
			return nil
		}
		if err != nil {
			m.logger.Warn("terminal connection check failed", "error", err.Error())
			m.setState(core.StateDisconnected, err.Error())
		} else {
			m.logger.Warn("terminal connection lost, account info probe returned no data")
			m.setState(core.StateDisconnected, "Connection lost")
		}
	}

	m.logger.Info("attempting to reconnect to terminal")
	return m.Initialize(ctx)
}

// Shutdown performs a best-effort graceful logout and marks the session
// disconnected. Idempotent.
func (m *Manager) Shutdown() {
	if m.State() == core.StateDisconnected {
		return
	}

	if err := m.terminal.Close(); err != nil {
		m.logger.Error("error during terminal shutdown", "error", err.Error())
	} else {
		m.logger.Info("terminal connection shut down gracefully")
	}
	m.setState(core.StateDisconnected, "")
}

// CheckHealth implements the health-check contract for the health manager.
func (m *Manager) CheckHealth() error {
	if !m.IsConnected() {
		return fmt.Errorf("terminal %s: %s", m.State(), m.LastError())
	}
	return nil
}
