package connection

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/config"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/mock"
	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, fields ...interface{})               {}
func (m *mockLogger) Info(msg string, fields ...interface{})                {}
func (m *mockLogger) Warn(msg string, fields ...interface{})                {}
func (m *mockLogger) Error(msg string, fields ...interface{})               {}
func (m *mockLogger) Fatal(msg string, fields ...interface{})               {}
func (m *mockLogger) WithField(key string, value interface{}) core.ILogger  { return m }
func (m *mockLogger) WithFields(fields map[string]interface{}) core.ILogger { return m }

// recordingLogger captures Info calls so tests can inspect state transitions.
type recordingLogger struct {
	mu     sync.Mutex
	infos  []string
	fields [][]interface{}
}

func (l *recordingLogger) Debug(msg string, fields ...interface{}) {}
func (l *recordingLogger) Info(msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
	l.fields = append(l.fields, fields)
}
func (l *recordingLogger) Warn(msg string, fields ...interface{})                {}
func (l *recordingLogger) Error(msg string, fields ...interface{})               {}
func (l *recordingLogger) Fatal(msg string, fields ...interface{})               {}
func (l *recordingLogger) WithField(key string, value interface{}) core.ILogger  { return l }
func (l *recordingLogger) WithFields(fields map[string]interface{}) core.ILogger { return l }

// stateDiagnostics returns the "error" field of every logged state change.
func (l *recordingLogger) stateDiagnostics() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for i, msg := range l.infos {
		if msg != "terminal connection state changed" {
			continue
		}
		fields := l.fields[i]
		for j := 0; j+1 < len(fields); j += 2 {
			if fields[j] == "error" {
				if v, ok := fields[j+1].(string); ok {
					out = append(out, v)
				}
			}
		}
	}
	return out
}

func newTestManager(term core.Terminal, maxAttempts int, baseDelay float64) *Manager {
	cfg := config.ConnectionConfig{
		MaxAttempts:      maxAttempts,
		BaseDelaySeconds: baseDelay,
	}
	return NewManager(term, cfg, &mockLogger{})
}

func TestInitialize_SucceedsFirstAttempt(t *testing.T) {
	term := mock.NewMockTerminal()
	mgr := newTestManager(term, 3, 0.01)

	err := mgr.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, core.StateConnected, mgr.State())
	assert.Empty(t, mgr.LastError())
	assert.Equal(t, 1, term.ConnectCalls())
}

func TestInitialize_ExhaustsAttemptsWithBackoff(t *testing.T) {
	term := mock.NewMockTerminal()
	term.FailConnect(-1, fmt.Errorf("login refused"))
	mgr := newTestManager(term, 3, 0.01)

	start := time.Now()
	err := mgr.Initialize(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, 3, term.ConnectCalls())
	assert.Equal(t, core.StateDisconnected, mgr.State())
	assert.Equal(t, "Failed to initialize terminal after 3 attempts", mgr.LastError())

	// Delays of base and 2*base between the three attempts.
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestInitialize_ReportsReconnectingBetweenAttempts(t *testing.T) {
	term := mock.NewMockTerminal()
	term.FailConnect(-1, fmt.Errorf("login refused"))
	rec := &recordingLogger{}
	mgr := NewManager(term, config.ConnectionConfig{MaxAttempts: 3, BaseDelaySeconds: 0.005}, rec)

	require.Error(t, mgr.Initialize(context.Background()))

	// The retry hook runs before each backoff wait and labels the attempt
	// about to start.
	diags := rec.stateDiagnostics()
	assert.Contains(t, diags, "Reconnection attempt 2/3")
	assert.Contains(t, diags, "Reconnection attempt 3/3")
}

func TestInitialize_RecoversOnLaterAttempt(t *testing.T) {
	term := mock.NewMockTerminal()
	term.FailConnect(1, fmt.Errorf("transient"))
	mgr := newTestManager(term, 3, 0.005)

	err := mgr.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, core.StateConnected, mgr.State())
	assert.Equal(t, 2, term.ConnectCalls())
}

func TestInitialize_FailsWhenAccountProbeEmpty(t *testing.T) {
	term := mock.NewMockTerminal()
	term.NilAccountInfo(true)
	mgr := newTestManager(term, 2, 0.005)

	err := mgr.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.StateDisconnected, mgr.State())
}

func TestEnsure_HealthySessionDoesNotReconnect(t *testing.T) {
	term := mock.NewMockTerminal()
	mgr := newTestManager(term, 3, 0.01)
	require.NoError(t, mgr.Initialize(context.Background()))

	for i := 0; i < 5; i++ {
		require.NoError(t, mgr.Ensure(context.Background()))
	}

	assert.Equal(t, 1, term.ConnectCalls())
	assert.Equal(t, core.StateConnected, mgr.State())
}

func TestEnsure_ReconnectsFromColdState(t *testing.T) {
	term := mock.NewMockTerminal()
	mgr := newTestManager(term, 3, 0.005)

	require.Equal(t, core.StateDisconnected, mgr.State())
	require.NoError(t, mgr.Ensure(context.Background()))

	assert.Equal(t, core.StateConnected, mgr.State())
	assert.Equal(t, 1, term.ConnectCalls())
}

func TestEnsure_FailedProbeDropsStateAndRetries(t *testing.T) {
	term := mock.NewMockTerminal()
	mgr := newTestManager(term, 2, 0.005)
	require.NoError(t, mgr.Initialize(context.Background()))

	term.FailAccountInfo(fmt.Errorf("socket closed"))
	err := mgr.Ensure(context.Background())

	require.Error(t, err)
	assert.Equal(t, apperrors.KindConnection, apperrors.KindOf(err))
	assert.Equal(t, core.StateDisconnected, mgr.State())
	// The probe failure triggered a full reconnect cycle.
	assert.Greater(t, term.ConnectCalls(), 1)
}

func TestShutdown_Idempotent(t *testing.T) {
	term := mock.NewMockTerminal()
	mgr := newTestManager(term, 3, 0.01)
	require.NoError(t, mgr.Initialize(context.Background()))

	mgr.Shutdown()
	mgr.Shutdown()

	assert.Equal(t, 1, term.CloseCalls())
	assert.Equal(t, core.StateDisconnected, mgr.State())
}

func TestCheckHealth(t *testing.T) {
	term := mock.NewMockTerminal()
	mgr := newTestManager(term, 3, 0.01)

	assert.Error(t, mgr.CheckHealth())

	require.NoError(t, mgr.Initialize(context.Background()))
	assert.NoError(t, mgr.CheckHealth())
}
