package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricOrdersSubmittedTotal = "mt5_gateway_orders_submitted_total"
	MetricOrdersRejectedTotal  = "mt5_gateway_orders_rejected_total"
	MetricValidationFailTotal  = "mt5_gateway_validation_failures_total"
	MetricReconnectsTotal      = "mt5_gateway_reconnect_attempts_total"
	MetricConnectionState      = "mt5_gateway_connection_state"
	MetricVenueCallLatency     = "mt5_gateway_venue_call_duration_seconds"
	MetricPositionsClosedTotal = "mt5_gateway_positions_closed_total"
)

// MetricsHolder holds the gateway's initialized instruments.
type MetricsHolder struct {
	OrdersSubmitted  metric.Int64Counter
	OrdersRejected   metric.Int64Counter
	ValidationFails  metric.Int64Counter
	Reconnects       metric.Int64Counter
	ConnectionState  metric.Int64ObservableGauge
	VenueCallLatency metric.Float64Histogram
	PositionsClosed  metric.Int64Counter

	mu        sync.RWMutex
	connState int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder. Instruments are nil
// until InitMetrics runs; recording methods are safe either way.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter.
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OrdersSubmitted, err = meter.Int64Counter(MetricOrdersSubmittedTotal,
		metric.WithDescription("Total trade requests submitted to the terminal"))
	if err != nil {
		return err
	}

	m.OrdersRejected, err = meter.Int64Counter(MetricOrdersRejectedTotal,
		metric.WithDescription("Total trade requests refused by the terminal"))
	if err != nil {
		return err
	}

	m.ValidationFails, err = meter.Int64Counter(MetricValidationFailTotal,
		metric.WithDescription("Total requests rejected before any terminal call"))
	if err != nil {
		return err
	}

	m.Reconnects, err = meter.Int64Counter(MetricReconnectsTotal,
		metric.WithDescription("Total terminal reconnection attempts"))
	if err != nil {
		return err
	}

	m.VenueCallLatency, err = meter.Float64Histogram(MetricVenueCallLatency,
		metric.WithDescription("Latency of terminal bridge calls in seconds"))
	if err != nil {
		return err
	}

	m.PositionsClosed, err = meter.Int64Counter(MetricPositionsClosedTotal,
		metric.WithDescription("Total positions closed through the gateway"))
	if err != nil {
		return err
	}

	m.ConnectionState, err = meter.Int64ObservableGauge(MetricConnectionState,
		metric.WithDescription("Terminal connection state (0 disconnected, 1 reconnecting, 2 connected)"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			o.Observe(m.connState)
			return nil
		}),
	)
	return err
}

// SetConnectionState records the current connection state gauge value.
func (m *MetricsHolder) SetConnectionState(state int64) {
	m.mu.Lock()
	m.connState = state
	m.mu.Unlock()
}

// RecordOrderSubmitted increments the submitted counter.
func (m *MetricsHolder) RecordOrderSubmitted(ctx context.Context, action string) {
	if m.OrdersSubmitted != nil {
		m.OrdersSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	}
}

// RecordOrderRejected increments the rejected counter with the retcode.
func (m *MetricsHolder) RecordOrderRejected(ctx context.Context, action string, retcode int) {
	if m.OrdersRejected != nil {
		m.OrdersRejected.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", action),
			attribute.Int("retcode", retcode),
		))
	}
}

// RecordValidationFailure increments the validation counter.
func (m *MetricsHolder) RecordValidationFailure(ctx context.Context, rule string) {
	if m.ValidationFails != nil {
		m.ValidationFails.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
	}
}

// RecordReconnect increments the reconnect counter.
func (m *MetricsHolder) RecordReconnect(ctx context.Context) {
	if m.Reconnects != nil {
		m.Reconnects.Add(ctx, 1)
	}
}

// RecordVenueCall records one bridge call's latency.
func (m *MetricsHolder) RecordVenueCall(ctx context.Context, method string, seconds float64) {
	if m.VenueCallLatency != nil {
		m.VenueCallLatency.Record(ctx, seconds, metric.WithAttributes(attribute.String("method", method)))
	}
}

// RecordPositionClosed increments the closed-positions counter.
func (m *MetricsHolder) RecordPositionClosed(ctx context.Context) {
	if m.PositionsClosed != nil {
		m.PositionsClosed.Add(ctx, 1)
	}
}
