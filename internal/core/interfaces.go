package core

import (
	"context"
	"time"
)

// Terminal is the venue-native operation set exposed by the MT5 bridge
// session. All reads are point-in-time snapshots with no consistency
// guarantee between two calls. Implementations are safe for concurrent use;
// calls are synchronous and not cancellable once on the wire, so ctx bounds
// only the wait for a reply.
type Terminal interface {
	// Connect dials the bridge and performs the login handshake.
	Connect(ctx context.Context) error
	// Close logs out and tears down the session. Idempotent.
	Close() error

	AccountInfo(ctx context.Context) (*AccountInfo, error)

	SymbolsGet(ctx context.Context, group string) ([]string, error)
	SymbolSelect(ctx context.Context, symbol string, enable bool) error
	SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)
	SymbolTick(ctx context.Context, symbol string) (*Tick, error)

	CopyRatesFromPos(ctx context.Context, symbol string, tf Timeframe, start, count int) ([]Bar, error)
	CopyRatesRange(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) ([]Bar, error)

	PositionsGet(ctx context.Context, symbol string, ticket int64) ([]Position, error)
	PositionsTotal(ctx context.Context) (int, error)

	OrdersGet(ctx context.Context, symbol string, ticket int64) ([]PendingOrder, error)

	HistoryDealsGet(ctx context.Context, from, to time.Time, position int64) ([]Deal, error)
	HistoryDealsByPosition(ctx context.Context, position int64) ([]Deal, error)
	HistoryOrdersGet(ctx context.Context, ticket int64) ([]HistoryOrder, error)

	OrderSend(ctx context.Context, req *TradeRequest) (*TradeResult, error)
	OrderCheck(ctx context.Context, req *TradeRequest) (*CheckResult, error)
	OrderCalcMargin(ctx context.Context, kind OrderKind, symbol string, volume, price float64) (float64, error)
	OrderCalcProfit(ctx context.Context, kind OrderKind, symbol string, volume, priceOpen, priceClose float64) (float64, error)

	// LastError returns the venue's most recent diagnostic for this session.
	LastError() VenueError
}

// ILogger defines the logging interface used throughout the gateway.
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// IHealthMonitor aggregates component health for the probe endpoints.
type IHealthMonitor interface {
	Register(component string, check func() error)
	GetStatus() map[string]string
	IsHealthy() bool
}
