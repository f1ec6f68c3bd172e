// Package marketdata serves the read-only venue surface: account snapshots,
// symbol listing and metadata, quotes, OHLC bars, and trade history lookups.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/symbols"
	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
)

const (
	defaultTimeframe = "M1"
	defaultBarCount  = 100
)

type Service struct {
	terminal core.Terminal
	logger   core.ILogger
}

func NewService(terminal core.Terminal, logger core.ILogger) *Service {
	return &Service{
		terminal: terminal,
		logger:   logger.WithField("component", "marketdata"),
	}
}

// Account returns a point-in-time account snapshot.
func (s *Service) Account(ctx context.Context) (*core.AccountInfo, error) {
	account, err := s.terminal.AccountInfo(ctx)
	if err != nil {
		return nil, apperrors.Connection("account", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if account == nil {
		return nil, apperrors.Connection("account", "Failed to get account info")
	}
	return account, nil
}

// Symbols lists symbol names, optionally narrowed by a venue glob pattern
// (e.g. "*USD*").
func (s *Service) Symbols(ctx context.Context, search string) ([]string, error) {
	names, err := s.terminal.SymbolsGet(ctx, search)
	if err != nil {
		return nil, apperrors.Connection("symbols", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Info returns the symbol's metadata and trading constraints.
func (s *Service) Info(ctx context.Context, symbol string) (*core.SymbolInfo, error) {
	return symbols.Resolve(ctx, s.terminal, symbol)
}

// Tick returns the symbol's current quote.
func (s *Service) Tick(ctx context.Context, symbol string) (*core.Tick, error) {
	info, err := symbols.Resolve(ctx, s.terminal, symbol)
	if err != nil {
		return nil, err
	}
	tick, err := s.terminal.SymbolTick(ctx, info.Name)
	if err != nil {
		return nil, apperrors.Connection("symbol_tick", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if tick == nil {
		return nil, apperrors.NotFound("tick data", info.Name)
	}
	return tick, nil
}

// BarsFromPos fetches the most recent count bars. Timeframe defaults to M1
// and count to 100 when unset.
func (s *Service) BarsFromPos(ctx context.Context, symbol, timeframe string, count int) ([]core.Bar, error) {
	info, err := symbols.Resolve(ctx, s.terminal, symbol)
	if err != nil {
		return nil, err
	}
	tf, err := parseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = defaultBarCount
	}

	bars, err := s.terminal.CopyRatesFromPos(ctx, info.Name, tf, 0, count)
	if err != nil {
		return nil, apperrors.Connection("fetch_data_pos", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if bars == nil {
		return nil, apperrors.NotFound("rates data", info.Name)
	}
	return bars, nil
}

// BarsRange fetches bars between two instants, inclusive.
func (s *Service) BarsRange(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]core.Bar, error) {
	info, err := symbols.Resolve(ctx, s.terminal, symbol)
	if err != nil {
		return nil, err
	}
	tf, err := parseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}

	s.logger.Info("fetching rates range",
		"symbol", info.Name,
		"timeframe", timeframe,
		"start", from.UTC().Format(time.RFC3339),
		"end", to.UTC().Format(time.RFC3339),
	)
	bars, err := s.terminal.CopyRatesRange(ctx, info.Name, tf, from, to)
	if err != nil {
		return nil, apperrors.Connection("fetch_data_range", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if bars == nil {
		last := s.terminal.LastError()
		s.logger.Error("rates range fetch failed",
			"symbol", info.Name,
			"last_error_code", last.Code,
			"last_error", last.Message,
		)
		return nil, apperrors.NotFound("rates data", info.Name)
	}
	return bars, nil
}

// HistoryDeals returns deals inside [from, to) for one position.
func (s *Service) HistoryDeals(ctx context.Context, from, to time.Time, position int64) ([]core.Deal, error) {
	if !from.Before(to) {
		return nil, apperrors.Validation("from_date must be before to_date")
	}
	deals, err := s.terminal.HistoryDealsGet(ctx, from, to, position)
	if err != nil {
		return nil, apperrors.Connection("history_deals_get", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if deals == nil {
		return nil, apperrors.NotFound("deals history", position)
	}
	return deals, nil
}

// HistoryOrders returns the historical order records for one ticket.
func (s *Service) HistoryOrders(ctx context.Context, ticket int64) ([]core.HistoryOrder, error) {
	orders, err := s.terminal.HistoryOrdersGet(ctx, ticket)
	if err != nil {
		return nil, apperrors.Connection("history_orders_get", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if orders == nil {
		return nil, apperrors.NotFound("orders history", ticket)
	}
	return orders, nil
}

// DealFromTicket returns the opening deal of a position.
func (s *Service) DealFromTicket(ctx context.Context, ticket int64) (*core.Deal, error) {
	deals, err := s.terminal.HistoryDealsByPosition(ctx, ticket)
	if err != nil {
		return nil, apperrors.Connection("get_deal_from_ticket", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if len(deals) == 0 {
		return nil, apperrors.NotFound("deal", ticket)
	}
	return &deals[0], nil
}

// OrderFromTicket returns the historical order record for one ticket.
func (s *Service) OrderFromTicket(ctx context.Context, ticket int64) (*core.HistoryOrder, error) {
	orders, err := s.terminal.HistoryOrdersGet(ctx, ticket)
	if err != nil {
		return nil, apperrors.Connection("get_order_from_ticket", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if len(orders) == 0 {
		return nil, apperrors.NotFound("order", ticket)
	}
	return &orders[0], nil
}

func parseTimeframe(name string) (core.Timeframe, error) {
	if name == "" {
		name = defaultTimeframe
	}
	tf, err := core.ParseTimeframe(name)
	if err != nil {
		return 0, apperrors.Validation(err.Error())
	}
	return tf, nil
}
