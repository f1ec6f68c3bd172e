// Package position implements the position query and close engine: listing
// with strategy-tag filters, full and partial closes, batch close-all, and
// stop-level modification on open positions.
package position

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/alitto/pond"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/config"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/order"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/symbols"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/validate"
	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
	"github.com/Gabriel-Rockson/mt5-gateway/pkg/telemetry"
)

// CloseOutcome is the result of one closure attempt within a batch.
type CloseOutcome struct {
	Ticket  int64   `json:"ticket"`
	Symbol  string  `json:"symbol"`
	Success bool    `json:"success"`
	Price   float64 `json:"price,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// CloseAllResult aggregates a close-all batch. A failure to close one
// position never aborts the rest.
type CloseAllResult struct {
	Closed   int            `json:"closed"`
	Total    int            `json:"total"`
	Message  string         `json:"message,omitempty"`
	Outcomes []CloseOutcome `json:"results"`
}

// Service is stateless; every operation re-reads live position snapshots.
type Service struct {
	terminal  core.Terminal
	submitter *order.Submitter
	logger    core.ILogger
	deviation int
	workers   int
}

func NewService(terminal core.Terminal, submitter *order.Submitter, cfg *config.Config, logger core.ILogger) *Service {
	workers := cfg.Trading.CloseWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		terminal:  terminal,
		submitter: submitter,
		logger:    logger.WithField("component", "positions"),
		deviation: cfg.Trading.DefaultDeviation,
		workers:   workers,
	}
}

// List returns open positions, optionally narrowed by symbol and strategy
// tag (magic number). No matches is an empty result, not an error.
func (s *Service) List(ctx context.Context, symbol string, magic *int64) ([]core.Position, error) {
	positions, err := s.terminal.PositionsGet(ctx, symbol, 0)
	if err != nil {
		return nil, apperrors.Connection("list_positions", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if magic == nil {
		if positions == nil {
			positions = []core.Position{}
		}
		return positions, nil
	}

	filtered := make([]core.Position, 0, len(positions))
	for _, p := range positions {
		if p.Magic == *magic {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// Total returns the number of open positions.
func (s *Service) Total(ctx context.Context) (int, error) {
	total, err := s.terminal.PositionsTotal(ctx)
	if err != nil {
		return 0, apperrors.Connection("positions_total", fmt.Sprintf("Terminal call failed: %s", err))
	}
	return total, nil
}

// resolve fetches one live position by ticket.
func (s *Service) resolve(ctx context.Context, ticket int64) (*core.Position, error) {
	if ticket <= 0 {
		return nil, apperrors.Validation("Position ticket must be positive")
	}
	positions, err := s.terminal.PositionsGet(ctx, "", ticket)
	if err != nil {
		return nil, apperrors.Connection("resolve_position", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if len(positions) == 0 {
		return nil, apperrors.NotFound("Position", ticket)
	}
	return &positions[0], nil
}

// Close flattens one position at current market. The position is re-resolved
// by ticket so a stale caller view cannot close the wrong exposure.
func (s *Service) Close(ctx context.Context, ticket int64) (*core.TradeResult, error) {
	pos, err := s.resolve(ctx, ticket)
	if err != nil {
		return nil, err
	}
	return s.closeVolume(ctx, pos, pos.Volume)
}

// PartialClose closes volume lots of the position, leaving the remainder
// open. The requested volume must be strictly less than the open volume; a
// full or oversized amount is rejected toward the full-close path.
func (s *Service) PartialClose(ctx context.Context, ticket int64, volume float64) (*core.TradeResult, error) {
	pos, err := s.resolve(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if volume <= 0 {
		return nil, apperrors.Validation("Volume must be positive")
	}
	if volume >= pos.Volume {
		return nil, apperrors.Validationf(
			"Partial close volume %g must be less than position volume %g - use close_position for a full close",
			volume, pos.Volume)
	}

	info, err := symbols.Resolve(ctx, s.terminal, pos.Symbol)
	if err != nil {
		return nil, err
	}
	if err := validate.Volume(info, volume); err != nil {
		return nil, err
	}
	return s.closeVolume(ctx, pos, volume)
}

// closeVolume submits the opposite-direction deal that flattens volume lots
// of pos. A long closes at bid, a short at ask; the closing order carries the
// position's own magic so the flatten stays attributed to its strategy.
func (s *Service) closeVolume(ctx context.Context, pos *core.Position, volume float64) (*core.TradeResult, error) {
	info, err := symbols.Resolve(ctx, s.terminal, pos.Symbol)
	if err != nil {
		return nil, err
	}
	tick, err := symbols.Tick(ctx, s.terminal, pos.Symbol)
	if err != nil {
		return nil, err
	}

	price := tick.Bid
	if pos.Kind == core.OrderSell {
		price = tick.Ask
	}

	req := &core.TradeRequest{
		Action:    core.ActionDeal,
		Symbol:    pos.Symbol,
		Volume:    volume,
		Kind:      pos.Kind.Opposite(),
		Price:     price,
		Deviation: s.deviation,
		Magic:     pos.Magic,
		Comment:   fmt.Sprintf("Close position %d", pos.Ticket),
		Position:  pos.Ticket,
		TimeType:  core.TimeGTC,
		Filling:   validate.SelectFillingMode(info),
	}

	result, err := s.submitter.Submit(ctx, "close_position", req)
	if err != nil {
		return nil, err
	}
	telemetry.GetGlobalMetrics().RecordPositionClosed(ctx)
	return result, nil
}

// CloseAll closes every open position matching the filters. kindFilter is
// "BUY", "SELL", or empty/"all"; magic narrows to one strategy tag. Closures
// run on a bounded worker pool and each outcome is collected independently.
func (s *Service) CloseAll(ctx context.Context, kindFilter string, magic *int64) (*CloseAllResult, error) {
	var wantKind *core.OrderKind
	switch strings.ToUpper(strings.TrimSpace(kindFilter)) {
	case "", "ALL":
	case "BUY":
		k := core.OrderBuy
		wantKind = &k
	case "SELL":
		k := core.OrderSell
		wantKind = &k
	default:
		return nil, apperrors.Validationf("Invalid order_type filter: %q, expected BUY, SELL or all", kindFilter)
	}

	positions, err := s.terminal.PositionsGet(ctx, "", 0)
	if err != nil {
		return nil, apperrors.Connection("close_all_positions", fmt.Sprintf("Terminal call failed: %s", err))
	}

	targets := make([]core.Position, 0, len(positions))
	for _, p := range positions {
		if wantKind != nil && p.Kind != *wantKind {
			continue
		}
		if magic != nil && p.Magic != *magic {
			continue
		}
		targets = append(targets, p)
	}

	if len(targets) == 0 {
		return &CloseAllResult{Message: "No positions were closed", Outcomes: []CloseOutcome{}}, nil
	}

	var mu sync.Mutex
	outcomes := make([]CloseOutcome, 0, len(targets))
	closed := 0

	pool := pond.New(s.workers, len(targets))
	for _, p := range targets {
		p := p
		pool.Submit(func() {
			outcome := CloseOutcome{Ticket: p.Ticket, Symbol: p.Symbol}
			result, err := s.closeVolume(ctx, &p, p.Volume)
			if err != nil {
				outcome.Error = err.Error()
				s.logger.Warn("failed to close position in batch",
					"ticket", p.Ticket,
					"symbol", p.Symbol,
					"error", err.Error(),
				)
			} else {
				outcome.Success = true
				outcome.Price = result.Price
			}
			mu.Lock()
			if outcome.Success {
				closed++
			}
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		})
	}
	pool.StopAndWait()

	s.logger.Info("close-all batch finished",
		"closed", closed,
		"total", len(targets),
	)
	return &CloseAllResult{
		Closed:   closed,
		Total:    len(targets),
		Outcomes: outcomes,
	}, nil
}

// ModifyStops changes a position's stop loss and/or take profit. Omitted
// fields keep the live values, an explicit zero removes the stop. Levels are
// validated against the current price for the position's direction.
func (s *Service) ModifyStops(ctx context.Context, ticket int64, sl, tp *float64) (*core.TradeResult, error) {
	pos, err := s.resolve(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if sl == nil && tp == nil {
		return nil, apperrors.Validation("At least one of sl, tp must be provided")
	}

	newSL := validate.MergeStop(pos.StopLoss, sl)
	newTP := validate.MergeStop(pos.TakeProfit, tp)

	tick, err := symbols.Tick(ctx, s.terminal, pos.Symbol)
	if err != nil {
		return nil, err
	}
	reference := tick.Bid
	if pos.Kind == core.OrderSell {
		reference = tick.Ask
	}
	if err := validate.StopLossTakeProfit(pos.Kind, reference, newSL, newTP); err != nil {
		return nil, err
	}

	req := &core.TradeRequest{
		Action:   core.ActionSLTP,
		Symbol:   pos.Symbol,
		Position: pos.Ticket,
		StopLoss: newSL,
		TakeProf: newTP,
		Magic:    pos.Magic,
	}
	return s.submitter.Submit(ctx, "modify_sl_tp", req)
}
