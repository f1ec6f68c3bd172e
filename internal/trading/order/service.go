// Package order implements the order execution pipeline: validation in front
// of every venue call, venue-native request construction, single-shot
// submission, and outcome classification.
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/config"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/terminal"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/symbols"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/trading/validate"
	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
	"github.com/Gabriel-Rockson/mt5-gateway/pkg/telemetry"
)

// Service orchestrates order placement, dry runs, calculations, and pending
// order management. Stateless; every call re-reads constraints and prices.
type Service struct {
	terminal  core.Terminal
	submitter *Submitter
	logger    core.ILogger
	deviation int
}

func NewService(terminal core.Terminal, submitter *Submitter, cfg *config.Config, logger core.ILogger) *Service {
	return &Service{
		terminal:  terminal,
		submitter: submitter,
		logger:    logger.WithField("component", "orders"),
		deviation: cfg.Trading.DefaultDeviation,
	}
}

// prepare runs the validation pipeline and builds the venue-native request.
// No venue write happens here; a validation failure stops the pipeline before
// any trade call.
func (s *Service) prepare(ctx context.Context, intent *core.OrderIntent) (*core.TradeRequest, error) {
	info, err := symbols.Resolve(ctx, s.terminal, intent.Symbol)
	if err != nil {
		return nil, err
	}

	var action core.ActionKind
	var price float64
	if intent.Kind.IsMarket() {
		tick, err := symbols.Tick(ctx, s.terminal, info.Name)
		if err != nil {
			return nil, err
		}
		if intent.HasPrice {
			s.logger.Warn("client-supplied price ignored for market order",
				"symbol", info.Name,
				"price", intent.Price,
			)
		}
		action = core.ActionDeal
		if intent.Kind == core.OrderBuy {
			price = tick.Ask
		} else {
			price = tick.Bid
		}
	} else {
		if !intent.HasPrice {
			return nil, apperrors.Validationf("Price is required for %s orders", intent.Kind)
		}
		tick, err := symbols.Tick(ctx, s.terminal, info.Name)
		if err != nil {
			return nil, err
		}
		if err := validate.PendingPrice(intent.Kind, info, tick, intent.Price); err != nil {
			telemetry.GetGlobalMetrics().RecordValidationFailure(ctx, "pending_price")
			return nil, err
		}
		action = core.ActionPending
		price = intent.Price
	}

	if err := validate.Volume(info, intent.Volume); err != nil {
		telemetry.GetGlobalMetrics().RecordValidationFailure(ctx, "volume")
		return nil, err
	}
	if err := validate.StopLossTakeProfit(intent.Kind, price, intent.StopLoss, intent.TakeProfit); err != nil {
		telemetry.GetGlobalMetrics().RecordValidationFailure(ctx, "sl_tp")
		return nil, err
	}

	filling := validate.SelectFillingMode(info)
	// A caller-requested filling mode is honored for market orders only;
	// pending orders always use the capability scan.
	if intent.Filling != nil && intent.Kind.IsMarket() {
		filling = *intent.Filling
	}

	deviation := intent.Deviation
	if deviation <= 0 {
		deviation = s.deviation
	}

	return &core.TradeRequest{
		Action:    action,
		Symbol:    info.Name,
		Volume:    intent.Volume,
		Kind:      intent.Kind,
		Price:     price,
		StopLoss:  intent.StopLoss,
		TakeProf:  intent.TakeProfit,
		Deviation: deviation,
		Magic:     intent.Magic,
		Comment:   intent.Comment,
		TimeType:  core.TimeGTC,
		Filling:   filling,
	}, nil
}

// Place runs the full pipeline and submits the order.
func (s *Service) Place(ctx context.Context, intent *core.OrderIntent) (*core.TradeResult, error) {
	req, err := s.prepare(ctx, intent)
	if err != nil {
		return nil, err
	}
	return s.submitter.Submit(ctx, "place_order", req)
}

// Check runs the same pipeline but asks the venue for a margin dry run
// instead of executing.
func (s *Service) Check(ctx context.Context, intent *core.OrderIntent) (*core.CheckResult, error) {
	req, err := s.prepare(ctx, intent)
	if err != nil {
		return nil, err
	}

	result, err := s.terminal.OrderCheck(ctx, req)
	if err != nil {
		return nil, apperrors.Connection("order_check", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if result == nil {
		return nil, apperrors.Validation("Order check failed - MT5 returned None")
	}
	return result, nil
}

// CalcMargin computes the margin required to open a position. The venue
// answers with no value for parameters it cannot price.
func (s *Service) CalcMargin(ctx context.Context, kind core.OrderKind, symbol string, volume, price float64) (float64, error) {
	if !kind.IsMarket() {
		return 0, apperrors.Validationf("Margin calculation supports BUY and SELL only, got %s", kind)
	}
	if volume <= 0 {
		return 0, apperrors.Validation("Volume must be positive")
	}
	if price <= 0 {
		return 0, apperrors.Validation("Price must be positive")
	}
	if _, err := symbols.Resolve(ctx, s.terminal, symbol); err != nil {
		return 0, err
	}

	margin, err := s.terminal.OrderCalcMargin(ctx, kind, symbol, volume, price)
	if err != nil {
		if errors.Is(err, terminal.ErrNoValue) {
			return 0, apperrors.Validation("Margin calculation failed - check symbol and parameters")
		}
		return 0, apperrors.Connection("order_calc_margin", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if margin < 0 {
		return 0, apperrors.Validation("Margin calculation returned an invalid result")
	}
	return margin, nil
}

// CalcProfit computes the profit of a hypothetical open/close pair.
func (s *Service) CalcProfit(ctx context.Context, kind core.OrderKind, symbol string, volume, priceOpen, priceClose float64) (float64, error) {
	if !kind.IsMarket() {
		return 0, apperrors.Validationf("Profit calculation supports BUY and SELL only, got %s", kind)
	}
	if volume <= 0 {
		return 0, apperrors.Validation("Volume must be positive")
	}
	if priceOpen <= 0 || priceClose <= 0 {
		return 0, apperrors.Validation("Prices must be positive")
	}
	if _, err := symbols.Resolve(ctx, s.terminal, symbol); err != nil {
		return 0, err
	}

	profit, err := s.terminal.OrderCalcProfit(ctx, kind, symbol, volume, priceOpen, priceClose)
	if err != nil {
		if errors.Is(err, terminal.ErrNoValue) {
			return 0, apperrors.Validation("Profit calculation failed - check symbol and parameters")
		}
		return 0, apperrors.Connection("order_calc_profit", fmt.Sprintf("Terminal call failed: %s", err))
	}
	return profit, nil
}

// List returns pending orders, optionally narrowed by symbol or ticket.
func (s *Service) List(ctx context.Context, symbol string, ticket int64) ([]core.PendingOrder, error) {
	orders, err := s.terminal.OrdersGet(ctx, symbol, ticket)
	if err != nil {
		return nil, apperrors.Connection("list_orders", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if orders == nil {
		orders = []core.PendingOrder{}
	}
	for i := range orders {
		orders[i].KindName = orders[i].Kind.String()
	}
	return orders, nil
}

// resolveOrder fetches one live pending order by ticket.
func (s *Service) resolveOrder(ctx context.Context, ticket int64) (*core.PendingOrder, error) {
	if ticket <= 0 {
		return nil, apperrors.Validation("Order ticket must be positive")
	}
	orders, err := s.terminal.OrdersGet(ctx, "", ticket)
	if err != nil {
		return nil, apperrors.Connection("resolve_order", fmt.Sprintf("Terminal call failed: %s", err))
	}
	if len(orders) == 0 {
		return nil, apperrors.NotFound("Order", ticket)
	}
	return &orders[0], nil
}

// Cancel removes a resting pending order.
func (s *Service) Cancel(ctx context.Context, ticket int64) (*core.TradeResult, error) {
	order, err := s.resolveOrder(ctx, ticket)
	if err != nil {
		return nil, err
	}

	req := &core.TradeRequest{
		Action:  core.ActionRemove,
		Order:   order.Ticket,
		Filling: core.FillingReturn,
	}
	return s.submitter.Submit(ctx, "cancel_order", req)
}

// Modify changes a pending order's trigger price and/or stops. Omitted fields
// keep the live order's current values; an explicit zero removes a stop. The
// effective price and stops are re-validated with the same rules as creation.
func (s *Service) Modify(ctx context.Context, ticket int64, newPrice, newSL, newTP *float64) (*core.TradeResult, error) {
	order, err := s.resolveOrder(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if newPrice == nil && newSL == nil && newTP == nil {
		return nil, apperrors.Validation("At least one of price, sl, tp must be provided")
	}

	price := order.PriceOpen
	if newPrice != nil {
		price = *newPrice
	}
	sl := validate.MergeStop(order.StopLoss, newSL)
	tp := validate.MergeStop(order.TakeProfit, newTP)

	info, err := symbols.Resolve(ctx, s.terminal, order.Symbol)
	if err != nil {
		return nil, err
	}
	tick, err := symbols.Tick(ctx, s.terminal, info.Name)
	if err != nil {
		return nil, err
	}
	if err := validate.PendingPrice(order.Kind, info, tick, price); err != nil {
		telemetry.GetGlobalMetrics().RecordValidationFailure(ctx, "pending_price")
		return nil, err
	}
	if err := validate.StopLossTakeProfit(order.Kind, price, sl, tp); err != nil {
		telemetry.GetGlobalMetrics().RecordValidationFailure(ctx, "sl_tp")
		return nil, err
	}

	req := &core.TradeRequest{
		Action:   core.ActionModify,
		Order:    order.Ticket,
		Price:    price,
		StopLoss: sl,
		TakeProf: tp,
		TimeType: core.TimeGTC,
		Filling:  core.FillingReturn,
	}
	return s.submitter.Submit(ctx, "modify_order", req)
}
