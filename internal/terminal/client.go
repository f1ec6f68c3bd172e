// Package terminal implements the MT5 terminal bridge session. The bridge is
// reached over a single WebSocket connection carrying a JSON command
// protocol; exactly one command is in flight at a time, matching the
// terminal's synchronous, session-per-process model.
package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/config"
	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	"github.com/Gabriel-Rockson/mt5-gateway/pkg/telemetry"
)

// ErrNoValue marks a terminal call that completed but produced no value,
// typically because the symbol does not support the calculation.
var ErrNoValue = errors.New("terminal returned no value")

// Client implements core.Terminal over the bridge socket.
type Client struct {
	cfg    *config.TerminalConfig
	logger core.ILogger

	mu      sync.Mutex // serializes dial/close and in-flight commands
	conn    *websocket.Conn
	nextID  uint64
	timeout time.Duration

	errMu   sync.RWMutex
	lastErr core.VenueError
}

// NewClient creates a bridge client. No connection is made until Connect.
func NewClient(cfg *config.TerminalConfig, logger core.ILogger) *Client {
	return &Client{
		cfg:     cfg,
		logger:  logger.WithField("component", "terminal"),
		timeout: time.Duration(cfg.CallTimeoutSeconds) * time.Second,
	}
}

// Connect dials the bridge and performs the login handshake. A previous
// connection, if any, is discarded first.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.BridgeURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial terminal bridge: %w", err)
	}
	c.conn = conn

	params := map[string]interface{}{}
	if c.cfg.Login != 0 {
		params["login"] = c.cfg.Login
		params["password"] = string(c.cfg.Password)
		params["server"] = c.cfg.Server
	}

	if _, err := c.callLocked(ctx, "initialize", params); err != nil {
		_ = c.conn.Close()
		c.conn = nil
		return fmt.Errorf("terminal initialize failed: %w", err)
	}

	c.logger.Info("terminal bridge session established", "url", c.cfg.BridgeURL)
	return nil
}

// Close logs out best-effort and tears down the socket. Safe to call on an
// already-closed client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.callLocked(ctx, "shutdown", nil); err != nil {
		c.logger.Warn("terminal shutdown command failed", "error", err)
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

// Connected reports whether a session socket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// LastError returns the venue's most recent diagnostic for this session.
func (c *Client) LastError() core.VenueError {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.lastErr
}

func (c *Client) setLastError(e core.VenueError) {
	c.errMu.Lock()
	c.lastErr = e
	c.errMu.Unlock()
}

// call sends one command and waits for its reply. Commands are serialized on
// the single session socket; the wait is bounded by ctx and the configured
// call timeout, but the terminal-side call itself cannot be aborted.
func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callLocked(ctx, method, params)
}

func (c *Client) callLocked(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("terminal bridge not connected")
	}

	start := time.Now()
	defer func() {
		telemetry.GetGlobalMetrics().RecordVenueCall(ctx, method, time.Since(start).Seconds())
	}()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.nextID++
	cmd := command{ID: c.nextID, Method: method, Params: params}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := c.conn.WriteJSON(cmd); err != nil {
		c.dropConn()
		return nil, fmt.Errorf("terminal bridge write failed: %w", err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	var resp reply
	if err := c.conn.ReadJSON(&resp); err != nil {
		c.dropConn()
		return nil, fmt.Errorf("terminal bridge read failed: %w", err)
	}
	if resp.ID != cmd.ID {
		c.dropConn()
		return nil, fmt.Errorf("terminal bridge reply out of sequence: got %d, want %d", resp.ID, cmd.ID)
	}

	if resp.Error != nil {
		c.setLastError(core.VenueError{Code: resp.Error.Code, Message: resp.Error.Message})
		return nil, fmt.Errorf("terminal error: %s (code: %d)", resp.Error.Message, resp.Error.Code)
	}
	c.setLastError(core.VenueError{})

	return resp.Result, nil
}

// dropConn closes the socket after a transport fault so the next Ensure
// triggers a clean reconnect.
func (c *Client) dropConn() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func (c *Client) AccountInfo(ctx context.Context) (*core.AccountInfo, error) {
	raw, err := c.call(ctx, "account_info", nil)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var w wireAccount
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("failed to decode account info: %w", err)
	}
	return w.toCore(), nil
}

func (c *Client) SymbolsGet(ctx context.Context, group string) ([]string, error) {
	params := map[string]interface{}{}
	if group != "" {
		params["group"] = group
	}
	raw, err := c.call(ctx, "symbols_get", params)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("failed to decode symbol list: %w", err)
	}
	return names, nil
}

func (c *Client) SymbolSelect(ctx context.Context, symbol string, enable bool) error {
	raw, err := c.call(ctx, "symbol_select", map[string]interface{}{
		"symbol": symbol,
		"enable": enable,
	})
	if err != nil {
		return err
	}
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil || !ok {
		return fmt.Errorf("failed to select symbol %s", symbol)
	}
	return nil
}

func (c *Client) SymbolInfo(ctx context.Context, symbol string) (*core.SymbolInfo, error) {
	raw, err := c.call(ctx, "symbol_info", map[string]interface{}{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var w wireSymbolInfo
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("failed to decode symbol info: %w", err)
	}
	return w.toCore(), nil
}

func (c *Client) SymbolTick(ctx context.Context, symbol string) (*core.Tick, error) {
	raw, err := c.call(ctx, "symbol_info_tick", map[string]interface{}{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var w wireTick
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("failed to decode tick: %w", err)
	}
	return w.toCore(), nil
}

func (c *Client) CopyRatesFromPos(ctx context.Context, symbol string, tf core.Timeframe, start, count int) ([]core.Bar, error) {
	raw, err := c.call(ctx, "copy_rates_from_pos", map[string]interface{}{
		"symbol":    symbol,
		"timeframe": int(tf),
		"start_pos": start,
		"count":     count,
	})
	if err != nil {
		return nil, err
	}
	return decodeBars(raw)
}

func (c *Client) CopyRatesRange(ctx context.Context, symbol string, tf core.Timeframe, from, to time.Time) ([]core.Bar, error) {
	raw, err := c.call(ctx, "copy_rates_range", map[string]interface{}{
		"symbol":    symbol,
		"timeframe": int(tf),
		"date_from": from.Unix(),
		"date_to":   to.Unix(),
	})
	if err != nil {
		return nil, err
	}
	return decodeBars(raw)
}

func decodeBars(raw json.RawMessage) ([]core.Bar, error) {
	if isNull(raw) {
		return nil, nil
	}
	var wires []wireBar
	if err := json.Unmarshal(raw, &wires); err != nil {
		return nil, fmt.Errorf("failed to decode rates: %w", err)
	}
	bars := make([]core.Bar, len(wires))
	for i := range wires {
		bars[i] = wires[i].toCore()
	}
	return bars, nil
}

func (c *Client) PositionsGet(ctx context.Context, symbol string, ticket int64) ([]core.Position, error) {
	params := map[string]interface{}{}
	if symbol != "" {
		params["symbol"] = symbol
	}
	if ticket != 0 {
		params["ticket"] = ticket
	}
	raw, err := c.call(ctx, "positions_get", params)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var wires []wirePosition
	if err := json.Unmarshal(raw, &wires); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	positions := make([]core.Position, len(wires))
	for i := range wires {
		positions[i] = wires[i].toCore()
	}
	return positions, nil
}

func (c *Client) PositionsTotal(ctx context.Context) (int, error) {
	raw, err := c.call(ctx, "positions_total", nil)
	if err != nil {
		return 0, err
	}
	var total int
	if err := json.Unmarshal(raw, &total); err != nil {
		return 0, fmt.Errorf("failed to decode positions total: %w", err)
	}
	return total, nil
}

func (c *Client) OrdersGet(ctx context.Context, symbol string, ticket int64) ([]core.PendingOrder, error) {
	params := map[string]interface{}{}
	if symbol != "" {
		params["symbol"] = symbol
	}
	if ticket != 0 {
		params["ticket"] = ticket
	}
	raw, err := c.call(ctx, "orders_get", params)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var wires []wireOrder
	if err := json.Unmarshal(raw, &wires); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	orders := make([]core.PendingOrder, len(wires))
	for i := range wires {
		orders[i] = wires[i].toCore()
	}
	return orders, nil
}

func (c *Client) HistoryDealsGet(ctx context.Context, from, to time.Time, position int64) ([]core.Deal, error) {
	raw, err := c.call(ctx, "history_deals_get", map[string]interface{}{
		"date_from": from.Unix(),
		"date_to":   to.Unix(),
		"position":  position,
	})
	if err != nil {
		return nil, err
	}
	return decodeDeals(raw)
}

func (c *Client) HistoryDealsByPosition(ctx context.Context, position int64) ([]core.Deal, error) {
	raw, err := c.call(ctx, "history_deals_get", map[string]interface{}{
		"position": position,
	})
	if err != nil {
		return nil, err
	}
	return decodeDeals(raw)
}

func decodeDeals(raw json.RawMessage) ([]core.Deal, error) {
	if isNull(raw) {
		return nil, nil
	}
	var wires []wireDeal
	if err := json.Unmarshal(raw, &wires); err != nil {
		return nil, fmt.Errorf("failed to decode deals: %w", err)
	}
	deals := make([]core.Deal, len(wires))
	for i := range wires {
		deals[i] = wires[i].toCore()
	}
	return deals, nil
}

func (c *Client) HistoryOrdersGet(ctx context.Context, ticket int64) ([]core.HistoryOrder, error) {
	raw, err := c.call(ctx, "history_orders_get", map[string]interface{}{"ticket": ticket})
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var wires []wireHistoryOrder
	if err := json.Unmarshal(raw, &wires); err != nil {
		return nil, fmt.Errorf("failed to decode history orders: %w", err)
	}
	orders := make([]core.HistoryOrder, len(wires))
	for i := range wires {
		orders[i] = wires[i].toCore()
	}
	return orders, nil
}

func (c *Client) OrderSend(ctx context.Context, req *core.TradeRequest) (*core.TradeResult, error) {
	raw, err := c.call(ctx, "order_send", tradeRequestParams(req))
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var w wireTradeResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("failed to decode trade result: %w", err)
	}
	return w.toCore(), nil
}

func (c *Client) OrderCheck(ctx context.Context, req *core.TradeRequest) (*core.CheckResult, error) {
	raw, err := c.call(ctx, "order_check", tradeRequestParams(req))
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var w wireCheckResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("failed to decode check result: %w", err)
	}
	return w.toCore(), nil
}

func (c *Client) OrderCalcMargin(ctx context.Context, kind core.OrderKind, symbol string, volume, price float64) (float64, error) {
	return c.calc(ctx, "order_calc_margin", map[string]interface{}{
		"action": int(kind),
		"symbol": symbol,
		"volume": volume,
		"price":  price,
	})
}

func (c *Client) OrderCalcProfit(ctx context.Context, kind core.OrderKind, symbol string, volume, priceOpen, priceClose float64) (float64, error) {
	return c.calc(ctx, "order_calc_profit", map[string]interface{}{
		"action":      int(kind),
		"symbol":      symbol,
		"volume":      volume,
		"price_open":  priceOpen,
		"price_close": priceClose,
	})
}

// calc runs one of the calculation methods. A null result means the terminal
// could not perform the calculation for the given parameters.
func (c *Client) calc(ctx context.Context, method string, params map[string]interface{}) (float64, error) {
	raw, err := c.call(ctx, method, params)
	if err != nil {
		return 0, err
	}
	if isNull(raw) {
		return 0, fmt.Errorf("%s: %w", method, ErrNoValue)
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return value, nil
}
