package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
)

// MockTerminal implements core.Terminal for testing. Seed it with Set*
// helpers, inject failures with Fail*, and assert on the recorded calls.
type MockTerminal struct {
	mu sync.RWMutex

	connected bool
	account   *core.AccountInfo
	symbols   map[string]*core.SymbolInfo
	ticks     map[string]*core.Tick
	bars      map[string][]core.Bar
	positions []core.Position
	orders    []core.PendingOrder
	deals     []core.Deal
	history   []core.HistoryOrder
	lastErr   core.VenueError

	connectFailures int
	connectErr      error
	accountErr      error
	accountNil      bool
	sendErr         error
	sendNil         bool
	sendResult      *core.TradeResult
	sendResults     []*core.TradeResult
	checkResult     *core.CheckResult
	marginResult    float64
	marginErr       error
	profitResult    float64
	profitErr       error

	connectCalls int
	accountCalls int
	closeCalls   int
	ticketSeq    int64
	sent         []core.TradeRequest
}

func NewMockTerminal() *MockTerminal {
	return &MockTerminal{
		account: &core.AccountInfo{
			Login:    12345678,
			Leverage: 100,
			Balance:  10000.0,
			Equity:   10000.0,
			Currency: "USD",
			Server:   "Demo-Server",
			Company:  "Test Broker",
		},
		symbols:      map[string]*core.SymbolInfo{},
		ticks:        map[string]*core.Tick{},
		bars:         map[string][]core.Bar{},
		marginResult: 100.0,
		ticketSeq:    5000,
	}
}

// --- seeding helpers ---

func (m *MockTerminal) SetAccount(a *core.AccountInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = a
}

func (m *MockTerminal) SetSymbol(info *core.SymbolInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols[info.Name] = info
}

func (m *MockTerminal) SetTick(symbol string, tick *core.Tick) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[symbol] = tick
}

func (m *MockTerminal) SetBars(symbol string, bars []core.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[symbol] = bars
}

func (m *MockTerminal) SetPositions(positions []core.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = positions
}

func (m *MockTerminal) SetOrders(orders []core.PendingOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = orders
}

func (m *MockTerminal) SetDeals(deals []core.Deal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals = deals
}

func (m *MockTerminal) SetHistoryOrders(orders []core.HistoryOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = orders
}

func (m *MockTerminal) SetLastError(code int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = core.VenueError{Code: code, Message: message}
}

// --- failure injection ---

// FailConnect makes the next n Connect calls fail with err. n < 0 means fail
// forever.
func (m *MockTerminal) FailConnect(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectFailures = n
	m.connectErr = err
}

func (m *MockTerminal) FailAccountInfo(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountErr = err
}

// NilAccountInfo makes AccountInfo return (nil, nil), the venue's "no data"
// shape for a dead session.
func (m *MockTerminal) NilAccountInfo(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountNil = v
}

func (m *MockTerminal) FailOrderSend(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// NilOrderSend makes OrderSend return (nil, nil).
func (m *MockTerminal) NilOrderSend(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendNil = v
}

// SetOrderSendResult fixes every subsequent OrderSend reply.
func (m *MockTerminal) SetOrderSendResult(r *core.TradeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendResult = r
}

// QueueOrderSendResults replies with each result in order, then falls back to
// the default synthetic fill.
func (m *MockTerminal) QueueOrderSendResults(results ...*core.TradeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendResults = append(m.sendResults, results...)
}

func (m *MockTerminal) SetCheckResult(r *core.CheckResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkResult = r
}

func (m *MockTerminal) SetMargin(v float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marginResult = v
	m.marginErr = err
}

func (m *MockTerminal) SetProfit(v float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profitResult = v
	m.profitErr = err
}

// --- assertions ---

func (m *MockTerminal) ConnectCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectCalls
}

func (m *MockTerminal) AccountInfoCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountCalls
}

func (m *MockTerminal) CloseCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closeCalls
}

// SentRequests returns a copy of every TradeRequest passed to OrderSend.
func (m *MockTerminal) SentRequests() []core.TradeRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.TradeRequest, len(m.sent))
	copy(out, m.sent)
	return out
}

// LastSentRequest returns the most recent TradeRequest, or nil.
func (m *MockTerminal) LastSentRequest() *core.TradeRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.sent) == 0 {
		return nil
	}
	req := m.sent[len(m.sent)-1]
	return &req
}

// --- core.Terminal ---

func (m *MockTerminal) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if m.connectFailures != 0 {
		if m.connectFailures > 0 {
			m.connectFailures--
		}
		if m.connectErr != nil {
			return m.connectErr
		}
		return fmt.Errorf("mock: connect refused")
	}
	m.connected = true
	return nil
}

func (m *MockTerminal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.connected = false
	return nil
}

func (m *MockTerminal) AccountInfo(ctx context.Context) (*core.AccountInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountCalls++
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	if m.accountNil {
		return nil, nil
	}
	return m.account, nil
}

func (m *MockTerminal) SymbolsGet(ctx context.Context, group string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.symbols))
	for name := range m.symbols {
		names = append(names, name)
	}
	return names, nil
}

func (m *MockTerminal) SymbolSelect(ctx context.Context, symbol string, enable bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.symbols[symbol]; !ok {
		return fmt.Errorf("mock: unknown symbol %s", symbol)
	}
	return nil
}

func (m *MockTerminal) SymbolInfo(ctx context.Context, symbol string) (*core.SymbolInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.symbols[symbol]
	if !ok {
		return nil, nil
	}
	return info, nil
}

func (m *MockTerminal) SymbolTick(ctx context.Context, symbol string) (*core.Tick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tick, ok := m.ticks[symbol]
	if !ok {
		return nil, nil
	}
	return tick, nil
}

func (m *MockTerminal) CopyRatesFromPos(ctx context.Context, symbol string, tf core.Timeframe, start, count int) ([]core.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bars := m.bars[symbol]
	if count < len(bars) {
		bars = bars[:count]
	}
	return bars, nil
}

func (m *MockTerminal) CopyRatesRange(ctx context.Context, symbol string, tf core.Timeframe, from, to time.Time) ([]core.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Bar
	for _, b := range m.bars[symbol] {
		if !b.Time.Before(from) && !b.Time.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MockTerminal) PositionsGet(ctx context.Context, symbol string, ticket int64) ([]core.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Position
	for _, p := range m.positions {
		if symbol != "" && p.Symbol != symbol {
			continue
		}
		if ticket != 0 && p.Ticket != ticket {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MockTerminal) PositionsTotal(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions), nil
}

func (m *MockTerminal) OrdersGet(ctx context.Context, symbol string, ticket int64) ([]core.PendingOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.PendingOrder
	for _, o := range m.orders {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		if ticket != 0 && o.Ticket != ticket {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *MockTerminal) HistoryDealsGet(ctx context.Context, from, to time.Time, position int64) ([]core.Deal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Deal
	for _, d := range m.deals {
		if position != 0 && d.Position != position {
			continue
		}
		if d.Time.Before(from) || d.Time.After(to) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *MockTerminal) HistoryDealsByPosition(ctx context.Context, position int64) ([]core.Deal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Deal
	for _, d := range m.deals {
		if d.Position == position {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockTerminal) HistoryOrdersGet(ctx context.Context, ticket int64) ([]core.HistoryOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.HistoryOrder
	for _, o := range m.history {
		if ticket != 0 && o.Ticket != ticket {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *MockTerminal) OrderSend(ctx context.Context, req *core.TradeRequest) (*core.TradeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, *req)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	if m.sendNil {
		return nil, nil
	}
	if len(m.sendResults) > 0 {
		r := m.sendResults[0]
		m.sendResults = m.sendResults[1:]
		return r, nil
	}
	if m.sendResult != nil {
		return m.sendResult, nil
	}
	m.ticketSeq++
	return &core.TradeResult{
		Retcode: core.TradeRetcodeDone,
		Deal:    m.ticketSeq,
		Order:   m.ticketSeq,
		Volume:  req.Volume,
		Price:   req.Price,
		Comment: "Request executed",
	}, nil
}

func (m *MockTerminal) OrderCheck(ctx context.Context, req *core.TradeRequest) (*core.CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.checkResult != nil {
		return m.checkResult, nil
	}
	return &core.CheckResult{
		Retcode:    0,
		Balance:    m.account.Balance,
		Equity:     m.account.Equity,
		Margin:     m.marginResult,
		MarginFree: m.account.Balance - m.marginResult,
	}, nil
}

func (m *MockTerminal) OrderCalcMargin(ctx context.Context, kind core.OrderKind, symbol string, volume, price float64) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.marginErr != nil {
		return 0, m.marginErr
	}
	return m.marginResult, nil
}

func (m *MockTerminal) OrderCalcProfit(ctx context.Context, kind core.OrderKind, symbol string, volume, priceOpen, priceClose float64) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profitErr != nil {
		return 0, m.profitErr
	}
	return m.profitResult, nil
}

func (m *MockTerminal) LastError() core.VenueError {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}
