// Package core defines the typed domain model shared across the gateway.
//
// Every value that crosses the terminal boundary is converted into one of
// these types immediately; loosely-shaped venue payloads never travel past
// internal/terminal.
package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ConnectionState describes the lifecycle of the single terminal session.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateReconnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// OrderSide is the direction of a trade.
type OrderSide int

const (
	SideBuy OrderSide = iota
	SideSell
)

func (s OrderSide) String() string {
	if s == SideSell {
		return "SELL"
	}
	return "BUY"
}

// OrderKind is an MT5 order type. The numeric values are the terminal's own
// codes and form the only place they are spelled out.
type OrderKind int

const (
	OrderBuy       OrderKind = 0
	OrderSell      OrderKind = 1
	OrderBuyLimit  OrderKind = 2
	OrderSellLimit OrderKind = 3
	OrderBuyStop   OrderKind = 4
	OrderSellStop  OrderKind = 5
)

var orderKindNames = map[OrderKind]string{
	OrderBuy:       "BUY",
	OrderSell:      "SELL",
	OrderBuyLimit:  "BUY_LIMIT",
	OrderSellLimit: "SELL_LIMIT",
	OrderBuyStop:   "BUY_STOP",
	OrderSellStop:  "SELL_STOP",
}

func (k OrderKind) String() string {
	if name, ok := orderKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%d", int(k))
}

// ParseOrderKind maps a request string (case-insensitive) to an OrderKind.
func ParseOrderKind(s string) (OrderKind, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for kind, name := range orderKindNames {
		if name == upper {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("invalid order type: %q", s)
}

// IsBuySide reports whether the kind opens or grows a long exposure.
func (k OrderKind) IsBuySide() bool {
	switch k {
	case OrderBuy, OrderBuyLimit, OrderBuyStop:
		return true
	}
	return false
}

// IsMarket reports whether the kind executes immediately at market.
func (k OrderKind) IsMarket() bool {
	return k == OrderBuy || k == OrderSell
}

// IsPending reports whether the kind rests until a trigger price.
func (k OrderKind) IsPending() bool {
	switch k {
	case OrderBuyLimit, OrderSellLimit, OrderBuyStop, OrderSellStop:
		return true
	}
	return false
}

// Opposite returns the kind that flattens a position opened with k.
func (k OrderKind) Opposite() OrderKind {
	if k == OrderBuy {
		return OrderSell
	}
	return OrderBuy
}

// ActionKind is an MT5 trade action.
type ActionKind int

const (
	ActionDeal    ActionKind = 1
	ActionPending ActionKind = 5
	ActionSLTP    ActionKind = 6
	ActionModify  ActionKind = 7
	ActionRemove  ActionKind = 8
)

func (a ActionKind) String() string {
	switch a {
	case ActionDeal:
		return "DEAL"
	case ActionPending:
		return "PENDING"
	case ActionSLTP:
		return "SLTP"
	case ActionModify:
		return "MODIFY"
	case ActionRemove:
		return "REMOVE"
	default:
		return fmt.Sprintf("UNKNOWN_%d", int(a))
	}
}

// FillingMode is the order filling policy. FillingFOK's code is 0, which the
// terminal also treats as "no value provided".
type FillingMode int

const (
	FillingFOK    FillingMode = 0
	FillingIOC    FillingMode = 1
	FillingReturn FillingMode = 2
)

// Filling capability bits reported in SymbolInfo.FillingMask.
const (
	FillingCapFOK    = 1
	FillingCapIOC    = 2
	FillingCapReturn = 4
)

func (m FillingMode) String() string {
	switch m {
	case FillingIOC:
		return "IOC"
	case FillingReturn:
		return "RETURN"
	default:
		return "FOK"
	}
}

// TimePolicy is the order lifetime policy. Only GTC is used by the gateway.
type TimePolicy int

const TimeGTC TimePolicy = 0

// TradeRetcodeDone is the venue return code for an accepted instruction.
const TradeRetcodeDone = 10009

// Timeframe is an MT5 chart timeframe code.
type Timeframe int

var timeframes = map[string]Timeframe{
	"M1":  1,
	"M2":  2,
	"M3":  3,
	"M4":  4,
	"M5":  5,
	"M6":  6,
	"M10": 10,
	"M12": 12,
	"M15": 15,
	"M20": 20,
	"M30": 30,
	"H1":  16385,
	"H2":  16386,
	"H3":  16387,
	"H4":  16388,
	"H6":  16390,
	"H8":  16392,
	"H12": 16396,
	"D1":  16408,
	"W1":  32769,
	"MN1": 49153,
}

// ParseTimeframe maps a timeframe name (M1, H4, D1, ...) to its code.
func ParseTimeframe(s string) (Timeframe, error) {
	if tf, ok := timeframes[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return tf, nil
	}
	names := make([]string, 0, len(timeframes))
	for name := range timeframes {
		names = append(names, name)
	}
	sort.Strings(names)
	return 0, fmt.Errorf("invalid timeframe: %q, valid options: %s", s, strings.Join(names, ", "))
}

// AccountInfo is a point-in-time account snapshot.
type AccountInfo struct {
	Login      int64   `json:"login"`
	TradeMode  int     `json:"trade_mode"`
	Leverage   int     `json:"leverage"`
	Balance    float64 `json:"balance"`
	Credit     float64 `json:"credit"`
	Profit     float64 `json:"profit"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
	Currency   string  `json:"currency"`
	Server     string  `json:"server"`
	Company    string  `json:"company"`
	Name       string  `json:"name"`
}

// SymbolInfo carries the per-instrument trading constraints the validator
// needs, plus descriptive fields echoed to callers. Fetched fresh for every
// validation; the venue may change these values at any time.
type SymbolInfo struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Path          string  `json:"path"`
	Digits        int     `json:"digits"`
	Point         float64 `json:"point"`
	Spread        int     `json:"spread"`
	VolumeMin     float64 `json:"volume_min"`
	VolumeMax     float64 `json:"volume_max"`
	VolumeStep    float64 `json:"volume_step"`
	FreezeLevel   int     `json:"trade_freeze_level"`
	StopsLevel    int     `json:"trade_stops_level"`
	FillingMask   int     `json:"filling_mode"`
	ContractSize  float64 `json:"trade_contract_size"`
	TickValue     float64 `json:"trade_tick_value"`
	TickSize      float64 `json:"trade_tick_size"`
	CurrencyBase  string  `json:"currency_base"`
	CurrencyQuote string  `json:"currency_profit"`
	Visible       bool    `json:"visible"`
}

// FreezeDistance is the minimum price distance from market, in price units.
func (s *SymbolInfo) FreezeDistance() float64 {
	return float64(s.FreezeLevel) * s.Point
}

// Tick is the latest quote for a symbol.
type Tick struct {
	Time   time.Time `json:"time"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Last   float64   `json:"last"`
	Volume float64   `json:"volume"`
}

// Bar is one OHLC candle.
type Bar struct {
	Time       time.Time `json:"time"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	TickVolume int64     `json:"tick_volume"`
	Spread     int       `json:"spread"`
	RealVolume int64     `json:"real_volume"`
}

// Position is a read-only snapshot of an open position.
type Position struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Kind         OrderKind `json:"type"`
	Magic        int64     `json:"magic"`
	Identifier   int64     `json:"identifier"`
	Volume       float64   `json:"volume"`
	PriceOpen    float64   `json:"price_open"`
	PriceCurrent float64   `json:"price_current"`
	StopLoss     float64   `json:"sl"`
	TakeProfit   float64   `json:"tp"`
	Swap         float64   `json:"swap"`
	Profit       float64   `json:"profit"`
	Comment      string    `json:"comment"`
	Time         time.Time `json:"time"`
	TimeUpdate   time.Time `json:"time_update"`
}

// PendingOrder is a read-only snapshot of a resting order.
type PendingOrder struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Kind         OrderKind `json:"type"`
	KindName     string    `json:"type_str"`
	Magic        int64     `json:"magic"`
	Volume       float64   `json:"volume_current"`
	PriceOpen    float64   `json:"price_open"`
	PriceCurrent float64   `json:"price_current"`
	StopLoss     float64   `json:"sl"`
	TakeProfit   float64   `json:"tp"`
	Comment      string    `json:"comment"`
	TimeSetup    time.Time `json:"time_setup"`
}

// Deal is a read-only snapshot of an executed deal.
type Deal struct {
	Ticket     int64     `json:"ticket"`
	Order      int64     `json:"order"`
	Position   int64     `json:"position_id"`
	Symbol     string    `json:"symbol"`
	Kind       OrderKind `json:"type"`
	Entry      int       `json:"entry"`
	Magic      int64     `json:"magic"`
	Volume     float64   `json:"volume"`
	Price      float64   `json:"price"`
	Profit     float64   `json:"profit"`
	Commission float64   `json:"commission"`
	Swap       float64   `json:"swap"`
	Comment    string    `json:"comment"`
	Time       time.Time `json:"time"`
}

// HistoryOrder is a read-only snapshot of a historical (done) order.
type HistoryOrder struct {
	Ticket      int64     `json:"ticket"`
	Symbol      string    `json:"symbol"`
	Kind        OrderKind `json:"type"`
	State       int       `json:"state"`
	Magic       int64     `json:"magic"`
	PositionID  int64     `json:"position_id"`
	VolumeInit  float64   `json:"volume_initial"`
	VolumeCur   float64   `json:"volume_current"`
	PriceOpen   float64   `json:"price_open"`
	StopLoss    float64   `json:"sl"`
	TakeProfit  float64   `json:"tp"`
	Comment     string    `json:"comment"`
	TimeSetup   time.Time `json:"time_setup"`
	TimeDone    time.Time `json:"time_done"`
}

// OrderIntent is a caller's instruction after request decoding, before
// validation. Immutable once validated; the pipeline derives the venue-native
// TradeRequest from it.
type OrderIntent struct {
	Symbol     string
	Kind       OrderKind
	Volume     float64
	Price      float64 // required for pending kinds, ignored for market
	HasPrice   bool
	StopLoss   *float64
	TakeProfit *float64
	Deviation  int
	Magic      int64
	Comment    string
	Filling    *FillingMode // caller override, honored for market orders only
}

// TradeRequest is the venue-native instruction submitted over the session.
type TradeRequest struct {
	Action    ActionKind  `json:"action"`
	Symbol    string      `json:"symbol,omitempty"`
	Volume    float64     `json:"volume,omitempty"`
	Kind      OrderKind   `json:"type"`
	Price     float64     `json:"price,omitempty"`
	StopLoss  *float64    `json:"sl,omitempty"`
	TakeProf  *float64    `json:"tp,omitempty"`
	Deviation int         `json:"deviation,omitempty"`
	Magic     int64       `json:"magic"`
	Comment   string      `json:"comment,omitempty"`
	Position  int64       `json:"position,omitempty"`
	Order     int64       `json:"order,omitempty"`
	TimeType  TimePolicy  `json:"type_time"`
	Filling   FillingMode `json:"type_filling"`
}

// TradeResult is the venue's reply to a trade request.
type TradeResult struct {
	Retcode int     `json:"retcode"`
	Deal    int64   `json:"deal"`
	Order   int64   `json:"order"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	Comment string  `json:"comment"`
}

// Done reports whether the venue accepted the instruction.
func (r *TradeResult) Done() bool {
	return r.Retcode == TradeRetcodeDone
}

// CheckResult is the venue's reply to an order dry run.
type CheckResult struct {
	Retcode    int     `json:"retcode"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Profit     float64 `json:"profit"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
	Comment    string  `json:"comment"`
}

// VenueError is the terminal's last diagnostic (code + message), recorded by
// the session after each bridge call.
type VenueError struct {
	Code    int
	Message string
}
