package terminal

import (
	"encoding/json"
	"time"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
)

// command is one request frame on the bridge socket.
type command struct {
	ID     uint64      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// reply is one response frame. Result is null when the terminal call
// produced no value; Error carries the terminal's last-error diagnostic.
type reply struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// The wire* structs mirror the loosely-shaped dictionaries the terminal
// bridge emits. They exist only in this package; each converts to its typed
// core counterpart before leaving the boundary. Timestamps on the wire are
// unix seconds.

type wireAccount struct {
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

func (w *wireAccount) toCore() *core.AccountInfo {
	return &core.AccountInfo{
		Login:      w.Login,
		TradeMode:  w.TradeMode,
		Leverage:   w.Leverage,
		Balance:    w.Balance,
		Credit:     w.Credit,
		Profit:     w.Profit,
		Equity:     w.Equity,
		Margin:     w.Margin,
		MarginFree: w.MarginFree,
		Currency:   w.Currency,
		Server:     w.Server,
		Company:    w.Company,
		Name:       w.Name,
	}
}

type wireSymbolInfo struct {
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
	FillingMode   int     `json:"filling_mode"`
	ContractSize  float64 `json:"trade_contract_size"`
	TickValue     float64 `json:"trade_tick_value"`
	TickSize      float64 `json:"trade_tick_size"`
	CurrencyBase  string  `json:"currency_base"`
	CurrencyQuote string  `json:"currency_profit"`
	Visible       bool    `json:"visible"`
}

func (w *wireSymbolInfo) toCore() *core.SymbolInfo {
	return &core.SymbolInfo{
		Name:          w.Name,
		Description:   w.Description,
		Path:          w.Path,
		Digits:        w.Digits,
		Point:         w.Point,
		Spread:        w.Spread,
		VolumeMin:     w.VolumeMin,
		VolumeMax:     w.VolumeMax,
		VolumeStep:    w.VolumeStep,
		FreezeLevel:   w.FreezeLevel,
		StopsLevel:    w.StopsLevel,
		FillingMask:   w.FillingMode,
		ContractSize:  w.ContractSize,
		TickValue:     w.TickValue,
		TickSize:      w.TickSize,
		CurrencyBase:  w.CurrencyBase,
		CurrencyQuote: w.CurrencyQuote,
		Visible:       w.Visible,
	}
}

type wireTick struct {
	Time   int64   `json:"time"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Volume float64 `json:"volume_real"`
}

func (w *wireTick) toCore() *core.Tick {
	return &core.Tick{
		Time:   time.Unix(w.Time, 0).UTC(),
		Bid:    w.Bid,
		Ask:    w.Ask,
		Last:   w.Last,
		Volume: w.Volume,
	}
}

type wireBar struct {
	Time       int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	TickVolume int64   `json:"tick_volume"`
	Spread     int     `json:"spread"`
	RealVolume int64   `json:"real_volume"`
}

func (w *wireBar) toCore() core.Bar {
	return core.Bar{
		Time:       time.Unix(w.Time, 0).UTC(),
		Open:       w.Open,
		High:       w.High,
		Low:        w.Low,
		Close:      w.Close,
		TickVolume: w.TickVolume,
		Spread:     w.Spread,
		RealVolume: w.RealVolume,
	}
}

type wirePosition struct {
	Ticket       int64   `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Type         int     `json:"type"`
	Magic        int64   `json:"magic"`
	Identifier   int64   `json:"identifier"`
	Volume       float64 `json:"volume"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	SL           float64 `json:"sl"`
	TP           float64 `json:"tp"`
	Swap         float64 `json:"swap"`
	Profit       float64 `json:"profit"`
	Comment      string  `json:"comment"`
	Time         int64   `json:"time"`
	TimeUpdate   int64   `json:"time_update"`
}

func (w *wirePosition) toCore() core.Position {
	return core.Position{
		Ticket:       w.Ticket,
		Symbol:       w.Symbol,
		Kind:         core.OrderKind(w.Type),
		Magic:        w.Magic,
		Identifier:   w.Identifier,
		Volume:       w.Volume,
		PriceOpen:    w.PriceOpen,
		PriceCurrent: w.PriceCurrent,
		StopLoss:     w.SL,
		TakeProfit:   w.TP,
		Swap:         w.Swap,
		Profit:       w.Profit,
		Comment:      w.Comment,
		Time:         time.Unix(w.Time, 0).UTC(),
		TimeUpdate:   time.Unix(w.TimeUpdate, 0).UTC(),
	}
}

type wireOrder struct {
	Ticket        int64   `json:"ticket"`
	Symbol        string  `json:"symbol"`
	Type          int     `json:"type"`
	Magic         int64   `json:"magic"`
	VolumeCurrent float64 `json:"volume_current"`
	PriceOpen     float64 `json:"price_open"`
	PriceCurrent  float64 `json:"price_current"`
	SL            float64 `json:"sl"`
	TP            float64 `json:"tp"`
	Comment       string  `json:"comment"`
	TimeSetup     int64   `json:"time_setup"`
}

func (w *wireOrder) toCore() core.PendingOrder {
	kind := core.OrderKind(w.Type)
	return core.PendingOrder{
		Ticket:       w.Ticket,
		Symbol:       w.Symbol,
		Kind:         kind,
		KindName:     kind.String(),
		Magic:        w.Magic,
		Volume:       w.VolumeCurrent,
		PriceOpen:    w.PriceOpen,
		PriceCurrent: w.PriceCurrent,
		StopLoss:     w.SL,
		TakeProfit:   w.TP,
		Comment:      w.Comment,
		TimeSetup:    time.Unix(w.TimeSetup, 0).UTC(),
	}
}

type wireDeal struct {
	Ticket     int64   `json:"ticket"`
	Order      int64   `json:"order"`
	PositionID int64   `json:"position_id"`
	Symbol     string  `json:"symbol"`
	Type       int     `json:"type"`
	Entry      int     `json:"entry"`
	Magic      int64   `json:"magic"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	Profit     float64 `json:"profit"`
	Commission float64 `json:"commission"`
	Swap       float64 `json:"swap"`
	Comment    string  `json:"comment"`
	Time       int64   `json:"time"`
}

func (w *wireDeal) toCore() core.Deal {
	return core.Deal{
		Ticket:     w.Ticket,
		Order:      w.Order,
		Position:   w.PositionID,
		Symbol:     w.Symbol,
		Kind:       core.OrderKind(w.Type),
		Entry:      w.Entry,
		Magic:      w.Magic,
		Volume:     w.Volume,
		Price:      w.Price,
		Profit:     w.Profit,
		Commission: w.Commission,
		Swap:       w.Swap,
		Comment:    w.Comment,
		Time:       time.Unix(w.Time, 0).UTC(),
	}
}

type wireHistoryOrder struct {
	Ticket        int64   `json:"ticket"`
	Symbol        string  `json:"symbol"`
	Type          int     `json:"type"`
	State         int     `json:"state"`
	Magic         int64   `json:"magic"`
	PositionID    int64   `json:"position_id"`
	VolumeInitial float64 `json:"volume_initial"`
	VolumeCurrent float64 `json:"volume_current"`
	PriceOpen     float64 `json:"price_open"`
	SL            float64 `json:"sl"`
	TP            float64 `json:"tp"`
	Comment       string  `json:"comment"`
	TimeSetup     int64   `json:"time_setup"`
	TimeDone      int64   `json:"time_done"`
}

func (w *wireHistoryOrder) toCore() core.HistoryOrder {
	return core.HistoryOrder{
		Ticket:     w.Ticket,
		Symbol:     w.Symbol,
		Kind:       core.OrderKind(w.Type),
		State:      w.State,
		Magic:      w.Magic,
		PositionID: w.PositionID,
		VolumeInit: w.VolumeInitial,
		VolumeCur:  w.VolumeCurrent,
		PriceOpen:  w.PriceOpen,
		StopLoss:   w.SL,
		TakeProfit: w.TP,
		Comment:    w.Comment,
		TimeSetup:  time.Unix(w.TimeSetup, 0).UTC(),
		TimeDone:   time.Unix(w.TimeDone, 0).UTC(),
	}
}

type wireTradeResult struct {
	Retcode int     `json:"retcode"`
	Deal    int64   `json:"deal"`
	Order   int64   `json:"order"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	Comment string  `json:"comment"`
}

func (w *wireTradeResult) toCore() *core.TradeResult {
	return &core.TradeResult{
		Retcode: w.Retcode,
		Deal:    w.Deal,
		Order:   w.Order,
		Volume:  w.Volume,
		Price:   w.Price,
		Bid:     w.Bid,
		Ask:     w.Ask,
		Comment: w.Comment,
	}
}

type wireCheckResult struct {
	Retcode    int     `json:"retcode"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Profit     float64 `json:"profit"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
	Comment    string  `json:"comment"`
}

func (w *wireCheckResult) toCore() *core.CheckResult {
	return &core.CheckResult{
		Retcode:    w.Retcode,
		Balance:    w.Balance,
		Equity:     w.Equity,
		Profit:     w.Profit,
		Margin:     w.Margin,
		MarginFree: w.MarginFree,
		Comment:    w.Comment,
	}
}

// tradeRequestParams is the wire form of a core.TradeRequest.
func tradeRequestParams(req *core.TradeRequest) map[string]interface{} {
	params := map[string]interface{}{
		"action":       int(req.Action),
		"type":         int(req.Kind),
		"magic":        req.Magic,
		"type_time":    int(req.TimeType),
		"type_filling": int(req.Filling),
	}
	if req.Symbol != "" {
		params["symbol"] = req.Symbol
	}
	if req.Volume > 0 {
		params["volume"] = req.Volume
	}
	if req.Price > 0 {
		params["price"] = req.Price
	}
	if req.StopLoss != nil {
		params["sl"] = *req.StopLoss
	}
	if req.TakeProf != nil {
		params["tp"] = *req.TakeProf
	}
	if req.Deviation > 0 {
		params["deviation"] = req.Deviation
	}
	if req.Comment != "" {
		params["comment"] = req.Comment
	}
	if req.Position != 0 {
		params["position"] = req.Position
	}
	if req.Order != 0 {
		params["order"] = req.Order
	}
	return params
}
