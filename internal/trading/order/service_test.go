package order

import (
	"context"
	"testing"

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

func newTestService(term *mock.MockTerminal) *Service {
	cfg := config.Default()
	sub := NewSubmitter(term, cfg, &mockLogger{})
	return NewService(term, sub, cfg, &mockLogger{})
}

func seedEURUSD(term *mock.MockTerminal) {
	term.SetSymbol(&core.SymbolInfo{
		Name:        "EURUSD",
		Point:       0.00001,
		Digits:      5,
		VolumeMin:   0.01,
		VolumeMax:   100.0,
		VolumeStep:  0.01,
		FreezeLevel: 10,
		FillingMask: core.FillingCapFOK | core.FillingCapIOC,
		Visible:     true,
	})
	term.SetTick("EURUSD", &core.Tick{Bid: 1.10000, Ask: 1.10010})
}

func TestPlace_MarketBuyUsesAsk(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	svc := newTestService(term)

	result, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol: "EURUSD",
		Kind:   core.OrderBuy,
		Volume: 0.1,
	})
	require.NoError(t, err)
	assert.True(t, result.Done())

	sent := term.LastSentRequest()
	require.NotNil(t, sent)
	assert.Equal(t, core.ActionDeal, sent.Action)
	assert.Equal(t, 1.10010, sent.Price)
	assert.Equal(t, core.FillingIOC, sent.Filling)
	assert.Equal(t, core.TimeGTC, sent.TimeType)
	assert.Equal(t, 20, sent.Deviation)
}

func TestPlace_MarketSellUsesBid(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	svc := newTestService(term)

	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol: "EURUSD",
		Kind:   core.OrderSell,
		Volume: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.10000, term.LastSentRequest().Price)
}

func TestPlace_MarketIgnoresClientPrice(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	svc := newTestService(term)

	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol:   "EURUSD",
		Kind:     core.OrderBuy,
		Volume:   0.1,
		Price:    1.23456,
		HasPrice: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.10010, term.LastSentRequest().Price)
}

func TestPlace_UnknownSymbolNotFound(t *testing.T) {
	term := mock.NewMockTerminal()
	svc := newTestService(term)

	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol: "NOPE",
		Kind:   core.OrderBuy,
		Volume: 0.1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Empty(t, term.SentRequests())
}

func TestPlace_InvalidVolumeStopsBeforeVenue(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	svc := newTestService(term)

	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol: "EURUSD",
		Kind:   core.OrderBuy,
		Volume: 0.015,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Empty(t, term.SentRequests())
}

func TestPlace_InvalidStopsRejected(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	svc := newTestService(term)

	badSL := 1.20000 // above the ask on a buy
	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol:   "EURUSD",
		Kind:     core.OrderBuy,
		Volume:   0.1,
		StopLoss: &badSL,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Empty(t, term.SentRequests())
}

func TestPlace_PendingRequiresPrice(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	svc := newTestService(term)

	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol: "EURUSD",
		Kind:   core.OrderBuyLimit,
		Volume: 0.1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestPlace_PendingValidPrice(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	svc := newTestService(term)

	result, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol:   "EURUSD",
		Kind:     core.OrderBuyLimit,
		Volume:   0.1,
		Price:    1.09500,
		HasPrice: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Done())

	sent := term.LastSentRequest()
	assert.Equal(t, core.ActionPending, sent.Action)
	assert.Equal(t, 1.09500, sent.Price)
}

func TestPlace_PendingPriceInsideFreezeRejected(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	svc := newTestService(term)

	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol:   "EURUSD",
		Kind:     core.OrderBuyLimit,
		Volume:   0.1,
		Price:    1.10005,
		HasPrice: true,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Empty(t, term.SentRequests())
}

func TestPlace_FillingOverrideMarketOnly(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	svc := newTestService(term)

	override := core.FillingFOK
	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol:  "EURUSD",
		Kind:    core.OrderBuy,
		Volume:  0.1,
		Filling: &override,
	})
	require.NoError(t, err)
	assert.Equal(t, core.FillingFOK, term.LastSentRequest().Filling)

	_, err = svc.Place(context.Background(), &core.OrderIntent{
		Symbol:   "EURUSD",
		Kind:     core.OrderBuyLimit,
		Volume:   0.1,
		Price:    1.09500,
		HasPrice: true,
		Filling:  &override,
	})
	require.NoError(t, err)
	// Pending orders ignore the override and use the capability scan.
	assert.Equal(t, core.FillingIOC, term.LastSentRequest().Filling)
}

func TestPlace_NilVenueResponse(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	term.NilOrderSend(true)
	svc := newTestService(term)

	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol: "EURUSD",
		Kind:   core.OrderBuy,
		Volume: 0.1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "MT5 returned None")
	// Single-shot: exactly one venue submission.
	assert.Len(t, term.SentRequests(), 1)
}

func TestPlace_RejectedClassification(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	term.SetOrderSendResult(&core.TradeResult{Retcode: 10016, Comment: "Invalid stops"})
	svc := newTestService(term)

	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol: "EURUSD",
		Kind:   core.OrderBuy,
		Volume: 0.1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindRejected, apperrors.KindOf(err))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 10016, appErr.Retcode)
	assert.Len(t, term.SentRequests(), 1)
}

func TestPlace_ConnectionRetcodeClassification(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	term.SetOrderSendResult(&core.TradeResult{Retcode: 10018, Comment: "Market closed"})
	svc := newTestService(term)

	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol: "EURUSD",
		Kind:   core.OrderBuy,
		Volume: 0.1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConnection, apperrors.KindOf(err))
}

func TestPlace_ConnectionLastErrorClassification(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	term.SetOrderSendResult(&core.TradeResult{Retcode: 10013, Comment: "Invalid request"})
	term.SetLastError(10004, "No connection to trade server")
	svc := newTestService(term)

	_, err := svc.Place(context.Background(), &core.OrderIntent{
		Symbol: "EURUSD",
		Kind:   core.OrderBuy,
		Volume: 0.1,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConnection, apperrors.KindOf(err))
}

func TestCheck_ReturnsMarginFigures(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	svc := newTestService(term)

	result, err := svc.Check(context.Background(), &core.OrderIntent{
		Symbol: "EURUSD",
		Kind:   core.OrderBuy,
		Volume: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Margin)
	// A dry run never submits.
	assert.Empty(t, term.SentRequests())
}

func TestCalcMargin(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	svc := newTestService(term)

	margin, err := svc.CalcMargin(context.Background(), core.OrderBuy, "EURUSD", 0.1, 1.1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, margin)

	_, err = svc.CalcMargin(context.Background(), core.OrderBuyLimit, "EURUSD", 0.1, 1.1)
	assert.Error(t, err)
	_, err = svc.CalcMargin(context.Background(), core.OrderBuy, "EURUSD", 0, 1.1)
	assert.Error(t, err)
}

func TestCancel_ResolvesTicket(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	term.SetOrders([]core.PendingOrder{
		{Ticket: 777, Symbol: "EURUSD", Kind: core.OrderBuyLimit, PriceOpen: 1.09500, Volume: 0.1},
	})
	svc := newTestService(term)

	result, err := svc.Cancel(context.Background(), 777)
	require.NoError(t, err)
	assert.True(t, result.Done())

	sent := term.LastSentRequest()
	assert.Equal(t, core.ActionRemove, sent.Action)
	assert.Equal(t, int64(777), sent.Order)
}

func TestCancel_UnknownTicket(t *testing.T) {
	term := mock.NewMockTerminal()
	svc := newTestService(term)

	_, err := svc.Cancel(context.Background(), 999)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestModify_MergesLiveOrderFields(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	term.SetOrders([]core.PendingOrder{
		{
			Ticket:    888,
			Symbol:    "EURUSD",
			Kind:      core.OrderBuyLimit,
			PriceOpen: 1.09500,
			StopLoss:  1.09000,
			Volume:    0.1,
		},
	})
	svc := newTestService(term)

	newTP := 1.12000
	result, err := svc.Modify(context.Background(), 888, nil, nil, &newTP)
	require.NoError(t, err)
	assert.True(t, result.Done())

	sent := term.LastSentRequest()
	assert.Equal(t, core.ActionModify, sent.Action)
	assert.Equal(t, 1.09500, sent.Price)
	require.NotNil(t, sent.StopLoss)
	assert.Equal(t, 1.09000, *sent.StopLoss)
	require.NotNil(t, sent.TakeProf)
	assert.Equal(t, 1.12000, *sent.TakeProf)
}

func TestModify_ZeroRemovesStop(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	term.SetOrders([]core.PendingOrder{
		{Ticket: 888, Symbol: "EURUSD", Kind: core.OrderBuyLimit, PriceOpen: 1.09500, StopLoss: 1.09000, Volume: 0.1},
	})
	svc := newTestService(term)

	zero := 0.0
	_, err := svc.Modify(context.Background(), 888, nil, &zero, nil)
	require.NoError(t, err)
	assert.Nil(t, term.LastSentRequest().StopLoss)
}

func TestModify_RevalidatesPrice(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	term.SetOrders([]core.PendingOrder{
		{Ticket: 888, Symbol: "EURUSD", Kind: core.OrderBuyLimit, PriceOpen: 1.09500, Volume: 0.1},
	})
	svc := newTestService(term)

	// New price on the wrong side of the ask.
	badPrice := 1.10100
	_, err := svc.Modify(context.Background(), 888, &badPrice, nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Empty(t, term.SentRequests())
}

func TestModify_RequiresAtLeastOneField(t *testing.T) {
	term := mock.NewMockTerminal()
	seedEURUSD(term)
	term.SetOrders([]core.PendingOrder{
		{Ticket: 888, Symbol: "EURUSD", Kind: core.OrderBuyLimit, PriceOpen: 1.09500, Volume: 0.1},
	})
	svc := newTestService(term)

	_, err := svc.Modify(context.Background(), 888, nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestList_PopulatesKindName(t *testing.T) {
	term := mock.NewMockTerminal()
	term.SetOrders([]core.PendingOrder{
		{Ticket: 1, Symbol: "EURUSD", Kind: core.OrderSellStop},
	})
	svc := newTestService(term)

	orders, err := svc.List(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "SELL_STOP", orders[0].KindName)
}

func TestList_EmptyIsNotError(t *testing.T) {
	term := mock.NewMockTerminal()
	svc := newTestService(term)

	orders, err := svc.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}
