package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func seed(term *mock.MockTerminal) {
	term.SetSymbol(&core.SymbolInfo{Name: "EURUSD", Visible: true, Digits: 5})
	term.SetTick("EURUSD", &core.Tick{Bid: 1.1, Ask: 1.1001, Time: time.Now()})
}

func TestAccount(t *testing.T) {
	term := mock.NewMockTerminal()
	svc := NewService(term, &mockLogger{})

	account, err := svc.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12345678), account.Login)

	term.NilAccountInfo(true)
	_, err = svc.Account(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConnection, apperrors.KindOf(err))
}

func TestInfo_UnknownSymbol(t *testing.T) {
	term := mock.NewMockTerminal()
	svc := NewService(term, &mockLogger{})

	_, err := svc.Info(context.Background(), "XXXYYY")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestTick(t *testing.T) {
	term := mock.NewMockTerminal()
	seed(term)
	svc := NewService(term, &mockLogger{})

	tick, err := svc.Tick(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.1, tick.Bid)
}

func TestBarsFromPos_Defaults(t *testing.T) {
	term := mock.NewMockTerminal()
	seed(term)
	bars := make([]core.Bar, 150)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = core.Bar{Time: base.Add(time.Duration(i) * time.Minute), Close: 1.1}
	}
	term.SetBars("EURUSD", bars)
	svc := NewService(term, &mockLogger{})

	// Empty timeframe and zero count fall back to M1 / 100 bars.
	got, err := svc.BarsFromPos(context.Background(), "EURUSD", "", 0)
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

func TestBarsFromPos_InvalidTimeframe(t *testing.T) {
	term := mock.NewMockTerminal()
	seed(term)
	svc := NewService(term, &mockLogger{})

	_, err := svc.BarsFromPos(context.Background(), "EURUSD", "M7", 10)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "valid options")
}

func TestBarsRange(t *testing.T) {
	term := mock.NewMockTerminal()
	seed(term)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	term.SetBars("EURUSD", []core.Bar{
		{Time: base, Close: 1.1},
		{Time: base.Add(time.Hour), Close: 1.2},
		{Time: base.Add(48 * time.Hour), Close: 1.3},
	})
	svc := NewService(term, &mockLogger{})

	got, err := svc.BarsRange(context.Background(), "EURUSD", "H1", base, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestHistoryDeals_DateOrder(t *testing.T) {
	term := mock.NewMockTerminal()
	svc := NewService(term, &mockLogger{})

	now := time.Now()
	_, err := svc.HistoryDeals(context.Background(), now, now.Add(-time.Hour), 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "from_date must be before to_date")
}

func TestDealFromTicket(t *testing.T) {
	term := mock.NewMockTerminal()
	term.SetDeals([]core.Deal{
		{Ticket: 1, Position: 500, Price: 1.1, Time: time.Now()},
		{Ticket: 2, Position: 500, Price: 1.2, Time: time.Now()},
	})
	svc := NewService(term, &mockLogger{})

	deal, err := svc.DealFromTicket(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deal.Ticket)

	_, err = svc.DealFromTicket(context.Background(), 999)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestOrderFromTicket(t *testing.T) {
	term := mock.NewMockTerminal()
	term.SetHistoryOrders([]core.HistoryOrder{
		{Ticket: 321, Symbol: "EURUSD"},
	})
	svc := NewService(term, &mockLogger{})

	order, err := svc.OrderFromTicket(context.Background(), 321)
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", order.Symbol)

	_, err = svc.OrderFromTicket(context.Background(), 111)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
