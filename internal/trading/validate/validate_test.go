package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
)

func euSymbol() *core.SymbolInfo {
	return &core.SymbolInfo{
		Name:        "EURUSD",
		Point:       0.00001,
		VolumeMin:   0.01,
		VolumeMax:   100.0,
		VolumeStep:  0.01,
		FreezeLevel: 10,
		FillingMask: core.FillingCapFOK | core.FillingCapIOC,
	}
}

func TestVolume_GridPointsAccepted(t *testing.T) {
	info := euSymbol()
	for _, v := range []float64{0.01, 0.02, 0.03, 0.1, 0.15, 1.0, 2.37, 99.99, 100.0} {
		assert.NoError(t, Volume(info, v), "volume %g", v)
	}
}

func TestVolume_OffGridRejected(t *testing.T) {
	info := euSymbol()
	for _, v := range []float64{0.015, 0.011, 0.105, 1.234} {
		err := Volume(info, v)
		assert.Error(t, err, "volume %g", v)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	}
}

func TestVolume_WithinTolerance(t *testing.T) {
	info := euSymbol()
	// Offsets under 1% of a step count as on the grid.
	assert.NoError(t, Volume(info, 0.02+0.00005))
	assert.Error(t, Volume(info, 0.02+0.0002))
}

func TestVolume_Bounds(t *testing.T) {
	info := euSymbol()
	assert.Error(t, Volume(info, 0.005))
	assert.Error(t, Volume(info, 150.0))
	assert.NoError(t, Volume(info, info.VolumeMin))
	assert.NoError(t, Volume(info, info.VolumeMax))
}

func TestVolume_FloatAccumulationNoise(t *testing.T) {
	info := euSymbol()
	// 0.1+0.2 style accumulation must not fall off the grid.
	v := 0.0
	for i := 0; i < 29; i++ {
		v += 0.01
	}
	assert.NoError(t, Volume(info, v))
}

func TestStopLossTakeProfit_BuyDirection(t *testing.T) {
	entry := 1.1000
	sl := 1.0950
	tp := 1.1100
	assert.NoError(t, StopLossTakeProfit(core.OrderBuy, entry, &sl, &tp))

	badSL := 1.1050
	assert.Error(t, StopLossTakeProfit(core.OrderBuy, entry, &badSL, nil))
	badTP := 1.0900
	assert.Error(t, StopLossTakeProfit(core.OrderBuy, entry, nil, &badTP))
}

func TestStopLossTakeProfit_SellDirection(t *testing.T) {
	entry := 1.1000
	sl := 1.1050
	tp := 1.0900
	assert.NoError(t, StopLossTakeProfit(core.OrderSell, entry, &sl, &tp))

	badSL := 1.0950
	assert.Error(t, StopLossTakeProfit(core.OrderSell, entry, &badSL, nil))
	badTP := 1.1100
	assert.Error(t, StopLossTakeProfit(core.OrderSell, entry, nil, &badTP))
}

func TestStopLossTakeProfit_AbsentIsValid(t *testing.T) {
	assert.NoError(t, StopLossTakeProfit(core.OrderBuy, 1.1, nil, nil))
}

func TestStopLossTakeProfit_MustBePositive(t *testing.T) {
	zero := 0.0
	negative := -1.0
	assert.Error(t, StopLossTakeProfit(core.OrderBuy, 1.1, &zero, nil))
	assert.Error(t, StopLossTakeProfit(core.OrderSell, 1.1, nil, &negative))
}

func TestStopLossTakeProfit_PendingKindsUseSide(t *testing.T) {
	entry := 1.1000
	sl := 1.0950
	tp := 1.1100
	assert.NoError(t, StopLossTakeProfit(core.OrderBuyLimit, entry, &sl, &tp))
	assert.NoError(t, StopLossTakeProfit(core.OrderBuyStop, entry, &sl, &tp))
	assert.Error(t, StopLossTakeProfit(core.OrderSellLimit, entry, &sl, &tp))
}

func pendingTick() *core.Tick {
	return &core.Tick{Bid: 1.10000, Ask: 1.10010}
}

func TestPendingPrice_BuyLimit(t *testing.T) {
	info := euSymbol() // freeze distance 10 * 0.00001 = 0.0001
	tick := pendingTick()

	// At or above ask: wrong side of market.
	assert.Error(t, PendingPrice(core.OrderBuyLimit, info, tick, tick.Ask))
	assert.Error(t, PendingPrice(core.OrderBuyLimit, info, tick, 1.10100))
	// Below ask but inside the freeze band.
	assert.Error(t, PendingPrice(core.OrderBuyLimit, info, tick, 1.10005))
	// Below ask and clear of the freeze band.
	assert.NoError(t, PendingPrice(core.OrderBuyLimit, info, tick, 1.09900))
}

func TestPendingPrice_SellLimit(t *testing.T) {
	info := euSymbol()
	tick := pendingTick()

	assert.Error(t, PendingPrice(core.OrderSellLimit, info, tick, tick.Bid))
	assert.Error(t, PendingPrice(core.OrderSellLimit, info, tick, 1.10005))
	assert.NoError(t, PendingPrice(core.OrderSellLimit, info, tick, 1.10100))
}

func TestPendingPrice_Stops(t *testing.T) {
	info := euSymbol()
	tick := pendingTick()

	assert.NoError(t, PendingPrice(core.OrderBuyStop, info, tick, 1.10100))
	assert.Error(t, PendingPrice(core.OrderBuyStop, info, tick, 1.09900))
	assert.NoError(t, PendingPrice(core.OrderSellStop, info, tick, 1.09900))
	assert.Error(t, PendingPrice(core.OrderSellStop, info, tick, 1.10100))
}

func TestPendingPrice_NonPositive(t *testing.T) {
	assert.Error(t, PendingPrice(core.OrderBuyLimit, euSymbol(), pendingTick(), 0))
	assert.Error(t, PendingPrice(core.OrderBuyLimit, euSymbol(), pendingTick(), -1))
}

func TestSelectFillingMode_Priority(t *testing.T) {
	cases := []struct {
		mask int
		want core.FillingMode
	}{
		{core.FillingCapIOC, core.FillingIOC},
		{core.FillingCapIOC | core.FillingCapFOK | core.FillingCapReturn, core.FillingIOC},
		{core.FillingCapReturn, core.FillingReturn},
		{core.FillingCapReturn | core.FillingCapFOK, core.FillingReturn},
		{core.FillingCapFOK, core.FillingFOK},
		{0, core.FillingReturn},
	}
	for _, tc := range cases {
		info := &core.SymbolInfo{FillingMask: tc.mask}
		assert.Equal(t, tc.want, SelectFillingMode(info), "mask %b", tc.mask)
	}
}

func TestMergeStop(t *testing.T) {
	ptr := func(v float64) *float64 { return &v }

	// nil keeps the current level; a zero current level stays absent.
	assert.Nil(t, MergeStop(0, nil))
	if got := MergeStop(1.2345, nil); assert.NotNil(t, got) {
		assert.Equal(t, 1.2345, *got)
	}

	// Explicit zero removes the stop, anything else replaces it.
	assert.Nil(t, MergeStop(1.2345, ptr(0)))
	if got := MergeStop(1.2345, ptr(1.3)); assert.NotNil(t, got) {
		assert.Equal(t, 1.3, *got)
	}
}
