// Package validate holds the pure order-validation rules. Every function
// takes fresh symbol constraints fetched for the call; nothing here touches
// the terminal or caches.
package validate

import (
	"github.com/shopspring/decimal"

	"github.com/Gabriel-Rockson/mt5-gateway/internal/core"
	apperrors "github.com/Gabriel-Rockson/mt5-gateway/pkg/errors"
)

// stepTolerance absorbs floating-point quantization noise: a volume within 1%
// of a step from the grid is treated as on the grid.
var stepTolerance = decimal.NewFromFloat(0.01)

// Volume checks that volume is inside [volume_min, volume_max] and sits on
// the venue's lot-step grid. Exact floating equality is never used; the grid
// distance is computed in decimal arithmetic.
func Volume(info *core.SymbolInfo, volume float64) error {
	if volume < info.VolumeMin {
		return apperrors.Validationf("Volume %g is below minimum %g", volume, info.VolumeMin).
			WithDetails(map[string]interface{}{
				"volume":     volume,
				"volume_min": info.VolumeMin,
			})
	}
	if volume > info.VolumeMax {
		return apperrors.Validationf("Volume %g is above maximum %g", volume, info.VolumeMax).
			WithDetails(map[string]interface{}{
				"volume":     volume,
				"volume_max": info.VolumeMax,
			})
	}
	if info.VolumeStep <= 0 {
		return nil
	}

	vol := decimal.NewFromFloat(volume)
	min := decimal.NewFromFloat(info.VolumeMin)
	step := decimal.NewFromFloat(info.VolumeStep)

	steps := vol.Sub(min).Div(step).Round(0)
	expected := min.Add(steps.Mul(step))
	tolerance := step.Mul(stepTolerance)

	if vol.Sub(expected).Abs().GreaterThan(tolerance) {
		nearest, _ := expected.Float64()
		return apperrors.Validationf("Volume %g is not a multiple of step %g", volume, info.VolumeStep).
			WithDetails(map[string]interface{}{
				"volume":        volume,
				"volume_step":   info.VolumeStep,
				"nearest_valid": nearest,
			})
	}
	return nil
}

// StopLossTakeProfit checks sl/tp placement against the entry price for the
// order's direction. Absent values are valid.
func StopLossTakeProfit(kind core.OrderKind, entryPrice float64, sl, tp *float64) error {
	buy := kind.IsBuySide()

	if sl != nil {
		if *sl <= 0 {
			return apperrors.Validation("Stop loss must be positive")
		}
		if buy && *sl >= entryPrice {
			return apperrors.Validationf("Stop loss %g must be below entry price %g for buy orders", *sl, entryPrice)
		}
		if !buy && *sl <= entryPrice {
			return apperrors.Validationf("Stop loss %g must be above entry price %g for sell orders", *sl, entryPrice)
		}
	}
	if tp != nil {
		if *tp <= 0 {
			return apperrors.Validation("Take profit must be positive")
		}
		if buy && *tp <= entryPrice {
			return apperrors.Validationf("Take profit %g must be above entry price %g for buy orders", *tp, entryPrice)
		}
		if !buy && *tp >= entryPrice {
			return apperrors.Validationf("Take profit %g must be below entry price %g for sell orders", *tp, entryPrice)
		}
	}
	return nil
}

// PendingPrice checks a pending order's trigger price: directional placement
// relative to the current market (limit better than market, stop beyond it)
// and minimum distance from the freeze level.
func PendingPrice(kind core.OrderKind, info *core.SymbolInfo, tick *core.Tick, price float64) error {
	if price <= 0 {
		return apperrors.Validation("Price must be positive for pending orders")
	}

	switch kind {
	case core.OrderBuyLimit:
		if price >= tick.Ask {
			return apperrors.Validationf("BUY_LIMIT price %g must be below current ask %g", price, tick.Ask)
		}
	case core.OrderSellLimit:
		if price <= tick.Bid {
			return apperrors.Validationf("SELL_LIMIT price %g must be above current bid %g", price, tick.Bid)
		}
	case core.OrderBuyStop:
		if price <= tick.Ask {
			return apperrors.Validationf("BUY_STOP price %g must be above current ask %g", price, tick.Ask)
		}
	case core.OrderSellStop:
		if price >= tick.Bid {
			return apperrors.Validationf("SELL_STOP price %g must be below current bid %g", price, tick.Bid)
		}
	default:
		return apperrors.Validationf("Order type %s is not a pending order type", kind)
	}

	reference := tick.Bid
	if kind.IsBuySide() {
		reference = tick.Ask
	}
	freezeDistance := info.FreezeDistance()
	if freezeDistance > 0 && abs(price-reference) < freezeDistance {
		return apperrors.Validationf("Price %g is too close to market (freeze level: %g)", price, freezeDistance).
			WithDetails(map[string]interface{}{
				"price":           price,
				"reference_price": reference,
				"freeze_distance": freezeDistance,
			})
	}
	return nil
}

// SelectFillingMode picks an order filling policy from the symbol's
// capability bitmask. IOC is preferred, then RETURN, then FOK. FOK's numeric
// code collides with the venue's "no value" sentinel, so it is the last
// resort even though its bit is the lowest.
func SelectFillingMode(info *core.SymbolInfo) core.FillingMode {
	switch {
	case info.FillingMask&core.FillingCapIOC != 0:
		return core.FillingIOC
	case info.FillingMask&core.FillingCapReturn != 0:
		return core.FillingReturn
	case info.FillingMask&core.FillingCapFOK != 0:
		return core.FillingFOK
	default:
		return core.FillingReturn
	}
}

// MergeStop resolves a stop level for a modify request: nil keeps the current
// value, an explicit 0 removes the stop, anything else replaces it.
func MergeStop(current float64, requested *float64) *float64 {
	if requested == nil {
		if current == 0 {
			return nil
		}
		return &current
	}
	if *requested == 0 {
		return nil
	}
	return requested
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
