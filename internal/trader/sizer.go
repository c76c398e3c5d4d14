package trader

import (
	"math"

	"github.com/shopspring/decimal"
)

// MarketClass determines quantity precision: crypto quantities truncate
// to 6 decimal places, everything else to 2.
type MarketClass string

const (
	MarketCrypto     MarketClass = "crypto"
	MarketPrediction MarketClass = "prediction"
)

// PositionSizing is the ephemeral result of sizing one trade
// candidate. It is computed fresh per candidate and only survives in
// the trade record that consumes it.
type PositionSizing struct {
	PositionValue        decimal.Decimal
	Quantity             decimal.Decimal
	ConfidenceMultiplier float64 // 0..1
}

// Size computes the position for one opportunity:
//
//	adjustedFraction = suggestedFraction × (confidence / 10)
//	positionValue    = min(portfolioValue × adjustedFraction, maxPositionValue)
//	quantity         = positionValue / price
//
// price ≤ 0 yields a zero quantity without dividing. A negative
// portfolio value passes through arithmetically and produces a
// negative or zero position; the caller decides whether to act on it.
func Size(price float64, marketClass MarketClass, confidence, suggestedFraction, portfolioValue, maxPositionValue float64) PositionSizing {
	multiplier := clamp01(confidence / 10)
	adjustedFraction := sanitize(suggestedFraction) * multiplier

	positionValue := sanitize(portfolioValue) * adjustedFraction
	if max := sanitize(maxPositionValue); positionValue > max {
		positionValue = max
	}

	sizing := PositionSizing{
		PositionValue:        decimal.NewFromFloat(positionValue).Truncate(2),
		Quantity:             decimal.Zero,
		ConfidenceMultiplier: multiplier,
	}

	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return sizing
	}

	quantity := sizing.PositionValue.Div(decimal.NewFromFloat(price))
	if marketClass == MarketCrypto {
		sizing.Quantity = quantity.Truncate(6)
	} else {
		sizing.Quantity = quantity.Truncate(2)
	}

	return sizing
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func sanitize(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
