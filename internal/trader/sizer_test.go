package trader

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSize(t *testing.T) {
	tests := []struct {
		name              string
		price             float64
		marketClass       MarketClass
		confidence        float64
		suggestedFraction float64
		portfolioValue    float64
		maxPositionValue  float64
		wantValue         string
		wantQuantity      string
	}{
		{
			name:              "full confidence within cap",
			price:             100,
			marketClass:       MarketCrypto,
			confidence:        10,
			suggestedFraction: 0.05,
			portfolioValue:    1000,
			maxPositionValue:  100,
			wantValue:         "50",
			wantQuantity:      "0.5",
		},
		{
			name:              "half confidence halves the position",
			price:             100,
			marketClass:       MarketCrypto,
			confidence:        5,
			suggestedFraction: 0.05,
			portfolioValue:    1000,
			maxPositionValue:  100,
			wantValue:         "25",
			wantQuantity:      "0.25",
		},
		{
			name:              "max position value caps the trade",
			price:             100,
			marketClass:       MarketCrypto,
			confidence:        10,
			suggestedFraction: 0.5,
			portfolioValue:    1000,
			maxPositionValue:  100,
			wantValue:         "100",
			wantQuantity:      "1",
		},
		{
			name:              "crypto quantity truncates to six places",
			price:             3,
			marketClass:       MarketCrypto,
			confidence:        10,
			suggestedFraction: 0.1,
			portfolioValue:    1000,
			maxPositionValue:  1000,
			wantValue:         "100",
			wantQuantity:      "33.333333",
		},
		{
			name:              "prediction quantity truncates to two places",
			price:             3,
			marketClass:       MarketPrediction,
			confidence:        10,
			suggestedFraction: 0.1,
			portfolioValue:    1000,
			maxPositionValue:  1000,
			wantValue:         "100",
			wantQuantity:      "33.33",
		},
		{
			name:              "zero price yields zero quantity",
			price:             0,
			marketClass:       MarketCrypto,
			confidence:        10,
			suggestedFraction: 0.05,
			portfolioValue:    1000,
			maxPositionValue:  100,
			wantValue:         "50",
			wantQuantity:      "0",
		},
		{
			name:              "negative price yields zero quantity",
			price:             -10,
			marketClass:       MarketCrypto,
			confidence:        10,
			suggestedFraction: 0.05,
			portfolioValue:    1000,
			maxPositionValue:  100,
			wantValue:         "50",
			wantQuantity:      "0",
		},
		{
			name:              "negative portfolio passes through",
			price:             100,
			marketClass:       MarketCrypto,
			confidence:        10,
			suggestedFraction: 0.05,
			portfolioValue:    -1000,
			maxPositionValue:  100,
			wantValue:         "-50",
			wantQuantity:      "-0.5",
		},
		{
			name:              "zero confidence yields zero position",
			price:             100,
			marketClass:       MarketCrypto,
			confidence:        0,
			suggestedFraction: 0.05,
			portfolioValue:    1000,
			maxPositionValue:  100,
			wantValue:         "0",
			wantQuantity:      "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Size(tt.price, tt.marketClass, tt.confidence, tt.suggestedFraction, tt.portfolioValue, tt.maxPositionValue)

			wantValue, _ := decimal.NewFromString(tt.wantValue)
			wantQuantity, _ := decimal.NewFromString(tt.wantQuantity)

			if !got.PositionValue.Equal(wantValue) {
				t.Errorf("PositionValue = %s, want %s", got.PositionValue, wantValue)
			}
			if !got.Quantity.Equal(wantQuantity) {
				t.Errorf("Quantity = %s, want %s", got.Quantity, wantQuantity)
			}
		})
	}
}

func TestSizeConfidenceMultiplierClamped(t *testing.T) {
	if got := Size(100, MarketCrypto, 15, 0.05, 1000, 1000).ConfidenceMultiplier; got != 1 {
		t.Errorf("multiplier for confidence 15 = %v, want 1", got)
	}
	if got := Size(100, MarketCrypto, -3, 0.05, 1000, 1000).ConfidenceMultiplier; got != 0 {
		t.Errorf("multiplier for confidence -3 = %v, want 0", got)
	}
}

func TestSizeNonFiniteInputs(t *testing.T) {
	got := Size(math.NaN(), MarketCrypto, math.NaN(), math.Inf(1), math.Inf(-1), math.NaN())
	if !got.Quantity.IsZero() {
		t.Errorf("Quantity = %s, want 0", got.Quantity)
	}
	if !got.PositionValue.IsZero() {
		t.Errorf("PositionValue = %s, want 0", got.PositionValue)
	}
}
