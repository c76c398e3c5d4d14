package scanner

import "time"

// Opportunity is a candidate tradable instrument with its observed
// market metrics.
type Opportunity struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name,omitempty"`
	MarketClass string    `json:"market_class"` // "crypto" or "prediction"
	Price       float64   `json:"price"`
	Change      float64   `json:"change"` // percent over the stats window
	Volume      float64   `json:"volume"`
	Volatility  float64   `json:"volatility"` // (high-low)/open percent
	Timestamp   time.Time `json:"timestamp"`
}
