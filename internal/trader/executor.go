// Package trader sizes and executes simulated trades against an
// in-memory portfolio. No real orders are placed in paper mode.
package trader

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solarpunk-alphabot/config"
	"solarpunk-alphabot/internal/scanner"
)

// Trade statuses.
const (
	TradeSimulated = "SIMULATED"
	TradePending   = "PENDING"
)

// Trade is one executed (or simulated) trade.
type Trade struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Market     MarketClass     `json:"market"`
	Price      float64         `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Value      decimal.Decimal `json:"value"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason"`
	Status     string          `json:"status"`
	Profit     decimal.Decimal `json:"profit"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Position is the net holding for one symbol.
type Position struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
	OpenedAt time.Time       `json:"opened_at"`
}

// paperProfitRate is the simulated return applied to a paper trade's
// position value, mirroring the original paper-mode behavior.
const paperProfitRate = 0.01

// Executor owns the position map and trade history. Positions are
// touched only from the single active cycle; the mutex exists because
// the dashboard reads them concurrently.
type Executor struct {
	mode             string
	maxPositionValue decimal.Decimal
	maxTotalExposure decimal.Decimal
	maxDailyTrades   int

	logger zerolog.Logger

	mu          sync.RWMutex
	balance     decimal.Decimal
	positions   map[string]*Position
	history     []Trade
	dailyTrades int
	dailyReset  time.Time
}

// NewExecutor creates a paper/live trade executor seeded with the
// configured starting balance.
func NewExecutor(botCfg config.BotConfig, tradingCfg config.TradingConfig, logger zerolog.Logger) *Executor {
	return &Executor{
		mode:             botCfg.Mode,
		maxPositionValue: decimal.NewFromFloat(tradingCfg.MaxPositionValue),
		maxTotalExposure: decimal.NewFromFloat(tradingCfg.MaxTotalExposure),
		maxDailyTrades:   botCfg.MaxDailyTrades,
		logger:           logger.With().Str("component", "trader").Logger(),
		balance:          decimal.NewFromFloat(tradingCfg.PaperStartingBalance),
		positions:        make(map[string]*Position),
		dailyReset:       time.Now().UTC().Truncate(24 * time.Hour),
	}
}

// CanTrade reports whether a new position in symbol is allowed under
// the per-symbol, daily-trade and total-exposure caps. The reason
// string names the failed cap.
func (e *Executor) CanTrade(symbol string) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.checkDailyReset()
	if e.maxDailyTrades > 0 && e.dailyTrades >= e.maxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached (%d/%d)", e.dailyTrades, e.maxDailyTrades)
	}

	exposure := decimal.Zero
	for _, pos := range e.positions {
		exposure = exposure.Add(pos.Value)
	}
	if exposure.GreaterThanOrEqual(e.maxTotalExposure) {
		return false, fmt.Sprintf("total exposure limit reached (%s/%s)", exposure.StringFixed(2), e.maxTotalExposure.StringFixed(2))
	}

	if pos, ok := e.positions[symbol]; ok && pos.Value.GreaterThanOrEqual(e.maxPositionValue) {
		return false, fmt.Sprintf("position limit reached for %s (%s)", symbol, pos.Value.StringFixed(2))
	}

	return true, ""
}

// Execute records a trade for the opportunity using the precomputed
// sizing. A zero or negative quantity yields no trade and no error.
func (e *Executor) Execute(opp scanner.Opportunity, confidence float64, reason string, sizing PositionSizing) *Trade {
	if !sizing.Quantity.IsPositive() {
		return nil
	}

	trade := Trade{
		ID:         uuid.NewString(),
		Symbol:     opp.Symbol,
		Market:     MarketClass(opp.MarketClass),
		Price:      opp.Price,
		Quantity:   sizing.Quantity,
		Value:      sizing.PositionValue,
		Confidence: confidence,
		Reason:     reason,
		Status:     TradePending,
		Timestamp:  time.Now().UTC(),
	}

	if e.mode == "paper" {
		trade.Status = TradeSimulated
		trade.Profit = sizing.PositionValue.Mul(decimal.NewFromFloat(paperProfitRate)).Truncate(2)
	}

	e.mu.Lock()
	pos, ok := e.positions[opp.Symbol]
	if !ok {
		pos = &Position{Symbol: opp.Symbol, OpenedAt: trade.Timestamp}
		e.positions[opp.Symbol] = pos
	}
	pos.Quantity = pos.Quantity.Add(trade.Quantity)
	pos.Value = pos.Value.Add(trade.Value)

	e.balance = e.balance.Add(trade.Profit)
	e.history = append(e.history, trade)
	e.checkDailyReset()
	e.dailyTrades++
	e.mu.Unlock()

	e.logger.Info().
		Str("trade_id", trade.ID).
		Str("symbol", trade.Symbol).
		Float64("price", trade.Price).
		Str("quantity", trade.Quantity.String()).
		Str("value", trade.Value.StringFixed(2)).
		Str("status", trade.Status).
		Msg("trade executed")

	return &trade
}

// PortfolioValue returns the current (paper) balance.
func (e *Executor) PortfolioValue() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, _ := e.balance.Float64()
	return v
}

// Positions returns a copy of the open positions.
func (e *Executor) Positions() []Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Position, 0, len(e.positions))
	for _, pos := range e.positions {
		out = append(out, *pos)
	}
	return out
}

// History returns a copy of the trade history.
func (e *Executor) History() []Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Trade, len(e.history))
	copy(out, e.history)
	return out
}

// checkDailyReset zeroes the daily trade counter at UTC midnight.
// Caller must hold the lock.
func (e *Executor) checkDailyReset() {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if today.After(e.dailyReset) {
		e.dailyTrades = 0
		e.dailyReset = today
	}
}
