// Package ledger is the transparent, append-only record of everything
// the bot does: trades, cycle summaries, distributions and errors.
// Backends: CSV files (default), SQLite or PostgreSQL; an unavailable
// backend degrades to the CSV fallback rather than losing entries.
package ledger

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solarpunk-alphabot/config"
	"solarpunk-alphabot/internal/redistribute"
	"solarpunk-alphabot/internal/trader"
)

// CycleSummary is the per-tick record written once a cycle finishes.
type CycleSummary struct {
	ID                    string          `json:"id"`
	Timestamp             time.Time       `json:"timestamp"`
	OpportunitiesFound    int             `json:"opportunities_found"`
	OpportunitiesAnalyzed int             `json:"opportunities_analyzed"`
	TradesExecuted        int             `json:"trades_executed"`
	TotalProfit           decimal.Decimal `json:"total_profit"`
}

// Sink is the append-only write interface the orchestrator uses. No
// method may panic; a failing backend returns an error the fallback
// wrapper handles.
type Sink interface {
	LogTrade(trade trader.Trade) error
	LogCycle(summary CycleSummary) error
	LogDistribution(record redistribute.DistributionRecord) error
	LogError(cycleID, message string, context map[string]interface{}) error
	Close() error
}

// New builds the configured sink. Non-CSV backends are wrapped with a
// CSV fallback; when they cannot even be opened, the ledger degrades
// to CSV outright.
func New(cfg config.LedgerConfig, logger zerolog.Logger) (Sink, error) {
	logger = logger.With().Str("component", "ledger").Logger()

	csvSink, err := NewCSVSink(cfg.Path)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "sqlite":
		primary, err := NewSQLiteSink(cfg.Path)
		if err != nil {
			logger.Warn().Err(err).Msg("sqlite ledger unavailable, falling back to csv")
			return csvSink, nil
		}
		logger.Info().Msg("ledger initialized: sqlite with csv fallback")
		return newFallbackSink(primary, csvSink, logger), nil

	case "postgres":
		primary, err := NewPostgresSink(cfg.Postgres)
		if err != nil {
			logger.Warn().Err(err).Msg("postgres ledger unavailable, falling back to csv")
			return csvSink, nil
		}
		logger.Info().Msg("ledger initialized: postgres with csv fallback")
		return newFallbackSink(primary, csvSink, logger), nil

	default:
		logger.Info().Msg("ledger initialized: csv")
		return csvSink, nil
	}
}

// bucketTotals sums a record's allocations per top-level bucket.
func bucketTotals(record redistribute.DistributionRecord) (crisis, operator, network decimal.Decimal) {
	crisis, operator, network = decimal.Zero, decimal.Zero, decimal.Zero
	for _, alloc := range record.Allocations {
		switch alloc.RecipientClass {
		case redistribute.ClassCrisis:
			crisis = crisis.Add(alloc.Amount)
		case redistribute.ClassOperator:
			operator = operator.Add(alloc.Amount)
		case redistribute.ClassNetwork:
			network = network.Add(alloc.Amount)
		}
	}
	return crisis, operator, network
}

// fallbackSink forwards to the primary backend and, when a write
// fails, preserves the entry in the fallback instead.
type fallbackSink struct {
	primary  Sink
	fallback Sink
	logger   zerolog.Logger
}

func newFallbackSink(primary, fallback Sink, logger zerolog.Logger) Sink {
	return &fallbackSink{primary: primary, fallback: fallback, logger: logger}
}

func (f *fallbackSink) LogTrade(trade trader.Trade) error {
	if err := f.primary.LogTrade(trade); err != nil {
		f.logger.Warn().Err(err).Msg("primary ledger write failed, using fallback")
		return f.fallback.LogTrade(trade)
	}
	return nil
}

func (f *fallbackSink) LogCycle(summary CycleSummary) error {
	if err := f.primary.LogCycle(summary); err != nil {
		f.logger.Warn().Err(err).Msg("primary ledger write failed, using fallback")
		return f.fallback.LogCycle(summary)
	}
	return nil
}

func (f *fallbackSink) LogDistribution(record redistribute.DistributionRecord) error {
	if err := f.primary.LogDistribution(record); err != nil {
		f.logger.Warn().Err(err).Msg("primary ledger write failed, using fallback")
		return f.fallback.LogDistribution(record)
	}
	return nil
}

func (f *fallbackSink) LogError(cycleID, message string, context map[string]interface{}) error {
	if err := f.primary.LogError(cycleID, message, context); err != nil {
		f.logger.Warn().Err(err).Msg("primary ledger write failed, using fallback")
		return f.fallback.LogError(cycleID, message, context)
	}
	return nil
}

func (f *fallbackSink) Close() error {
	err := f.primary.Close()
	if cerr := f.fallback.Close(); err == nil {
		err = cerr
	}
	return err
}
