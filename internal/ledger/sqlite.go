package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"solarpunk-alphabot/internal/redistribute"
	"solarpunk-alphabot/internal/trader"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	timestamp TEXT,
	symbol TEXT,
	market TEXT,
	quantity TEXT,
	price REAL,
	status TEXT,
	profit TEXT,
	reason TEXT
);
CREATE TABLE IF NOT EXISTS cycles (
	id TEXT PRIMARY KEY,
	timestamp TEXT,
	opportunities_found INTEGER,
	opportunities_analyzed INTEGER,
	trades_executed INTEGER,
	total_profit TEXT
);
CREATE TABLE IF NOT EXISTS distributions (
	id TEXT PRIMARY KEY,
	timestamp TEXT,
	total_profit TEXT,
	crisis_amount TEXT,
	operator_amount TEXT,
	network_amount TEXT,
	details TEXT
);
CREATE TABLE IF NOT EXISTS errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT,
	cycle_id TEXT,
	error TEXT,
	context TEXT
);`

// SQLiteSink writes ledger rows to a local SQLite database file.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) ledger.db inside dir and ensures
// the schema exists.
func NewSQLiteSink(dir string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", filepath.Join(dir, "ledger.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite ledger: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// LogTrade implements Sink.
func (s *SQLiteSink) LogTrade(trade trader.Trade) error {
	_, err := s.db.Exec(
		`INSERT INTO trades (id, timestamp, symbol, market, quantity, price, status, profit, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID,
		trade.Timestamp.Format(time.RFC3339),
		trade.Symbol,
		string(trade.Market),
		trade.Quantity.String(),
		trade.Price,
		trade.Status,
		trade.Profit.StringFixed(2),
		trade.Reason,
	)
	return err
}

// LogCycle implements Sink.
func (s *SQLiteSink) LogCycle(summary CycleSummary) error {
	_, err := s.db.Exec(
		`INSERT INTO cycles (id, timestamp, opportunities_found, opportunities_analyzed, trades_executed, total_profit)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		summary.ID,
		summary.Timestamp.Format(time.RFC3339),
		summary.OpportunitiesFound,
		summary.OpportunitiesAnalyzed,
		summary.TradesExecuted,
		summary.TotalProfit.StringFixed(2),
	)
	return err
}

// LogDistribution implements Sink.
func (s *SQLiteSink) LogDistribution(record redistribute.DistributionRecord) error {
	crisis, operator, network := bucketTotals(record)

	details, err := json.Marshal(record.Allocations)
	if err != nil {
		details = []byte("[]")
	}

	_, err = s.db.Exec(
		`INSERT INTO distributions (id, timestamp, total_profit, crisis_amount, operator_amount, network_amount, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.Format(time.RFC3339),
		record.TotalProfit.StringFixed(2),
		crisis.StringFixed(2),
		operator.StringFixed(2),
		network.StringFixed(2),
		string(details),
	)
	return err
}

// LogError implements Sink.
func (s *SQLiteSink) LogError(cycleID, message string, context map[string]interface{}) error {
	ctx, err := json.Marshal(context)
	if err != nil || context == nil {
		ctx = []byte("{}")
	}

	_, err = s.db.Exec(
		`INSERT INTO errors (timestamp, cycle_id, error, context) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339),
		cycleID,
		message,
		string(ctx),
	)
	return err
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
