package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"solarpunk-alphabot/config"
	"solarpunk-alphabot/internal/redistribute"
	"solarpunk-alphabot/internal/trader"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	timestamp TIMESTAMPTZ,
	symbol TEXT,
	market TEXT,
	quantity TEXT,
	price DOUBLE PRECISION,
	status TEXT,
	profit TEXT,
	reason TEXT
);
CREATE TABLE IF NOT EXISTS cycles (
	id TEXT PRIMARY KEY,
	timestamp TIMESTAMPTZ,
	opportunities_found INTEGER,
	opportunities_analyzed INTEGER,
	trades_executed INTEGER,
	total_profit TEXT
);
CREATE TABLE IF NOT EXISTS distributions (
	id TEXT PRIMARY KEY,
	timestamp TIMESTAMPTZ,
	total_profit TEXT,
	crisis_amount TEXT,
	operator_amount TEXT,
	network_amount TEXT,
	details JSONB
);
CREATE TABLE IF NOT EXISTS errors (
	id BIGSERIAL PRIMARY KEY,
	timestamp TIMESTAMPTZ,
	cycle_id TEXT,
	error TEXT,
	context JSONB
);`

// PostgresSink writes ledger rows to PostgreSQL through a pgx pool.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to PostgreSQL and ensures the schema.
func NewPostgresSink(cfg config.PostgresConfig) (*PostgresSink, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = 5

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create postgres schema: %w", err)
	}

	return &PostgresSink{pool: pool}, nil
}

// LogTrade implements Sink.
func (s *PostgresSink) LogTrade(trade trader.Trade) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO trades (id, timestamp, symbol, market, quantity, price, status, profit, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		trade.ID,
		trade.Timestamp,
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
func (s *PostgresSink) LogCycle(summary CycleSummary) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO cycles (id, timestamp, opportunities_found, opportunities_analyzed, trades_executed, total_profit)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		summary.ID,
		summary.Timestamp,
		summary.OpportunitiesFound,
		summary.OpportunitiesAnalyzed,
		summary.TradesExecuted,
		summary.TotalProfit.StringFixed(2),
	)
	return err
}

// LogDistribution implements Sink.
func (s *PostgresSink) LogDistribution(record redistribute.DistributionRecord) error {
	crisis, operator, network := bucketTotals(record)

	details, err := json.Marshal(record.Allocations)
	if err != nil {
		details = []byte("[]")
	}

	_, err = s.pool.Exec(context.Background(),
		`INSERT INTO distributions (id, timestamp, total_profit, crisis_amount, operator_amount, network_amount, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID,
		record.Timestamp,
		record.TotalProfit.StringFixed(2),
		crisis.StringFixed(2),
		operator.StringFixed(2),
		network.StringFixed(2),
		details,
	)
	return err
}

// LogError implements Sink.
func (s *PostgresSink) LogError(cycleID, message string, fields map[string]interface{}) error {
	ctx, err := json.Marshal(fields)
	if err != nil || fields == nil {
		ctx = []byte("{}")
	}

	_, err = s.pool.Exec(context.Background(),
		`INSERT INTO errors (timestamp, cycle_id, error, context) VALUES ($1, $2, $3, $4)`,
		time.Now().UTC(),
		cycleID,
		message,
		ctx,
	)
	return err
}

// Close implements Sink.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
