package ledger

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"solarpunk-alphabot/internal/redistribute"
	"solarpunk-alphabot/internal/trader"
)

var csvHeaders = map[string][]string{
	"trades.csv":        {"ID", "Timestamp", "Symbol", "Market", "Quantity", "Price", "Status", "Profit", "Reason"},
	"cycles.csv":        {"CycleID", "Timestamp", "Opportunities", "Analyzed", "Trades", "Profit"},
	"distributions.csv": {"DistributionID", "Timestamp", "Profit", "CrisisAmount", "OperatorAmount", "NetworkAmount", "Details"},
	"errors.csv":        {"Timestamp", "CycleID", "Error", "Context"},
}

// CSVSink appends ledger rows to per-record-type CSV files in a
// directory. It is the default backend and the fallback for the rest.
type CSVSink struct {
	dir string
	mu  sync.Mutex
}

// NewCSVSink creates the ledger directory and seeds each CSV file with
// its header row when missing.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	for name, headers := range csvHeaders {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := writeCSVRow(path, headers); err != nil {
			return nil, fmt.Errorf("failed to initialize %s: %w", name, err)
		}
	}

	return &CSVSink{dir: dir}, nil
}

// LogTrade implements Sink.
func (s *CSVSink) LogTrade(trade trader.Trade) error {
	return s.append("trades.csv", []string{
		trade.ID,
		trade.Timestamp.Format(time.RFC3339),
		trade.Symbol,
		string(trade.Market),
		trade.Quantity.String(),
		fmt.Sprintf("%.6f", trade.Price),
		trade.Status,
		trade.Profit.StringFixed(2),
		trade.Reason,
	})
}

// LogCycle implements Sink.
func (s *CSVSink) LogCycle(summary CycleSummary) error {
	return s.append("cycles.csv", []string{
		summary.ID,
		summary.Timestamp.Format(time.RFC3339),
		fmt.Sprintf("%d", summary.OpportunitiesFound),
		fmt.Sprintf("%d", summary.OpportunitiesAnalyzed),
		fmt.Sprintf("%d", summary.TradesExecuted),
		summary.TotalProfit.StringFixed(2),
	})
}

// LogDistribution implements Sink.
func (s *CSVSink) LogDistribution(record redistribute.DistributionRecord) error {
	crisis, operator, network := bucketTotals(record)

	details, err := json.Marshal(record.Allocations)
	if err != nil {
		details = []byte("[]")
	}

	return s.append("distributions.csv", []string{
		record.ID,
		record.Timestamp.Format(time.RFC3339),
		record.TotalProfit.StringFixed(2),
		crisis.StringFixed(2),
		operator.StringFixed(2),
		network.StringFixed(2),
		string(details),
	})
}

// LogError implements Sink.
func (s *CSVSink) LogError(cycleID, message string, context map[string]interface{}) error {
	ctx, err := json.Marshal(context)
	if err != nil || context == nil {
		ctx = []byte("{}")
	}

	return s.append("errors.csv", []string{
		time.Now().UTC().Format(time.RFC3339),
		cycleID,
		message,
		string(ctx),
	})
}

// Close implements Sink; CSV files are opened per write.
func (s *CSVSink) Close() error { return nil }

func (s *CSVSink) append(name string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeCSVRow(filepath.Join(s.dir, name), row)
}

func writeCSVRow(path string, row []string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(row); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
