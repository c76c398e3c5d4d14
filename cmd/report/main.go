// Command report summarizes the CSV ledger: per-symbol trade stats and
// cumulative distribution totals.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
)

type symbolStats struct {
	Symbol string
	Trades int
	Profit decimal.Decimal
}

func main() {
	ledgerDir := flag.String("ledger", "./ledger", "path to the ledger directory")
	flag.Parse()

	trades, err := readCSV(filepath.Join(*ledgerDir, "trades.csv"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read trades: %v\n", err)
		os.Exit(1)
	}

	stats := make(map[string]*symbolStats)
	totalProfit := decimal.Zero
	for _, row := range trades {
		// ID,Timestamp,Symbol,Market,Quantity,Price,Status,Profit,Reason
		if len(row) < 9 {
			continue
		}
		symbol := row[2]
		profit, err := decimal.NewFromString(row[7])
		if err != nil {
			continue
		}

		st, ok := stats[symbol]
		if !ok {
			st = &symbolStats{Symbol: symbol}
			stats[symbol] = st
		}
		st.Trades++
		st.Profit = st.Profit.Add(profit)
		totalProfit = totalProfit.Add(profit)
	}

	ordered := make([]*symbolStats, 0, len(stats))
	for _, st := range stats {
		ordered = append(ordered, st)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Profit.GreaterThan(ordered[j].Profit)
	})

	fmt.Println("TRADES")
	fmt.Printf("%-14s %8s %12s\n", "Symbol", "Trades", "Profit")
	for _, st := range ordered {
		fmt.Printf("%-14s %8d %12s\n", st.Symbol, st.Trades, st.Profit.StringFixed(2))
	}
	fmt.Printf("%-14s %8d %12s\n", "TOTAL", len(trades), totalProfit.StringFixed(2))

	distributions, err := readCSV(filepath.Join(*ledgerDir, "distributions.csv"))
	if err != nil {
		// No distributions yet is a valid state for a young ledger.
		fmt.Println("\nno distributions recorded")
		return
	}

	crisis, operator, network := decimal.Zero, decimal.Zero, decimal.Zero
	for _, row := range distributions {
		// DistributionID,Timestamp,Profit,CrisisAmount,OperatorAmount,NetworkAmount,Details
		if len(row) < 6 {
			continue
		}
		crisis = crisis.Add(parseAmount(row[3]))
		operator = operator.Add(parseAmount(row[4]))
		network = network.Add(parseAmount(row[5]))
	}

	fmt.Println("\nDISTRIBUTIONS")
	fmt.Printf("%-14s %12s\n", "Crisis", crisis.StringFixed(2))
	fmt.Printf("%-14s %12s\n", "Operator", operator.StringFixed(2))
	fmt.Printf("%-14s %12s\n", "Network", network.StringFixed(2))
	fmt.Printf("%-14s %12d\n", "Records", len(distributions))
}

func parseAmount(s string) decimal.Decimal {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// readCSV returns the file's data rows, header excluded.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}
