// Package redistribute splits realized profit across the crisis,
// operator and network buckets and records every payout.
package redistribute

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// percentTolerance is how far the three top-level percentages may
// stray from 100 before they are proportionally renormalized.
const percentTolerance = 0.01

// Transferer executes a live funds transfer for one allocation. A nil
// Transferer means transfers are simulated.
type Transferer interface {
	Transfer(recipientID, wallet, chain string, amount decimal.Decimal) error
}

// Calculate is the pure distribution calculator: profit plus a split
// configuration in, a DistributionRecord out. It never fails for any
// numeric input; zero, negative and non-finite profit all yield a
// record with no allocations. Persistence is the caller's job.
//
// transfer may be nil; when set, crisis allocations above the batching
// threshold and the operator/network allocations are executed through
// it and marked CONFIRMED or FAILED.
func Calculate(profit float64, cfg SplitConfig, transfer Transferer) DistributionRecord {
	record := DistributionRecord{
		ID:                  uuid.NewString(),
		Timestamp:           time.Now().UTC(),
		SplitConfigSnapshot: cfg.clone(),
	}

	if math.IsNaN(profit) || math.IsInf(profit, 0) || profit <= 0 {
		// No payouts for zero or negative profit; not an error.
		if !math.IsNaN(profit) && !math.IsInf(profit, 0) {
			record.TotalProfit = decimal.NewFromFloat(profit)
		}
		return record
	}

	total := decimal.NewFromFloat(profit)
	record.TotalProfit = total

	crisisPct, operatorPct, networkPct := normalizePercentages(cfg.Crisis, cfg.Operator, cfg.Network)

	hundred := decimal.NewFromInt(100)
	crisisBucket := total.Mul(decimal.NewFromFloat(crisisPct)).Div(hundred).Truncate(2)
	operatorBucket := total.Mul(decimal.NewFromFloat(operatorPct)).Div(hundred).Truncate(2)
	networkBucket := total.Mul(decimal.NewFromFloat(networkPct)).Div(hundred).Truncate(2)

	record.Allocations = append(record.Allocations, splitCrisisBucket(crisisBucket, cfg, transfer)...)

	if operatorBucket.IsPositive() {
		record.Allocations = append(record.Allocations,
			settle(Allocation{
				RecipientClass: ClassOperator,
				RecipientID:    cfg.OperatorWallet,
				Wallet:         cfg.OperatorWallet,
				Amount:         operatorBucket,
			}, transfer))
	}
	if networkBucket.IsPositive() {
		record.Allocations = append(record.Allocations,
			settle(Allocation{
				RecipientClass: ClassNetwork,
				RecipientID:    cfg.NetworkWallet,
				Wallet:         cfg.NetworkWallet,
				Amount:         networkBucket,
			}, transfer))
	}

	return record
}

// normalizePercentages proportionally corrects the three top-level
// percentages so they sum to 100. This is a silent correction, not a
// failure: {40,40,40} becomes three shares of 100/3 each. Non-finite
// and negative inputs count as zero; an all-zero triple yields zero
// buckets.
func normalizePercentages(crisis, operator, network float64) (float64, float64, float64) {
	crisis = sanitizePercent(crisis)
	operator = sanitizePercent(operator)
	network = sanitizePercent(network)

	sum := crisis + operator + network
	if sum <= 0 {
		return 0, 0, 0
	}
	if math.Abs(sum-100) <= percentTolerance {
		return crisis, operator, network
	}

	factor := 100 / sum
	return crisis * factor, operator * factor, network * factor
}

func sanitizePercent(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}

// splitCrisisBucket divides the crisis bucket across the configured
// organizations proportional to each org's percentage relative to the
// sum of all org percentages. Orgs with zero or negative percentage
// are skipped. Shares below the minimum-donation threshold are marked
// BATCHED (deferred, not dropped) when batching is enabled.
func splitCrisisBucket(bucket decimal.Decimal, cfg SplitConfig, transfer Transferer) []Allocation {
	if !bucket.IsPositive() || len(cfg.Orgs) == 0 {
		return nil
	}

	var pctSum float64
	for _, org := range cfg.Orgs {
		if p := sanitizePercent(org.Percentage); p > 0 {
			pctSum += p
		}
	}
	if pctSum <= 0 {
		return nil
	}

	minDonation := decimal.NewFromFloat(cfg.MinDonation)
	allocations := make([]Allocation, 0, len(cfg.Orgs))

	for _, org := range cfg.Orgs {
		pct := sanitizePercent(org.Percentage)
		if pct <= 0 {
			continue
		}

		amount := bucket.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromFloat(pctSum)).Truncate(2)
		if !amount.IsPositive() {
			continue
		}

		alloc := Allocation{
			RecipientClass: ClassCrisis,
			RecipientID:    org.Name,
			Wallet:         org.Wallet,
			Chain:          org.Chain,
			Amount:         amount,
		}

		switch {
		case cfg.BatchSmallDonations && amount.LessThan(minDonation):
			alloc.Status = StatusBatched
		case transfer == nil:
			// Crisis payouts await a real transfer integration; the
			// operator and network buckets are the only simulated ones.
			alloc.Status = StatusPending
		default:
			alloc = settle(alloc, transfer)
		}

		allocations = append(allocations, alloc)
	}

	return allocations
}

// settle resolves an allocation's status: SIMULATED without a live
// transfer integration, otherwise CONFIRMED or FAILED depending on the
// transfer outcome.
func settle(alloc Allocation, transfer Transferer) Allocation {
	if transfer == nil {
		alloc.Status = StatusSimulated
		return alloc
	}
	if err := transfer.Transfer(alloc.RecipientID, alloc.Wallet, alloc.Chain, alloc.Amount); err != nil {
		alloc.Status = StatusFailed
		return alloc
	}
	alloc.Status = StatusConfirmed
	return alloc
}

// Engine wraps the calculator with the in-process donation history and
// running totals. The calculator itself stays stateless.
type Engine struct {
	cfg      SplitConfig
	transfer Transferer
	logger   zerolog.Logger

	mu      sync.RWMutex
	history []DistributionRecord
	donated decimal.Decimal
}

// NewEngine creates a redistribution engine. transfer may be nil for
// simulated payouts.
func NewEngine(cfg SplitConfig, transfer Transferer, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		transfer: transfer,
		logger:   logger.With().Str("component", "redistribute").Logger(),
		donated:  decimal.Zero,
	}
}

// Distribute runs one distribution and appends the record to the
// engine's history.
func (e *Engine) Distribute(profit float64) DistributionRecord {
	record := Calculate(profit, e.cfg, e.transfer)

	if len(e.cfg.Orgs) == 0 {
		e.logger.Warn().Msg("no crisis organizations configured, crisis bucket left unallocated")
	}

	e.mu.Lock()
	e.history = append(e.history, record)
	e.donated = e.donated.Add(record.CrisisTotal())
	e.mu.Unlock()

	e.logger.Info().
		Str("distribution_id", record.ID).
		Str("total_profit", record.TotalProfit.StringFixed(2)).
		Str("allocated", record.AllocatedTotal().StringFixed(2)).
		Int("allocations", len(record.Allocations)).
		Msg("profit distributed")

	return record
}

// History returns a copy of the distribution history.
func (e *Engine) History() []DistributionRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]DistributionRecord, len(e.history))
	copy(out, e.history)
	return out
}

// TotalDonated returns the cumulative crisis-bucket amount across all
// distributions in this process lifetime.
func (e *Engine) TotalDonated() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.donated
}
