package redistribute

import (
	"time"

	"github.com/shopspring/decimal"

	"solarpunk-alphabot/config"
)

// RecipientClass is one of the three top-level redistribution buckets.
type RecipientClass string

const (
	ClassCrisis   RecipientClass = "CRISIS"
	ClassOperator RecipientClass = "OPERATOR"
	ClassNetwork  RecipientClass = "NETWORK"
)

// AllocationStatus tracks the lifecycle of a single payout. Status
// changes are represented by new Allocation values in an append-only
// history, never by mutating an existing one.
type AllocationStatus string

const (
	StatusPending   AllocationStatus = "PENDING"
	StatusBatched   AllocationStatus = "BATCHED"
	StatusSimulated AllocationStatus = "SIMULATED"
	StatusConfirmed AllocationStatus = "CONFIRMED"
	StatusFailed    AllocationStatus = "FAILED"
)

// Allocation is an immutable payout record created during one
// distribution run.
type Allocation struct {
	RecipientClass RecipientClass   `json:"recipient_class"`
	RecipientID    string           `json:"recipient_id"`
	Wallet         string           `json:"wallet,omitempty"`
	Chain          string           `json:"chain,omitempty"`
	Amount         decimal.Decimal  `json:"amount"` // two decimals, truncated
	Status         AllocationStatus `json:"status"`
}

// SplitConfig is the percentage configuration a distribution run uses.
// Each DistributionRecord carries its own copy so historical records
// stay interpretable after the live configuration changes.
type SplitConfig struct {
	Crisis              float64    `json:"crisis"`
	Operator            float64    `json:"operator"`
	Network             float64    `json:"network"`
	Orgs                []OrgShare `json:"orgs"`
	OperatorWallet      string     `json:"operator_wallet"`
	NetworkWallet       string     `json:"network_wallet"`
	MinDonation         float64    `json:"min_donation"`
	BatchSmallDonations bool       `json:"batch_small_donations"`
}

// OrgShare is one crisis organization's share of the crisis bucket,
// relative to the sum of all org percentages (not to 100).
type OrgShare struct {
	Name       string  `json:"name"`
	Wallet     string  `json:"wallet"`
	Chain      string  `json:"chain"`
	Percentage float64 `json:"percentage"`
}

// SplitFromConfig converts the loaded configuration into the split
// snapshot type used by the calculator.
func SplitFromConfig(rc config.RedistributionConfig) SplitConfig {
	orgs := make([]OrgShare, 0, len(rc.CrisisOrgs))
	for _, org := range rc.CrisisOrgs {
		orgs = append(orgs, OrgShare{
			Name:       org.Name,
			Wallet:     org.Wallet,
			Chain:      org.Chain,
			Percentage: org.Percentage,
		})
	}

	return SplitConfig{
		Crisis:              rc.Split.Crisis,
		Operator:            rc.Split.Operator,
		Network:             rc.Split.Network,
		Orgs:                orgs,
		OperatorWallet:      rc.OperatorWallet,
		NetworkWallet:       rc.NetworkWallet,
		MinDonation:         rc.MinDonation,
		BatchSmallDonations: rc.BatchSmallDonations,
	}
}

// clone deep-copies the snapshot, including the org slice, so a record
// never holds a live reference to the caller's configuration.
func (sc SplitConfig) clone() SplitConfig {
	out := sc
	out.Orgs = make([]OrgShare, len(sc.Orgs))
	copy(out.Orgs, sc.Orgs)
	return out
}

// DistributionRecord groups all allocations produced from one profit
// event. Invariant: the sum of allocation amounts never exceeds
// TotalProfit; sub-cent residue from truncation is dropped, not
// reallocated.
type DistributionRecord struct {
	ID                  string          `json:"id"`
	Timestamp           time.Time       `json:"timestamp"`
	TotalProfit         decimal.Decimal `json:"total_profit"`
	Allocations         []Allocation    `json:"allocations"`
	SplitConfigSnapshot SplitConfig     `json:"split_config"`
}

// AllocatedTotal returns the sum of all allocation amounts.
func (r DistributionRecord) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// CrisisTotal returns the sum of crisis-bucket allocation amounts.
func (r DistributionRecord) CrisisTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		if a.RecipientClass == ClassCrisis {
			total = total.Add(a.Amount)
		}
	}
	return total
}
