package redistribute

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testSplit() SplitConfig {
	return SplitConfig{
		Crisis:   50,
		Operator: 30,
		Network:  20,
		Orgs: []OrgShare{
			{Name: "World Central Kitchen", Wallet: "wck-wallet", Chain: "base", Percentage: 100},
		},
		OperatorWallet:      "op-wallet",
		NetworkWallet:       "net-wallet",
		MinDonation:         1.00,
		BatchSmallDonations: true,
	}
}

func amountOf(t *testing.T, allocations []Allocation, class RecipientClass) decimal.Decimal {
	t.Helper()
	total := decimal.Zero
	for _, a := range allocations {
		if a.RecipientClass == class {
			total = total.Add(a.Amount)
		}
	}
	return total
}

func TestCalculateBasicSplit(t *testing.T) {
	record := Calculate(100.0, testSplit(), nil)

	if got := amountOf(t, record.Allocations, ClassCrisis); !got.Equal(decimal.NewFromFloat(50.00)) {
		t.Errorf("crisis bucket = %s, want 50.00", got)
	}
	if got := amountOf(t, record.Allocations, ClassOperator); !got.Equal(decimal.NewFromFloat(30.00)) {
		t.Errorf("operator bucket = %s, want 30.00", got)
	}
	if got := amountOf(t, record.Allocations, ClassNetwork); !got.Equal(decimal.NewFromFloat(20.00)) {
		t.Errorf("network bucket = %s, want 20.00", got)
	}
}

func TestCalculateNonPositiveProfit(t *testing.T) {
	tests := []struct {
		name   string
		profit float64
	}{
		{"zero", 0},
		{"negative", -42.17},
		{"nan", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := Calculate(tt.profit, testSplit(), nil)
			if len(record.Allocations) != 0 {
				t.Errorf("got %d allocations, want 0", len(record.Allocations))
			}
			if record.ID == "" {
				t.Error("record should still carry an ID")
			}
		})
	}
}

func TestCalculateTruncationNeverExceedsProfit(t *testing.T) {
	cfg := testSplit()
	cfg.Orgs = []OrgShare{
		{Name: "a", Percentage: 33},
		{Name: "b", Percentage: 33},
		{Name: "c", Percentage: 34},
	}
	cfg.BatchSmallDonations = false

	for _, profit := range []float64{0.01, 0.10, 1.00, 3.33, 99.99, 100.0, 12345.67} {
		record := Calculate(profit, cfg, nil)
		allocated := record.AllocatedTotal()
		total := decimal.NewFromFloat(profit)

		if allocated.GreaterThan(total) {
			t.Errorf("profit %.2f: allocated %s exceeds profit", profit, allocated)
		}
		// Each of the five allocations loses strictly less than one
		// cent to truncation.
		loss := total.Sub(allocated)
		if loss.GreaterThanOrEqual(decimal.NewFromFloat(0.05)) {
			t.Errorf("profit %.2f: truncation loss %s too large", profit, loss)
		}
	}
}

func TestNormalizePercentages(t *testing.T) {
	tests := []struct {
		name                      string
		crisis, operator, network float64
		wantCrisis                float64
	}{
		{"already normalized", 50, 30, 20, 50},
		{"within tolerance", 50.005, 30, 19.999, 50.005},
		{"overweight scaled down", 40, 40, 40, 100.0 / 3},
		{"underweight scaled up", 25, 15, 10, 50},
		{"negative treated as zero", -10, 60, 40, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crisis, operator, network := normalizePercentages(tt.crisis, tt.operator, tt.network)
			if math.Abs(crisis-tt.wantCrisis) > 1e-9 {
				t.Errorf("crisis = %v, want %v", crisis, tt.wantCrisis)
			}
			sum := crisis + operator + network
			if sum > 0 && math.Abs(sum-100) > percentTolerance {
				t.Errorf("normalized sum = %v, want within %v of 100", sum, percentTolerance)
			}
		})
	}
}

func TestNormalizePercentagesAllZero(t *testing.T) {
	crisis, operator, network := normalizePercentages(0, 0, 0)
	if crisis != 0 || operator != 0 || network != 0 {
		t.Errorf("got (%v,%v,%v), want all zero", crisis, operator, network)
	}
}

func TestSplitCrisisBucketRelativeShares(t *testing.T) {
	cfg := testSplit()
	cfg.Orgs = []OrgShare{
		{Name: "alpha", Percentage: 75},
		{Name: "beta", Percentage: 25},
		{Name: "gamma", Percentage: 0},
	}
	cfg.BatchSmallDonations = false

	// Crisis bucket = 50% of 200 = 100.
	record := Calculate(200.0, cfg, nil)

	var alpha, beta decimal.Decimal
	for _, a := range record.Allocations {
		switch a.RecipientID {
		case "alpha":
			alpha = a.Amount
		case "beta":
			beta = a.Amount
		case "gamma":
			t.Error("zero-percentage org should be skipped")
		}
	}

	if !alpha.Equal(decimal.NewFromFloat(75.00)) {
		t.Errorf("alpha = %s, want 75.00", alpha)
	}
	if !beta.Equal(decimal.NewFromFloat(25.00)) {
		t.Errorf("beta = %s, want 25.00", beta)
	}
}

func TestSmallDonationsAreBatched(t *testing.T) {
	cfg := testSplit()
	cfg.MinDonation = 10.0

	// Crisis bucket = 5.00, below the 10.00 threshold.
	record := Calculate(10.0, cfg, nil)

	found := false
	for _, a := range record.Allocations {
		if a.RecipientClass == ClassCrisis {
			found = true
			if a.Status != StatusBatched {
				t.Errorf("crisis allocation status = %s, want %s", a.Status, StatusBatched)
			}
			if !a.Amount.Equal(decimal.NewFromFloat(5.00)) {
				t.Errorf("crisis amount = %s, want 5.00", a.Amount)
			}
		}
	}
	if !found {
		t.Fatal("batched allocation missing, small donations must be deferred not dropped")
	}
}

func TestStatusesWithoutTransferer(t *testing.T) {
	cfg := testSplit()
	cfg.MinDonation = 1.0

	record := Calculate(1000.0, cfg, nil)

	for _, a := range record.Allocations {
		switch a.RecipientClass {
		case ClassCrisis:
			if a.Status != StatusPending {
				t.Errorf("crisis allocation status = %s, want %s", a.Status, StatusPending)
			}
		case ClassOperator, ClassNetwork:
			if a.Status != StatusSimulated {
				t.Errorf("%s allocation status = %s, want %s", a.RecipientClass, a.Status, StatusSimulated)
			}
		}
	}
}

type stubTransfer struct {
	failFor string
	calls   int
}

func (s *stubTransfer) Transfer(recipientID, wallet, chain string, amount decimal.Decimal) error {
	s.calls++
	if recipientID == s.failFor {
		return errors.New("transfer rejected")
	}
	return nil
}

func TestStatusesWithTransferer(t *testing.T) {
	cfg := testSplit()
	transfer := &stubTransfer{failFor: "op-wallet"}

	record := Calculate(100.0, cfg, transfer)

	for _, a := range record.Allocations {
		switch a.RecipientClass {
		case ClassOperator:
			if a.Status != StatusFailed {
				t.Errorf("operator status = %s, want %s", a.Status, StatusFailed)
			}
		default:
			if a.Status != StatusConfirmed {
				t.Errorf("%s status = %s, want %s", a.RecipientID, a.Status, StatusConfirmed)
			}
		}
	}
	if transfer.calls != 3 {
		t.Errorf("transfer calls = %d, want 3", transfer.calls)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	cfg := testSplit()
	record := Calculate(100.0, cfg, nil)

	cfg.Orgs[0].Name = "mutated"
	if record.SplitConfigSnapshot.Orgs[0].Name != "World Central Kitchen" {
		t.Error("snapshot shares the caller's org slice")
	}
}

func TestEngineHistoryAndTotals(t *testing.T) {
	engine := NewEngine(testSplit(), nil, zerolog.Nop())

	engine.Distribute(100.0)
	engine.Distribute(-5.0)
	engine.Distribute(50.0)

	history := engine.History()
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}

	// 50% of 100 plus 50% of 50.
	want := decimal.NewFromFloat(75.00)
	if got := engine.TotalDonated(); !got.Equal(want) {
		t.Errorf("total donated = %s, want %s", got, want)
	}
}
