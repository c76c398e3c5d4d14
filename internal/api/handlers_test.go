package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"solarpunk-alphabot/config"
	"solarpunk-alphabot/internal/bot"
	"solarpunk-alphabot/internal/events"
	"solarpunk-alphabot/internal/redistribute"
	"solarpunk-alphabot/internal/trader"
)

type fakeBot struct {
	distributions   []redistribute.DistributionRecord
	cyclesTriggered int
}

func (f *fakeBot) Status() bot.Status {
	return bot.Status{Name: "test-bot", Mode: "paper", State: bot.StateIdle}
}

func (f *fakeBot) Trades() []trader.Trade {
	return []trader.Trade{{ID: "t1", Symbol: "BTC-USD"}}
}

func (f *fakeBot) Positions() []trader.Position {
	return nil
}

func (f *fakeBot) Distributions() []redistribute.DistributionRecord {
	return f.distributions
}

func (f *fakeBot) TotalDonated() decimal.Decimal {
	total := decimal.Zero
	for _, r := range f.distributions {
		total = total.Add(r.CrisisTotal())
	}
	return total
}

func (f *fakeBot) TriggerCycle() { f.cyclesTriggered++ }

func newTestServer(t *testing.T, botAPI BotAPI, cfg config.DashboardConfig) *Server {
	t.Helper()
	cfg.ProductionMode = true
	return NewServer(cfg, botAPI, events.NewEventBus(), nil, zerolog.Nop())
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeBot{}, config.DashboardConfig{})

	w := get(t, s, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeBot{}, config.DashboardConfig{})

	w := get(t, s, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var status bot.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if status.Name != "test-bot" || status.State != bot.StateIdle {
		t.Errorf("status = %+v", status)
	}
}

func TestTradesEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeBot{}, config.DashboardConfig{})

	w := get(t, s, "/api/trades")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}

func TestImpactEndpoint(t *testing.T) {
	fake := &fakeBot{distributions: []redistribute.DistributionRecord{
		{
			ID:          "d1",
			TotalProfit: decimal.NewFromFloat(100),
			Allocations: []redistribute.Allocation{
				{RecipientClass: redistribute.ClassCrisis, RecipientID: "org-a", Amount: decimal.NewFromFloat(30)},
				{RecipientClass: redistribute.ClassCrisis, RecipientID: "org-b", Amount: decimal.NewFromFloat(20)},
				{RecipientClass: redistribute.ClassOperator, RecipientID: "op", Amount: decimal.NewFromFloat(30)},
			},
		},
		{
			ID:          "d2",
			TotalProfit: decimal.NewFromFloat(50),
			Allocations: []redistribute.Allocation{
				{RecipientClass: redistribute.ClassCrisis, RecipientID: "org-a", Amount: decimal.NewFromFloat(25)},
			},
		},
	}}
	s := newTestServer(t, fake, config.DashboardConfig{})

	w := get(t, s, "/api/impact")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		TotalDonated  string `json:"total_donated"`
		Distributions int    `json:"distributions"`
		Organizations []struct {
			Name      string `json:"name"`
			Total     string `json:"total"`
			Donations int    `json:"donations"`
		} `json:"organizations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}

	if body.TotalDonated != "75.00" {
		t.Errorf("total donated = %s, want 75.00", body.TotalDonated)
	}
	if body.Distributions != 2 {
		t.Errorf("distributions = %d, want 2", body.Distributions)
	}
	if len(body.Organizations) != 2 {
		t.Fatalf("organizations = %d, want 2", len(body.Organizations))
	}
	// Sorted by name: org-a first.
	if body.Organizations[0].Name != "org-a" || body.Organizations[0].Total != "55.00" || body.Organizations[0].Donations != 2 {
		t.Errorf("org-a impact = %+v", body.Organizations[0])
	}
}

func TestAdminCycleRequiresAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	fake := &fakeBot{}
	s := newTestServer(t, fake, config.DashboardConfig{
		AdminUser:         "admin",
		AdminPasswordHash: string(hash),
		JWTSecret:         "test-secret",
		TokenDuration:     time.Minute,
	})

	// No token: rejected.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/cycle", nil)
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}
	if fake.cyclesTriggered != 0 {
		t.Error("cycle must not trigger without auth")
	}

	// Wrong password: no token issued.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/login",
		bytes.NewBufferString(`{"username":"admin","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", w.Code)
	}

	// Correct login yields a token that unlocks the admin group.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/login",
		bytes.NewBufferString(`{"username":"admin","password":"hunter22"}`))
	req.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("no token in login response: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/admin/cycle", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("authenticated status = %d, want 202", w.Code)
	}
	if fake.cyclesTriggered != 1 {
		t.Errorf("cycles triggered = %d, want 1", fake.cyclesTriggered)
	}
}

func TestLoginUnavailableWhenUnconfigured(t *testing.T) {
	s := newTestServer(t, &fakeBot{}, config.DashboardConfig{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login",
		bytes.NewBufferString(`{"username":"admin","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when admin auth is unconfigured", w.Code)
	}
}
