package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"solarpunk-alphabot/config"
)

func TestCryptoSourceScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/BTC-USD/stats":
			fmt.Fprint(w, `{"open":"100.00","high":"110.00","low":"95.00","last":"105.00","volume":"1234.5"}`)
		case "/products/BAD-USD/stats":
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	source := NewCryptoSource(config.DataSourcesConfig{
		CryptoSymbols:    []string{"BTC-USD", "BAD-USD"},
		ScanWorkers:      2,
		RequestTimeoutMS: 2000,
	}, nil, zerolog.Nop())
	source.baseURL = server.URL

	opportunities, err := source.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	// The failing symbol is skipped, not fatal.
	if len(opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(opportunities))
	}

	opp := opportunities[0]
	if opp.Symbol != "BTC-USD" || opp.MarketClass != "crypto" {
		t.Errorf("opportunity = %+v", opp)
	}
	if opp.Price != 105 {
		t.Errorf("price = %v, want 105", opp.Price)
	}
	if opp.Change != 5 {
		t.Errorf("change = %v, want 5", opp.Change)
	}
	if opp.Volatility != 15 {
		t.Errorf("volatility = %v, want 15", opp.Volatility)
	}
}

func TestStatsToOpportunityBadNumbers(t *testing.T) {
	if _, err := statsToOpportunity("X", coinbaseStats{Open: "garbage", Last: "1"}); err == nil {
		t.Error("bad open price should error")
	}
	if _, err := statsToOpportunity("X", coinbaseStats{Open: "1", Last: ""}); err == nil {
		t.Error("missing last price should error")
	}

	// Zero open avoids division and yields zero change.
	opp, err := statsToOpportunity("X", coinbaseStats{Open: "0", Last: "5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opp.Change != 0 || opp.Volatility != 0 {
		t.Errorf("change/volatility = %v/%v, want 0/0", opp.Change, opp.Volatility)
	}
}

func TestPredictItSourceScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"markets":[
			{"id":1,"shortName":"Open market","status":"Open","contracts":[{"lastTradePrice":0.42}]},
			{"id":2,"shortName":"Closed market","status":"Closed","contracts":[{"lastTradePrice":0.5}]},
			{"id":3,"shortName":"Empty market","status":"Open","contracts":[]},
			{"id":4,"shortName":"Second open","status":"Open","contracts":[{"lastTradePrice":0.9}]},
			{"id":5,"shortName":"Third open","status":"Open","contracts":[{"lastTradePrice":0.1}]}
		]}`)
	}))
	defer server.Close()

	source := NewPredictItSource(config.DataSourcesConfig{
		PredictItTopN:    2,
		RequestTimeoutMS: 2000,
	}, zerolog.Nop())
	source.url = server.URL

	opportunities, err := source.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(opportunities) != 2 {
		t.Fatalf("opportunities = %d, want topN of 2", len(opportunities))
	}
	if opportunities[0].Symbol != "PI:1" || opportunities[0].Price != 0.42 {
		t.Errorf("first opportunity = %+v", opportunities[0])
	}
	if opportunities[0].MarketClass != "prediction" {
		t.Errorf("market class = %s, want prediction", opportunities[0].MarketClass)
	}
	if opportunities[1].Symbol != "PI:4" {
		t.Errorf("second opportunity = %+v, closed and empty markets must be skipped", opportunities[1])
	}
}

type staticSource struct {
	name          string
	opportunities []Opportunity
	err           error
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Scan(ctx context.Context) ([]Opportunity, error) {
	return s.opportunities, s.err
}

func TestScannerAggregatesSources(t *testing.T) {
	good := &staticSource{name: "good", opportunities: []Opportunity{
		{Symbol: "A", MarketClass: "crypto", Price: 1, Timestamp: time.Now()},
		{Symbol: "B", MarketClass: "crypto", Price: 2, Timestamp: time.Now()},
	}}
	failing := &staticSource{name: "failing", err: errors.New("upstream down")}

	s := New(zerolog.Nop(), good, failing)
	opportunities := s.Scan(context.Background())

	// The failing source is swallowed; the good one still delivers.
	if len(opportunities) != 2 {
		t.Errorf("opportunities = %d, want 2", len(opportunities))
	}
}
