package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"solarpunk-alphabot/config"
)

const predictItURL = "https://www.predictit.org/api/marketdata/all/"

// predictItResponse mirrors the PredictIt public market-data payload.
type predictItResponse struct {
	Markets []predictItMarket `json:"markets"`
}

type predictItMarket struct {
	ID        int                 `json:"id"`
	ShortName string              `json:"shortName"`
	Status    string              `json:"status"`
	Contracts []predictItContract `json:"contracts"`
}

type predictItContract struct {
	LastTradePrice float64 `json:"lastTradePrice"`
}

// PredictItSource scans open prediction markets.
type PredictItSource struct {
	url        string
	topN       int
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewPredictItSource creates the prediction-market source.
func NewPredictItSource(cfg config.DataSourcesConfig, logger zerolog.Logger) *PredictItSource {
	topN := cfg.PredictItTopN
	if topN <= 0 {
		topN = 5
	}

	return &PredictItSource{
		url:  predictItURL,
		topN: topN,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		},
		logger: logger.With().Str("component", "predictit_source").Logger(),
	}
}

// Name implements Source.
func (p *PredictItSource) Name() string { return "predictit" }

// Scan returns the top open markets as opportunities. Price is the
// first contract's last trade price (a 0..1 probability).
func (p *PredictItSource) Scan(ctx context.Context) ([]Opportunity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload predictItResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode markets: %w", err)
	}

	opportunities := make([]Opportunity, 0, p.topN)
	for _, market := range payload.Markets {
		if len(opportunities) >= p.topN {
			break
		}
		if market.Status != "Open" || len(market.Contracts) == 0 {
			continue
		}

		opportunities = append(opportunities, Opportunity{
			Symbol:      fmt.Sprintf("PI:%d", market.ID),
			Name:        market.ShortName,
			MarketClass: "prediction",
			Price:       market.Contracts[0].LastTradePrice,
			Timestamp:   time.Now().UTC(),
		})
	}

	return opportunities, nil
}
