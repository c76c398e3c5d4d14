package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solarpunk-alphabot/config"
)

const coinbaseBaseURL = "https://api.exchange.coinbase.com"

// coinbaseStats is the 24h product stats payload. Numeric fields come
// back as strings.
type coinbaseStats struct {
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Last   string `json:"last"`
	Volume string `json:"volume"`
}

// CryptoSource scans spot markets via the Coinbase Exchange public
// stats endpoint. A PriceCache, when present, short-circuits repeat
// lookups within the cache TTL.
type CryptoSource struct {
	baseURL    string
	symbols    []string
	workers    int
	httpClient *http.Client
	cache      *PriceCache
	logger     zerolog.Logger
}

// NewCryptoSource creates the crypto market source. cache may be nil.
func NewCryptoSource(cfg config.DataSourcesConfig, cache *PriceCache, logger zerolog.Logger) *CryptoSource {
	workers := cfg.ScanWorkers
	if workers <= 0 {
		workers = 4
	}

	return &CryptoSource{
		baseURL: coinbaseBaseURL,
		symbols: cfg.CryptoSymbols,
		workers: workers,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		},
		cache:  cache,
		logger: logger.With().Str("component", "crypto_source").Logger(),
	}
}

// Name implements Source.
func (c *CryptoSource) Name() string { return "coinbase" }

// Scan fetches stats for every configured symbol through a small
// worker pool. Per-symbol failures are logged and skipped.
func (c *CryptoSource) Scan(ctx context.Context) ([]Opportunity, error) {
	symbolChan := make(chan string, len(c.symbols))
	resultChan := make(chan Opportunity, len(c.symbols))

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolChan {
				opp, err := c.fetchSymbol(ctx, symbol)
				if err != nil {
					c.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to fetch symbol stats")
					continue
				}
				resultChan <- opp
			}
		}()
	}

	for _, symbol := range c.symbols {
		symbolChan <- symbol
	}
	close(symbolChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	opportunities := make([]Opportunity, 0, len(c.symbols))
	for opp := range resultChan {
		opportunities = append(opportunities, opp)
	}

	return opportunities, nil
}

func (c *CryptoSource) fetchSymbol(ctx context.Context, symbol string) (Opportunity, error) {
	var stats coinbaseStats

	if c.cache != nil {
		if ok := c.cache.Get(ctx, symbol, &stats); ok {
			return statsToOpportunity(symbol, stats)
		}
	}

	url := fmt.Sprintf("%s/products/%s/stats", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Opportunity{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Opportunity{}, fmt.Errorf("failed to fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Opportunity{}, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, symbol)
	}

	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return Opportunity{}, fmt.Errorf("failed to decode stats: %w", err)
	}

	if c.cache != nil {
		c.cache.Set(ctx, symbol, stats)
	}

	return statsToOpportunity(symbol, stats)
}

func statsToOpportunity(symbol string, stats coinbaseStats) (Opportunity, error) {
	open, err := strconv.ParseFloat(stats.Open, 64)
	if err != nil {
		return Opportunity{}, fmt.Errorf("bad open price for %s: %w", symbol, err)
	}
	last, err := strconv.ParseFloat(stats.Last, 64)
	if err != nil {
		return Opportunity{}, fmt.Errorf("bad last price for %s: %w", symbol, err)
	}
	high, _ := strconv.ParseFloat(stats.High, 64)
	low, _ := strconv.ParseFloat(stats.Low, 64)
	volume, _ := strconv.ParseFloat(stats.Volume, 64)

	var change, volatility float64
	if open > 0 {
		change = (last - open) / open * 100
		volatility = (high - low) / open * 100
	}

	return Opportunity{
		Symbol:      symbol,
		MarketClass: "crypto",
		Price:       last,
		Change:      change,
		Volume:      volume,
		Volatility:  volatility,
		Timestamp:   time.Now().UTC(),
	}, nil
}
