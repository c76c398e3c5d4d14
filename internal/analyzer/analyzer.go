// Package analyzer asks a language model whether an opportunity is
// worth trading. The model is an opaque oracle: any failure degrades
// to a HOLD with zero confidence and never propagates.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solarpunk-alphabot/config"
	"solarpunk-alphabot/internal/scanner"
)

// Recommendation is the oracle's verdict for one opportunity.
type Recommendation string

const (
	RecommendBuy  Recommendation = "BUY"
	RecommendSell Recommendation = "SELL"
	RecommendHold Recommendation = "HOLD"
)

// Analysis is the oracle's answer for one opportunity. Confidence uses
// a 0-10 scale; PositionSizeFraction is the suggested share of the
// portfolio (0..1). EthicalOverride vetoes the trade regardless of
// confidence.
type Analysis struct {
	Recommendation       Recommendation `json:"recommendation"`
	Confidence           float64        `json:"confidence"`
	PositionSizeFraction float64        `json:"position_size_fraction"`
	Reason               string         `json:"reason"`
	EthicalOverride      bool           `json:"ethical_override"`
	Simulated            bool           `json:"simulated,omitempty"`
}

// llmResponse is the JSON shape the prompt demands from the model.
type llmResponse struct {
	Recommendation       string  `json:"recommendation"`
	Confidence           float64 `json:"confidence"`
	PositionSizeFraction float64 `json:"position_size_fraction"`
	Reason               string  `json:"reason"`
	EthicalCheck         string  `json:"ethical_check"`
}

// completer abstracts the LLM client for testing.
type completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	IsConfigured() bool
}

type cachedAnalysis struct {
	analysis Analysis
	at       time.Time
}

// Analyzer is the recommendation oracle. When no API key is configured
// it falls back to a deterministic momentum heuristic so the loop
// still runs end to end.
type Analyzer struct {
	cfg             config.AIConfig
	client          completer
	defaultFraction float64
	logger          zerolog.Logger

	mu           sync.Mutex
	cache        map[string]cachedAnalysis
	requestCount int
	lastReset    time.Time
}

// New creates the analyzer from configuration.
func New(cfg config.AIConfig, defaultFraction float64, logger zerolog.Logger) *Analyzer {
	client := NewClient(ClientConfig{
		Provider:    Provider(cfg.Provider),
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
	})

	return &Analyzer{
		cfg:             cfg,
		client:          client,
		defaultFraction: defaultFraction,
		logger:          logger.With().Str("component", "analyzer").Logger(),
		cache:           make(map[string]cachedAnalysis),
		lastReset:       time.Now(),
	}
}

// Analyze returns a recommendation for the opportunity. It never
// returns an error: LLM failures, rate limiting and malformed output
// all degrade to HOLD/confidence 0, and a missing API key falls back
// to the heuristic.
func (a *Analyzer) Analyze(ctx context.Context, opp scanner.Opportunity) Analysis {
	if !a.cfg.Enabled || !a.client.IsConfigured() {
		return a.heuristic(opp)
	}

	if cached, ok := a.getCached(opp.Symbol); ok {
		return cached
	}

	if !a.allowRequest() {
		a.logger.Warn().Str("symbol", opp.Symbol).Msg("LLM rate limit reached, holding")
		return holdAnalysis("rate limit reached")
	}

	prompt := buildOpportunityPrompt(opp.Symbol, opp.Name, opp.MarketClass, opp.Price, opp.Change, opp.Volume, opp.Volatility)

	response, err := a.client.Complete(ctx, systemPromptTradeAnalysis, prompt)
	if err != nil {
		a.logger.Warn().Err(err).Str("symbol", opp.Symbol).Msg("LLM request failed, holding")
		return holdAnalysis("oracle unavailable")
	}

	analysis, err := parseResponse(response)
	if err != nil {
		a.logger.Warn().Err(err).Str("symbol", opp.Symbol).Msg("unparseable LLM response, holding")
		return holdAnalysis("unparseable oracle response")
	}

	a.setCached(opp.Symbol, analysis)

	return analysis
}

// parseResponse decodes the model's JSON, tolerating markdown code
// fences, and clamps the numeric fields into range.
func parseResponse(response string) (Analysis, error) {
	clean := stripMarkdownCodeBlock(response)

	var raw llmResponse
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return Analysis{}, fmt.Errorf("failed to parse oracle response: %w", err)
	}

	analysis := Analysis{
		Confidence:           clampRange(raw.Confidence, 0, 10),
		PositionSizeFraction: clampRange(raw.PositionSizeFraction, 0, 1),
		Reason:               raw.Reason,
		EthicalOverride:      strings.EqualFold(raw.EthicalCheck, "fail"),
	}

	switch strings.ToUpper(strings.TrimSpace(raw.Recommendation)) {
	case string(RecommendBuy):
		analysis.Recommendation = RecommendBuy
	case string(RecommendSell):
		analysis.Recommendation = RecommendSell
	default:
		analysis.Recommendation = RecommendHold
	}

	return analysis, nil
}

// stripMarkdownCodeBlock removes code-fence wrapping some providers
// put around the JSON payload.
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)

	re := regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")
	if matches := re.FindStringSubmatch(response); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	return response
}

// heuristic is the deterministic fallback when no model is configured:
// plain momentum on the stats window.
func (a *Analyzer) heuristic(opp scanner.Opportunity) Analysis {
	analysis := Analysis{
		Recommendation: RecommendHold,
		Confidence:     5,
		Reason:         "neutral trend",
		Simulated:      true,
	}

	if opp.Change > 2 {
		analysis.Recommendation = RecommendBuy
		analysis.Confidence = clampRange(5+opp.Change, 0, 9)
		analysis.PositionSizeFraction = a.defaultFraction
		analysis.Reason = "strong momentum detected"
	}

	return analysis
}

func holdAnalysis(reason string) Analysis {
	return Analysis{
		Recommendation: RecommendHold,
		Confidence:     0,
		Reason:         reason,
	}
}

func clampRange(v, lo, hi float64) float64 {
	if v != v || v < lo { // v != v catches NaN
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (a *Analyzer) getCached(symbol string) (Analysis, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ttl := time.Duration(a.cfg.CacheTTLSeconds) * time.Second
	if entry, ok := a.cache[symbol]; ok && ttl > 0 && time.Since(entry.at) < ttl {
		return entry.analysis, true
	}
	return Analysis{}, false
}

func (a *Analyzer) setCached(symbol string, analysis Analysis) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[symbol] = cachedAnalysis{analysis: analysis, at: time.Now()}
}

// allowRequest enforces the per-minute request limit.
func (a *Analyzer) allowRequest() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if time.Since(a.lastReset) >= time.Minute {
		a.requestCount = 0
		a.lastReset = time.Now()
	}

	if a.cfg.RateLimitPerMin > 0 && a.requestCount >= a.cfg.RateLimitPerMin {
		return false
	}
	a.requestCount++
	return true
}
