// Package scanner collects trading opportunities from public market
// data sources. Individual source failures are swallowed and logged;
// a scan never fails as a whole.
package scanner

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Source is one market data provider.
type Source interface {
	Name() string
	Scan(ctx context.Context) ([]Opportunity, error)
}

// Scanner fans scans out across its sources and merges the results.
type Scanner struct {
	sources []Source
	logger  zerolog.Logger
}

// New creates a scanner over the given sources.
func New(logger zerolog.Logger, sources ...Source) *Scanner {
	return &Scanner{
		sources: sources,
		logger:  logger.With().Str("component", "scanner").Logger(),
	}
}

// Scan runs every source and returns whatever opportunities were
// found. A failing source contributes nothing; the error is logged and
// never propagated.
func (s *Scanner) Scan(ctx context.Context) []Opportunity {
	var (
		mu            sync.Mutex
		opportunities []Opportunity
		wg            sync.WaitGroup
	)

	for _, source := range s.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()

			found, err := src.Scan(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Str("source", src.Name()).Msg("source scan failed, skipping")
				return
			}

			mu.Lock()
			opportunities = append(opportunities, found...)
			mu.Unlock()
		}(source)
	}
	wg.Wait()

	for _, opp := range opportunities {
		s.logger.Info().
			Str("symbol", opp.Symbol).
			Float64("price", opp.Price).
			Float64("change", opp.Change).
			Msg("opportunity found")
	}

	return opportunities
}
