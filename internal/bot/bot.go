// Package bot runs the scheduled trading cycle: scan the markets,
// ask the oracle, size and execute the survivors, distribute realized
// profit and log everything to the ledger.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solarpunk-alphabot/config"
	"solarpunk-alphabot/internal/analyzer"
	"solarpunk-alphabot/internal/events"
	"solarpunk-alphabot/internal/ledger"
	"solarpunk-alphabot/internal/metrics"
	"solarpunk-alphabot/internal/notification"
	"solarpunk-alphabot/internal/redistribute"
	"solarpunk-alphabot/internal/scanner"
	"solarpunk-alphabot/internal/trader"
)

// State is the bot's current cycle phase.
type State string

const (
	StateIdle               State = "IDLE"
	StateScanning           State = "SCANNING"
	StateAnalyzing          State = "ANALYZING"
	StateSizingAndExecuting State = "SIZING_AND_EXECUTING"
	StateDistributing       State = "DISTRIBUTING"
	StateLogging            State = "LOGGING"
)

// MarketFeed produces the cycle's candidate opportunities.
type MarketFeed interface {
	Scan(ctx context.Context) []scanner.Opportunity
}

// Oracle judges one opportunity. Implementations never return an
// error; a failed analysis comes back as a zero-confidence HOLD.
type Oracle interface {
	Analyze(ctx context.Context, opp scanner.Opportunity) analyzer.Analysis
}

// Deps are the collaborators a Bot needs. All fields are required.
type Deps struct {
	Feed     MarketFeed
	Oracle   Oracle
	Executor *trader.Executor
	Engine   *redistribute.Engine
	Sink     ledger.Sink
	Bus      *events.EventBus
	Notifier *notification.Manager
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Bot is the cycle orchestrator. At most one cycle runs at a time; a
// scheduler tick that lands while a cycle is in flight is skipped, not
// queued.
type Bot struct {
	cfg      *config.Config
	feed     MarketFeed
	oracle   Oracle
	executor *trader.Executor
	engine   *redistribute.Engine
	sink     ledger.Sink
	bus      *events.EventBus
	notifier *notification.Manager
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	cron    *cron.Cron
	cycleMu sync.Mutex // held for the duration of one cycle

	mu        sync.RWMutex
	state     State
	lastCycle *ledger.CycleSummary
	startedAt time.Time
}

// New creates the orchestrator.
func New(cfg *config.Config, deps Deps) *Bot {
	return &Bot{
		cfg:      cfg,
		feed:     deps.Feed,
		oracle:   deps.Oracle,
		executor: deps.Executor,
		engine:   deps.Engine,
		sink:     deps.Sink,
		bus:      deps.Bus,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "bot").Logger(),
		state:    StateIdle,
	}
}

// Start schedules the recurring cycle and kicks off the first one
// immediately.
func (b *Bot) Start(ctx context.Context) error {
	interval := b.cfg.Bot.ScanIntervalHours
	if interval <= 0 {
		interval = 6
	}

	b.cron = cron.New()
	if _, err := b.cron.AddFunc(fmt.Sprintf("@every %dh", interval), func() {
		b.RunCycle(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule cycle: %w", err)
	}

	b.mu.Lock()
	b.startedAt = time.Now().UTC()
	b.mu.Unlock()

	b.cron.Start()
	b.bus.Publish(events.Event{
		Type: events.EventBotStarted,
		Data: map[string]interface{}{
			"name":           b.cfg.Bot.Name,
			"mode":           b.cfg.Bot.Mode,
			"interval_hours": interval,
		},
	})
	b.logger.Info().
		Str("name", b.cfg.Bot.Name).
		Str("mode", b.cfg.Bot.Mode).
		Int("interval_hours", interval).
		Msg("bot started")

	go b.RunCycle(ctx)
	return nil
}

// Stop halts the scheduler and waits for an in-flight cycle to finish.
func (b *Bot) Stop() {
	if b.cron != nil {
		<-b.cron.Stop().Done()
	}

	// Drain the running cycle, if any.
	b.cycleMu.Lock()
	b.cycleMu.Unlock()

	b.bus.Publish(events.Event{Type: events.EventBotStopped, Data: map[string]interface{}{
		"name": b.cfg.Bot.Name,
	}})
	b.logger.Info().Msg("bot stopped")
}

// RunCycle runs one full cycle unless another is already in flight, in
// which case the call is dropped.
func (b *Bot) RunCycle(ctx context.Context) {
	if !b.cycleMu.TryLock() {
		b.logger.Warn().Msg("cycle already in flight, skipping tick")
		return
	}
	defer b.cycleMu.Unlock()

	b.runCycle(ctx)
}

// TriggerCycle starts a cycle without blocking the caller. Used by the
// dashboard's manual-run endpoint.
func (b *Bot) TriggerCycle() {
	go b.RunCycle(context.Background())
}

func (b *Bot) runCycle(ctx context.Context) {
	cycleID := uuid.NewString()
	logger := b.logger.With().Str("cycle_id", cycleID).Logger()

	b.metrics.CyclesTotal.Inc()
	b.bus.PublishCycleStarted(cycleID)
	logger.Info().Msg("cycle started")

	summary := ledger.CycleSummary{
		ID:          cycleID,
		Timestamp:   time.Now().UTC(),
		TotalProfit: decimal.Zero,
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		phase := b.State()
		b.setState(StateIdle)
		b.metrics.CycleErrorsTotal.Inc()
		logger.Error().Interface("panic", r).Str("phase", string(phase)).Msg("cycle aborted by panic")
		if err := b.sink.LogError(cycleID, fmt.Sprintf("panic: %v", r), map[string]interface{}{
			"phase": string(phase),
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to record cycle error")
		}
		b.bus.PublishError("bot", "cycle aborted by panic", fmt.Errorf("%v", r))
	}()

	// Phase 1: scan.
	b.setState(StateScanning)
	opportunities := b.feed.Scan(ctx)
	summary.OpportunitiesFound = len(opportunities)
	b.metrics.OpportunitiesScanned.Add(float64(len(opportunities)))
	for _, opp := range opportunities {
		b.bus.PublishOpportunityFound(opp.Symbol, opp.MarketClass, opp.Price, opp.Change)
	}

	// Phase 2: analyze. A bad opportunity comes back as a HOLD and
	// never blocks the remaining ones.
	b.setState(StateAnalyzing)
	type candidate struct {
		opp      scanner.Opportunity
		analysis analyzer.Analysis
	}
	candidates := make([]candidate, 0, len(opportunities))
	for _, opp := range opportunities {
		analysis := b.oracle.Analyze(ctx, opp)
		summary.OpportunitiesAnalyzed++

		if analysis.Recommendation != analyzer.RecommendBuy {
			continue
		}
		if analysis.EthicalOverride {
			logger.Info().Str("symbol", opp.Symbol).Msg("trade vetoed by ethical check")
			continue
		}
		if analysis.Confidence <= b.cfg.Bot.RiskTolerance {
			logger.Debug().
				Str("symbol", opp.Symbol).
				Float64("confidence", analysis.Confidence).
				Float64("risk_tolerance", b.cfg.Bot.RiskTolerance).
				Msg("confidence below risk tolerance")
			continue
		}
		candidates = append(candidates, candidate{opp: opp, analysis: analysis})
	}

	// Phase 3: size and execute.
	b.setState(StateSizingAndExecuting)
	cycleProfit := decimal.Zero
	for _, c := range candidates {
		if summary.TradesExecuted >= b.cfg.Bot.MaxTradesPerCycle {
			logger.Info().Int("limit", b.cfg.Bot.MaxTradesPerCycle).Msg("per-cycle trade limit reached")
			break
		}

		ok, reason := b.executor.CanTrade(c.opp.Symbol)
		if !ok {
			logger.Info().Str("symbol", c.opp.Symbol).Str("reason", reason).Msg("trade blocked")
			continue
		}

		fraction := c.analysis.PositionSizeFraction
		if fraction <= 0 {
			fraction = b.cfg.Trading.SuggestedFraction
		}

		sizing := trader.Size(
			c.opp.Price,
			trader.MarketClass(c.opp.MarketClass),
			c.analysis.Confidence,
			fraction,
			b.executor.PortfolioValue(),
			b.cfg.Trading.MaxPositionValue,
		)

		trade := b.executor.Execute(c.opp, c.analysis.Confidence, c.analysis.Reason, sizing)
		if trade == nil {
			continue
		}

		summary.TradesExecuted++
		cycleProfit = cycleProfit.Add(trade.Profit)
		b.metrics.TradesExecuted.Inc()

		if err := b.sink.LogTrade(*trade); err != nil {
			logger.Warn().Err(err).Str("trade_id", trade.ID).Msg("failed to record trade")
		}
		b.bus.PublishTradeExecuted(trade.ID, trade.Symbol, trade.Price,
			trade.Quantity.String(), trade.Value.StringFixed(2), trade.Confidence)
		if err := b.notifier.SendTrade(trade.Symbol, trade.Status, trade.Price,
			trade.Quantity.String(), trade.Value.StringFixed(2), trade.Confidence); err != nil {
			logger.Warn().Err(err).Msg("trade notification failed")
		}
	}
	summary.TotalProfit = cycleProfit
	if f, _ := cycleProfit.Float64(); f > 0 {
		b.metrics.ProfitTotal.Add(f)
	}

	// Phase 4: distribute. Zero or negative profit means nothing to
	// give away; that is a quiet cycle, not a failure.
	b.setState(StateDistributing)
	if b.cfg.Redistribution.Enabled && cycleProfit.IsPositive() {
		profit, _ := cycleProfit.Float64()
		record := b.engine.Distribute(profit)

		if err := b.sink.LogDistribution(record); err != nil {
			logger.Warn().Err(err).Str("distribution_id", record.ID).Msg("failed to record distribution")
		}
		b.recordDistributionMetrics(record)
		b.bus.PublishDistributionCreated(record.ID,
			record.TotalProfit.StringFixed(2), record.CrisisTotal().StringFixed(2), len(record.Allocations))
		if err := b.notifier.SendDistribution(record.ID,
			record.TotalProfit.StringFixed(2), record.CrisisTotal().StringFixed(2), len(record.Allocations)); err != nil {
			logger.Warn().Err(err).Msg("distribution notification failed")
		}
	}

	// Phase 5: log the cycle.
	b.setState(StateLogging)
	if err := b.sink.LogCycle(summary); err != nil {
		logger.Warn().Err(err).Msg("failed to record cycle summary")
	}
	if err := b.notifier.SendCycleSummary(cycleID, summary.OpportunitiesFound,
		summary.TradesExecuted, summary.TotalProfit.StringFixed(2)); err != nil {
		logger.Warn().Err(err).Msg("cycle notification failed")
	}

	b.metrics.LastCycleTimestamp.SetToCurrentTime()
	b.metrics.PortfolioValue.Set(b.executor.PortfolioValue())
	b.bus.PublishCycleCompleted(cycleID, summary.OpportunitiesFound,
		summary.TradesExecuted, summary.TotalProfit.StringFixed(2))

	b.mu.Lock()
	b.lastCycle = &summary
	b.mu.Unlock()
	b.setState(StateIdle)

	logger.Info().
		Int("opportunities", summary.OpportunitiesFound).
		Int("trades", summary.TradesExecuted).
		Str("profit", summary.TotalProfit.StringFixed(2)).
		Msg("cycle completed")
}

func (b *Bot) recordDistributionMetrics(record redistribute.DistributionRecord) {
	for _, alloc := range record.Allocations {
		amount, _ := alloc.Amount.Float64()
		if amount <= 0 {
			continue
		}
		b.metrics.DistributedTotal.WithLabelValues(string(alloc.RecipientClass)).Add(amount)
	}
}

func (b *Bot) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// State returns the current cycle phase.
func (b *Bot) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// LastCycle returns the most recently completed cycle summary, or nil
// before the first cycle finishes.
func (b *Bot) LastCycle() *ledger.CycleSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.lastCycle == nil {
		return nil
	}
	out := *b.lastCycle
	return &out
}

// Status is the dashboard's view of the bot.
type Status struct {
	Name           string               `json:"name"`
	Mode           string               `json:"mode"`
	State          State                `json:"state"`
	StartedAt      time.Time            `json:"started_at"`
	PortfolioValue float64              `json:"portfolio_value"`
	TotalDonated   string               `json:"total_donated"`
	LastCycle      *ledger.CycleSummary `json:"last_cycle,omitempty"`
}

// Status snapshots the bot for the dashboard.
func (b *Bot) Status() Status {
	b.mu.RLock()
	startedAt := b.startedAt
	b.mu.RUnlock()

	return Status{
		Name:           b.cfg.Bot.Name,
		Mode:           b.cfg.Bot.Mode,
		State:          b.State(),
		StartedAt:      startedAt,
		PortfolioValue: b.executor.PortfolioValue(),
		TotalDonated:   b.engine.TotalDonated().StringFixed(2),
		LastCycle:      b.LastCycle(),
	}
}

// Trades returns the executed trade history.
func (b *Bot) Trades() []trader.Trade {
	return b.executor.History()
}

// Positions returns the open positions.
func (b *Bot) Positions() []trader.Position {
	return b.executor.Positions()
}

// Distributions returns the distribution history.
func (b *Bot) Distributions() []redistribute.DistributionRecord {
	return b.engine.History()
}

// TotalDonated returns the cumulative crisis-bucket amount.
func (b *Bot) TotalDonated() decimal.Decimal {
	return b.engine.TotalDonated()
}
