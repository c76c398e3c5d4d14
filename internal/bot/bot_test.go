package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

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

type fakeFeed struct {
	opportunities []scanner.Opportunity
}

func (f *fakeFeed) Scan(ctx context.Context) []scanner.Opportunity {
	return f.opportunities
}

type fakeOracle struct {
	analyses map[string]analyzer.Analysis
	panicOn  string
}

func (f *fakeOracle) Analyze(ctx context.Context, opp scanner.Opportunity) analyzer.Analysis {
	if opp.Symbol == f.panicOn {
		panic("oracle exploded")
	}
	if a, ok := f.analyses[opp.Symbol]; ok {
		return a
	}
	return analyzer.Analysis{Recommendation: analyzer.RecommendHold, Confidence: 5}
}

type recordingSink struct {
	mu            sync.Mutex
	trades        []trader.Trade
	cycles        []ledger.CycleSummary
	distributions []redistribute.DistributionRecord
	errors        []string
}

func (s *recordingSink) LogTrade(trade trader.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trade)
	return nil
}

func (s *recordingSink) LogCycle(summary ledger.CycleSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, summary)
	return nil
}

func (s *recordingSink) LogDistribution(record redistribute.DistributionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distributions = append(s.distributions, record)
	return nil
}

func (s *recordingSink) LogError(cycleID, message string, context map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, message)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Bot.RiskTolerance = 6.0
	cfg.Bot.MaxDailyTrades = 10
	cfg.Bot.MaxTradesPerCycle = 2
	cfg.Trading.PaperStartingBalance = 1000
	cfg.Trading.MaxPositionValue = 100
	cfg.Trading.MaxTotalExposure = 300
	cfg.Trading.SuggestedFraction = 0.05
	cfg.Redistribution.Enabled = true
	return cfg
}

func newTestBot(cfg *config.Config, feed MarketFeed, oracle Oracle, sink ledger.Sink) *Bot {
	logger := zerolog.Nop()
	return New(cfg, Deps{
		Feed:     feed,
		Oracle:   oracle,
		Executor: trader.NewExecutor(cfg.Bot, cfg.Trading, logger),
		Engine:   redistribute.NewEngine(redistribute.SplitFromConfig(cfg.Redistribution), nil, logger),
		Sink:     sink,
		Bus:      events.NewEventBus(),
		Notifier: notification.NewManager(config.NotificationConfig{}),
		Metrics:  metrics.New(),
		Logger:   logger,
	})
}

func buyAnalysis(confidence float64) analyzer.Analysis {
	return analyzer.Analysis{
		Recommendation:       analyzer.RecommendBuy,
		Confidence:           confidence,
		PositionSizeFraction: 0.05,
		Reason:               "test",
	}
}

func TestRunCycleExecutesQualifyingTrades(t *testing.T) {
	cfg := testConfig()
	feed := &fakeFeed{opportunities: []scanner.Opportunity{
		{Symbol: "BTC-USD", MarketClass: "crypto", Price: 100},
		{Symbol: "ETH-USD", MarketClass: "crypto", Price: 50},
		{Symbol: "SOL-USD", MarketClass: "crypto", Price: 20},
	}}
	oracle := &fakeOracle{analyses: map[string]analyzer.Analysis{
		"BTC-USD": buyAnalysis(8),
		"ETH-USD": buyAnalysis(3), // below risk tolerance
		"SOL-USD": {Recommendation: analyzer.RecommendHold, Confidence: 9},
	}}
	sink := &recordingSink{}

	b := newTestBot(cfg, feed, oracle, sink)
	b.RunCycle(context.Background())

	if len(sink.trades) != 1 {
		t.Fatalf("trades logged = %d, want 1", len(sink.trades))
	}
	if sink.trades[0].Symbol != "BTC-USD" {
		t.Errorf("traded %s, want BTC-USD", sink.trades[0].Symbol)
	}

	if len(sink.cycles) != 1 {
		t.Fatalf("cycles logged = %d, want 1", len(sink.cycles))
	}
	summary := sink.cycles[0]
	if summary.OpportunitiesFound != 3 || summary.OpportunitiesAnalyzed != 3 {
		t.Errorf("summary = %+v, want 3 found and analyzed", summary)
	}
	if summary.TradesExecuted != 1 {
		t.Errorf("trades executed = %d, want 1", summary.TradesExecuted)
	}

	// Paper profit is positive, so a distribution must follow.
	if len(sink.distributions) != 1 {
		t.Errorf("distributions logged = %d, want 1", len(sink.distributions))
	}

	if b.State() != StateIdle {
		t.Errorf("state = %s, want IDLE after the cycle", b.State())
	}
}

func TestRunCycleEthicalOverrideVetoes(t *testing.T) {
	cfg := testConfig()
	vetoed := buyAnalysis(9)
	vetoed.EthicalOverride = true

	feed := &fakeFeed{opportunities: []scanner.Opportunity{
		{Symbol: "XYZ", MarketClass: "crypto", Price: 10},
	}}
	oracle := &fakeOracle{analyses: map[string]analyzer.Analysis{"XYZ": vetoed}}
	sink := &recordingSink{}

	b := newTestBot(cfg, feed, oracle, sink)
	b.RunCycle(context.Background())

	if len(sink.trades) != 0 {
		t.Errorf("trades logged = %d, want 0, override must veto regardless of confidence", len(sink.trades))
	}
}

func TestRunCyclePerCycleTradeCap(t *testing.T) {
	cfg := testConfig()
	cfg.Bot.MaxTradesPerCycle = 2

	feed := &fakeFeed{opportunities: []scanner.Opportunity{
		{Symbol: "A-USD", MarketClass: "crypto", Price: 10},
		{Symbol: "B-USD", MarketClass: "crypto", Price: 10},
		{Symbol: "C-USD", MarketClass: "crypto", Price: 10},
	}}
	oracle := &fakeOracle{analyses: map[string]analyzer.Analysis{
		"A-USD": buyAnalysis(8),
		"B-USD": buyAnalysis(8),
		"C-USD": buyAnalysis(8),
	}}
	sink := &recordingSink{}

	b := newTestBot(cfg, feed, oracle, sink)
	b.RunCycle(context.Background())

	if len(sink.trades) != 2 {
		t.Errorf("trades logged = %d, want per-cycle cap of 2", len(sink.trades))
	}
}

func TestRunCyclePanicYieldsOneErrorEntry(t *testing.T) {
	cfg := testConfig()
	feed := &fakeFeed{opportunities: []scanner.Opportunity{
		{Symbol: "BTC-USD", MarketClass: "crypto", Price: 100},
	}}
	oracle := &fakeOracle{panicOn: "BTC-USD"}
	sink := &recordingSink{}

	b := newTestBot(cfg, feed, oracle, sink)
	b.RunCycle(context.Background())

	if len(sink.errors) != 1 {
		t.Fatalf("errors logged = %d, want exactly 1", len(sink.errors))
	}
	if b.State() != StateIdle {
		t.Errorf("state = %s, want IDLE after a panicked cycle", b.State())
	}

	// The bot keeps running: a following clean cycle goes through.
	oracle.panicOn = ""
	oracle.analyses = map[string]analyzer.Analysis{"BTC-USD": buyAnalysis(8)}
	b.RunCycle(context.Background())

	if len(sink.cycles) != 1 {
		t.Errorf("cycles logged = %d, want 1 from the recovery cycle", len(sink.cycles))
	}
	if len(sink.errors) != 1 {
		t.Errorf("errors logged = %d, want still 1", len(sink.errors))
	}
}

func TestRunCycleSkipsWhenInFlight(t *testing.T) {
	cfg := testConfig()
	started := make(chan struct{})
	release := make(chan struct{})

	feed := &blockingFeed{started: started, release: release}
	sink := &recordingSink{}
	b := newTestBot(cfg, feed, &fakeOracle{}, sink)

	done := make(chan struct{})
	go func() {
		b.RunCycle(context.Background())
		close(done)
	}()

	<-started
	// Second call lands while the first cycle blocks in the feed.
	b.RunCycle(context.Background())
	close(release)
	<-done

	if len(sink.cycles) != 1 {
		t.Errorf("cycles logged = %d, want 1, overlapping run must be dropped", len(sink.cycles))
	}
}

type blockingFeed struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *blockingFeed) Scan(ctx context.Context) []scanner.Opportunity {
	f.once.Do(func() { close(f.started) })
	<-f.release
	return nil
}

func TestRunCycleNoProfitNoDistribution(t *testing.T) {
	cfg := testConfig()
	feed := &fakeFeed{opportunities: nil}
	sink := &recordingSink{}

	b := newTestBot(cfg, feed, &fakeOracle{}, sink)
	b.RunCycle(context.Background())

	if len(sink.distributions) != 0 {
		t.Errorf("distributions logged = %d, want 0 without profit", len(sink.distributions))
	}
	if len(sink.cycles) != 1 {
		t.Errorf("cycles logged = %d, want 1, an empty cycle still gets a summary", len(sink.cycles))
	}
}
