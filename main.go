package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"solarpunk-alphabot/config"
	"solarpunk-alphabot/internal/analyzer"
	"solarpunk-alphabot/internal/api"
	"solarpunk-alphabot/internal/bot"
	"solarpunk-alphabot/internal/events"
	"solarpunk-alphabot/internal/ledger"
	"solarpunk-alphabot/internal/logging"
	"solarpunk-alphabot/internal/metrics"
	"solarpunk-alphabot/internal/notification"
	"solarpunk-alphabot/internal/redistribute"
	"solarpunk-alphabot/internal/scanner"
	"solarpunk-alphabot/internal/trader"
	"solarpunk-alphabot/internal/vault"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	// .env is optional; environment overrides still apply without it.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	logger.Info().
		Str("name", cfg.Bot.Name).
		Str("mode", cfg.Bot.Mode).
		Str("config", *configPath).
		Msg("starting")

	vaultClient, err := vault.NewClient(cfg.Vault)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize vault client")
	}
	if vaultClient.IsEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := vaultClient.Health(ctx); err != nil {
			logger.Warn().Err(err).Msg("vault health check failed, continuing with config secrets")
		}
		cancel()
	}
	cfg.AI.APIKey = vaultClient.GetLLMAPIKey(context.Background(), cfg.AI.Provider, cfg.AI.APIKey)

	sink, err := ledger.New(cfg.Ledger, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize ledger")
	}
	defer sink.Close()

	var priceCache *scanner.PriceCache
	if cfg.Redis.Enabled {
		priceCache = scanner.NewPriceCache(cfg.Redis, logger)
	}

	sources := []scanner.Source{
		scanner.NewCryptoSource(cfg.DataSources, priceCache, logger),
	}
	if cfg.DataSources.PredictIt {
		sources = append(sources, scanner.NewPredictItSource(cfg.DataSources, logger))
	}
	feed := scanner.New(logger, sources...)

	oracle := analyzer.New(cfg.AI, cfg.Trading.SuggestedFraction, logger)
	executor := trader.NewExecutor(cfg.Bot, cfg.Trading, logger)

	// Live transfers need a chain integration this build does not
	// ship; distributions stay simulated until one exists.
	engine := redistribute.NewEngine(redistribute.SplitFromConfig(cfg.Redistribution), nil, logger)

	bus := events.NewEventBus()
	notifier := notification.NewManager(cfg.Notification)
	m := metrics.New()

	alphabot := bot.New(cfg, bot.Deps{
		Feed:     feed,
		Oracle:   oracle,
		Executor: executor,
		Engine:   engine,
		Sink:     sink,
		Bus:      bus,
		Notifier: notifier,
		Metrics:  m,
		Logger:   logger,
	})

	if *once {
		alphabot.RunCycle(context.Background())
		logger.Info().Msg("single cycle finished")
		return
	}

	var server *api.Server
	if cfg.Dashboard.Enabled {
		server = api.NewServer(cfg.Dashboard, alphabot, bus, m, logger)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start dashboard")
		}
	}

	if err := alphabot.Start(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to start bot")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	alphabot.Stop()
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("dashboard shutdown failed")
		}
	}
	if priceCache != nil {
		priceCache.Close()
	}
	logger.Info().Msg("shutdown complete")
}
