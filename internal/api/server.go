// Package api serves the transparency dashboard: bot status, trade and
// distribution history, impact totals and a live WebSocket feed.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solarpunk-alphabot/config"
	"solarpunk-alphabot/internal/bot"
	"solarpunk-alphabot/internal/events"
	"solarpunk-alphabot/internal/metrics"
	"solarpunk-alphabot/internal/redistribute"
	"solarpunk-alphabot/internal/trader"
)

// BotAPI defines what the bot must expose to the dashboard.
type BotAPI interface {
	Status() bot.Status
	Trades() []trader.Trade
	Positions() []trader.Position
	Distributions() []redistribute.DistributionRecord
	TotalDonated() decimal.Decimal
	TriggerCycle()
}

// Server is the HTTP dashboard server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        config.DashboardConfig
	botAPI     BotAPI
	auth       *authManager
	hub        *WSHub
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewServer creates the dashboard server and wires the WebSocket hub
// to the event bus.
func NewServer(
	cfg config.DashboardConfig,
	botAPI BotAPI,
	bus *events.EventBus,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:  router,
		cfg:     cfg,
		botAPI:  botAPI,
		auth:    newAuthManager(cfg),
		hub:     NewWSHub(logger),
		metrics: m,
		logger:  logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()

	bus.SubscribeAll(server.hub.BroadcastEvent)
	go server.hub.Run()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/trades", s.handleTrades)
		api.GET("/positions", s.handlePositions)
		api.GET("/distributions", s.handleDistributions)
		api.GET("/impact", s.handleImpact)
		api.POST("/login", s.auth.handleLogin)

		admin := api.Group("/admin")
		admin.Use(s.auth.middleware())
		{
			admin.POST("/cycle", s.handleTriggerCycle)
		}
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("dashboard server failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("dashboard listening")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
