// Package metrics exposes the bot's operational counters over the
// standard Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all registered collectors. One instance per process;
// every collector lives on its own registry so tests can create
// throwaway instances without collision panics.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal          prometheus.Counter
	CycleErrorsTotal     prometheus.Counter
	OpportunitiesScanned prometheus.Counter
	TradesExecuted       prometheus.Counter
	ProfitTotal          prometheus.Counter
	DistributedTotal     *prometheus.CounterVec
	LastCycleTimestamp   prometheus.Gauge
	PortfolioValue       prometheus.Gauge
}

// New creates and registers all bot collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_cycles_total",
			Help: "Number of trading cycles started.",
		}),
		CycleErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_cycle_errors_total",
			Help: "Number of cycles that ended with an error or panic.",
		}),
		OpportunitiesScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_opportunities_scanned_total",
			Help: "Number of market opportunities returned by scanners.",
		}),
		TradesExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_trades_executed_total",
			Help: "Number of trades executed across all cycles.",
		}),
		ProfitTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "alphabot_profit_total",
			Help: "Cumulative realized profit in quote currency.",
		}),
		DistributedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alphabot_distributed_total",
			Help: "Cumulative distributed amount per bucket.",
		}, []string{"bucket"}),
		LastCycleTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alphabot_last_cycle_timestamp_seconds",
			Help: "Unix time of the most recently completed cycle.",
		}),
		PortfolioValue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alphabot_portfolio_value",
			Help: "Current portfolio value including open positions.",
		}),
	}
}

// Handler returns the HTTP handler serving this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
