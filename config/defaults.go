// Package config loads, layers and validates engine configuration.
//
// The active default threshold set:
//
//	scoring:     base 65, candidate 60, trade 65, ceiling 95
//	volume:      +5 at 2.5x, +5 more at 4.0x
//	money-flow:  +7 (mid 50, oversold 20, overbought 80)
//	bands:       +5 (low 0.2, high 0.8)
//	momentum:    +3..+5 over a 20-point span from 50
//	aggregation: weights 1m=3 3m=5 5m=8 10m=6 15m=4, min aligned 3
//	guard:       reduce 70%, warn 75%, block 80%, emergency 85%, fallback leverage 25
//	sizing:      11% of balance, x1.15 confluence, x0.5 reduced, notional 10..200, leverage <= 25
package config

import (
	"time"

	"confluence-engine/internal/indicator"
	"confluence-engine/internal/model"
	"confluence-engine/internal/portfolio"
	"confluence-engine/internal/sizing"
	"confluence-engine/internal/strategy"
)

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Service:  "confluence",
		LogLevel: "info",

		Symbols:    []string{"BTCUSDT", "ETHUSDT"},
		Timeframes: append([]model.Timeframe(nil), model.AllTimeframes...),

		CycleInterval: time.Minute,
		Workers:       4,
		WindowSize:    200,
		AuditDepth:    50,
		BarRate:       20,
		BarBurst:      10,

		Indicators:  indicator.DefaultParams(),
		Scoring:     strategy.DefaultScoringParams(),
		Aggregation: strategy.DefaultAggregationParams(),
		Guard:       portfolio.DefaultLimits(),
		Sizing:      sizing.DefaultParams(),

		Redis: RedisConfig{
			Addr:           "localhost:6379",
			DB:             0,
			BarPrefix:      "candle",
			DecisionStream: "confluence:decisions",
			StreamMaxLen:   10000,
			CapitalKey:     "confluence:capital:latest",
			Channel:        "pub:confluence:decisions",
			AccountKey:     "account:snapshot",
		},
		SQLite: SQLiteConfig{
			Path:          "data/decisions.db",
			BatchSize:     100,
			FlushInterval: time.Second,
		},
		HTTP: HTTPConfig{
			APIAddr:     ":8080",
			MetricsAddr: ":9090",
		},
		Paper: PaperConfig{
			StartingBalance: 1000,
			SlippageBps:     5,
		},
	}
}
