// Package metrics exposes Prometheus instrumentation and the health probe
// for the confluence engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Evaluation
	EvaluationsTotal  *prometheus.CounterVec // labels: outcome=accepted|rejected|no_signal|error
	SignalsTotal      *prometheus.CounterVec // labels: timeframe, side
	RejectionsTotal   *prometheus.CounterVec // labels: reason
	SkippedTimeframes *prometheus.CounterVec // labels: timeframe, reason
	EvaluateDur       prometheus.Histogram
	CycleDur          prometheus.Histogram
	CyclesTotal       prometheus.Counter

	// Market data
	BarFetchErrors *prometheus.CounterVec // labels: timeframe
	WindowRejects  prometheus.Counter     // duplicate or out-of-order bars

	// Capital guard
	CapitalInPlayPct prometheus.Gauge
	FreeMargin       prometheus.Gauge
	GuardState       prometheus.Gauge       // 0=normal … 4=emergency_shutdown
	GuardTransitions *prometheus.CounterVec // labels: to
	Halted           prometheus.Gauge

	// Backpressure
	FanoutDropsTotal     *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: channel_name

	// Sinks
	JournalCommitDur      prometheus.Histogram
	JournalWritesTotal    prometheus.Counter
	PublishErrorsTotal    prometheus.Counter
	PublisherBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	PublisherBreakerTrips prometheus.Counter
	WSClients             prometheus.Gauge
	NotificationsFailed   prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_evaluations_total",
			Help: "Symbol evaluations by outcome",
		}, []string{"outcome"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_signals_total",
			Help: "Signals emitted by timeframe (or aggregate) and side",
		}, []string{"timeframe", "side"}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_sizing_rejections_total",
			Help: "Sizing rejections by reason",
		}, []string{"reason"}),
		SkippedTimeframes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_skipped_timeframes_total",
			Help: "Timeframes skipped during scoring (insufficient data, degenerate indicator, fetch error)",
		}, []string{"timeframe", "reason"}),
		EvaluateDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "confluence_evaluate_duration_seconds",
			Help:    "Latency of one symbol evaluation including bar fetches",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "confluence_cycle_duration_seconds",
			Help:    "Latency of one full evaluation cycle",
			Buckets: prometheus.DefBuckets,
		}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_cycles_total",
			Help: "Completed evaluation cycles",
		}),

		BarFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_bar_fetch_errors_total",
			Help: "Market-data fetch failures by timeframe",
		}, []string{"timeframe"}),
		WindowRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_window_rejected_bars_total",
			Help: "Bars rejected by a window as duplicate or out of order",
		}),

		CapitalInPlayPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_capital_in_play_pct",
			Help: "Leverage-adjusted capital in play as a percentage of balance",
		}),
		FreeMargin: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_free_margin",
			Help: "Balance minus committed capital",
		}),
		GuardState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_guard_state",
			Help: "Capital guard state (0=normal, 1=size_reduced, 2=warning, 3=blocked, 4=emergency_shutdown)",
		}),
		GuardTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_guard_transitions_total",
			Help: "Capital guard state transitions by target state",
		}, []string{"to"}),
		Halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_halted",
			Help: "1 once emergency shutdown has latched",
		}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confluence_fanout_drops_total",
			Help: "Decisions dropped by the FanOut bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "confluence_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),

		JournalCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "confluence_journal_commit_duration_seconds",
			Help:    "SQLite decision journal batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		JournalWritesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_journal_writes_total",
			Help: "Decisions written to the journal",
		}),
		PublishErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_publish_errors_total",
			Help: "Redis publication failures",
		}),
		PublisherBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_publisher_circuit_breaker_state",
			Help: "Redis publisher circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		PublisherBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_publisher_circuit_breaker_trips_total",
			Help: "Times the Redis publisher circuit breaker tripped open",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confluence_ws_clients",
			Help: "Connected websocket observers",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confluence_notifications_failed_total",
			Help: "Alerts that could not be delivered",
		}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.SignalsTotal,
		m.RejectionsTotal,
		m.SkippedTimeframes,
		m.EvaluateDur,
		m.CycleDur,
		m.CyclesTotal,
		m.BarFetchErrors,
		m.WindowRejects,
		m.CapitalInPlayPct,
		m.FreeMargin,
		m.GuardState,
		m.GuardTransitions,
		m.Halted,
		m.FanoutDropsTotal,
		m.ChannelSaturationPct,
		m.JournalCommitDur,
		m.JournalWritesTotal,
		m.PublishErrorsTotal,
		m.PublisherBreakerState,
		m.PublisherBreakerTrips,
		m.WSClients,
		m.NotificationsFailed,
	)

	return m
}
