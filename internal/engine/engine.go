// Package engine orchestrates evaluation: it keeps the per-symbol bar
// windows, turns them into scored and aggregated signals, sizes those
// signals through the Capital Guard and emits one Decision per evaluation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"confluence-engine/config"
	"confluence-engine/internal/indicator"
	"confluence-engine/internal/metrics"
	"confluence-engine/internal/model"
	"confluence-engine/internal/notification"
	"confluence-engine/internal/portfolio"
	"confluence-engine/internal/ringbuf"
	"confluence-engine/internal/sizing"
	"confluence-engine/internal/strategy"
)

const (
	decisionBuffer = 256
	alertTimeout   = 10 * time.Second
)

// Deps are the engine's collaborators. Market and Account are required.
type Deps struct {
	Market   model.MarketData
	Account  model.AccountSource
	Guard    *portfolio.Guard      // default: a new guard from cfg.Guard
	Metrics  *metrics.Metrics      // default: registered on a private registry
	Health   *metrics.HealthStatus // optional
	Notifier notification.Notifier // optional
	Logger   *slog.Logger          // default: slog.Default()
}

// Engine is safe for concurrent use. Evaluations of different symbols run in
// parallel; evaluations of one symbol are serialised.
type Engine struct {
	cfg     *config.Config
	market  model.MarketData
	account model.AccountSource
	guard   *portfolio.Guard
	m       *metrics.Metrics
	health  *metrics.HealthStatus
	notify  notification.Notifier
	log     *slog.Logger

	calc    *indicator.Calculator
	scorer  *strategy.Scorer
	agg     *strategy.Aggregator
	sizer   *sizing.Sizer
	limiter *rate.Limiter

	mu      sync.Mutex // guards symbols
	symbols map[string]*symbolState

	audit *auditLog
	out   chan model.Decision

	halted atomic.Bool
}

// symbolState is the per-symbol evaluation state, guarded by mu.
type symbolState struct {
	mu      sync.Mutex
	windows map[model.Timeframe]*ringbuf.Window
}

// New validates cfg and wires the engine. The returned engine does not
// start any goroutines until Run is called.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Market == nil || deps.Account == nil {
		return nil, fmt.Errorf("engine: market data and account source are required: %w", model.ErrConfigurationInvalid)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Guard == nil {
		deps.Guard = portfolio.NewGuard(cfg.Guard, deps.Logger)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}

	e := &Engine{
		cfg:     cfg,
		market:  deps.Market,
		account: deps.Account,
		guard:   deps.Guard,
		m:       deps.Metrics,
		health:  deps.Health,
		notify:  deps.Notifier,
		log:     deps.Logger,
		calc:    indicator.NewDefaultCalculator(cfg.Indicators),
		scorer:  strategy.NewScorer(cfg.Scoring),
		agg:     strategy.NewAggregator(cfg.Aggregation, cfg.Scoring.MaxConfidence, cfg.Scoring.TradeMin),
		sizer:   sizing.NewSizer(cfg.SizingParams()),
		limiter: rate.NewLimiter(rate.Limit(cfg.BarRate), cfg.BarBurst),
		symbols: make(map[string]*symbolState),
		audit:   newAuditLog(cfg.AuditDepth),
		out:     make(chan model.Decision, decisionBuffer),
	}
	e.guard.OnStateChange(e.onGuardChange)
	e.observeCapital(e.guard.Status())
	if e.health != nil {
		e.health.SetUniverse(cfg.Symbols, cfg.Timeframes)
	}
	return e, nil
}

// Decisions returns the stream of decisions, one per Evaluate. When nobody
// drains it fast enough, decisions are dropped from the stream (they stay in
// the audit ring).
func (e *Engine) Decisions() <-chan model.Decision { return e.out }

// Guard returns the Capital Guard.
func (e *Engine) Guard() *portfolio.Guard { return e.guard }

// CapitalStatus returns the current Capital Guard status.
func (e *Engine) CapitalStatus() model.CapitalStatus { return e.guard.Status() }

// Halted reports whether an emergency shutdown has latched.
func (e *Engine) Halted() bool { return e.halted.Load() }

// Recent returns the retained decisions for symbol, newest first.
func (e *Engine) Recent(symbol string) []model.Decision { return e.audit.recent(symbol) }

// ReportPositionOpened records a confirmed position, replacing the reservation.
func (e *Engine) ReportPositionOpened(pos model.OpenPosition) {
	e.observeCapital(e.guard.Open(pos))
}

// ReportPositionClosed removes a position from the guard.
func (e *Engine) ReportPositionClosed(symbol string) {
	e.observeCapital(e.guard.Close(symbol))
}

// ReleaseReservation abandons an accepted proposal that was not executed.
func (e *Engine) ReleaseReservation(symbol string) {
	e.observeCapital(e.guard.Release(symbol))
}

var _ model.PositionReporter = (*Engine)(nil)

func (e *Engine) symbol(symbol string) *symbolState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.symbols[symbol]
	if !ok {
		st = &symbolState{windows: make(map[model.Timeframe]*ringbuf.Window, len(e.cfg.Timeframes))}
		e.symbols[symbol] = st
	}
	return st
}

func (e *Engine) halt(st model.CapitalStatus) {
	if e.halted.Swap(true) {
		return
	}
	e.m.Halted.Set(1)
	if e.health != nil {
		e.health.SetHalted(true)
	}
	e.log.Error("[engine] emergency shutdown latched",
		"in_play_pct", st.InPlayPct, "balance", st.Balance, "committed", st.Committed)
}

func (e *Engine) onGuardChange(c portfolio.StateChange) {
	e.m.GuardTransitions.WithLabelValues(string(c.To)).Inc()
	e.observeCapital(c.Status)
	if c.To == model.StateEmergencyShutdown {
		e.halt(c.Status)
	}

	alert, ok := notification.CapitalAlert(c.From, c.To, c.Status)
	if !ok || e.notify == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if err := e.notify.Send(ctx, alert); err != nil {
			e.m.NotificationsFailed.Inc()
			e.log.Warn("[engine] alert delivery failed", "title", alert.Title, "error", err)
		}
	}()
}

func (e *Engine) observeCapital(st model.CapitalStatus) {
	e.m.CapitalInPlayPct.Set(st.InPlayPct)
	e.m.FreeMargin.Set(st.FreeMargin)
	e.m.GuardState.Set(float64(st.State.Level()))
	if e.health != nil {
		e.health.SetGuardState(st.State)
	}
}
