package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"confluence-engine/internal/logger"
	"confluence-engine/internal/model"
	"confluence-engine/internal/ringbuf"
)

// Reasons recorded in Decision.Skipped.
const (
	skipInsufficient = "insufficient-data"
	skipDegenerate   = "degenerate-indicator"
	skipMarketData   = "market-data"
	skipIndicator    = "indicator-error"
)

// ErrAccountUnavailable is returned by Evaluate when no account snapshot has
// ever been loaded, so there is no balance to size against.
var ErrAccountUnavailable = errors.New("account snapshot unavailable")

// cycle is the state shared by the evaluations of one RunCycle.
type cycle struct {
	id      string
	blocked atomic.Bool // set once any evaluation observes Blocked or EmergencyShutdown
}

// Evaluate refreshes every configured timeframe for symbol, scores and
// aggregates the timeframes and, when an aggregate signal exists, sizes it
// through a Capital Guard reservation.
//
// The signal is nil when no direction emerges. The result is nil only when
// the signal is nil. An accepted result holds a reservation until
// ReportPositionOpened or ReleaseReservation (or the reservation TTL).
//
// The first Evaluate on an engine whose guard was never synced loads the
// account first. Timeframes that fail are skipped and recorded in the
// decision; an error is returned only when ctx ends, no timeframe could be
// fetched at all, or the account has never been loaded.
func (e *Engine) Evaluate(ctx context.Context, symbol string) (*model.Signal, *model.SizingResult, error) {
	return e.evaluate(ctx, symbol, nil)
}

func (e *Engine) evaluate(ctx context.Context, symbol string, cyc *cycle) (*model.Signal, *model.SizingResult, error) {
	start := time.Now()
	if !e.guard.Synced() {
		if _, err := e.loadAccount(ctx); err != nil {
			e.m.EvaluationsTotal.WithLabelValues("error").Inc()
			return nil, nil, fmt.Errorf("evaluate %s: %w: %w", symbol, ErrAccountUnavailable, err)
		}
	}
	ss := e.symbol(symbol)
	ss.mu.Lock()
	defer ss.mu.Unlock()

	signals, skipped, fetchErr := e.scoreTimeframes(ctx, symbol, ss)
	if err := ctx.Err(); err != nil {
		e.m.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	if fetchErr != nil && len(skipped) == len(e.cfg.Timeframes) && allMarketData(skipped) {
		e.m.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("evaluate %s: %w", symbol, fetchErr)
	}

	sig := e.agg.Aggregate(symbol, signals)

	var res *model.SizingResult
	var capital model.CapitalStatus
	if sig != nil {
		r, st := e.size(symbol, sig, cyc)
		res, capital = &r, st
	} else {
		capital = e.guard.Status()
	}

	e.record(ctx, model.Decision{
		ID:      uuid.NewString(),
		CycleID: logger.CycleID(ctx),
		Symbol:  symbol,
		TS:      time.Now().UTC(),
		Signal:  sig,
		Result:  res,
		Capital: capital,
		Skipped: skipped,
	}, start)
	return sig, res, nil
}

// scoreTimeframes fetches, windows and scores each timeframe. It returns the
// per-timeframe signals, the skipped timeframes with reasons, and the last
// market-data error.
func (e *Engine) scoreTimeframes(ctx context.Context, symbol string, ss *symbolState) ([]model.Signal, map[string]string, error) {
	var signals []model.Signal
	var lastErr error
	skipped := make(map[string]string)

	skip := func(tf model.Timeframe, reason string) {
		skipped[tf.String()] = reason
		e.m.SkippedTimeframes.WithLabelValues(tf.String(), reason).Inc()
	}

	for _, tf := range e.cfg.Timeframes {
		if err := e.limiter.Wait(ctx); err != nil {
			return signals, skipped, err
		}
		bars, err := e.market.GetBars(ctx, symbol, tf, e.cfg.WindowSize)
		if err != nil {
			if ctx.Err() != nil {
				return signals, skipped, ctx.Err()
			}
			lastErr = err
			e.m.BarFetchErrors.WithLabelValues(tf.String()).Inc()
			e.log.Warn("[engine] bar fetch failed", append(logger.LogWithCycle(ctx),
				"symbol", symbol, "tf", tf.String(), "error", err)...)
			skip(tf, skipMarketData)
			continue
		}

		w, ok := ss.windows[tf]
		if !ok {
			w = ringbuf.New(e.cfg.WindowSize)
			ss.windows[tf] = w
		}
		for i := 1; i < len(bars); i++ {
			if !bars[i].TS.After(bars[i-1].TS) {
				e.m.WindowRejects.Inc()
			}
		}
		w.Merge(bars)

		snap, err := e.calc.Snapshot(symbol, tf, w.Bars())
		switch {
		case errors.Is(err, model.ErrDataInsufficient):
			skip(tf, skipInsufficient)
			continue
		case errors.Is(err, model.ErrDegenerateIndicator):
			skip(tf, skipDegenerate)
			continue
		case err != nil:
			e.log.Warn("[engine] indicator failed", "symbol", symbol, "tf", tf.String(), "error", err)
			skip(tf, skipIndicator)
			continue
		}

		if sig := e.scorer.Score(snap); sig != nil {
			e.m.SignalsTotal.WithLabelValues(tf.String(), string(sig.Side)).Inc()
			signals = append(signals, *sig)
		}
	}
	return signals, skipped, lastErr
}

func allMarketData(skipped map[string]string) bool {
	for _, reason := range skipped {
		if reason != skipMarketData {
			return false
		}
	}
	return true
}

// size runs the sizer inside a guard reservation. Once the engine is halted
// or the cycle has seen trading stop, the sizer is not called at all.
func (e *Engine) size(symbol string, sig *model.Signal, cyc *cycle) (model.SizingResult, model.CapitalStatus) {
	if e.Halted() || (cyc != nil && cyc.blocked.Load()) {
		st := e.guard.Status()
		return model.Reject(model.RejectGuardBlocked, st.State), st
	}

	leverageCap := e.cfg.LeverageCap(symbol)
	res, st := e.guard.Reserve(symbol, sig.Side, func(st model.CapitalStatus) model.SizingResult {
		return e.sizer.Size(sig, st, leverageCap)
	})
	if cyc != nil && !st.State.AllowsTrading() {
		cyc.blocked.Store(true)
	}
	e.observeCapital(st)
	return res, st
}

// record stores the decision in the audit ring, emits it and updates metrics.
func (e *Engine) record(ctx context.Context, d model.Decision, start time.Time) {
	e.audit.add(d)
	e.m.EvaluateDur.Observe(time.Since(start).Seconds())

	attrs := append(logger.LogWithCycle(ctx), "symbol", d.Symbol, "decision_id", d.ID)
	switch {
	case d.Signal == nil:
		e.m.EvaluationsTotal.WithLabelValues("no_signal").Inc()
		e.log.Debug("[engine] no signal", append(attrs, "skipped", len(d.Skipped))...)
	case d.Result.Accepted:
		e.m.EvaluationsTotal.WithLabelValues("accepted").Inc()
		e.log.Info("[engine] proposal accepted", append(attrs,
			"side", d.Signal.Side, "confidence", d.Signal.Confidence, "confluence", d.Signal.Confluence,
			"notional", d.Result.Notional, "required", d.Result.RequiredCapital,
			"leverage", d.Result.Leverage, "guard_state", d.Result.GuardState)...)
	default:
		e.m.EvaluationsTotal.WithLabelValues("rejected").Inc()
		e.m.RejectionsTotal.WithLabelValues(string(d.Result.RejectReason)).Inc()
		e.log.Info("[engine] proposal rejected", append(attrs,
			"side", d.Signal.Side, "confidence", d.Signal.Confidence,
			"reason", d.Result.RejectReason, "error", d.Result.Err())...)
	}

	select {
	case e.out <- d:
	default:
		e.m.FanoutDropsTotal.WithLabelValues("engine").Inc()
		e.log.Warn("[engine] decision stream full, dropping", "decision_id", d.ID, "symbol", d.Symbol)
	}
}
