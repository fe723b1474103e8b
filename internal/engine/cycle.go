package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"confluence-engine/internal/logger"
	"confluence-engine/internal/model"
)

// RunCycle syncs the account into the Capital Guard and evaluates symbols
// concurrently, at most cfg.Workers at a time.
//
// Per-symbol failures are logged and do not abort the cycle. Once any
// evaluation observes Blocked or EmergencyShutdown, the rest of the cycle
// still scores but no longer sizes. If the guard ends the cycle in
// EmergencyShutdown (or the engine was already halted) the engine halts and
// RunCycle returns an error wrapping model.ErrEmergencyShutdown.
func (e *Engine) RunCycle(ctx context.Context, symbols []string) error {
	if e.Halted() {
		return fmt.Errorf("engine halted: %w", model.ErrEmergencyShutdown)
	}

	start := time.Now()
	id := logger.NewCycleID()
	ctx = logger.WithCycleID(ctx, id)
	e.m.CyclesTotal.Inc()
	defer func() {
		e.m.CycleDur.Observe(time.Since(start).Seconds())
		if e.health != nil {
			e.health.SetLastCycle(time.Now())
		}
	}()

	st := e.syncAccount(ctx)
	if st.State == model.StateEmergencyShutdown {
		e.halt(st)
		return fmt.Errorf("cycle %s: %w", id, model.ErrEmergencyShutdown)
	}

	cyc := &cycle{id: id}
	cyc.blocked.Store(!st.State.AllowsTrading())

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for _, symbol := range symbols {
		g.Go(func() error {
			if _, _, err := e.evaluate(ctx, symbol, cyc); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.log.Warn("[engine] evaluation failed", append(logger.LogWithCycle(ctx),
					"symbol", symbol, "error", err)...)
			}
			return nil
		})
	}
	err := g.Wait()

	if st := e.guard.Status(); st.State == model.StateEmergencyShutdown || e.Halted() {
		e.halt(st)
		return fmt.Errorf("cycle %s: %w", id, model.ErrEmergencyShutdown)
	}

	e.log.Debug("[engine] cycle complete", append(logger.LogWithCycle(ctx),
		"symbols", len(symbols), "took", time.Since(start), "blocked", cyc.blocked.Load())...)
	return err
}

// syncAccount refreshes the guard from the account collaborator. On failure
// the last known account state is kept.
func (e *Engine) syncAccount(ctx context.Context) model.CapitalStatus {
	st, err := e.loadAccount(ctx)
	if err != nil {
		e.log.Warn("[engine] account snapshot failed, using last known state",
			append(logger.LogWithCycle(ctx), "error", err)...)
		st = e.guard.Status()
		e.observeCapital(st)
	}
	return st
}

// loadAccount fetches a snapshot and syncs it into the guard.
func (e *Engine) loadAccount(ctx context.Context) (model.CapitalStatus, error) {
	snap, err := e.account.GetAccountSnapshot(ctx)
	if err != nil {
		return model.CapitalStatus{}, err
	}
	st := e.guard.Sync(snap)
	e.observeCapital(st)
	return st, nil
}

// Run evaluates the configured symbols every cfg.CycleInterval until ctx is
// cancelled (returns nil) or an emergency shutdown halts the engine (returns
// the wrapped model.ErrEmergencyShutdown).
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("[engine] starting",
		"symbols", e.cfg.Symbols, "timeframes", len(e.cfg.Timeframes),
		"interval", e.cfg.CycleInterval, "workers", e.cfg.Workers)

	ticker := time.NewTicker(e.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		if err := e.RunCycle(ctx, e.cfg.Symbols); err != nil {
			if errors.Is(err, model.ErrEmergencyShutdown) {
				e.log.Error("[engine] stopping: emergency shutdown", "error", err)
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			e.log.Warn("[engine] cycle error", "error", err)
		}

		select {
		case <-ctx.Done():
			e.log.Info("[engine] stopped")
			return nil
		case <-ticker.C:
		}
	}
}
