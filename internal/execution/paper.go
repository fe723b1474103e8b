// Package execution provides the paper trading collaborator: a simulated
// account that fills accepted decisions and reports positions back to the
// engine.
package execution

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"confluence-engine/internal/model"
)

// Fill is a simulated execution of an accepted decision.
type Fill struct {
	OrderID    string     `json:"order_id"`
	DecisionID string     `json:"decision_id"`
	Symbol     string     `json:"symbol"`
	Side       model.Side `json:"side"`
	Price      float64    `json:"price"`
	Size       float64    `json:"size"`
	Notional   float64    `json:"notional"`
	Leverage   float64    `json:"leverage"`
	Slippage   float64    `json:"slippage"` // price units
	FilledAt   time.Time  `json:"filled_at"`
}

// PaperAccount simulates a margin account. It implements
// model.AccountSource for the engine and model.DecisionSink for the
// decision bus: accepted decisions are filled at the signal price plus
// slippage and reported back with ReportPositionOpened. Decisions it cannot
// fill have their reservation released.
type PaperAccount struct {
	mu          sync.RWMutex
	balance     float64
	positions   map[string]model.OpenPosition
	fills       []Fill
	orderSeq    int64
	slippageBps float64
	reporter    model.PositionReporter
}

// NewPaperAccount creates an account with the given starting balance.
// slippageBps moves fills against the trader (5 = 0.05%).
func NewPaperAccount(balance, slippageBps float64) *PaperAccount {
	return &PaperAccount{
		balance:     balance,
		positions:   make(map[string]model.OpenPosition),
		fills:       make([]Fill, 0, 64),
		slippageBps: slippageBps,
	}
}

// SetReporter connects the account to the engine. Fills and closes made
// before a reporter is set are not reported.
func (p *PaperAccount) SetReporter(r model.PositionReporter) {
	p.mu.Lock()
	p.reporter = r
	p.mu.Unlock()
}

// GetAccountSnapshot returns the balance and open positions, sorted by symbol.
func (p *PaperAccount) GetAccountSnapshot(ctx context.Context) (model.AccountSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.AccountSnapshot{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := model.AccountSnapshot{Balance: p.balance, Positions: make([]model.OpenPosition, 0, len(p.positions))}
	for _, pos := range p.positions {
		snap.Positions = append(snap.Positions, pos)
	}
	sort.Slice(snap.Positions, func(i, j int) bool { return snap.Positions[i].Symbol < snap.Positions[j].Symbol })
	return snap, nil
}

// Fills returns a copy of every fill so far.
func (p *PaperAccount) Fills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Run consumes decisions until ctx is cancelled or decisions is closed. A
// signal against an open position closes it at the signal price; accepted
// decisions are then filled.
func (p *PaperAccount) Run(ctx context.Context, decisions <-chan model.Decision) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-decisions:
			if !ok {
				return
			}
			p.CloseOnReversal(d)
			if d.Accepted() {
				p.Execute(d)
			}
		}
	}
}

// Execute fills one accepted decision. An accepted decision that cannot be
// filled has its reservation released and returns false.
func (p *PaperAccount) Execute(d model.Decision) (Fill, bool) {
	if !d.Accepted() {
		return Fill{}, false
	}
	p.mu.Lock()
	reporter := p.reporter
	if d.Signal == nil || d.Signal.Price <= 0 {
		p.mu.Unlock()
		log.Printf("[paper] cannot fill decision %s for %s", d.ID, d.Symbol)
		if reporter != nil {
			reporter.ReleaseReservation(d.Symbol)
		}
		return Fill{}, false
	}
	if _, held := p.positions[d.Symbol]; held {
		p.mu.Unlock()
		log.Printf("[paper] %s already open, releasing decision %s", d.Symbol, d.ID)
		if reporter != nil {
			reporter.ReleaseReservation(d.Symbol)
		}
		return Fill{}, false
	}

	price := decimal.NewFromFloat(d.Signal.Price)
	slip := price.Mul(decimal.NewFromFloat(p.slippageBps)).Div(decimal.NewFromInt(10000))
	if d.Signal.Side == model.SideShort {
		price = price.Sub(slip) // sell lower
	} else {
		price = price.Add(slip) // buy higher
	}
	notional := decimal.NewFromFloat(d.Result.Notional)
	size := notional.Div(price)

	p.orderSeq++
	fill := Fill{
		OrderID:    fmt.Sprintf("PAPER-%d", p.orderSeq),
		DecisionID: d.ID,
		Symbol:     d.Symbol,
		Side:       d.Signal.Side,
		Price:      price.InexactFloat64(),
		Size:       size.InexactFloat64(),
		Notional:   d.Result.Notional,
		Leverage:   d.Result.Leverage,
		Slippage:   slip.InexactFloat64(),
		FilledAt:   time.Now().UTC(),
	}
	pos := model.OpenPosition{
		Symbol:     d.Symbol,
		Side:       fill.Side,
		Size:       fill.Size,
		EntryPrice: fill.Price,
		Leverage:   fill.Leverage,
	}
	p.fills = append(p.fills, fill)
	p.positions[d.Symbol] = pos
	p.mu.Unlock()

	log.Printf("[paper] %s %s notional=%.2f price=%.4f (slip=%.4f) lev=%.0fx order=%s",
		fill.Side, fill.Symbol, fill.Notional, fill.Price, fill.Slippage, fill.Leverage, fill.OrderID)

	if reporter != nil {
		reporter.ReportPositionOpened(pos)
	}
	return fill, true
}

// CloseOnReversal closes the position on d.Symbol when d carries a signal on
// the opposite side. The exit pays slippage like an entry does. It reports
// whether a position was closed.
func (p *PaperAccount) CloseOnReversal(d model.Decision) bool {
	if d.Signal == nil || d.Signal.Price <= 0 {
		return false
	}
	p.mu.Lock()
	pos, held := p.positions[d.Symbol]
	p.mu.Unlock()
	if !held || pos.Side == d.Signal.Side {
		return false
	}

	price := decimal.NewFromFloat(d.Signal.Price)
	slip := price.Mul(decimal.NewFromFloat(p.slippageBps)).Div(decimal.NewFromInt(10000))
	if pos.Side == model.SideLong {
		price = price.Sub(slip) // selling out of a long
	} else {
		price = price.Add(slip)
	}
	if _, err := p.ClosePosition(d.Symbol, price.InexactFloat64()); err != nil {
		log.Printf("[paper] reversal close %s: %v", d.Symbol, err)
		return false
	}
	return true
}

// ClosePosition closes symbol at exitPrice, books the realized PnL into the
// balance and reports the close. It returns the realized PnL.
func (p *PaperAccount) ClosePosition(symbol string, exitPrice float64) (float64, error) {
	p.mu.Lock()
	pos, ok := p.positions[symbol]
	if !ok {
		p.mu.Unlock()
		return 0, fmt.Errorf("paper: no open position for %s", symbol)
	}
	move := decimal.NewFromFloat(exitPrice).Sub(decimal.NewFromFloat(pos.EntryPrice))
	pnl := move.Mul(decimal.NewFromFloat(pos.Size)).Mul(decimal.NewFromInt(int64(pos.Side.Sign()))).Round(8)
	p.balance = decimal.NewFromFloat(p.balance).Add(pnl).InexactFloat64()
	delete(p.positions, symbol)
	reporter := p.reporter
	balance := p.balance
	p.mu.Unlock()

	log.Printf("[paper] closed %s at %.4f pnl=%s balance=%.2f", symbol, exitPrice, pnl.StringFixed(2), balance)
	if reporter != nil {
		reporter.ReportPositionClosed(symbol)
	}
	return pnl.InexactFloat64(), nil
}
