// Package portfolio tracks leverage-adjusted capital in play and gates new
// trades through the Capital Guard.
//
// Committed capital for a position is its notional divided by its own
// leverage, never the raw notional. Pending reservations count as committed
// until they are confirmed, released, or expire.
package portfolio

import (
	"sort"

	"confluence-engine/internal/model"
)

// Assess derives the capital status from a balance, open positions and
// pending reservations. It is a pure function of its inputs.
func Assess(l Limits, balance float64, positions []model.OpenPosition, pending []model.PositionCapital) model.CapitalStatus {
	st := model.CapitalStatus{
		Balance:   balance,
		Positions: make([]model.PositionCapital, 0, len(positions)+len(pending)),
	}

	for _, p := range positions {
		lev := l.leverage(p.Leverage)
		notional := p.Notional()
		pc := model.PositionCapital{
			Symbol:   p.Symbol,
			Side:     p.Side,
			Notional: notional,
			Leverage: lev,
			Capital:  notional / lev,
		}
		st.Committed += pc.Capital
		st.Positions = append(st.Positions, pc)
	}
	for _, r := range pending {
		r.Pending = true
		st.Committed += r.Capital
		st.Reserved += r.Capital
		st.Positions = append(st.Positions, r)
	}
	sort.SliceStable(st.Positions, func(i, j int) bool {
		return st.Positions[i].Symbol < st.Positions[j].Symbol
	})

	switch {
	case balance > 0:
		st.InPlayPct = st.Committed / balance * 100
	case st.Committed > 0:
		st.InPlayPct = 100
	}
	if free := balance - st.Committed; free > 0 {
		st.FreeMargin = free
	}
	st.State = l.Classify(st.InPlayPct)
	return st
}
