// Package sizing converts a scored signal and the current capital status into
// a position size, leverage and capital requirement.
package sizing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"confluence-engine/internal/model"
)

// Params controls position sizing. Amounts are in quote currency.
type Params struct {
	PositionSizePct      float64 `yaml:"position_size_pct" validate:"gt=0,lte=100"`
	ConfluenceMultiplier float64 `yaml:"confluence_multiplier" validate:"gt=0"`
	ReducedMultiplier    float64 `yaml:"reduced_multiplier" validate:"gt=0,lte=1"`
	MinNotional          float64 `yaml:"min_notional" validate:"gte=0"`
	MaxNotional          float64 `yaml:"max_notional" validate:"gt=0"`
	MaxLeverage          float64 `yaml:"max_leverage" validate:"gte=1"`
	TradeMin             float64 `yaml:"-"`
}

// DefaultParams returns the documented defaults. TradeMin mirrors the
// scorer's trade-eligibility floor.
func DefaultParams() Params {
	return Params{
		PositionSizePct:      11,
		ConfluenceMultiplier: 1.15,
		ReducedMultiplier:    0.5,
		MinNotional:          10,
		MaxNotional:          200,
		MaxLeverage:          25,
		TradeMin:             65,
	}
}

// Validate checks cross-field rules.
func (p Params) Validate() error {
	if p.MinNotional > p.MaxNotional {
		return fmt.Errorf("min notional %.2f above max notional %.2f: %w", p.MinNotional, p.MaxNotional, model.ErrConfigurationInvalid)
	}
	if p.MaxLeverage < 1 {
		return fmt.Errorf("max leverage %.1f below 1: %w", p.MaxLeverage, model.ErrConfigurationInvalid)
	}
	return nil
}

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Sizer computes position sizes. It holds no mutable state.
type Sizer struct {
	p Params
}

// NewSizer creates a Sizer.
func NewSizer(p Params) *Sizer { return &Sizer{p: p} }

// Params returns the active sizing parameters.
func (s *Sizer) Params() Params { return s.p }

// Size evaluates one proposal. Checks run in a fixed order: guard state,
// signal threshold, notional bounds, then leverage and margin.
// leverageCap limits leverage further when > 0 (e.g. a venue cap for the symbol).
func (s *Sizer) Size(sig *model.Signal, st model.CapitalStatus, leverageCap float64) model.SizingResult {
	if !st.State.AllowsTrading() {
		return model.Reject(model.RejectGuardBlocked, st.State)
	}
	if sig == nil || sig.Confidence < s.p.TradeMin {
		return model.Reject(model.RejectBelowThreshold, st.State)
	}

	notional := decimal.NewFromFloat(st.Balance).
		Mul(decimal.NewFromFloat(s.p.PositionSizePct)).
		Div(hundred)
	if sig.Confluence {
		notional = notional.Mul(decimal.NewFromFloat(s.p.ConfluenceMultiplier))
	}
	if st.State.Reduced() {
		notional = notional.Mul(decimal.NewFromFloat(s.p.ReducedMultiplier))
	}
	if ceiling := decimal.NewFromFloat(s.p.MaxNotional); notional.GreaterThan(ceiling) {
		notional = ceiling
	}
	notional = notional.Round(2)
	if notional.LessThan(decimal.NewFromFloat(s.p.MinNotional)) || !notional.IsPositive() {
		return model.Reject(model.RejectBelowMinimum, st.State)
	}

	free := decimal.NewFromFloat(st.FreeMargin)
	if !free.IsPositive() {
		return model.Reject(model.RejectInsufficientCapital, st.State)
	}

	maxLev := decimal.NewFromFloat(s.p.MaxLeverage)
	if leverageCap > 0 {
		maxLev = decimal.Min(maxLev, decimal.NewFromFloat(leverageCap))
	}
	maxLev = decimal.Max(maxLev.Floor(), one)

	lev := notional.Div(free).Ceil()
	lev = decimal.Min(decimal.Max(lev, one), maxLev)

	required := notional.Div(lev).RoundCeil(2)
	if required.GreaterThan(free) {
		return model.Reject(model.RejectInsufficientCapital, st.State)
	}

	return model.SizingResult{
		Accepted:        true,
		Notional:        notional.InexactFloat64(),
		RequiredCapital: required.InexactFloat64(),
		Leverage:        lev.InexactFloat64(),
		GuardState:      st.State,
	}
}
