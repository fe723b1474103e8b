package strategy

import (
	"fmt"
	"math"

	"confluence-engine/internal/indicator"
	"confluence-engine/internal/model"
)

// Scorer grades a single timeframe snapshot.
//
// Direction comes from the trend reading alone: long when the trend is up and
// price sits above the trend line, short when the trend is down and price sits
// below it. Confidence starts at BaseConfidence and each confirming reading
// adds its own bonus independently.
type Scorer struct {
	p ScoringParams
}

// NewScorer creates a Scorer.
func NewScorer(p ScoringParams) *Scorer {
	return &Scorer{p: p}
}

// Params returns the active scoring parameters.
func (s *Scorer) Params() ScoringParams { return s.p }

// Score returns a signal for the snapshot, or nil when there is no direction
// or the confidence stays below CandidateMin.
func (s *Scorer) Score(snap indicator.Snapshot) *model.Signal {
	side, ok := direction(snap)
	if !ok {
		return nil
	}

	conf := s.p.BaseConfidence
	var factors []string

	ratio := snap.VolumeRatio()
	for _, tier := range s.p.VolumeTiers {
		if ratio >= tier.Ratio {
			conf += tier.Bonus
			factors = append(factors, fmt.Sprintf("volume %.1fx >= %.1fx", ratio, tier.Ratio))
		}
	}

	// An absent reading earns nothing; a zero would otherwise look oversold.
	if snap.Has(indicator.KeyMoneyFlow) {
		if bonus, factor := s.moneyFlow(side, snap.MoneyFlow(), snap.MoneyFlowPrev()); bonus > 0 {
			conf += bonus
			factors = append(factors, factor)
		}
	}
	if snap.Has(indicator.KeyBandPosition) {
		if bonus, factor := s.band(side, snap.BandPosition(), snap.BandPositionPrev()); bonus > 0 {
			conf += bonus
			factors = append(factors, factor)
		}
	}
	if snap.Has(indicator.KeyMomentum) {
		if bonus, factor := s.momentum(side, snap.Momentum()); bonus > 0 {
			conf += bonus
			factors = append(factors, factor)
		}
	}

	conf = clamp(conf, 0, s.p.MaxConfidence)
	if conf < s.p.CandidateMin {
		return nil
	}

	return &model.Signal{
		Symbol:        snap.Symbol,
		Timeframe:     snap.Timeframe.String(),
		Side:          side,
		Confidence:    conf,
		Factors:       factors,
		Price:         snap.Close,
		TS:            snap.TS,
		TradeEligible: conf >= s.p.TradeMin,
	}
}

func direction(snap indicator.Snapshot) (model.Side, bool) {
	switch {
	case snap.TrendDirection() > 0 && snap.Close > snap.TrendLine():
		return model.SideLong, true
	case snap.TrendDirection() < 0 && snap.Close < snap.TrendLine():
		return model.SideShort, true
	}
	return "", false
}

func (s *Scorer) moneyFlow(side model.Side, mf, prev float64) (float64, string) {
	switch side {
	case model.SideLong:
		if mf > s.p.MoneyFlowMid && mf > prev {
			return s.p.MoneyFlowBonus, fmt.Sprintf("money-flow %.1f rising", mf)
		}
		if mf <= s.p.MoneyFlowOversold {
			return s.p.MoneyFlowBonus, fmt.Sprintf("money-flow %.1f oversold", mf)
		}
	case model.SideShort:
		if mf < s.p.MoneyFlowMid && mf < prev {
			return s.p.MoneyFlowBonus, fmt.Sprintf("money-flow %.1f falling", mf)
		}
		if mf >= s.p.MoneyFlowOverbought {
			return s.p.MoneyFlowBonus, fmt.Sprintf("money-flow %.1f overbought", mf)
		}
	}
	return 0, ""
}

func (s *Scorer) band(side model.Side, pos, prev float64) (float64, string) {
	switch side {
	case model.SideLong:
		if pos <= s.p.BandLow && pos > prev {
			return s.p.BandBonus, fmt.Sprintf("band %.2f turning up", pos)
		}
	case model.SideShort:
		if pos >= s.p.BandHigh && pos < prev {
			return s.p.BandBonus, fmt.Sprintf("band %.2f turning down", pos)
		}
	}
	return 0, ""
}

// momentum scales from MomentumBase to MomentumBase+MomentumExtra as the
// oscillator moves away from 50 in the signal's direction.
func (s *Scorer) momentum(side model.Side, m float64) (float64, string) {
	d := (m - 50) * float64(side.Sign())
	if d <= 0 {
		return 0, ""
	}
	bonus := s.p.MomentumBase + s.p.MomentumExtra*math.Min(d, s.p.MomentumSpan)/s.p.MomentumSpan
	return bonus, fmt.Sprintf("momentum %.1f", m)
}
