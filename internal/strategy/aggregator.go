package strategy

import (
	"fmt"
	"math"
	"sort"

	"confluence-engine/internal/model"
)

// Aggregator combines per-timeframe signals of one symbol.
type Aggregator struct {
	p             AggregationParams
	maxConfidence float64
	tradeMin      float64
}

// NewAggregator creates an Aggregator. maxConfidence and tradeMin come from
// the scoring parameters so both stages share one ceiling and one trade floor.
func NewAggregator(p AggregationParams, maxConfidence, tradeMin float64) *Aggregator {
	return &Aggregator{p: p, maxConfidence: maxConfidence, tradeMin: tradeMin}
}

// Weight returns the configured weight of a timeframe label, 0 if unknown.
func (a *Aggregator) Weight(label string) float64 {
	tf, err := model.ParseTimeframe(label)
	if err != nil {
		return 0
	}
	return a.p.Weights[tf]
}

// AlignmentBonus is min(base + step·(aligned − MinAligned), cap) once at
// least MinAligned timeframes agree, else 0.
func (a *Aggregator) AlignmentBonus(aligned int) float64 {
	if aligned < a.p.MinAligned {
		return 0
	}
	return math.Min(a.p.AlignBonusBase+a.p.AlignBonusStep*float64(aligned-a.p.MinAligned), a.p.AlignBonusCap)
}

// contribution is the timeframe weight scaled by its confidence tier.
func (a *Aggregator) contribution(sig model.Signal) float64 {
	w := a.Weight(sig.Timeframe)
	switch {
	case sig.Confidence >= a.p.StrongConfidence:
		return w * a.p.StrongFactor
	case sig.Confidence >= a.p.ModerateConfidence:
		return w * a.p.ModerateFactor
	default:
		return w * a.p.WeakFactor
	}
}

// Aggregate returns one signal for the symbol, or nil.
//
// The majority side wins by count; an exact split yields nil. With fewer than
// MinAligned timeframes on the majority side the strongest trade-eligible
// aligned signal is returned as-is. Otherwise the highest-weighted aligned
// timeframe sets the base confidence and the weighted contributions and the
// alignment bonus are added on top.
func (a *Aggregator) Aggregate(symbol string, signals []model.Signal) *model.Signal {
	var long, short []model.Signal
	for _, s := range signals {
		switch s.Side {
		case model.SideLong:
			long = append(long, s)
		case model.SideShort:
			short = append(short, s)
		}
	}
	if len(long) == len(short) {
		return nil
	}
	aligned := long
	if len(short) > len(long) {
		aligned = short
	}

	if len(aligned) < a.p.MinAligned {
		return a.standalone(aligned)
	}

	// Highest weight first, higher confidence breaks weight ties.
	sort.SliceStable(aligned, func(i, j int) bool {
		wi, wj := a.Weight(aligned[i].Timeframe), a.Weight(aligned[j].Timeframe)
		if wi != wj {
			return wi > wj
		}
		return aligned[i].Confidence > aligned[j].Confidence
	})
	base := aligned[0]

	var contrib float64
	for _, s := range aligned {
		contrib += a.contribution(s)
	}
	contrib = math.Min(contrib, a.p.ContributionCap)
	bonus := a.AlignmentBonus(len(aligned))
	conf := clamp(base.Confidence+contrib+bonus, 0, a.maxConfidence)

	components := make([]model.Signal, len(aligned))
	copy(components, aligned)

	factors := []string{
		fmt.Sprintf("confluence %d/%d %s", len(aligned), len(signals), base.Side),
		fmt.Sprintf("base %s %.1f", base.Timeframe, base.Confidence),
		fmt.Sprintf("weighted +%.1f", contrib),
		fmt.Sprintf("alignment +%.0f", bonus),
	}

	return &model.Signal{
		Symbol:        symbol,
		Timeframe:     model.AggregateLabel,
		Side:          base.Side,
		Confidence:    conf,
		Factors:       factors,
		Price:         base.Price,
		TS:            base.TS,
		TradeEligible: conf >= a.tradeMin,
		Confluence:    true,
		AlignedCount:  len(aligned),
		Components:    components,
	}
}

func (a *Aggregator) standalone(aligned []model.Signal) *model.Signal {
	var best *model.Signal
	for i := range aligned {
		s := &aligned[i]
		if !s.TradeEligible {
			continue
		}
		if best == nil || s.Confidence > best.Confidence ||
			(s.Confidence == best.Confidence && a.Weight(s.Timeframe) > a.Weight(best.Timeframe)) {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	out.AlignedCount = len(aligned)
	return &out
}
