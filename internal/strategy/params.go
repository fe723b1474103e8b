// Package strategy turns indicator snapshots into directional signals.
//
// The Scorer grades one timeframe at a time; the Aggregator combines the
// per-timeframe signals of one symbol into a single multi-timeframe signal.
package strategy

import "confluence-engine/internal/model"

// VolumeTier awards Bonus when the volume ratio reaches Ratio. Tiers are
// cumulative: a ratio clearing two tiers earns both bonuses.
type VolumeTier struct {
	Ratio float64 `yaml:"ratio" validate:"gt=0"`
	Bonus float64 `yaml:"bonus" validate:"gte=0"`
}

// ScoringParams controls per-timeframe confidence scoring.
type ScoringParams struct {
	BaseConfidence float64 `yaml:"base_confidence" validate:"gte=0,lte=100"`
	MaxConfidence  float64 `yaml:"max_confidence" validate:"gt=0,lte=100"`
	CandidateMin   float64 `yaml:"candidate_min" validate:"gte=0,lte=100"`
	TradeMin       float64 `yaml:"trade_min" validate:"gte=0,lte=100"`

	VolumeTiers []VolumeTier `yaml:"volume_tiers" validate:"dive"`

	MoneyFlowBonus      float64 `yaml:"money_flow_bonus" validate:"gte=0"`
	MoneyFlowMid        float64 `yaml:"money_flow_mid" validate:"gte=0,lte=100"`
	MoneyFlowOversold   float64 `yaml:"money_flow_oversold" validate:"gte=0,lte=100"`
	MoneyFlowOverbought float64 `yaml:"money_flow_overbought" validate:"gte=0,lte=100"`

	BandBonus float64 `yaml:"band_bonus" validate:"gte=0"`
	BandLow   float64 `yaml:"band_low" validate:"gte=0,lte=1"`
	BandHigh  float64 `yaml:"band_high" validate:"gte=0,lte=1"`

	MomentumBase  float64 `yaml:"momentum_base" validate:"gte=0"`
	MomentumExtra float64 `yaml:"momentum_extra" validate:"gte=0"`
	MomentumSpan  float64 `yaml:"momentum_span" validate:"gt=0"`
}

// DefaultScoringParams is the documented default threshold set.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		BaseConfidence: 65,
		MaxConfidence:  95,
		CandidateMin:   60,
		TradeMin:       65,
		VolumeTiers: []VolumeTier{
			{Ratio: 2.5, Bonus: 5},
			{Ratio: 4.0, Bonus: 5},
		},
		MoneyFlowBonus:      7,
		MoneyFlowMid:        50,
		MoneyFlowOversold:   20,
		MoneyFlowOverbought: 80,
		BandBonus:           5,
		BandLow:             0.2,
		BandHigh:            0.8,
		MomentumBase:        3,
		MomentumExtra:       2,
		MomentumSpan:        20,
	}
}

// AggregationParams controls how per-timeframe signals are combined.
type AggregationParams struct {
	Weights map[model.Timeframe]float64 `yaml:"weights" validate:"required,min=1,dive,gt=0"`

	MinAligned      int     `yaml:"min_aligned" validate:"min=1"`
	AlignBonusBase  float64 `yaml:"align_bonus_base" validate:"gte=0"`
	AlignBonusStep  float64 `yaml:"align_bonus_step" validate:"gte=0"`
	AlignBonusCap   float64 `yaml:"align_bonus_cap" validate:"gte=0"`
	ContributionCap float64 `yaml:"contribution_cap" validate:"gte=0"`

	StrongConfidence   float64 `yaml:"strong_confidence" validate:"gte=0,lte=100"`
	StrongFactor       float64 `yaml:"strong_factor" validate:"gte=0"`
	ModerateConfidence float64 `yaml:"moderate_confidence" validate:"gte=0,lte=100"`
	ModerateFactor     float64 `yaml:"moderate_factor" validate:"gte=0"`
	WeakFactor         float64 `yaml:"weak_factor" validate:"gte=0"`
}

// DefaultAggregationParams weights the 5m timeframe highest.
func DefaultAggregationParams() AggregationParams {
	return AggregationParams{
		Weights: map[model.Timeframe]float64{
			model.TF1m:  3,
			model.TF3m:  5,
			model.TF5m:  8,
			model.TF10m: 6,
			model.TF15m: 4,
		},
		MinAligned:         3,
		AlignBonusBase:     10,
		AlignBonusStep:     3,
		AlignBonusCap:      25,
		ContributionCap:    25,
		StrongConfidence:   80,
		StrongFactor:       1.2,
		ModerateConfidence: 60,
		ModerateFactor:     1.0,
		WeakFactor:         0.7,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
