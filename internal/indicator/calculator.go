package indicator

import (
	"fmt"

	"confluence-engine/internal/model"
)

// Params configures the built-in indicator set.
type Params struct {
	TrendPeriod     int     `yaml:"trend_period" validate:"min=2"`
	TrendMultiplier float64 `yaml:"trend_multiplier" validate:"gt=0"`
	VolumePeriod    int     `yaml:"volume_period" validate:"min=1"`
	MomentumPeriod  int     `yaml:"momentum_period" validate:"min=2"`
	MoneyFlowPeriod int     `yaml:"money_flow_period" validate:"min=2"`
	BandPeriod      int     `yaml:"band_period" validate:"min=2"`
	BandWidth       float64 `yaml:"band_width" validate:"gt=0"`
}

// DefaultParams returns the standard indicator periods.
func DefaultParams() Params {
	return Params{
		TrendPeriod:     10,
		TrendMultiplier: 2.5,
		VolumePeriod:    20,
		MomentumPeriod:  14,
		MoneyFlowPeriod: 14,
		BandPeriod:      20,
		BandWidth:       2.0,
	}
}

// Calculator runs a fixed set of indicators over a bar window.
type Calculator struct {
	indicators []Indicator
	lookback   int
}

// NewCalculator creates a Calculator over the given indicators.
func NewCalculator(indicators ...Indicator) *Calculator {
	c := &Calculator{}
	for _, ind := range indicators {
		c.Register(ind)
	}
	return c
}

// NewDefaultCalculator registers trend, volume ratio, RSI, MFI and bands.
func NewDefaultCalculator(p Params) *Calculator {
	return NewCalculator(
		NewTrend(p.TrendPeriod, p.TrendMultiplier),
		NewVolumeRatio(p.VolumePeriod),
		NewRSI(p.MomentumPeriod),
		NewMFI(p.MoneyFlowPeriod),
		NewBands(p.BandPeriod, p.BandWidth),
	)
}

// Register adds an indicator. Not safe to call concurrently with Snapshot.
func (c *Calculator) Register(ind Indicator) {
	c.indicators = append(c.indicators, ind)
	if lb := ind.Lookback(); lb > c.lookback {
		c.lookback = lb
	}
}

// Lookback is the largest lookback of any registered indicator.
func (c *Calculator) Lookback() int { return c.lookback }

// Indicators returns the registered indicators in registration order.
func (c *Calculator) Indicators() []Indicator {
	out := make([]Indicator, len(c.indicators))
	copy(out, c.indicators)
	return out
}

// Snapshot evaluates every indicator on the newest bar. The first failing
// indicator aborts the snapshot; no partial readings are returned.
func (c *Calculator) Snapshot(symbol string, tf model.Timeframe, bars []model.Bar) (Snapshot, error) {
	if len(bars) == 0 {
		return Snapshot{}, fmt.Errorf("%s %s: empty window: %w", symbol, tf, model.ErrDataInsufficient)
	}
	values := make(Values, len(c.indicators)*2)
	for _, ind := range c.indicators {
		v, err := ind.Compute(bars)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%s %s: %w", symbol, tf, err)
		}
		for k, x := range v {
			values[k] = x
		}
	}
	last := bars[len(bars)-1]
	return Snapshot{
		Symbol:    symbol,
		Timeframe: tf,
		TS:        last.TS,
		Close:     last.Close,
		Values:    values,
	}, nil
}
