package indicator

import (
	"fmt"
	"math"

	"confluence-engine/internal/model"
)

// degenerateWidth is the relative band width below which the bands are
// treated as collapsed.
const degenerateWidth = 1e-12

// Bands are Bollinger-style volatility bands: SMA(Period) ± Width·σ using the
// population standard deviation of closes. Position is where the close sits
// between the bands, 0 at the lower band and 1 at the upper band.
type Bands struct {
	Period int
	Width  float64
}

func NewBands(period int, width float64) *Bands { return &Bands{Period: period, Width: width} }

func (b *Bands) Name() string  { return fmt.Sprintf("bands(%d,%.1f)", b.Period, b.Width) }
func (b *Bands) Lookback() int { return b.Period + 1 }

func (b *Bands) Compute(bars []model.Bar) (Values, error) {
	if err := requireBars(b.Name(), bars, b.Lookback()); err != nil {
		return nil, err
	}
	n := len(bars)
	pos, ok := b.at(bars, n-1)
	if !ok {
		return nil, fmt.Errorf("%s: upper band equals lower band: %w", b.Name(), model.ErrDegenerateIndicator)
	}
	// A collapsed previous band carries no turn information.
	prev, ok := b.at(bars, n-2)
	if !ok {
		prev = pos
	}
	return Values{
		KeyBandPosition:     pos,
		KeyBandPositionPrev: prev,
	}, nil
}

func (b *Bands) at(bars []model.Bar, end int) (float64, bool) {
	closes := make([]float64, 0, b.Period)
	for _, bar := range bars[end-b.Period+1 : end+1] {
		closes = append(closes, bar.Close)
	}
	mid := mean(closes)
	sd := stddev(closes, mid)
	upper, lower := mid+b.Width*sd, mid-b.Width*sd
	if upper-lower <= degenerateWidth*math.Max(1, math.Abs(mid)) {
		return 0, false
	}
	return clamp((bars[end].Close-lower)/(upper-lower), 0, 1), true
}
