package indicator

import (
	"fmt"
	"math"

	"confluence-engine/internal/model"
)

// Trend is an ATR-banded trailing stop line (supertrend).
//
// ATR is Wilder-smoothed true range. Basic bands sit at hl2 ± Multiplier·ATR
// and ratchet toward price: the upper band only moves down and the lower
// band only moves up, unless the previous close broke through the band.
// Direction flips long when close crosses above the final upper band and
// short when it crosses below the final lower band.
type Trend struct {
	Period     int
	Multiplier float64
}

// NewTrend creates a Trend indicator.
func NewTrend(period int, multiplier float64) *Trend {
	return &Trend{Period: period, Multiplier: multiplier}
}

func (t *Trend) Name() string  { return fmt.Sprintf("trend(%d,%.1f)", t.Period, t.Multiplier) }
func (t *Trend) Lookback() int { return t.Period + 1 }

func (t *Trend) Compute(bars []model.Bar) (Values, error) {
	if err := requireBars(t.Name(), bars, t.Lookback()); err != nil {
		return nil, err
	}

	// tr[0] has no previous close and is never used.
	tr := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		b, prevClose := bars[i], bars[i-1].Close
		tr[i] = math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}
	atr := smma(tr[1:], t.Period)

	var upper, lower float64
	dir := 0
	for i := t.Period; i < len(bars); i++ {
		b := bars[i]
		a := atr[i-1]
		hl2 := (b.High + b.Low) / 2
		basicUpper := hl2 + t.Multiplier*a
		basicLower := hl2 - t.Multiplier*a

		if dir == 0 {
			upper, lower = basicUpper, basicLower
			if b.Close >= hl2 {
				dir = 1
			} else {
				dir = -1
			}
			continue
		}

		prevClose := bars[i-1].Close
		if basicUpper < upper || prevClose > upper {
			upper = basicUpper
		}
		if basicLower > lower || prevClose < lower {
			lower = basicLower
		}

		switch {
		case dir < 0 && b.Close > upper:
			dir = 1
		case dir > 0 && b.Close < lower:
			dir = -1
		}
	}

	line := upper
	if dir > 0 {
		line = lower
	}
	last := bars[len(bars)-1].Close
	strength := 0.0
	if last > 0 {
		strength = math.Abs(last-line) / last * 100
	}

	return Values{
		KeyTrendDirection: float64(dir),
		KeyTrendLine:      line,
		KeyTrendStrength:  strength,
	}, nil
}
