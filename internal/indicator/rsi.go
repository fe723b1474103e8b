package indicator

import (
	"fmt"

	"confluence-engine/internal/model"
)

// RSI calculates the Relative Strength Index using Wilder's smoothing.
//
// The first average gain/loss is the simple mean of the first Period close
// deltas in the window; every later delta is folded in with Wilder's
// smoothing. Longer windows therefore converge toward the streaming value.
type RSI struct {
	Period int
}

func NewRSI(period int) *RSI { return &RSI{Period: period} }

func (r *RSI) Name() string  { return fmt.Sprintf("rsi(%d)", r.Period) }
func (r *RSI) Lookback() int { return r.Period + 1 }

func (r *RSI) Compute(bars []model.Bar) (Values, error) {
	if err := requireBars(r.Name(), bars, r.Lookback()); err != nil {
		return nil, err
	}

	var avgGain, avgLoss float64
	for i := 1; i < len(bars); i++ {
		delta := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		if i <= r.Period {
			// Seed phase: accumulate
			avgGain += gain
			avgLoss += loss
			if i == r.Period {
				avgGain /= float64(r.Period)
				avgLoss /= float64(r.Period)
			}
			continue
		}
		avgGain = wilder(avgGain, gain, r.Period)
		avgLoss = wilder(avgLoss, loss, r.Period)
	}

	return Values{KeyMomentum: oscillator(avgGain, avgLoss)}, nil
}
