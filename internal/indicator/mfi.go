package indicator

import (
	"fmt"

	"confluence-engine/internal/model"
)

// MFI is the Money Flow Index: a volume-weighted RSI over typical price.
// It reports both the newest bar and the bar before it so callers can tell
// whether money flow is rising.
type MFI struct {
	Period int
}

func NewMFI(period int) *MFI { return &MFI{Period: period} }

func (m *MFI) Name() string { return fmt.Sprintf("mfi(%d)", m.Period) }

// Lookback covers Period flows for the previous bar plus one more bar of
// typical price to compare against.
func (m *MFI) Lookback() int { return m.Period + 2 }

func (m *MFI) Compute(bars []model.Bar) (Values, error) {
	if err := requireBars(m.Name(), bars, m.Lookback()); err != nil {
		return nil, err
	}
	n := len(bars)
	return Values{
		KeyMoneyFlow:     m.at(bars, n-1),
		KeyMoneyFlowPrev: m.at(bars, n-2),
	}, nil
}

// at computes MFI ending at bars[end] using the Period flows before it.
// An unchanged typical price contributes to neither side.
func (m *MFI) at(bars []model.Bar, end int) float64 {
	var pos, neg float64
	for i := end - m.Period + 1; i <= end; i++ {
		tp, prev := bars[i].TypicalPrice(), bars[i-1].TypicalPrice()
		flow := tp * bars[i].Volume
		switch {
		case tp > prev:
			pos += flow
		case tp < prev:
			neg += flow
		}
	}
	return oscillator(pos, neg)
}
