package indicator

import (
	"errors"
	"testing"

	"confluence-engine/internal/model"
)

func TestCalculator_DefaultLookback(t *testing.T) {
	c := NewDefaultCalculator(DefaultParams())
	if got := c.Lookback(); got != 21 {
		t.Errorf("Lookback() = %d, want 21", got)
	}
	if got := len(c.Indicators()); got != 5 {
		t.Errorf("len(Indicators()) = %d, want 5", got)
	}
}

func TestCalculator_SnapshotHasAllReadings(t *testing.T) {
	c := NewDefaultCalculator(DefaultParams())
	bars := ramp(40, 100, 0.5)

	snap, err := c.Snapshot("BTCUSDT", model.TF5m, bars)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	for _, key := range []string{
		KeyTrendDirection, KeyTrendLine, KeyTrendStrength,
		KeyMoneyFlow, KeyMoneyFlowPrev,
		KeyBandPosition, KeyBandPositionPrev,
		KeyVolumeRatio, KeyMomentum,
	} {
		if !snap.Has(key) {
			t.Errorf("snapshot missing %q", key)
		}
	}

	last := bars[len(bars)-1]
	if !snap.TS.Equal(last.TS) || snap.Close != last.Close {
		t.Errorf("snapshot bar = (%v, %v), want (%v, %v)", snap.TS, snap.Close, last.TS, last.Close)
	}
	if snap.Symbol != "BTCUSDT" || snap.Timeframe != model.TF5m {
		t.Errorf("snapshot key = %s %s", snap.Symbol, snap.Timeframe)
	}
	if snap.TrendDirection() != 1 {
		t.Errorf("TrendDirection() = %d, want 1 on a rising ramp", snap.TrendDirection())
	}
	if m := snap.Momentum(); m != 100 {
		t.Errorf("Momentum() = %v, want 100 on a rising ramp", m)
	}
}

func TestCalculator_ShortWindow(t *testing.T) {
	c := NewDefaultCalculator(DefaultParams())
	_, err := c.Snapshot("BTCUSDT", model.TF1m, ramp(c.Lookback()-1, 100, 1))
	if !errors.Is(err, model.ErrDataInsufficient) {
		t.Fatalf("err = %v, want ErrDataInsufficient", err)
	}

	_, err = c.Snapshot("BTCUSDT", model.TF1m, nil)
	if !errors.Is(err, model.ErrDataInsufficient) {
		t.Fatalf("empty window: err = %v, want ErrDataInsufficient", err)
	}
}

func TestCalculator_DegenerateAborts(t *testing.T) {
	c := NewDefaultCalculator(DefaultParams())
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 42
	}
	_, err := c.Snapshot("BTCUSDT", model.TF1m, closes(flat...))
	if !errors.Is(err, model.ErrDegenerateIndicator) {
		t.Fatalf("err = %v, want ErrDegenerateIndicator", err)
	}
}

type fixed struct{ v float64 }

func (f fixed) Name() string  { return "fixed" }
func (f fixed) Lookback() int { return 1 }
func (f fixed) Compute([]model.Bar) (Values, error) {
	return Values{"custom": f.v}, nil
}

func TestCalculator_CustomIndicator(t *testing.T) {
	c := NewCalculator(fixed{v: 7})
	snap, err := c.Snapshot("ETHUSDT", model.TF15m, closes(1))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	assertClose(t, "custom", snap.Get("custom"), 7, 0)
}
