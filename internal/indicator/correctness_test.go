package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"confluence-engine/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

var t0 = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func closes(prices ...float64) []model.Bar {
	bars := make([]model.Bar, len(prices))
	for i, p := range prices {
		bars[i] = model.Bar{
			Symbol: "TEST", TS: t0.Add(time.Duration(i) * time.Minute),
			Open: p, High: p + 0.5, Low: p - 0.5, Close: p, Volume: 100,
		}
	}
	return bars
}

// ramp builds n bars whose close moves by step each bar with a fixed 2-point range.
func ramp(n int, start, step float64) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = model.Bar{
			Symbol: "TEST", TS: t0.Add(time.Duration(i) * time.Minute),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100 + float64(i%3)*50,
		}
	}
	return bars
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness (Wilder's Method)
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period5(t *testing.T) {
	// Deltas: +0.34, -0.25, -0.48, +0.72, +0.50
	//   avgGain = 1.56/5 = 0.312, avgLoss = 0.73/5 = 0.146
	//   RSI = 100 - 100/(1+2.13699) = 68.1223
	// Next close 45.10 (+0.27):
	//   avgGain = (0.312*4+0.27)/5 = 0.3036, avgLoss = 0.146*4/5 = 0.1168
	//   RSI = 100 - 100/(1+2.59932) = 72.2169
	prices := []float64{44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10}
	rsi := NewRSI(5)

	v, err := rsi.Compute(closes(prices[:6]...))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	assertClose(t, "RSI(5) seed", v[KeyMomentum], 68.1223, 0.001)

	v, err = rsi.Compute(closes(prices...))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	assertClose(t, "RSI(5) smoothed", v[KeyMomentum], 72.2169, 0.001)
}

func TestRSI_Extremes(t *testing.T) {
	rsi := NewRSI(3)

	v, _ := rsi.Compute(closes(100, 101, 102, 103))
	assertClose(t, "all gains", v[KeyMomentum], 100, 0)

	v, _ = rsi.Compute(closes(100, 99, 98, 97))
	assertClose(t, "all losses", v[KeyMomentum], 0, 0.0001)

	v, _ = rsi.Compute(closes(100, 100, 100, 100))
	assertClose(t, "flat", v[KeyMomentum], 50, 0)
}

// ────────────────────────────────────────────────────────────
// Volume ratio
// ────────────────────────────────────────────────────────────

func TestVolumeRatio_ExcludesCurrentBar(t *testing.T) {
	bars := closes(10, 10, 10, 10)
	bars[0].Volume, bars[1].Volume, bars[2].Volume, bars[3].Volume = 100, 200, 300, 400

	v, err := NewVolumeRatio(3).Compute(bars)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// (100+200+300)/3 = 200 → 400/200
	assertClose(t, "ratio", v[KeyVolumeRatio], 2.0, 0.0001)
}

func TestVolumeRatio_ZeroAverage(t *testing.T) {
	bars := closes(10, 10, 10)
	bars[0].Volume, bars[1].Volume, bars[2].Volume = 0, 0, 500

	v, err := NewVolumeRatio(2).Compute(bars)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	assertClose(t, "ratio with zero MA", v[KeyVolumeRatio], 0, 0)
}

// ────────────────────────────────────────────────────────────
// MFI
// ────────────────────────────────────────────────────────────

func TestMFI_Correctness_Period3(t *testing.T) {
	// Typical prices: 10, 11, 10, 12, 13
	// Current (flows 2..4): neg 10*150, pos 12*300 + 13*100 → 4900/1500
	//   MFI = 100 - 100/(1+3.26667) = 76.5625
	// Previous (flows 1..3): pos 11*200 + 12*300, neg 10*150 → 5800/1500
	//   MFI = 79.4521
	hlcv := [][4]float64{{11, 9, 10, 100}, {12, 10, 11, 200}, {11, 9, 10, 150}, {13, 11, 12, 300}, {14, 12, 13, 100}}
	bars := make([]model.Bar, len(hlcv))
	for i, x := range hlcv {
		bars[i] = model.Bar{TS: t0.Add(time.Duration(i) * time.Minute), High: x[0], Low: x[1], Close: x[2], Volume: x[3]}
	}

	v, err := NewMFI(3).Compute(bars)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	assertClose(t, "MFI", v[KeyMoneyFlow], 76.5625, 0.0001)
	assertClose(t, "MFI prev", v[KeyMoneyFlowPrev], 79.4521, 0.0001)
}

// ────────────────────────────────────────────────────────────
// Bands
// ────────────────────────────────────────────────────────────

func TestBands_Position(t *testing.T) {
	// Current window 1,2,3: mid 2, σ 0.8165 → (3-0.367)/3.266 = 0.8062
	// Previous window 2,1,2: mid 1.667, σ 0.4714 → 0.6768
	v, err := NewBands(3, 2.0).Compute(closes(2, 1, 2, 3))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	assertClose(t, "position", v[KeyBandPosition], 0.8062, 0.0001)
	assertClose(t, "position prev", v[KeyBandPositionPrev], 0.6768, 0.0001)
}

func TestBands_Degenerate(t *testing.T) {
	_, err := NewBands(3, 2.0).Compute(closes(5, 5, 5, 5))
	if !errors.Is(err, model.ErrDegenerateIndicator) {
		t.Fatalf("err = %v, want ErrDegenerateIndicator", err)
	}
}

func TestBands_PositionClamped(t *testing.T) {
	v, err := NewBands(3, 0.1).Compute(closes(10, 10, 10.1, 20))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	assertClose(t, "clamped position", v[KeyBandPosition], 1, 0)
}

// ────────────────────────────────────────────────────────────
// Trend
// ────────────────────────────────────────────────────────────

func TestTrend_Uptrend(t *testing.T) {
	// TR is a constant 2 so ATR = 2 and the lower band trails at close - 5.
	bars := ramp(30, 100, 1)
	v, err := NewTrend(10, 2.5).Compute(bars)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if v[KeyTrendDirection] != 1 {
		t.Fatalf("direction = %v, want 1", v[KeyTrendDirection])
	}
	assertClose(t, "line", v[KeyTrendLine], 124, 0.0001)
	assertClose(t, "strength", v[KeyTrendStrength], 5.0/129*100, 0.0001)
}

func TestTrend_FlipsShort(t *testing.T) {
	// Starts long on the first evaluated bar, flips once close breaks the
	// frozen lower band, then the upper band trails at close + 5.
	bars := ramp(30, 200, -1)
	v, err := NewTrend(10, 2.5).Compute(bars)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if v[KeyTrendDirection] != -1 {
		t.Fatalf("direction = %v, want -1", v[KeyTrendDirection])
	}
	assertClose(t, "line", v[KeyTrendLine], 176, 0.0001)
	if bars[len(bars)-1].Close >= v[KeyTrendLine] {
		t.Error("short trend line should sit above close")
	}
}

// ────────────────────────────────────────────────────────────
// Lookback enforcement
// ────────────────────────────────────────────────────────────

func TestIndicators_ShortWindowIsInsufficient(t *testing.T) {
	inds := []Indicator{
		NewTrend(10, 2.5),
		NewVolumeRatio(20),
		NewRSI(14),
		NewMFI(14),
		NewBands(20, 2.0),
	}
	for _, ind := range inds {
		t.Run(ind.Name(), func(t *testing.T) {
			short := ramp(ind.Lookback()-1, 100, 1)
			if _, err := ind.Compute(short); !errors.Is(err, model.ErrDataInsufficient) {
				t.Errorf("len=%d: err = %v, want ErrDataInsufficient", len(short), err)
			}
			if _, err := ind.Compute(ramp(ind.Lookback(), 100, 1)); err != nil {
				t.Errorf("len=%d: unexpected err %v", ind.Lookback(), err)
			}
		})
	}
}

func TestLookbacks(t *testing.T) {
	cases := []struct {
		ind  Indicator
		want int
	}{
		{NewTrend(10, 2.5), 11},
		{NewVolumeRatio(20), 21},
		{NewRSI(14), 15},
		{NewMFI(14), 16},
		{NewBands(20, 2.0), 21},
	}
	for _, c := range cases {
		if got := c.ind.Lookback(); got != c.want {
			t.Errorf("%s: Lookback() = %d, want %d", c.ind.Name(), got, c.want)
		}
	}
}
