package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-engine/internal/model"
)

func sig(tf model.Timeframe, side model.Side, conf float64) model.Signal {
	return model.Signal{
		Symbol:        "ETHUSDT",
		Timeframe:     tf.String(),
		Side:          side,
		Confidence:    conf,
		Price:         float64(tf), // distinct per timeframe so the base is identifiable
		TS:            time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC),
		TradeEligible: conf >= 65,
	}
}

func newAggregator() *Aggregator {
	return NewAggregator(DefaultAggregationParams(), 95, 65)
}

func TestAlignmentBonus(t *testing.T) {
	a := newAggregator()
	cases := map[int]float64{0: 0, 2: 0, 3: 10, 4: 13, 5: 16, 10: 25}
	for aligned, want := range cases {
		assert.Equal(t, want, a.AlignmentBonus(aligned), "aligned=%d", aligned)
	}
}

func TestAggregate_FourAligned(t *testing.T) {
	// 3m dissents; aligned weights are 3, 8, 6, 4.
	// Contributions: 3·1.0 + 8·1.2 + 6·1.2 + 4·1.0 = 23.8, bonus 13, base 5m = 82.
	// 82 + 23.8 + 13 = 118.8 → clamped to 95.
	a := newAggregator()
	signals := []model.Signal{
		sig(model.TF1m, model.SideLong, 70),
		sig(model.TF3m, model.SideShort, 75),
		sig(model.TF5m, model.SideLong, 82),
		sig(model.TF10m, model.SideLong, 91),
		sig(model.TF15m, model.SideLong, 77),
	}

	got := a.Aggregate("ETHUSDT", signals)
	require.NotNil(t, got)
	assert.Equal(t, model.SideLong, got.Side)
	assert.Equal(t, 95.0, got.Confidence)
	assert.True(t, got.Confluence)
	assert.True(t, got.TradeEligible)
	assert.Equal(t, 4, got.AlignedCount)
	assert.Equal(t, model.AggregateLabel, got.Timeframe)
	assert.Equal(t, float64(model.TF5m), got.Price)
	require.Len(t, got.Components, 4)
	assert.Equal(t, "5m", got.Components[0].Timeframe)
}

func TestAggregate_ContributionTiers(t *testing.T) {
	// Weak tier only: 0.7·(3+8+4) = 10.5, bonus 10, base 5m = 55 → 75.5
	a := newAggregator()
	got := a.Aggregate("ETHUSDT", []model.Signal{
		sig(model.TF1m, model.SideShort, 50),
		sig(model.TF5m, model.SideShort, 55),
		sig(model.TF15m, model.SideShort, 45),
	})
	require.NotNil(t, got)
	assert.Equal(t, model.SideShort, got.Side)
	assert.InDelta(t, 75.5, got.Confidence, 1e-9)
}

func TestAggregate_ContributionCap(t *testing.T) {
	// 1.2·(3+5+8+6+4) = 31.2 → capped at 25; bonus 16; base 5m = 80 → 121.
	a := NewAggregator(DefaultAggregationParams(), 200, 65)
	var signals []model.Signal
	for _, tf := range model.AllTimeframes {
		signals = append(signals, sig(tf, model.SideLong, 80))
	}
	got := a.Aggregate("ETHUSDT", signals)
	require.NotNil(t, got)
	assert.InDelta(t, 121, got.Confidence, 1e-9)
}

func TestAggregate_ExactSplit(t *testing.T) {
	a := newAggregator()
	assert.Nil(t, a.Aggregate("ETHUSDT", nil))
	assert.Nil(t, a.Aggregate("ETHUSDT", []model.Signal{
		sig(model.TF1m, model.SideLong, 90),
		sig(model.TF3m, model.SideLong, 90),
		sig(model.TF5m, model.SideShort, 90),
		sig(model.TF10m, model.SideShort, 90),
	}))
}

func TestAggregate_StandaloneBelowMinAligned(t *testing.T) {
	a := newAggregator()
	got := a.Aggregate("ETHUSDT", []model.Signal{
		sig(model.TF1m, model.SideLong, 72),
		sig(model.TF5m, model.SideLong, 70),
		sig(model.TF10m, model.SideShort, 68),
	})
	require.NotNil(t, got)
	assert.False(t, got.Confluence)
	assert.Equal(t, "1m", got.Timeframe)
	assert.Equal(t, 72.0, got.Confidence)
	assert.Equal(t, 2, got.AlignedCount)
}

func TestAggregate_StandaloneTieGoesToWeight(t *testing.T) {
	a := newAggregator()
	got := a.Aggregate("ETHUSDT", []model.Signal{
		sig(model.TF1m, model.SideLong, 70),
		sig(model.TF5m, model.SideLong, 70),
	})
	require.NotNil(t, got)
	assert.Equal(t, "5m", got.Timeframe)
}

func TestAggregate_StandaloneRequiresEligibility(t *testing.T) {
	a := newAggregator()
	assert.Nil(t, a.Aggregate("ETHUSDT", []model.Signal{
		sig(model.TF1m, model.SideLong, 62),
		sig(model.TF5m, model.SideLong, 61),
	}))
}

func TestAggregate_NeverExceedsCeiling(t *testing.T) {
	a := newAggregator()
	for _, conf := range []float64{0, 45, 60, 79, 80, 95} {
		var signals []model.Signal
		for _, tf := range model.AllTimeframes {
			signals = append(signals, sig(tf, model.SideShort, conf))
		}
		got := a.Aggregate("ETHUSDT", signals)
		require.NotNil(t, got)
		assert.LessOrEqual(t, got.Confidence, 95.0)
		assert.GreaterOrEqual(t, got.Confidence, 0.0)
	}
}
