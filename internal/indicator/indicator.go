// Package indicator provides technical indicator calculations over bar windows.
//
// Every indicator implements the Indicator interface: it receives the full
// window (oldest first) and returns a set of named readings for the newest
// bar. Indicators are stateless between calls, so the same instance can be
// shared by every symbol and timeframe.
package indicator

import (
	"fmt"

	"confluence-engine/internal/model"
)

// Reading names published by the built-in indicators.
const (
	KeyTrendDirection   = "trend_direction"
	KeyTrendLine        = "trend_line"
	KeyTrendStrength    = "trend_strength"
	KeyMoneyFlow        = "money_flow"
	KeyMoneyFlowPrev    = "money_flow_prev"
	KeyBandPosition     = "band_position"
	KeyBandPositionPrev = "band_position_prev"
	KeyVolumeRatio      = "volume_ratio"
	KeyMomentum         = "momentum"
)

// Values holds named readings for a single bar.
type Values map[string]float64

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "trend", "rsi").
	Name() string

	// Lookback is the minimum number of bars Compute needs.
	Lookback() int

	// Compute evaluates the indicator on the newest bar of the window.
	// Returns model.ErrDataInsufficient when len(bars) < Lookback() and
	// model.ErrDegenerateIndicator when the result is mathematically undefined.
	Compute(bars []model.Bar) (Values, error)
}

func requireBars(name string, bars []model.Bar, need int) error {
	if len(bars) < need {
		return fmt.Errorf("%s needs %d bars, have %d: %w", name, need, len(bars), model.ErrDataInsufficient)
	}
	return nil
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

// oscillator maps a gain/loss pair onto 0..100 the way RSI and MFI do.
// A flat window reads 50; a window with no losses reads 100.
func oscillator(up, down float64) float64 {
	if down == 0 {
		if up == 0 {
			return 50
		}
		return 100
	}
	return clamp(100-100/(1+up/down), 0, 100)
}
