package portfolio

import (
	"fmt"
	"time"

	"confluence-engine/internal/model"
)

// Limits defines the capital-in-play thresholds and position defaults.
// Thresholds are percentages of balance and must satisfy
// ReducePct < WarnPct < MaxPct < EmergencyPct <= 100.
type Limits struct {
	ReducePct    float64 `yaml:"reduce_pct" json:"reduce_pct" validate:"gt=0"`
	WarnPct      float64 `yaml:"warn_pct" json:"warn_pct" validate:"gt=0"`
	MaxPct       float64 `yaml:"max_pct" json:"max_pct" validate:"gt=0"`
	EmergencyPct float64 `yaml:"emergency_pct" json:"emergency_pct" validate:"gt=0,lte=100"`

	// FallbackLeverage applies to positions reported without leverage.
	FallbackLeverage float64 `yaml:"fallback_leverage" json:"fallback_leverage" validate:"gte=1"`

	// ReservationTTL bounds how long an unconfirmed reservation holds headroom.
	ReservationTTL time.Duration `yaml:"reservation_ttl" json:"reservation_ttl" validate:"gt=0"`
}

// DefaultLimits returns the documented default threshold set.
func DefaultLimits() Limits {
	return Limits{
		ReducePct:        70,
		WarnPct:          75,
		MaxPct:           80,
		EmergencyPct:     85,
		FallbackLeverage: 25,
		ReservationTTL:   30 * time.Second,
	}
}

// Validate checks threshold ordering.
func (l Limits) Validate() error {
	if !(l.ReducePct < l.WarnPct && l.WarnPct < l.MaxPct && l.MaxPct < l.EmergencyPct) {
		return fmt.Errorf("guard thresholds must be ordered reduce < warn < max < emergency, got %.1f/%.1f/%.1f/%.1f: %w",
			l.ReducePct, l.WarnPct, l.MaxPct, l.EmergencyPct, model.ErrConfigurationInvalid)
	}
	if l.EmergencyPct > 100 {
		return fmt.Errorf("emergency threshold %.1f above 100: %w", l.EmergencyPct, model.ErrConfigurationInvalid)
	}
	if l.FallbackLeverage < 1 {
		return fmt.Errorf("fallback leverage %.1f below 1: %w", l.FallbackLeverage, model.ErrConfigurationInvalid)
	}
	return nil
}

// Classify maps a capital-in-play percentage onto a state. No hysteresis:
// the same percentage always yields the same state.
func (l Limits) Classify(pct float64) model.CapitalState {
	switch {
	case pct >= l.EmergencyPct:
		return model.StateEmergencyShutdown
	case pct >= l.MaxPct:
		return model.StateBlocked
	case pct >= l.WarnPct:
		return model.StateWarning
	case pct >= l.ReducePct:
		return model.StateSizeReduced
	default:
		return model.StateNormal
	}
}

// leverage returns lev, or the fallback when the venue did not report one.
func (l Limits) leverage(lev float64) float64 {
	if lev <= 0 {
		return l.FallbackLeverage
	}
	return lev
}
