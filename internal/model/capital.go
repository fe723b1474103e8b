package model

import (
	"fmt"
	"time"
)

// CapitalState classifies how much leverage-adjusted capital is in play.
type CapitalState string

const (
	StateNormal            CapitalState = "normal"
	StateSizeReduced       CapitalState = "size_reduced"
	StateWarning           CapitalState = "warning"
	StateBlocked           CapitalState = "blocked"
	StateEmergencyShutdown CapitalState = "emergency_shutdown"
)

// AllowsTrading reports whether new trades may be sized in this state.
func (s CapitalState) AllowsTrading() bool {
	return s != StateBlocked && s != StateEmergencyShutdown
}

// Reduced reports whether sizing must be halved in this state.
func (s CapitalState) Reduced() bool {
	return s == StateSizeReduced || s == StateWarning
}

// Level returns a numeric severity for gauges (0=normal … 4=emergency).
func (s CapitalState) Level() int {
	switch s {
	case StateSizeReduced:
		return 1
	case StateWarning:
		return 2
	case StateBlocked:
		return 3
	case StateEmergencyShutdown:
		return 4
	default:
		return 0
	}
}

// PositionCapital is the leverage-adjusted capital held by one position
// or pending reservation.
type PositionCapital struct {
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side,omitempty"`
	Notional float64 `json:"notional"`
	Leverage float64 `json:"leverage"`
	Capital  float64 `json:"capital"`
	Pending  bool    `json:"pending,omitempty"`
}

// CapitalStatus is the Capital Guard's derived view of the account.
type CapitalStatus struct {
	Balance    float64           `json:"balance"`
	Committed  float64           `json:"committed"` // includes Reserved
	Reserved   float64           `json:"reserved"`
	FreeMargin float64           `json:"free_margin"`
	InPlayPct  float64           `json:"capital_in_play_pct"`
	State      CapitalState      `json:"state"`
	Positions  []PositionCapital `json:"positions"`
	TS         time.Time         `json:"ts"`
}

// RejectReason is the machine-readable cause of a sizing rejection.
type RejectReason string

const (
	RejectInsufficientCapital RejectReason = "insufficient-capital"
	RejectBelowMinimum        RejectReason = "below-minimum"
	RejectGuardBlocked        RejectReason = "capital-guard-blocked"
	RejectBelowThreshold      RejectReason = "signal-below-threshold"
	RejectPositionOpen        RejectReason = "position-open"
)

// SizingResult is the Position Sizer's output for one signal.
type SizingResult struct {
	Accepted        bool         `json:"accepted"`
	Notional        float64      `json:"notional_size"`
	RequiredCapital float64      `json:"required_capital"`
	Leverage        float64      `json:"leverage_used"`
	RejectReason    RejectReason `json:"reject_reason,omitempty"`
	GuardState      CapitalState `json:"guard_state"`
}

// Reject builds a rejected result carrying reason and the observed guard state.
func Reject(reason RejectReason, state CapitalState) SizingResult {
	return SizingResult{RejectReason: reason, GuardState: state}
}

// Err returns nil for an accepted result. A guard refusal wraps
// ErrCapitalGuardBlocked; every other rejection wraps ErrSizingRejected.
func (r SizingResult) Err() error {
	switch {
	case r.Accepted:
		return nil
	case r.RejectReason == RejectGuardBlocked:
		return fmt.Errorf("%w (state %s)", ErrCapitalGuardBlocked, r.GuardState)
	default:
		return fmt.Errorf("%w: %s", ErrSizingRejected, r.RejectReason)
	}
}
