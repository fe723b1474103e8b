package model

import "errors"

// Error taxonomy shared by all engine components. Callers match with errors.Is.
var (
	// ErrDataInsufficient: fewer bars than an indicator's lookback. Skip, not a fault.
	ErrDataInsufficient = errors.New("insufficient data")

	// ErrDegenerateIndicator: an indicator is undefined for this window (e.g. zero-width bands).
	ErrDegenerateIndicator = errors.New("degenerate indicator")

	// ErrCapitalGuardBlocked: the guard refuses new trades. Expected control flow.
	ErrCapitalGuardBlocked = errors.New("capital guard blocked")

	// ErrSizingRejected: a business rejection; the SizingResult carries the reason.
	ErrSizingRejected = errors.New("sizing rejected")

	// ErrConfigurationInvalid: invalid thresholds or parameters. Fatal at startup.
	ErrConfigurationInvalid = errors.New("invalid configuration")

	// ErrEmergencyShutdown: capital in play reached the emergency cutoff; halt the loop.
	ErrEmergencyShutdown = errors.New("emergency shutdown")
)
