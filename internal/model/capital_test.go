package model

import (
	"errors"
	"testing"
)

func TestSizingResultErr(t *testing.T) {
	if err := (SizingResult{Accepted: true}).Err(); err != nil {
		t.Fatalf("accepted result: got %v", err)
	}

	err := Reject(RejectGuardBlocked, StateEmergencyShutdown).Err()
	if !errors.Is(err, ErrCapitalGuardBlocked) || errors.Is(err, ErrSizingRejected) {
		t.Errorf("guard rejection: got %v", err)
	}

	for _, reason := range []RejectReason{RejectInsufficientCapital, RejectBelowMinimum, RejectBelowThreshold, RejectPositionOpen} {
		err := Reject(reason, StateNormal).Err()
		if !errors.Is(err, ErrSizingRejected) {
			t.Errorf("%s: got %v", reason, err)
		}
	}
}

func TestCapitalStateOrdering(t *testing.T) {
	states := []CapitalState{StateNormal, StateSizeReduced, StateWarning, StateBlocked, StateEmergencyShutdown}
	for i := 1; i < len(states); i++ {
		if states[i].Level() <= states[i-1].Level() {
			t.Errorf("%s should rank above %s", states[i], states[i-1])
		}
	}
	if StateBlocked.AllowsTrading() || StateEmergencyShutdown.AllowsTrading() || !StateWarning.AllowsTrading() {
		t.Error("only blocked and emergency stop trading")
	}
}
