package model

import (
	"encoding/json"
	"time"
)

// Decision records the outcome of one Evaluate call for audit and observers.
type Decision struct {
	ID      string            `json:"id"`
	CycleID string            `json:"cycle_id,omitempty"`
	Symbol  string            `json:"symbol"`
	TS      time.Time         `json:"ts"`
	Signal  *Signal           `json:"signal,omitempty"`
	Result  *SizingResult     `json:"result,omitempty"`
	Capital CapitalStatus     `json:"capital"`
	Skipped map[string]string `json:"skipped,omitempty"` // timeframe -> reason
}

// Accepted reports whether the decision carries an accepted sizing result.
func (d *Decision) Accepted() bool {
	return d.Result != nil && d.Result.Accepted
}

// JSON returns the JSON-encoded decision.
func (d *Decision) JSON() []byte {
	b, _ := json.Marshal(d)
	return b
}
