package model

import "time"

// Side is the direction of a trade proposal.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Sign returns +1 for long and -1 for short.
func (s Side) Sign() int {
	if s == SideShort {
		return -1
	}
	return 1
}

// Signal is a directional proposal with a 0-95 confidence score.
// Per-timeframe signals carry their timeframe label; multi-timeframe
// signals carry AggregateLabel and the per-timeframe Components.
type Signal struct {
	Symbol        string    `json:"symbol"`
	Timeframe     string    `json:"timeframe"`
	Side          Side      `json:"side"`
	Confidence    float64   `json:"confidence"`
	Factors       []string  `json:"factors"`
	Price         float64   `json:"price"` // close of the bar that produced the signal
	TS            time.Time `json:"ts"`
	TradeEligible bool      `json:"trade_eligible"`
	Confluence    bool      `json:"confluence"`
	AlignedCount  int       `json:"aligned_count,omitempty"`
	Components    []Signal  `json:"components,omitempty"`
}
