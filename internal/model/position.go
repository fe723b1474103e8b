package model

// OpenPosition is a live position reported by the account/execution side.
// The engine never originates one; it only reads snapshots of them.
type OpenPosition struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Size       float64 `json:"size"`        // base-asset quantity
	EntryPrice float64 `json:"entry_price"` // quote per unit
	Leverage   float64 `json:"leverage"`    // 0 when the venue did not report it
}

// Notional returns size × entry price.
func (p *OpenPosition) Notional() float64 {
	return p.Size * p.EntryPrice
}

// AccountSnapshot is the account collaborator's view of balance and positions.
type AccountSnapshot struct {
	Balance   float64        `json:"balance"`
	Positions []OpenPosition `json:"positions"`
}
