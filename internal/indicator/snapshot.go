package indicator

import (
	"time"

	"confluence-engine/internal/model"
)

// Snapshot is the full set of indicator readings for one closed bar.
// It is built once per bar and never mutated afterwards.
type Snapshot struct {
	Symbol    string          `json:"symbol"`
	Timeframe model.Timeframe `json:"timeframe"`
	TS        time.Time       `json:"ts"`
	Close     float64         `json:"close"`
	Values    Values          `json:"values"`
}

// Get returns a named reading, or 0 when the indicator is not registered.
func (s Snapshot) Get(name string) float64 { return s.Values[name] }

// Has reports whether a reading is present.
func (s Snapshot) Has(name string) bool {
	_, ok := s.Values[name]
	return ok
}

func (s Snapshot) TrendDirection() int       { return int(s.Values[KeyTrendDirection]) }
func (s Snapshot) TrendLine() float64        { return s.Values[KeyTrendLine] }
func (s Snapshot) TrendStrength() float64    { return s.Values[KeyTrendStrength] }
func (s Snapshot) MoneyFlow() float64        { return s.Values[KeyMoneyFlow] }
func (s Snapshot) MoneyFlowPrev() float64    { return s.Values[KeyMoneyFlowPrev] }
func (s Snapshot) BandPosition() float64     { return s.Values[KeyBandPosition] }
func (s Snapshot) BandPositionPrev() float64 { return s.Values[KeyBandPositionPrev] }
func (s Snapshot) VolumeRatio() float64      { return s.Values[KeyVolumeRatio] }
func (s Snapshot) Momentum() float64         { return s.Values[KeyMomentum] }
