package indicator

import (
	"fmt"

	"confluence-engine/internal/model"
)

// VolumeRatio compares the newest bar's volume with the simple average of
// the Period bars before it. The current bar is excluded from its own average.
type VolumeRatio struct {
	Period int
}

func NewVolumeRatio(period int) *VolumeRatio { return &VolumeRatio{Period: period} }

func (v *VolumeRatio) Name() string  { return fmt.Sprintf("volume_ratio(%d)", v.Period) }
func (v *VolumeRatio) Lookback() int { return v.Period + 1 }

func (v *VolumeRatio) Compute(bars []model.Bar) (Values, error) {
	if err := requireBars(v.Name(), bars, v.Lookback()); err != nil {
		return nil, err
	}
	n := len(bars)
	vols := make([]float64, 0, v.Period)
	for _, b := range bars[n-1-v.Period : n-1] {
		vols = append(vols, b.Volume)
	}
	ma := mean(vols)
	ratio := 0.0
	if ma > 0 {
		ratio = bars[n-1].Volume / ma
	}
	return Values{KeyVolumeRatio: ratio}, nil
}
