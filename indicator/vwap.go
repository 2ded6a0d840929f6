package indicator

import (
	"time"

	"github.com/dnldd/marketprofile/shared"
	"go.uber.org/atomic"
)

// VWAP represents a unit VWAP entry.
type VWAP struct {
	Value float64
	Date  time.Time
}

// VWAPGenerator represents the Volume Weighted Average Price indicator over ticks.
type VWAPGenerator struct {
	TypicalPriceVolume atomic.Float64
	Volume             atomic.Float64
	Current            atomic.Pointer[VWAP]
}

// NewVWAPGenerator initializes a VWAP indicator.
func NewVWAPGenerator() *VWAPGenerator {
	return &VWAPGenerator{}
}

// typicalPrice returns the typical price of the provided tick.
func typicalPrice(tick *shared.Tick) float64 {
	return (tick.High + tick.Low + tick.Last) / 3
}

// Update cumulatively updates the VWAP indicator with the provided tick. A nil entry is
// returned while no volume has traded.
func (v *VWAPGenerator) Update(tick *shared.Tick) *VWAP {
	v.TypicalPriceVolume.Add(typicalPrice(tick) * tick.Volume)
	v.Volume.Add(tick.Volume)

	volume := v.Volume.Load()
	if volume == 0 {
		return nil
	}

	vwap := &VWAP{
		Value: v.TypicalPriceVolume.Load() / volume,
		Date:  tick.Timestamp,
	}
	v.Current.Store(vwap)

	return vwap
}

// Value returns the current VWAP value. It reports false while no volume has traded.
func (v *VWAPGenerator) Value() (float64, bool) {
	current := v.Current.Load()
	if current == nil {
		return 0, false
	}

	return current.Value, true
}

// Reset resets the VWAP indicator after a trading session.
func (v *VWAPGenerator) Reset() {
	v.TypicalPriceVolume.Store(0)
	v.Volume.Store(0)
	v.Current.Store(nil)
}

// SessionVWAP returns the VWAP of the provided session ticks. It reports false when the
// session traded no volume.
func SessionVWAP(ticks []shared.Tick) (float64, bool) {
	gen := NewVWAPGenerator()
	for idx := range ticks {
		gen.Update(&ticks[idx])
	}

	return gen.Value()
}
