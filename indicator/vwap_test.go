package indicator

import (
	"testing"
	"time"

	"github.com/dnldd/marketprofile/shared"
	"github.com/peterldowns/testy/assert"
)

func TestVWAPGenerator(t *testing.T) {
	// Ensure vwap can be created.
	vwap := NewVWAPGenerator()
	_, ok := vwap.Value()
	assert.False(t, ok)

	now := time.Date(2024, time.January, 2, 8, 0, 0, 0, time.UTC)

	// Ensure vwap is unavailable without volume.
	tick := &shared.Tick{Timestamp: now, High: 9, Low: 3, Last: 6, Volume: 0}
	vwp := vwap.Update(tick)
	assert.Nil(t, vwp)

	// Ensure vwap can be updated.
	tick = &shared.Tick{Timestamp: now.Add(time.Minute), High: 9, Low: 3, Last: 6, Volume: 2}
	vwp = vwap.Update(tick)
	assert.NotNil(t, vwp)
	assert.Equal(t, vwp.Value, 6.0)
	assert.True(t, vwp.Date.Equal(tick.Timestamp))

	tick = &shared.Tick{Timestamp: now.Add(2 * time.Minute), High: 12, Low: 12, Last: 12, Volume: 1}
	vwp = vwap.Update(tick)
	assert.Equal(t, vwp.Value, 8.0)
	assert.Equal(t, vwap.Volume.Load(), 3.0)

	value, ok := vwap.Value()
	assert.True(t, ok)
	assert.Equal(t, value, 8.0)

	// Ensure vwap indicator can be reset.
	vwap.Reset()
	assert.Equal(t, vwap.Volume.Load(), 0.0)
	assert.Equal(t, vwap.TypicalPriceVolume.Load(), 0.0)
	_, ok = vwap.Value()
	assert.False(t, ok)
}

func TestSessionVWAP(t *testing.T) {
	// Ensure an empty session has no vwap.
	_, ok := SessionVWAP(nil)
	assert.False(t, ok)

	// Ensure session vwap weighs prices by volume.
	ticks := []shared.Tick{
		{High: 100, Low: 100, Last: 100, Volume: 1},
		{High: 103, Low: 103, Last: 103, Volume: 2},
	}
	value, ok := SessionVWAP(ticks)
	assert.True(t, ok)
	assert.Equal(t, value, 102.0)
}
