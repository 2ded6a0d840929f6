package shared

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestTicks(t *testing.T) {
	base := time.Date(2024, time.January, 2, 8, 0, 0, 0, time.UTC)
	ticks := []Tick{
		{Timestamp: base.Add(2 * time.Minute), Last: 3},
		{Timestamp: base, Last: 1},
		{Timestamp: base.Add(time.Minute), Last: 2, BidVolume: 4, AskVolume: 7},
		{Timestamp: base, Last: 1.5},
	}

	// Ensure ticks are sorted by timestamp, keeping input order on ties.
	SortTicks(ticks)
	assert.Equal(t, ticks[0].Last, 1.0)
	assert.Equal(t, ticks[1].Last, 1.5)
	assert.Equal(t, ticks[3].Last, 3.0)

	// Ensure delta is ask volume less bid volume.
	assert.Equal(t, ticks[2].Delta(), 3.0)

	// Ensure ticks can be sliced by a half-open window.
	window := SliceTicks(ticks, base, base.Add(2*time.Minute))
	assert.Equal(t, len(window), 3)

	window = SliceTicks(ticks, base.Add(time.Minute), base.Add(time.Hour))
	assert.Equal(t, len(window), 2)

	window = SliceTicks(ticks, base.Add(time.Hour), base.Add(2*time.Hour))
	assert.Equal(t, len(window), 0)

	// Ensure price points track last prices.
	points := PricePoints(ticks)
	assert.Equal(t, len(points), len(ticks))
	assert.Equal(t, points[3].Price, 3.0)
	assert.True(t, points[3].Time.Equal(base.Add(2*time.Minute)))
}
