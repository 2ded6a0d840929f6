package indicator

import (
	"math"
	"testing"

	"github.com/dnldd/marketprofile/shared"
	"github.com/peterldowns/testy/assert"
)

func TestTrueRange(t *testing.T) {
	tests := []struct {
		name      string
		high      float64
		low       float64
		prevClose *float64
		want      float64
	}{
		{name: "first bar", high: 10, low: 8, prevClose: nil, want: 2},
		{name: "inside previous close", high: 10, low: 8, prevClose: shared.Float(9), want: 2},
		{name: "gap up", high: 14, low: 13, prevClose: shared.Float(10), want: 4},
		{name: "gap down", high: 8, low: 7, prevClose: shared.Float(10.75), want: 3.75},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, TrueRange(test.high, test.low, test.prevClose), test.want)
		})
	}
}

func TestATR(t *testing.T) {
	// Ensure the period must be positive.
	_, err := NewATR(0)
	assert.Error(t, err)

	_, err = NewATR(-3)
	assert.Error(t, err)

	atr, err := NewATR(2)
	assert.NoError(t, err)
	assert.Equal(t, atr.Period(), int32(2))

	// Ensure the average is unavailable until the period is seen.
	tr, _, ok := atr.Update(10, 8, 9)
	assert.False(t, ok)
	assert.Equal(t, tr, 2.0)

	// Ensure the first true range seeds the wilder average.
	tr, avg, ok := atr.Update(12, 10, 11)
	assert.True(t, ok)
	assert.Equal(t, tr, 3.0)
	assert.Equal(t, avg, 2.5)

	tr, avg, ok = atr.Update(11, 10.5, 10.75)
	assert.True(t, ok)
	assert.Equal(t, tr, 0.5)
	assert.Equal(t, avg, 1.5)

	// Ensure gaps through the previous close widen the true range.
	tr, avg, ok = atr.Update(8, 7, 7.5)
	assert.True(t, ok)
	assert.Equal(t, tr, 3.75)
	assert.Equal(t, avg, 2.625)

	// Ensure the default period is the fourteen day average.
	atr, err = NewATR(DefaultATRPeriod)
	assert.NoError(t, err)
	for range 13 {
		_, _, ok = atr.Update(101, 99, 100)
		assert.False(t, ok)
	}
	_, avg, ok = atr.Update(101, 99, 100)
	assert.True(t, ok)
	assert.True(t, math.Abs(avg-2) < 1e-9)
}
