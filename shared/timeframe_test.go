package shared

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
)

func TestLoadLocation(t *testing.T) {
	// Ensure named locations can be loaded.
	loc, err := LoadLocation("America/New_York", 0)
	assert.NoError(t, err)
	assert.Equal(t, loc.String(), "America/New_York")

	// Ensure unknown locations error.
	_, err = LoadLocation("Nowhere/Special", 0)
	assert.Error(t, err)

	// Ensure an empty name without an offset resolves to utc.
	loc, err = LoadLocation("", 0)
	assert.NoError(t, err)
	assert.True(t, loc == time.UTC)

	// Ensure offsets resolve to fixed zones.
	loc, err = LoadLocation("", -5)
	assert.NoError(t, err)
	_, offset := time.Date(2024, time.January, 2, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, offset, -5*3600)

	// Ensure out of range offsets error.
	_, err = LoadLocation("", 15)
	assert.Error(t, err)
}

func TestDayStart(t *testing.T) {
	loc, err := LoadLocation("", -5)
	assert.NoError(t, err)

	// Ensure day starts are resolved in the provided location.
	at := time.Date(2024, time.January, 3, 2, 0, 0, 0, time.UTC)
	day := DayStart(at, loc)
	assert.Equal(t, day.Day(), 2)
	assert.Equal(t, day.Hour(), 0)
	assert.False(t, IsWeekend(day))
	assert.True(t, IsWeekend(time.Date(2024, time.January, 6, 0, 0, 0, 0, time.UTC)))
}
