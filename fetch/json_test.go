package fetch

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func TestParseJSON(t *testing.T) {
	cfg := &ParseConfig{Location: time.UTC, Logger: &log.Logger}

	data := []byte(`[
		{"timestamp": "2024-01-02 08:00:02", "open": 100.5, "high": 100.5, "low": 100.5, "last": 100.5, "volume": 3, "trade_count": 2, "bid_volume": 1, "ask_volume": 2},
		{"timestamp": 1704182401, "open": "100.25", "high": 100.25, "low": 100.25, "last": 100.25, "volume": 2},
		{"timestamp": "2024-01-02 08:00:03", "open": 100, "high": 100, "low": 100, "volume": 1},
		{"timestamp": "2024-01-02 08:00:04", "open": 100, "high": 99, "low": 100, "last": 100, "volume": 1},
		{"timestamp": "2024-01-02 08:00:05", "open": 100, "high": 100, "low": 100, "last": 100, "volume": 1, "trade_count": 1.5},
		[1, 2, 3]
	]`)

	// Ensure malformed records are dropped and valid ticks are sorted.
	ticks, stats, err := ParseJSON(data, cfg)
	assert.NoError(t, err)
	assert.Equal(t, stats.Records, 6)
	assert.Equal(t, stats.Dropped, 4)
	assert.Equal(t, len(ticks), 2)

	assert.True(t, ticks[0].Timestamp.Equal(time.Date(2024, time.January, 2, 8, 0, 1, 0, time.UTC)))
	assert.Equal(t, ticks[0].Open, 100.25)
	assert.Equal(t, ticks[1].TradeCount, int64(2))
	assert.Equal(t, ticks[1].Delta(), 1.0)

	// Ensure invalid documents are rejected.
	_, _, err = ParseJSON([]byte(`{"timestamp": `), cfg)
	assert.Error(t, err)

	_, _, err = ParseJSON([]byte(`{"timestamp": "2024-01-02 08:00:00"}`), cfg)
	assert.Error(t, err)
}
