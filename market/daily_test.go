package market

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dnldd/marketprofile/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
)

func TestBuildDailySummaries(t *testing.T) {
	newYork := time.FixedZone("EST", -5*60*60)

	// Ensure a location and a positive period are required.
	_, err := BuildDailySummaries(londonTicks(), nil, 14)
	assert.Error(t, err)

	_, err = BuildDailySummaries(londonTicks(), newYork, 0)
	assert.Error(t, err)

	// Ensure no ticks yield no days.
	days, err := BuildDailySummaries(nil, newYork, 2)
	assert.NoError(t, err)
	assert.Equal(t, len(days), 0)

	ticks := []shared.Tick{
		sessionTick(-2*time.Hour, 100, 101, 99, 100, 10),
		sessionTick(3*time.Hour, 100, 102, 100, 101, 20),
		sessionTick(6*time.Hour, 101, 104, 101, 103, 4),
		sessionTick(30*time.Hour, 103, 103, 98, 100.5, 8),
	}

	// Ensure ticks group by exchange calendar day and the average true range starts once
	// the period is seen.
	days, err = BuildDailySummaries(ticks, newYork, 2)
	assert.NoError(t, err)

	want := []shared.DailySummary{
		{
			Date: time.Date(2024, time.January, 1, 0, 0, 0, 0, newYork),
			Open: 100, High: 102, Low: 99, Close: 101, Volume: 30, Delta: 15,
			TrueRange: 3, ATR: nil, Ticks: 2,
		},
		{
			Date: time.Date(2024, time.January, 2, 0, 0, 0, 0, newYork),
			Open: 101, High: 104, Low: 101, Close: 103, Volume: 4, Delta: 2,
			TrueRange: 3, ATR: shared.Float(3), Ticks: 1,
		},
		{
			Date: time.Date(2024, time.January, 3, 0, 0, 0, 0, newYork),
			Open: 103, High: 103, Low: 98, Close: 100.5, Volume: 8, Delta: 4,
			TrueRange: 5, ATR: shared.Float(4), Ticks: 1,
		},
	}
	if diff := cmp.Diff(want, days); diff != "" {
		t.Fatalf("unexpected daily summaries (-want +got):\n%s", diff)
	}
	assert.Equal(t, days[0].Day(), "2024-01-01")
}

func TestManagerBuildDaily(t *testing.T) {
	var persisted []shared.DailySummary
	mgr := setupManager(t, londonTicks(), nil)
	mgr.cfg.PersistDaily = func(_ context.Context, days []shared.DailySummary) error {
		persisted = days
		return nil
	}

	// Ensure the tick set rolls up into a single persisted day without an average yet.
	days, err := mgr.BuildDaily(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, len(days), 1)
	assert.Equal(t, len(persisted), 1)
	assert.True(t, days[0].Date.Equal(tradingDay))
	assert.Equal(t, days[0].Open, 100.0)
	assert.Equal(t, days[0].High, 102.0)
	assert.Equal(t, days[0].Low, 99.0)
	assert.Equal(t, days[0].Close, 99.0)
	assert.Equal(t, days[0].Volume, 80.0)
	assert.Equal(t, days[0].Delta, 40.0)
	assert.Equal(t, days[0].Ticks, 4)
	assert.Equal(t, days[0].TrueRange, 3.0)
	assert.Nil(t, days[0].ATR)

	// Ensure an empty tick set yields no days.
	empty := setupManager(t, nil, nil)
	days, err = empty.BuildDaily(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, len(days), 0)

	// Ensure persistence failures are surfaced.
	mgr.cfg.PersistDaily = func(_ context.Context, _ []shared.DailySummary) error {
		return errors.New("unavailable")
	}
	_, err = mgr.BuildDaily(context.Background())
	assert.Error(t, err)

	// Ensure a negative period is rejected.
	cfg := *mgr.cfg
	cfg.ATRPeriod = -1
	assert.Error(t, cfg.Validate())
}

func TestWriteDailyCSV(t *testing.T) {
	days := []shared.DailySummary{
		{Date: tradingDay, Open: 100, High: 102, Low: 99, Close: 99, Volume: 80, Delta: 40, TrueRange: 3, Ticks: 4},
		{Date: tradingDay.AddDate(0, 0, 1), Open: 99, High: 101.5, Low: 98, Close: 101, Volume: 10,
			Delta: -2, TrueRange: 3.5, ATR: shared.Float(3.25), Ticks: 2},
	}

	var buf bytes.Buffer
	err := WriteDailyCSV(&buf, days)
	assert.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	assert.NoError(t, err)
	assert.Equal(t, len(records), 3)

	// Ensure the header carries the fixed column order.
	assert.Equal(t, records[0], DailyHeader)

	// Ensure an unavailable average renders as an empty field.
	assert.Equal(t, records[1], []string{"2024-01-02", "100", "102", "99", "99", "80", "40", "3", "", "4"})
	assert.Equal(t, records[2], []string{"2024-01-03", "99", "101.5", "98", "101", "10", "-2", "3.5", "3.25", "2"})
}
