package market

import (
	"math"
	"testing"
	"time"

	"github.com/dnldd/marketprofile/shared"
	"github.com/peterldowns/testy/assert"
)

func levelSummary(day time.Time, name string, startHour int, open float64, high float64, low float64, closePrice float64) shared.SessionSummary {
	start := day.Add(time.Duration(startHour) * time.Hour)
	return shared.SessionSummary{
		Date:          day.Format(shared.DayLayout),
		Session:       name,
		SessionStart:  shared.Time(start),
		Open:          shared.Float(open),
		High:          shared.Float(high),
		Low:           shared.Float(low),
		Close:         shared.Float(closePrice),
		Volume:        shared.Float(1),
		ProfileStatus: shared.ProfileOK,
	}
}

func keyLevelSummaries() []shared.SessionSummary {
	monday := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	nextMonday := monday.AddDate(0, 0, 7)

	return []shared.SessionSummary{
		levelSummary(nextMonday, shared.London, 7, 120, 125, 118, 121),
		levelSummary(monday, shared.London, 7, 100, 110, 95, 105),
		levelSummary(monday, shared.Overnight, 21, 90, 300, 10, 90),
		levelSummary(monday, shared.NewYork, 13, 105, 112, 100, 108),
		{Date: "2024-01-02", Session: shared.Asia, ProfileStatus: shared.ProfileNoTicks},
		levelSummary(tuesday, shared.London, 7, 108, 115, 104, 110),
	}
}

func value(t *testing.T, v *float64) float64 {
	t.Helper()
	assert.NotNil(t, v)
	return *v
}

func TestLevelsConfigValidate(t *testing.T) {
	// Ensure non-positive rolling windows are rejected.
	cfg := &LevelsConfig{RollingWindows: []int32{30, 0}}
	assert.Error(t, cfg.Validate())

	_, err := DeriveKeyLevels(nil, cfg)
	assert.Error(t, err)

	// Ensure no summaries derive no levels.
	levels, err := DeriveKeyLevels(nil, &LevelsConfig{})
	assert.NoError(t, err)
	assert.Equal(t, len(levels), 0)
}

func TestDeriveKeyLevels(t *testing.T) {
	cfg := &LevelsConfig{
		Exclude:        DefaultExcludedSessions,
		RollingWindows: []int32{2},
	}

	// Ensure excluded sessions and sessions without prices are skipped and the rest
	// are ordered by session start.
	levels, err := DeriveKeyLevels(keyLevelSummaries(), cfg)
	assert.NoError(t, err)
	assert.Equal(t, len(levels), 4)
	order := make([]string, 0, len(levels))
	for idx := range levels {
		order = append(order, levels[idx].Date+"/"+levels[idx].Session)
	}
	assert.Equal(t, order, []string{
		"2024-01-01/London", "2024-01-01/NewYork", "2024-01-02/London", "2024-01-08/London",
	})

	// Ensure the first session has no previous levels.
	first := levels[0]
	assert.Nil(t, first.PrevSessionOpen)
	assert.Nil(t, first.PrevDailyHigh)
	assert.Nil(t, first.PrevWeekMid)
	assert.Nil(t, first.PrevMonthMid)
	assert.Nil(t, first.RollingVWAP[0])
	assert.Equal(t, value(t, first.DailyOpen), 100.0)
	assert.Equal(t, value(t, first.WeeklyOpen), 100.0)
	assert.Equal(t, value(t, first.MonthlyOpen), 100.0)
	assert.Equal(t, value(t, first.YearlyOpen), 100.0)

	// Ensure Monday levels aggregate every Monday session of the week.
	assert.Equal(t, value(t, first.MondayHigh), 112.0)
	assert.Equal(t, value(t, first.MondayLow), 95.0)
	assert.Equal(t, value(t, first.MondayMid), 103.5)
	assert.Equal(t, value(t, first.MondayRange), 17.0)

	// Ensure previous session levels follow the prior included session.
	second := levels[1]
	assert.Equal(t, value(t, second.PrevSessionOpen), 100.0)
	assert.Equal(t, value(t, second.PrevSessionHigh), 110.0)
	assert.Equal(t, value(t, second.PrevSessionLow), 95.0)
	assert.Equal(t, value(t, second.PrevSessionClose), 105.0)
	assert.Equal(t, value(t, second.PrevSessionMid), 102.5)
	assert.Equal(t, value(t, second.DailyOpen), 100.0)
	assert.True(t, math.Abs(value(t, second.RollingVWAP[0])-105) < 1e-9)

	// Ensure daily levels roll over on the next day.
	third := levels[2]
	assert.Equal(t, value(t, third.DailyOpen), 108.0)
	assert.Equal(t, value(t, third.PrevDailyHigh), 112.0)
	assert.Equal(t, value(t, third.PrevDailyLow), 95.0)
	assert.Equal(t, value(t, third.PrevDailyMid), 103.5)
	assert.Equal(t, value(t, third.WeeklyOpen), 100.0)
	assert.Equal(t, value(t, third.MondayHigh), 112.0)

	// Ensure weekly levels roll over on Monday.
	fourth := levels[3]
	assert.Equal(t, value(t, fourth.WeeklyOpen), 120.0)
	assert.Equal(t, value(t, fourth.PrevWeekHigh), 115.0)
	assert.Equal(t, value(t, fourth.PrevWeekLow), 95.0)
	assert.Equal(t, value(t, fourth.PrevWeekMid), 105.0)
	assert.Equal(t, value(t, fourth.PrevDailyMid), 109.5)
	assert.Equal(t, value(t, fourth.MondayHigh), 125.0)
	assert.Equal(t, value(t, fourth.MondayLow), 118.0)
	assert.Equal(t, value(t, fourth.MonthlyOpen), 100.0)
	assert.Nil(t, fourth.PrevMonthMid)
	assert.Nil(t, fourth.PrevYearMid)
}

func TestCalendarKeys(t *testing.T) {
	tests := []struct {
		name    string
		day     time.Time
		week    string
		quarter string
	}{
		{
			name:    "monday",
			day:     time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			week:    "2024-01-01",
			quarter: "2024-Q1",
		},
		{
			name:    "sunday",
			day:     time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC),
			week:    "2024-01-01",
			quarter: "2024-Q1",
		},
		{
			name:    "week spanning years",
			day:     time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
			week:    "2024-12-30",
			quarter: "2024-Q4",
		},
	}

	for _, test := range tests {
		// Ensure weeks start on Monday and quarters are keyed by year.
		_, week, _, quarter, _ := calendarKeys(test.day)
		assert.Equal(t, week, test.week)
		assert.Equal(t, quarter, test.quarter)
	}
}
