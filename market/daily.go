package market

import (
	"context"
	"fmt"
	"time"

	"github.com/dnldd/marketprofile/indicator"
	"github.com/dnldd/marketprofile/shared"
)

// BuildDailySummaries aggregates the provided time-ordered ticks by exchange calendar day
// and derives each day's true range and average true range over the provided period.
func BuildDailySummaries(ticks []shared.Tick, loc *time.Location, atrPeriod int32) ([]shared.DailySummary, error) {
	if loc == nil {
		return nil, fmt.Errorf("location cannot be nil")
	}

	atr, err := indicator.NewATR(atrPeriod)
	if err != nil {
		return nil, err
	}

	var days []shared.DailySummary
	var day *shared.DailySummary
	for idx := range ticks {
		tick := &ticks[idx]
		date := shared.DayStart(tick.Timestamp, loc)
		if day == nil || !day.Date.Equal(date) {
			days = append(days, shared.DailySummary{
				Date: date,
				Open: tick.Open,
				High: tick.High,
				Low:  tick.Low,
			})
			day = &days[len(days)-1]
		}

		if tick.High > day.High {
			day.High = tick.High
		}
		if tick.Low < day.Low {
			day.Low = tick.Low
		}
		day.Close = tick.Last
		day.Volume += tick.Volume
		day.Delta += tick.Delta()
		day.Ticks++
	}

	for idx := range days {
		d := &days[idx]
		tr, avg, ok := atr.Update(d.High, d.Low, d.Close)
		d.TrueRange = tr
		if ok {
			d.ATR = shared.Float(avg)
		}
	}

	return days, nil
}

// BuildDaily builds the daily summaries of the tick set and persists them as one batch.
func (m *Manager) BuildDaily(ctx context.Context) ([]shared.DailySummary, error) {
	first, last, ok := m.cfg.Ticks.Range()
	if !ok {
		return nil, nil
	}

	ticks, err := m.cfg.Ticks.FetchTicks(ctx, first, last.Add(time.Nanosecond))
	if err != nil {
		return nil, fmt.Errorf("fetching daily ticks: %w", err)
	}

	period := m.cfg.ATRPeriod
	if period == 0 {
		period = indicator.DefaultATRPeriod
	}

	days, err := BuildDailySummaries(ticks, m.cfg.Segmenter.Location(), period)
	if err != nil {
		return nil, fmt.Errorf("building daily summaries: %w", err)
	}

	m.cfg.Logger.Info().Msgf("built %d daily summaries", len(days))

	if m.cfg.PersistDaily != nil {
		err := m.cfg.PersistDaily(ctx, days)
		if err != nil {
			return nil, fmt.Errorf("persisting daily summaries: %w", err)
		}
	}

	return days, nil
}
