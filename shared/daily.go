package shared

import (
	"time"
)

// DailySummary represents the aggregate of every tick of an exchange calendar day.
type DailySummary struct {
	// Date is the exchange midnight of the day.
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Delta  float64
	// TrueRange is the day's range extended to the previous day's close.
	TrueRange float64
	// ATR is the smoothed average true range, nil until enough days are seen.
	ATR   *float64
	Ticks int
}

// Day returns the day of the summary in the day layout.
func (d *DailySummary) Day() string {
	return d.Date.Format(DayLayout)
}
