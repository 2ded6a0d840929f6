package shared

import (
	"slices"
	"time"
)

// Tick represents a unit trade tick for the instrument.
type Tick struct {
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Last       float64
	Volume     float64
	TradeCount int64
	BidVolume  float64
	AskVolume  float64
}

// Delta returns the aggressor imbalance of the tick.
func (t *Tick) Delta() float64 {
	return t.AskVolume - t.BidVolume
}

// PricePoint is a timestamped last-trade price.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// PricePoints converts the provided ticks to their last-trade price points.
func PricePoints(ticks []Tick) []PricePoint {
	points := make([]PricePoint, 0, len(ticks))
	for idx := range ticks {
		points = append(points, PricePoint{
			Time:  ticks[idx].Timestamp,
			Price: ticks[idx].Last,
		})
	}

	return points
}

// SortTicks orders the provided ticks by timestamp. Ticks sharing a timestamp keep
// their input order.
func SortTicks(ticks []Tick) {
	slices.SortStableFunc(ticks, func(a, b Tick) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// SliceTicks returns the ticks in [start, end) from the provided sorted ticks. The returned
// slice shares the backing array of the input.
func SliceTicks(ticks []Tick, start time.Time, end time.Time) []Tick {
	lo, _ := slices.BinarySearchFunc(ticks, start, func(t Tick, target time.Time) int {
		return t.Timestamp.Compare(target)
	})
	hi, _ := slices.BinarySearchFunc(ticks, end, func(t Tick, target time.Time) int {
		return t.Timestamp.Compare(target)
	})
	if hi < lo {
		return nil
	}

	return ticks[lo:hi]
}
