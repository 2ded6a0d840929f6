package indicator

import (
	"errors"
	"math"
	"sync"
)

// DefaultATRPeriod is the default average true range period, in days.
const DefaultATRPeriod int32 = 14

// TrueRange returns the greatest of the bar's range and its distances from the previous
// close. Without a previous close it is the bar's range.
func TrueRange(high float64, low float64, prevClose *float64) float64 {
	tr := high - low
	if prevClose == nil {
		return tr
	}

	return math.Max(tr, math.Max(math.Abs(high-*prevClose), math.Abs(low-*prevClose)))
}

// ATR represents a Wilder smoothed average true range. The first true range seeds the
// average and every later one is folded in with a weight of 1/period.
type ATR struct {
	period    int32
	alpha     float64
	avg       float64
	prevClose *float64
	seen      int32
	mtx       sync.Mutex
}

// NewATR initializes an average true range over the provided number of bars.
func NewATR(period int32) (*ATR, error) {
	if period <= 0 {
		return nil, errors.New("atr period must be positive")
	}

	return &ATR{
		period: period,
		alpha:  1 / float64(period),
	}, nil
}

// Period returns the number of bars the average smooths over.
func (a *ATR) Period() int32 {
	return a.period
}

// Update adds the provided bar, returning its true range and the average. It reports
// false until period bars have been seen.
func (a *ATR) Update(high float64, low float64, closePrice float64) (float64, float64, bool) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	tr := TrueRange(high, low, a.prevClose)
	prev := closePrice
	a.prevClose = &prev

	if a.seen == 0 {
		a.avg = tr
	} else {
		a.avg = (1-a.alpha)*a.avg + a.alpha*tr
	}
	a.seen++

	if a.seen < a.period {
		return tr, 0, false
	}

	return tr, a.avg, true
}
