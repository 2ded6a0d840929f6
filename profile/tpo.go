package profile

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/dnldd/marketprofile/shared"
)

// Letters is the TPO label alphabet in chronological order.
const Letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var (
	// ErrNoTicks is returned when a profile is requested for a session without ticks.
	ErrNoTicks = errors.New("no ticks")
	// ErrShortSession is returned when the ticks span less than one TPO period.
	ErrShortSession = errors.New("session shorter than one tpo period")
	// ErrTooManyPeriods is returned when a session needs more bins than available labels.
	ErrTooManyPeriods = errors.New("more tpo periods than labels")
)

// levelEpsilon absorbs float noise when dividing prices by the price step.
const levelEpsilon = 1e-9

// quotient divides the provided price by the step, snapping to the nearest integer when
// within float noise of it.
func quotient(price float64, step float64) float64 {
	q := price / step
	r := math.Round(q)
	if math.Abs(q-r) <= levelEpsilon*math.Max(1, math.Abs(q)) {
		return r
	}

	return q
}

// floorIndex returns the index of the level containing the provided price.
func floorIndex(price float64, step float64) int64 {
	return int64(math.Floor(quotient(price, step)))
}

// ceilIndex returns the index of the first level at or above the provided price.
func ceilIndex(price float64, step float64) int64 {
	return int64(math.Ceil(quotient(price, step)))
}

// levelPrice returns the price of the provided level index.
func levelPrice(idx int64, step float64) float64 {
	return math.Round(float64(idx)*step*1e8) / 1e8
}

// Bin represents a labelled TPO time bin.
type Bin struct {
	Label string
	Start time.Time
	End   time.Time
	// Low and High are the raw tick extremes of the bin, only meaningful when Ticks > 0.
	Low   float64
	High  float64
	Ticks int
}

// Level represents a touched price level of a profile.
type Level struct {
	Index int64
	Price float64
	// Count is the number of distinct bins that touched the level.
	Count int
	// Labels are the labels of the bins that touched the level, in chronological order.
	Labels []string
}

// Profile represents a TPO market profile of a session.
type Profile struct {
	PriceStep float64
	Period    time.Duration
	Bins      []Bin
	// Levels are the touched levels in ascending price order.
	Levels []Level
}

// Builder builds TPO profiles.
type Builder struct {
	cfg *Config
}

// NewBuilder initializes a new TPO profile builder.
func NewBuilder(cfg *Config) (*Builder, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Builder{cfg: cfg}, nil
}

// floorToPeriod floors the provided time to the period on the wall clock of the provided
// location, counting periods from local midnight.
func floorToPeriod(t time.Time, period time.Duration, loc *time.Location) time.Time {
	t = t.In(loc)
	elapsed := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	floored := elapsed / period * period

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, int(floored), loc)
}

// ceilToPeriod rounds the provided time up to the period on the wall clock of the
// provided location.
func ceilToPeriod(t time.Time, period time.Duration, loc *time.Location) time.Time {
	floored := floorToPeriod(t, period, loc)
	if floored.Before(t) {
		return floored.Add(period)
	}

	return floored
}

// Build creates the TPO profile of the provided time-ordered session ticks, aligning bins
// to the wall clock of the first tick's location.
func (b *Builder) Build(ticks []shared.Tick) (*Profile, error) {
	if len(ticks) == 0 {
		return nil, ErrNoTicks
	}

	return b.BuildIn(ticks, ticks[0].Timestamp.Location())
}

// BuildIn creates the TPO profile of the provided time-ordered session ticks, aligning
// bins to period boundaries of the provided location's wall clock.
func (b *Builder) BuildIn(ticks []shared.Tick, loc *time.Location) (*Profile, error) {
	if len(ticks) == 0 {
		return nil, ErrNoTicks
	}
	if loc == nil {
		loc = ticks[0].Timestamp.Location()
	}

	period := b.cfg.Period
	step := b.cfg.PriceStep

	first := ticks[0].Timestamp
	last := ticks[len(ticks)-1].Timestamp
	begin := floorToPeriod(first, period, loc)
	end := ceilToPeriod(last, period, loc)

	count := int((end.Sub(begin) + period - 1) / period)
	if count < 1 {
		return nil, ErrShortSession
	}
	if count > len(Letters) {
		return nil, fmt.Errorf("%w: %d periods, %d labels", ErrTooManyPeriods, count, len(Letters))
	}

	bins := make([]Bin, count)
	for idx := range bins {
		start := begin.Add(time.Duration(idx) * period)
		bins[idx] = Bin{
			Label: Letters[idx : idx+1],
			Start: start,
			End:   start.Add(period),
		}
	}

	for idx := range ticks {
		tick := &ticks[idx]
		pos := int(tick.Timestamp.Sub(begin) / period)
		if tick.Timestamp.Before(begin) || pos >= count {
			// Only a tick sitting exactly on an aligned session end lands here.
			continue
		}

		bin := &bins[pos]
		if bin.Ticks == 0 || tick.Low < bin.Low {
			bin.Low = tick.Low
		}
		if bin.Ticks == 0 || tick.High > bin.High {
			bin.High = tick.High
		}
		bin.Ticks++
	}

	levels := make(map[int64]*Level)
	for idx := range bins {
		bin := &bins[idx]
		if bin.Ticks == 0 {
			continue
		}

		lo := floorIndex(bin.Low, step)
		hi := ceilIndex(bin.High, step)
		for i := lo; i < hi; i++ {
			level, ok := levels[i]
			if !ok {
				level = &Level{Index: i, Price: levelPrice(i, step)}
				levels[i] = level
			}
			level.Count++
			level.Labels = append(level.Labels, bin.Label)
		}
	}

	profile := &Profile{
		PriceStep: step,
		Period:    period,
		Bins:      bins,
		Levels:    make([]Level, 0, len(levels)),
	}
	for _, level := range levels {
		profile.Levels = append(profile.Levels, *level)
	}
	slices.SortFunc(profile.Levels, func(a, b Level) int {
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		default:
			return 0
		}
	})

	return profile, nil
}

// level returns the touched level containing the provided price.
func (p *Profile) level(price float64) (*Level, bool) {
	idx := floorIndex(price, p.PriceStep)
	pos, found := slices.BinarySearchFunc(p.Levels, idx, func(l Level, target int64) int {
		switch {
		case l.Index < target:
			return -1
		case l.Index > target:
			return 1
		default:
			return 0
		}
	})
	if !found {
		return nil, false
	}

	return &p.Levels[pos], true
}

// CountAt returns the number of distinct bins that touched the level containing the
// provided price.
func (p *Profile) CountAt(price float64) int {
	level, ok := p.level(price)
	if !ok {
		return 0
	}

	return level.Count
}

// LabelsAt returns the labels of the bins that touched the level containing the provided price.
func (p *Profile) LabelsAt(price float64) []string {
	level, ok := p.level(price)
	if !ok {
		return nil
	}

	return level.Labels
}

// TotalCount returns the sum of touch counts across all levels.
func (p *Profile) TotalCount() int {
	var total int
	for idx := range p.Levels {
		total += p.Levels[idx].Count
	}

	return total
}

// ActiveBins returns the number of bins with at least one tick.
func (p *Profile) ActiveBins() int {
	var active int
	for idx := range p.Bins {
		if p.Bins[idx].Ticks > 0 {
			active++
		}
	}

	return active
}
