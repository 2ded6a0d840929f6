package market

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dnldd/marketprofile/indicator"
	"github.com/dnldd/marketprofile/shared"
)

// DefaultExcludedSessions are the sessions left out of key level aggregation by default.
var DefaultExcludedSessions = []string{shared.Overnight, shared.WeekendSat, shared.WeekendSun}

// LevelsConfig represents the key level derivation configuration.
type LevelsConfig struct {
	// Exclude lists the session names left out of aggregation.
	Exclude []string
	// RollingWindows are the rolling session VWAP windows, in sessions.
	RollingWindows []int32
}

// Validate asserts the config sane inputs.
func (cfg *LevelsConfig) Validate() error {
	var errs error

	for _, window := range cfg.RollingWindows {
		if window <= 0 {
			errs = errors.Join(errs, fmt.Errorf("rolling window must be positive, got %d", window))
		}
	}

	return errs
}

// KeyLevels represents the reference levels in effect for a session. Nil levels are
// unavailable.
type KeyLevels struct {
	Date    string
	Session string
	Start   time.Time
	Open    float64

	PrevSessionOpen  *float64
	PrevSessionHigh  *float64
	PrevSessionLow   *float64
	PrevSessionClose *float64
	PrevSessionMid   *float64

	DailyOpen     *float64
	PrevDailyHigh *float64
	PrevDailyLow  *float64
	PrevDailyMid  *float64

	MondayHigh  *float64
	MondayLow   *float64
	MondayMid   *float64
	MondayRange *float64

	WeeklyOpen   *float64
	PrevWeekHigh *float64
	PrevWeekLow  *float64
	PrevWeekMid  *float64

	MonthlyOpen   *float64
	PrevMonthHigh *float64
	PrevMonthLow  *float64
	PrevMonthMid  *float64

	QuarterlyOpen  *float64
	PrevQuarterMid *float64

	YearlyOpen  *float64
	PrevYearMid *float64

	// RollingVWAP holds the rolling session VWAP of each configured window, in order.
	RollingVWAP []*float64
}

// period is the open, high and low of a calendar period.
type period struct {
	open float64
	high float64
	low  float64
}

// mid returns the midpoint of the period range.
func (p *period) mid() float64 {
	return (p.high + p.low) / 2
}

// periodSet aggregates sessions into calendar periods in chronological order.
type periodSet struct {
	keys    []string
	index   map[string]int
	periods map[string]*period
}

// newPeriodSet initializes an empty period set.
func newPeriodSet() *periodSet {
	return &periodSet{
		index:   make(map[string]int),
		periods: make(map[string]*period),
	}
}

// add folds the provided session range into the keyed period.
func (s *periodSet) add(key string, open float64, high float64, low float64) {
	p, ok := s.periods[key]
	if !ok {
		s.index[key] = len(s.keys)
		s.keys = append(s.keys, key)
		s.periods[key] = &period{open: open, high: high, low: low}
		return
	}

	if high > p.high {
		p.high = high
	}
	if low < p.low {
		p.low = low
	}
}

// current returns the keyed period.
func (s *periodSet) current(key string) *period {
	return s.periods[key]
}

// previous returns the period before the keyed period.
func (s *periodSet) previous(key string) *period {
	idx, ok := s.index[key]
	if !ok || idx == 0 {
		return nil
	}

	return s.periods[s.keys[idx-1]]
}

// calendarKeys returns the day, week, month, quarter and year keys of the provided day.
func calendarKeys(day time.Time) (string, string, string, string, string) {
	offset := (int(day.Weekday()) + 6) % 7
	week := day.AddDate(0, 0, -offset)
	quarter := (int(day.Month())-1)/3 + 1

	return day.Format(shared.DayLayout),
		week.Format(shared.DayLayout),
		day.Format("2006-01"),
		fmt.Sprintf("%d-Q%d", day.Year(), quarter),
		day.Format("2006")
}

// openValue returns the open of the provided period.
func openValue(p *period) *float64 {
	if p == nil {
		return nil
	}

	return shared.Float(p.open)
}

// midValue returns the midpoint of the provided period.
func midValue(p *period) *float64 {
	if p == nil {
		return nil
	}

	return shared.Float(p.mid())
}

// DeriveKeyLevels derives the key levels in effect for each of the provided summaries.
// Summaries of excluded sessions or without prices are skipped. Monday levels aggregate
// every Monday session of the week.
func DeriveKeyLevels(summaries []shared.SessionSummary, cfg *LevelsConfig) ([]KeyLevels, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	rows := make([]*shared.SessionSummary, 0, len(summaries))
	for idx := range summaries {
		s := &summaries[idx]
		if slices.Contains(cfg.Exclude, s.Session) {
			continue
		}
		if s.Open == nil || s.High == nil || s.Low == nil || s.Close == nil || s.SessionStart == nil {
			continue
		}
		rows = append(rows, s)
	}
	slices.SortStableFunc(rows, func(a, b *shared.SessionSummary) int {
		return a.SessionStart.Compare(*b.SessionStart)
	})

	days, weeks, mondays := newPeriodSet(), newPeriodSet(), newPeriodSet()
	months, quarters, years := newPeriodSet(), newPeriodSet(), newPeriodSet()

	type rowKeys struct{ day, week, month, quarter, year string }
	keys := make([]rowKeys, len(rows))
	for idx, s := range rows {
		date, err := time.Parse(shared.DayLayout, s.Date)
		if err != nil {
			return nil, fmt.Errorf("parsing summary date '%s': %w", s.Date, err)
		}

		day, week, month, quarter, year := calendarKeys(date)
		keys[idx] = rowKeys{day, week, month, quarter, year}

		open, high, low := *s.Open, *s.High, *s.Low
		days.add(day, open, high, low)
		weeks.add(week, open, high, low)
		months.add(month, open, high, low)
		quarters.add(quarter, open, high, low)
		years.add(year, open, high, low)
		if date.Weekday() == time.Monday {
			mondays.add(week, open, high, low)
		}
	}

	rolling := make([]*indicator.RollingVWAP, 0, len(cfg.RollingWindows))
	for _, window := range cfg.RollingWindows {
		r, err := indicator.NewRollingVWAP(window)
		if err != nil {
			return nil, fmt.Errorf("creating rolling vwap: %w", err)
		}
		rolling = append(rolling, r)
	}

	levels := make([]KeyLevels, 0, len(rows))
	for idx, s := range rows {
		k := keys[idx]
		kl := KeyLevels{
			Date:    s.Date,
			Session: s.Session,
			Start:   *s.SessionStart,
			Open:    *s.Open,

			DailyOpen:     openValue(days.current(k.day)),
			WeeklyOpen:    openValue(weeks.current(k.week)),
			MonthlyOpen:   openValue(months.current(k.month)),
			QuarterlyOpen: openValue(quarters.current(k.quarter)),
			YearlyOpen:    openValue(years.current(k.year)),

			PrevDailyMid:   midValue(days.previous(k.day)),
			PrevWeekMid:    midValue(weeks.previous(k.week)),
			PrevMonthMid:   midValue(months.previous(k.month)),
			PrevQuarterMid: midValue(quarters.previous(k.quarter)),
			PrevYearMid:    midValue(years.previous(k.year)),
		}

		if idx > 0 {
			prev := rows[idx-1]
			kl.PrevSessionOpen = shared.Float(*prev.Open)
			kl.PrevSessionHigh = shared.Float(*prev.High)
			kl.PrevSessionLow = shared.Float(*prev.Low)
			kl.PrevSessionClose = shared.Float(*prev.Close)
			kl.PrevSessionMid = shared.Float((*prev.High + *prev.Low) / 2)
		}

		if prev := days.previous(k.day); prev != nil {
			kl.PrevDailyHigh = shared.Float(prev.high)
			kl.PrevDailyLow = shared.Float(prev.low)
		}
		if prev := weeks.previous(k.week); prev != nil {
			kl.PrevWeekHigh = shared.Float(prev.high)
			kl.PrevWeekLow = shared.Float(prev.low)
		}
		if prev := months.previous(k.month); prev != nil {
			kl.PrevMonthHigh = shared.Float(prev.high)
			kl.PrevMonthLow = shared.Float(prev.low)
		}
		if monday := mondays.current(k.week); monday != nil {
			kl.MondayHigh = shared.Float(monday.high)
			kl.MondayLow = shared.Float(monday.low)
			kl.MondayMid = shared.Float(monday.mid())
			kl.MondayRange = shared.Float(monday.high - monday.low)
		}

		var volume float64
		if s.Volume != nil {
			volume = *s.Volume
		}
		kl.RollingVWAP = make([]*float64, len(rolling))
		for i, r := range rolling {
			value, ok := r.Update(*s.High, *s.Low, *s.Close, volume)
			if ok {
				kl.RollingVWAP[i] = shared.Float(value)
			}
		}

		levels = append(levels, kl)
	}

	return levels, nil
}
