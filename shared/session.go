package shared

import (
	"errors"
	"fmt"
	"time"
)

const (
	// Session names.
	Asia       = "Asia"
	London     = "London"
	NewYork    = "NewYork"
	Overlap    = "LDN_NY_Overlap"
	Overnight  = "Overnight"
	WeekendSat = "Weekend-Sat"
	WeekendSun = "Weekend-Sun"
)

// SessionWindow represents a named session window within a trading day, in exchange time.
// A window whose close is not after its open wraps across midnight.
type SessionWindow struct {
	Name  string `yaml:"name"`
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

// DefaultSessionWindows returns the weekday session time-table.
func DefaultSessionWindows() []SessionWindow {
	return []SessionWindow{
		{Name: Asia, Open: "00:00", Close: "09:00"},
		{Name: London, Open: "07:00", Close: "16:00"},
		{Name: NewYork, Open: "13:30", Close: "21:00"},
		{Name: Overlap, Open: "13:30", Close: "16:00"},
		{Name: Overnight, Open: "21:00", Close: "00:00"},
	}
}

// Session represents a concrete market session of a trading day.
type Session struct {
	// Date is midnight of the day owning the session, in exchange time.
	Date  time.Time
	Name  string
	Start time.Time
	End   time.Time
}

// Contains checks whether the provided time falls within the half-open session window.
func (s *Session) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Day returns the session's owning day formatted as a date.
func (s *Session) Day() string {
	return s.Date.Format(DayLayout)
}

// clock is a parsed time of day.
type clock struct {
	hour   int
	minute int
}

// parseClock parses a session time of day.
func parseClock(value string) (clock, error) {
	t, err := time.Parse(SessionTimeLayout, value)
	if err != nil {
		return clock{}, fmt.Errorf("parsing session time '%s': %w", value, err)
	}

	return clock{hour: t.Hour(), minute: t.Minute()}, nil
}

// at returns the clock time on the provided day.
func (c clock) at(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, day.Location())
}

// window is a parsed session window.
type window struct {
	name  string
	open  clock
	close clock
}

// SegmenterConfig represents the session segmenter configuration.
type SegmenterConfig struct {
	// Windows is the weekday session time-table.
	Windows []SessionWindow
	// Location is the exchange location used for day and week boundaries.
	Location *time.Location
}

// Validate asserts the config sane inputs.
func (cfg *SegmenterConfig) Validate() error {
	var errs error

	if len(cfg.Windows) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no session windows provided"))
	}
	if cfg.Location == nil {
		errs = errors.Join(errs, fmt.Errorf("exchange location cannot be nil"))
	}

	seen := make(map[string]bool, len(cfg.Windows))
	for _, w := range cfg.Windows {
		switch {
		case w.Name == "":
			errs = errors.Join(errs, fmt.Errorf("session name cannot be an empty string"))
		case w.Name == WeekendSat || w.Name == WeekendSun:
			errs = errors.Join(errs, fmt.Errorf("session name %s is reserved for weekends", w.Name))
		case seen[w.Name]:
			errs = errors.Join(errs, fmt.Errorf("duplicate session name %s", w.Name))
		}
		seen[w.Name] = true
	}

	return errs
}

// Segmenter partitions time into named, possibly overlapping, session windows.
type Segmenter struct {
	windows []window
	loc     *time.Location
}

// NewSegmenter initializes a new session segmenter.
func NewSegmenter(cfg *SegmenterConfig) (*Segmenter, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	windows := make([]window, 0, len(cfg.Windows))
	for _, w := range cfg.Windows {
		open, err := parseClock(w.Open)
		if err != nil {
			return nil, fmt.Errorf("parsing %s open: %w", w.Name, err)
		}
		closeAt, err := parseClock(w.Close)
		if err != nil {
			return nil, fmt.Errorf("parsing %s close: %w", w.Name, err)
		}

		windows = append(windows, window{name: w.Name, open: open, close: closeAt})
	}

	return &Segmenter{windows: windows, loc: cfg.Location}, nil
}

// Location returns the exchange location of the segmenter.
func (s *Segmenter) Location() *time.Location {
	return s.loc
}

// Names returns every session name the segmenter can produce, weekend sessions last.
func (s *Segmenter) Names() []string {
	names := make([]string, 0, len(s.windows)+2)
	for _, w := range s.windows {
		names = append(names, w.name)
	}

	return append(names, WeekendSat, WeekendSun)
}

// Sessions returns the sessions of the calendar day of the provided time, in table order.
// Weekend days map to their dedicated full-day session. Weekday windows spilling into a
// weekend day are clipped at the weekend's midnight.
func (s *Segmenter) Sessions(day time.Time) []Session {
	d := DayStart(day, s.loc)
	next := d.AddDate(0, 0, 1)

	switch d.Weekday() {
	case time.Saturday:
		return []Session{{Date: d, Name: WeekendSat, Start: d, End: next}}
	case time.Sunday:
		return []Session{{Date: d, Name: WeekendSun, Start: d, End: next}}
	}

	sessions := make([]Session, 0, len(s.windows))
	for _, w := range s.windows {
		start := w.open.at(d)
		end := w.close.at(d)
		if !end.After(start) {
			end = w.close.at(next)
		}
		if end.After(next) && IsWeekend(next) {
			end = next
		}
		if !end.After(start) {
			continue
		}

		sessions = append(sessions, Session{Date: d, Name: w.name, Start: start, End: end})
	}

	return sessions
}

// Assign returns every session containing the provided time, including sessions of the
// previous day that wrap across midnight.
func (s *Segmenter) Assign(t time.Time) []Session {
	d := DayStart(t, s.loc)

	var matched []Session
	if !IsWeekend(d) {
		prev := d.AddDate(0, 0, -1)
		if !IsWeekend(prev) {
			for _, session := range s.Sessions(prev) {
				if session.Contains(t) {
					matched = append(matched, session)
				}
			}
		}
	}

	for _, session := range s.Sessions(d) {
		if session.Contains(t) {
			matched = append(matched, session)
		}
	}

	return matched
}

// ActiveSessions returns the names of the sessions containing the provided time.
func (s *Segmenter) ActiveSessions(t time.Time) []string {
	sessions := s.Assign(t)
	names := make([]string, 0, len(sessions))
	for idx := range sessions {
		names = append(names, sessions[idx].Name)
	}

	return names
}

// SessionsBetween returns the sessions of every calendar day from the day of start through
// the day of end, ordered by day and then table order.
func (s *Segmenter) SessionsBetween(start time.Time, end time.Time) []Session {
	var sessions []Session
	last := DayStart(end, s.loc)
	for d := DayStart(start, s.loc); !d.After(last); d = d.AddDate(0, 0, 1) {
		sessions = append(sessions, s.Sessions(d)...)
	}

	return sessions
}
