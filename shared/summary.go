package shared

import (
	"time"
)

// ProfileStatus represents the availability of a session's market profile.
type ProfileStatus string

const (
	ProfileOK             ProfileStatus = "ok"
	ProfileNoTicks        ProfileStatus = "no_ticks"
	ProfileShortSession   ProfileStatus = "short_session"
	ProfileTooManyPeriods ProfileStatus = "too_many_periods"
)

// SessionSummary represents the derived attributes of a single session. Nil fields are
// unavailable.
type SessionSummary struct {
	Date    string
	Session string

	// WindowStart and WindowEnd are the configured session window bounds.
	WindowStart time.Time
	WindowEnd   time.Time

	// SessionStart and SessionEnd are the first and last tick timestamps.
	SessionStart *time.Time
	SessionEnd   *time.Time

	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume *float64
	Delta  *float64
	VWAP   *float64
	VPOC   *float64

	TPOPOC *float64
	VAH    *float64
	VAL    *float64
	IBHigh *float64
	IBLow  *float64

	PoorHigh      bool
	PoorHighPrice *float64
	PoorLow       bool
	PoorLowPrice  *float64

	SinglePrints bool
	SPHigh       *float64
	SPLow        *float64

	ASR           *float64
	Ticks         int
	ProfileStatus ProfileStatus
}

// NewEmptySummary creates the all-null summary of a session without ticks.
func NewEmptySummary(session *Session) SessionSummary {
	return SessionSummary{
		Date:          session.Day(),
		Session:       session.Name,
		WindowStart:   session.Start,
		WindowEnd:     session.End,
		ProfileStatus: ProfileNoTicks,
	}
}

// ProfileAvailable checks whether the summary carries market profile attributes.
func (s *SessionSummary) ProfileAvailable() bool {
	return s.ProfileStatus == ProfileOK
}

// Key returns the unique date and session identity of the summary.
func (s *SessionSummary) Key() string {
	return s.Date + "/" + s.Session
}

// Float returns a pointer to the provided value.
func Float(v float64) *float64 {
	return &v
}

// Time returns a pointer to the provided time.
func Time(t time.Time) *time.Time {
	return &t
}

// Value returns the value of the provided pointer and whether it is set.
func Value(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}

	return *v, true
}
