package shared

import (
	"fmt"
	"math"
	"time"
)

const (
	// SessionTimeLayout is the format layout for parsing session times in a day.
	SessionTimeLayout = "15:04"
	// DateLayout is the format layout for parsing tick timestamps.
	DateLayout = "2006-01-02 15:04:05"
	// DayLayout is the format layout for session dates.
	DayLayout = "2006-01-02"
)

// LoadLocation resolves a location from the provided IANA name. A fixed zone with the
// provided UTC offset (in hours) is returned when the name is empty.
func LoadLocation(name string, offsetHours float64) (*time.Location, error) {
	if name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("loading %s timezone: %w", name, err)
		}

		return loc, nil
	}

	if offsetHours == 0 {
		return time.UTC, nil
	}

	if math.Abs(offsetHours) > 14 {
		return nil, fmt.Errorf("utc offset out of range: %v", offsetHours)
	}

	seconds := int(math.Round(offsetHours * 3600))
	return time.FixedZone(fmt.Sprintf("UTC%+g", offsetHours), seconds), nil
}

// DayStart returns midnight of the calendar day of the provided time in the provided location.
func DayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// IsWeekend checks whether the provided time falls on a saturday or sunday.
func IsWeekend(t time.Time) bool {
	day := t.Weekday()
	return day == time.Saturday || day == time.Sunday
}
