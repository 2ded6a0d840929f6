package fetch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dnldd/marketprofile/shared"
)

// timestampLayouts are the accepted tick timestamp layouts, tried in order. Fractional
// seconds are accepted after the seconds field of every layout.
var timestampLayouts = []string{
	shared.DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
}

// errHeader is returned when a record is a header row.
var errHeader = errors.New("header row")

// ParseTimestamp parses a tick timestamp. Timestamps without zone information are
// interpreted in the provided location; numeric timestamps are unix seconds.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t, nil
		}
	}

	secs, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("unrecognized timestamp format '%s'", value)
	}

	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).In(loc), nil
}

// parseFloat parses a finite float field.
func parseFloat(name string, value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s '%s': %w", name, value, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s is not finite: %v", name, v)
	}

	return v, nil
}

// validateTick asserts the provided tick is internally consistent.
func validateTick(tick *shared.Tick) error {
	var errs error

	if tick.High < tick.Low {
		errs = errors.Join(errs, fmt.Errorf("high %v below low %v", tick.High, tick.Low))
	}
	if tick.Volume < 0 {
		errs = errors.Join(errs, fmt.Errorf("negative volume %v", tick.Volume))
	}
	if tick.BidVolume < 0 || tick.AskVolume < 0 {
		errs = errors.Join(errs, fmt.Errorf("negative bid/ask volume %v/%v", tick.BidVolume, tick.AskVolume))
	}
	if tick.TradeCount < 0 {
		errs = errors.Join(errs, fmt.Errorf("negative trade count %d", tick.TradeCount))
	}

	return errs
}

// ParseStats represents the outcome of parsing a tick source.
type ParseStats struct {
	// Records is the number of records read, excluding a header row.
	Records int
	// Parsed is the number of valid ticks produced.
	Parsed int
	// Dropped is the number of malformed records skipped.
	Dropped int
}
