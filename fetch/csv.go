package fetch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/marketprofile/shared"
	"github.com/rs/zerolog"
)

const (
	// minTickFields is the minimum number of fields of a tick record.
	minTickFields = 6
	// splitDateTimeFields is the field count of records carrying date and time separately.
	splitDateTimeFields = 10
)

// ParseConfig represents the tick parsing configuration.
type ParseConfig struct {
	// Location is the timezone of timestamps without zone information.
	Location *time.Location
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ParseConfig) Validate() error {
	var errs error

	if cfg.Location == nil {
		errs = errors.Join(errs, fmt.Errorf("tick location cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// isHeader checks whether the provided record is a column header row.
func isHeader(fields []string) bool {
	first := strings.ToLower(strings.TrimSpace(fields[0]))
	return strings.Contains(first, "time") || strings.Contains(first, "date")
}

// parseRecord parses a tick from the provided csv record fields.
func parseRecord(fields []string, loc *time.Location) (shared.Tick, error) {
	if len(fields) == splitDateTimeFields && strings.Contains(fields[1], ":") {
		joined := strings.TrimSpace(fields[0]) + " " + strings.TrimSpace(fields[1])
		fields = append([]string{joined}, fields[2:]...)
	}

	if len(fields) < minTickFields {
		return shared.Tick{}, fmt.Errorf("expected at least %d fields, got %d", minTickFields, len(fields))
	}

	ts, err := ParseTimestamp(fields[0], loc)
	if err != nil {
		return shared.Tick{}, err
	}

	tick := shared.Tick{Timestamp: ts}
	columns := []struct {
		name  string
		value *float64
	}{
		{"open", &tick.Open},
		{"high", &tick.High},
		{"low", &tick.Low},
		{"last", &tick.Last},
		{"volume", &tick.Volume},
	}
	for idx, col := range columns {
		*col.value, err = parseFloat(col.name, fields[idx+1])
		if err != nil {
			return shared.Tick{}, err
		}
	}

	if len(fields) > 6 && strings.TrimSpace(fields[6]) != "" {
		tick.TradeCount, err = strconv.ParseInt(strings.TrimSpace(fields[6]), 10, 64)
		if err != nil {
			return shared.Tick{}, fmt.Errorf("parsing trade count '%s': %w", fields[6], err)
		}
	}
	if len(fields) > 7 && strings.TrimSpace(fields[7]) != "" {
		tick.BidVolume, err = parseFloat("bid volume", fields[7])
		if err != nil {
			return shared.Tick{}, err
		}
	}
	if len(fields) > 8 && strings.TrimSpace(fields[8]) != "" {
		tick.AskVolume, err = parseFloat("ask volume", fields[8])
		if err != nil {
			return shared.Tick{}, err
		}
	}

	err = validateTick(&tick)
	if err != nil {
		return shared.Tick{}, err
	}

	return tick, nil
}

// ParseCSV parses ticks from the provided csv source. Malformed records are dropped and
// counted, an optional header row is skipped. The returned ticks are time-ordered.
func ParseCSV(r io.Reader, cfg *ParseConfig) ([]shared.Tick, ParseStats, error) {
	var stats ParseStats

	err := cfg.Validate()
	if err != nil {
		return nil, stats, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	var ticks []shared.Tick
	for line := 1; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Records++
				stats.Dropped++
				cfg.Logger.Debug().Msgf("dropping unreadable line %d: %v", line, err)
				continue
			}

			return nil, stats, fmt.Errorf("reading tick csv: %w", err)
		}

		if line == 1 && isHeader(fields) {
			continue
		}

		stats.Records++
		tick, err := parseRecord(fields, cfg.Location)
		if err != nil {
			stats.Dropped++
			cfg.Logger.Debug().Msgf("dropping malformed line %d: %v\n%s", line, err, spew.Sdump(fields))
			continue
		}

		ticks = append(ticks, tick)
	}

	shared.SortTicks(ticks)
	stats.Parsed = len(ticks)

	if stats.Dropped > 0 {
		cfg.Logger.Warn().Msgf("dropped %d of %d tick records", stats.Dropped, stats.Records)
	}

	return ticks, stats, nil
}
