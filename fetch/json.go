package fetch

import (
	"fmt"
	"math"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/marketprofile/shared"
	"github.com/tidwall/gjson"
)

// jsonNumber fetches the named finite number field of the provided record.
func jsonNumber(record gjson.Result, name string, required bool) (float64, error) {
	field := record.Get(name)
	if !field.Exists() || field.Type == gjson.Null {
		if required {
			return 0, fmt.Errorf("missing %s", name)
		}

		return 0, nil
	}

	var v float64
	switch field.Type {
	case gjson.Number:
		v = field.Float()
	case gjson.String:
		parsed, err := parseFloat(name, field.Str)
		if err != nil {
			return 0, err
		}
		v = parsed
	default:
		return 0, fmt.Errorf("unexpected %s type %s", name, field.Type)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s is not finite: %v", name, v)
	}

	return v, nil
}

// parseJSONRecord parses a tick from the provided json object.
func parseJSONRecord(record gjson.Result, cfg *ParseConfig) (shared.Tick, error) {
	if !record.IsObject() {
		return shared.Tick{}, fmt.Errorf("expected an object, got %s", record.Type)
	}

	ts := record.Get("timestamp")
	if !ts.Exists() {
		return shared.Tick{}, fmt.Errorf("missing timestamp")
	}

	timestamp, err := ParseTimestamp(ts.String(), cfg.Location)
	if err != nil {
		return shared.Tick{}, err
	}

	tick := shared.Tick{Timestamp: timestamp}
	fields := []struct {
		name     string
		value    *float64
		required bool
	}{
		{"open", &tick.Open, true},
		{"high", &tick.High, true},
		{"low", &tick.Low, true},
		{"last", &tick.Last, true},
		{"volume", &tick.Volume, true},
		{"bid_volume", &tick.BidVolume, false},
		{"ask_volume", &tick.AskVolume, false},
	}
	for _, f := range fields {
		*f.value, err = jsonNumber(record, f.name, f.required)
		if err != nil {
			return shared.Tick{}, err
		}
	}

	count, err := jsonNumber(record, "trade_count", false)
	if err != nil {
		return shared.Tick{}, err
	}
	if count != math.Trunc(count) {
		return shared.Tick{}, fmt.Errorf("trade count is not whole: %v", count)
	}
	tick.TradeCount = int64(count)

	err = validateTick(&tick)
	if err != nil {
		return shared.Tick{}, err
	}

	return tick, nil
}

// ParseJSON parses ticks from the provided json array of tick objects. Malformed records
// are dropped and counted. The returned ticks are time-ordered.
func ParseJSON(data []byte, cfg *ParseConfig) ([]shared.Tick, ParseStats, error) {
	var stats ParseStats

	err := cfg.Validate()
	if err != nil {
		return nil, stats, err
	}

	if !gjson.ValidBytes(data) {
		return nil, stats, fmt.Errorf("invalid tick json")
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, stats, fmt.Errorf("expected a json array of ticks, got %s", doc.Type)
	}

	records := doc.Array()
	ticks := make([]shared.Tick, 0, len(records))
	for idx := range records {
		stats.Records++
		tick, err := parseJSONRecord(records[idx], cfg)
		if err != nil {
			stats.Dropped++
			cfg.Logger.Debug().Msgf("dropping malformed record %d: %v\n%s", idx, err, spew.Sdump(records[idx].Raw))
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
