package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dnldd/marketprofile/position"
	"github.com/dnldd/marketprofile/shared"
)

const (
	// Supported database drivers.
	DriverNone     = "none"
	DriverRqlite   = "rqlite"
	DriverPostgres = "postgres"

	// storeTimeLayout is the fixed width, sortable layout of stored timestamps.
	storeTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// summaryColumns are the persisted session summary columns, in argument order.
var summaryColumns = []string{
	"date", "session", "window_start", "window_end", "session_start", "session_end",
	"open", "high", "low", "close", "volume", "delta", "vpoc",
	"tpo_poc", "vah", "val", "ib_high", "ib_low",
	"poor_high", "poor_high_price", "poor_low", "poor_low_price",
	"single_prints", "sp_high", "sp_low", "asr", "vwap", "ticks", "profile_status",
}

// outcomeColumns are the persisted trade outcome columns, in argument order.
var outcomeColumns = []string{
	"id", "strategy", "direction", "entry_price", "entry_time", "initial_stop", "final_stop",
	"exit_price", "exit_time", "reason", "fills", "pnl", "net_r", "hold_seconds",
}

// dailyColumns are the persisted daily summary columns, in argument order.
var dailyColumns = []string{
	"date", "open", "high", "low", "close", "volume", "delta", "true_range", "atr", "ticks",
}

// SummaryStorer defines the requirements for storing session summaries and trade outcomes.
type SummaryStorer interface {
	// PersistSummaries stores the provided summaries, replacing any stored summary of the
	// same date and session.
	PersistSummaries(ctx context.Context, summaries []shared.SessionSummary) error
	// FetchSummaries returns the stored summaries whose session window opens in
	// [start, end), ordered by window start.
	FetchSummaries(ctx context.Context, start time.Time, end time.Time) ([]shared.SessionSummary, error)
	// PersistDaily stores the provided daily summaries, replacing any stored summary of
	// the same date.
	PersistDaily(ctx context.Context, days []shared.DailySummary) error
	// PersistOutcomes stores the provided trade outcomes, replacing any stored outcome of
	// the same id.
	PersistOutcomes(ctx context.Context, outcomes []position.Outcome) error
}

// formatTime renders the provided time in the stored layout.
func formatTime(t time.Time) string {
	return t.UTC().Format(storeTimeLayout)
}

// nullableTime renders the provided nullable time in the stored layout.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return formatTime(*t)
}

// nullableFloat returns the provided nullable value as a query argument.
func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}

	return *v
}

// summaryArgs returns the query arguments of the provided summary in column order. Times
// are rendered as text when asText is set.
func summaryArgs(s *shared.SessionSummary, asText bool) []any {
	var windowStart, windowEnd, sessionStart, sessionEnd any
	switch {
	case asText:
		windowStart, windowEnd = formatTime(s.WindowStart), formatTime(s.WindowEnd)
		sessionStart, sessionEnd = nullableTime(s.SessionStart), nullableTime(s.SessionEnd)
	default:
		windowStart, windowEnd = s.WindowStart, s.WindowEnd
		sessionStart, sessionEnd = s.SessionStart, s.SessionEnd
	}

	return []any{
		s.Date, s.Session, windowStart, windowEnd, sessionStart, sessionEnd,
		nullableFloat(s.Open), nullableFloat(s.High), nullableFloat(s.Low), nullableFloat(s.Close),
		nullableFloat(s.Volume), nullableFloat(s.Delta), nullableFloat(s.VPOC),
		nullableFloat(s.TPOPOC), nullableFloat(s.VAH), nullableFloat(s.VAL),
		nullableFloat(s.IBHigh), nullableFloat(s.IBLow),
		s.PoorHigh, nullableFloat(s.PoorHighPrice), s.PoorLow, nullableFloat(s.PoorLowPrice),
		s.SinglePrints, nullableFloat(s.SPHigh), nullableFloat(s.SPLow),
		nullableFloat(s.ASR), nullableFloat(s.VWAP), s.Ticks, string(s.ProfileStatus),
	}
}

// dailyArgs returns the query arguments of the provided daily summary in column order.
func dailyArgs(d *shared.DailySummary) []any {
	return []any{
		d.Day(), d.Open, d.High, d.Low, d.Close, d.Volume, d.Delta, d.TrueRange,
		nullableFloat(d.ATR), d.Ticks,
	}
}

// outcomeArgs returns the query arguments of the provided outcome in column order. Times
// are rendered as text when asText is set.
func outcomeArgs(o *position.Outcome, asText bool) []any {
	var entryTime, exitTime any = o.EntryTime, o.ExitTime
	if asText {
		entryTime, exitTime = formatTime(o.EntryTime), formatTime(o.ExitTime)
	}

	return []any{
		o.ID, o.Strategy, o.Direction.String(), o.EntryPrice, entryTime, o.InitialStop, o.FinalStop,
		o.ExitPrice, exitTime, o.Reason.String(), len(o.Fills), o.PnL, o.NetR, o.Hold.Seconds(),
	}
}

// placeholders returns n query placeholders, numbered when numbered is set.
func placeholders(n int, numbered bool) string {
	marks := make([]string, n)
	for idx := range marks {
		if numbered {
			marks[idx] = "$" + strconv.Itoa(idx+1)
			continue
		}
		marks[idx] = "?"
	}

	return strings.Join(marks, ", ")
}

// decodeFloat decodes a nullable numeric column value.
func decodeFloat(value any) (*float64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		return shared.Float(v), nil
	case int64:
		return shared.Float(float64(v)), nil
	case int:
		return shared.Float(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("parsing number '%s': %w", v, err)
		}
		return shared.Float(f), nil
	case string:
		if v == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing number '%s': %w", v, err)
		}
		return shared.Float(f), nil
	default:
		return nil, fmt.Errorf("unexpected numeric value type %T", value)
	}
}

// decodeBool decodes a boolean column value stored as a boolean or an integer.
func decodeBool(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		f, err := decodeFloat(value)
		if err != nil {
			return false, err
		}
		return f != nil && *f != 0, nil
	}
}

// decodeTime decodes a nullable timestamp column value stored as text.
func decodeTime(value any) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse(storeTimeLayout, v)
		if err != nil {
			t, err = time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, fmt.Errorf("parsing timestamp '%s': %w", v, err)
			}
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("unexpected timestamp value type %T", value)
	}
}

// decodeString decodes a text column value.
func decodeString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("unexpected text value type %T", value)
	}
}

// decodeSummary decodes a session summary from a row keyed by column name.
func decodeSummary(row map[string]any) (shared.SessionSummary, error) {
	var s shared.SessionSummary
	var err error

	text := func(column string, dst *string) {
		if err != nil {
			return
		}
		*dst, err = decodeString(row[column])
		if err != nil {
			err = fmt.Errorf("decoding %s: %w", column, err)
		}
	}
	number := func(column string, dst **float64) {
		if err != nil {
			return
		}
		*dst, err = decodeFloat(row[column])
		if err != nil {
			err = fmt.Errorf("decoding %s: %w", column, err)
		}
	}
	flag := func(column string, dst *bool) {
		if err != nil {
			return
		}
		*dst, err = decodeBool(row[column])
		if err != nil {
			err = fmt.Errorf("decoding %s: %w", column, err)
		}
	}
	timestamp := func(column string, dst **time.Time) {
		if err != nil {
			return
		}
		*dst, err = decodeTime(row[column])
		if err != nil {
			err = fmt.Errorf("decoding %s: %w", column, err)
		}
	}

	var windowStart, windowEnd *time.Time
	var ticks *float64
	var status string

	text("date", &s.Date)
	text("session", &s.Session)
	timestamp("window_start", &windowStart)
	timestamp("window_end", &windowEnd)
	timestamp("session_start", &s.SessionStart)
	timestamp("session_end", &s.SessionEnd)
	number("open", &s.Open)
	number("high", &s.High)
	number("low", &s.Low)
	number("close", &s.Close)
	number("volume", &s.Volume)
	number("delta", &s.Delta)
	number("vpoc", &s.VPOC)
	number("tpo_poc", &s.TPOPOC)
	number("vah", &s.VAH)
	number("val", &s.VAL)
	number("ib_high", &s.IBHigh)
	number("ib_low", &s.IBLow)
	flag("poor_high", &s.PoorHigh)
	number("poor_high_price", &s.PoorHighPrice)
	flag("poor_low", &s.PoorLow)
	number("poor_low_price", &s.PoorLowPrice)
	flag("single_prints", &s.SinglePrints)
	number("sp_high", &s.SPHigh)
	number("sp_low", &s.SPLow)
	number("asr", &s.ASR)
	number("vwap", &s.VWAP)
	number("ticks", &ticks)
	text("profile_status", &status)
	if err != nil {
		return shared.SessionSummary{}, err
	}

	if s.Date == "" || s.Session == "" {
		return shared.SessionSummary{}, fmt.Errorf("summary row missing its date or session")
	}
	if windowStart != nil {
		s.WindowStart = *windowStart
	}
	if windowEnd != nil {
		s.WindowEnd = *windowEnd
	}
	if ticks != nil {
		s.Ticks = int(*ticks)
	}
	s.ProfileStatus = shared.ProfileStatus(status)

	return s, nil
}
