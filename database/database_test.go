package database

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dnldd/marketprofile/position"
	"github.com/dnldd/marketprofile/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

func testSummary() shared.SessionSummary {
	start := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	return shared.SessionSummary{
		Date:          "2024-01-02",
		Session:       shared.London,
		WindowStart:   time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC),
		WindowEnd:     time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC),
		SessionStart:  shared.Time(start),
		SessionEnd:    shared.Time(start.Add(time.Minute*70 + time.Millisecond*250)),
		Open:          shared.Float(100),
		High:          shared.Float(102),
		Low:           shared.Float(99),
		Close:         shared.Float(99.25),
		Volume:        shared.Float(80),
		Delta:         shared.Float(40),
		VWAP:          shared.Float(100.125),
		VPOC:          shared.Float(99),
		TPOPOC:        shared.Float(100),
		VAH:           shared.Float(101),
		VAL:           shared.Float(99),
		IBHigh:        shared.Float(102),
		IBLow:         shared.Float(99.5),
		PoorHigh:      true,
		PoorHighPrice: shared.Float(102),
		SinglePrints:  true,
		SPHigh:        shared.Float(101),
		SPLow:         shared.Float(100),
		ASR:           shared.Float(3),
		Ticks:         4,
		ProfileStatus: shared.ProfileOK,
	}
}

// rowOf keys the provided arguments by column name, the way an associative query returns them.
func rowOf(columns []string, args []any) map[string]any {
	row := make(map[string]any, len(columns))
	for idx, column := range columns {
		row[column] = args[idx]
	}

	return row
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		numbered bool
		want     string
	}{
		{"none", 0, false, ""},
		{"positional", 3, false, "?, ?, ?"},
		{"numbered", 3, true, "$1, $2, $3"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, placeholders(test.n, test.numbered), test.want)
		})
	}
}

func TestStatementsMatchColumns(t *testing.T) {
	// Ensure every persisted column has an argument and a placeholder.
	summary := testSummary()
	assert.Equal(t, len(summaryArgs(&summary, true)), len(summaryColumns))
	assert.Equal(t, len(summaryArgs(&summary, false)), len(summaryColumns))
	assert.Equal(t, strings.Count(persistSummarySQL, "?"), len(summaryColumns))
	assert.True(t, strings.Contains(persistSummaryPgSQL, "$29"))
	assert.False(t, strings.Contains(persistSummaryPgSQL, "$30"))

	outcome := position.Outcome{ID: "a"}
	assert.Equal(t, len(outcomeArgs(&outcome, true)), len(outcomeColumns))
	assert.Equal(t, strings.Count(persistOutcomeSQL, "?"), len(outcomeColumns))
	assert.True(t, strings.Contains(persistOutcomePgSQL, "$14"))

	day := shared.DailySummary{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, len(dailyArgs(&day)), len(dailyColumns))
	assert.Equal(t, strings.Count(persistDailySQL, "?"), len(dailyColumns))
	assert.True(t, strings.Contains(persistDailyPgSQL, "$10"))
	assert.False(t, strings.Contains(persistDailyPgSQL, "$11"))
	assert.Equal(t, len(dailyStatements([]shared.DailySummary{day, day})), 2)

	// Ensure postgres upserts never overwrite their conflict keys.
	assert.True(t, strings.Contains(persistSummaryPgSQL, "ON CONFLICT (date, session) DO UPDATE SET window_start = EXCLUDED.window_start"))
	assert.False(t, strings.Contains(persistSummaryPgSQL, "date = EXCLUDED.date"))
	assert.False(t, strings.Contains(persistOutcomePgSQL, "id = EXCLUDED.id"))
	assert.True(t, strings.Contains(persistDailyPgSQL, "ON CONFLICT (date) DO UPDATE SET open = EXCLUDED.open"))
	assert.False(t, strings.Contains(persistDailyPgSQL, "date = EXCLUDED.date"))
}

func TestDailyArgs(t *testing.T) {
	newYork := time.FixedZone("EST", -5*60*60)
	day := shared.DailySummary{
		Date:      time.Date(2024, 1, 2, 0, 0, 0, 0, newYork),
		Open:      100,
		High:      104,
		Low:       99,
		Close:     103,
		Volume:    80,
		Delta:     -4,
		TrueRange: 5,
		Ticks:     12,
	}

	// Ensure days are keyed by their exchange date and a missing average is a null.
	args := dailyArgs(&day)
	want := []any{"2024-01-02", 100.0, 104.0, 99.0, 103.0, 80.0, -4.0, 5.0, nil, 12}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Fatalf("unexpected daily args (-want +got):\n%s", diff)
	}

	// Ensure an available average is passed as a value.
	day.ATR = shared.Float(4.5)
	args = dailyArgs(&day)
	assert.Equal(t, args[8], any(4.5))
}

func TestSummaryArgs(t *testing.T) {
	// Ensure unavailable values are passed as nulls.
	empty := shared.NewEmptySummary(&shared.Session{
		Date:  time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		Name:  shared.WeekendSat,
		Start: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
	})
	args := summaryArgs(&empty, true)
	assert.Equal(t, args[0], any("2024-01-06"))
	assert.Equal(t, args[2], any("2024-01-06T00:00:00.000000000Z"))
	assert.Nil(t, args[4])
	assert.Nil(t, args[6])
	assert.Equal(t, args[18], any(false))
	assert.Equal(t, args[27], any(0))
	assert.Equal(t, args[28], any("no_ticks"))

	// Ensure native times are passed through for drivers that support them.
	args = summaryArgs(&empty, false)
	start, ok := args[2].(time.Time)
	assert.True(t, ok)
	assert.True(t, start.Equal(empty.WindowStart))
}

func TestFormatTime(t *testing.T) {
	// Ensure stored timestamps are UTC and sort lexically.
	loc := time.FixedZone("EST", -5*60*60)
	earlier := formatTime(time.Date(2024, 1, 2, 9, 0, 0, 5, time.UTC))
	later := formatTime(time.Date(2024, 1, 2, 9, 0, 0, 0, loc))
	assert.Equal(t, earlier, "2024-01-02T09:00:00.000000005Z")
	assert.Equal(t, later, "2024-01-02T14:00:00.000000000Z")
	assert.True(t, earlier < later)
}

func TestDecodeFloat(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    *float64
		wantErr bool
	}{
		{"nil", nil, nil, false},
		{"float", 1.5, shared.Float(1.5), false},
		{"int64", int64(3), shared.Float(3), false},
		{"int", 4, shared.Float(4), false},
		{"json number", json.Number("105.3"), shared.Float(105.3), false},
		{"text", "99.5", shared.Float(99.5), false},
		{"empty text", "", nil, false},
		{"bad text", "x", nil, true},
		{"bad number", json.Number("x"), nil, true},
		{"bad type", true, nil, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := decodeFloat(test.value)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, got, test.want)
		})
	}
}

func TestDecodeBool(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    bool
		wantErr bool
	}{
		{"nil", nil, false, false},
		{"bool", true, true, false},
		{"one", float64(1), true, false},
		{"zero", json.Number("0"), false, false},
		{"bad type", []int{1}, false, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := decodeBool(test.value)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, got, test.want)
		})
	}
}

func TestDecodeTime(t *testing.T) {
	want := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   any
		want    *time.Time
		wantErr bool
	}{
		{"nil", nil, nil, false},
		{"empty", "", nil, false},
		{"stored layout", "2024-01-02T14:00:00.000000000Z", &want, false},
		{"rfc3339 offset", "2024-01-02T09:00:00-05:00", &want, false},
		{"bad text", "yesterday", nil, true},
		{"bad type", 1.0, nil, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := decodeTime(test.value)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			if test.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.NotNil(t, got)
			assert.True(t, got.Equal(*test.want))
		})
	}
}

func TestDecodeSummary(t *testing.T) {
	// Ensure a persisted summary decodes back to the same summary.
	summary := testSummary()
	got, err := decodeSummary(rowOf(summaryColumns, summaryArgs(&summary, true)))
	assert.NoError(t, err)
	if diff := cmp.Diff(summary, got); diff != "" {
		t.Fatalf("decoded summary mismatch (-want +got):\n%s", diff)
	}

	// Ensure integer flags and json numbers, as returned over http, decode.
	row := rowOf(summaryColumns, summaryArgs(&summary, true))
	row["poor_high"] = json.Number("1")
	row["poor_low"] = float64(0)
	row["single_prints"] = json.Number("1")
	row["ticks"] = json.Number("4")
	row["open"] = json.Number("100")
	got, err = decodeSummary(row)
	assert.NoError(t, err)
	assert.True(t, got.PoorHigh)
	assert.False(t, got.PoorLow)
	assert.True(t, got.SinglePrints)
	assert.Equal(t, got.Ticks, 4)
	assert.Equal(t, got.Open, shared.Float(100))

	// Ensure an empty session decodes with its nulls intact.
	empty := shared.NewEmptySummary(&shared.Session{
		Date:  time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		Name:  shared.WeekendSat,
		Start: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
	})
	got, err = decodeSummary(rowOf(summaryColumns, summaryArgs(&empty, true)))
	assert.NoError(t, err)
	assert.Nil(t, got.SessionStart)
	assert.Nil(t, got.VPOC)
	assert.Equal(t, got.ProfileStatus, shared.ProfileNoTicks)

	// Ensure malformed rows are rejected.
	row = rowOf(summaryColumns, summaryArgs(&summary, true))
	row["vah"] = "high"
	_, err = decodeSummary(row)
	assert.Error(t, err)

	row = rowOf(summaryColumns, summaryArgs(&summary, true))
	delete(row, "session")
	_, err = decodeSummary(row)
	assert.Error(t, err)
}

func TestOutcomeArgs(t *testing.T) {
	entry := time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC)
	outcome := position.Outcome{
		ID:          "trade",
		Strategy:    "ib_break",
		Direction:   shared.Short,
		EntryPrice:  100,
		EntryTime:   entry,
		InitialStop: 101,
		FinalStop:   100,
		ExitPrice:   98,
		ExitTime:    entry.Add(time.Minute * 90),
		Reason:      shared.TargetHit,
		Fills:       []position.Fill{{}, {}},
		PnL:         1.5,
		NetR:        1.5,
		Hold:        time.Minute * 90,
	}

	args := outcomeArgs(&outcome, true)
	assert.Equal(t, args[2], any("short"))
	assert.Equal(t, args[4], any("2024-01-02T14:00:00.000000000Z"))
	assert.Equal(t, args[9], any("target_hit"))
	assert.Equal(t, args[10], any(2))
	assert.Equal(t, args[13], any(float64(5400)))
}

func TestStoreConfigValidate(t *testing.T) {
	// Ensure rqlite configs are validated.
	cfg := &DatabaseConfig{Timeout: -time.Second}
	assert.Error(t, cfg.Validate())

	cfg = &DatabaseConfig{Endpoint: "http://localhost:4001", Logger: &log.Logger}
	assert.NoError(t, cfg.Validate())

	// Ensure postgres configs are validated.
	pgCfg := &PostgresConfig{MaxConns: -1}
	assert.Error(t, pgCfg.Validate())

	pgCfg = &PostgresConfig{DSN: "postgres://localhost:5432/profile", Logger: &log.Logger}
	assert.NoError(t, pgCfg.Validate())
}
