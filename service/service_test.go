package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dnldd/marketprofile/database"
	"github.com/dnldd/marketprofile/engine"
	"github.com/dnldd/marketprofile/fetch"
	"github.com/dnldd/marketprofile/market"
	"github.com/dnldd/marketprofile/profile"
	"github.com/dnldd/marketprofile/shared"
	"github.com/peterldowns/testy/assert"
)

const tickData = `timestamp,open,high,low,last,volume,trade_count,bid_volume,ask_volume
2024-01-02 08:00:00,100,100.5,99.5,100,10,1,2.5,7.5
2024-01-02 08:10:00,100,102,100,102,20,2,5,15
2024-01-02 08:35:00,102,102,101,101,10,1,2.5,7.5
2024-01-02 09:10:00,101,101,99,99,40,4,10,30
2024-01-02 09:15:00,101,oops,99,99,40,4,10,30
`

func testConfig(t *testing.T) *ServiceConfig {
	dir := t.TempDir()
	tickFile := filepath.Join(dir, "ticks.csv")
	err := os.WriteFile(tickFile, []byte(tickData), 0o600)
	assert.NoError(t, err)

	return &ServiceConfig{
		TickFile:     tickFile,
		TickFormat:   fetch.FormatCSV,
		TickLocation: time.UTC,
		Segmenter: shared.SegmenterConfig{
			Windows:  shared.DefaultSessionWindows(),
			Location: time.UTC,
		},
		Profile: profile.DefaultConfig(),
		Levels: market.LevelsConfig{
			Exclude:        market.DefaultExcludedSessions,
			RollingWindows: []int32{2},
		},
		Workers:      2,
		Strategies:   []string{engine.IBBreakName, engine.SinglePrintFadeName},
		TickSize:     0.1,
		SummariesCSV: filepath.Join(dir, "summaries.csv"),
		DailyCSV:     filepath.Join(dir, "daily.csv"),
		LevelsCSV:    filepath.Join(dir, "levels.csv"),
		OutcomesCSV:  filepath.Join(dir, "outcomes.csv"),
		Cancel:       func() {},
	}
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *ServiceConfig)
		wantErr bool
	}{
		{"valid", func(cfg *ServiceConfig) {}, false},
		{"no tick file", func(cfg *ServiceConfig) { cfg.TickFile = "" }, true},
		{"bad tick format", func(cfg *ServiceConfig) { cfg.TickFormat = "xml" }, true},
		{"no tick location", func(cfg *ServiceConfig) { cfg.TickLocation = nil }, true},
		{"negative workers", func(cfg *ServiceConfig) { cfg.Workers = -1 }, true},
		{"negative atr period", func(cfg *ServiceConfig) { cfg.ATRPeriod = -1 }, true},
		{"strategies without tick size", func(cfg *ServiceConfig) { cfg.TickSize = 0 }, true},
		{"no strategies without tick size", func(cfg *ServiceConfig) {
			cfg.Strategies = nil
			cfg.TickSize = 0
		}, false},
		{"bad rebuild time", func(cfg *ServiceConfig) { cfg.RebuildAt = "25:00" }, true},
		{"rebuild time", func(cfg *ServiceConfig) { cfg.RebuildAt = "22:15" }, false},
		{"unknown driver", func(cfg *ServiceConfig) { cfg.Store.Driver = "mysql" }, true},
		{"rqlite without endpoint", func(cfg *ServiceConfig) { cfg.Store.Driver = database.DriverRqlite }, true},
		{"postgres without dsn", func(cfg *ServiceConfig) { cfg.Store.Driver = database.DriverPostgres }, true},
		{"no cancel", func(cfg *ServiceConfig) { cfg.Cancel = nil }, true},
		{"bad profile", func(cfg *ServiceConfig) { cfg.Profile.PriceStep = 0 }, true},
		{"no sessions", func(cfg *ServiceConfig) { cfg.Segmenter.Windows = nil }, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testConfig(t)
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewServiceUnknownStrategy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Strategies = []string{"martingale"}

	// Ensure unknown strategies are rejected at startup.
	_, err := NewService(context.Background(), cfg)
	assert.Error(t, err)
}

func TestServiceRebuild(t *testing.T) {
	cfg := testConfig(t)
	svc, err := NewService(context.Background(), cfg)
	assert.NoError(t, err)

	// Ensure a rebuild produces every session of the day and the configured outputs.
	result, err := svc.Rebuild(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, len(result.Summaries), 5)
	assert.Equal(t, result.Stats, market.BatchStats{Sessions: 5, Unavailable: 0, Empty: 3})
	assert.Equal(t, svc.Rebuilds(), int64(1))

	var london *shared.SessionSummary
	for idx := range result.Summaries {
		if result.Summaries[idx].Session == shared.London {
			london = &result.Summaries[idx]
		}
	}
	assert.NotNil(t, london)
	assert.Equal(t, london.Ticks, 4)
	assert.Equal(t, london.Open, shared.Float(100))
	assert.Equal(t, london.Close, shared.Float(99))

	data, err := os.ReadFile(cfg.SummariesCSV)
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, len(lines), 6)
	assert.Equal(t, lines[0], strings.Join(market.SummaryHeader, ","))

	_, err = os.Stat(cfg.LevelsCSV)
	assert.NoError(t, err)

	// Ensure the day rolls up into a daily summary without an average true range yet.
	assert.Equal(t, len(result.Daily), 1)
	assert.Equal(t, result.Daily[0].Day(), "2024-01-02")
	assert.Equal(t, result.Daily[0].High, 102.0)
	assert.Equal(t, result.Daily[0].Low, 99.0)
	assert.Nil(t, result.Daily[0].ATR)

	data, err = os.ReadFile(cfg.DailyCSV)
	assert.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, len(lines), 2)
	assert.Equal(t, lines[0], strings.Join(market.DailyHeader, ","))

	// Ensure strategies report even without trades.
	assert.NotNil(t, result.Trades)
	assert.NotNil(t, result.Trades.Reports[engine.IBBreakName])
	assert.NotNil(t, result.Trades.Reports[engine.SinglePrintFadeName])

	data, err = os.ReadFile(cfg.OutcomesCSV)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ID,Strategy,Direction"))

	// Ensure rebuilds are deterministic.
	first, err := os.ReadFile(cfg.SummariesCSV)
	assert.NoError(t, err)
	_, err = svc.Rebuild(context.Background())
	assert.NoError(t, err)
	second, err := os.ReadFile(cfg.SummariesCSV)
	assert.NoError(t, err)
	assert.Equal(t, string(second), string(first))
	assert.Equal(t, svc.Rebuilds(), int64(2))
}

func TestServiceRebuildMissingTicks(t *testing.T) {
	cfg := testConfig(t)
	cfg.TickFile = filepath.Join(t.TempDir(), "missing.csv")
	svc, err := NewService(context.Background(), cfg)
	assert.NoError(t, err)

	// Ensure an unreadable tick file fails the rebuild.
	_, err = svc.Rebuild(context.Background())
	assert.Error(t, err)
	assert.Equal(t, svc.Rebuilds(), int64(0))
}

func TestServiceRunOnce(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg.Cancel = cancel
	svc, err := NewService(ctx, cfg)
	assert.NoError(t, err)

	// Ensure a service without a rebuild time runs once and cancels its context.
	err = svc.Run(ctx)
	assert.NoError(t, err)
	assert.Equal(t, svc.Rebuilds(), int64(1))
	assert.Error(t, ctx.Err())
}

func TestServiceGracefulShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.RebuildAt = "23:59"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg.Cancel = cancel
	svc, err := NewService(ctx, cfg)
	assert.NoError(t, err)

	// Ensure a scheduled service can be run and gracefully terminated.
	time.AfterFunc(time.Millisecond*500, func() {
		cancel()
	})

	done := make(chan error)
	go func() {
		done <- svc.Run(ctx)
	}()

	err = <-done
	assert.NoError(t, err)
	assert.True(t, svc.Rebuilds() >= 1)
}
