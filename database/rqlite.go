package database

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/marketprofile/position"
	"github.com/dnldd/marketprofile/shared"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

const (
	// SQL statements.
	createSummaryTableSQL = "CREATE TABLE IF NOT EXISTS session_summary (date TEXT NOT NULL, session TEXT NOT NULL, " +
		"window_start TEXT NOT NULL, window_end TEXT NOT NULL, session_start TEXT, session_end TEXT, " +
		"open REAL, high REAL, low REAL, close REAL, volume REAL, delta REAL, vpoc REAL, " +
		"tpo_poc REAL, vah REAL, val REAL, ib_high REAL, ib_low REAL, " +
		"poor_high INTEGER NOT NULL, poor_high_price REAL, poor_low INTEGER NOT NULL, poor_low_price REAL, " +
		"single_prints INTEGER NOT NULL, sp_high REAL, sp_low REAL, asr REAL, vwap REAL, " +
		"ticks INTEGER NOT NULL, profile_status TEXT NOT NULL, PRIMARY KEY (date, session))"
	createDailyTableSQL = "CREATE TABLE IF NOT EXISTS daily_summary (date TEXT PRIMARY KEY, " +
		"open REAL, high REAL, low REAL, close REAL, volume REAL, delta REAL, " +
		"true_range REAL, atr REAL, ticks INTEGER NOT NULL)"
	createOutcomeTableSQL = "CREATE TABLE IF NOT EXISTS trade_outcome (id TEXT PRIMARY KEY, strategy TEXT NOT NULL, " +
		"direction TEXT NOT NULL, entry_price REAL, entry_time TEXT, initial_stop REAL, final_stop REAL, " +
		"exit_price REAL, exit_time TEXT, reason TEXT NOT NULL, fills INTEGER, pnl REAL, net_r REAL, hold_seconds REAL)"
	fetchSummariesSQL = "SELECT * FROM session_summary WHERE window_start >= ? AND window_start < ? " +
		"ORDER BY window_start, session"
)

var (
	persistSummarySQL = fmt.Sprintf("INSERT OR REPLACE INTO session_summary(%s) VALUES(%s)",
		strings.Join(summaryColumns, ", "), placeholders(len(summaryColumns), false))
	persistDailySQL = fmt.Sprintf("INSERT OR REPLACE INTO daily_summary(%s) VALUES(%s)",
		strings.Join(dailyColumns, ", "), placeholders(len(dailyColumns), false))
	persistOutcomeSQL = fmt.Sprintf("INSERT OR REPLACE INTO trade_outcome(%s) VALUES(%s)",
		strings.Join(outcomeColumns, ", "), placeholders(len(outcomeColumns), false))
)

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Timeout is the request timeout of the database client.
	Timeout time.Duration
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *DatabaseConfig) Validate() error {
	var errs error

	if cfg.Endpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if cfg.Timeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("database timeout cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Database represents the rqlite database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the SummaryStorer interface.
var _ SummaryStorer = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = time.Second * 5
	}

	httpc := &http.Client{Timeout: timeout}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// execute runs the provided statements in a single transaction.
func (db *Database) execute(ctx context.Context, statements rqlitehttp.SQLStatements) error {
	resp, err := db.client.Execute(ctx, statements, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("statement %d: %s", idx, errStr)
	}

	return nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	return db.execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createSummaryTableSQL},
		{SQL: createDailyTableSQL},
		{SQL: createOutcomeTableSQL},
	})
}

// summaryStatements returns the upsert statements of the provided summaries.
func summaryStatements(summaries []shared.SessionSummary) rqlitehttp.SQLStatements {
	statements := make(rqlitehttp.SQLStatements, 0, len(summaries))
	for idx := range summaries {
		statements = append(statements, &rqlitehttp.SQLStatement{
			SQL:              persistSummarySQL,
			PositionalParams: summaryArgs(&summaries[idx], true),
		})
	}

	return statements
}

// dailyStatements returns the upsert statements of the provided daily summaries.
func dailyStatements(days []shared.DailySummary) rqlitehttp.SQLStatements {
	statements := make(rqlitehttp.SQLStatements, 0, len(days))
	for idx := range days {
		statements = append(statements, &rqlitehttp.SQLStatement{
			SQL:              persistDailySQL,
			PositionalParams: dailyArgs(&days[idx]),
		})
	}

	return statements
}

// outcomeStatements returns the upsert statements of the provided outcomes.
func outcomeStatements(outcomes []position.Outcome) rqlitehttp.SQLStatements {
	statements := make(rqlitehttp.SQLStatements, 0, len(outcomes))
	for idx := range outcomes {
		statements = append(statements, &rqlitehttp.SQLStatement{
			SQL:              persistOutcomeSQL,
			PositionalParams: outcomeArgs(&outcomes[idx], true),
		})
	}

	return statements
}

// PersistSummaries stores the provided summaries, replacing any stored summary of the same
// date and session.
func (db *Database) PersistSummaries(ctx context.Context, summaries []shared.SessionSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	err := db.execute(ctx, summaryStatements(summaries))
	if err != nil {
		return fmt.Errorf("persisting %d summaries: %w", len(summaries), err)
	}

	db.cfg.Logger.Info().Msgf("persisted %d session summaries", len(summaries))
	return nil
}

// FetchSummaries returns the stored summaries whose session window opens in [start, end).
func (db *Database) FetchSummaries(ctx context.Context, start time.Time, end time.Time) ([]shared.SessionSummary, error) {
	resp, err := db.client.Query(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              fetchSummariesSQL,
			PositionalParams: []any{formatTime(start), formatTime(end)},
		},
	}, &rqlitehttp.QueryOptions{Associative: true})
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}

	has, idx, errStr := resp.HasError()
	if has {
		return nil, fmt.Errorf("querying summaries: statement %d: %s", idx, errStr)
	}

	var summaries []shared.SessionSummary
	for _, result := range resp.GetQueryResultsAssoc() {
		for _, row := range result.Rows {
			summary, err := decodeSummary(row)
			if err != nil {
				db.cfg.Logger.Error().Msgf("decoding summary row: %v\n%s", err, spew.Sdump(row))
				continue
			}
			summaries = append(summaries, summary)
		}
	}

	return summaries, nil
}

// PersistDaily stores the provided daily summaries, replacing any stored summary of the
// same date.
func (db *Database) PersistDaily(ctx context.Context, days []shared.DailySummary) error {
	if len(days) == 0 {
		return nil
	}

	err := db.execute(ctx, dailyStatements(days))
	if err != nil {
		return fmt.Errorf("persisting %d daily summaries: %w", len(days), err)
	}

	db.cfg.Logger.Info().Msgf("persisted %d daily summaries", len(days))
	return nil
}

// PersistOutcomes stores the provided trade outcomes, replacing any stored outcome of the
// same id.
func (db *Database) PersistOutcomes(ctx context.Context, outcomes []position.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	err := db.execute(ctx, outcomeStatements(outcomes))
	if err != nil {
		return fmt.Errorf("persisting %d outcomes: %w", len(outcomes), err)
	}

	db.cfg.Logger.Info().Msgf("persisted %d trade outcomes", len(outcomes))
	return nil
}
