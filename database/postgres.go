package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dnldd/marketprofile/position"
	"github.com/dnldd/marketprofile/shared"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	// SQL statements.
	createSummaryTablePgSQL = `CREATE TABLE IF NOT EXISTS session_summary (
		date TEXT NOT NULL, session TEXT NOT NULL,
		window_start TIMESTAMPTZ NOT NULL, window_end TIMESTAMPTZ NOT NULL,
		session_start TIMESTAMPTZ, session_end TIMESTAMPTZ,
		open DOUBLE PRECISION, high DOUBLE PRECISION, low DOUBLE PRECISION, close DOUBLE PRECISION,
		volume DOUBLE PRECISION, delta DOUBLE PRECISION, vpoc DOUBLE PRECISION,
		tpo_poc DOUBLE PRECISION, vah DOUBLE PRECISION, val DOUBLE PRECISION,
		ib_high DOUBLE PRECISION, ib_low DOUBLE PRECISION,
		poor_high BOOLEAN NOT NULL, poor_high_price DOUBLE PRECISION,
		poor_low BOOLEAN NOT NULL, poor_low_price DOUBLE PRECISION,
		single_prints BOOLEAN NOT NULL, sp_high DOUBLE PRECISION, sp_low DOUBLE PRECISION,
		asr DOUBLE PRECISION, vwap DOUBLE PRECISION,
		ticks INTEGER NOT NULL, profile_status TEXT NOT NULL,
		PRIMARY KEY (date, session))`
	createDailyTablePgSQL = `CREATE TABLE IF NOT EXISTS daily_summary (
		date TEXT PRIMARY KEY,
		open DOUBLE PRECISION, high DOUBLE PRECISION, low DOUBLE PRECISION, close DOUBLE PRECISION,
		volume DOUBLE PRECISION, delta DOUBLE PRECISION,
		true_range DOUBLE PRECISION, atr DOUBLE PRECISION, ticks INTEGER NOT NULL)`
	createOutcomeTablePgSQL = `CREATE TABLE IF NOT EXISTS trade_outcome (
		id TEXT PRIMARY KEY, strategy TEXT NOT NULL, direction TEXT NOT NULL,
		entry_price DOUBLE PRECISION, entry_time TIMESTAMPTZ,
		initial_stop DOUBLE PRECISION, final_stop DOUBLE PRECISION,
		exit_price DOUBLE PRECISION, exit_time TIMESTAMPTZ, reason TEXT NOT NULL,
		fills INTEGER, pnl DOUBLE PRECISION, net_r DOUBLE PRECISION, hold_seconds DOUBLE PRECISION)`
)

var (
	persistSummaryPgSQL = upsertSQL("session_summary", summaryColumns, []string{"date", "session"})
	persistDailyPgSQL   = upsertSQL("daily_summary", dailyColumns, []string{"date"})
	persistOutcomePgSQL = upsertSQL("trade_outcome", outcomeColumns, []string{"id"})
	fetchSummariesPgSQL = fmt.Sprintf("SELECT %s FROM session_summary WHERE window_start >= $1 AND window_start < $2 "+
		"ORDER BY window_start, session", strings.Join(summaryColumns, ", "))
)

// upsertSQL returns an insert statement that overwrites rows conflicting on the provided keys.
func upsertSQL(table string, columns []string, keys []string) string {
	updates := make([]string, 0, len(columns))
	for _, column := range columns {
		isKey := false
		for _, key := range keys {
			if column == key {
				isKey = true
				break
			}
		}
		if isKey {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(columns, ", "), placeholders(len(columns), true),
		strings.Join(keys, ", "), strings.Join(updates, ", "))
}

// PostgresConfig is the configuration for the postgres database.
type PostgresConfig struct {
	// DSN is the postgres connection string.
	DSN string
	// MaxConns is the maximum number of pooled connections.
	MaxConns int32
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *PostgresConfig) Validate() error {
	var errs error

	if cfg.DSN == "" {
		errs = errors.Join(errs, fmt.Errorf("postgres dsn cannot be an empty string"))
	}
	if cfg.MaxConns < 0 {
		errs = errors.Join(errs, fmt.Errorf("max connections cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Postgres represents the postgres database connection pool.
type Postgres struct {
	cfg  *PostgresConfig
	pool *pgxpool.Pool
}

// Ensure postgres implements the SummaryStorer interface.
var _ SummaryStorer = (*Postgres)(nil)

// NewPostgres initializes a new postgres connection pool.
func NewPostgres(ctx context.Context, cfg *PostgresConfig) (*Postgres, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := &Postgres{cfg: cfg, pool: pool}

	err = db.bootstrap(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *Postgres) Close() {
	db.pool.Close()
}

// bootstrap initializes the database.
func (db *Postgres) bootstrap(ctx context.Context) error {
	for _, stmt := range []string{createSummaryTablePgSQL, createDailyTablePgSQL, createOutcomeTablePgSQL} {
		_, err := db.pool.Exec(ctx, stmt)
		if err != nil {
			return err
		}
	}

	return nil
}

// sendBatch runs the provided batch in a single transaction.
func (db *Postgres) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	results := tx.SendBatch(ctx, batch)
	for idx := 0; idx < batch.Len(); idx++ {
		_, err := results.Exec()
		if err != nil {
			results.Close()
			return fmt.Errorf("statement %d: %w", idx, err)
		}
	}

	err = results.Close()
	if err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	return tx.Commit(ctx)
}

// PersistSummaries stores the provided summaries, replacing any stored summary of the same
// date and session.
func (db *Postgres) PersistSummaries(ctx context.Context, summaries []shared.SessionSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for idx := range summaries {
		batch.Queue(persistSummaryPgSQL, summaryArgs(&summaries[idx], false)...)
	}

	err := db.sendBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("persisting %d summaries: %w", len(summaries), err)
	}

	db.cfg.Logger.Info().Msgf("persisted %d session summaries", len(summaries))
	return nil
}

// scanSummary scans a session summary row in column order.
func scanSummary(row pgx.Row) (shared.SessionSummary, error) {
	var s shared.SessionSummary
	var status string

	err := row.Scan(
		&s.Date, &s.Session, &s.WindowStart, &s.WindowEnd, &s.SessionStart, &s.SessionEnd,
		&s.Open, &s.High, &s.Low, &s.Close, &s.Volume, &s.Delta, &s.VPOC,
		&s.TPOPOC, &s.VAH, &s.VAL, &s.IBHigh, &s.IBLow,
		&s.PoorHigh, &s.PoorHighPrice, &s.PoorLow, &s.PoorLowPrice,
		&s.SinglePrints, &s.SPHigh, &s.SPLow, &s.ASR, &s.VWAP, &s.Ticks, &status,
	)
	if err != nil {
		return shared.SessionSummary{}, err
	}

	s.ProfileStatus = shared.ProfileStatus(status)
	return s, nil
}

// FetchSummaries returns the stored summaries whose session window opens in [start, end).
func (db *Postgres) FetchSummaries(ctx context.Context, start time.Time, end time.Time) ([]shared.SessionSummary, error) {
	rows, err := db.pool.Query(ctx, fetchSummariesPgSQL, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}
	defer rows.Close()

	var summaries []shared.SessionSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterating summaries: %w", err)
	}

	return summaries, nil
}

// PersistDaily stores the provided daily summaries, replacing any stored summary of the
// same date.
func (db *Postgres) PersistDaily(ctx context.Context, days []shared.DailySummary) error {
	if len(days) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for idx := range days {
		batch.Queue(persistDailyPgSQL, dailyArgs(&days[idx])...)
	}

	err := db.sendBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("persisting %d daily summaries: %w", len(days), err)
	}

	db.cfg.Logger.Info().Msgf("persisted %d daily summaries", len(days))
	return nil
}

// PersistOutcomes stores the provided trade outcomes, replacing any stored outcome of the
// same id.
func (db *Postgres) PersistOutcomes(ctx context.Context, outcomes []position.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for idx := range outcomes {
		batch.Queue(persistOutcomePgSQL, outcomeArgs(&outcomes[idx], false)...)
	}

	err := db.sendBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("persisting %d outcomes: %w", len(outcomes), err)
	}

	db.cfg.Logger.Info().Msgf("persisted %d trade outcomes", len(outcomes))
	return nil
}
