package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dnldd/marketprofile/database"
	"github.com/dnldd/marketprofile/engine"
	"github.com/dnldd/marketprofile/fetch"
	"github.com/dnldd/marketprofile/market"
	"github.com/dnldd/marketprofile/position"
	"github.com/dnldd/marketprofile/profile"
	"github.com/dnldd/marketprofile/shared"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"go.uber.org/atomic"
)

// StoreConfig represents the summary store configuration.
type StoreConfig struct {
	// Driver is the store driver, one of none, rqlite or postgres.
	Driver string
	// Endpoint is the rqlite endpoint.
	Endpoint string
	// User is the rqlite user.
	User string
	// Pass is the rqlite user pass.
	Pass string
	// PostgresDSN is the postgres connection string.
	PostgresDSN string
}

// ServiceConfig represents the configuration struct for the market profile service.
type ServiceConfig struct {
	// TickFile is the filepath to the tick data.
	TickFile string
	// TickFormat is the tick data format, csv or json.
	TickFormat string
	// TickLocation is the timezone of tick timestamps without zone information.
	TickLocation *time.Location
	// Segmenter is the session time-table and exchange location.
	Segmenter shared.SegmenterConfig
	// Profile is the market profile configuration.
	Profile profile.Config
	// Levels is the key level configuration.
	Levels market.LevelsConfig
	// Workers is the maximum number of concurrent workers per stage.
	Workers int
	// Strategies are the names of the backtested strategies.
	Strategies []string
	// TickSize is the instrument tick size used by strategy pads and tolerances.
	TickSize float64
	// ATRPeriod is the daily average true range period. Zero uses the default.
	ATRPeriod int32
	// SummariesCSV is the optional summary csv output path.
	SummariesCSV string
	// DailyCSV is the optional daily summary csv output path.
	DailyCSV string
	// LevelsCSV is the optional key level csv output path.
	LevelsCSV string
	// OutcomesCSV is the optional trade outcome csv output path.
	OutcomesCSV string
	// Store is the summary store configuration.
	Store StoreConfig
	// RebuildAt is the optional daily rebuild time, in exchange time.
	RebuildAt string
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config sane inputs.
func (cfg *ServiceConfig) Validate() error {
	var errs error

	if cfg.TickFile == "" {
		errs = errors.Join(errs, fmt.Errorf("tick filepath cannot be an empty string"))
	}
	if cfg.TickFormat != fetch.FormatCSV && cfg.TickFormat != fetch.FormatJSON {
		errs = errors.Join(errs, fmt.Errorf("unknown tick format '%s'", cfg.TickFormat))
	}
	if cfg.TickLocation == nil {
		errs = errors.Join(errs, fmt.Errorf("tick location cannot be nil"))
	}
	if cfg.Workers < 0 {
		errs = errors.Join(errs, fmt.Errorf("workers cannot be negative, got %d", cfg.Workers))
	}
	if cfg.ATRPeriod < 0 {
		errs = errors.Join(errs, fmt.Errorf("atr period cannot be negative, got %d", cfg.ATRPeriod))
	}
	if len(cfg.Strategies) > 0 && cfg.TickSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("tick size must be positive, got %v", cfg.TickSize))
	}
	if cfg.RebuildAt != "" {
		_, err := time.Parse(shared.SessionTimeLayout, cfg.RebuildAt)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("parsing rebuild time '%s': %w", cfg.RebuildAt, err))
		}
	}
	switch cfg.Store.Driver {
	case "", database.DriverNone:
	case database.DriverRqlite:
		if cfg.Store.Endpoint == "" {
			errs = errors.Join(errs, fmt.Errorf("rqlite endpoint cannot be an empty string"))
		}
	case database.DriverPostgres:
		if cfg.Store.PostgresDSN == "" {
			errs = errors.Join(errs, fmt.Errorf("postgres dsn cannot be an empty string"))
		}
	default:
		errs = errors.Join(errs, fmt.Errorf("unknown database driver '%s'", cfg.Store.Driver))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	errs = errors.Join(errs, cfg.Segmenter.Validate(), cfg.Profile.Validate(), cfg.Levels.Validate())

	return errs
}

// Result represents the products of a rebuild.
type Result struct {
	Summaries []shared.SessionSummary
	Daily     []shared.DailySummary
	Levels    []market.KeyLevels
	Stats     market.BatchStats
	// Trades is nil when no strategies are configured.
	Trades *engine.Result
}

// Service represents the market profile service.
type Service struct {
	cfg          *ServiceConfig
	segmenter    *shared.Segmenter
	strategies   []string
	store        database.SummaryStorer
	closeStore   func()
	jobScheduler *gocron.Scheduler
	logger       *zerolog.Logger
	rebuilds     atomic.Int64
}

// NewService initializes a new market profile service.
func NewService(ctx context.Context, cfg *ServiceConfig) (*Service, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "marketprofile").Logger()

	segmenter, err := shared.NewSegmenter(&cfg.Segmenter)
	if err != nil {
		return nil, fmt.Errorf("creating segmenter: %w", err)
	}

	// Ensure unknown strategies fail at startup rather than at the first rebuild.
	_, err = engine.NewStrategies(cfg.Strategies, cfg.TickSize)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:          cfg,
		segmenter:    segmenter,
		strategies:   cfg.Strategies,
		closeStore:   func() {},
		jobScheduler: gocron.NewScheduler(segmenter.Location()),
		logger:       &logger,
	}

	dbLogger := logger.With().Str("component", "database").Logger()
	switch cfg.Store.Driver {
	case database.DriverRqlite:
		db, err := database.NewDatabase(ctx, &database.DatabaseConfig{
			Endpoint: cfg.Store.Endpoint,
			User:     cfg.Store.User,
			Pass:     cfg.Store.Pass,
			Logger:   &dbLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating rqlite store: %w", err)
		}
		s.store = db
	case database.DriverPostgres:
		db, err := database.NewPostgres(ctx, &database.PostgresConfig{
			DSN:    cfg.Store.PostgresDSN,
			Logger: &dbLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		s.store = db
		s.closeStore = db.Close
	}

	return s, nil
}

// Rebuilds returns the number of completed rebuilds.
func (s *Service) Rebuilds() int64 {
	return s.rebuilds.Load()
}

// writeFile writes the output of the provided writer to a file at the provided path.
func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	err = write(f)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return f.Close()
}

// Rebuild loads the tick data and recomputes every summary, key level and strategy backtest.
func (s *Service) Rebuild(ctx context.Context) (*Result, error) {
	start := time.Now()

	ticksLogger := s.logger.With().Str("component", "tickstore").Logger()
	ticks, err := fetch.NewTickStore(&fetch.TickStoreConfig{
		FilePath: s.cfg.TickFile,
		Format:   s.cfg.TickFormat,
		Location: s.cfg.TickLocation,
		Logger:   &ticksLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating tick store: %w", err)
	}

	err = ticks.Load()
	if err != nil {
		return nil, fmt.Errorf("loading ticks: %w", err)
	}

	stats := ticks.Stats()
	if stats.Dropped > 0 {
		s.logger.Warn().Msgf("dropped %d of %d malformed tick records", stats.Dropped, stats.Records)
	}

	var persistSummaries func(ctx context.Context, summaries []shared.SessionSummary) error
	var persistDaily func(ctx context.Context, days []shared.DailySummary) error
	var persistOutcomes func(ctx context.Context, outcomes []position.Outcome) error
	if s.store != nil {
		persistSummaries = s.store.PersistSummaries
		persistDaily = s.store.PersistDaily
		persistOutcomes = s.store.PersistOutcomes
	}

	marketLogger := s.logger.With().Str("component", "marketmanager").Logger()
	marketMgr, err := market.NewManager(&market.ManagerConfig{
		Segmenter: s.segmenter,
		Ticks:     ticks,
		Summary: market.SummaryConfig{
			Profile: s.cfg.Profile,
			Logger:  &marketLogger,
		},
		Workers:          s.cfg.Workers,
		PersistSummaries: persistSummaries,
		ATRPeriod:        s.cfg.ATRPeriod,
		PersistDaily:     persistDaily,
		Logger:           &marketLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating market manager: %w", err)
	}

	summaries, err := marketMgr.BuildSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("building summaries: %w", err)
	}

	daily, err := marketMgr.BuildDaily(ctx)
	if err != nil {
		return nil, fmt.Errorf("building daily summaries: %w", err)
	}

	levels, err := market.DeriveKeyLevels(summaries, &s.cfg.Levels)
	if err != nil {
		return nil, fmt.Errorf("deriving key levels: %w", err)
	}

	result := &Result{
		Summaries: summaries,
		Daily:     daily,
		Levels:    levels,
		Stats:     marketMgr.Stats(),
	}

	if s.cfg.SummariesCSV != "" {
		err = writeFile(s.cfg.SummariesCSV, func(w io.Writer) error {
			return market.WriteSummariesCSV(w, summaries)
		})
		if err != nil {
			return nil, err
		}
	}

	if s.cfg.DailyCSV != "" {
		err = writeFile(s.cfg.DailyCSV, func(w io.Writer) error {
			return market.WriteDailyCSV(w, daily)
		})
		if err != nil {
			return nil, err
		}
	}

	if s.cfg.LevelsCSV != "" {
		err = writeFile(s.cfg.LevelsCSV, func(w io.Writer) error {
			return market.WriteKeyLevelsCSV(w, levels, s.cfg.Levels.RollingWindows)
		})
		if err != nil {
			return nil, err
		}
	}

	if len(s.strategies) > 0 {
		strategies, err := engine.NewStrategies(s.strategies, s.cfg.TickSize)
		if err != nil {
			return nil, err
		}

		engineLogger := s.logger.With().Str("component", "engine").Logger()
		strategyEngine, err := engine.NewEngine(&engine.EngineConfig{
			Strategies:      strategies,
			Ticks:           ticks,
			Workers:         s.cfg.Workers,
			PersistOutcomes: persistOutcomes,
			Logger:          &engineLogger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating engine: %w", err)
		}

		result.Trades, err = strategyEngine.Run(ctx, summaries, levels)
		if err != nil {
			return nil, fmt.Errorf("running strategies: %w", err)
		}

		if s.cfg.OutcomesCSV != "" {
			err = writeFile(s.cfg.OutcomesCSV, func(w io.Writer) error {
				return position.WriteOutcomesCSV(w, result.Trades.Outcomes)
			})
			if err != nil {
				return nil, err
			}
		}
	}

	s.rebuilds.Inc()
	s.logger.Info().Msgf("rebuilt %d session summaries in %v", len(summaries), time.Since(start))

	return result, nil
}

// Run handles the lifecycle processes of the market profile service. Without a rebuild time
// it rebuilds once and cancels the service context.
func (s *Service) Run(ctx context.Context) error {
	defer s.closeStore()

	_, err := s.Rebuild(ctx)
	if err != nil {
		s.cfg.Cancel()
		return err
	}

	if s.cfg.RebuildAt == "" {
		s.cfg.Cancel()
		return nil
	}

	s.jobScheduler.SingletonModeAll()
	_, err = s.jobScheduler.Every(1).Day().At(s.cfg.RebuildAt).Do(func() {
		_, err := s.Rebuild(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("scheduled rebuild failed")
		}
	})
	if err != nil {
		s.cfg.Cancel()
		return fmt.Errorf("scheduling rebuild: %w", err)
	}

	s.jobScheduler.StartAsync()
	s.logger.Info().Msgf("scheduled daily rebuilds at %s", s.cfg.RebuildAt)

	<-ctx.Done()
	s.jobScheduler.Stop()

	return nil
}
