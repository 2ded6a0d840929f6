package market

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dnldd/marketprofile/shared"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	// defaultWorkers is the default number of concurrent summary workers.
	defaultWorkers = 4
)

// TickSource defines the requirements of the tick set summaries are built from.
type TickSource interface {
	shared.TickFetcher
	// Range returns the first and last tick timestamps, reporting false without ticks.
	Range() (time.Time, time.Time, bool)
}

// ManagerConfig represents the summary batch manager configuration.
type ManagerConfig struct {
	// Segmenter partitions time into sessions.
	Segmenter *shared.Segmenter
	// Ticks is the tick set summaries are built from.
	Ticks TickSource
	// Summary is the session summary builder configuration.
	Summary SummaryConfig
	// Workers is the maximum number of concurrent summary workers.
	Workers int
	// PersistSummaries persists the provided batch of summaries.
	PersistSummaries func(ctx context.Context, summaries []shared.SessionSummary) error
	// ATRPeriod is the daily average true range period. Zero uses the default.
	ATRPeriod int32
	// PersistDaily persists the provided batch of daily summaries.
	PersistDaily func(ctx context.Context, days []shared.DailySummary) error
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if cfg.Segmenter == nil {
		errs = errors.Join(errs, fmt.Errorf("segmenter cannot be nil"))
	}
	if cfg.Ticks == nil {
		errs = errors.Join(errs, fmt.Errorf("tick source cannot be nil"))
	}
	if cfg.Workers < 0 {
		errs = errors.Join(errs, fmt.Errorf("workers cannot be negative, got %d", cfg.Workers))
	}
	if cfg.ATRPeriod < 0 {
		errs = errors.Join(errs, fmt.Errorf("atr period cannot be negative, got %d", cfg.ATRPeriod))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// BatchStats represents the counts of a summary batch.
type BatchStats struct {
	Sessions    int64
	Unavailable int64
	Empty       int64
}

// Manager builds the session summaries of a tick set.
type Manager struct {
	cfg         *ManagerConfig
	builder     *SummaryBuilder
	workers     chan struct{}
	sessions    atomic.Int64
	unavailable atomic.Int64
	empty       atomic.Int64
}

// NewManager initializes a new summary batch manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.Summary.Logger == nil {
		cfg.Summary.Logger = cfg.Logger
	}

	builder, err := NewSummaryBuilder(&cfg.Summary)
	if err != nil {
		return nil, fmt.Errorf("creating summary builder: %w", err)
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = defaultWorkers
	}

	return &Manager{
		cfg:     cfg,
		builder: builder,
		workers: make(chan struct{}, workers),
	}, nil
}

// Sessions returns every session of every day covered by the tick set, ordered by session
// start and then table order.
func (m *Manager) Sessions() []shared.Session {
	first, last, ok := m.cfg.Ticks.Range()
	if !ok {
		return nil
	}

	// Start from the owning day of any wrapping session holding the first tick.
	start := first
	for _, session := range m.cfg.Segmenter.Assign(first) {
		if session.Date.Before(start) {
			start = session.Date
		}
	}

	sessions := m.cfg.Segmenter.SessionsBetween(start, last)
	slices.SortStableFunc(sessions, func(a, b shared.Session) int {
		return a.Start.Compare(b.Start)
	})

	return sessions
}

// Stats returns the counts of the last batch.
func (m *Manager) Stats() BatchStats {
	return BatchStats{
		Sessions:    m.sessions.Load(),
		Unavailable: m.unavailable.Load(),
		Empty:       m.empty.Load(),
	}
}

// buildSummary builds the summary of the provided session.
func (m *Manager) buildSummary(ctx context.Context, session *shared.Session) (shared.SessionSummary, error) {
	ticks, err := m.cfg.Ticks.FetchTicks(ctx, session.Start, session.End)
	if err != nil {
		return shared.SessionSummary{}, fmt.Errorf("fetching %s %s ticks: %w", session.Day(), session.Name, err)
	}

	summary := m.builder.Build(session, ticks)

	m.sessions.Inc()
	switch {
	case summary.Ticks == 0:
		m.empty.Inc()
	case !summary.ProfileAvailable():
		m.unavailable.Inc()
		m.cfg.Logger.Warn().Msgf("%s profile unavailable: %s", summary.Key(), summary.ProfileStatus)
	}

	return summary, nil
}

// BuildSummaries builds the summaries of every session covered by the tick set on the
// worker pool and persists them as one batch.
func (m *Manager) BuildSummaries(ctx context.Context) ([]shared.SessionSummary, error) {
	m.sessions.Store(0)
	m.unavailable.Store(0)
	m.empty.Store(0)

	sessions := m.Sessions()
	summaries := make([]shared.SessionSummary, len(sessions))

	var wg sync.WaitGroup
	var errMtx sync.Mutex
	var errs error

	for idx := range sessions {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case m.workers <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int) {
			defer func() {
				<-m.workers
				wg.Done()
			}()

			summary, err := m.buildSummary(ctx, &sessions[idx])
			if err != nil {
				errMtx.Lock()
				errs = errors.Join(errs, err)
				errMtx.Unlock()
				return
			}

			summaries[idx] = summary
		}(idx)
	}

	wg.Wait()
	if errs != nil {
		return nil, errs
	}

	stats := m.Stats()
	m.cfg.Logger.Info().Msgf("built %d session summaries, %d without ticks, %d with unavailable profiles",
		stats.Sessions, stats.Empty, stats.Unavailable)

	if m.cfg.PersistSummaries != nil {
		err := m.cfg.PersistSummaries(ctx, summaries)
		if err != nil {
			return nil, fmt.Errorf("persisting summaries: %w", err)
		}
	}

	return summaries, nil
}
