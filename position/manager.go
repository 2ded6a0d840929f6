package position

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dnldd/marketprofile/shared"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	// defaultWorkers is the default number of concurrent simulation workers.
	defaultWorkers = 4
)

// ManagerConfig represents the backtest manager configuration.
type ManagerConfig struct {
	// FetchPrices returns the time-ordered prices the provided trade is simulated over.
	FetchPrices func(ctx context.Context, spec *TradeSpec) ([]shared.PricePoint, error)
	// PersistOutcomes persists the provided batch of trade outcomes.
	PersistOutcomes func(ctx context.Context, outcomes []Outcome) error
	// Workers is the maximum number of concurrent simulation workers.
	Workers int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if cfg.FetchPrices == nil {
		errs = errors.Join(errs, fmt.Errorf("fetch prices function cannot be nil"))
	}
	if cfg.Workers < 0 {
		errs = errors.Join(errs, fmt.Errorf("workers cannot be negative, got %d", cfg.Workers))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// ReasonStats represents the aggregate results of trades sharing an exit reason.
type ReasonStats struct {
	Count    int
	AverageR float64
}

// Report represents the aggregate results of a backtest.
type Report struct {
	Trades   int
	Wins     int
	Losses   int
	HitRate  float64
	AverageR float64
	TotalR   float64
	ByReason map[string]ReasonStats
}

// NewReport aggregates the provided outcomes.
func NewReport(outcomes []Outcome) *Report {
	report := &Report{
		Trades:   len(outcomes),
		ByReason: make(map[string]ReasonStats),
	}

	totals := make(map[string]float64)
	for idx := range outcomes {
		outcome := &outcomes[idx]
		report.TotalR += outcome.NetR
		if outcome.Win() {
			report.Wins++
		} else {
			report.Losses++
		}

		reason := outcome.Reason.String()
		stats := report.ByReason[reason]
		stats.Count++
		report.ByReason[reason] = stats
		totals[reason] += outcome.NetR
	}

	if report.Trades > 0 {
		report.HitRate = float64(report.Wins) / float64(report.Trades)
		report.AverageR = report.TotalR / float64(report.Trades)
	}
	for reason, stats := range report.ByReason {
		stats.AverageR = totals[reason] / float64(stats.Count)
		report.ByReason[reason] = stats
	}

	return report
}

// String summarizes the report.
func (r *Report) String() string {
	reasons := make([]string, 0, len(r.ByReason))
	for reason := range r.ByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	summary := fmt.Sprintf("trades: %d, hit rate: %.1f%%, avg R: %.2f, total R: %.2f",
		r.Trades, r.HitRate*100, r.AverageR, r.TotalR)
	for _, reason := range reasons {
		stats := r.ByReason[reason]
		summary += fmt.Sprintf(", %s: %d (%.2fR)", reason, stats.Count, stats.AverageR)
	}

	return summary
}

// Manager runs batches of trade simulations.
type Manager struct {
	cfg       *ManagerConfig
	simulator *Simulator
	workers   chan struct{}
	simulated atomic.Int64
	skipped   atomic.Int64
}

// NewManager initializes a new backtest manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	simulator, err := NewSimulator(&SimulatorConfig{Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("creating simulator: %w", err)
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = defaultWorkers
	}

	return &Manager{
		cfg:       cfg,
		simulator: simulator,
		workers:   make(chan struct{}, workers),
	}, nil
}

// Counts returns the number of simulated and skipped trades of the last batch.
func (m *Manager) Counts() (int64, int64) {
	return m.simulated.Load(), m.skipped.Load()
}

// simulate runs the provided trade. Trades without prices or with invalid specs are
// skipped.
func (m *Manager) simulate(ctx context.Context, spec *TradeSpec) (*Outcome, error) {
	prices, err := m.cfg.FetchPrices(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("fetching %s prices: %w", spec.ID, err)
	}

	outcome, err := m.simulator.Simulate(spec, prices)
	switch {
	case errors.Is(err, ErrNoPrices), errors.Is(err, ErrInvalidSpec):
		m.skipped.Inc()
		m.cfg.Logger.Warn().Msgf("skipping %s trade %s: %v", spec.Strategy, spec.ID, err)
		return nil, nil
	case err != nil:
		return nil, err
	}

	m.simulated.Inc()
	return outcome, nil
}

// Run simulates the provided trades on the worker pool and persists the outcomes as one
// batch. Outcomes keep the order of their trades.
func (m *Manager) Run(ctx context.Context, specs []TradeSpec) ([]Outcome, *Report, error) {
	m.simulated.Store(0)
	m.skipped.Store(0)

	results := make([]*Outcome, len(specs))

	var wg sync.WaitGroup
	var errMtx sync.Mutex
	var errs error

	for idx := range specs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, nil, ctx.Err()
		case m.workers <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int) {
			defer func() {
				<-m.workers
				wg.Done()
			}()

			outcome, err := m.simulate(ctx, &specs[idx])
			if err != nil {
				errMtx.Lock()
				errs = errors.Join(errs, err)
				errMtx.Unlock()
				return
			}

			results[idx] = outcome
		}(idx)
	}

	wg.Wait()
	if errs != nil {
		return nil, nil, errs
	}

	outcomes := make([]Outcome, 0, len(results))
	for _, outcome := range results {
		if outcome != nil {
			outcomes = append(outcomes, *outcome)
		}
	}

	report := NewReport(outcomes)
	simulated, skipped := m.Counts()
	m.cfg.Logger.Info().Msgf("simulated %d trades, skipped %d, %s", simulated, skipped, report.String())

	if m.cfg.PersistOutcomes != nil && len(outcomes) > 0 {
		err := m.cfg.PersistOutcomes(ctx, outcomes)
		if err != nil {
			return nil, nil, fmt.Errorf("persisting outcomes: %w", err)
		}
	}

	return outcomes, report, nil
}
