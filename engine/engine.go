package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dnldd/marketprofile/market"
	"github.com/dnldd/marketprofile/position"
	"github.com/dnldd/marketprofile/shared"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// tradeNamespace scopes deterministic trade ids.
var tradeNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("marketprofile.trade"))

// TickSlicer defines the requirements for slicing the loaded tick set.
type TickSlicer interface {
	// Slice returns the time-ordered ticks in [start, end).
	Slice(start time.Time, end time.Time) []shared.Tick
}

// EngineConfig represents the strategy engine configuration.
type EngineConfig struct {
	// Strategies are the strategies evaluated.
	Strategies []Strategy
	// Ticks is the tick set trades are simulated over.
	Ticks TickSlicer
	// SnapshotSize is the number of summaries of history kept for strategies.
	SnapshotSize int32
	// Workers is the maximum number of concurrent simulation workers.
	Workers int
	// PersistOutcomes persists the provided batch of trade outcomes.
	PersistOutcomes func(ctx context.Context, outcomes []position.Outcome) error
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *EngineConfig) Validate() error {
	var errs error

	if cfg.Ticks == nil {
		errs = errors.Join(errs, fmt.Errorf("tick slicer cannot be nil"))
	}
	if cfg.SnapshotSize < 0 {
		errs = errors.Join(errs, fmt.Errorf("snapshot size cannot be negative, got %d", cfg.SnapshotSize))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	seen := make(map[string]bool, len(cfg.Strategies))
	for _, strategy := range cfg.Strategies {
		if seen[strategy.Name()] {
			errs = errors.Join(errs, fmt.Errorf("duplicate strategy %s", strategy.Name()))
		}
		seen[strategy.Name()] = true
	}

	return errs
}

// Result represents the outcomes of a strategy run.
type Result struct {
	// Outcomes are ordered by strategy and then signal.
	Outcomes []position.Outcome
	// Reports aggregate the outcomes of each strategy.
	Reports map[string]*position.Report
}

// Engine evaluates strategies over session summaries and backtests their signals.
type Engine struct {
	cfg         *EngineConfig
	backtest    *position.Manager
	horizons    map[string]time.Time
	horizonsMtx sync.RWMutex
}

// NewEngine initializes a new strategy engine.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		horizons: make(map[string]time.Time),
	}

	e.backtest, err = position.NewManager(&position.ManagerConfig{
		FetchPrices:     e.fetchPrices,
		PersistOutcomes: cfg.PersistOutcomes,
		Workers:         cfg.Workers,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating backtest manager: %w", err)
	}

	return e, nil
}

// fetchPrices returns the prices of the provided trade, from entry to its horizon.
func (e *Engine) fetchPrices(_ context.Context, spec *position.TradeSpec) ([]shared.PricePoint, error) {
	e.horizonsMtx.RLock()
	until, ok := e.horizons[spec.ID]
	e.horizonsMtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no price horizon for trade %s", spec.ID)
	}

	return shared.PricePoints(e.cfg.Ticks.Slice(spec.EntryTime, until)), nil
}

// TradeID returns the deterministic id of a trade.
func TradeID(strategy string, key string, entry time.Time) string {
	name := strategy + "/" + key + "/" + entry.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(tradeNamespace, []byte(name)).String()
}

// Signals evaluates every strategy over the provided summaries in session order and
// returns the signals of each strategy.
func (e *Engine) Signals(summaries []shared.SessionSummary, levels []market.KeyLevels) (map[string][]Signal, error) {
	size := e.cfg.SnapshotSize
	if size == 0 {
		size = shared.SummarySnapshotSize
	}

	history, err := shared.NewSummarySnapshot(size)
	if err != nil {
		return nil, fmt.Errorf("creating summary snapshot: %w", err)
	}

	ordered := make([]*shared.SessionSummary, 0, len(summaries))
	for idx := range summaries {
		ordered = append(ordered, &summaries[idx])
	}
	slices.SortStableFunc(ordered, func(a, b *shared.SessionSummary) int {
		return a.WindowStart.Compare(b.WindowStart)
	})

	byKey := make(map[string]*market.KeyLevels, len(levels))
	for idx := range levels {
		byKey[levels[idx].Date+"/"+levels[idx].Session] = &levels[idx]
	}

	signals := make(map[string][]Signal, len(e.cfg.Strategies))
	for _, summary := range ordered {
		history.Update(summary)
		kl := byKey[summary.Key()]
		for _, strategy := range e.cfg.Strategies {
			signals[strategy.Name()] = append(signals[strategy.Name()], strategy.Evaluate(history, kl)...)
		}
	}

	return signals, nil
}

// resolve fixes the entry time of a triggered signal to the first price reaching its entry.
// It reports false when no price reaches the entry before the signal's horizon.
func (e *Engine) resolve(signal *Signal) bool {
	if !signal.Trigger {
		return true
	}

	spec := &signal.Spec
	ticks := e.cfg.Ticks.Slice(spec.EntryTime, signal.Until)
	for idx := range ticks {
		if touched(spec.Direction, ticks[idx].Last, spec.EntryPrice) {
			spec.EntryTime = ticks[idx].Timestamp
			return true
		}
	}

	return false
}

// Run evaluates every strategy and backtests the resulting trades.
func (e *Engine) Run(ctx context.Context, summaries []shared.SessionSummary, levels []market.KeyLevels) (*Result, error) {
	signals, err := e.Signals(summaries, levels)
	if err != nil {
		return nil, err
	}

	var specs []position.TradeSpec
	horizons := make(map[string]time.Time)
	for _, strategy := range e.cfg.Strategies {
		name := strategy.Name()
		var untriggered int
		for idx := range signals[name] {
			signal := &signals[name][idx]
			if !e.resolve(signal) {
				untriggered++
				continue
			}

			signal.Spec.ID = TradeID(name, signal.Key, signal.Spec.EntryTime)
			horizons[signal.Spec.ID] = signal.Until
			specs = append(specs, signal.Spec)
		}

		e.cfg.Logger.Info().Msgf("%s: %d signals, %d never reached entry",
			name, len(signals[name]), untriggered)
	}

	e.horizonsMtx.Lock()
	e.horizons = horizons
	e.horizonsMtx.Unlock()

	outcomes, _, err := e.backtest.Run(ctx, specs)
	if err != nil {
		return nil, fmt.Errorf("running backtest: %w", err)
	}

	byStrategy := make(map[string][]position.Outcome, len(e.cfg.Strategies))
	for idx := range outcomes {
		byStrategy[outcomes[idx].Strategy] = append(byStrategy[outcomes[idx].Strategy], outcomes[idx])
	}

	result := &Result{
		Outcomes: outcomes,
		Reports:  make(map[string]*position.Report, len(e.cfg.Strategies)),
	}
	for _, strategy := range e.cfg.Strategies {
		report := position.NewReport(byStrategy[strategy.Name()])
		result.Reports[strategy.Name()] = report
		e.cfg.Logger.Info().Msgf("%s backtest: %s", strategy.Name(), report.String())
	}

	return result, nil
}
