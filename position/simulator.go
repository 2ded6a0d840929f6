package position

import (
	"errors"
	"fmt"
	"time"

	"github.com/dnldd/marketprofile/shared"
	"github.com/rs/zerolog"
)

// SimulatorConfig represents the trade lifecycle simulator configuration.
type SimulatorConfig struct {
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *SimulatorConfig) Validate() error {
	var errs error

	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Simulator walks trades forward through time-ordered prices.
type Simulator struct {
	cfg *SimulatorConfig
}

// NewSimulator initializes a new trade lifecycle simulator.
func NewSimulator(cfg *SimulatorConfig) (*Simulator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Simulator{cfg: cfg}, nil
}

// trade is the mutable state of a simulated trade.
type trade struct {
	spec       *TradeSpec
	sign       float64
	stop       float64
	open       float64
	nextTarget int
	fills      []Fill
}

// stopBreached checks whether the provided price breaches the current stop.
func (t *trade) stopBreached(price float64) bool {
	return t.sign*(price-t.stop) <= 0
}

// targetReached checks whether the provided price reaches the provided target.
func (t *trade) targetReached(target *Target, price float64) bool {
	return t.sign*(price-target.Price) >= 0
}

// ratchet moves the stop to the provided level if it improves on the current stop.
func (t *trade) ratchet(level float64) {
	if t.sign*(level-t.stop) > 0 {
		t.stop = level
	}
}

// fill closes the provided fraction of the trade.
func (t *trade) fill(at time.Time, price float64, fraction float64, reason shared.ExitReason) {
	if fraction > t.open {
		fraction = t.open
	}
	t.open -= fraction
	t.fills = append(t.fills, Fill{
		Time:     at,
		Price:    price,
		Fraction: fraction,
		Reason:   reason,
	})
}

// closed checks whether the full size of the trade has been closed.
func (t *trade) closed() bool {
	return t.open <= fractionTolerance
}

// step evaluates the provided price point and reports whether the trade terminated.
func (t *trade) step(point *shared.PricePoint) (shared.ExitReason, bool) {
	price := point.Price
	elapsed := point.Time.Sub(t.spec.EntryTime)

	if t.stopBreached(price) {
		t.fill(point.Time, t.stop, t.open, shared.Stopped)
		return shared.Stopped, true
	}

	for t.nextTarget < len(t.spec.Targets) {
		target := &t.spec.Targets[t.nextTarget]
		if !t.targetReached(target, price) {
			break
		}

		fraction := target.Fraction
		if t.nextTarget == len(t.spec.Targets)-1 {
			fraction = t.open
		}
		t.fill(point.Time, target.Price, fraction, shared.TargetHit)
		t.nextTarget++

		switch target.Stop {
		case MoveToBreakeven:
			t.ratchet(t.spec.EntryPrice)
		case TrailTo:
			t.ratchet(target.TrailPrice)
		}

		if t.closed() {
			return shared.TargetHit, true
		}
	}

	if t.spec.BreakevenAfter > 0 && elapsed >= t.spec.BreakevenAfter {
		t.ratchet(t.spec.EntryPrice)
	}

	if t.spec.Timeout > 0 && elapsed >= t.spec.Timeout {
		t.fill(point.Time, price, t.open, shared.TimedOut)
		return shared.TimedOut, true
	}

	return shared.Running, false
}

// outcome derives the realized result of the terminated trade.
func (t *trade) outcome(reason shared.ExitReason) *Outcome {
	spec := t.spec
	last := t.fills[len(t.fills)-1]

	var pnl float64
	for _, fill := range t.fills {
		pnl += fill.Fraction * t.sign * (fill.Price - spec.EntryPrice)
	}
	pnl -= spec.Fee

	return &Outcome{
		ID:          spec.ID,
		Strategy:    spec.Strategy,
		Direction:   spec.Direction,
		EntryPrice:  spec.EntryPrice,
		EntryTime:   spec.EntryTime,
		InitialStop: spec.StopPrice,
		FinalStop:   t.stop,
		ExitPrice:   last.Price,
		ExitTime:    last.Time,
		Reason:      reason,
		Fills:       t.fills,
		PnL:         pnl,
		NetR:        pnl / spec.Risk(),
		Hold:        last.Time.Sub(spec.EntryTime),
	}
}

// Simulate walks the provided trade through the provided time-ordered prices until it
// stops out, fills its targets or times out. Prices before the entry time are ignored. A
// trade still open when the prices run out is closed at the last price.
func (s *Simulator) Simulate(spec *TradeSpec, prices []shared.PricePoint) (*Outcome, error) {
	err := spec.Validate()
	if err != nil {
		return nil, err
	}

	t := &trade{
		spec: spec,
		sign: spec.Direction.Sign(),
		stop: spec.StopPrice,
		open: 1,
	}

	var last *shared.PricePoint
	for idx := range prices {
		point := &prices[idx]
		if point.Time.Before(spec.EntryTime) {
			continue
		}
		last = point

		reason, done := t.step(point)
		if done {
			return t.outcome(reason), nil
		}
	}

	if last == nil {
		return nil, fmt.Errorf("%s: %w", spec.ID, ErrNoPrices)
	}

	s.cfg.Logger.Debug().Msgf("%s prices exhausted with %.2f open, closing at %f",
		spec.ID, t.open, last.Price)
	t.fill(last.Time, last.Price, t.open, shared.SessionEnd)

	return t.outcome(shared.SessionEnd), nil
}
