package engine

import (
	"fmt"
	"time"

	"github.com/dnldd/marketprofile/market"
	"github.com/dnldd/marketprofile/position"
	"github.com/dnldd/marketprofile/shared"
)

const (
	// Strategy names.
	SinglePrintFadeName = "single_print_fade"
	MondayRotationName  = "monday_rotation"
	IBBreakName         = "ib_break"
)

// Signal represents a trade a strategy wants to take.
type Signal struct {
	// Spec is the trade to simulate. Its id is assigned by the engine.
	Spec position.TradeSpec
	// Key identifies the session that produced the signal.
	Key string
	// Until bounds the prices the trade is simulated over.
	Until time.Time
	// Trigger defers entry to the first price reaching the entry price at or after the
	// spec's entry time.
	Trigger bool
}

// Strategy turns a history of session summaries into trade signals.
type Strategy interface {
	// Name returns the name of the strategy.
	Name() string
	// Evaluate inspects the history once its latest summary completes. The key levels in
	// effect for the latest summary are nil when unavailable.
	Evaluate(history *shared.SummarySnapshot, levels *market.KeyLevels) []Signal
}

// touched checks whether the provided price reaches a triggered entry.
func touched(direction shared.Direction, price float64, entry float64) bool {
	if direction == shared.Short {
		return price >= entry
	}

	return price <= entry
}

// scaleOut returns the two stage targets used by the breakout strategies: half the size at
// the first multiple of risk with the stop moved to entry, the remainder at the second.
func scaleOut(direction shared.Direction, entry float64, stop float64, first float64, second float64) []position.Target {
	return []position.Target{
		{
			Price:    position.PriceAtR(direction, entry, stop, first),
			Fraction: 0.5,
			Stop:     position.MoveToBreakeven,
		},
		{
			Price:    position.PriceAtR(direction, entry, stop, second),
			Fraction: 0.5,
		},
	}
}

// NewStrategies initializes the named strategies with their default configurations.
func NewStrategies(names []string, tickSize float64) ([]Strategy, error) {
	strategies := make([]Strategy, 0, len(names))
	for _, name := range names {
		var strategy Strategy
		var err error
		switch name {
		case SinglePrintFadeName:
			cfg := DefaultSinglePrintFadeConfig(tickSize)
			strategy, err = NewSinglePrintFade(&cfg)
		case MondayRotationName:
			cfg := DefaultMondayRotationConfig(tickSize)
			strategy, err = NewMondayRotation(&cfg)
		case IBBreakName:
			cfg := DefaultIBBreakConfig()
			strategy, err = NewIBBreak(&cfg)
		default:
			return nil, fmt.Errorf("unknown strategy '%s'", name)
		}
		if err != nil {
			return nil, fmt.Errorf("creating %s strategy: %w", name, err)
		}

		strategies = append(strategies, strategy)
	}

	return strategies, nil
}
