package engine

import (
	"errors"
	"fmt"

	"github.com/dnldd/marketprofile/market"
	"github.com/dnldd/marketprofile/position"
	"github.com/dnldd/marketprofile/shared"
)

// IBBreakConfig represents the initial balance break configuration.
type IBBreakConfig struct {
	// Session is the session whose close below its initial balance low is traded.
	Session string
	// FirstTargetR and SecondTargetR are the target multiples of risk.
	FirstTargetR  float64
	SecondTargetR float64
}

// DefaultIBBreakConfig returns the default initial balance break configuration.
func DefaultIBBreakConfig() IBBreakConfig {
	return IBBreakConfig{
		Session:       shared.NewYork,
		FirstTargetR:  1,
		SecondTargetR: 2,
	}
}

// Validate asserts the config sane inputs.
func (cfg *IBBreakConfig) Validate() error {
	var errs error

	if cfg.Session == "" {
		errs = errors.Join(errs, fmt.Errorf("session cannot be an empty string"))
	}
	if cfg.FirstTargetR <= 0 || cfg.SecondTargetR <= cfg.FirstTargetR {
		errs = errors.Join(errs, fmt.Errorf("target multiples must be positive and ascending, got %f and %f",
			cfg.FirstTargetR, cfg.SecondTargetR))
	}

	return errs
}

// IBBreak shorts the session following a close below the initial balance low.
type IBBreak struct {
	cfg *IBBreakConfig
}

// Ensure the initial balance break satisfies the strategy interface.
var _ Strategy = (*IBBreak)(nil)

// NewIBBreak initializes a new initial balance break strategy.
func NewIBBreak(cfg *IBBreakConfig) (*IBBreak, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &IBBreak{cfg: cfg}, nil
}

// Name returns the name of the strategy.
func (s *IBBreak) Name() string {
	return IBBreakName
}

// Evaluate signals a short at the open of the first session starting after a close below
// the initial balance low, with the stop at the initial balance low.
func (s *IBBreak) Evaluate(history *shared.SummarySnapshot, _ *market.KeyLevels) []Signal {
	window := history.LastN(2)
	if len(window) < 2 {
		return nil
	}

	latest, prev := window[1], window[0]
	breakout := history.LastSession(s.cfg.Session, 0)
	if breakout == nil || breakout == latest {
		return nil
	}

	// The latest session must be the first to open once the breakout session closed.
	if latest.WindowStart.Before(breakout.WindowEnd) || !prev.WindowStart.Before(breakout.WindowEnd) {
		return nil
	}
	if breakout.Close == nil || breakout.IBLow == nil || *breakout.Close >= *breakout.IBLow {
		return nil
	}
	if latest.Open == nil || latest.SessionStart == nil {
		return nil
	}

	entry := *latest.Open
	stop := *breakout.IBLow
	if entry >= stop {
		return nil
	}

	return []Signal{{
		Spec: position.TradeSpec{
			Strategy:   s.Name(),
			Direction:  shared.Short,
			EntryPrice: entry,
			EntryTime:  *latest.SessionStart,
			StopPrice:  stop,
			Targets:    scaleOut(shared.Short, entry, stop, s.cfg.FirstTargetR, s.cfg.SecondTargetR),
		},
		Key:   breakout.Key() + ">" + latest.Key(),
		Until: latest.WindowEnd,
	}}
}
