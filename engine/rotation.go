package engine

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dnldd/marketprofile/market"
	"github.com/dnldd/marketprofile/position"
	"github.com/dnldd/marketprofile/shared"
)

// MondayRotationConfig represents the Monday rotation configuration.
type MondayRotationConfig struct {
	// TickSize is the minimum price increment.
	TickSize float64
	// ToleranceTicks is how far beyond the Monday range a session must trade.
	ToleranceTicks int
	// StopFraction is the stop distance as a fraction of the Monday range.
	StopFraction float64
	// MidFraction is the share of the size closed at the Monday mid.
	MidFraction float64
	// Timeout closes the trade once elapsed.
	Timeout time.Duration
	// Sessions are the sessions breakouts are faded in.
	Sessions []string
}

// DefaultMondayRotationConfig returns the default Monday rotation configuration.
func DefaultMondayRotationConfig(tickSize float64) MondayRotationConfig {
	return MondayRotationConfig{
		TickSize:       tickSize,
		ToleranceTicks: 15,
		StopFraction:   0.3,
		MidFraction:    0.5,
		Timeout:        24 * time.Hour,
		Sessions:       []string{shared.NewYork},
	}
}

// Validate asserts the config sane inputs.
func (cfg *MondayRotationConfig) Validate() error {
	var errs error

	if cfg.TickSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("tick size must be positive, got %f", cfg.TickSize))
	}
	if cfg.ToleranceTicks < 0 {
		errs = errors.Join(errs, fmt.Errorf("tolerance cannot be negative, got %d", cfg.ToleranceTicks))
	}
	if cfg.StopFraction <= 0 {
		errs = errors.Join(errs, fmt.Errorf("stop fraction must be positive, got %f", cfg.StopFraction))
	}
	if cfg.MidFraction <= 0 || cfg.MidFraction >= 1 {
		errs = errors.Join(errs, fmt.Errorf("mid fraction must be in (0, 1), got %f", cfg.MidFraction))
	}
	if cfg.Timeout <= 0 {
		errs = errors.Join(errs, fmt.Errorf("timeout must be positive, got %v", cfg.Timeout))
	}
	if len(cfg.Sessions) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no breakout sessions provided"))
	}

	return errs
}

// MondayRotation fades sessions breaking out of the Monday range back into it.
type MondayRotation struct {
	cfg *MondayRotationConfig
}

// Ensure the monday rotation satisfies the strategy interface.
var _ Strategy = (*MondayRotation)(nil)

// NewMondayRotation initializes a new Monday rotation strategy.
func NewMondayRotation(cfg *MondayRotationConfig) (*MondayRotation, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &MondayRotation{cfg: cfg}, nil
}

// Name returns the name of the strategy.
func (s *MondayRotation) Name() string {
	return MondayRotationName
}

// Evaluate signals a fade from the close of a session breaking the Monday range. The first
// target is the Monday mid, the second the opposite Monday extreme.
func (s *MondayRotation) Evaluate(history *shared.SummarySnapshot, levels *market.KeyLevels) []Signal {
	latest := history.Last()
	if latest == nil || levels == nil || !slices.Contains(s.cfg.Sessions, latest.Session) {
		return nil
	}
	if latest.High == nil || latest.Low == nil || latest.Close == nil || latest.SessionEnd == nil {
		return nil
	}
	if levels.MondayHigh == nil || levels.MondayLow == nil || levels.MondayMid == nil {
		return nil
	}

	high, low, mid := *levels.MondayHigh, *levels.MondayLow, *levels.MondayMid
	monRange := high - low
	if monRange <= 0 {
		return nil
	}

	tolerance := float64(s.cfg.ToleranceTicks) * s.cfg.TickSize

	var direction shared.Direction
	var opposite float64
	switch {
	case *latest.High > high+tolerance:
		direction, opposite = shared.Short, low
	case *latest.Low < low-tolerance:
		direction, opposite = shared.Long, high
	default:
		return nil
	}

	entry := *latest.Close
	sign := direction.Sign()

	// A close already beyond the mid has no rotation left to fade.
	if sign*(mid-entry) <= 0 {
		return nil
	}

	return []Signal{{
		Spec: position.TradeSpec{
			Strategy:   s.Name(),
			Direction:  direction,
			EntryPrice: entry,
			EntryTime:  *latest.SessionEnd,
			StopPrice:  entry - sign*s.cfg.StopFraction*monRange,
			Targets: []position.Target{
				{Price: mid, Fraction: s.cfg.MidFraction, Stop: position.MoveToBreakeven},
				{Price: opposite, Fraction: 1 - s.cfg.MidFraction},
			},
			Timeout: s.cfg.Timeout,
		},
		Key:   latest.Key(),
		Until: latest.SessionEnd.Add(s.cfg.Timeout).Add(time.Nanosecond),
	}}
}
