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

// SinglePrintFadeConfig represents the single print fade configuration.
type SinglePrintFadeConfig struct {
	// TickSize is the minimum price increment.
	TickSize float64
	// EntryPadTicks offsets the entry beyond the single print edge.
	EntryPadTicks int
	// StopPadTicks offsets the stop beyond the single print edge.
	StopPadTicks int
	// Lookahead is the number of sessions after a flagged session an entry is allowed in.
	Lookahead int32
	// Sessions are the sessions entries are allowed in.
	Sessions []string
	// FirstTargetR and SecondTargetR are the target multiples of risk.
	FirstTargetR  float64
	SecondTargetR float64
	// BreakevenAfter moves the stop to entry once elapsed.
	BreakevenAfter time.Duration
}

// DefaultSinglePrintFadeConfig returns the default single print fade configuration.
func DefaultSinglePrintFadeConfig(tickSize float64) SinglePrintFadeConfig {
	return SinglePrintFadeConfig{
		TickSize:       tickSize,
		EntryPadTicks:  1,
		StopPadTicks:   2,
		Lookahead:      3,
		Sessions:       []string{shared.Asia, shared.London, shared.NewYork},
		FirstTargetR:   1,
		SecondTargetR:  2,
		BreakevenAfter: time.Hour,
	}
}

// Validate asserts the config sane inputs.
func (cfg *SinglePrintFadeConfig) Validate() error {
	var errs error

	if cfg.TickSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("tick size must be positive, got %f", cfg.TickSize))
	}
	if cfg.StopPadTicks <= cfg.EntryPadTicks {
		errs = errors.Join(errs, fmt.Errorf("stop pad (%d) must exceed entry pad (%d)",
			cfg.StopPadTicks, cfg.EntryPadTicks))
	}
	if cfg.Lookahead <= 0 {
		errs = errors.Join(errs, fmt.Errorf("lookahead must be positive, got %d", cfg.Lookahead))
	}
	if len(cfg.Sessions) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no entry sessions provided"))
	}
	if cfg.FirstTargetR <= 0 || cfg.SecondTargetR <= cfg.FirstTargetR {
		errs = errors.Join(errs, fmt.Errorf("target multiples must be positive and ascending, got %f and %f",
			cfg.FirstTargetR, cfg.SecondTargetR))
	}

	return errs
}

// SinglePrintFade fades the first revisit of a flagged session's single print edge.
type SinglePrintFade struct {
	cfg *SinglePrintFadeConfig
}

// Ensure the single print fade satisfies the strategy interface.
var _ Strategy = (*SinglePrintFade)(nil)

// NewSinglePrintFade initializes a new single print fade strategy.
func NewSinglePrintFade(cfg *SinglePrintFadeConfig) (*SinglePrintFade, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &SinglePrintFade{cfg: cfg}, nil
}

// Name returns the name of the strategy.
func (s *SinglePrintFade) Name() string {
	return SinglePrintFadeName
}

// revisit returns the fade direction of a session trading through the flagged session's
// single print edges.
func (s *SinglePrintFade) revisit(flagged *shared.SessionSummary, next *shared.SessionSummary) (shared.Direction, bool) {
	if !slices.Contains(s.cfg.Sessions, next.Session) || next.High == nil || next.Low == nil {
		return 0, false
	}

	switch {
	case *next.High >= *flagged.SPHigh:
		return shared.Short, true
	case *next.Low <= *flagged.SPLow:
		return shared.Long, true
	default:
		return 0, false
	}
}

// Evaluate signals a fade when the latest session is the first in the lookahead window of a
// flagged session to revisit its single print edge.
func (s *SinglePrintFade) Evaluate(history *shared.SummarySnapshot, _ *market.KeyLevels) []Signal {
	window := history.LastN(s.cfg.Lookahead + 1)
	if len(window) < 2 {
		return nil
	}

	latest := window[len(window)-1]
	if latest.SessionStart == nil {
		return nil
	}

	var signals []Signal
	for i := 0; i < len(window)-1; i++ {
		flagged := window[i]
		if !flagged.SinglePrints || flagged.SPHigh == nil || flagged.SPLow == nil {
			continue
		}

		direction, ok := s.revisit(flagged, latest)
		if !ok {
			continue
		}

		// Only the first revisit of the edge is traded.
		revisited := false
		for j := i + 1; j < len(window)-1; j++ {
			if _, ok := s.revisit(flagged, window[j]); ok {
				revisited = true
				break
			}
		}
		if revisited {
			continue
		}

		edge := *flagged.SPLow
		if direction == shared.Short {
			edge = *flagged.SPHigh
		}
		sign := direction.Sign()
		entry := edge - sign*float64(s.cfg.EntryPadTicks)*s.cfg.TickSize
		stop := edge - sign*float64(s.cfg.StopPadTicks)*s.cfg.TickSize

		signals = append(signals, Signal{
			Spec: position.TradeSpec{
				Strategy:       s.Name(),
				Direction:      direction,
				EntryPrice:     entry,
				EntryTime:      *latest.SessionStart,
				StopPrice:      stop,
				Targets:        scaleOut(direction, entry, stop, s.cfg.FirstTargetR, s.cfg.SecondTargetR),
				BreakevenAfter: s.cfg.BreakevenAfter,
			},
			Key:     flagged.Key() + ">" + latest.Key(),
			Until:   latest.WindowEnd,
			Trigger: true,
		})
	}

	return signals
}
