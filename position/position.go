package position

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dnldd/marketprofile/shared"
)

var (
	// ErrNoPrices is returned when a trade has no prices at or after its entry.
	ErrNoPrices = errors.New("no prices to simulate")
	// ErrInvalidSpec is returned for trade specs that cannot be simulated.
	ErrInvalidSpec = errors.New("invalid trade spec")
)

// fractionTolerance absorbs float error when summing target fractions.
const fractionTolerance = 1e-9

// StopRule represents the stop adjustment applied once a target fills.
type StopRule int

const (
	HoldStop StopRule = iota
	MoveToBreakeven
	TrailTo
)

// String stringifies the provided stop rule.
func (r StopRule) String() string {
	switch r {
	case HoldStop:
		return "hold"
	case MoveToBreakeven:
		return "breakeven"
	case TrailTo:
		return "trail"
	default:
		return "unknown"
	}
}

// Target represents a scale-out level of a trade.
type Target struct {
	Price float64
	// Fraction is the share of the initial size closed at the target. The last target
	// closes whatever remains open.
	Fraction float64
	// Stop is the stop adjustment applied once the target fills.
	Stop StopRule
	// TrailPrice is the stop level applied by the trail rule.
	TrailPrice float64
}

// TradeSpec represents the parameters of a simulated trade.
type TradeSpec struct {
	ID         string
	Strategy   string
	Direction  shared.Direction
	EntryPrice float64
	EntryTime  time.Time
	StopPrice  float64
	// Targets are evaluated in order.
	Targets []Target
	// BreakevenAfter moves the stop to entry once elapsed. Zero disables it.
	BreakevenAfter time.Duration
	// Timeout closes the trade at the prevailing price once elapsed. Zero disables it.
	Timeout time.Duration
	// Fee is the round trip cost in price units, deducted from the trade pnl.
	Fee float64
}

// Risk returns the distance between entry and the initial stop.
func (s *TradeSpec) Risk() float64 {
	return math.Abs(s.EntryPrice - s.StopPrice)
}

// Validate asserts the trade spec can be simulated.
func (s *TradeSpec) Validate() error {
	var errs error

	sign := s.Direction.Sign()
	if s.Direction != shared.Long && s.Direction != shared.Short {
		errs = errors.Join(errs, fmt.Errorf("unknown direction %d", s.Direction))
	}
	if s.EntryTime.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("entry time cannot be zero"))
	}
	if sign*(s.EntryPrice-s.StopPrice) <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%s stop %f is not protective of entry %f",
			s.Direction, s.StopPrice, s.EntryPrice))
	}
	if len(s.Targets) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no targets provided"))
	}
	if s.BreakevenAfter < 0 {
		errs = errors.Join(errs, fmt.Errorf("breakeven delay cannot be negative"))
	}
	if s.Timeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("timeout cannot be negative"))
	}
	if s.Fee < 0 {
		errs = errors.Join(errs, fmt.Errorf("fee cannot be negative"))
	}

	var total float64
	for idx, target := range s.Targets {
		if sign*(target.Price-s.EntryPrice) <= 0 {
			errs = errors.Join(errs, fmt.Errorf("target %d price %f is not beyond entry %f",
				idx+1, target.Price, s.EntryPrice))
		}
		if target.Fraction <= 0 || target.Fraction > 1 {
			errs = errors.Join(errs, fmt.Errorf("target %d fraction must be in (0, 1], got %f",
				idx+1, target.Fraction))
		}
		if target.Stop == TrailTo && sign*(target.Price-target.TrailPrice) <= 0 {
			errs = errors.Join(errs, fmt.Errorf("target %d trail price %f is not protective of %f",
				idx+1, target.TrailPrice, target.Price))
		}
		total += target.Fraction
	}
	if total > 1+fractionTolerance {
		errs = errors.Join(errs, fmt.Errorf("target fractions exceed the full size, got %f", total))
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpec, errs)
	}

	return nil
}

// PriceAtR returns the price a multiple of initial risk away from entry, in the trade's
// favour.
func PriceAtR(direction shared.Direction, entry float64, stop float64, r float64) float64 {
	return entry + direction.Sign()*r*math.Abs(entry-stop)
}

// Fill represents a partial or full close of a trade.
type Fill struct {
	Time     time.Time
	Price    float64
	Fraction float64
	Reason   shared.ExitReason
}

// Outcome represents the realized result of a simulated trade.
type Outcome struct {
	ID          string
	Strategy    string
	Direction   shared.Direction
	EntryPrice  float64
	EntryTime   time.Time
	InitialStop float64
	FinalStop   float64
	ExitPrice   float64
	ExitTime    time.Time
	Reason      shared.ExitReason
	Fills       []Fill
	// PnL is the size weighted price pnl, net of fees.
	PnL float64
	// NetR is the pnl as a multiple of initial risk.
	NetR float64
	Hold time.Duration
}

// Win checks whether the trade realized a positive return.
func (o *Outcome) Win() bool {
	return o.NetR > 0
}
