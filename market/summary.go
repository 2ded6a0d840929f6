package market

import (
	"errors"
	"fmt"
	"math"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/marketprofile/indicator"
	"github.com/dnldd/marketprofile/profile"
	"github.com/dnldd/marketprofile/shared"
	"github.com/rs/zerolog"
)

// SummaryConfig represents the session summary builder configuration.
type SummaryConfig struct {
	// Profile is the market profile configuration.
	Profile profile.Config
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *SummaryConfig) Validate() error {
	var errs error

	err := cfg.Profile.Validate()
	if err != nil {
		errs = errors.Join(errs, fmt.Errorf("validating profile config: %w", err))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// SummaryBuilder derives session summaries from session ticks.
type SummaryBuilder struct {
	cfg     *SummaryConfig
	builder *profile.Builder
}

// NewSummaryBuilder initializes a new session summary builder.
func NewSummaryBuilder(cfg *SummaryConfig) (*SummaryBuilder, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	builder, err := profile.NewBuilder(&cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("creating profile builder: %w", err)
	}

	return &SummaryBuilder{cfg: cfg, builder: builder}, nil
}

// profileStatus maps the provided profile build error to a profile status.
func profileStatus(err error) shared.ProfileStatus {
	switch {
	case err == nil:
		return shared.ProfileOK
	case errors.Is(err, profile.ErrNoTicks):
		return shared.ProfileNoTicks
	case errors.Is(err, profile.ErrTooManyPeriods):
		return shared.ProfileTooManyPeriods
	default:
		return shared.ProfileShortSession
	}
}

// roundASR rounds the provided range to one decimal, halves to even.
func roundASR(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}

// Build derives the summary of the provided session from its time-ordered ticks. A session
// without ticks yields an all-null summary.
func (b *SummaryBuilder) Build(session *shared.Session, ticks []shared.Tick) shared.SessionSummary {
	summary := shared.NewEmptySummary(session)
	if len(ticks) == 0 {
		return summary
	}

	first := &ticks[0]
	last := &ticks[len(ticks)-1]
	high, low := first.High, first.Low
	var volume, delta float64
	for idx := range ticks {
		tick := &ticks[idx]
		if tick.High > high {
			high = tick.High
		}
		if tick.Low < low {
			low = tick.Low
		}
		volume += tick.Volume
		delta += tick.Delta()
	}

	summary.Ticks = len(ticks)
	summary.SessionStart = shared.Time(first.Timestamp)
	summary.SessionEnd = shared.Time(last.Timestamp)
	summary.Open = shared.Float(first.Open)
	summary.High = shared.Float(high)
	summary.Low = shared.Float(low)
	summary.Close = shared.Float(last.Last)
	summary.Volume = shared.Float(volume)
	summary.Delta = shared.Float(delta)
	summary.ASR = shared.Float(roundASR(high - low))

	vwap, ok := indicator.SessionVWAP(ticks)
	if ok {
		summary.VWAP = shared.Float(vwap)
	}

	pcfg := &b.cfg.Profile
	vpoc, ok := profile.VPOC(ticks, pcfg.VPOCStep)
	if ok {
		summary.VPOC = shared.Float(vpoc)
	}

	p, err := b.builder.BuildIn(ticks, session.Start.Location())
	summary.ProfileStatus = profileStatus(err)
	if err != nil {
		b.cfg.Logger.Debug().Msgf("profile unavailable for %s: %v\n%s", summary.Key(), err, spew.Sdump(session))
		return summary
	}

	va, err := p.ValueArea(pcfg.ValueAreaFraction)
	if err == nil {
		summary.TPOPOC = shared.Float(va.POC)
		summary.VAH = shared.Float(va.VAH)
		summary.VAL = shared.Float(va.VAL)
	}

	ib, ok := p.InitialBalance(pcfg.InitialBalancePeriods)
	if ok {
		summary.IBHigh = shared.Float(ib.High)
		summary.IBLow = shared.Float(ib.Low)
	}

	pe := p.PoorExtremes(high, low, pcfg.PoorExtremeThreshold)
	summary.PoorHigh = pe.High
	summary.PoorLow = pe.Low
	if pe.High {
		summary.PoorHighPrice = shared.Float(pe.HighPrice)
	}
	if pe.Low {
		summary.PoorLowPrice = shared.Float(pe.LowPrice)
	}

	sp := p.SinglePrints(pcfg.SinglePrintThreshold, pcfg.SinglePrintMinSpan)
	summary.SinglePrints = sp.Flagged
	if sp.Flagged {
		summary.SPHigh = shared.Float(sp.High)
		summary.SPLow = shared.Float(sp.Low)
	}

	return summary
}
