package profile

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultPeriod is the default TPO bin length.
	DefaultPeriod = 30 * time.Minute
	// DefaultPriceStep is the default price discretization unit.
	DefaultPriceStep = 1.0
	// DefaultVPOCStep is the default rounding unit of last-trade prices for the volume POC.
	DefaultVPOCStep = 0.1
	// DefaultValueAreaFraction is the default fraction of TPOs captured by the value area.
	DefaultValueAreaFraction = 0.68
	// DefaultInitialBalancePeriods is the default number of bins forming the initial balance.
	DefaultInitialBalancePeriods = 2
	// DefaultSinglePrintThreshold is the default minimum run of single print levels.
	DefaultSinglePrintThreshold = 3
	// DefaultSinglePrintMinSpan is the default minimum span of the single print region.
	DefaultSinglePrintMinSpan = 20.0
	// DefaultPoorExtremeThreshold is the default minimum distinct bins at a poor extreme.
	DefaultPoorExtremeThreshold = 2
)

// Config represents the market profile configuration.
type Config struct {
	// Period is the length of a TPO bin.
	Period time.Duration
	// PriceStep is the price discretization unit of TPO levels.
	PriceStep float64
	// VPOCStep is the rounding unit of last-trade prices when grouping volume.
	VPOCStep float64
	// ValueAreaFraction is the fraction of total TPOs the value area must capture.
	ValueAreaFraction float64
	// InitialBalancePeriods is the number of leading bins forming the initial balance.
	InitialBalancePeriods int
	// SinglePrintThreshold is the minimum run of adjacent single print levels to flag.
	SinglePrintThreshold int
	// SinglePrintMinSpan is the minimum span of the single print region to flag.
	SinglePrintMinSpan float64
	// PoorExtremeThreshold is the minimum distinct bins at an extreme for it to be poor.
	PoorExtremeThreshold int
}

// DefaultConfig returns the default market profile configuration.
func DefaultConfig() Config {
	return Config{
		Period:                DefaultPeriod,
		PriceStep:             DefaultPriceStep,
		VPOCStep:              DefaultVPOCStep,
		ValueAreaFraction:     DefaultValueAreaFraction,
		InitialBalancePeriods: DefaultInitialBalancePeriods,
		SinglePrintThreshold:  DefaultSinglePrintThreshold,
		SinglePrintMinSpan:    DefaultSinglePrintMinSpan,
		PoorExtremeThreshold:  DefaultPoorExtremeThreshold,
	}
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.Period <= 0 {
		errs = errors.Join(errs, fmt.Errorf("tpo period must be positive, got %v", cfg.Period))
	}
	if cfg.PriceStep <= 0 {
		errs = errors.Join(errs, fmt.Errorf("price step must be positive, got %v", cfg.PriceStep))
	}
	if cfg.VPOCStep <= 0 {
		errs = errors.Join(errs, fmt.Errorf("vpoc step must be positive, got %v", cfg.VPOCStep))
	}
	if cfg.ValueAreaFraction <= 0 || cfg.ValueAreaFraction > 1 {
		errs = errors.Join(errs, fmt.Errorf("value area fraction must be in (0, 1], got %v", cfg.ValueAreaFraction))
	}
	if cfg.InitialBalancePeriods < 1 {
		errs = errors.Join(errs, fmt.Errorf("initial balance periods must be at least 1, got %d", cfg.InitialBalancePeriods))
	}
	if cfg.SinglePrintThreshold < 1 {
		errs = errors.Join(errs, fmt.Errorf("single print threshold must be at least 1, got %d", cfg.SinglePrintThreshold))
	}
	if cfg.SinglePrintMinSpan < 0 {
		errs = errors.Join(errs, fmt.Errorf("single print min span cannot be negative, got %v", cfg.SinglePrintMinSpan))
	}
	if cfg.PoorExtremeThreshold < 1 {
		errs = errors.Join(errs, fmt.Errorf("poor extreme threshold must be at least 1, got %d", cfg.PoorExtremeThreshold))
	}

	return errs
}
