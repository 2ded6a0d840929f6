package profile

import (
	"math"
)

// InitialBalance represents the price range of the opening bins of a session.
type InitialBalance struct {
	High float64
	Low  float64
}

// InitialBalance returns the raw tick range of the first periods bins. It reports false
// when none of those bins saw a tick.
func (p *Profile) InitialBalance(periods int) (InitialBalance, bool) {
	var ib InitialBalance
	var found bool
	for idx := 0; idx < periods && idx < len(p.Bins); idx++ {
		bin := &p.Bins[idx]
		if bin.Ticks == 0 {
			continue
		}

		if !found || bin.High > ib.High {
			ib.High = bin.High
		}
		if !found || bin.Low < ib.Low {
			ib.Low = bin.Low
		}
		found = true
	}

	return ib, found
}

// PoorExtremes represents the poor high and poor low state of a session.
type PoorExtremes struct {
	High      bool
	HighPrice float64
	Low       bool
	LowPrice  float64
}

// PoorExtremes checks whether the levels holding the provided session extremes were
// touched by at least threshold distinct bins. Reported prices are the raw extremes.
func (p *Profile) PoorExtremes(sessionHigh float64, sessionLow float64, threshold int) PoorExtremes {
	var pe PoorExtremes
	if p.CountAt(sessionHigh) >= threshold {
		pe.High = true
		pe.HighPrice = sessionHigh
	}
	if p.CountAt(sessionLow) >= threshold {
		pe.Low = true
		pe.LowPrice = sessionLow
	}

	return pe
}

// SinglePrints represents the single print state of a session.
type SinglePrints struct {
	// Flagged is set when the longest run or the span meets its threshold.
	Flagged bool
	// Levels are the prices of levels touched by exactly one bin, ascending.
	Levels []float64
	// LongestRun is the longest run of adjacent single print levels.
	LongestRun int
	// Span is the distance between the highest and lowest single print levels.
	Span float64
	// High and Low bound the single print region, only set when flagged.
	High float64
	Low  float64
}

// SinglePrints detects single print levels and flags the session when the longest run of
// adjacent levels reaches threshold or the region spans at least minSpan.
func (p *Profile) SinglePrints(threshold int, minSpan float64) SinglePrints {
	var sp SinglePrints
	var indices []int64
	for idx := range p.Levels {
		if p.Levels[idx].Count == 1 {
			indices = append(indices, p.Levels[idx].Index)
			sp.Levels = append(sp.Levels, p.Levels[idx].Price)
		}
	}
	if len(indices) == 0 {
		return sp
	}

	run := 1
	sp.LongestRun = 1
	for idx := 1; idx < len(indices); idx++ {
		if indices[idx]-indices[idx-1] <= 1 {
			run++
		} else {
			run = 1
		}
		if run > sp.LongestRun {
			sp.LongestRun = run
		}
	}

	low := sp.Levels[0]
	high := sp.Levels[len(sp.Levels)-1]
	sp.Span = math.Round((high-low)*1e8) / 1e8

	if sp.LongestRun >= threshold || sp.Span >= minSpan {
		sp.Flagged = true
		sp.High = high
		sp.Low = low
	}

	return sp
}
