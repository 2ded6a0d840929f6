package shared

import (
	"context"
	"time"
)

// TickFetcher defines the requirements for fetching historical ticks.
type TickFetcher interface {
	// FetchTicks returns the time-ordered ticks in [start, end).
	FetchTicks(ctx context.Context, start time.Time, end time.Time) ([]Tick, error)
}
