package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dnldd/marketprofile/shared"
	"github.com/rs/zerolog"
)

const (
	// FormatCSV is the csv tick file format.
	FormatCSV = "csv"
	// FormatJSON is the json tick file format.
	FormatJSON = "json"
)

// TickStoreConfig represents the tick store configuration.
type TickStoreConfig struct {
	// FilePath is the filepath to the tick data.
	FilePath string
	// Format is the tick data format, csv or json.
	Format string
	// Location is the timezone of timestamps without zone information.
	Location *time.Location
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *TickStoreConfig) Validate() error {
	var errs error

	if cfg.FilePath == "" {
		errs = errors.Join(errs, fmt.Errorf("tick filepath cannot be an empty string"))
	}
	if cfg.Format != FormatCSV && cfg.Format != FormatJSON {
		errs = errors.Join(errs, fmt.Errorf("unknown tick format '%s'", cfg.Format))
	}
	if cfg.Location == nil {
		errs = errors.Join(errs, fmt.Errorf("tick location cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// TickStore represents the loaded, time-ordered tick set of an instrument.
type TickStore struct {
	cfg      *TickStoreConfig
	ticks    []shared.Tick
	ticksMtx sync.RWMutex
	stats    ParseStats
}

// Ensure the tick store satisfies the tick fetcher interface.
var _ shared.TickFetcher = (*TickStore)(nil)

// NewTickStore initializes a new tick store.
func NewTickStore(cfg *TickStoreConfig) (*TickStore, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &TickStore{cfg: cfg}, nil
}

// NewTickStoreFromTicks initializes a tick store over the provided ticks.
func NewTickStoreFromTicks(ticks []shared.Tick) *TickStore {
	set := make([]shared.Tick, len(ticks))
	copy(set, ticks)
	shared.SortTicks(set)

	return &TickStore{
		cfg:   &TickStoreConfig{},
		ticks: set,
		stats: ParseStats{Records: len(set), Parsed: len(set)},
	}
}

// Load reads and parses the configured tick file, replacing any loaded ticks.
func (s *TickStore) Load() error {
	data, err := os.ReadFile(s.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("reading tick data from file with path '%s': %w", s.cfg.FilePath, err)
	}

	parseCfg := &ParseConfig{Location: s.cfg.Location, Logger: s.cfg.Logger}

	var ticks []shared.Tick
	var stats ParseStats
	switch s.cfg.Format {
	case FormatJSON:
		ticks, stats, err = ParseJSON(data, parseCfg)
	default:
		ticks, stats, err = ParseCSV(bytes.NewReader(data), parseCfg)
	}
	if err != nil {
		return fmt.Errorf("parsing tick data: %w", err)
	}

	s.ticksMtx.Lock()
	s.ticks = ticks
	s.stats = stats
	s.ticksMtx.Unlock()

	if len(ticks) > 0 {
		first := ticks[0].Timestamp
		last := ticks[len(ticks)-1].Timestamp
		s.cfg.Logger.Info().Msgf("loaded %d ticks covering %.2f hours, from %s, to %s",
			len(ticks), last.Sub(first).Hours(), first.Format(time.RFC1123), last.Format(time.RFC1123))
	}

	return nil
}

// Stats returns the parse statistics of the last load.
func (s *TickStore) Stats() ParseStats {
	s.ticksMtx.RLock()
	defer s.ticksMtx.RUnlock()

	return s.stats
}

// Len returns the number of loaded ticks.
func (s *TickStore) Len() int {
	s.ticksMtx.RLock()
	defer s.ticksMtx.RUnlock()

	return len(s.ticks)
}

// Range returns the first and last tick timestamps. It reports false when no ticks are loaded.
func (s *TickStore) Range() (time.Time, time.Time, bool) {
	s.ticksMtx.RLock()
	defer s.ticksMtx.RUnlock()

	if len(s.ticks) == 0 {
		return time.Time{}, time.Time{}, false
	}

	return s.ticks[0].Timestamp, s.ticks[len(s.ticks)-1].Timestamp, true
}

// Slice returns the loaded ticks in [start, end). The returned slice must not be modified.
func (s *TickStore) Slice(start time.Time, end time.Time) []shared.Tick {
	s.ticksMtx.RLock()
	defer s.ticksMtx.RUnlock()

	return shared.SliceTicks(s.ticks, start, end)
}

// FetchTicks returns a copy of the loaded ticks in [start, end).
func (s *TickStore) FetchTicks(ctx context.Context, start time.Time, end time.Time) ([]shared.Tick, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	window := s.Slice(start, end)
	set := make([]shared.Tick, len(window))
	copy(set, window)

	return set, nil
}
