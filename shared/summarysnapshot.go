package shared

import (
	"errors"
	"sync"

	"go.uber.org/atomic"
)

const (
	// SummarySnapshotSize is the default maximum number of entries for a summary snapshot.
	SummarySnapshotSize = 64
)

// SummarySnapshot represents a rolling window of the most recent session summaries.
type SummarySnapshot struct {
	data    []*SessionSummary
	dataMtx sync.RWMutex
	start   atomic.Int32
	count   atomic.Int32
	size    atomic.Int32
}

// NewSummarySnapshot initializes a new summary snapshot.
func NewSummarySnapshot(size int32) (*SummarySnapshot, error) {
	if size < 0 {
		return nil, errors.New("snapshot size cannot be negative")
	}
	if size == 0 {
		return nil, errors.New("snapshot size cannot be zero")
	}

	snapshot := &SummarySnapshot{
		data: make([]*SessionSummary, size),
	}

	snapshot.size.Store(size)
	return snapshot, nil
}

// Update adds the provided summary to the snapshot.
func (s *SummarySnapshot) Update(summary *SessionSummary) {
	s.dataMtx.Lock()
	defer s.dataMtx.Unlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	end := (start + count) % size
	s.data[end] = summary

	if count == size {
		// Overwrite the oldest entry when the snapshot is at capacity.
		s.start.Store((start + 1) % size)
	} else {
		s.count.Add(1)
	}
}

// Count returns the number of entries in the snapshot.
func (s *SummarySnapshot) Count() int32 {
	return s.count.Load()
}

// Last returns the last added entry for the snapshot.
func (s *SummarySnapshot) Last() *SessionSummary {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	if count == 0 {
		return nil
	}

	end := (start + count - 1) % size
	return s.data[end]
}

// LastN fetches the last n number of elements from the snapshot.
func (s *SummarySnapshot) LastN(n int32) []*SessionSummary {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	if n <= 0 {
		return nil
	}

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()

	// Clamp the number of elements expected if it is greater than the snapshot count.
	if n > count {
		n = count
	}

	set := make([]*SessionSummary, n)
	start = (start + count - n + size) % size

	for i := range n {
		idx := (start + i) % size
		set[i] = s.data[idx]
	}

	return set
}

// LastSession returns the most recent summary of the named session with an available
// profile, skipping the provided number of matches.
func (s *SummarySnapshot) LastSession(name string, skip int) *SessionSummary {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	for i := count - 1; i >= 0; i-- {
		summary := s.data[(start+i)%size]
		if summary.Session != name || !summary.ProfileAvailable() {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}

		return summary
	}

	return nil
}
