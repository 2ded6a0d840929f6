package indicator

import (
	"errors"
	"sync"

	"go.uber.org/atomic"
)

// DefaultRollingWindows are the default rolling VWAP windows, in sessions.
var DefaultRollingWindows = []int32{30, 365}

// sessionVolume is the typical price volume and volume of a session.
type sessionVolume struct {
	pv     float64
	volume float64
}

// RollingVWAP represents a VWAP over the most recent fixed number of sessions.
type RollingVWAP struct {
	data    []sessionVolume
	dataMtx sync.Mutex
	start   atomic.Int32
	count   atomic.Int32
	size    atomic.Int32
}

// NewRollingVWAP initializes a rolling VWAP over the provided number of sessions.
func NewRollingVWAP(window int32) (*RollingVWAP, error) {
	if window < 0 {
		return nil, errors.New("rolling window cannot be negative")
	}
	if window == 0 {
		return nil, errors.New("rolling window cannot be zero")
	}

	r := &RollingVWAP{
		data: make([]sessionVolume, window),
	}
	r.size.Store(window)

	return r, nil
}

// Window returns the number of sessions the VWAP rolls over.
func (r *RollingVWAP) Window() int32 {
	return r.size.Load()
}

// Update adds the provided session range and volume, returning the rolling VWAP once the
// window is full. It reports false until then or when the window traded no volume.
func (r *RollingVWAP) Update(high float64, low float64, closePrice float64, volume float64) (float64, bool) {
	r.dataMtx.Lock()
	defer r.dataMtx.Unlock()

	start := r.start.Load()
	count := r.count.Load()
	size := r.size.Load()
	end := (start + count) % size
	r.data[end] = sessionVolume{
		pv:     (high + low + closePrice) / 3 * volume,
		volume: volume,
	}

	if count == size {
		// Overwrite the oldest entry when the window is full.
		r.start.Store((start + 1) % size)
	} else {
		r.count.Add(1)
		count++
	}

	if count < size {
		return 0, false
	}

	// Sum from the oldest entry so results do not depend on the ring position.
	start = r.start.Load()
	var pv, vol float64
	for i := range size {
		entry := r.data[(start+i)%size]
		pv += entry.pv
		vol += entry.volume
	}
	if vol == 0 {
		return 0, false
	}

	return pv / vol, true
}

// Reset clears the rolling window.
func (r *RollingVWAP) Reset() {
	r.dataMtx.Lock()
	defer r.dataMtx.Unlock()

	r.start.Store(0)
	r.count.Store(0)
}
