package monitor

import (
	"context"
	"math/bits"
	"sync"
	"time"

	"github.com/shini4i/netspeed/internal/speed"
)

// DefaultHistorySize is the tracker capacity used when none is configured.
const DefaultHistorySize = 60

// Tracker wraps a Monitor and keeps the most recent readings.
type Tracker struct {
	mu      sync.RWMutex
	monitor *Monitor
	history *history
}

// NewTracker creates a tracker holding at most capacity readings.
func NewTracker(m *Monitor, capacity int) (*Tracker, error) {
	if capacity < 1 {
		return nil, invalid("history_size", "must be >= 1")
	}
	return &Tracker{
		monitor: m,
		history: newHistory(capacity),
	}, nil
}

// Monitor returns the wrapped monitor.
func (t *Tracker) Monitor() *Monitor {
	return t.monitor
}

// Track measures once and appends the reading on success. Failed
// measurements leave the history unchanged.
func (t *Tracker) Track(ctx context.Context) (speed.Speed, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.monitor.Measure(ctx)
	if err != nil {
		return speed.Speed{}, err
	}
	t.history.push(s)
	return s, nil
}

// History returns a copy of the stored readings, oldest first.
func (t *Tracker) History() []speed.Speed {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.history.items()
}

// Latest returns the most recent reading.
func (t *Tracker) Latest() (speed.Speed, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.history.latest()
}

// Len returns the number of stored readings.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.history.len()
}

// Capacity returns the configured history size.
func (t *Tracker) Capacity() int {
	return t.history.capacity()
}

// Average returns the per-direction mean of readings taken within window of
// now, stamped with now. It reports false when no reading qualifies.
func (t *Tracker) Average(window time.Duration) (speed.Speed, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.monitor.now()
	var (
		n              uint64
		upHi, upLo     uint64
		downHi, downLo uint64
	)
	t.eachWithin(now, window, func(s speed.Speed) {
		var carry uint64
		upLo, carry = bits.Add64(upLo, s.Upload, 0)
		upHi += carry
		downLo, carry = bits.Add64(downLo, s.Download, 0)
		downHi += carry
		n++
	})
	if n == 0 {
		return speed.Speed{}, false
	}

	up, _ := bits.Div64(upHi, upLo, n)
	down, _ := bits.Div64(downHi, downLo, n)
	return speed.New(up, down, now), true
}

// Peak returns the per-direction maximum of readings taken within window of
// now. Upload and download peaks may come from different readings.
func (t *Tracker) Peak(window time.Duration) (speed.Speed, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.monitor.now()
	var (
		found    bool
		up, down uint64
	)
	t.eachWithin(now, window, func(s speed.Speed) {
		found = true
		up = max(up, s.Upload)
		down = max(down, s.Download)
	})
	if !found {
		return speed.Speed{}, false
	}
	return speed.New(up, down, now), true
}

// ClearHistory drops stored readings but keeps the monitor baseline.
func (t *Tracker) ClearHistory() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history.clear()
}

// Reset clears the history and the monitor baseline.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history.clear()
	t.monitor.Reset()
}

// eachWithin visits readings whose timestamp lies in [now-window, now].
func (t *Tracker) eachWithin(now time.Time, window time.Duration, fn func(speed.Speed)) {
	cutoff := now.Add(-window)
	t.history.each(func(s speed.Speed) {
		if s.MeasuredAt.Before(cutoff) || s.MeasuredAt.After(now) {
			return
		}
		fn(s)
	})
}
