// Package monitor turns cumulative interface byte counters into
// upload/download rates.
package monitor

import (
	"context"
	"math"
	"math/bits"
	"sync"
	"time"

	"github.com/shini4i/netspeed/internal/netif"
	"github.com/shini4i/netspeed/internal/speed"
)

// Option customises a Monitor.
type Option func(*Monitor)

// WithClock replaces the monotonic clock used to timestamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithSleep replaces the context-aware wait used by windowed and sampled modes.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Monitor) {
		m.sleep = sleep
	}
}

type snapshot struct {
	at       time.Time
	bytesIn  uint64
	bytesOut uint64
}

// Monitor aggregates eligible interfaces and derives rates between calls.
// It is safe for concurrent use; each operation runs under one lock so
// read-compute-update of the baseline is atomic.
type Monitor struct {
	mu     sync.Mutex
	cfg    Config
	source netif.Source
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	baseline snapshot
	hasBase  bool
}

// New creates a Monitor with the default configuration.
func New(source netif.Source, opts ...Option) *Monitor {
	m, _ := NewWithConfig(source, DefaultConfig(), opts...)
	return m
}

// NewWithConfig creates a Monitor after validating cfg.
func NewWithConfig(source netif.Source, cfg Config, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Monitor{
		cfg:    cfg.clone(),
		source: source,
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Measure produces one reading according to the configured precision.
//
// In instant mode the first call (or the first after Reset) stores the
// baseline and returns a zero reading. A call arriving sooner than
// MinInterval after the baseline fails with InsufficientTimeElapsedError
// and leaves the baseline untouched.
func (m *Monitor) Measure(ctx context.Context) (speed.Speed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.cfg.Precision.Mode {
	case PrecisionWindowed:
		return m.measureOver(ctx, m.cfg.Precision.Window)
	case PrecisionSampled:
		return m.measureSampled(ctx, m.cfg.Precision.Samples, m.cfg.Precision.Interval)
	default:
		return m.measureInstant(ctx)
	}
}

// MeasureOver takes two snapshots d apart and returns the rate between them,
// regardless of the configured precision. The second snapshot becomes the
// new baseline.
func (m *Monitor) MeasureOver(ctx context.Context, d time.Duration) (speed.Speed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.measureOver(ctx, d)
}

// Instantaneous returns the rate since the stored baseline. When there is no
// baseline yet, or too little time has passed, it reports false without error.
func (m *Monitor) Instantaneous(ctx context.Context) (speed.Speed, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasBase {
		if _, err := m.measureInstant(ctx); err != nil {
			return speed.Speed{}, false, err
		}
		return speed.Speed{}, false, nil
	}

	s, err := m.measureInstant(ctx)
	if err != nil {
		if IsRetryable(err) {
			return speed.Speed{}, false, nil
		}
		return speed.Speed{}, false, err
	}
	return s, true, nil
}

// Reset discards the baseline; the next instant measurement is a fresh start.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline = snapshot{}
	m.hasBase = false
}

// Config returns a copy of the active configuration.
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.clone()
}

// UpdateConfig validates and installs cfg, then discards the baseline since
// totals under a different filter are not comparable.
func (m *Monitor) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg.clone()
	m.baseline = snapshot{}
	m.hasBase = false
	return nil
}

func (m *Monitor) measureInstant(ctx context.Context) (speed.Speed, error) {
	cur, err := m.take(ctx)
	if err != nil {
		return speed.Speed{}, err
	}

	if !m.hasBase {
		m.baseline = cur
		m.hasBase = true
		return speed.Zero(cur.at), nil
	}

	s, err := m.rate(m.baseline, cur)
	if err != nil {
		return speed.Speed{}, err
	}
	m.baseline = cur
	return s, nil
}

func (m *Monitor) measureOver(ctx context.Context, d time.Duration) (speed.Speed, error) {
	first, err := m.take(ctx)
	if err != nil {
		return speed.Speed{}, err
	}
	if err := m.sleep(ctx, d); err != nil {
		return speed.Speed{}, err
	}
	second, err := m.take(ctx)
	if err != nil {
		return speed.Speed{}, err
	}

	s, err := m.rate(first, second)
	if err != nil {
		return speed.Speed{}, err
	}
	m.baseline = second
	m.hasBase = true
	return s, nil
}

func (m *Monitor) measureSampled(ctx context.Context, samples int, interval time.Duration) (speed.Speed, error) {
	var (
		upHi, upLo     uint64
		downHi, downLo uint64
		last           time.Time
	)
	for i := 0; i < samples; i++ {
		s, err := m.measureOver(ctx, interval)
		if err != nil {
			return speed.Speed{}, err
		}
		var carry uint64
		upLo, carry = bits.Add64(upLo, s.Upload, 0)
		upHi += carry
		downLo, carry = bits.Add64(downLo, s.Download, 0)
		downHi += carry
		last = s.MeasuredAt
	}

	n := uint64(samples)
	up, _ := bits.Div64(upHi, upLo, n)
	down, _ := bits.Div64(downHi, downLo, n)
	return speed.New(up, down, last), nil
}

// take reads all interfaces and sums the eligible counters.
func (m *Monitor) take(ctx context.Context) (snapshot, error) {
	records, err := m.source.Interfaces(ctx)
	if err != nil {
		return snapshot{}, &SourceUnavailableError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return snapshot{}, err
	}

	eligible := netif.Eligible(records, m.cfg.Filter)
	if len(eligible) == 0 {
		return snapshot{}, ErrNoInterfacesFound
	}

	snap := snapshot{at: m.now()}
	for _, r := range eligible {
		// Totals wrap like the counters themselves; counterDelta undoes it.
		snap.bytesIn += r.BytesIn
		snap.bytesOut += r.BytesOut
	}
	return snap, nil
}

func (m *Monitor) rate(prev, cur snapshot) (speed.Speed, error) {
	elapsed := cur.at.Sub(prev.at)
	if elapsed <= 0 || elapsed < m.cfg.MinInterval {
		return speed.Speed{}, &InsufficientTimeElapsedError{
			Min:    m.cfg.MinInterval,
			Actual: max(elapsed, 0),
		}
	}

	in := counterDelta(prev.bytesIn, cur.bytesIn, elapsed, m.cfg.WrapCeiling)
	out := counterDelta(prev.bytesOut, cur.bytesOut, elapsed, m.cfg.WrapCeiling)
	return speed.New(perSecond(out, elapsed), perSecond(in, elapsed), cur.at), nil
}

// counterDelta returns how far a 64-bit counter advanced from prev to cur.
// A decrease is taken as a wrap through zero unless the implied rate exceeds
// ceiling, in which case the counter is assumed to have been reset.
func counterDelta(prev, cur uint64, elapsed time.Duration, ceiling uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	delta := (math.MaxUint64 - prev) + cur + 1
	if perSecond(delta, elapsed) > ceiling {
		return 0
	}
	return delta
}

// perSecond computes floor(delta / elapsed seconds) without intermediate
// overflow, saturating at MaxUint64.
func perSecond(delta uint64, elapsed time.Duration) uint64 {
	ns := uint64(elapsed)
	if ns == 0 {
		return math.MaxUint64
	}
	hi, lo := bits.Mul64(delta, uint64(time.Second))
	if hi >= ns {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, ns)
	return q
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
