// Package poller drives periodic measurements and delivers them on a
// bounded channel.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shini4i/netspeed/internal/monitor"
	"github.com/shini4i/netspeed/internal/speed"
)

const (
	// DefaultInterval is the default time between measurements.
	DefaultInterval = time.Second
	// DefaultBufferSize is the default capacity of the results channel.
	DefaultBufferSize = 16
)

var (
	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("poller already started")
)

// Measurer produces a single reading.
type Measurer interface {
	Measure(ctx context.Context) (speed.Speed, error)
}

// MeasurerFunc adapts a function to Measurer.
type MeasurerFunc func(ctx context.Context) (speed.Speed, error)

// Measure calls f(ctx).
func (f MeasurerFunc) Measure(ctx context.Context) (speed.Speed, error) {
	return f(ctx)
}

// Backpressure decides what happens when the consumer falls behind.
type Backpressure int

const (
	// DropOldest discards the oldest buffered result to make room.
	DropOldest Backpressure = iota
	// Block waits for the consumer, delaying the next measurement.
	Block
)

func (b Backpressure) String() string {
	switch b {
	case DropOldest:
		return "drop-oldest"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// ParseBackpressure converts a configuration string into a Backpressure.
func ParseBackpressure(s string) (Backpressure, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop-oldest", "drop_oldest":
		return DropOldest, nil
	case "block":
		return Block, nil
	default:
		return DropOldest, fmt.Errorf("unknown backpressure policy %q", s)
	}
}

// Result is one poll outcome.
type Result struct {
	Speed speed.Speed
	Err   error
}

// Poller periodically calls a Measurer and publishes every outcome,
// including failures, on Results. The channel is closed when the poller stops.
type Poller struct {
	measurer Measurer
	interval time.Duration
	policy   Backpressure
	results  chan Result

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	dropped atomic.Uint64
}

// New creates a poller. Non-positive interval or bufferSize fall back to defaults.
func New(m Measurer, interval time.Duration, bufferSize int, policy Backpressure) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Poller{
		measurer: m,
		interval: interval,
		policy:   policy,
		results:  make(chan Result, bufferSize),
		done:     make(chan struct{}),
	}
}

// Results returns the channel on which poll outcomes are delivered.
func (p *Poller) Results() <-chan Result {
	return p.results
}

// Dropped returns how many results were discarded under DropOldest.
func (p *Poller) Dropped() uint64 {
	return p.dropped.Load()
}

// Start launches the polling goroutine. It stops when ctx is cancelled or
// Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	slog.Info("Poller started", "interval", p.interval, "backpressure", p.policy.String())
	return nil
}

// Stop cancels polling and waits for the goroutine to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	<-p.done
}

// Done is closed once the polling goroutine has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)
	defer close(p.results)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Emit the first reading immediately.
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Poller stopped", "dropped", p.Dropped())
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	s, err := p.measurer.Measure(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Debug("Measurement failed", "error", err, "code", monitor.Code(err))
	}
	p.emit(ctx, Result{Speed: s, Err: err})
}

func (p *Poller) emit(ctx context.Context, r Result) {
	if p.policy == Block {
		select {
		case p.results <- r:
		case <-ctx.Done():
		}
		return
	}

	for {
		select {
		case p.results <- r:
			return
		default:
		}
		select {
		case <-p.results:
			p.dropped.Add(1)
		default:
		}
	}
}

// Collect gathers n successful readings spaced by interval. Retryable
// failures are skipped; any other failure aborts collection.
func Collect(ctx context.Context, m Measurer, n int, interval time.Duration) ([]speed.Speed, error) {
	out := make([]speed.Speed, 0, max(n, 0))
	if n <= 0 {
		return out, nil
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s, err := m.Measure(ctx)
		switch {
		case err == nil:
			out = append(out, s)
			if len(out) == n {
				return out, nil
			}
		case monitor.IsRetryable(err):
			slog.Debug("Skipping sample", "error", err)
		default:
			return out, err
		}

		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-ticker.C:
		}
	}
}
