// Package reconnect keeps a daemon session alive, retrying with
// exponential backoff when it drops.
package reconnect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrMaxAttempts is returned by Run once the attempt budget is spent.
var ErrMaxAttempts = errors.New("max reconnect attempts reached")

// Config holds reconnection configuration.
type Config struct {
	// MaxAttempts bounds consecutive failed attempts. Zero retries forever.
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig returns default reconnection configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 0,
		Delay:       time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// SessionFunc connects and serves one session, blocking until it ends.
// established reports whether the connection came up at all; an
// established session resets the attempt counter.
type SessionFunc func(ctx context.Context) (established bool, err error)

// Callbacks contains optional callbacks for reconnection events.
type Callbacks struct {
	// OnReconnecting is called before waiting out the delay for attempt.
	OnReconnecting func(attempt int, delay time.Duration, err error)
	// OnFailed is called when the attempt budget is exhausted.
	OnFailed func(err error)
}

// Manager runs a SessionFunc until its context is cancelled.
// It is safe for concurrent use.
type Manager struct {
	mu           sync.Mutex
	attemptCount int

	config    Config
	callbacks Callbacks
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewManager creates a manager. Non-positive delays fall back to defaults.
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.Delay <= 0 {
		cfg.Delay = def.Delay
	}
	if cfg.MaxDelay < cfg.Delay {
		cfg.MaxDelay = max(def.MaxDelay, cfg.Delay)
	}
	return &Manager{config: cfg, sleep: sleepContext}
}

// SetCallbacks sets the event callbacks.
func (m *Manager) SetCallbacks(cb Callbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = cb
}

// GetAttemptCount returns the number of consecutive failed attempts.
func (m *Manager) GetAttemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attemptCount
}

// Run calls session repeatedly until ctx is cancelled or MaxAttempts
// consecutive sessions fail to establish.
func (m *Manager) Run(ctx context.Context, session SessionFunc) error {
	for {
		established, err := session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.mu.Lock()
		if established {
			m.attemptCount = 0
		}
		m.attemptCount++
		attempt := m.attemptCount
		callbacks := m.callbacks
		m.mu.Unlock()

		if m.config.MaxAttempts > 0 && attempt > m.config.MaxAttempts {
			slog.Warn("Max reconnect attempts reached", "attempts", attempt-1, "error", err)
			failure := fmt.Errorf("%w: %v", ErrMaxAttempts, err)
			if callbacks.OnFailed != nil {
				callbacks.OnFailed(failure)
			}
			return failure
		}

		delay := m.Backoff(attempt)
		slog.Info("Scheduling reconnect attempt", "attempt", attempt, "delay", delay, "error", err)
		if callbacks.OnReconnecting != nil {
			callbacks.OnReconnecting(attempt, delay, err)
		}

		if err := m.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Backoff returns the delay before the given attempt: Delay doubled per
// prior attempt, capped at MaxDelay.
func (m *Manager) Backoff(attempt int) time.Duration {
	delay := m.config.Delay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.config.MaxDelay {
			return m.config.MaxDelay
		}
	}
	return min(delay, m.config.MaxDelay)
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
