// Package export adapts a Monitor to a flat status-code interface suitable
// for a C ABI: two output integers and 0 for success, -1 for failure.
package export

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shini4i/netspeed/internal/monitor"
)

const (
	// StatusOK signals a successful call.
	StatusOK = 0
	// StatusError signals any failure, including invalid arguments.
	StatusError = -1
)

// Exporter serialises access to a single Monitor.
type Exporter struct {
	mu      sync.Mutex
	monitor *monitor.Monitor
	lastErr error
}

// New wraps m.
func New(m *monitor.Monitor) *Exporter {
	return &Exporter{monitor: m}
}

// GetNetSpeed writes the current upload and download rates in bytes per
// second into up and down. Outputs are written only on success.
// The first call after construction or Reset reports 0/0.
func (e *Exporter) GetNetSpeed(up, down *uint64) int {
	if up == nil || down == nil {
		return StatusError
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.monitor.Measure(context.Background())
	if err != nil {
		e.lastErr = err
		slog.Debug("get_net_speed failed", "error", err, "code", monitor.Code(err))
		return StatusError
	}
	e.lastErr = nil
	*up = s.Upload
	*down = s.Download
	return StatusOK
}

// Reset discards the monitor baseline.
func (e *Exporter) Reset() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.monitor.Reset()
	e.lastErr = nil
	return StatusOK
}

// LastErrorCode returns the numeric code of the most recent failure, or 0.
func (e *Exporter) LastErrorCode() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return monitor.Code(e.lastErr)
}
