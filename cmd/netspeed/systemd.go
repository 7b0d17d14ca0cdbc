package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"
)

// notifySystemd sends a notification to systemd when running under a
// Type=notify unit.
func notifySystemd(state string) {
	socketPath := os.Getenv("NOTIFY_SOCKET")
	if socketPath == "" {
		return
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: socketPath, Net: "unixgram"})
	if err != nil {
		slog.Warn("Failed to open notify socket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write([]byte(state)); err != nil {
		slog.Warn("Failed to notify systemd", "error", err)
	}
}

// watchdogInterval returns half of WATCHDOG_USEC, or zero when the
// watchdog is disabled.
func watchdogInterval() time.Duration {
	raw := os.Getenv("WATCHDOG_USEC")
	if raw == "" {
		return 0
	}
	usec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || usec <= 0 {
		slog.Warn("Invalid WATCHDOG_USEC", "value", raw)
		return 0
	}
	return time.Duration(usec) * time.Microsecond / 2
}

// watchdogLoop pings the systemd watchdog until ctx is cancelled.
func watchdogLoop(ctx context.Context) {
	interval := watchdogInterval()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			notifySystemd("WATCHDOG=1")
		}
	}
}
