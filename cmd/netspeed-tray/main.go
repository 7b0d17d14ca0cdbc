// Package main provides the netspeed system tray client.
//
// The tray connects to a running netspeed daemon and shows the latest
// reading next to its icon, reconnecting whenever the daemon restarts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shini4i/netspeed/internal/client"
	"github.com/shini4i/netspeed/internal/config"
	"github.com/shini4i/netspeed/internal/logging"
	"github.com/shini4i/netspeed/internal/protocol"
	"github.com/shini4i/netspeed/internal/reconnect"
	"github.com/shini4i/netspeed/internal/tray"
)

var (
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	socketPath := flag.String("socket", "", "Path to the daemon socket (default from config)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("netspeed-tray %s\n", version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logging.SetupWith(logging.Options{Level: level})

	slog.Info("Starting netspeed tray", "version", version, "socket", cfg.Socket())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	t := tray.New()
	sess := &session{tray: t, socketPath: cfg.Socket()}

	if err := t.OnReset(sess.reset); err != nil {
		slog.Error("Failed to register reset handler", "error", err)
		os.Exit(1)
	}
	if err := t.OnQuit(func() {
		cancel()
		t.Quit()
	}); err != nil {
		slog.Error("Failed to register quit handler", "error", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	go func() {
		mgr := reconnect.NewManager(reconnect.DefaultConfig())
		mgr.SetCallbacks(reconnect.Callbacks{
			OnReconnecting: func(_ int, delay time.Duration, _ error) {
				t.SetOffline(fmt.Sprintf("Daemon unavailable, retrying in %s", delay))
			},
		})
		if err := mgr.Run(ctx, sess.run); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Giving up on daemon", "error", err)
		}
	}()

	// systray must own the main goroutine.
	if err := t.Run(); err != nil {
		slog.Error("Failed to run tray", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		paths, err := config.GetPaths()
		if err != nil {
			return nil, err
		}
		path = paths.ConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// session feeds one daemon connection into the tray.
type session struct {
	tray       *tray.Tray
	socketPath string
	client     atomic.Pointer[client.Client]
}

func (s *session) run(ctx context.Context) (bool, error) {
	c, err := client.Dial(s.socketPath)
	if err != nil {
		return false, err
	}
	defer func() { _ = c.Close() }()

	c.OnSpeed(func(d protocol.SpeedData) { s.tray.SetSpeed(d.Speed) })
	c.OnError(func(d protocol.ErrorData) {
		if !d.Retryable {
			s.tray.SetError(d.Message)
		}
	})
	s.client.Store(c)
	defer s.client.Store(nil)

	if current, err := c.Speed(ctx); err == nil && current.Available {
		s.tray.SetSpeed(current.Speed.Speed)
	}

	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-c.Done():
		s.tray.SetOffline("Daemon closed the connection")
		return true, errors.New("daemon closed the connection")
	}
}

func (s *session) reset() {
	c := s.client.Load()
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
	defer cancel()
	if err := c.Reset(ctx); err != nil {
		slog.Warn("Failed to reset daemon", "error", err)
	}
}
