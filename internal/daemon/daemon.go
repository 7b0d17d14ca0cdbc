// Package daemon runs the background measurement loop and publishes
// readings over a UNIX socket and, optionally, HTTP.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/shini4i/netspeed/internal/httpapi"
	"github.com/shini4i/netspeed/internal/metrics"
	"github.com/shini4i/netspeed/internal/monitor"
	"github.com/shini4i/netspeed/internal/netif"
	"github.com/shini4i/netspeed/internal/poller"
	"github.com/shini4i/netspeed/internal/protocol"
	"github.com/shini4i/netspeed/internal/server"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Daemon.
type Options struct {
	SocketPath   string
	SocketGroup  string
	HTTPListen   string
	PollInterval time.Duration
	ChannelSize  int
	Backpressure poller.Backpressure
	Version      string
	// Ready, when set, is called once the socket and poller are running.
	Ready func()
}

// Daemon ties a tracker to a poller and fans readings out to clients.
type Daemon struct {
	opts    Options
	tracker *monitor.Tracker
	service *Service
	metrics *metrics.Metrics
	poller  *poller.Poller
	server  *server.Server
}

// New wires the daemon components; nothing runs until Run.
func New(tracker *monitor.Tracker, source netif.Source, opts Options) *Daemon {
	m := metrics.New(opts.Version)
	svc := NewService(tracker, source, m)
	d := &Daemon{
		opts:    opts,
		tracker: tracker,
		service: svc,
		metrics: m,
		poller:  poller.New(poller.MeasurerFunc(tracker.Track), opts.PollInterval, opts.ChannelSize, opts.Backpressure),
	}
	d.server = server.NewWithOptions(opts.SocketPath, server.Options{Group: opts.SocketGroup}, svc.Handle)
	return d
}

// Service returns the query service.
func (d *Daemon) Service() *Service {
	return d.service
}

// Run serves until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.server.Start(); err != nil {
		return fmt.Errorf("failed to start socket server: %w", err)
	}
	defer func() {
		if err := d.server.Stop(); err != nil {
			slog.Error("Failed to stop socket server", "error", err)
		}
	}()

	httpErr := make(chan error, 1)
	var httpServer *http.Server
	if d.opts.HTTPListen != "" {
		ln, err := net.Listen("tcp", d.opts.HTTPListen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", d.opts.HTTPListen, err)
		}
		httpServer = httpapi.NewServer(d.opts.HTTPListen, httpapi.NewRouter(d.service, d.metrics.Handler()))
		go func() {
			if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
		}()
		slog.Info("HTTP API listening", "addr", ln.Addr().String())
		defer shutdownHTTP(httpServer)
	}

	if _, err := d.service.Interfaces(ctx); err != nil {
		slog.Warn("Failed to enumerate interfaces", "error", err)
	}

	if err := d.poller.Start(ctx); err != nil {
		return err
	}
	defer d.poller.Stop()

	slog.Info("Daemon running", "socket", d.server.SocketPath(), "interval", d.opts.PollInterval)
	if d.opts.Ready != nil {
		d.opts.Ready()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-httpErr:
			return fmt.Errorf("http server failed: %w", err)
		case r, ok := <-d.poller.Results():
			if !ok {
				return nil
			}
			d.publish(r)
		}
	}
}

func (d *Daemon) publish(r poller.Result) {
	if r.Err != nil {
		code := ErrorCode(r.Err)
		d.metrics.ObserveFailure(code)
		event, err := protocol.NewEvent(protocol.EventError, protocol.ErrorData{
			Code:      code,
			Message:   r.Err.Error(),
			Retryable: monitor.IsRetryable(r.Err),
		})
		if err != nil {
			slog.Error("Failed to encode error event", "error", err)
			return
		}
		d.server.Broadcast(event)
		return
	}

	d.metrics.Observe(r.Speed)
	d.metrics.SetHistoryEntries(d.tracker.Len())

	event, err := protocol.NewSpeedEvent(r.Speed)
	if err != nil {
		slog.Error("Failed to encode speed event", "error", err)
		return
	}
	d.server.Broadcast(event)
}

func shutdownHTTP(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Failed to shut down HTTP API", "error", err)
	}
}
