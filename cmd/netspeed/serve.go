package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shini4i/netspeed/internal/daemon"
	"github.com/shini4i/netspeed/internal/logging"
	"github.com/shini4i/netspeed/internal/monitor"
	"github.com/shini4i/netspeed/internal/netif"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		socketPath  string
		socketGroup string
		httpListen  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the measurement daemon",
		Long: "Run the measurement daemon. Readings are broadcast to clients on a UNIX socket " +
			"and, when --http is set, served as JSON and Prometheus metrics over HTTP.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(logging.FormatJSON, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if socketPath != "" {
				cfg.SocketPath = socketPath
			}
			if httpListen != "" {
				cfg.HTTPListen = httpListen
			}

			slog.Info("Starting netspeed daemon", "version", version)

			mcfg, err := cfg.MonitorConfig()
			if err != nil {
				return err
			}
			source := netif.NewSystemSource()
			m, err := monitor.NewWithConfig(source, mcfg)
			if err != nil {
				return err
			}
			tracker, err := monitor.NewTracker(m, cfg.HistorySize)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			d := daemon.New(tracker, source, daemon.Options{
				SocketPath:   cfg.Socket(),
				SocketGroup:  socketGroup,
				HTTPListen:   cfg.HTTPListen,
				PollInterval: cfg.PollInterval,
				ChannelSize:  cfg.ChannelSize,
				Backpressure: cfg.BackpressurePolicy(),
				Version:      version,
				Ready: func() {
					notifySystemd("READY=1")
					go watchdogLoop(ctx)
				},
			})

			err = d.Run(ctx)
			notifySystemd("STOPPING=1")
			if err != nil {
				return err
			}
			slog.Info("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "Path to the UNIX socket (default from config)")
	cmd.Flags().StringVar(&socketGroup, "socket-group", "", "Group allowed to connect to the socket")
	cmd.Flags().StringVar(&httpListen, "http", "", "Address for the HTTP API, e.g. 127.0.0.1:9273")
	return cmd
}
