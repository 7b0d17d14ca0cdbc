package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shini4i/netspeed/internal/config"
	"github.com/shini4i/netspeed/internal/logging"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "netspeed",
		Short:         "Measure network interface throughput",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(
		newListCmd(opts),
		newMonitorCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newStatsCmd(opts),
		newResetCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// path returns the configuration file in effect.
func (o *rootOptions) path() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	paths, err := config.GetPaths()
	if err != nil {
		return "", err
	}
	return paths.ConfigFile, nil
}

// load reads and validates the configuration, then installs the logger.
func (o *rootOptions) load(format logging.Format, logOutput io.Writer) (*config.Config, error) {
	path, err := o.path()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.SetupWith(logging.Options{Level: level, Format: format, Output: logOutput})
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
