package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shini4i/netspeed/internal/client"
	"github.com/shini4i/netspeed/internal/logging"
	"github.com/shini4i/netspeed/internal/protocol"
	"github.com/shini4i/netspeed/internal/reconnect"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		bits    bool
		retries int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream readings from a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(logging.FormatText, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			socketPath := cfg.Socket()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			printer := newLinePrinter(cmd.OutOrStdout(), bits)
			defer printer.finish()

			mgr := reconnect.NewManager(reconnect.Config{MaxAttempts: retries, Delay: time.Second, MaxDelay: 30 * time.Second})
			mgr.SetCallbacks(reconnect.Callbacks{
				OnReconnecting: func(attempt int, delay time.Duration, err error) {
					printer.notice(fmt.Sprintf("daemon unavailable (%v), retrying in %s", err, delay))
				},
			})

			err = mgr.Run(ctx, func(ctx context.Context) (bool, error) {
				c, err := client.Dial(socketPath)
				if err != nil {
					return false, err
				}
				defer func() { _ = c.Close() }()

				c.OnSpeed(func(d protocol.SpeedData) { printer.print(d.Speed) })
				c.OnError(func(d protocol.ErrorData) {
					if !d.Retryable {
						printer.notice(fmt.Sprintf("%s: %s", d.Code, d.Message))
					}
				})

				select {
				case <-ctx.Done():
					return true, ctx.Err()
				case <-c.Done():
					return true, errors.New("daemon closed the connection")
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&bits, "bits", "b", false, "Show bits per second instead of bytes")
	cmd.Flags().IntVar(&retries, "retries", 0, "Give up after this many consecutive failed connection attempts (0 retries forever)")
	return cmd
}
