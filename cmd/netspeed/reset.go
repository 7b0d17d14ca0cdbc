package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shini4i/netspeed/internal/client"
	"github.com/shini4i/netspeed/internal/logging"
)

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the daemon's history and start a new baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(logging.FormatText, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			c, err := client.Dial(cfg.Socket())
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Measurement state reset")
			return nil
		},
	}
}
