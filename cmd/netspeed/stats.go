package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/shini4i/netspeed/internal/client"
	"github.com/shini4i/netspeed/internal/logging"
	"github.com/shini4i/netspeed/internal/protocol"
)

// statsReport is the combined answer printed by the stats command.
type statsReport struct {
	Current protocol.SpeedResult     `json:"current"`
	Average protocol.AggregateResult `json:"average"`
	Peak    protocol.AggregateResult `json:"peak"`
	Samples int                      `json:"samples"`
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var (
		window time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show current, average and peak throughput from a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if window < 0 {
				return fmt.Errorf("window must not be negative")
			}
			cfg, err := opts.load(logging.FormatText, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			c, err := client.Dial(cfg.Socket())
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			report, err := fetchStats(cmd.Context(), c, window)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			renderStats(cmd.OutOrStdout(), report, window)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&window, "window", "w", time.Minute, "Trailing window for average and peak")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func fetchStats(ctx context.Context, c *client.Client, window time.Duration) (statsReport, error) {
	var (
		report statsReport
		err    error
	)
	if report.Current, err = c.Speed(ctx); err != nil {
		return report, err
	}
	if report.Average, err = c.Average(ctx, window); err != nil {
		return report, err
	}
	if report.Peak, err = c.Peak(ctx, window); err != nil {
		return report, err
	}
	history, err := c.History(ctx)
	if err != nil {
		return report, err
	}
	report.Samples = len(history.Samples)
	return report, nil
}

func renderStats(w io.Writer, r statsReport, window time.Duration) {
	line := func(label string, available bool, data *protocol.SpeedData) {
		if !available || data == nil {
			fmt.Fprintf(w, "%-8s no data\n", label)
			return
		}
		fmt.Fprintf(w, "%-8s ↓ %s  ↑ %s\n", label, data.DownloadHuman, data.UploadHuman)
	}

	line("current", r.Current.Available, r.Current.Speed)
	line("average", r.Average.Available, r.Average.Speed)
	line("peak", r.Peak.Available, r.Peak.Speed)
	fmt.Fprintf(w, "window   %s, %d samples held\n", window, r.Samples)
}
