package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shini4i/netspeed/internal/logging"
	"github.com/shini4i/netspeed/internal/monitor"
	"github.com/shini4i/netspeed/internal/netif"
	"github.com/shini4i/netspeed/internal/poller"
	"github.com/shini4i/netspeed/internal/speed"
)

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	var (
		interval time.Duration
		count    int
		bits     bool
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print live throughput until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(logging.FormatText, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			mcfg, err := cfg.MonitorConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = cfg.PollInterval
			}
			if interval < mcfg.MinInterval {
				return fmt.Errorf("interval %s is shorter than the minimum interval %s", interval, mcfg.MinInterval)
			}

			m, err := monitor.NewWithConfig(netif.NewSystemSource(), mcfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			p := poller.New(m, interval, cfg.ChannelSize, cfg.BackpressurePolicy())
			if err := p.Start(ctx); err != nil {
				return err
			}
			defer p.Stop()

			printer := newLinePrinter(cmd.OutOrStdout(), bits)
			defer printer.finish()

			// Only instant precision opens with a zero baseline reading.
			skipFirst := mcfg.Precision.Mode == monitor.PrecisionInstant
			return printReadings(p.Results(), printer, count, skipFirst)
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", poller.DefaultInterval, "Time between readings")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many readings (0 runs until interrupted)")
	cmd.Flags().BoolVarP(&bits, "bits", "b", false, "Show bits per second instead of bytes")
	return cmd
}

// printReadings prints results until the channel closes or count readings
// were printed. Retryable failures are skipped.
func printReadings(results <-chan poller.Result, printer *linePrinter, count int, skipFirst bool) error {
	printed := 0
	for r := range results {
		if r.Err != nil {
			if monitor.IsRetryable(r.Err) {
				continue
			}
			if errors.Is(r.Err, monitor.ErrNoInterfacesFound) {
				printer.notice("no eligible interfaces")
				continue
			}
			return r.Err
		}
		if skipFirst {
			skipFirst = false
			continue
		}
		printer.print(r.Speed)
		printed++
		if count > 0 && printed >= count {
			return nil
		}
	}
	return nil
}

// linePrinter rewrites a single status line on terminals and appends
// timestamped lines otherwise.
type linePrinter struct {
	mu    sync.Mutex
	w     io.Writer
	bits  bool
	tty   bool
	width int
	dirty bool
}

func newLinePrinter(w io.Writer, bits bool) *linePrinter {
	p := &linePrinter{w: w, bits: bits}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			p.width = width
		}
	}
	return p
}

func (p *linePrinter) print(s speed.Speed) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := formatReading(s, p.bits)
	if !p.tty {
		fmt.Fprintf(p.w, "%s  %s\n", s.MeasuredAt.Format(time.TimeOnly), line)
		return
	}
	if r := []rune(line); p.width > 0 && len(r) > p.width {
		line = string(r[:p.width])
	}
	fmt.Fprintf(p.w, "\r\033[K%s", line)
	p.dirty = true
}

func (p *linePrinter) notice(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
	fmt.Fprintln(p.w, msg)
}

func (p *linePrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
}

func (p *linePrinter) endLine() {
	if p.dirty {
		fmt.Fprintln(p.w)
		p.dirty = false
	}
}

func formatReading(s speed.Speed, bits bool) string {
	if bits {
		return fmt.Sprintf("↓ %s  ↑ %s", s.DownloadBitsFormatted(), s.UploadBitsFormatted())
	}
	return fmt.Sprintf("↓ %s  ↑ %s", s.DownloadFormatted(), s.UploadFormatted())
}
