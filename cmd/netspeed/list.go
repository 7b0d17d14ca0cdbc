package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/shini4i/netspeed/internal/logging"
	"github.com/shini4i/netspeed/internal/netif"
	"github.com/shini4i/netspeed/internal/protocol"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		countedOnly bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List network interfaces and whether each one is counted",
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

			records, err := netif.List(cmd.Context(), netif.NewSystemSource())
			if err != nil {
				return fmt.Errorf("failed to enumerate interfaces: %w", err)
			}

			infos := describeInterfaces(records, mcfg.Filter, countedOnly)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(protocol.InterfacesResult{Interfaces: infos})
			}
			return renderInterfaces(cmd.OutOrStdout(), infos)
		},
	}

	cmd.Flags().BoolVar(&countedOnly, "counted", false, "Only show interfaces that take part in aggregation")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func describeInterfaces(records []netif.Record, filter netif.FilterConfig, countedOnly bool) []protocol.InterfaceInfo {
	infos := make([]protocol.InterfaceInfo, 0, len(records))
	for _, r := range records {
		counted := filter.Allows(r)
		if countedOnly && !counted {
			continue
		}
		infos = append(infos, protocol.NewInterfaceInfo(r, counted))
	}
	return infos
}

func renderInterfaces(w io.Writer, infos []protocol.InterfaceInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tTYPE\tSTATE\tCOUNTED\tRECEIVED\tSENT")
	for _, info := range infos {
		name := info.Name
		if name == "" {
			name = info.Description
		}
		state := "down"
		if info.Operational {
			state = "up"
		}
		counted := "no"
		if info.Counted {
			counted = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			info.Index, name, info.TypeName, state, counted,
			humanize.IBytes(info.BytesIn), humanize.IBytes(info.BytesOut))
	}
	return tw.Flush()
}
