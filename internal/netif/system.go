package netif

import (
	"context"
	"fmt"
	"slices"

	gnet "github.com/shirou/gopsutil/v4/net"
)

// attrResolver derives the interface type and description for a named interface.
type attrResolver interface {
	resolve(name string, flags []string) (ifType uint32, description string)
}

// SystemSource reads the live interface table through gopsutil.
type SystemSource struct {
	ioCounters func(ctx context.Context, pernic bool) ([]gnet.IOCountersStat, error)
	interfaces func(ctx context.Context) (gnet.InterfaceStatList, error)
	resolver   attrResolver
}

// NewSystemSource creates a Source backed by the operating system's interface table.
func NewSystemSource() *SystemSource {
	return &SystemSource{
		ioCounters: gnet.IOCountersWithContext,
		interfaces: gnet.InterfacesWithContext,
		resolver:   defaultResolver(),
	}
}

// Interfaces returns one record per interface that has byte counters.
func (s *SystemSource) Interfaces(ctx context.Context) ([]Record, error) {
	counters, err := s.ioCounters(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("read interface counters: %w", err)
	}

	ifaces, err := s.interfaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	byName := make(map[string]gnet.InterfaceStat, len(ifaces))
	for _, iface := range ifaces {
		byName[iface.Name] = iface
	}

	records := make([]Record, 0, len(counters))
	for _, c := range counters {
		iface, ok := byName[c.Name]
		if !ok {
			// Counters without a matching interface belong to devices that
			// disappeared between the two calls.
			continue
		}

		ifType, desc := s.resolver.resolve(iface.Name, iface.Flags)
		records = append(records, Record{
			Index:       uint32(iface.Index),
			Name:        iface.Name,
			Description: desc,
			Type:        ifType,
			Operational: slices.Contains(iface.Flags, "up"),
			BytesIn:     c.BytesRecv,
			BytesOut:    c.BytesSent,
		})
	}

	slices.SortFunc(records, func(a, b Record) int {
		return int(a.Index) - int(b.Index)
	})
	return records, nil
}

// typeFromFlags is the portable fallback used when no richer source exists.
func typeFromFlags(flags []string) uint32 {
	switch {
	case slices.Contains(flags, "loopback"):
		return TypeLoopback
	case slices.Contains(flags, "pointtopoint"):
		return TypePPP
	default:
		return TypeEthernet
	}
}

type flagResolver struct{}

func (flagResolver) resolve(name string, flags []string) (uint32, string) {
	return typeFromFlags(flags), name
}
