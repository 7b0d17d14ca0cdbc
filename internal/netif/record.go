// Package netif enumerates network interfaces with their byte counters and
// decides which of them take part in throughput aggregation.
package netif

import "strings"

// Interface type identifiers, following the IANA ifType numbering.
const (
	TypeOther       uint32 = 1
	TypeEthernet    uint32 = 6
	TypeTokenRing   uint32 = 9
	TypePPP         uint32 = 23
	TypeLoopback    uint32 = 24
	TypeSerial      uint32 = 37
	TypePropVirtual uint32 = 53
	TypeWiFi        uint32 = 71
	TypeTunnel      uint32 = 131
	TypeWWAN        uint32 = 144
	TypeWiMAX       uint32 = 145
)

// virtualKeywords mark adapters created by VPN clients, hypervisors and tunnels.
var virtualKeywords = []string{
	"virtual",
	"vpn",
	"tunnel",
	"tap",
	"tun",
	"vmware",
	"virtualbox",
	"vbox",
	"hyper-v",
	"teredo",
	"6to4",
	"isatap",
	"wan miniport",
	"ras async adapter",
	"pptp",
	"l2tp",
	"sstp",
	"ikev2",
	"ppp",
	"dial-up",
	"veth",
	"docker",
	"virbr",
}

// Record is one interface as reported by a single snapshot.
type Record struct {
	// Index is the interface index assigned by the operating system.
	Index uint32 `json:"index"`
	// Name is the kernel interface name (e.g. "eth0"). May be empty on platforms
	// that only expose descriptions.
	Name string `json:"name,omitempty"`
	// Description is the human-readable adapter description.
	Description string `json:"description"`
	// Type is the IANA ifType of the interface.
	Type uint32 `json:"type"`
	// Operational is true when the interface is up.
	Operational bool `json:"operational"`

	// BytesIn is the cumulative received octet counter.
	BytesIn uint64 `json:"bytes_in"`
	// BytesOut is the cumulative transmitted octet counter.
	BytesOut uint64 `json:"bytes_out"`
}

// IsLoopback reports whether the record is a loopback adapter.
func (r Record) IsLoopback() bool {
	return r.Type == TypeLoopback
}

// IsVirtual reports whether the record is a VPN, hypervisor or tunnel adapter.
func (r Record) IsVirtual() bool {
	switch r.Type {
	case TypePPP, TypePropVirtual, TypeTunnel:
		return true
	}
	desc := strings.ToLower(r.Description)
	for _, kw := range virtualKeywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

// IsBluetooth reports whether the record is a Bluetooth PAN adapter.
func (r Record) IsBluetooth() bool {
	return strings.Contains(strings.ToLower(r.Description), "bluetooth") ||
		strings.HasPrefix(r.Name, "bnep")
}

// TotalBytes returns the sum of both counters, saturating on overflow.
func (r Record) TotalBytes() uint64 {
	if r.BytesIn > ^uint64(0)-r.BytesOut {
		return ^uint64(0)
	}
	return r.BytesIn + r.BytesOut
}

// DisplayName returns the name if known, otherwise the description.
func (r Record) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return strings.TrimSpace(r.Description)
}

// TypeName returns a short label for the interface type.
func (r Record) TypeName() string {
	switch r.Type {
	case TypeOther:
		return "Other"
	case TypeEthernet:
		return "Ethernet"
	case TypeTokenRing:
		return "Token Ring"
	case TypePPP:
		return "PPP"
	case TypeLoopback:
		return "Loopback"
	case TypeSerial:
		return "Serial"
	case TypePropVirtual:
		return "Virtual"
	case TypeWiFi:
		return "Wi-Fi"
	case TypeTunnel:
		return "Tunnel"
	case TypeWWAN:
		return "WWAN"
	case TypeWiMAX:
		return "WiMAX"
	default:
		return "Unknown"
	}
}
