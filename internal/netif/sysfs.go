package netif

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sysfsNetPath is the base path for network interface attributes on Linux.
const sysfsNetPath = "/sys/class/net"

// ARPHRD hardware types reported in /sys/class/net/<iface>/type.
const (
	arphrdEther     = 1
	arphrdPPP       = 512
	arphrdTunnel    = 768
	arphrdTunnel6   = 769
	arphrdLoopback  = 772
	arphrdSit       = 776
	arphrdIPGRE     = 778
	arphrdIEEE80211 = 801
	arphrdIP6GRE    = 823
	arphrdNone      = 65534
)

// sysfsResolver classifies interfaces from the attributes the kernel exposes in sysfs.
type sysfsResolver struct {
	root string
}

func (r sysfsResolver) resolve(name string, flags []string) (uint32, string) {
	ifType := r.classify(name, flags)
	desc := name
	switch {
	case strings.HasPrefix(name, "bnep"):
		desc = name + " (Bluetooth PAN)"
	default:
		if driver := r.driver(name); driver != "" {
			desc = name + " (" + driver + ")"
		}
	}
	return ifType, desc
}

func (r sysfsResolver) classify(name string, flags []string) uint32 {
	hw, err := r.readAttr(filepath.Join(r.root, name, "type"))
	if err != nil {
		return typeFromFlags(flags)
	}

	switch hw {
	case arphrdLoopback:
		return TypeLoopback
	case arphrdPPP:
		return TypePPP
	case arphrdTunnel, arphrdTunnel6, arphrdSit, arphrdIPGRE, arphrdIP6GRE, arphrdNone:
		return TypeTunnel
	case arphrdIEEE80211:
		return TypeWiFi
	case arphrdEther:
		if r.exists(name, "wireless") || r.exists(name, "phy80211") {
			return TypeWiFi
		}
		if r.isVirtualDevice(name) {
			return TypePropVirtual
		}
		return TypeEthernet
	default:
		return TypeOther
	}
}

// isVirtualDevice reports whether the interface has no backing hardware.
// The kernel links such devices under /sys/devices/virtual/net.
func (r sysfsResolver) isVirtualDevice(name string) bool {
	target, err := filepath.EvalSymlinks(filepath.Join(r.root, name))
	if err != nil {
		return false
	}
	return strings.Contains(filepath.ToSlash(target), "/devices/virtual/")
}

func (r sysfsResolver) driver(name string) string {
	target, err := os.Readlink(filepath.Join(r.root, name, "device", "driver"))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}

func (r sysfsResolver) exists(name, attr string) bool {
	_, err := os.Stat(filepath.Join(r.root, name, attr))
	return err == nil
}

// readAttr reads a single numeric attribute file.
// The path is validated to ensure it stays within the resolver root.
func (r sysfsResolver) readAttr(path string) (uint64, error) {
	cleanPath := filepath.Clean(path)
	if !strings.HasPrefix(cleanPath, filepath.Clean(r.root)+string(filepath.Separator)) {
		return 0, errors.New("invalid sysfs path: outside network directory")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- path validated above
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}
