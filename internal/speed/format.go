package speed

import "fmt"

const (
	// Binary unit multipliers (1024-based).
	kib = 1024
	mib = kib * 1024
	gib = mib * 1024
	tib = gib * 1024

	// Decimal unit multipliers for bit rates.
	kbit = 1_000
	mbit = kbit * 1_000
	gbit = mbit * 1_000
	tbit = gbit * 1_000
)

// FormatBytesPerSecond formats a byte rate using 1024-based units (B, KB, MB,
// GB, TB). Values above the base unit carry two decimals.
func FormatBytesPerSecond(bytesPerSec uint64) string {
	switch {
	case bytesPerSec >= tib:
		return fmt.Sprintf("%.2f TB/s", float64(bytesPerSec)/tib)
	case bytesPerSec >= gib:
		return fmt.Sprintf("%.2f GB/s", float64(bytesPerSec)/gib)
	case bytesPerSec >= mib:
		return fmt.Sprintf("%.2f MB/s", float64(bytesPerSec)/mib)
	case bytesPerSec >= kib:
		return fmt.Sprintf("%.2f KB/s", float64(bytesPerSec)/kib)
	default:
		return fmt.Sprintf("%d B/s", bytesPerSec)
	}
}

// FormatBitsPerSecond formats a bit rate using 1000-based units (bps, Kbps, Mbps, Gbps, Tbps).
func FormatBitsPerSecond(bitsPerSec uint64) string {
	switch {
	case bitsPerSec >= tbit:
		return fmt.Sprintf("%.2f Tbps", float64(bitsPerSec)/tbit)
	case bitsPerSec >= gbit:
		return fmt.Sprintf("%.2f Gbps", float64(bitsPerSec)/gbit)
	case bitsPerSec >= mbit:
		return fmt.Sprintf("%.2f Mbps", float64(bitsPerSec)/mbit)
	case bitsPerSec >= kbit:
		return fmt.Sprintf("%.2f Kbps", float64(bitsPerSec)/kbit)
	default:
		return fmt.Sprintf("%d bps", bitsPerSec)
	}
}
