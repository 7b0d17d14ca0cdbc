// Package speed holds the throughput value produced by a single measurement
// together with its unit conversions.
package speed

import (
	"math"
	"time"
)

// Speed is one throughput reading in bytes per second.
type Speed struct {
	// Upload is the outbound rate in bytes per second.
	Upload uint64 `json:"upload_bytes_per_sec" yaml:"upload_bytes_per_sec"`
	// Download is the inbound rate in bytes per second.
	Download uint64 `json:"download_bytes_per_sec" yaml:"download_bytes_per_sec"`

	// MeasuredAt is when the reading was taken.
	MeasuredAt time.Time `json:"measured_at" yaml:"measured_at"`
}

// New returns a reading stamped with the given time.
func New(upload, download uint64, at time.Time) Speed {
	return Speed{Upload: upload, Download: download, MeasuredAt: at}
}

// Zero returns the baseline reading for the given time.
func Zero(at time.Time) Speed {
	return Speed{MeasuredAt: at}
}

// IsZero reports whether both directions are idle.
func (s Speed) IsZero() bool {
	return s.Upload == 0 && s.Download == 0
}

// UploadBits returns the upload rate in bits per second.
func (s Speed) UploadBits() uint64 {
	return toBits(s.Upload)
}

// DownloadBits returns the download rate in bits per second.
func (s Speed) DownloadBits() uint64 {
	return toBits(s.Download)
}

// UploadKbps returns the upload rate in kilobits per second.
func (s Speed) UploadKbps() float64 {
	return float64(s.Upload) * 8 / 1_000
}

// DownloadKbps returns the download rate in kilobits per second.
func (s Speed) DownloadKbps() float64 {
	return float64(s.Download) * 8 / 1_000
}

// UploadMbps returns the upload rate in megabits per second.
func (s Speed) UploadMbps() float64 {
	return float64(s.Upload) * 8 / 1_000_000
}

// DownloadMbps returns the download rate in megabits per second.
func (s Speed) DownloadMbps() float64 {
	return float64(s.Download) * 8 / 1_000_000
}

// UploadGbps returns the upload rate in gigabits per second.
func (s Speed) UploadGbps() float64 {
	return float64(s.Upload) * 8 / 1_000_000_000
}

// DownloadGbps returns the download rate in gigabits per second.
func (s Speed) DownloadGbps() float64 {
	return float64(s.Download) * 8 / 1_000_000_000
}

// Total returns upload plus download, saturating at the uint64 maximum.
func (s Speed) Total() uint64 {
	if s.Upload > math.MaxUint64-s.Download {
		return math.MaxUint64
	}
	return s.Upload + s.Download
}

// IsActive reports whether either direction exceeds threshold bytes per second.
func (s Speed) IsActive(threshold uint64) bool {
	return s.Upload > threshold || s.Download > threshold
}

// UploadFormatted returns the upload rate as a human-readable string.
func (s Speed) UploadFormatted() string {
	return FormatBytesPerSecond(s.Upload)
}

// DownloadFormatted returns the download rate as a human-readable string.
func (s Speed) DownloadFormatted() string {
	return FormatBytesPerSecond(s.Download)
}

// UploadBitsFormatted returns the upload rate in decimal bit units.
func (s Speed) UploadBitsFormatted() string {
	return FormatBitsPerSecond(s.UploadBits())
}

// DownloadBitsFormatted returns the download rate in decimal bit units.
func (s Speed) DownloadBitsFormatted() string {
	return FormatBitsPerSecond(s.DownloadBits())
}

func toBits(bytesPerSec uint64) uint64 {
	if bytesPerSec > math.MaxUint64/8 {
		return math.MaxUint64
	}
	return bytesPerSec * 8
}
