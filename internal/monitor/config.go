package monitor

import (
	"time"

	"github.com/shini4i/netspeed/internal/netif"
)

const (
	// DefaultMinInterval is the default floor between two rate computations.
	DefaultMinInterval = 100 * time.Millisecond
	// MinAllowedInterval is the smallest floor the configuration accepts.
	MinAllowedInterval = 10 * time.Millisecond

	// DefaultWrapCeiling is the default sanity ceiling in bytes per second.
	// A wrapped counter implying a faster rate is treated as a reset.
	DefaultWrapCeiling uint64 = 1 << 40
)

// PrecisionMode selects how a single Measure call derives its reading.
type PrecisionMode int

const (
	// PrecisionInstant diffs against the previous call (default).
	PrecisionInstant PrecisionMode = iota
	// PrecisionWindowed takes two snapshots Window apart within one call.
	PrecisionWindowed
	// PrecisionSampled averages Samples windowed readings taken Interval apart.
	PrecisionSampled
)

func (p PrecisionMode) String() string {
	switch p {
	case PrecisionInstant:
		return "instant"
	case PrecisionWindowed:
		return "windowed"
	case PrecisionSampled:
		return "sampled"
	default:
		return "unknown"
	}
}

// Precision configures the measurement mode.
type Precision struct {
	Mode     PrecisionMode
	Window   time.Duration
	Samples  int
	Interval time.Duration
}

// Config is the validated configuration of a Monitor.
type Config struct {
	Filter      netif.FilterConfig
	MinInterval time.Duration
	// WrapCeiling is the largest plausible rate in bytes per second.
	WrapCeiling uint64
	Precision   Precision
}

// DefaultConfig returns the configuration used when nothing is customised.
func DefaultConfig() Config {
	return Config{
		Filter:      netif.DefaultFilterConfig(),
		MinInterval: DefaultMinInterval,
		WrapCeiling: DefaultWrapCeiling,
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.MinInterval < MinAllowedInterval {
		return invalid("min_interval", "must be at least 10ms")
	}
	if c.WrapCeiling == 0 {
		return invalid("wrap_ceiling", "cannot be zero")
	}

	switch c.Precision.Mode {
	case PrecisionInstant:
	case PrecisionWindowed:
		if c.Precision.Window <= 0 {
			return invalid("precision.window", "must be > 0")
		}
		if c.Precision.Window < c.MinInterval {
			return invalid("precision.window", "must not be shorter than min_interval")
		}
	case PrecisionSampled:
		if c.Precision.Samples < 2 {
			return invalid("precision.samples", "must be >= 2")
		}
		if c.Precision.Interval <= 0 {
			return invalid("precision.interval", "must be > 0")
		}
		if c.Precision.Interval < c.MinInterval {
			return invalid("precision.interval", "must not be shorter than min_interval")
		}
	default:
		return invalid("precision.mode", "is unknown")
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	out.Filter = c.Filter.Clone()
	return out
}

// Builder assembles a Config step by step and validates it in Build.
type Builder struct {
	cfg Config
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// ExcludeVirtual toggles exclusion of VPN, hypervisor and tunnel adapters.
func (b *Builder) ExcludeVirtual(exclude bool) *Builder {
	b.cfg.Filter.ExcludeVirtual = exclude
	return b
}

// ExcludeLoopback toggles exclusion of loopback adapters.
func (b *Builder) ExcludeLoopback(exclude bool) *Builder {
	b.cfg.Filter.ExcludeLoopback = exclude
	return b
}

// ExcludeBluetooth toggles exclusion of Bluetooth PAN adapters.
func (b *Builder) ExcludeBluetooth(exclude bool) *Builder {
	b.cfg.Filter.ExcludeBluetooth = exclude
	return b
}

// AddNameExclusion excludes adapters whose description contains s.
func (b *Builder) AddNameExclusion(s string) *Builder {
	b.cfg.Filter.NameExclusions = append(b.cfg.Filter.NameExclusions, s)
	return b
}

// NameExclusions replaces the description exclusions.
func (b *Builder) NameExclusions(s []string) *Builder {
	b.cfg.Filter.NameExclusions = append([]string(nil), s...)
	return b
}

// AddTypeExclusion excludes adapters of the given type.
func (b *Builder) AddTypeExclusion(ifType uint32) *Builder {
	b.cfg.Filter.TypeExclusions = append(b.cfg.Filter.TypeExclusions, ifType)
	return b
}

// TypeExclusions replaces the type exclusions.
func (b *Builder) TypeExclusions(types []uint32) *Builder {
	b.cfg.Filter.TypeExclusions = append([]uint32(nil), types...)
	return b
}

// IncludeIndices restricts aggregation to the given interface indices.
func (b *Builder) IncludeIndices(indices []uint32) *Builder {
	b.cfg.Filter.IncludeIndices = append([]uint32(nil), indices...)
	return b
}

// IncludeNames restricts aggregation to interfaces matching the given substrings.
func (b *Builder) IncludeNames(names []string) *Builder {
	b.cfg.Filter.IncludeNames = append([]string(nil), names...)
	return b
}

// Filter replaces the whole filter configuration.
func (b *Builder) Filter(f netif.FilterConfig) *Builder {
	b.cfg.Filter = f.Clone()
	return b
}

// MinInterval sets the floor between rate computations.
func (b *Builder) MinInterval(d time.Duration) *Builder {
	b.cfg.MinInterval = d
	return b
}

// WrapCeiling sets the sanity ceiling for wrapped counters in bytes per second.
func (b *Builder) WrapCeiling(bytesPerSec uint64) *Builder {
	b.cfg.WrapCeiling = bytesPerSec
	return b
}

// Windowed switches to windowed precision.
func (b *Builder) Windowed(window time.Duration) *Builder {
	b.cfg.Precision = Precision{Mode: PrecisionWindowed, Window: window}
	return b
}

// Sampled switches to sampled precision.
func (b *Builder) Sampled(samples int, interval time.Duration) *Builder {
	b.cfg.Precision = Precision{Mode: PrecisionSampled, Samples: samples, Interval: interval}
	return b
}

// Build validates and returns the configuration.
func (b *Builder) Build() (Config, error) {
	if err := b.cfg.Validate(); err != nil {
		return Config{}, err
	}
	return b.cfg.clone(), nil
}
