package netif

import (
	"slices"
	"strings"
)

// FilterConfig selects which interfaces contribute to aggregated counters.
type FilterConfig struct {
	ExcludeVirtual   bool `json:"exclude_virtual" yaml:"exclude_virtual"`
	ExcludeLoopback  bool `json:"exclude_loopback" yaml:"exclude_loopback"`
	ExcludeBluetooth bool `json:"exclude_bluetooth" yaml:"exclude_bluetooth"`

	// NameExclusions are case-insensitive substrings matched against descriptions.
	NameExclusions []string `json:"name_exclusions,omitempty" yaml:"name_exclusions,omitempty"`
	// TypeExclusions are interface types that are never eligible.
	TypeExclusions []uint32 `json:"type_exclusions,omitempty" yaml:"type_exclusions,omitempty"`

	// IncludeIndices restricts eligibility to these indices when non-empty.
	IncludeIndices []uint32 `json:"include_indices,omitempty" yaml:"include_indices,omitempty"`
	// IncludeNames restricts eligibility to records whose name or description
	// contains one of these case-insensitive substrings when non-empty.
	IncludeNames []string `json:"include_names,omitempty" yaml:"include_names,omitempty"`
}

// DefaultFilterConfig excludes virtual, loopback and Bluetooth adapters.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		ExcludeVirtual:   true,
		ExcludeLoopback:  true,
		ExcludeBluetooth: true,
		TypeExclusions:   []uint32{TypeLoopback},
	}
}

// Clone returns a deep copy so callers can't mutate shared slices.
func (c FilterConfig) Clone() FilterConfig {
	out := c
	out.NameExclusions = slices.Clone(c.NameExclusions)
	out.TypeExclusions = slices.Clone(c.TypeExclusions)
	out.IncludeIndices = slices.Clone(c.IncludeIndices)
	out.IncludeNames = slices.Clone(c.IncludeNames)
	return out
}

// Allows reports whether a single record is eligible.
func (c FilterConfig) Allows(r Record) bool {
	if !r.Operational {
		return false
	}
	if c.ExcludeLoopback && r.IsLoopback() {
		return false
	}
	if c.ExcludeVirtual && r.IsVirtual() {
		return false
	}
	if c.ExcludeBluetooth && r.IsBluetooth() {
		return false
	}
	if slices.Contains(c.TypeExclusions, r.Type) {
		return false
	}
	if len(c.NameExclusions) > 0 && containsAny(r.Description, c.NameExclusions) {
		return false
	}
	if len(c.IncludeIndices) > 0 && !slices.Contains(c.IncludeIndices, r.Index) {
		return false
	}
	if len(c.IncludeNames) > 0 && !containsAny(r.Name, c.IncludeNames) && !containsAny(r.Description, c.IncludeNames) {
		return false
	}
	return true
}

// Eligible returns the records that pass cfg, preserving their order.
// An empty result is not an error.
func Eligible(records []Record, cfg FilterConfig) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if cfg.Allows(r) {
			out = append(out, r)
		}
	}
	return out
}

func containsAny(s string, substrings []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		if sub == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
