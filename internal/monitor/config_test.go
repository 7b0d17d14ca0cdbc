package monitor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shini4i/netspeed/internal/netif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Filter.ExcludeVirtual)
	assert.True(t, cfg.Filter.ExcludeLoopback)
	assert.True(t, cfg.Filter.ExcludeBluetooth)
	assert.Equal(t, []uint32{netif.TypeLoopback}, cfg.Filter.TypeExclusions)
	assert.Equal(t, 100*time.Millisecond, cfg.MinInterval)
	assert.Equal(t, DefaultWrapCeiling, cfg.WrapCeiling)
	assert.Equal(t, PrecisionInstant, cfg.Precision.Mode)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectField string
	}{
		{"interval below floor", func(c *Config) { c.MinInterval = 9 * time.Millisecond }, "min_interval"},
		{"negative interval", func(c *Config) { c.MinInterval = -time.Second }, "min_interval"},
		{"zero wrap ceiling", func(c *Config) { c.WrapCeiling = 0 }, "wrap_ceiling"},
		{"windowed without window", func(c *Config) { c.Precision = Precision{Mode: PrecisionWindowed} }, "precision.window"},
		{"window shorter than interval", func(c *Config) {
			c.Precision = Precision{Mode: PrecisionWindowed, Window: 50 * time.Millisecond}
		}, "precision.window"},
		{"single sample", func(c *Config) {
			c.Precision = Precision{Mode: PrecisionSampled, Samples: 1, Interval: time.Second}
		}, "precision.samples"},
		{"sampled without interval", func(c *Config) {
			c.Precision = Precision{Mode: PrecisionSampled, Samples: 3}
		}, "precision.interval"},
		{"unknown mode", func(c *Config) { c.Precision.Mode = PrecisionMode(42) }, "precision.mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			var cfgErr *InvalidConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.expectField, cfgErr.Field)
			assert.Equal(t, CodeInvalidConfiguration, Code(err))
		})
	}
}

func TestConfig_ValidateAcceptsBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinInterval = MinAllowedInterval
	assert.NoError(t, cfg.Validate())
}

func TestBuilder(t *testing.T) {
	cfg, err := NewBuilder().
		ExcludeVirtual(false).
		ExcludeLoopback(false).
		ExcludeBluetooth(false).
		AddNameExclusion("docker").
		AddTypeExclusion(netif.TypeTunnel).
		IncludeNames([]string{"eth"}).
		IncludeIndices([]uint32{2}).
		MinInterval(250 * time.Millisecond).
		WrapCeiling(1 << 30).
		Build()
	require.NoError(t, err)

	assert.False(t, cfg.Filter.ExcludeVirtual)
	assert.False(t, cfg.Filter.ExcludeLoopback)
	assert.False(t, cfg.Filter.ExcludeBluetooth)
	assert.Equal(t, []string{"docker"}, cfg.Filter.NameExclusions)
	assert.Equal(t, []uint32{netif.TypeLoopback, netif.TypeTunnel}, cfg.Filter.TypeExclusions)
	assert.Equal(t, []string{"eth"}, cfg.Filter.IncludeNames)
	assert.Equal(t, []uint32{2}, cfg.Filter.IncludeIndices)
	assert.Equal(t, 250*time.Millisecond, cfg.MinInterval)
	assert.Equal(t, uint64(1<<30), cfg.WrapCeiling)
}

func TestBuilder_Precision(t *testing.T) {
	cfg, err := NewBuilder().Sampled(5, 200*time.Millisecond).Build()
	require.NoError(t, err)
	assert.Equal(t, Precision{Mode: PrecisionSampled, Samples: 5, Interval: 200 * time.Millisecond}, cfg.Precision)
	assert.Equal(t, "sampled", cfg.Precision.Mode.String())

	cfg, err = NewBuilder().Windowed(time.Second).Build()
	require.NoError(t, err)
	assert.Equal(t, "windowed", cfg.Precision.Mode.String())
}

func TestBuilder_BuildRejectsInvalid(t *testing.T) {
	cfg, err := NewBuilder().MinInterval(time.Millisecond).Build()
	var cfgErr *InvalidConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, cfg.MinInterval)
}

func TestNewWithConfig_RejectsInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WrapCeiling = 0
	_, err := NewWithConfig(&counterSource{}, cfg)
	assert.Error(t, err)
}

func TestCode(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      int
		retryable bool
	}{
		{"nil", nil, CodeOK, false},
		{"no interfaces", ErrNoInterfacesFound, CodeNoInterfacesFound, false},
		{"wrapped no interfaces", fmt.Errorf("measure: %w", ErrNoInterfacesFound), CodeNoInterfacesFound, false},
		{"too soon", &InsufficientTimeElapsedError{Min: 100 * time.Millisecond, Actual: 20 * time.Millisecond}, CodeInsufficientTimeElapsed, true},
		{"source", &SourceUnavailableError{Err: errors.New("x")}, CodeSourceUnavailable, false},
		{"config", &InvalidConfigurationError{Field: "f", Reason: "r"}, CodeInvalidConfiguration, false},
		{"other", errors.New("other"), CodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, Code(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestInsufficientTimeElapsedError_Message(t *testing.T) {
	err := &InsufficientTimeElapsedError{Min: 100 * time.Millisecond, Actual: 42 * time.Millisecond}
	assert.Equal(t, "insufficient time elapsed for accurate measurement (minimum: 100ms, actual: 42ms)", err.Error())

	neg := &InsufficientTimeElapsedError{Min: time.Second, Actual: -time.Second}
	assert.Equal(t, uint64(0), neg.ActualMs())
}
