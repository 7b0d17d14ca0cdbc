// Package config manages the application configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shini4i/netspeed/internal/logging"
	"github.com/shini4i/netspeed/internal/monitor"
	"github.com/shini4i/netspeed/internal/netif"
	"github.com/shini4i/netspeed/internal/poller"
)

const (
	// AppName is the application identifier used for XDG paths.
	AppName = "netspeed"
	// ConfigFileName is the name of the main configuration file.
	ConfigFileName = "config.yaml"
	// SocketFileName is the name of the daemon socket in the runtime directory.
	SocketFileName = "netspeed.sock"
)

// Precision mirrors monitor.Precision with a string mode for the file format.
type Precision struct {
	Mode     string        `yaml:"mode" json:"mode"`
	Window   time.Duration `yaml:"window,omitempty" json:"window,omitempty"`
	Samples  int           `yaml:"samples,omitempty" json:"samples,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
}

// Config represents the application configuration.
type Config struct {
	Filter      netif.FilterConfig `yaml:"filter" json:"filter"`
	MinInterval time.Duration      `yaml:"min_interval" json:"min_interval"`
	WrapCeiling uint64             `yaml:"wrap_ceiling" json:"wrap_ceiling"`
	Precision   Precision          `yaml:"precision" json:"precision"`

	HistorySize  int           `yaml:"history_size" json:"history_size"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	ChannelSize  int           `yaml:"channel_size" json:"channel_size"`
	Backpressure string        `yaml:"backpressure" json:"backpressure"`

	SocketPath string `yaml:"socket_path,omitempty" json:"socket_path,omitempty"`
	HTTPListen string `yaml:"http_listen,omitempty" json:"http_listen,omitempty"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Filter:       netif.DefaultFilterConfig(),
		MinInterval:  monitor.DefaultMinInterval,
		WrapCeiling:  monitor.DefaultWrapCeiling,
		Precision:    Precision{Mode: monitor.PrecisionInstant.String()},
		HistorySize:  monitor.DefaultHistorySize,
		PollInterval: poller.DefaultInterval,
		ChannelSize:  poller.DefaultBufferSize,
		Backpressure: poller.DropOldest.String(),
		LogLevel:     "info",
	}
}

// Paths holds the resolved configuration locations.
type Paths struct {
	ConfigDir  string
	ConfigFile string
	SocketPath string
}

// GetPaths returns the configuration paths following XDG Base Directory conventions.
func GetPaths() (*Paths, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configHome = filepath.Join(homeDir, ".config")
	}

	configDir := filepath.Join(configHome, AppName)
	return &Paths{
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, ConfigFileName),
		SocketPath: DefaultSocketPath(),
	}, nil
}

// DefaultSocketPath returns $XDG_RUNTIME_DIR/netspeed.sock, or a per-user
// path under the temp directory when no runtime directory is set.
func DefaultSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, SocketFileName)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d.sock", AppName, os.Getuid()))
}

// EnsurePaths creates the configuration directory.
func (p *Paths) EnsurePaths() error {
	if err := os.MkdirAll(p.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// Load reads the configuration from disk. A missing file yields defaults;
// keys absent from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration atomically: a uniquely named temp file in
// the same directory is synced and then renamed over path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to finalize config file: %w", err)
	}

	committed = true
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.HistorySize < 1 {
		return fmt.Errorf("history size must be at least 1")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.ChannelSize < 1 {
		return fmt.Errorf("channel size must be at least 1")
	}
	if _, err := poller.ParseBackpressure(c.Backpressure); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.MonitorConfig(); err != nil {
		return err
	}
	return nil
}

// MonitorConfig converts the file settings into a validated monitor.Config.
func (c *Config) MonitorConfig() (monitor.Config, error) {
	b := monitor.NewBuilder().
		Filter(c.Filter).
		MinInterval(c.MinInterval).
		WrapCeiling(c.WrapCeiling)

	switch strings.ToLower(c.Precision.Mode) {
	case "", monitor.PrecisionInstant.String():
	case monitor.PrecisionWindowed.String():
		b.Windowed(c.Precision.Window)
	case monitor.PrecisionSampled.String():
		b.Sampled(c.Precision.Samples, c.Precision.Interval)
	default:
		return monitor.Config{}, fmt.Errorf("unknown precision mode %q", c.Precision.Mode)
	}
	return b.Build()
}

// BackpressurePolicy returns the parsed backpressure setting.
func (c *Config) BackpressurePolicy() poller.Backpressure {
	policy, _ := poller.ParseBackpressure(c.Backpressure)
	return policy
}

// Socket returns the configured socket path or the default one.
func (c *Config) Socket() string {
	if c.SocketPath != "" {
		return c.SocketPath
	}
	return DefaultSocketPath()
}
