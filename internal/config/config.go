// Package config handles switch configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"firestige.xyz/lswitch/internal/log"
	"firestige.xyz/lswitch/internal/switching/table"
)

// Config is the root of the configuration file.
type Config struct {
	Switch  SwitchConfig      `mapstructure:"switch" yaml:"switch"`
	Log     *log.LoggerConfig `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Replay  ReplayConfig      `mapstructure:"replay" yaml:"replay"`
	Bridge  BridgeConfig      `mapstructure:"bridge" yaml:"bridge"`
}

// SwitchConfig sizes the forwarding core. A table capacity of 0, written or
// omitted, means table.DefaultCapacity; negative capacities are invalid.
type SwitchConfig struct {
	TableCapacity int      `mapstructure:"table_capacity" yaml:"table_capacity"`
	Interfaces    []string `mapstructure:"interfaces" yaml:"interfaces,omitempty"` // Used when no interfaces are given on the command line
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ReplayConfig controls the pcap replay host.
type ReplayConfig struct {
	OutDir string `mapstructure:"out_dir" yaml:"out_dir"`
}

// BridgeConfig controls the AF_PACKET bridge host.
type BridgeConfig struct {
	SnapLen     int           `mapstructure:"snap_len" yaml:"snap_len"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	QueueDepth  int           `mapstructure:"queue_depth" yaml:"queue_depth"`
}

const (
	DefaultMetricsListen = "127.0.0.1:9108"
	DefaultMetricsPath   = "/metrics"
	DefaultReplayOutDir  = "."
	DefaultSnapLen       = 65536
	DefaultPollTimeout   = 100 * time.Millisecond
	DefaultQueueDepth    = 1024
)

var ErrInvalidConfig = errors.New("invalid config")

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values. Zero and absent are the same thing for
// every numeric key.
func applyDefaults(cfg *Config) {
	if cfg.Switch.TableCapacity == 0 {
		cfg.Switch.TableCapacity = table.DefaultCapacity
	}
	if cfg.Log == nil {
		cfg.Log = log.DefaultConfig()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Pattern == "" {
		cfg.Log.Pattern = log.DefaultPattern
	}
	if cfg.Log.Time == "" {
		cfg.Log.Time = log.DefaultTime
	}
	if len(cfg.Log.Appenders) == 0 {
		cfg.Log.Appenders = []log.AppenderConfig{{Type: log.AppenderConsole}}
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Replay.OutDir == "" {
		cfg.Replay.OutDir = DefaultReplayOutDir
	}
	if cfg.Bridge.SnapLen == 0 {
		cfg.Bridge.SnapLen = DefaultSnapLen
	}
	if cfg.Bridge.PollTimeout == 0 {
		cfg.Bridge.PollTimeout = DefaultPollTimeout
	}
	if cfg.Bridge.QueueDepth == 0 {
		cfg.Bridge.QueueDepth = DefaultQueueDepth
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if c.Switch.TableCapacity < 1 {
		errs = append(errs, fmt.Errorf("switch.table_capacity must be at least 1, got %d", c.Switch.TableCapacity))
	}
	for i, name := range c.Switch.Interfaces {
		if name == "" {
			errs = append(errs, fmt.Errorf("switch.interfaces[%d] is empty", i))
		}
	}
	if c.Bridge.SnapLen < 64 {
		errs = append(errs, fmt.Errorf("bridge.snap_len must be at least 64, got %d", c.Bridge.SnapLen))
	}
	if c.Bridge.PollTimeout < 0 {
		errs = append(errs, fmt.Errorf("bridge.poll_timeout must not be negative"))
	}
	if c.Bridge.QueueDepth < 1 {
		errs = append(errs, fmt.Errorf("bridge.queue_depth must be at least 1, got %d", c.Bridge.QueueDepth))
	}
	if c.Log != nil {
		if err := c.Log.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("log: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
