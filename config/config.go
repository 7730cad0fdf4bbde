// Package config implements global configuration options.
package config

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/a8m/envsubst"
	"gopkg.in/yaml.v3"
)

// GlobalConfig holds the global configuration options.
var GlobalConfig Config

const (
	// StorageBackendMemory is the name of the in-memory storage backend.
	StorageBackendMemory = "memory"
	// StorageBackendBadger is the name of the badger storage backend.
	StorageBackendBadger = "badger"

	// MetricsModeNone disables the metrics service.
	MetricsModeNone = "none"
	// MetricsModePull serves metrics over HTTP for prometheus to scrape.
	MetricsModePull = "pull"
)

// Config is the top-level configuration structure.
type Config struct {
	Common  CommonConfig  `yaml:"common"`
	Storage StorageConfig `yaml:"storage"`
	Genesis GenesisConfig `yaml:"genesis"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	GRPC    GRPCConfig    `yaml:"grpc,omitempty"`
}

// CommonConfig is the common configuration structure.
type CommonConfig struct {
	// Data directory.
	DataDir string `yaml:"data_dir"`
	// Logging configuration options.
	Log LogConfig `yaml:"log,omitempty"`
}

// LogConfig is the logging configuration structure.
type LogConfig struct {
	// Log file.
	File string `yaml:"file,omitempty"`
	// Log format (logfmt, json).
	Format string `yaml:"format,omitempty"`
	// Log level (debug, info, warn, error) per module, "default" for the
	// rest.
	Level map[string]string `yaml:"level,omitempty"`
}

// StorageConfig is the ledger storage configuration structure.
type StorageConfig struct {
	// Storage backend (memory, badger).
	Backend string `yaml:"backend"`
	// Fsync every committed transaction (badger only).
	SyncWrites bool `yaml:"sync_writes,omitempty"`
	// Block compression (badger only).
	Compression bool `yaml:"compression,omitempty"`
	// Value log GC interval (badger only).
	GCInterval time.Duration `yaml:"gc_interval,omitempty"`
}

// GenesisConfig is the genesis configuration structure.
type GenesisConfig struct {
	// Path to the genesis document.
	File string `yaml:"file"`
}

// MetricsConfig is the metrics configuration structure.
type MetricsConfig struct {
	// Metrics mode (none, pull).
	Mode string `yaml:"mode"`
	// Metrics pull address.
	Address string `yaml:"address"`
}

// GRPCConfig is the query service configuration structure.
type GRPCConfig struct {
	// Listen address, empty for the internal socket in the data directory.
	Address string `yaml:"address,omitempty"`
}

// Validate validates the configuration settings.
func (c *CommonConfig) Validate() error {
	switch c.Log.Format {
	case "", "logfmt", "json", "JSON":
	default:
		return fmt.Errorf("unknown log format: %s", c.Log.Format)
	}
	return nil
}

// Validate validates the configuration settings.
func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case StorageBackendMemory:
	case StorageBackendBadger:
		if c.GCInterval < 0 {
			return fmt.Errorf("negative gc_interval: %s", c.GCInterval)
		}
	default:
		return fmt.Errorf("unknown backend: %s", c.Backend)
	}
	return nil
}

// Validate validates the configuration settings.
func (c *MetricsConfig) Validate() error {
	switch c.Mode {
	case MetricsModeNone:
	case MetricsModePull:
		if len(c.Address) == 0 {
			return fmt.Errorf("missing address in pull mode")
		}
	default:
		return fmt.Errorf("unknown metrics mode: %s", c.Mode)
	}
	return nil
}

// Validate validates the configuration settings.
func (c *Config) Validate() error {
	if err := c.Common.Validate(); err != nil {
		return fmt.Errorf("common: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// DefaultConfig returns the default configuration settings.
func DefaultConfig() Config {
	return Config{
		Common: CommonConfig{
			DataDir: "",
			Log: LogConfig{
				File:   "",
				Format: "logfmt",
				Level: map[string]string{
					"default": "warn",
				},
			},
		},
		Storage: StorageConfig{
			Backend:     StorageBackendBadger,
			SyncWrites:  true,
			Compression: true,
			GCInterval:  5 * time.Minute,
		},
		Genesis: GenesisConfig{
			File: "genesis.json",
		},
		Metrics: MetricsConfig{
			Mode:    MetricsModeNone,
			Address: "127.0.0.1:3000",
		},
		GRPC: GRPCConfig{
			Address: "",
		},
	}
}

func decode(data []byte) (*Config, error) {
	// Report error if any of the fields from the input are unknown.
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse decodes a configuration document on top of the defaults, after
// substituting environment variables.
func Parse(raw []byte) (*Config, error) {
	data, err := envsubst.Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}
	return decode(data)
}

// InitConfig initializes the global configuration from the given file.
func InitConfig(cfgFile string) error {
	// Read the specified config file and substitute environment variables.
	data, err := envsubst.ReadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("unable to read config file '%s': %w", cfgFile, err)
	}

	cfg, err := decode(data)
	if err != nil {
		return fmt.Errorf("failed to load config file '%s': %w", cfgFile, err)
	}
	GlobalConfig = *cfg
	return nil
}

func init() {
	GlobalConfig = DefaultConfig()
}
