package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultMaxSizeBytes     = 64 << 20 // 64MB
	DefaultMaxEntries       = 10_000
	DefaultTTL              = time.Hour
	DefaultCleanupInterval  = time.Minute
	DefaultSnapshotKey      = "cachekit:snapshot"
	DefaultSnapshotMaxAge   = 24 * time.Hour
	DefaultTransformTimeout = 5 * time.Second
)

// Config holds the engine budgets and feature toggles.
// It is copied by New and never changes for the lifetime of the engine.
type Config struct {
	// Hard budgets. Both are enforced after every Set.
	MaxSizeBytes int64 `yaml:"max_size_bytes" env:"CACHE_MAX_SIZE_BYTES" envDefault:"67108864"`
	MaxEntries   int   `yaml:"max_entries" env:"CACHE_MAX_ENTRIES" envDefault:"10000"`

	// DefaultTTL applies when Set is called without WithTTL or with a zero TTL.
	DefaultTTL time.Duration `yaml:"default_ttl" env:"CACHE_DEFAULT_TTL" envDefault:"1h"`

	// CleanupInterval is the period of the background sweep. Zero or negative disables it.
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CACHE_CLEANUP_INTERVAL" envDefault:"1m"`

	CompressionEnabled bool `yaml:"compression_enabled" env:"CACHE_COMPRESSION_ENABLED" envDefault:"false"`
	PersistToDisk      bool `yaml:"persist_to_disk" env:"CACHE_PERSIST" envDefault:"false"`
	AdaptiveEviction   bool `yaml:"adaptive_eviction" env:"CACHE_ADAPTIVE_EVICTION" envDefault:"true"`

	// EvictionStrategy pins the eviction order. Empty lets the engine choose.
	EvictionStrategy Strategy `yaml:"eviction_strategy" env:"CACHE_EVICTION_STRATEGY"`

	// Snapshot settings, used only when PersistToDisk is set and a store is configured.
	SnapshotKey      string        `yaml:"snapshot_key" env:"CACHE_SNAPSHOT_KEY" envDefault:"cachekit:snapshot"`
	SnapshotMaxAge   time.Duration `yaml:"snapshot_max_age" env:"CACHE_SNAPSHOT_MAX_AGE" envDefault:"24h"`
	SnapshotSchedule string        `yaml:"snapshot_schedule" env:"CACHE_SNAPSHOT_SCHEDULE"`

	// TransformTimeout bounds each compression round trip before falling back to the raw payload.
	TransformTimeout time.Duration `yaml:"transform_timeout" env:"CACHE_TRANSFORM_TIMEOUT" envDefault:"5s"`
}

// DefaultConfig returns a configuration with every field set to its default.
func DefaultConfig() Config {
	c := Config{
		CleanupInterval:  DefaultCleanupInterval,
		AdaptiveEviction: true,
	}
	c.applyDefaults()
	return c
}

// applyDefaults fills in default values for zero config fields.
// CleanupInterval is left alone: zero disables the sweep.
func (c *Config) applyDefaults() {
	if c.MaxSizeBytes == 0 {
		c.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.SnapshotKey == "" {
		c.SnapshotKey = DefaultSnapshotKey
	}
	if c.SnapshotMaxAge == 0 {
		c.SnapshotMaxAge = DefaultSnapshotMaxAge
	}
	if c.TransformTimeout == 0 {
		c.TransformTimeout = DefaultTransformTimeout
	}
}

// Validate reports whether the configuration can be used to build an engine.
func (c Config) Validate() error {
	if c.MaxSizeBytes < 0 {
		return fmt.Errorf("%w: max_size_bytes must be positive", ErrInvalidConfig)
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("%w: max_entries must be positive", ErrInvalidConfig)
	}
	if c.SnapshotMaxAge < 0 {
		return fmt.Errorf("%w: snapshot_max_age must not be negative", ErrInvalidConfig)
	}
	if c.TransformTimeout < 0 {
		return fmt.Errorf("%w: transform_timeout must not be negative", ErrInvalidConfig)
	}
	if c.EvictionStrategy != "" && !c.EvictionStrategy.valid() {
		return fmt.Errorf("%w: unknown eviction strategy %q", ErrInvalidConfig, c.EvictionStrategy)
	}
	if c.SnapshotSchedule != "" {
		if _, err := parseCronSchedule(c.SnapshotSchedule); err != nil {
			return errors.Join(ErrInvalidConfig, fmt.Errorf("snapshot_schedule %q: %w", c.SnapshotSchedule, err))
		}
	}
	return nil
}

// ParseConfig decodes a YAML document into a Config. Missing fields keep their defaults.
//
// Example:
//
//	max_size_bytes: 1048576
//	max_entries: 500
//	default_ttl: 10m
//	cleanup_interval: 30s
//	adaptive_eviction: true
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file from fsys.
func LoadConfig(fsys fs.FS, name string) (Config, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Config{}, fmt.Errorf("reading %q: %w", name, err)
	}
	return ParseConfig(data)
}
