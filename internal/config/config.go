package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/downlink/internal/pipeline"
	"github.com/dyluth/downlink/pkg/status"
)

// Defaults applied by Validate.
const (
	DefaultFrameSize     = 1024
	DefaultInterval      = 5 * time.Second
	MinInterval          = time.Second
	DefaultRedisAddr     = "localhost:6379"
	DefaultHealthAddr    = ":8080"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultLogMaxSizeMB  = 100
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28
)

// Config represents the top-level downlink.yml configuration
type Config struct {
	Version  string              `yaml:"version"`
	Name     string              `yaml:"name"`              // Configuration name reported to clients
	Enabled  *bool               `yaml:"enabled,omitempty"` // Processing gate at startup (default: true)
	Streams  []StreamConfig      `yaml:"streams"`
	Source   *SourceConfig       `yaml:"source,omitempty"`
	Pipeline []pipeline.Settings `yaml:"pipeline"`
	Status   *StatusConfig       `yaml:"status,omitempty"`
	Redis    *RedisConfig        `yaml:"redis,omitempty"`
	Health   *HealthConfig       `yaml:"health,omitempty"`
	Logging  *LoggingConfig      `yaml:"logging,omitempty"`
}

// StreamConfig is one independent input. Each stream gets its own pipeline copy.
type StreamConfig struct {
	Name  string `yaml:"name"`  // Optional when there is a single stream
	Input string `yaml:"input"` // File path, or "-" for stdin
}

// SourceConfig specifies how the input byte stream is sliced into frames
type SourceConfig struct {
	FrameSize int `yaml:"frame_size,omitempty"` // Bytes per CADU (default: 1024)
}

// StatusConfig specifies status polling and publishing
type StatusConfig struct {
	Interval   time.Duration `yaml:"interval,omitempty"`    // Snapshot publish/poll interval (default: 5s, min: 1s)
	PublishTTL time.Duration `yaml:"publish_ttl,omitempty"` // Snapshot expiry in Redis (default: 3x interval)
}

// RedisConfig specifies the status store
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Instance string `yaml:"instance,omitempty"` // Key namespace (default: config name)
}

// HealthConfig specifies the health and metrics HTTP server
type HealthConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// LoggingConfig specifies log level and optional file rotation
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format     string `yaml:"format,omitempty"` // json or console
	File       string `yaml:"file,omitempty"`   // Rotated log file; stderr when empty
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// Validate performs strict validation on the configuration and applies defaults
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: name
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := status.ValidateSegment("name", c.Name); err != nil {
		return err
	}

	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}

	if err := c.validateStreams(); err != nil {
		return err
	}

	// Required: at least one stage
	if len(c.Pipeline) == 0 {
		return fmt.Errorf("no pipeline stages defined")
	}
	for i, s := range c.Pipeline {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("pipeline stage %d: %w", i, err)
		}
	}

	if c.Source == nil {
		c.Source = &SourceConfig{}
	}
	if c.Source.FrameSize == 0 {
		c.Source.FrameSize = DefaultFrameSize
	}
	if c.Source.FrameSize < 0 {
		return fmt.Errorf("source.frame_size must be > 0, got %d", c.Source.FrameSize)
	}

	if err := c.validateStatus(); err != nil {
		return err
	}

	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.Instance == "" {
		c.Redis.Instance = c.Name
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Health == nil {
		c.Health = &HealthConfig{}
	}
	if c.Health.Addr == "" {
		c.Health.Addr = DefaultHealthAddr
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	return c.Logging.Validate()
}

func (c *Config) validateStreams() error {
	if len(c.Streams) == 0 {
		return fmt.Errorf("no streams defined")
	}

	seen := make(map[string]bool, len(c.Streams))
	for i, s := range c.Streams {
		if s.Input == "" {
			return fmt.Errorf("stream %d: input is required", i)
		}
		if s.Name == "" {
			if len(c.Streams) > 1 {
				return fmt.Errorf("stream %d: name is required when more than one stream is defined", i)
			}
			continue
		}
		if err := status.ValidateSegment("stream name", s.Name); err != nil {
			return fmt.Errorf("stream %d: %w", i, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate stream name '%s'", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func (c *Config) validateStatus() error {
	if c.Status == nil {
		c.Status = &StatusConfig{}
	}
	if c.Status.Interval == 0 {
		c.Status.Interval = DefaultInterval
	}
	if c.Status.Interval < MinInterval {
		return fmt.Errorf("status.interval must be >= %s, got %s", MinInterval, c.Status.Interval)
	}
	if c.Status.PublishTTL == 0 {
		c.Status.PublishTTL = 3 * c.Status.Interval
	}
	if c.Status.PublishTTL < c.Status.Interval {
		return fmt.Errorf("status.publish_ttl (%s) must not be shorter than status.interval (%s)",
			c.Status.PublishTTL, c.Status.Interval)
	}
	return nil
}

// Validate checks the logging section and applies defaults
func (l *LoggingConfig) Validate() error {
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s (must be 'debug', 'info', 'warn', or 'error')", l.Level)
	}

	if l.Format == "" {
		l.Format = DefaultLogFormat
	}
	if l.Format != "json" && l.Format != "console" {
		return fmt.Errorf("invalid logging.format: %s (must be 'json' or 'console')", l.Format)
	}

	if l.MaxSizeMB == 0 {
		l.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = DefaultLogMaxBackups
	}
	if l.MaxAgeDays == 0 {
		l.MaxAgeDays = DefaultLogMaxAgeDays
	}
	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation limits must be >= 0")
	}
	return nil
}

// IsEnabled reports the configured processing gate
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Load reads and validates downlink.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
