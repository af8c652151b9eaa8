// Package config loads the daemon's process configuration: the bus
// connection, logging, the device inventory, and the supplemental
// health-sweep/rate-limit settings, with environment overrides layered
// over a YAML file which overrides built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BusConfig controls the command bus connection. The transport itself is
// an external collaborator; these fields are passed through to whatever
// bus.Client implementation the bootstrap wires in.
type BusConfig struct {
	URL            string `yaml:"url" env:"PIXELD_BUS_URL"`
	CmdPrefix      string `yaml:"cmd_prefix" env:"PIXELD_CMD_PREFIX"`
	StateTopicBase string `yaml:"state_topic_base" env:"PIXELD_STATE_TOPIC_BASE"`
}

// LoggingConfig controls the daemon's own structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"PIXELD_LOG_LEVEL"`
	Format string `yaml:"format" env:"PIXELD_LOG_FORMAT"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"PIXELD_METRICS_ENABLED"`
	Addr    string `yaml:"addr" env:"PIXELD_METRICS_ADDR"`
}

// RateLimitConfig controls the per-host inbound command throttle.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" env:"PIXELD_RATE_LIMIT_PER_SECOND"`
	Burst     int     `yaml:"burst" env:"PIXELD_RATE_LIMIT_BURST"`
}

// HealthSweepConfig controls the periodic liveness sweep.
type HealthSweepConfig struct {
	Enabled    bool   `yaml:"enabled" env:"PIXELD_HEALTHSWEEP_ENABLED"`
	CronSpec   string `yaml:"cron_spec" env:"PIXELD_HEALTHSWEEP_CRON"`
	StaleAfter int    `yaml:"stale_after_ms" env:"PIXELD_HEALTHSWEEP_STALE_MS"`
}

// DeviceConfig describes one configured panel.
type DeviceConfig struct {
	Host          string `yaml:"host"`
	Kind          string `yaml:"kind"` // "http64x64" | "push32x8"
	Endpoint      string `yaml:"endpoint"`
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	TimeoutMs     int    `yaml:"timeout_ms"`
	MaxRetries    int    `yaml:"max_retries"`
	StartupScene  string `yaml:"startup_scene"`
	DefaultScene  string `yaml:"default_scene"`
	LoggingLevel  string `yaml:"logging_level"`
}

// SchedulerConfig controls the pacing bounds every device loop shares.
type SchedulerConfig struct {
	MinIntervalMs int `yaml:"min_interval_ms" env:"PIXELD_MIN_INTERVAL_MS"`
	MaxIntervalMs int `yaml:"max_interval_ms" env:"PIXELD_MAX_INTERVAL_MS"`
}

// Config is the daemon's top-level process configuration.
type Config struct {
	Bus         BusConfig         `yaml:"bus"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	HealthSweep HealthSweepConfig `yaml:"health_sweep"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Devices     []DeviceConfig    `yaml:"devices"`
}

// New returns a Config populated with built-in defaults.
func New() *Config {
	return &Config{
		Bus: BusConfig{
			CmdPrefix:      "pixel/cmd",
			StateTopicBase: "pixel/state",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		RateLimit: RateLimitConfig{
			PerSecond: 5,
			Burst:     10,
		},
		HealthSweep: HealthSweepConfig{
			Enabled:    true,
			CronSpec:   "@every 10s",
			StaleAfter: 30_000,
		},
		Scheduler: SchedulerConfig{
			MinIntervalMs: 50,
			MaxIntervalMs: 60_000,
		},
	}
}

// Load loads configuration from an optional YAML file (CONFIG_FILE env var,
// falling back to configs/pixeld.yaml) layered under environment overrides,
// following env > file > defaults precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "configs/pixeld.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the minimal invariants the bootstrap relies on: every
// device has a host, a known kind, and an endpoint.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if strings.TrimSpace(d.Host) == "" {
			return fmt.Errorf("config: device entry missing host")
		}
		if seen[d.Host] {
			return fmt.Errorf("config: duplicate device host %q", d.Host)
		}
		seen[d.Host] = true
		switch d.Kind {
		case "http64x64", "push32x8":
		default:
			return fmt.Errorf("config: device %q has unknown kind %q", d.Host, d.Kind)
		}
		if strings.TrimSpace(d.Endpoint) == "" {
			return fmt.Errorf("config: device %q missing endpoint", d.Host)
		}
	}
	return nil
}
