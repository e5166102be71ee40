package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Engine          EngineConfig      `yaml:"engine"`
	Leds            []LedConfig       `yaml:"leds"`
	Database        DatabaseConfig    `yaml:"database"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Log             LogConfig         `yaml:"log"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Script          string            `yaml:"script"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// EngineConfig contains the effect engine settings.
//
// Period is the poll period every effect time is compiled against. The poller
// drives the engine from this same value, so compiled ticks and the actual
// invocation cadence always agree.
type EngineConfig struct {
	Period   Duration `yaml:"period"`   // Poll period (default: 100ms)
	Capacity int      `yaml:"capacity"` // Number of LED slots (default: 4)
	Curve    string   `yaml:"curve"`    // Brightness strategy: "lut" or "cosine" (default: lut)
}

// LedConfig describes one LED attached to the daemon.
type LedConfig struct {
	ID      int    `yaml:"id"`
	Name    string `yaml:"name"`
	Backend string `yaml:"backend"` // "console" (default) or "gpio"
	Pin     string `yaml:"pin"`     // GPIO pin name, e.g. "GPIO17" (gpio backend only)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains effect ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./ledd.sqlite"
	}
	if cfg.Script == "" {
		cfg.Script = "main.lua"
	}

	// Engine defaults
	if cfg.Engine.Period == 0 {
		cfg.Engine.Period = Duration(100 * time.Millisecond)
	}
	if cfg.Engine.Capacity == 0 {
		cfg.Engine.Capacity = 4
	}
	if cfg.Engine.Curve == "" {
		cfg.Engine.Curve = "lut"
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// GetShutdownTimeout returns the shutdown timeout as a time.Duration
func (c *Config) GetShutdownTimeout() time.Duration {
	return c.ShutdownTimeout.Duration()
}

func (c *Config) validate() error {
	if c.Engine.Capacity < 0 {
		return fmt.Errorf("engine.capacity must be positive, got %d", c.Engine.Capacity)
	}
	if c.Engine.Curve != "lut" && c.Engine.Curve != "cosine" {
		return fmt.Errorf("engine.curve must be \"lut\" or \"cosine\", got %q", c.Engine.Curve)
	}

	seen := make(map[int]bool)
	for _, led := range c.Leds {
		if led.ID < 0 || led.ID >= c.Engine.Capacity {
			return fmt.Errorf("led %q: id %d outside engine capacity %d", led.Name, led.ID, c.Engine.Capacity)
		}
		if seen[led.ID] {
			return fmt.Errorf("led %q: duplicate id %d", led.Name, led.ID)
		}
		seen[led.ID] = true

		switch led.Backend {
		case "", "console":
		case "gpio":
			if led.Pin == "" {
				return fmt.Errorf("led %q: gpio backend requires a pin", led.Name)
			}
		default:
			return fmt.Errorf("led %q: unknown backend %q", led.Name, led.Backend)
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
