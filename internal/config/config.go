package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidHub is returned when the hub section lacks an address or token.
var ErrInvalidHub = errors.New("invalid hub configuration")

// Config represents the application configuration
type Config struct {
	Hub             HubConfig         `yaml:"hub"`
	Zones           map[string]string `yaml:"zones"`  // alias -> hub group name
	Colors          map[string]string `yaml:"colors"` // colour name -> hex code
	Log             LogConfig         `yaml:"log"`
	Database        DatabaseConfig    `yaml:"database"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	MQTT            MQTTConfig        `yaml:"mqtt"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// HubConfig contains Hue bridge connection settings
type HubConfig struct {
	Address      string   `yaml:"address"`
	Token        string   `yaml:"token"`
	Timeout      Duration `yaml:"timeout"`        // HTTP timeout for hub requests
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // Max hub calls per second
}

// Validate reports whether the hub section can be used to open a session.
func (h HubConfig) Validate() error {
	if strings.TrimSpace(h.Address) == "" {
		return fmt.Errorf("%w: hub.address is required", ErrInvalidHub)
	}
	if strings.TrimSpace(h.Token) == "" {
		return fmt.Errorf("%w: hub.token is required", ErrInvalidHub)
	}
	return nil
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string        `yaml:"level"`
	Colors  bool          `yaml:"colors"`
	UseJSON bool          `yaml:"json"`
	File    LogFileConfig `yaml:"file"`
}

// LogFileConfig enables an additional rotating log file.
type LogFileConfig struct {
	Path       string `yaml:"path"` // empty = disabled
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// GetLevel returns the configured level, defaulting to info.
func (c LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Level)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains command history settings
type LedgerConfig struct {
	Enabled         *bool    `yaml:"enabled"` // default: true
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// IsEnabled returns whether commands are recorded.
func (c LedgerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 2)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 2
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

// MQTTConfig contains the optional MQTT command bridge settings
type MQTTConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Broker       string `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CommandTopic string `yaml:"command_topic"`
	ResultTopic  string `yaml:"result_topic"`
	QoS          byte   `yaml:"qos"`
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
	return Parse(data)
}

// Parse parses configuration from YAML bytes and applies defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadHub re-reads only the hub section of the configuration file.
// The session calls it once, when it first connects.
func LoadHub(path string) (HubConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return HubConfig{}, err
	}
	if err := cfg.Hub.Validate(); err != nil {
		return HubConfig{}, err
	}
	return cfg.Hub, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File.Path != "" {
		if cfg.Log.File.MaxSizeMB == 0 {
			cfg.Log.File.MaxSizeMB = 10
		}
		if cfg.Log.File.MaxBackups == 0 {
			cfg.Log.File.MaxBackups = 3
		}
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./lightcmd.sqlite"
	}

	// Hub defaults
	if cfg.Hub.Timeout == 0 {
		cfg.Hub.Timeout = Duration(10 * time.Second)
	}
	if cfg.Hub.RateLimitRPS == 0 {
		cfg.Hub.RateLimitRPS = 10.0 // 10 requests per second
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// MQTT defaults
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "lightcmd"
	}
	if cfg.MQTT.CommandTopic == "" {
		cfg.MQTT.CommandTopic = "lightcmd/command"
	}
	if cfg.MQTT.ResultTopic == "" {
		cfg.MQTT.ResultTopic = "lightcmd/result"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
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
