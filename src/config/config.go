package config

import (
	"fmt"
	"net/url"
	"os"

	"iot-observer/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Defaults applied for optional fields left empty in the YAML file.
const (
	DefaultRequestTimeoutSeconds = 30
	DefaultLiveTailPoints        = 500
	DefaultRetentionDays         = 30
	DefaultMainsMetric           = "mains"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Realtime.RequestTimeoutSeconds <= 0 {
		c.Realtime.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if c.Realtime.LiveTailPoints <= 0 {
		c.Realtime.LiveTailPoints = DefaultLiveTailPoints
	}
	if c.Realtime.DataRetentionDays <= 0 {
		c.Realtime.DataRetentionDays = DefaultRetentionDays
	}
	if c.Realtime.MainsMetric == "" {
		c.Realtime.MainsMetric = DefaultMainsMetric
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate gateway configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("gateway host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid gateway port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Realtime configuration
	if c.Realtime.ServerURL == "" {
		return fmt.Errorf("realtime server_url cannot be empty")
	}
	u, err := url.Parse(c.Realtime.ServerURL)
	if err != nil {
		return fmt.Errorf("realtime server_url is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("realtime server_url must use ws:// or wss://, got '%s'", u.Scheme)
	}

	// Validate Auth configuration
	if c.Auth.TokenURL == "" {
		return fmt.Errorf("auth token_url cannot be empty")
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
