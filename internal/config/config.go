// Package config loads the finchd configuration from YAML with environment
// variable expansion, defaults and validation.
package config

import "fmt"

// Config is the root configuration for a finchd instance.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Broker  BrokerConfig  `yaml:"broker"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	SecretKey string `yaml:"secret_key"`
	NoAuth    bool   `yaml:"no_auth"`
}

// StorageConfig holds durable state settings. An empty path disables
// persistence.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// BrokerConfig holds message handling settings.
type BrokerConfig struct {
	// MaxRedeliveries caps redeliveries per message (0 = unlimited).
	MaxRedeliveries int `yaml:"max_redeliveries"`
}

// applyDefaults fills in defaults for unset fields.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8081"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if c.Broker.MaxRedeliveries < 0 {
		return fmt.Errorf("broker.max_redeliveries cannot be negative, got %d", c.Broker.MaxRedeliveries)
	}
	return nil
}
