package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/shyam-habarakada/agent-md/pkg/utils"
)

// LoadConfig loads configuration from a YAML file. A missing file is not an
// error: the defaults are used, with environment overrides still applied.
func LoadConfig(path string, logger *logrus.Logger) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("Configuration file %s not found, using defaults", path)
		applyEnvironmentOverrides(config)
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand ${VAR} references before parsing
	configString := utils.ExpandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(configString), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	applyEnvironmentOverrides(config)

	return config, nil
}

// validateConfig checks if the configuration is valid
func validateConfig(config *AppConfig) error {
	if config.Bridge.Name == "" {
		return fmt.Errorf("bridge name cannot be empty")
	}

	switch config.Relay.Transport {
	case "socket":
		if config.Relay.Address == "" {
			return fmt.Errorf("relay.address must be set for the socket transport")
		}
		switch config.Relay.Network {
		case "", "tcp", "unix":
		default:
			return fmt.Errorf("relay.network must be 'tcp' or 'unix'")
		}
	case "websocket":
		if config.Relay.URL == "" {
			return fmt.Errorf("relay.url must be set for the websocket transport")
		}
	default:
		return fmt.Errorf("relay.transport must be 'socket' or 'websocket'")
	}

	if config.Relay.ReconnectDelayMs < 0 {
		return fmt.Errorf("relay.reconnect_delay_ms cannot be negative")
	}
	if config.Relay.RequestTimeoutSec <= 0 {
		return fmt.Errorf("relay.request_timeout_sec must be positive")
	}

	if config.HTTP.Enabled && (config.HTTP.Port <= 0 || config.HTTP.Port > 65535) {
		return fmt.Errorf("http.port must be a valid port when the HTTP API is enabled")
	}

	return nil
}

// applyEnvironmentOverrides lets the environment win over the file for the
// settings the installer typically controls.
func applyEnvironmentOverrides(config *AppConfig) {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if origin := os.Getenv("BRIDGE_ORIGIN"); origin != "" {
		config.Bridge.Origin = origin
	}
	if addr := os.Getenv("RELAY_ADDR"); addr != "" {
		config.Relay.Address = addr
	}
	if url := os.Getenv("RELAY_URL"); url != "" {
		config.Relay.URL = url
		config.Relay.Transport = "websocket"
	}
	config.HTTP.Enabled = utils.BoolFromEnv("HTTP_ENABLED", config.HTTP.Enabled)
	if port := os.Getenv("HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
}
