package config

import (
	"time"

	"github.com/shyam-habarakada/agent-md/pkg/utils"
)

// AppConfig is the root bridge configuration.
type AppConfig struct {
	Bridge   BridgeConfig    `yaml:"bridge"`
	Manifest ManifestConfig  `yaml:"manifest"`
	Relay    RelayConfig     `yaml:"relay"`
	HTTP     HTTPConfig      `yaml:"http"`
	Logging  utils.LogConfig `yaml:"logging"`
}

// BridgeConfig names the bridge and the tool namespace it exposes.
type BridgeConfig struct {
	Name       string `yaml:"name"`
	ToolPrefix string `yaml:"tool_prefix"`
	// Origin is the fallback application origin used when the relay cannot
	// report the active tab's origin.
	Origin string `yaml:"origin"`
}

// ManifestConfig controls manifest fetching.
type ManifestConfig struct {
	Path            string `yaml:"path"`
	FetchTimeoutSec int    `yaml:"fetch_timeout_sec"`
}

// FetchTimeout returns the fetch timeout as a duration.
func (m ManifestConfig) FetchTimeout() time.Duration {
	return time.Duration(m.FetchTimeoutSec) * time.Second
}

// RelayConfig controls the inner channel to the browser-side relay.
type RelayConfig struct {
	// Transport is "socket" (length-prefixed frames over TCP/unix) or
	// "websocket".
	Transport string `yaml:"transport"`
	// Network is the socket network, "tcp" or "unix".
	Network string `yaml:"network"`
	// Address is the socket address, e.g. "127.0.0.1:8765".
	Address string `yaml:"address"`
	// URL is the websocket endpoint, e.g. "ws://127.0.0.1:8765/relay".
	URL string `yaml:"url"`

	ReconnectDelayMs  int `yaml:"reconnect_delay_ms"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
	MaxFrameBytes     int `yaml:"max_frame_bytes"`
}

// ReconnectDelay returns the fixed delay between reconnect attempts.
func (r RelayConfig) ReconnectDelay() time.Duration {
	return time.Duration(r.ReconnectDelayMs) * time.Millisecond
}

// RequestTimeout returns the per-request timeout.
func (r RelayConfig) RequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeoutSec) * time.Second
}

// HTTPConfig controls the local debug/status API.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Bridge: BridgeConfig{
			Name:       "agent-md-bridge",
			ToolPrefix: "agentmd",
		},
		Manifest: ManifestConfig{
			Path:            "/agent.md",
			FetchTimeoutSec: 10,
		},
		Relay: RelayConfig{
			Transport:         "socket",
			Network:           "tcp",
			Address:           "127.0.0.1:8765",
			ReconnectDelayMs:  2000,
			RequestTimeoutSec: 30,
			MaxFrameBytes:     4 << 20,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9130,
		},
		Logging: utils.DefaultLogConfig(),
	}
}
