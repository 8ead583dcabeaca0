package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig("/nonexistent/config.yaml", logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "agent-md-bridge", config.Bridge.Name)
	assert.Equal(t, "agentmd", config.Bridge.ToolPrefix)
	assert.Equal(t, "/agent.md", config.Manifest.Path)
	assert.Equal(t, "socket", config.Relay.Transport)
	assert.Equal(t, "127.0.0.1:8765", config.Relay.Address)
	assert.Equal(t, 2*time.Second, config.Relay.ReconnectDelay())
	assert.Equal(t, 30*time.Second, config.Relay.RequestTimeout())
	assert.False(t, config.HTTP.Enabled)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
bridge:
  name: my-bridge
  tool_prefix: todo
  origin: http://localhost:3000
manifest:
  path: /.well-known/agent.md
  fetch_timeout_sec: 5
relay:
  transport: websocket
  url: ws://127.0.0.1:9000/relay
  reconnect_delay_ms: 500
  request_timeout_sec: 10
http:
  enabled: true
  port: 9131
`)

	config, err := LoadConfig(path, logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "my-bridge", config.Bridge.Name)
	assert.Equal(t, "todo", config.Bridge.ToolPrefix)
	assert.Equal(t, "http://localhost:3000", config.Bridge.Origin)
	assert.Equal(t, "/.well-known/agent.md", config.Manifest.Path)
	assert.Equal(t, 5*time.Second, config.Manifest.FetchTimeout())
	assert.Equal(t, "websocket", config.Relay.Transport)
	assert.Equal(t, "ws://127.0.0.1:9000/relay", config.Relay.URL)
	assert.Equal(t, 500*time.Millisecond, config.Relay.ReconnectDelay())
	assert.True(t, config.HTTP.Enabled)
	assert.Equal(t, 9131, config.HTTP.Port)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, `
bridge:
  origin: http://localhost:5173
`)

	config, err := LoadConfig(path, logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5173", config.Bridge.Origin)
	assert.Equal(t, "agent-md-bridge", config.Bridge.Name)
	assert.Equal(t, "socket", config.Relay.Transport)
	assert.Equal(t, "127.0.0.1:8765", config.Relay.Address)
}

func TestLoadConfig_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_BRIDGE_ORIGIN", "http://expanded.example")

	path := writeConfigFile(t, `
bridge:
  origin: ${TEST_BRIDGE_ORIGIN}
`)

	config, err := LoadConfig(path, logrus.New())
	require.NoError(t, err)
	assert.Equal(t, "http://expanded.example", config.Bridge.Origin)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BRIDGE_ORIGIN", "http://env.example")
	t.Setenv("RELAY_URL", "ws://env:1234/relay")
	t.Setenv("HTTP_ENABLED", "true")
	t.Setenv("HTTP_PORT", "9999")

	config, err := LoadConfig("/nonexistent/config.yaml", logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "http://env.example", config.Bridge.Origin)
	assert.Equal(t, "ws://env:1234/relay", config.Relay.URL)
	assert.Equal(t, "websocket", config.Relay.Transport)
	assert.True(t, config.HTTP.Enabled)
	assert.Equal(t, 9999, config.HTTP.Port)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "bridge: [not a mapping")

	_, err := LoadConfig(path, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *AppConfig) {},
		},
		{
			name:    "empty bridge name",
			mutate:  func(c *AppConfig) { c.Bridge.Name = "" },
			wantErr: "bridge name",
		},
		{
			name:    "unknown transport",
			mutate:  func(c *AppConfig) { c.Relay.Transport = "carrier-pigeon" },
			wantErr: "relay.transport",
		},
		{
			name: "socket without address",
			mutate: func(c *AppConfig) {
				c.Relay.Address = ""
			},
			wantErr: "relay.address",
		},
		{
			name: "websocket without url",
			mutate: func(c *AppConfig) {
				c.Relay.Transport = "websocket"
				c.Relay.URL = ""
			},
			wantErr: "relay.url",
		},
		{
			name:    "bad socket network",
			mutate:  func(c *AppConfig) { c.Relay.Network = "udp" },
			wantErr: "relay.network",
		},
		{
			name:    "negative reconnect delay",
			mutate:  func(c *AppConfig) { c.Relay.ReconnectDelayMs = -1 },
			wantErr: "reconnect_delay_ms",
		},
		{
			name:    "zero request timeout",
			mutate:  func(c *AppConfig) { c.Relay.RequestTimeoutSec = 0 },
			wantErr: "request_timeout_sec",
		},
		{
			name: "http enabled with bad port",
			mutate: func(c *AppConfig) {
				c.HTTP.Enabled = true
				c.HTTP.Port = 70000
			},
			wantErr: "http.port",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)

			err := validateConfig(config)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}
