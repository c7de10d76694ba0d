// Package config loads process configuration from the environment, with
// optional .env loading for development setups.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all process configuration.
type Config struct {
	Gateway GatewayConfig
	Agent   AgentConfig
	Logging LogConfig
}

// GatewayConfig holds gateway listener and collaborator addresses.
type GatewayConfig struct {
	Port            int    `envconfig:"GATEWAY_PORT" default:"9333"`
	Host            string `envconfig:"GATEWAY_HOST" default:"0.0.0.0"`
	RemoteDebugPort int    `envconfig:"REMOTE_DEBUG_PORT" default:"9222"`
	PolicyFile      string `envconfig:"POLICY_FILE" default:""`
}

// Addr returns the gateway listen address.
func (c GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AgentConfig holds the agent transport tunables.
type AgentConfig struct {
	GatewayURL        string `envconfig:"AGENT_GATEWAY_URL" default:"ws://127.0.0.1:9333/agent"`
	TabID             int    `envconfig:"AGENT_TAB_ID" default:"1"`
	ReconnectSeconds  int    `envconfig:"AGENT_RECONNECT_SECONDS" default:"2"`
	MaxReconnects     int    `envconfig:"AGENT_MAX_RECONNECTS" default:"10"`
	HeartbeatSeconds  int    `envconfig:"AGENT_HEARTBEAT_SECONDS" default:"5"`
	QueueLimit        int    `envconfig:"AGENT_QUEUE_LIMIT" default:"100"`
	RemoteDebugPort   int    `envconfig:"REMOTE_DEBUG_PORT" default:"9222"`
	MirrorPollMillis  int    `envconfig:"AGENT_MIRROR_POLL_MS" default:"250"`
	PageURL           string `envconfig:"AGENT_PAGE_URL" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from the environment. A .env file in the
// working directory is folded in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration or falls back to defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:            9333,
			Host:            "0.0.0.0",
			RemoteDebugPort: 9222,
		},
		Agent: AgentConfig{
			GatewayURL:       "ws://127.0.0.1:9333/agent",
			TabID:            1,
			ReconnectSeconds: 2,
			MaxReconnects:    10,
			HeartbeatSeconds: 5,
			QueueLimit:       100,
			RemoteDebugPort:  9222,
			MirrorPollMillis: 250,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
