package policy

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Domain modes.
const (
	DomainAll       = "all"
	DomainAllowlist = "allowlist"
	DomainBlocklist = "blocklist"
)

// Config is the admission policy. Domain list entries are either plain
// hosts (matched exactly or as a parent domain) or doublestar globs
// ("*.example.com").
type Config struct {
	DomainMode           string   `json:"domainMode" toml:"domain_mode"`
	DomainList           []string `json:"domainList" toml:"domain_list"`
	BlockPaymentActions  bool     `json:"blockPaymentActions" toml:"block_payment_actions"`
	BlockDeleteActions   bool     `json:"blockDeleteActions" toml:"block_delete_actions"`
	RequireUserPresent   bool     `json:"requireUserPresent" toml:"require_user_present"`
	MaxCommandsPerSecond int      `json:"maxCommandsPerSecond" toml:"max_commands_per_second"`
	MaxCommandsPerMinute int      `json:"maxCommandsPerMinute" toml:"max_commands_per_minute"`
	LogAllCommands       bool     `json:"logAllCommands" toml:"log_all_commands"`
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		DomainMode:           DomainAll,
		DomainList:           []string{},
		BlockPaymentActions:  true,
		BlockDeleteActions:   true,
		RequireUserPresent:   false,
		MaxCommandsPerSecond: 10,
		MaxCommandsPerMinute: 300,
		LogAllCommands:       true,
	}
}

// LoadFile reads a TOML policy file over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read policy file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse policy file: %w", err)
	}
	return cfg, nil
}

// Validate rejects unusable configurations.
func (c Config) Validate() error {
	switch c.DomainMode {
	case DomainAll, DomainAllowlist, DomainBlocklist:
	default:
		return fmt.Errorf("invalid domain mode %q", c.DomainMode)
	}
	if c.MaxCommandsPerSecond <= 0 || c.MaxCommandsPerMinute <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}
