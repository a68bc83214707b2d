// Package config loads the YAML configuration for the relay and the
// device agent. Environment variables override the file so secrets can
// stay out of it.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/pushclaw/internal/store"
)

// Config is the top-level configuration.
type Config struct {
	Relay RelayConfig `yaml:"relay"`
	Agent AgentConfig `yaml:"agent"`
}

// RelayConfig configures the webhook relay.
type RelayConfig struct {
	// Listen is the HTTP bind address, e.g. ":8080".
	Listen string `yaml:"listen"`

	// BotToken is the Telegram bot token; it doubles as the
	// registration scope.
	BotToken string `yaml:"bot_token"`

	// CredentialsFile is the FCM service-account JSON path.
	CredentialsFile string `yaml:"credentials_file"`

	// RatePerMinute bounds webhook handling per chat. 0 disables.
	RatePerMinute int `yaml:"rate_per_minute"`

	Store store.Config `yaml:"store"`
}

// AgentConfig configures the device-side agent daemon.
type AgentConfig struct {
	// BotToken lets the agent reply into the operator's chat.
	BotToken string `yaml:"bot_token"`

	Store store.Config `yaml:"store"`
}

// Load reads path and applies environment overrides. A missing file is
// not an error; defaults plus environment must be enough to start.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Relay: RelayConfig{
			Listen:        ":8080",
			RatePerMinute: 60,
			Store:         store.Config{Backend: "file", Dir: defaultDataDir("relay")},
		},
		Agent: AgentConfig{
			Store: store.Config{Backend: "sqlite", SQLitePath: defaultDataDir("agent") + "/agent.db"},
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaultDataDir(sub string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pushclaw/" + sub
	}
	return home + "/.pushclaw/" + sub
}

// applyEnv maps PUSHCLAW_* variables over the loaded file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PUSHCLAW_BOT_TOKEN"); v != "" {
		cfg.Relay.BotToken = v
		cfg.Agent.BotToken = v
	}
	if v := os.Getenv("PUSHCLAW_LISTEN"); v != "" {
		cfg.Relay.Listen = v
	}
	if v := os.Getenv("PUSHCLAW_CREDENTIALS_FILE"); v != "" {
		cfg.Relay.CredentialsFile = v
	}
	if v := os.Getenv("PUSHCLAW_RATE_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Relay.RatePerMinute = n
		}
	}
	if v := os.Getenv("PUSHCLAW_STORE_BACKEND"); v != "" {
		cfg.Relay.Store.Backend = v
	}
	if v := os.Getenv("PUSHCLAW_STORE_DIR"); v != "" {
		cfg.Relay.Store.Dir = v
	}
	if v := os.Getenv("PUSHCLAW_REDIS_ADDR"); v != "" {
		cfg.Relay.Store.RedisAddr = v
	}
	if v := os.Getenv("PUSHCLAW_REDIS_PASSWORD"); v != "" {
		cfg.Relay.Store.RedisPassword = v
	}
}

// Validate checks the parts the relay cannot start without.
func (c *RelayConfig) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("relay: bot_token is required")
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("relay: credentials_file is required")
	}
	return nil
}
