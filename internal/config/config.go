// Package config handles Vendora configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/vendora/config.yaml, /etc/vendora/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vendora", "config.yaml"))
	}

	paths = append(paths, "/etc/vendora/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Vendora configuration.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	VendorAPI  VendorAPIConfig  `yaml:"vendor_api"`
	Storage    StorageConfig    `yaml:"storage"`
	Agent      AgentConfig      `yaml:"agent"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"` // "text" (default) or "json"
}

// ListenConfig defines the status server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`    // Default: 8080
}

// TelegramConfig defines the Telegram Bot API connection.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	// APIBase overrides the Bot API endpoint, e.g. for a local bot API
	// server (default https://api.telegram.org).
	APIBase string `yaml:"api_base"`
	// PollTimeoutSec is the getUpdates long-poll timeout in seconds
	// (default 30).
	PollTimeoutSec int `yaml:"poll_timeout_sec"`
	// RateLimit caps inbound messages per sender per minute; 0 = unlimited.
	RateLimit int `yaml:"rate_limit"`
}

// OpenRouterConfig defines the chat-completion provider settings.
type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // Default: https://openrouter.ai/api/v1
	Model   string `yaml:"model"`
}

// VendorAPIConfig defines the commerce backend connection.
type VendorAPIConfig struct {
	BaseURL string `yaml:"base_url"`
	// StorefrontHost is the public host used when building storefront
	// and one-click edit links.
	StorefrontHost string `yaml:"storefront_host"`
}

// StorageConfig selects the conversation store backend.
// A DSN starting with "redis://" selects Redis; anything else is
// treated as a SQLite database path.
type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// AgentConfig tunes the orchestration loop.
type AgentConfig struct {
	// MaxToolRounds bounds how many tool-call rounds a single turn may
	// take before the turn is failed (default 10).
	MaxToolRounds int `yaml:"max_tool_rounds"`
	// PromptFile overrides the embedded system prompt.
	PromptFile string `yaml:"prompt_file"`
	// ReplyDenyPrefixes drops reply lines starting with any of these
	// prefixes. Empty disables the filter.
	ReplyDenyPrefixes []string `yaml:"reply_deny_prefixes"`
}

// Load reads and parses the config file at path, applies environment
// overrides, defaults, and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyEnv overrides config values from the process environment.
// Environment variables win over file values so deployments can keep
// credentials out of the config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.OpenRouter.APIKey = v
	}
	if v := os.Getenv("MODEL"); v != "" {
		c.OpenRouter.Model = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("VENDOR_API_URL"); v != "" {
		c.VendorAPI.BaseURL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Telegram.PollTimeoutSec == 0 {
		c.Telegram.PollTimeoutSec = 30
	}
	if c.Telegram.APIBase == "" {
		c.Telegram.APIBase = "https://api.telegram.org"
	}
	if c.VendorAPI.StorefrontHost == "" {
		c.VendorAPI.StorefrontHost = "development.fridayy.ai"
	}
	if c.OpenRouter.BaseURL == "" {
		c.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.Storage.DSN == "" {
		c.Storage.DSN = "vendora.db"
	}
	if c.Agent.MaxToolRounds == 0 {
		c.Agent.MaxToolRounds = 10
	}
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required (or set BOT_TOKEN)")
	}
	if c.OpenRouter.APIKey == "" {
		return fmt.Errorf("openrouter.api_key is required (or set OPENROUTER_API_KEY)")
	}
	if c.OpenRouter.Model == "" {
		return fmt.Errorf("openrouter.model is required (or set MODEL)")
	}
	if c.VendorAPI.BaseURL == "" {
		return fmt.Errorf("vendor_api.base_url is required (or set VENDOR_API_URL)")
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}
	return nil
}
