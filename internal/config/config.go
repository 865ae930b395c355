// ABOUTME: Configuration loading and parsing for the shop-assist chat client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when the file leaves a field unset.
const (
	DefaultWelcomeMessage   = "👋 Hi there! How can I help you today?"
	DefaultPollInitialDelay = 2 * time.Second
	DefaultPollInterval     = 10 * time.Second
	DefaultMaxPollAttempts  = 30
	DefaultPopupWidth       = 600
	DefaultPopupHeight      = 700
)

// Config represents the complete shop-assist client configuration
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Shop    ShopConfig    `yaml:"shop"`
	Chat    ChatConfig    `yaml:"chat"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// AgentConfig holds remote agent endpoint configuration
type AgentConfig struct {
	StreamURL     string `yaml:"stream_url"`      // SSE streaming endpoint
	HistoryURL    string `yaml:"history_url"`     // conversation history lookup
	AuthStatusURL string `yaml:"auth_status_url"` // authorization status poll
	UserID        string `yaml:"user_id"`         // optional shop/user identifier
}

// ShopConfig holds commerce integration configuration
type ShopConfig struct {
	CartAddURL string `yaml:"cart_add_url"` // host cart add endpoint
}

// ChatConfig holds chat presentation configuration
type ChatConfig struct {
	WelcomeMessage string `yaml:"welcome_message"`
}

// AuthConfig holds authorization popup and polling configuration
type AuthConfig struct {
	PollInitialDelay time.Duration `yaml:"-"`
	PollInterval     time.Duration `yaml:"-"`
	MaxPollAttempts  int           `yaml:"max_poll_attempts"`
	PopupWidth       int           `yaml:"popup_width"`
	PopupHeight      int           `yaml:"popup_height"`

	// Raw string values for YAML unmarshaling
	PollInitialDelayRaw string `yaml:"poll_initial_delay"`
	PollIntervalRaw     string `yaml:"poll_interval"`
}

// StorageConfig holds conversation log storage configuration
type StorageConfig struct {
	// Path to the SQLite database. Empty means in-memory only.
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills unset fields with their defaults
func (c *Config) applyDefaults() {
	if c.Chat.WelcomeMessage == "" {
		c.Chat.WelcomeMessage = DefaultWelcomeMessage
	}
	if c.Auth.PollInitialDelay == 0 {
		c.Auth.PollInitialDelay = DefaultPollInitialDelay
	}
	if c.Auth.PollInterval == 0 {
		c.Auth.PollInterval = DefaultPollInterval
	}
	if c.Auth.MaxPollAttempts == 0 {
		c.Auth.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if c.Auth.PopupWidth == 0 {
		c.Auth.PopupWidth = DefaultPopupWidth
	}
	if c.Auth.PopupHeight == 0 {
		c.Auth.PopupHeight = DefaultPopupHeight
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Agent.StreamURL == "" {
		return fmt.Errorf("agent.stream_url is required")
	}

	if c.Auth.MaxPollAttempts < 0 {
		return fmt.Errorf("auth.max_poll_attempts must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.PollInitialDelayRaw != "" {
		cfg.Auth.PollInitialDelay, err = time.ParseDuration(cfg.Auth.PollInitialDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_initial_delay %q: %w", cfg.Auth.PollInitialDelayRaw, err)
		}
	}

	if cfg.Auth.PollIntervalRaw != "" {
		cfg.Auth.PollInterval, err = time.ParseDuration(cfg.Auth.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.Auth.PollIntervalRaw, err)
		}
	}

	return nil
}
