package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

const envConfigPath = "ANONWALL_CONFIG"

// Transport modes.
const (
	ModeLongPoll = "longpoll"
	ModeWebhook  = "webhook"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Group     GroupConfig     `json:"group"`
	Filters   FiltersConfig   `json:"filters"`
	Whitelist []int64         `json:"whitelist" env:"VK_WHITELIST" envSeparator:","`
	Responses ResponsesConfig `json:"responses"`
	Transport TransportConfig `json:"transport"`
	Gateway   GatewayConfig   `json:"gateway"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

// GroupConfig identifies the managed community and its credentials.
// Tokens are normally supplied through the environment only.
type GroupConfig struct {
	ID        int64  `json:"id" env:"VK_GROUP_ID"`
	Token     string `json:"token,omitempty" env:"VK_TOKEN"`
	UserToken string `json:"user_token,omitempty" env:"VK_USER_TOKEN"`
}

// FiltersConfig holds the pipeline behavior toggles. All default to true.
type FiltersConfig struct {
	Sources     bool `json:"sources" env:"ANONWALL_FILTER_SOURCES"`
	Links       bool `json:"links" env:"ANONWALL_FILTER_LINKS"`
	LogRequests bool `json:"log_requests" env:"ANONWALL_LOG_REQUESTS"`
}

// ResponsesConfig points at the reply template file.
type ResponsesConfig struct {
	File string `json:"file" env:"ANONWALL_RESPONSES_FILE"`
}

// TransportConfig selects and configures the update delivery mechanism.
type TransportConfig struct {
	Mode    string        `json:"mode" env:"ANONWALL_TRANSPORT_MODE"`
	Webhook WebhookConfig `json:"webhook"`
}

// WebhookConfig configures the Callback API listener.
type WebhookConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port" env:"PORT"`
	Path         string `json:"path"`
	Confirmation string `json:"confirmation" env:"ANONWALL_WEBHOOK_CONFIRMATION"`
	Secret       string `json:"secret" env:"ANONWALL_WEBHOOK_SECRET"`
}

// GatewayConfig configures the health/readiness endpoint bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// DefaultConfig returns the configuration used when config.json omits a
// key. The filter toggles default to on, matching the bot's safe mode.
func DefaultConfig() *Config {
	return &Config{
		Filters: FiltersConfig{
			Sources:     true,
			Links:       true,
			LogRequests: true,
		},
		Transport: TransportConfig{
			Mode: ModeLongPoll,
			Webhook: WebhookConfig{
				Host: "0.0.0.0",
				Port: 3000,
				Path: "/bot",
			},
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18890,
		},
	}
}

// LoadConfig resolves config.json, unmarshals it over the defaults, applies
// environment overrides, and validates the result.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first missing required option by name.
func (c *Config) Validate() error {
	if c.Group.ID <= 0 {
		return errors.New("missing config option: group.id (or VK_GROUP_ID)")
	}
	if strings.TrimSpace(c.Group.Token) == "" {
		return errors.New("missing config option: group.token (or VK_TOKEN)")
	}
	if strings.TrimSpace(c.Group.UserToken) == "" {
		return errors.New("missing config option: group.user_token (or VK_USER_TOKEN)")
	}
	if strings.TrimSpace(c.Responses.File) == "" {
		return errors.New("missing config option: responses.file")
	}
	if c.Filters.Sources && len(c.Whitelist) == 0 {
		return errors.New("missing config option: whitelist (or VK_WHITELIST) is required when filters.sources is on")
	}

	switch c.Transport.Mode {
	case ModeLongPoll:
	case ModeWebhook:
		if strings.TrimSpace(c.Transport.Webhook.Confirmation) == "" {
			return errors.New("missing config option: transport.webhook.confirmation")
		}
	default:
		return fmt.Errorf("unsupported transport.mode %q", c.Transport.Mode)
	}

	return nil
}

// findConfigPath resolves the active config file location.
//
// Precedence is ANONWALL_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
