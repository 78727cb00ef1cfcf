package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models timeclock.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		AllowLegacyUserHeader bool `yaml:"allow_legacy_user_header"`
		DevLogin              bool `yaml:"dev_login"`
		TokenTTLMinutes       int  `yaml:"token_ttl_minutes"`
	} `yaml:"auth"`
	Scoring struct {
		OutputVariant string `yaml:"output_variant"`
	} `yaml:"scoring"`
	Notifications struct {
		QueueSize int             `yaml:"queue_size"`
		Webhooks  []WebhookConfig `yaml:"webhooks"`
	} `yaml:"notifications"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

var notificationTypes = map[string]struct{}{
	"TASK_ASSIGNED":  {},
	"TASK_APPROVED":  {},
	"TASK_COMPLETED": {},
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run tc init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Auth.TokenTTLMinutes < 0 {
		return fmt.Errorf("config.auth.token_ttl_minutes must not be negative")
	}
	switch c.Scoring.OutputVariant {
	case "", "completed_or_partial", "completed_only":
	default:
		return fmt.Errorf("config.scoring.output_variant must be completed_or_partial or completed_only")
	}
	if c.Notifications.QueueSize < 0 {
		return fmt.Errorf("config.notifications.queue_size must not be negative")
	}
	for i, hook := range c.Notifications.Webhooks {
		u, err := url.Parse(strings.TrimSpace(hook.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook %d: url must be an absolute http(s) url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d: timeout_seconds must not be negative", i)
		}
		for _, evt := range hook.Events {
			if _, ok := notificationTypes[evt]; !ok {
				return fmt.Errorf("webhook %d: unknown event %s", i, evt)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "timeclock.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Unset keys keep
// their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1

auth:
  allow_legacy_user_header: false
  dev_login: false
  token_ttl_minutes: 720

scoring:
  # completed_or_partial counts PARTIALLY_COMPLETED tasks as completions.
  output_variant: completed_or_partial

notifications:
  queue_size: 256
  webhooks: []
`
