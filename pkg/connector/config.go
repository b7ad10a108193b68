// Copyright 2024-2026 Aiku AI

package connector

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config holds the Telegram adapter configuration.
type Config struct {
	// APIID and APIHash identify the application to Telegram. Obtained from
	// my.telegram.org.
	APIID   int    `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`
	// BotToken authenticates as a bot account. Leave empty to log in as a
	// user with Phone.
	BotToken string `yaml:"bot_token"`
	Phone    string `yaml:"phone"`
	Password string `yaml:"password"`
	// SessionFile is where the MTProto session state is persisted across
	// restarts. Defaults to "telegram-session.json".
	SessionFile string `yaml:"session_file"`
	// Proxy is an optional socks5://host:port address for the MTProto
	// connection.
	Proxy string `yaml:"proxy"`

	// ListenAddr is the listen address of the Satori API server. Defaults
	// to ":5140".
	ListenAddr string `yaml:"listen_addr"`
	// Token protects the Satori API and event stream. Empty disables
	// authentication.
	Token string `yaml:"token"`

	// DefaultTimeout bounds outbound attachment downloads, in seconds.
	// Defaults to 30.
	DefaultTimeout int `yaml:"default_timeout"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess applies defaults and validates the required fields.
func (c *Config) PostProcess() error {
	if c.APIID == 0 || c.APIHash == "" {
		return fmt.Errorf("api_id and api_hash are required")
	}
	if c.BotToken == "" && c.Phone == "" {
		return fmt.Errorf("either bot_token or phone is required")
	}
	if c.SessionFile == "" {
		c.SessionFile = "telegram-session.json"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":5140"
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30
	}
	return nil
}

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
