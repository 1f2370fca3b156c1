// Package config loads the YAML runtime settings from the user's config
// directory and fills in defaults so a missing file still yields a usable
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GlassOnTin/claude-cli/internal/extract"
)

const (
	DefaultModel     = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens = 1024
)

// Config captures the tunable runtime settings.
type Config struct {
	Model                 string  `yaml:"model"`
	MaxTokens             int     `yaml:"max_tokens"`
	Endpoint              string  `yaml:"endpoint"`
	SystemPrompt          string  `yaml:"system_prompt"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	ExtractionMode        string  `yaml:"extraction_mode"`
	ConversationDir       string  `yaml:"conversation_dir"`
	HistoryPath           string  `yaml:"history_path"`
	LogPath               string  `yaml:"log_path"`
	CostPerMillionTokens  float64 `yaml:"cost_per_million_tokens"`
}

// GetConfigDir resolves the settings directory, honouring the
// CLAUDE_CLI_CONFIG_DIR override used by tests and portable installs.
func GetConfigDir() string {
	if dir := os.Getenv("CLAUDE_CLI_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude-cli"
	}
	return filepath.Join(home, ".claude-cli")
}

// LoadUserConfig loads configuration from the config directory. A missing
// file returns defaults rather than an error.
func LoadUserConfig() (Config, error) {
	return Load(filepath.Join(GetConfigDir(), "config.yaml"))
}

// Load reads the YAML configuration at path and injects defaults. A missing
// file is not an error; a malformed or invalid one is.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config back to the user's config file, creating the
// directory on first use.
func Save(c Config) error {
	dir := GetConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyDefaults fills in optional values to keep the YAML file concise.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 60
	}
	if c.ExtractionMode == "" {
		c.ExtractionMode = "strict"
	}
	if c.ConversationDir == "" {
		c.ConversationDir = filepath.Join(GetConfigDir(), "conversations")
	}
	if c.HistoryPath == "" {
		c.HistoryPath = filepath.Join(GetConfigDir(), "history")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(GetConfigDir(), "claude-cli.log")
	}
	if c.CostPerMillionTokens <= 0 {
		c.CostPerMillionTokens = 3.0
	}
}

func (c Config) validate() error {
	if c.RequestTimeoutSeconds > 600 {
		return fmt.Errorf("request_timeout_seconds cannot exceed 600 (10 minutes)")
	}
	if c.MaxTokens > 8192 {
		return fmt.Errorf("max_tokens cannot exceed 8192")
	}
	if _, err := extract.ParseMode(c.ExtractionMode); err != nil {
		return fmt.Errorf("extraction_mode: %w", err)
	}
	return nil
}

// Mode parses the configured extraction mode. Load already validated it.
func (c Config) Mode() extract.Mode {
	mode, err := extract.ParseMode(c.ExtractionMode)
	if err != nil {
		return extract.ModeStrict
	}
	return mode
}

// RequestTimeout turns the integer value into a duration for HTTP clients.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
