package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the backend the client talks to when nothing is configured
const DefaultBaseURL = "http://localhost:8000/api"

// LocalConfig holds configuration for the chatsql client
type LocalConfig struct {
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
	UI        UIConfig        `yaml:"ui"`
	Workspace WorkspaceConfig `yaml:"workspace"`
}

// APIConfig holds backend connection settings
type APIConfig struct {
	BaseURL        string           `yaml:"base_url"`
	DemoMode       bool             `yaml:"demo_mode"`
	TimeoutSeconds int              `yaml:"timeout_seconds"` // 0 means no client timeout
	Resilience     ResilienceConfig `yaml:"resilience"`
}

// ResilienceConfig tunes the circuit breaker and retry around student calls.
// The zero value disables both.
type ResilienceConfig struct {
	Enabled             bool    `yaml:"enabled"`
	MaxAttempts         int     `yaml:"max_attempts"`
	InitialDelayMS      int     `yaml:"initial_delay_ms"`
	MaxDelayMS          int     `yaml:"max_delay_ms"`
	Multiplier          float64 `yaml:"multiplier"`
	FailureThreshold    int     `yaml:"failure_threshold"`
	BreakerTimeoutSecs  int     `yaml:"breaker_timeout_seconds"`
	BreakerIntervalSecs int     `yaml:"breaker_interval_seconds"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// UIConfig holds workspace presentation settings
type UIConfig struct {
	Language      string `yaml:"language"`
	SidebarOpen   bool   `yaml:"sidebar_open"`
	AssistantOpen bool   `yaml:"assistant_open"`
	WordWrap      int    `yaml:"word_wrap"`
}

// WorkspaceConfig holds where pulled exercises are written
type WorkspaceConfig struct {
	Dir string `yaml:"dir"`
}

// Timeout returns the configured client timeout
func (c APIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ChatsqlDir returns the path to ~/.chatsql
func ChatsqlDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".chatsql"), nil
}

// EnsureChatsqlDir creates ~/.chatsql and subdirectories if they don't exist
func EnsureChatsqlDir() (string, error) {
	dir, err := ChatsqlDir()
	if err != nil {
		return "", err
	}

	subdirs := []string{
		"",
		"session",
		"exercises",
	}

	for _, subdir := range subdirs {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0700); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Resilience: ResilienceConfig{
				MaxAttempts:         3,
				InitialDelayMS:      200,
				MaxDelayMS:          2000,
				Multiplier:          2.0,
				FailureThreshold:    5,
				BreakerTimeoutSecs:  30,
				BreakerIntervalSecs: 60,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		UI: UIConfig{
			Language:      "en",
			SidebarOpen:   true,
			AssistantOpen: true,
			WordWrap:      80,
		},
	}
}

// ConfigPath returns the path of config.yaml inside dir
func ConfigPath(dir string) string {
	return filepath.Join(dir, "config.yaml")
}

// LoadLocalConfig loads configuration from ~/.chatsql/config.yaml
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := ChatsqlDir()
	if err != nil {
		return nil, err
	}
	return LoadLocalConfigFrom(ConfigPath(dir))
}

// LoadLocalConfigFrom loads configuration from path, returning defaults when
// the file does not exist
func LoadLocalConfigFrom(configPath string) (*LocalConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultLocalConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultLocalConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail at first use
func (c *LocalConfig) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q", c.API.BaseURL)
	}
	if c.API.TimeoutSeconds < 0 {
		return fmt.Errorf("api.timeout_seconds must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}
	return nil
}

// SaveLocalConfig saves configuration to ~/.chatsql/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureChatsqlDir()
	if err != nil {
		return err
	}
	return SaveLocalConfigTo(ConfigPath(dir), cfg)
}

// SaveLocalConfigTo writes cfg as YAML to path
func SaveLocalConfigTo(configPath string, cfg *LocalConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
