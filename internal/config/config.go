// Package config provides configuration loading and management for diffstream.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete diffstream configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Diff      DiffConfig      `yaml:"diff"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the backend connection.
type ServerConfig struct {
	// URL is the API root, e.g. "http://localhost:8000/api".
	URL string `yaml:"url"`
	// ConnectTimeout bounds stream connection establishment.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// HeartbeatTimeout bounds silence on an open stream.
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
}

// AuthConfig holds the persisted credential.
type AuthConfig struct {
	// Token is the bearer token installed by a previous login.
	Token string `yaml:"token"`
}

// WorkspaceConfig configures where session code files are materialized.
type WorkspaceConfig struct {
	// Dir is the workspace root; session files live in Dir/<session-id>.
	// Empty means ~/.local/share/diffstream.
	Dir string `yaml:"dir"`
}

// DiffConfig holds defaults for diff runs.
type DiffConfig struct {
	// MaxTests is the default number of tests to generate per run.
	MaxTests int `yaml:"max_tests"`
	// Checker is the default output comparator, e.g. "wcmp".
	Checker string `yaml:"checker"`
}

// LogConfig configures diagnostic output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:              "http://localhost:8000/api",
			ConnectTimeout:   10 * time.Second,
			HeartbeatTimeout: 30 * time.Second,
		},
		Workspace: WorkspaceConfig{
			Dir: "", // Resolved against the home directory at load time.
		},
		Diff: DiffConfig{
			MaxTests: 100,
			Checker:  "wcmp",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if c.Diff.MaxTests <= 0 {
		return fmt.Errorf("diff.max_tests must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, layered over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// The file carries the auth token, keep it private.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one. Non-zero values in other take
// precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Server.URL != "" {
		c.Server.URL = other.Server.URL
	}
	if other.Server.ConnectTimeout != 0 {
		c.Server.ConnectTimeout = other.Server.ConnectTimeout
	}
	if other.Server.HeartbeatTimeout != 0 {
		c.Server.HeartbeatTimeout = other.Server.HeartbeatTimeout
	}
	if other.Auth.Token != "" {
		c.Auth.Token = other.Auth.Token
	}
	if other.Workspace.Dir != "" {
		c.Workspace.Dir = other.Workspace.Dir
	}
	if other.Diff.MaxTests != 0 {
		c.Diff.MaxTests = other.Diff.MaxTests
	}
	if other.Diff.Checker != "" {
		c.Diff.Checker = other.Diff.Checker
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}
