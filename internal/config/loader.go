package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// UserConfigDir is the directory for user-level config.
	UserConfigDir = ".config/diffstream"
	// UserConfigFile is the name of the user-level config file.
	UserConfigFile = "config.yaml"
	// defaultWorkspaceDir holds materialized session files.
	defaultWorkspaceDir = ".local/share/diffstream"
)

// Environment variables overriding the file config.
const (
	EnvServer    = "DIFFSTREAM_SERVER"
	EnvToken     = "DIFFSTREAM_TOKEN"
	EnvWorkspace = "DIFFSTREAM_WORKSPACE"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/diffstream/config.yaml)
// 3. Environment variables (DIFFSTREAM_SERVER, DIFFSTREAM_TOKEN,
// DIFFSTREAM_WORKSPACE)
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.UserConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("loaded user config", slog.String("path", userConfigPath))
		config.Merge(userConfig)
	} else if !os.IsNotExist(err) {
		l.logger.Warn("failed to load user config",
			slog.String("path", userConfigPath), slog.String("error", err.Error()))
	}

	if v := os.Getenv(EnvServer); v != "" {
		config.Server.URL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		config.Auth.Token = v
	}
	if v := os.Getenv(EnvWorkspace); v != "" {
		config.Workspace.Dir = v
	}

	if config.Workspace.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			config.Workspace.Dir = filepath.Join(home, defaultWorkspaceDir)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveToken persists a bearer token into the user config file, keeping any
// other settings already there.
func (l *Loader) SaveToken(token string) error {
	path := l.UserConfigPath()
	config, err := LoadFromFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		config = DefaultConfig()
	}
	config.Auth.Token = token
	return config.SaveToFile(path)
}

// UserConfigPath returns the path to the user config file.
func (l *Loader) UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}
