// Package config loads the terminal configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/sahelpos/terminal/internal/errors"
)

// Config holds the terminal configuration.
type Config struct {
	// ServerURL is the base URL of the central sync server.
	ServerURL string `yaml:"server_url"`

	// CredentialKey authenticates this shop against the server. The key
	// is opaque to the sync engine.
	CredentialKey string `yaml:"credential_key"`

	// DeviceID identifies this terminal. Leave empty to let the
	// terminal provision one on first run.
	DeviceID string `yaml:"device_id"`

	// DataDir is where the local SQLite database lives.
	DataDir string `yaml:"data_dir"`

	// ListenAddr is the localhost address of the status API.
	ListenAddr string `yaml:"listen_addr"`

	// SyncInterval is the period of the background sync trigger.
	SyncInterval time.Duration `yaml:"sync_interval"`

	// ProbeTimeout bounds the connectivity probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// RequestTimeout bounds each push/pull call.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration defaults applied before the file is
// read.
func Default() *Config {
	return &Config{
		DataDir:        "./data",
		ListenAddr:     "127.0.0.1:7345",
		SyncInterval:   5 * time.Minute,
		ProbeTimeout:   3 * time.Second,
		RequestTimeout: 10 * time.Second,
		LogLevel:       "INFO",
	}
}

// Load reads the configuration file at path on top of the defaults.
// A missing file is not an error: the defaults are returned and the
// terminal runs purely offline until a server is configured.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "failed to parse config file", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the engine cannot work
// with.
func (c *Config) Validate() error {
	if c.SyncInterval <= 0 {
		return apperrors.New(apperrors.ErrConfigInvalid, fmt.Sprintf("sync_interval must be positive, got %s", c.SyncInterval))
	}
	if c.ProbeTimeout <= 0 {
		return apperrors.New(apperrors.ErrConfigInvalid, fmt.Sprintf("probe_timeout must be positive, got %s", c.ProbeTimeout))
	}
	if c.RequestTimeout <= 0 {
		return apperrors.New(apperrors.ErrConfigInvalid, fmt.Sprintf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.DataDir == "" {
		return apperrors.New(apperrors.ErrConfigInvalid, "data_dir must not be empty")
	}
	return nil
}

// CloudConfigured reports whether a central server has been configured.
func (c *Config) CloudConfigured() bool {
	return c.ServerURL != ""
}
