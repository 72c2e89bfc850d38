package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.collabsphere/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	// Server holds the CollabSphere backend endpoints.
	Server ServerConfig `toml:"server"`

	// RequestTimeoutSec bounds each REST call, including token refreshes.
	RequestTimeoutSec int `toml:"request_timeout_sec"`
}

// ServerConfig points at the REST API and the push channel endpoint.
type ServerConfig struct {
	APIBaseURL string `toml:"api_base_url"`
	PushURL    string `toml:"push_url"`
}

// Defaults returns a config with sane defaults applied on top of c.
func (c *Config) Defaults() {
	if c.Server.APIBaseURL == "" {
		c.Server.APIBaseURL = "http://localhost:5000/api"
	}
	if c.Server.PushURL == "" {
		c.Server.PushURL = "ws://localhost:5000/hubs/chat"
	}
	if c.RequestTimeoutSec <= 0 {
		c.RequestTimeoutSec = 15
	}
}

// RequestTimeout returns RequestTimeoutSec as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to defaults when the
// file does not exist. Defaults are always applied to the result.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = &Config{}
		} else {
			return nil, err
		}
	}
	cfg.Defaults()
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
