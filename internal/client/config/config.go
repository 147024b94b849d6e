package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the catalogctl client.
//
// Fields:
//   - ServerURL: base URL of the catalog JSON API.
//   - HealthAddr: host:port of the gRPC health endpoint.
//   - StatePath: SQLite file holding the session and the upload journal.
//   - RequestTimeout: per-request timeout for API calls (uploads use the
//     credential's own deadline instead).
//   - ViewRefreshInterval: how often view URLs are re-signed; must stay below
//     the server's view URL lifetime.
//   - HealthCheckInterval: probe period of `health --watch`.
type Config struct {
	ServerURL           string
	HealthAddr          string
	StatePath           string
	RequestTimeout      time.Duration
	ViewRefreshInterval time.Duration
	HealthCheckInterval time.Duration
}

// LoadDefaults populates c with defaults suitable for a local stack.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.HealthAddr = "127.0.0.1:50051"
	c.StatePath = defaultStatePath()
	c.RequestTimeout = 30 * time.Second
	c.ViewRefreshInterval = 2 * time.Minute
	c.HealthCheckInterval = 5 * time.Second
}

// LoadConfig applies defaults, the environment and then the JSON file at
// jsonPath (skipped when empty).
func LoadConfig(jsonPath string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, jsonPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the client cannot work with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server url %q", c.ServerURL)
	}
	if c.StatePath == "" {
		return errors.New("state path is required")
	}
	if c.RequestTimeout <= 0 || c.ViewRefreshInterval <= 0 || c.HealthCheckInterval <= 0 {
		return errors.New("timeouts and intervals must be positive")
	}
	return nil
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "catalogctl-state.db"
	}
	return filepath.Join(dir, "catalogctl", "state.db")
}
