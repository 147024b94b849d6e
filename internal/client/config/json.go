package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vitaria/catalog/internal/timex"
)

// JsonConfig is the on-disk shape of the client configuration. Pointer
// durations distinguish "absent" from zero.
type JsonConfig struct {
	ServerURL           string          `json:"server_url"`
	HealthAddr          string          `json:"health_addr"`
	StatePath           string          `json:"state_path"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	ViewRefreshInterval *timex.Duration `json:"view_refresh_interval"`
	HealthCheckInterval *timex.Duration `json:"health_check_interval"`
}

// parseJson overlays cfg with the fields present in the file at path.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.HealthAddr != "" {
		cfg.HealthAddr = jc.HealthAddr
	}
	if jc.StatePath != "" {
		cfg.StatePath = jc.StatePath
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.ViewRefreshInterval != nil {
		cfg.ViewRefreshInterval = jc.ViewRefreshInterval.Duration
	}
	if jc.HealthCheckInterval != nil {
		cfg.HealthCheckInterval = jc.HealthCheckInterval.Duration
	}
	return nil
}
