package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// dotenvFiles are loaded before parseEnv reads the environment. Variables
// already set win over the file.
var dotenvFiles = []string{".env"}

func parseEnv(cfg *Config) error {
	for _, f := range dotenvFiles {
		_ = godotenv.Load(f)
	}

	str(&cfg.ServerURL, "CATALOG_SERVER_URL")
	str(&cfg.HealthAddr, "CATALOG_HEALTH_ADDR")
	str(&cfg.StatePath, "CATALOG_STATE_PATH")

	for key, dst := range map[string]*time.Duration{
		"CATALOG_REQUEST_TIMEOUT":       &cfg.RequestTimeout,
		"CATALOG_VIEW_REFRESH_INTERVAL": &cfg.ViewRefreshInterval,
		"CATALOG_HEALTH_CHECK_INTERVAL": &cfg.HealthCheckInterval,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

func str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
