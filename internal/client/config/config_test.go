package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, "127.0.0.1:50051", c.HealthAddr)
	assert.NotEmpty(t, c.StatePath)
	assert.Equal(t, 2*time.Minute, c.ViewRefreshInterval)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "relative url", mutate: func(c *Config) { c.ServerURL = "catalog.local" }},
		{name: "no state path", mutate: func(c *Config) { c.StatePath = "" }},
		{name: "zero refresh", mutate: func(c *Config) { c.ViewRefreshInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadConfig_EnvThenJSON(t *testing.T) {
	orig := dotenvFiles
	t.Cleanup(func() { dotenvFiles = orig })
	dotenvFiles = nil

	t.Setenv("CATALOG_SERVER_URL", "http://env:8080")
	t.Setenv("CATALOG_HEALTH_ADDR", "env:50051")
	t.Setenv("CATALOG_VIEW_REFRESH_INTERVAL", "90s")

	path := writeTempJSON(t, "", "", map[string]any{"server_url": "http://json:8080"})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://json:8080", cfg.ServerURL, "JSON overrides env")
	assert.Equal(t, "env:50051", cfg.HealthAddr)
	assert.Equal(t, 90*time.Second, cfg.ViewRefreshInterval)
}

func TestLoadConfig_BadEnvDuration(t *testing.T) {
	orig := dotenvFiles
	t.Cleanup(func() { dotenvFiles = orig })
	dotenvFiles = nil

	t.Setenv("CATALOG_REQUEST_TIMEOUT", "later")
	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CATALOG_REQUEST_TIMEOUT")
}
