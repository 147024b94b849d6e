// Package config loads runtime configuration for catalogctl.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. CATALOG_* environment variables, optionally seeded from a .env file.
//  3. Optional JSON file named by --config.
//  4. Command-line flags, applied by the cli package on top of the result.
//
// # JSON schema
//
// Durations are either strings like "2m" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "health_addr": "127.0.0.1:50051",
//	  "state_path": "/home/me/.config/catalogctl/state.db",
//	  "request_timeout": "30s",
//	  "view_refresh_interval": "2m",
//	  "health_check_interval": "5s"
//	}
package config
