package config

import (
	"encoding/json"
	"os"

	"github.com/vitaria/catalog/internal/flagx"
	"github.com/vitaria/catalog/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept both "1m"
// strings and integer nanoseconds; pointer fields distinguish "absent" from
// an explicit zero value.
type JsonConfig struct {
	EndpointAddrHTTP            string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string          `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string          `json:"database_dsn"`
	SecretKey                   string          `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	S3AccessKey                 string          `json:"s3_access_key"`
	S3SecretKey                 string          `json:"s3_secret_key"`
	S3Bucket                    string          `json:"s3_bucket"`
	S3Region                    string          `json:"s3_region"`
	S3BaseEndpoint              string          `json:"s3_base_endpoint"`
	S3UsePathStyle              *bool           `json:"s3_use_path_style"`
	UploadURLTTL                *timex.Duration `json:"upload_url_ttl"`
	ViewURLTTL                  *timex.Duration `json:"view_url_ttl"`
	CORSAllowedOrigins          []string        `json:"cors_allowed_origins"`
	AdminEmail                  string          `json:"admin_email"`
	AdminPassword               string          `json:"admin_password"`
}

// parseJson loads the file named by -c/-config (if any) and overlays every
// field present in it onto config. A missing flag leaves config untouched;
// an unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setStr(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setStr(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setStr(&config.DatabaseDSN, c.DatabaseDSN)
	setStr(&config.SecretKey, c.SecretKey)
	setStr(&config.S3AccessKey, c.S3AccessKey)
	setStr(&config.S3SecretKey, c.S3SecretKey)
	setStr(&config.S3Bucket, c.S3Bucket)
	setStr(&config.S3Region, c.S3Region)
	setStr(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setStr(&config.AdminEmail, c.AdminEmail)
	setStr(&config.AdminPassword, c.AdminPassword)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.UploadURLTTL != nil {
		config.UploadURLTTL = c.UploadURLTTL.Duration
	}
	if c.ViewURLTTL != nil {
		config.ViewURLTTL = c.ViewURLTTL.Duration
	}
	if c.S3UsePathStyle != nil {
		config.S3UsePathStyle = *c.S3UsePathStyle
	}
	if len(c.CORSAllowedOrigins) > 0 {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
