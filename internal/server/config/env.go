package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// dotenvFiles are loaded into the process environment before parseEnv reads
// it. Variables already set win over the file.
var dotenvFiles = []string{".env"}

// parseEnv overlays Config with CATALOG_* environment variables. Unset or
// empty variables keep the current value; malformed durations and booleans
// panic, matching the JSON and flag layers.
func parseEnv(config *Config) {
	for _, f := range dotenvFiles {
		// a missing .env is the normal case in containers
		_ = godotenv.Load(f)
	}

	str(&config.EndpointAddrHTTP, "CATALOG_HTTP_ADDR")
	str(&config.EndpointAddrGRPC, "CATALOG_GRPC_ADDR")
	str(&config.DatabaseDSN, "CATALOG_DATABASE_DSN")
	str(&config.SecretKey, "CATALOG_SECRET_KEY")
	dur(&config.AccessTokenValidityDuration, "CATALOG_ACCESS_TOKEN_TTL")
	str(&config.S3AccessKey, "CATALOG_S3_ACCESS_KEY")
	str(&config.S3SecretKey, "CATALOG_S3_SECRET_KEY")
	str(&config.S3Bucket, "CATALOG_S3_BUCKET")
	str(&config.S3Region, "CATALOG_S3_REGION")
	str(&config.S3BaseEndpoint, "CATALOG_S3_ENDPOINT")
	boolean(&config.S3UsePathStyle, "CATALOG_S3_PATH_STYLE")
	dur(&config.UploadURLTTL, "CATALOG_UPLOAD_URL_TTL")
	dur(&config.ViewURLTTL, "CATALOG_VIEW_URL_TTL")
	str(&config.AdminEmail, "CATALOG_ADMIN_EMAIL")
	str(&config.AdminPassword, "CATALOG_ADMIN_PASSWORD")

	if v := os.Getenv("CATALOG_CORS_ORIGINS"); v != "" {
		config.CORSAllowedOrigins = splitList(v)
	}
}

func str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func dur(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}

func boolean(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	*dst = b
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
