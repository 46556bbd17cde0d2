package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to the upper-cased JSON key, so http_addr is read
// from KINVEYSYNC_HTTP_ADDR.
const EnvPrefix = "KINVEYSYNC"

// parseEnv overlays cfg with the KINVEYSYNC_* variables that are set and
// not empty.
func parseEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	texts := map[string]*string{
		"http_addr":        &cfg.HTTPAddr,
		"grpc_addr":        &cfg.GRPCAddr,
		"database_dsn":     &cfg.DatabaseDSN,
		"app_key":          &cfg.AppKey,
		"app_secret":       &cfg.AppSecret,
		"secret_key":       &cfg.SecretKey,
		"s3_root_user":     &cfg.S3RootUser,
		"s3_root_password": &cfg.S3RootPassword,
		"s3_bucket":        &cfg.S3Bucket,
		"s3_region":        &cfg.S3Region,
		"s3_base_endpoint": &cfg.S3BaseEndpoint,
		"log_format":       &cfg.LogFormat,
		"log_level":        &cfg.LogLevel,
	}
	for key, dst := range texts {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	durations := map[string]*time.Duration{
		"access_token_validity_duration": &cfg.AccessTokenValidityDuration,
		"presign_ttl":                    &cfg.PresignTTL,
		"shutdown_timeout":               &cfg.ShutdownTimeout,
	}
	for key, dst := range durations {
		if !v.IsSet(key) {
			continue
		}
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return fmt.Errorf("invalid %s_%s: %w", EnvPrefix, strings.ToUpper(key), err)
		}
		*dst = d
	}
	return nil
}
