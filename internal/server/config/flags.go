package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/kinveysync/internal/flagx"
)

var flagNames = []string{
	"a", "g", "d", "k", "app-secret", "s", "t", "u", "p", "b", "r", "e", "presign-ttl", "log", "l", "shutdown-timeout",
}

// parseFlags overlays cfg with the flags it owns:
//
//	-a string                  HTTP bind address (e.g. ":8080")
//	-g string                  gRPC bind address (e.g. ":50051")
//	-d string                  PostgreSQL DSN or "memory"
//	-k string                  app key
//	-app-secret string         app secret
//	-s string                  access token HMAC secret
//	-t duration                access token validity
//	-u string                  S3 root user
//	-p string                  S3 root password
//	-b string                  S3 bucket name
//	-r string                  S3 region
//	-e string                  S3 base endpoint
//	-presign-ttl duration      lifetime of presigned URLs
//	-log string                log format: text, json or zap
//	-l string                  log level
//	-shutdown-timeout duration graceful shutdown bound
//
// Arguments owned by other loaders are filtered out first with
// flagx.FilterArgs.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP address and port to run server")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "gRPC address and port to run server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.AppKey, "k", cfg.AppKey, "app key")
	fs.StringVar(&cfg.AppSecret, "app-secret", cfg.AppSecret, "app secret")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	fs.DurationVar(&cfg.AccessTokenValidityDuration, "t", cfg.AccessTokenValidityDuration, "access token validity")

	fs.StringVar(&cfg.S3RootUser, "u", cfg.S3RootUser, "S3 root user")
	fs.StringVar(&cfg.S3RootPassword, "p", cfg.S3RootPassword, "S3 root password")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "r", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")
	fs.DurationVar(&cfg.PresignTTL, "presign-ttl", cfg.PresignTTL, "presigned URL lifetime")

	fs.StringVar(&cfg.LogFormat, "log", cfg.LogFormat, "log format: text, json or zap")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")

	if err := fs.Parse(flagx.FilterArgs(args, flagNames...)); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}
