package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/kinveysync/internal/flagx"
)

var flagNames = []string{
	"a", "g", "t", "k", "s", "d", "timeout", "ttl", "b", "stagger", "pull-batch", "sync", "w", "l", "auth", "login-timeout",
}

// parseFlags overlays cfg with the flags it owns:
//
//	-a string            base URL of the REST API
//	-g string            host:port of the gRPC API
//	-t string            transport, http, grpc or memory
//	-k string            app key
//	-s string            app secret
//	-d string            path of the local database
//	-timeout duration    per-request timeout
//	-ttl duration        default cache TTL
//	-b int               auto-sync batch size
//	-stagger duration    pause between auto-sync batches
//	-pull-batch int      page size of pulls
//	-sync string         auto-sync cron schedule
//	-w int               async workers
//	-l string            log level
//	-auth string         base URL of the hosted login
//	-login-timeout dur   lifetime of a pending external login
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.BaseURL, "a", cfg.BaseURL, "base URL of the REST API")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "address and port of the gRPC API")
	fs.StringVar(&cfg.Transport, "t", cfg.Transport, "transport: http, grpc or memory")
	fs.StringVar(&cfg.AppKey, "k", cfg.AppKey, "app key")
	fs.StringVar(&cfg.AppSecret, "s", cfg.AppSecret, "app secret")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "request timeout")
	fs.DurationVar(&cfg.DefaultTTL, "ttl", cfg.DefaultTTL, "default cache TTL")
	fs.IntVar(&cfg.BatchSize, "b", cfg.BatchSize, "auto-sync batch size")
	fs.DurationVar(&cfg.StaggerTime, "stagger", cfg.StaggerTime, "pause between auto-sync batches")
	fs.IntVar(&cfg.PullBatchSize, "pull-batch", cfg.PullBatchSize, "pull page size")
	fs.StringVar(&cfg.SyncSchedule, "sync", cfg.SyncSchedule, "auto-sync cron schedule")
	fs.IntVar(&cfg.Workers, "w", cfg.Workers, "async workers")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.AuthBaseURL, "auth", cfg.AuthBaseURL, "hosted login base URL")
	fs.DurationVar(&cfg.ExternalLoginTimeout, "login-timeout", cfg.ExternalLoginTimeout, "pending external login lifetime")

	if err := fs.Parse(flagx.FilterArgs(args, flagNames...)); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}
