package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/kinveysync/internal/flagx"
	"github.com/dmitrijs2005/kinveysync/internal/timex"
)

// JsonConfig is the file form of Config. Durations use timex.Duration, so
// they may be written as "3s" or as integer nanoseconds. Pointer fields
// tell an absent key from a zero value.
type JsonConfig struct {
	BaseURL              *string         `json:"base_url"`
	GRPCAddr             *string         `json:"grpc_addr"`
	Transport            *string         `json:"transport"`
	AppKey               *string         `json:"app_key"`
	AppSecret            *string         `json:"app_secret"`
	DatabasePath         *string         `json:"database_path"`
	RequestTimeout       *timex.Duration `json:"request_timeout"`
	DefaultTTL           *timex.Duration `json:"default_ttl"`
	BatchSize            *int            `json:"batch_size"`
	StaggerTime          *timex.Duration `json:"stagger_time"`
	PullBatchSize        *int            `json:"pull_batch_size"`
	SyncSchedule         *string         `json:"sync_schedule"`
	Workers              *int            `json:"workers"`
	LogLevel             *string         `json:"log_level"`
	AuthBaseURL          *string         `json:"auth_base_url"`
	ExternalLoginTimeout *timex.Duration `json:"external_login_timeout"`
}

func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	jc.apply(cfg)
	return nil
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.BaseURL, jc.BaseURL)
	setString(&cfg.GRPCAddr, jc.GRPCAddr)
	setString(&cfg.Transport, jc.Transport)
	setString(&cfg.AppKey, jc.AppKey)
	setString(&cfg.AppSecret, jc.AppSecret)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.SyncSchedule, jc.SyncSchedule)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.AuthBaseURL, jc.AuthBaseURL)

	setInt(&cfg.BatchSize, jc.BatchSize)
	setInt(&cfg.PullBatchSize, jc.PullBatchSize)
	setInt(&cfg.Workers, jc.Workers)

	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.DefaultTTL != nil {
		cfg.DefaultTTL = jc.DefaultTTL.Duration
	}
	if jc.StaggerTime != nil {
		cfg.StaggerTime = jc.StaggerTime.Duration
	}
	if jc.ExternalLoginTimeout != nil {
		cfg.ExternalLoginTimeout = jc.ExternalLoginTimeout.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
