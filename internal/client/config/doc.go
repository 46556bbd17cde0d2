// Package config loads the settings of a client instance.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// # JSON schema
//
// Durations are timex.Duration values, so they can be strings like "3s" or
// integer nanoseconds. Keys that are absent keep their earlier value.
//
//	{
//	  "base_url": "http://127.0.0.1:8080",
//	  "transport": "http",
//	  "app_key": "kid_local",
//	  "database_path": "kinveysync.db",
//	  "request_timeout": "10s",
//	  "batch_size": 3,
//	  "stagger_time": "1s",
//	  "sync_schedule": "@every 30s"
//	}
//
// The package does not read environment variables.
package config
