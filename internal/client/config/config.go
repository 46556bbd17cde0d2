package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
	// TransportMemory keeps the backend in process. Used by demos and tests.
	TransportMemory = "memory"
)

// Config holds the settings of a client instance. It is passed explicitly
// to client.New and from there to every component.
type Config struct {
	BaseURL   string
	GRPCAddr  string
	Transport string

	AppKey    string
	AppSecret string

	DatabasePath string

	RequestTimeout time.Duration
	// DefaultTTL applies to stores created without an explicit TTL. Zero
	// keeps cached rows forever.
	DefaultTTL time.Duration

	BatchSize     int
	StaggerTime   time.Duration
	PullBatchSize int
	// SyncSchedule is a cron spec for auto-sync; empty disables it.
	SyncSchedule string
	Workers      int

	LogLevel string

	AuthBaseURL          string
	ExternalLoginTimeout time.Duration
}

// LoadDefaults populates c with local development defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:8080"
	c.GRPCAddr = "127.0.0.1:50051"
	c.Transport = TransportHTTP
	c.AppKey = "kid_local"
	c.AppSecret = "local-secret"
	c.DatabasePath = "kinveysync.db"
	c.RequestTimeout = 10 * time.Second
	c.DefaultTTL = 0
	c.BatchSize = 3
	c.StaggerTime = time.Second
	c.PullBatchSize = 10000
	c.SyncSchedule = ""
	c.Workers = 4
	c.LogLevel = "info"
	c.AuthBaseURL = ""
	c.ExternalLoginTimeout = 5 * time.Minute
}

// Default returns a Config holding the defaults.
func Default() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportHTTP:
		if c.BaseURL == "" {
			errs = append(errs, errors.New("base url is required for http transport"))
		}
	case TransportGRPC:
		if c.GRPCAddr == "" {
			errs = append(errs, errors.New("grpc address is required for grpc transport"))
		}
	case TransportMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	if c.AppKey == "" {
		errs = append(errs, errors.New("app key is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.PullBatchSize < 0 {
		errs = append(errs, fmt.Errorf("pull batch size must not be negative, got %d", c.PullBatchSize))
	}
	if c.RequestTimeout < 0 || c.DefaultTTL < 0 || c.StaggerTime < 0 || c.ExternalLoginTimeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	return errors.Join(errs...)
}

// Load builds a Config from defaults, then the JSON file named by -c or
// -config, then flags. Later sources take precedence.
func Load(args []string) (*Config, error) {
	cfg := Default()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
