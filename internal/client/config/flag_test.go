package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want func(c *Config)
	}{
		{
			name: "no flags",
			args: []string{},
			want: func(*Config) {},
		},
		{
			name: "transport and endpoints",
			args: []string{"-t", "grpc", "-g", "10.0.0.1:50051", "-a", "http://10.0.0.1:8080"},
			want: func(c *Config) {
				c.Transport = TransportGRPC
				c.GRPCAddr = "10.0.0.1:50051"
				c.BaseURL = "http://10.0.0.1:8080"
			},
		},
		{
			name: "durations and sizes",
			args: []string{"-timeout=2s", "-ttl", "10m", "-b", "7", "--stagger=250ms", "-pull-batch", "50"},
			want: func(c *Config) {
				c.RequestTimeout = 2 * time.Second
				c.DefaultTTL = 10 * time.Minute
				c.BatchSize = 7
				c.StaggerTime = 250 * time.Millisecond
				c.PullBatchSize = 50
			},
		},
		{
			name: "foreign flags are ignored",
			args: []string{"-c", "conf.json", "-k", "kid_x", "-verbose", "-l", "debug"},
			want: func(c *Config) {
				c.AppKey = "kid_x"
				c.LogLevel = "debug"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Default()
			assert.NoError(t, parseFlags(got, tt.args))

			want := Default()
			tt.want(want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFlags_BadValue(t *testing.T) {
	err := parseFlags(Default(), []string{"-b", "many"})
	assert.ErrorContains(t, err, "failed to parse flags")
}
