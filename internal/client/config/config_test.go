package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()

	assert.Equal(t, TransportHTTP, c.Transport)
	assert.Equal(t, 3, c.BatchSize)
	assert.Equal(t, time.Second, c.StaggerTime)
	assert.Equal(t, 5*time.Minute, c.ExternalLoginTimeout)
	assert.Zero(t, c.DefaultTTL)
	assert.NoError(t, c.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeTempJSON(t, `{
		"base_url": "http://json:8080",
		"app_key": "kid_json",
		"batch_size": 5,
		"stagger_time": "2s",
		"default_ttl": 60000000000
	}`)

	got, err := Load([]string{"-c", path, "-a", "http://flag:9090", "-sync", "@every 30s", "--unknown"})
	require.NoError(t, err)

	want := Default()
	want.BaseURL = "http://flag:9090"
	want.AppKey = "kid_json"
	want.BatchSize = 5
	want.StaggerTime = 2 * time.Second
	want.DefaultTTL = time.Minute
	want.SyncSchedule = "@every 30s"

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_NoArgs(t *testing.T) {
	got, err := Load(nil)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "memory transport", mutate: func(c *Config) { c.Transport = TransportMemory; c.BaseURL = "" }},
		{name: "grpc without addr", mutate: func(c *Config) { c.Transport = TransportGRPC; c.GRPCAddr = "" }, wantErr: true},
		{name: "http without url", mutate: func(c *Config) { c.BaseURL = "" }, wantErr: true},
		{name: "unknown transport", mutate: func(c *Config) { c.Transport = "pigeon" }, wantErr: true},
		{name: "no app key", mutate: func(c *Config) { c.AppKey = "" }, wantErr: true},
		{name: "zero batch", mutate: func(c *Config) { c.BatchSize = 0 }, wantErr: true},
		{name: "negative ttl", mutate: func(c *Config) { c.DefaultTTL = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load([]string{"-t", "pigeon"})
	assert.ErrorContains(t, err, "unknown transport")
}
