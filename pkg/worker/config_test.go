package worker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, TransportGRPC, cfg.Transport)
	assert.Equal(t, 128*1024*1024, cfg.GRPCMaxMessageLength)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 5*time.Second, cfg.TerminateGrace)
	assert.True(t, cfg.NNG.Insecure)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: 10.0.0.5
port: 7071
workerId: w-42
transport: nng
nng:
  address: ipc:///tmp/host.ipc
log:
  level: debug
  format: json
metrics:
  enabled: true
  listen: ":9100"
terminateGrace: 2s
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Host)
	assert.Equal(t, 7071, cfg.Port)
	assert.Equal(t, "w-42", cfg.WorkerID)
	assert.Equal(t, TransportNNG, cfg.Transport)
	assert.Equal(t, "ipc:///tmp/host.ipc", cfg.NNG.Address)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
	assert.Equal(t, 2*time.Second, cfg.TerminateGrace)
	// Unset keys keep their defaults.
	assert.Equal(t, 128*1024*1024, cfg.GRPCMaxMessageLength)
	assert.Equal(t, "functions_worker", cfg.Metrics.Namespace)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"FUNCTIONS_WORKER_HOST":            "host.internal",
		"FUNCTIONS_WORKER_PORT":            "50051",
		"FUNCTIONS_WORKER_WORKER_ID":       "abc",
		"FUNCTIONS_WORKER_LOG_LEVEL":       "warn",
		"FUNCTIONS_WORKER_METRICS_ENABLED": "true",
		"FUNCTIONS_WORKER_TERMINATE_GRACE": "750ms",
		"FUNCTIONS_WORKER_REQUEST_ID":      "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	cfg.RequestID = "keep"
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, "host.internal", cfg.Host)
	assert.Equal(t, 50051, cfg.Port)
	assert.Equal(t, "abc", cfg.WorkerID)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 750*time.Millisecond, cfg.TerminateGrace)
	assert.Equal(t, "keep", cfg.RequestID, "empty values do not override")

	tests := []struct {
		key, value string
	}{
		{"FUNCTIONS_WORKER_PORT", "http"},
		{"FUNCTIONS_WORKER_TRACING_ENABLED", "maybe"},
		{"FUNCTIONS_WORKER_TERMINATE_GRACE", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := DefaultConfig().ApplyEnv(func(k string) (string, bool) {
				if k == tt.key {
					return tt.value, true
				}
				return "", false
			})
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"grpc ok", func(c *Config) { c.Port = 7071 }, ""},
		{"grpc without port", func(c *Config) {}, "port 0 is out of range"},
		{"grpc without host", func(c *Config) { c.Port = 1; c.Host = "" }, "host is required"},
		{"nng ok", func(c *Config) { c.Transport = "NNG" }, ""},
		{"nng without address", func(c *Config) { c.Transport = TransportNNG; c.NNG.Address = "" }, "nng address is required"},
		{"unknown transport", func(c *Config) { c.Transport = "carrier-pigeon" }, "unknown transport"},
		{"negative message length", func(c *Config) { c.Port = 1; c.GRPCMaxMessageLength = -1 }, "grpcMaxMessageLength"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_SetFunctionsURI(t *testing.T) {
	tests := []struct {
		uri      string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"http://127.0.0.1:7071/", "127.0.0.1", 7071, false},
		{"localhost:50051", "localhost", 50051, false},
		{"http://[::1]:9000", "::1", 9000, false},
		{"http://127.0.0.1/", "", 0, true},
		{"http://127.0.0.1:port", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			cfg := DefaultConfig()
			err := cfg.SetFunctionsURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, cfg.Host)
			assert.Equal(t, tt.wantPort, cfg.Port)
		})
	}

	cfg := &Config{Host: "::1", Port: 9000}
	assert.Equal(t, "[::1]:9000", cfg.HostAddress())
}
