package worker

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/transport"
)

// Transport names the host link implementation.
const (
	TransportGRPC = "grpc"
	TransportNNG  = "nng"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FUNCTIONS_WORKER_"

// LogConfig holds logger settings
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Endpoint is an OTLP/HTTP collector; empty keeps spans in-process.
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

// Config is the worker configuration.
type Config struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	WorkerID             string `yaml:"workerId"`
	RequestID            string `yaml:"requestId"`
	GRPCMaxMessageLength int    `yaml:"grpcMaxMessageLength"`

	Transport string           `yaml:"transport"`
	NNG       transport.Config `yaml:"nng"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`

	AppDirectory   string        `yaml:"appDirectory"`
	TerminateGrace time.Duration `yaml:"terminateGrace"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:                 "127.0.0.1",
		GRPCMaxMessageLength: 128 * 1024 * 1024,
		Transport:            TransportGRPC,
		NNG:                  *transport.DefaultConfig(),
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Metrics: MetricsConfig{
			Listen:    ":9464",
			Namespace: "functions_worker",
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
		TerminateGrace: 5 * time.Second,
	}
}

// LoadConfig reads defaults, then the YAML file at path when non-empty, then
// FUNCTIONS_WORKER_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"HOST":           &c.Host,
		"WORKER_ID":      &c.WorkerID,
		"REQUEST_ID":     &c.RequestID,
		"TRANSPORT":      &c.Transport,
		"NNG_ADDRESS":    &c.NNG.Address,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
		"LOG_FILE":       &c.Log.File,
		"METRICS_LISTEN": &c.Metrics.Listen,
		"OTLP_ENDPOINT":  &c.Tracing.Endpoint,
		"APP_DIRECTORY":  &c.AppDirectory,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PORT":                    &c.Port,
		"GRPC_MAX_MESSAGE_LENGTH": &c.GRPCMaxMessageLength,
	}
	for name, dst := range ints {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"METRICS_ENABLED": &c.Metrics.Enabled,
		"TRACING_ENABLED": &c.Tracing.Enabled,
		"NNG_INSECURE":    &c.NNG.Insecure,
	}
	for name, dst := range bools {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}

	if v, ok := get("TERMINATE_GRACE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTERMINATE_GRACE: %w", EnvPrefix, err)
		}
		c.TerminateGrace = d
	}
	return nil
}

// Validate checks the settings needed to connect to the host.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Transport) {
	case TransportGRPC:
		if c.Host == "" {
			return fmt.Errorf("host is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("port %d is out of range", c.Port)
		}
	case TransportNNG:
		if c.NNG.Address == "" {
			return fmt.Errorf("nng address is required")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.GRPCMaxMessageLength < 0 {
		return fmt.Errorf("grpcMaxMessageLength must not be negative")
	}
	return nil
}

// HostAddress returns host:port for the gRPC link.
func (c *Config) HostAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SetFunctionsURI applies a --functions-uri value such as
// http://127.0.0.1:7071/.
func (c *Config) SetFunctionsURI(uri string) error {
	s := uri
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimSuffix(s, "/")
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("functions uri %q: %w", uri, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("functions uri %q: %w", uri, err)
	}
	c.Host, c.Port = host, p
	return nil
}
