package telemetry

import (
	"fmt"
	"time"
)

// Config selects how a nifictl process logs, traces, counts and reports
// progress. It is built from the telemetry section of the run configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string // trace, debug, info, warn, error or fatal
	Format string // console or json
	Output string // stdout, stderr or a file path

	EnableCaller bool

	// Sampling keeps the first SamplingInitial messages of each second and
	// then every SamplingThereafter-th one.
	EnableSampling     bool
	SamplingInitial    int
	SamplingThereafter int

	TimeFormat string // rfc3339, unix or unixms
}

// TracingConfig configures span export for runs, phases and NiFi calls.
type TracingConfig struct {
	Enabled  bool
	Exporter string // otlp, stdout or none
	Endpoint string // OTLP collector host:port

	SamplingRate       float64
	MaxExportBatchSize int
	ExportTimeout      time.Duration

	// Headers and Insecure apply to the OTLP gRPC connection only.
	Headers  map[string]string
	Insecure bool
}

// MetricsConfig configures the private Prometheus registry.
type MetricsConfig struct {
	Enabled   bool
	Namespace string

	// Textfile receives the registry in the text exposition format on
	// Shutdown. Empty means metrics stay in memory.
	Textfile string

	// DefaultHistogramBuckets are the NiFi call latency buckets, in seconds.
	DefaultHistogramBuckets []float64
}

// EventsConfig configures the progress event publisher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
}

// DefaultConfig returns the default telemetry configuration: console logs
// at info, metrics on, tracing off.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "nifictl",
		ServiceVersion: "dev",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stderr",
			EnableCaller:       false,
			EnableSampling:     false,
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:            false,
			Exporter:           "none",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            make(map[string]string),
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "nifictl",
			DefaultHistogramBuckets: []float64{
				0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0,
			},
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
		},
	}
}

// DevelopmentConfig is DefaultConfig with debug logs, caller info and spans
// printed to stderr.
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.EnableCaller = true
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q, expected console or json", c.Logging.Format)
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp", "stdout", "none":
		default:
			return fmt.Errorf("invalid trace exporter %q", c.Tracing.Exporter)
		}
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return fmt.Errorf("trace endpoint is required for the otlp exporter")
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be within [0, 1], got %g", c.Tracing.SamplingRate)
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", c.Events.BufferSize)
	}

	return nil
}
