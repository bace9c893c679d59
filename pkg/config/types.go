package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the nifictl configuration file.
type Config struct {
	// NiFi locates the engine and the process group objects are created in.
	NiFi NiFiConfig `json:"nifi" yaml:"nifi"`

	// Ontology lists ontology files loaded before the user's documents.
	Ontology OntologyConfig `json:"ontology" yaml:"ontology"`

	// Channels maps channel types to the templates that realize them.
	Channels []ChannelConfig `json:"channels" yaml:"channels" validate:"dive"`

	// Links decides how links without a relationship key are wired.
	Links LinksConfig `json:"links" yaml:"links"`

	// Readiness bounds service enablement polling.
	Readiness ReadinessConfig `json:"readiness" yaml:"readiness"`

	// Start activates objects after wiring.
	Start bool `json:"start" yaml:"start"`

	// Policy configures the plan gate.
	Policy PolicyConfig `json:"policy" yaml:"policy"`

	// Telemetry configures logs, traces and metrics.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// NiFiConfig locates the NiFi REST API.
type NiFiConfig struct {
	URL                string   `json:"url" yaml:"url" validate:"required,url"`
	RootGroup          string   `json:"root_group" yaml:"root_group" validate:"required"`
	Token              string   `json:"token,omitempty" yaml:"token,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	Timeout            Duration `json:"timeout" yaml:"timeout"`
}

// OntologyConfig lists channel and component ontologies.
type OntologyConfig struct {
	Files []string `json:"files" yaml:"files"`
}

// ChannelConfig maps one channel type IRI to a template file.
type ChannelConfig struct {
	// Type is the channel class IRI.
	Type string `json:"type" yaml:"type" validate:"required"`

	// Template is the template XML file, relative to the configuration file.
	Template string `json:"template" yaml:"template" validate:"required"`

	// Direction restricts the template to writer or reader channels.
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty" validate:"omitempty,oneof=writer reader"`
}

// LinksConfig configures the link resolver.
type LinksConfig struct {
	MissingKey          string `json:"missing_key" yaml:"missing_key" validate:"required,oneof=fail default unrestricted"`
	DefaultRelationship string `json:"default_relationship,omitempty" yaml:"default_relationship,omitempty" validate:"required_if=MissingKey default"`
}

// ReadinessConfig configures service enablement polling.
type ReadinessConfig struct {
	Interval Duration `json:"interval" yaml:"interval"`
	Retries  int      `json:"retries" yaml:"retries" validate:"gte=0"`
}

// PolicyConfig configures the plan gate.
type PolicyConfig struct {
	// Enforce denies runs whose plan violates a policy.
	Enforce bool `json:"enforce" yaml:"enforce"`

	// Paths lists Rego files or directories loaded next to the built-in policies.
	Paths []string `json:"paths" yaml:"paths"`
}

// TelemetryConfig is the file form of the telemetry settings.
type TelemetryConfig struct {
	LogLevel  string        `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	LogFormat string        `json:"log_format" yaml:"log_format" validate:"omitempty,oneof=console json"`
	Tracing   TracingConfig `json:"tracing" yaml:"tracing"`

	// MetricsTextfile receives the run metrics in the Prometheus text format.
	MetricsTextfile string `json:"metrics_textfile,omitempty" yaml:"metrics_textfile,omitempty"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Exporter string `json:"exporter" yaml:"exporter" validate:"omitempty,oneof=none stdout otlp"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" validate:"required_if=Exporter otlp"`
	Insecure bool   `json:"insecure" yaml:"insecure"`
}

// Duration is a time.Duration written as a Go duration string ("500ms", "30s").
type Duration time.Duration

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// ValidationError is one problem found in a configuration file.
type ValidationError struct {
	// Path is the dotted field path, if known.
	Path string `json:"path,omitempty"`

	// File, Line and Column locate CUE errors.
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`

	Message string `json:"message"`
}

// String renders the error with its position.
func (e ValidationError) String() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors collects the problems of one configuration.
type ValidationErrors []ValidationError

// Error implements error.
func (errs ValidationErrors) Error() string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.String())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}
