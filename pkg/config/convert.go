package config

import (
	"github.com/openfroyo/nifictl/pkg/engine"
	"github.com/openfroyo/nifictl/pkg/nifi"
	"github.com/openfroyo/nifictl/pkg/telemetry"
)

// Overrides carries command line values that take precedence over the file.
// Zero values leave the file value in place.
type Overrides struct {
	NiFiURL   string
	RootGroup string

	// Ontology files are appended to the configured ones.
	Ontology []string

	NoStart bool
	Verbose bool
}

// Apply applies command line overrides.
func (c *Config) Apply(o Overrides) {
	if o.NiFiURL != "" {
		c.NiFi.URL = o.NiFiURL
	}
	if o.RootGroup != "" {
		c.NiFi.RootGroup = o.RootGroup
	}
	c.Ontology.Files = append(c.Ontology.Files, o.Ontology...)
	if o.NoStart {
		c.Start = false
	}
	if o.Verbose {
		c.Telemetry.LogLevel = "debug"
	}
}

// Templates returns the channel template mapping.
func (c *Config) Templates() engine.FileTemplates {
	templates := make(engine.FileTemplates, len(c.Channels))
	for _, ch := range c.Channels {
		var role engine.Role
		switch ch.Direction {
		case "writer":
			role = engine.RoleWriter
		case "reader":
			role = engine.RoleReader
		}
		templates[ch.Type] = engine.TemplateFile{Path: ch.Template, Role: role}
	}
	return templates
}

// LinkPolicy returns the link resolver policy.
func (c *Config) LinkPolicy() engine.LinkPolicy {
	return engine.LinkPolicy{
		MissingKey:          engine.MissingKeyPolicy(c.Links.MissingKey),
		DefaultRelationship: c.Links.DefaultRelationship,
	}
}

// ReadinessConfig returns the readiness poller bounds.
func (c *Config) ReadinessConfig() engine.ReadinessConfig {
	return engine.ReadinessConfig{
		Interval: c.Readiness.Interval.Std(),
		Retries:  c.Readiness.Retries,
	}
}

// Options returns the orchestrator options. Instrumentation and the plan
// gate are left for the caller to fill in.
func (c *Config) Options() engine.Options {
	return engine.Options{
		RootGroup: c.NiFi.RootGroup,
		Start:     c.Start,
		Links:     c.LinkPolicy(),
		Readiness: c.ReadinessConfig(),
		Templates: c.Templates(),
	}
}

// NiFiConfig returns the REST client configuration.
func (c *Config) NiFiConfig() nifi.Config {
	return nifi.Config{
		URL:                c.NiFi.URL,
		Token:              c.NiFi.Token,
		InsecureSkipVerify: c.NiFi.InsecureSkipVerify,
		Timeout:            c.NiFi.Timeout.Std(),
	}
}

// TelemetryConfig returns the telemetry configuration, starting from
// telemetry.DefaultConfig.
func (c *Config) TelemetryConfig() *telemetry.Config {
	tc := telemetry.DefaultConfig()
	if c.Telemetry.LogLevel != "" {
		tc.Logging.Level = c.Telemetry.LogLevel
	}
	if c.Telemetry.LogFormat != "" {
		tc.Logging.Format = c.Telemetry.LogFormat
	}

	switch c.Telemetry.Tracing.Exporter {
	case "", "none":
		tc.Tracing.Enabled = false
		tc.Tracing.Exporter = "none"
	default:
		tc.Tracing.Enabled = true
		tc.Tracing.Exporter = c.Telemetry.Tracing.Exporter
		tc.Tracing.Endpoint = c.Telemetry.Tracing.Endpoint
		tc.Tracing.Insecure = c.Telemetry.Tracing.Insecure
	}

	tc.Metrics.Textfile = c.Telemetry.MetricsTextfile
	return tc
}
