package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/nifictl/pkg/engine"
)

const cueConfig = `
nifi: {
	url:        "http://localhost:8080/nifi-api"
	root_group: "root"
	timeout:    "5s"
}
ontology: files: ["channels.ttl"]
channels: [{
	type:      "https://w3id.org/conn#WsWriterChannel"
	template:  "templates/ws-writer.xml"
	direction: "writer"
}]
links: missing_key: "fail"
readiness: {
	interval: "250ms"
	retries:  3
}
`

const yamlConfig = `
nifi:
  url: https://nifi.example.com/nifi-api
  root_group: root
  token: secret
links:
  missing_key: default
  default_relationship: success
start: false
telemetry:
  log_format: json
  tracing:
    exporter: otlp
    endpoint: localhost:4317
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_CUE(t *testing.T) {
	loader := NewLoader()
	path := writeConfig(t, "nifictl.cue", cueConfig)

	cfg, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := loader.Validate(cfg); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.NiFi.Timeout.Std() != 5*time.Second {
		t.Errorf("expected timeout 5s, got %s", cfg.NiFi.Timeout)
	}
	if cfg.Readiness.Interval.Std() != 250*time.Millisecond || cfg.Readiness.Retries != 3 {
		t.Errorf("unexpected readiness %+v", cfg.ReadinessConfig())
	}
	if !cfg.Start {
		t.Error("expected start to default to true")
	}

	dir := filepath.Dir(path)
	if cfg.Ontology.Files[0] != filepath.Join(dir, "channels.ttl") {
		t.Errorf("expected ontology path resolved against the file, got %s", cfg.Ontology.Files[0])
	}

	tf, ok := cfg.Templates()["https://w3id.org/conn#WsWriterChannel"]
	if !ok {
		t.Fatal("expected channel template")
	}
	if tf.Role != engine.RoleWriter || tf.Path != filepath.Join(dir, "templates/ws-writer.xml") {
		t.Errorf("unexpected template %+v", tf)
	}
}

func TestLoad_YAML(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load(writeConfig(t, "nifictl.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := loader.Validate(cfg); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Start {
		t.Error("expected start false")
	}
	if cfg.NiFi.Timeout.Std() != 30*time.Second {
		t.Errorf("expected default timeout, got %s", cfg.NiFi.Timeout)
	}
	if cfg.Readiness.Retries != 10 || cfg.Readiness.Interval.Std() != time.Second {
		t.Errorf("expected default readiness, got %+v", cfg.Readiness)
	}

	policy := cfg.LinkPolicy()
	if policy.MissingKey != engine.MissingKeyDefault || policy.DefaultRelationship != "success" {
		t.Errorf("unexpected link policy %+v", policy)
	}
	if err := policy.Validate(); err != nil {
		t.Errorf("expected valid link policy, got %v", err)
	}

	nc := cfg.NiFiConfig()
	if nc.URL != "https://nifi.example.com/nifi-api" || nc.Token != "secret" {
		t.Errorf("unexpected client config %+v", nc)
	}

	tc := cfg.TelemetryConfig()
	if !tc.Tracing.Enabled || tc.Tracing.Exporter != "otlp" || tc.Logging.Format != "json" {
		t.Errorf("unexpected telemetry config %+v", tc)
	}
	if err := tc.Validate(); err != nil {
		t.Errorf("expected valid telemetry config, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telemetry.LogLevel != "info" || cfg.Telemetry.Tracing.Exporter != "none" {
		t.Errorf("unexpected telemetry defaults %+v", cfg.Telemetry)
	}

	err = loader.Validate(cfg)
	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	paths := map[string]bool{}
	for _, e := range errs {
		paths[e.Path] = true
	}
	for _, want := range []string{"nifi.url", "nifi.root_group", "links.missing_key"} {
		if !paths[want] {
			t.Errorf("expected error on %s, got %v", want, errs)
		}
	}
}

func TestLoad_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		path    string
	}{
		{
			name:    "unknown field",
			file:    "c.cue",
			content: `nifi: uri: "http://localhost:8080"`,
			path:    "nifi",
		},
		{
			name:    "bad policy",
			file:    "c.yaml",
			content: "links:\n  missing_key: guess\n",
			path:    "links.missing_key",
		},
		{
			name:    "bad duration",
			file:    "c.yaml",
			content: "readiness:\n  interval: soon\n",
			path:    "readiness",
		},
		{
			name:    "negative retries",
			file:    "c.cue",
			content: `readiness: retries: -1`,
			path:    "readiness",
		},
		{
			name:    "bad direction",
			file:    "c.cue",
			content: `channels: [{type: "x", template: "t.xml", direction: "both"}]`,
			path:    "channels",
		},
	}

	loader := NewLoader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Load(writeConfig(t, tt.file, tt.content))
			var errs ValidationErrors
			if !errors.As(err, &errs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			found := false
			for _, e := range errs {
				if strings.HasPrefix(e.Path, "#") {
					t.Errorf("expected path without definition selector, got %s", e.Path)
				}
				if strings.HasPrefix(e.Path, tt.path) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.path, errs)
			}
		})
	}
}

func TestCUEPath(t *testing.T) {
	tests := []struct {
		selectors []string
		expected  string
	}{
		{[]string{"#Config", "links", "missing_key"}, "links.missing_key"},
		{[]string{"#Config", "channels", "0", "direction"}, "channels.0.direction"},
		{[]string{"nifi", "url"}, "nifi.url"},
		{[]string{"#Config"}, ""},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := cuePath(tt.selectors); got != tt.expected {
			t.Errorf("expected %q for %v, got %q", tt.expected, tt.selectors, got)
		}
	}
}

func TestLoad_CUEErrorPosition(t *testing.T) {
	loader := NewLoader()
	path := writeConfig(t, "c.cue", "start: true\nstart: false\n")

	_, err := loader.Load(path)
	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if errs[0].File != path || errs[0].Line == 0 {
		t.Errorf("expected a position in %s, got %+v", path, errs[0])
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	if _, err := NewLoader().Load("nifictl.toml"); err == nil {
		t.Error("expected unsupported extension to fail")
	}
}

func TestValidate_RequiredIf(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Parse([]byte(`
nifi: {url: "http://localhost:8080/nifi-api", root_group: "root"}
links: missing_key: "default"
telemetry: tracing: exporter: "otlp"
`), FormatCUE, "inline.cue")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	err = loader.Validate(cfg)
	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if errs[0].Path != "links.default_relationship" || errs[1].Path != "telemetry.tracing.endpoint" {
		t.Errorf("unexpected errors %v", errs)
	}
}

func TestApply(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Parse([]byte("links:\n  missing_key: unrestricted\n"), FormatYAML, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := loader.ValidateNiFi(cfg); err == nil {
		t.Fatal("expected missing engine location to fail")
	}

	cfg.Apply(Overrides{
		NiFiURL:   "http://localhost:8080/nifi-api",
		RootGroup: "root",
		Ontology:  []string{"extra.ttl"},
		NoStart:   true,
		Verbose:   true,
	})
	if err := loader.Validate(cfg); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	opts := cfg.Options()
	if opts.RootGroup != "root" || opts.Start || opts.Links.MissingKey != engine.MissingKeyUnrestricted {
		t.Errorf("unexpected options %+v", opts)
	}
	if len(cfg.Ontology.Files) != 1 || cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("unexpected overrides %+v", cfg)
	}
}
