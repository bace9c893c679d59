package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "jaeger" }, true},
		{"otlp without endpoint", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "otlp" }, true},
		{"sampling out of range", func(c *Config) { c.Tracing.SamplingRate = 2 }, true},
		{"empty event buffer", func(c *Config) { c.Events.BufferSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNilInstrumentation(t *testing.T) {
	var m *Metrics
	var tr *Tracer
	var ep *EventPublisher

	m.RecordRunStarted()
	m.RecordEntity("PROCESSOR", "created")
	m.RecordReadiness("timeout", 3)
	m.RecordRemoteCall("create_processor", time.Millisecond, errors.New("boom"))
	if err := m.WriteToTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Fatalf("expected nil metrics to write nothing, got %v", err)
	}

	ctx, span := tr.StartRunSpan(context.Background(), "run-1")
	span.End()
	if ctx == nil {
		t.Fatal("expected context from nil tracer")
	}

	if err := ep.PublishRunStarted("run-1"); err != nil {
		t.Errorf("expected nil publisher to drop events, got %v", err)
	}
	if err := ep.Shutdown(context.Background()); err != nil {
		t.Errorf("expected nil publisher shutdown to succeed, got %v", err)
	}
}

func TestMetricsRecording(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RecordEntity("PROCESSOR", "created")
	m.RecordEntity("PROCESSOR", "created")
	m.RecordConnection("direct", "dropped")
	m.RecordError("permanent", "CORRELATION_MISS")
	m.RecordRemoteCall("enable_service", time.Millisecond, errors.New("409"))

	if got := testutil.ToFloat64(m.entities.WithLabelValues("PROCESSOR", "created")); got != 2 {
		t.Errorf("expected 2 created processors, got %v", got)
	}
	if got := testutil.ToFloat64(m.connections.WithLabelValues("direct", "dropped")); got != 1 {
		t.Errorf("expected 1 dropped link, got %v", got)
	}
	if got := testutil.ToFloat64(m.errorsByCode.WithLabelValues("CORRELATION_MISS")); got != 1 {
		t.Errorf("expected 1 correlation miss, got %v", got)
	}
	if got := testutil.ToFloat64(m.remoteErrors.WithLabelValues("enable_service")); got != 1 {
		t.Errorf("expected 1 remote error, got %v", got)
	}
}

func TestMetricsDisabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	m.RecordRunStarted()
	if m.Registry() != nil {
		t.Error("expected no registry when metrics are disabled")
	}
}

func TestWriteToTextfile(t *testing.T) {
	m, _ := NewMetrics(DefaultConfig().Metrics)
	m.RecordRunStarted()
	m.RecordRunCompleted("partial", 2*time.Second)

	path := filepath.Join(t.TempDir(), "nifictl.prom")
	if err := m.WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read textfile: %v", err)
	}
	if !strings.Contains(string(data), `nifictl_runs_completed_total{status="partial"} 1`) {
		t.Errorf("expected completed run in textfile, got:\n%s", data)
	}
}

func TestEventPublisherOrderAndFilters(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 32})
	if err != nil {
		t.Fatalf("NewEventPublisher failed: %v", err)
	}

	var all, warnings []string
	ep.Subscribe(func(e Event) { all = append(all, e.Type) }, nil)
	ep.Subscribe(func(e Event) { warnings = append(warnings, e.Type) }, FilterByLevel(EventLevelWarning))

	_ = ep.PublishRunStarted("r1")
	_ = ep.PublishEntityProvisioned("r1", "ex:echo", "PROCESSOR", "p-1")
	_ = ep.PublishLinkDropped("r1", "ex:echo", "ex:log", "no correlation")
	_ = ep.PublishEntityFailed("r1", "ex:log", "processors", "409")
	_ = ep.PublishRunCompleted("r1", "partial", time.Second)

	if err := ep.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := []string{
		EventTypeRunStarted,
		EventTypeEntityProvisioned,
		EventTypeLinkDropped,
		EventTypeEntityFailed,
		EventTypeRunCompleted,
	}
	if strings.Join(all, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, all)
	}
	if len(warnings) != 3 {
		t.Errorf("expected 3 warning-or-worse events, got %v", warnings)
	}

	if err := ep.PublishRunStarted("r2"); err == nil {
		t.Error("expected publish after shutdown to fail")
	}
}

func TestEventPublisherBufferFull(t *testing.T) {
	ep := &EventPublisher{
		config: EventsConfig{Enabled: true, BufferSize: 1},
		buffer: make(chan Event, 1),
	}

	if err := ep.PublishRunStarted("r1"); err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	if err := ep.PublishRunStarted("r1"); err == nil {
		t.Error("expected full buffer to drop the event")
	}
}

func TestRecordRemoteOperation(t *testing.T) {
	m, _ := NewMetrics(DefaultConfig().Metrics)
	tr, err := NewTracer(TracingConfig{Enabled: false}, "nifictl", "test")
	if err != nil {
		t.Fatalf("NewTracer failed: %v", err)
	}

	boom := errors.New("boom")
	err = RecordRemoteOperation(context.Background(), tr, m, "delete_template", "DELETE", "/templates/t1",
		func(context.Context) (int, error) { return 500, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped operation error, got %v", err)
	}
	if got := testutil.ToFloat64(m.remoteCalls.WithLabelValues("delete_template")); got != 1 {
		t.Errorf("expected 1 remote call, got %v", got)
	}
}

func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nifictl.log")
	logger, err := NewLogger(LoggingConfig{Level: "warn", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("dropped")
	logger.ForComponent("orchestrator").ForRun("run-1").ForSubject("ex:echo").Warn("kept")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at warn level, got %d: %s", len(lines), data)
	}
	for _, want := range []string{`"component":"orchestrator"`, `"run_id":"run-1"`, `"subject":"ex:echo"`, `"message":"kept"`} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("expected %s in %s", want, lines[0])
		}
	}
}

func TestLoggerUnknownLevel(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "chatty", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if lvl := logger.Zerolog().GetLevel(); lvl != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", lvl)
	}
}
