// Package telemetry provides the observability instrumentation of nifictl.
//
// It integrates structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and progress events into one bundle that the CLI
// builds once per process and hands to the provisioning engine.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.Textfile = "/var/lib/node_exporter/nifictl.prom"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// # Nil receivers
//
// *Metrics, *Tracer and *EventPublisher accept nil receivers. Engine
// components hold optional pointers to them and call through without
// checking, so tests can leave instrumentation out entirely.
//
// # Tracing
//
// A run produces one "run.execute" span with one child span per phase and
// one client span per NiFi API call:
//
//	ctx, span := tel.Tracer.StartRunSpan(ctx, runID)
//	defer span.End()
//
//	ctx, phase := tel.Tracer.StartPhaseSpan(ctx, "processors")
//	defer phase.End()
//
// Supported exporters: "otlp" (gRPC), "stdout" (pretty-printed to stderr)
// and "none".
//
// # Metrics
//
// Metrics live on a private registry. A CLI process exits after one run, so
// there is no scrape endpoint: when MetricsConfig.Textfile is set, Shutdown
// writes the registry in the text exposition format for a node exporter
// textfile collector.
//
//  - nifictl_runs_started_total
//  - nifictl_runs_completed_total{status}
//  - nifictl_run_duration_seconds{status}
//  - nifictl_entities_total{kind,outcome}
//  - nifictl_channels_total{role,outcome}
//  - nifictl_connections_total{origin,outcome}
//  - nifictl_template_operations_total{operation}
//  - nifictl_rejected_rows_total{shape}
//  - nifictl_service_readiness_total{outcome}
//  - nifictl_service_readiness_checks
//  - nifictl_remote_calls_total{operation}
//  - nifictl_remote_call_duration_seconds{operation}
//  - nifictl_remote_errors_total{operation}
//  - nifictl_errors_by_class_total{class}
//  - nifictl_errors_by_code_total{code}
//
// # Events
//
// The event publisher buffers events and delivers them in order from one
// goroutine. The CLI subscribes to print progress:
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Fprintln(os.Stderr, event.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// Shutdown closes the buffer and waits until every queued event has been
// delivered.
package telemetry
