package telemetry

import (
	"context"
	"errors"
	"fmt"
)

// Telemetry bundles logging, tracing, metrics and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// Shutdown drains pending events, flushes spans and writes the metrics
// textfile when one is configured. Every step runs; the errors are joined.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if err := t.Events.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down tracer: %w", err))
	}
	if t.Config != nil {
		if err := t.Metrics.WriteToTextfile(t.Config.Metrics.Textfile); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics textfile: %w", err))
		}
	}

	return errors.Join(errs...)
}

// RecordRemoteOperation runs fn inside a client span and records its
// duration and outcome. Both tracer and metrics may be nil.
func RecordRemoteOperation(ctx context.Context, tracer *Tracer, metrics *Metrics, operation, method, path string, fn func(context.Context) (int, error)) error {
	ctx, span := tracer.StartRemoteSpan(ctx, operation, method, path)
	defer span.End()

	timer := NewTimer()
	status, err := fn(ctx)
	metrics.RecordRemoteCall(operation, timer.Duration(), err)

	if status != 0 {
		span.SetAttributes(AttrHTTPStatus.Int(status))
	}
	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	return err
}
