package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger carries the configured zerolog logger. Engine components take the
// zerolog.Logger by value; Logger adds the run, subject and remote object
// fields they log under.
type Logger struct {
	zlog zerolog.Logger
}

type loggerContextKey struct{}

// NewLogger creates a logger writing to cfg.Output, which is stdout, stderr
// or a file path opened for appending.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat(cfg.TimeFormat)}
	}

	switch cfg.TimeFormat {
	case "unix":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "unixms":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	default:
		zerolog.TimeFieldFormat = time.RFC3339
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.EnableCaller {
		zctx = zctx.Caller()
	}
	zlog := zctx.Logger()

	if cfg.EnableSampling {
		zlog = zlog.Sample(&zerolog.BurstSampler{
			Burst:       uint32(cfg.SamplingInitial),
			Period:      time.Second,
			NextSampler: &zerolog.BasicSampler{N: uint32(cfg.SamplingThereafter)},
		})
	}

	return &Logger{zlog: zlog}, nil
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output: %w", err)
	}
	return f, nil
}

func consoleTimeFormat(format string) string {
	if format == "unix" {
		return "unix"
	}
	return time.RFC3339
}

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// WithContext adds the logger to the context.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext returns the logger stored in ctx, or a stderr logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zlog: zerolog.New(os.Stderr).With().Timestamp().Logger()}
}

func (l *Logger) with(key, value string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(key, value).Logger()}
}

// ForComponent tags messages with the component emitting them.
func (l *Logger) ForComponent(component string) *Logger {
	return l.with("component", component)
}

// ForRun tags messages with a run id.
func (l *Logger) ForRun(runID string) *Logger {
	return l.with("run_id", runID)
}

// ForSubject tags messages with the graph subject they are about.
func (l *Logger) ForSubject(subject string) *Logger {
	return l.with("subject", subject)
}

// ForRemote tags messages with a remote object id.
func (l *Logger) ForRemote(remoteID string) *Logger {
	return l.with("remote_id", remoteID)
}

// WithError attaches an error.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zlog.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zlog.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }
