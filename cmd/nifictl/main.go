package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/nifictl/cmd/nifictl/commands"
	"github.com/openfroyo/nifictl/pkg/telemetry"
)

// Set with -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	logger, err := bootstrapLogger(os.Getenv("NIFICTL_LOG_LEVEL"), os.Getenv("NIFICTL_LOG_FORMAT"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Logger = logger

	// In-flight NiFi calls return the context error on SIGINT or SIGTERM and
	// the run report is still written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		log.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

// bootstrapLogger builds the logger used until a command has loaded its
// configuration. An empty format means console output on stderr.
func bootstrapLogger(level, format string) (zerolog.Logger, error) {
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return zerolog.Logger{}, fmt.Errorf("NIFICTL_LOG_FORMAT must be console or json, got %q", format)
	}

	l, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  level,
		Format: format,
		Output: "stderr",
	})
	if err != nil {
		return zerolog.Logger{}, err
	}
	return l.Zerolog().With().Str("component", "nifictl").Logger(), nil
}
