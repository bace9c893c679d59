package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/nifictl/pkg/config"
	"github.com/openfroyo/nifictl/pkg/nifi"
	"github.com/openfroyo/nifictl/pkg/policy"
	"github.com/openfroyo/nifictl/pkg/rdf"
	"github.com/openfroyo/nifictl/pkg/stores"
	"github.com/openfroyo/nifictl/pkg/telemetry"
)

// scope selects which part of the configuration a command needs.
type scope int

const (
	// scopeAll checks everything, as run does.
	scopeAll scope = iota
	// scopeOffline checks everything but the NiFi section.
	scopeOffline
	// scopeNiFi checks only the NiFi section.
	scopeNiFi
)

const shutdownTimeout = 5 * time.Second

// env is the state shared by a command once its configuration is loaded.
type env struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	logger zerolog.Logger
}

// setup loads the configuration, applies the global flags and ontology
// overrides, validates the requested scope and starts telemetry.
func setup(s scope, overrides config.Overrides) (*env, error) {
	loader := config.NewLoader()
	cfg, err := loader.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	overrides.NiFiURL = nifiURL
	overrides.RootGroup = rootGroup
	overrides.Verbose = verbose
	cfg.Apply(overrides)

	switch s {
	case scopeAll:
		err = loader.Validate(cfg)
	case scopeOffline:
		err = withoutNiFi(loader.Validate(cfg))
	case scopeNiFi:
		err = loader.ValidateNiFi(cfg)
	}
	if err != nil {
		return nil, err
	}

	tc := cfg.TelemetryConfig()
	tc.ServiceVersion = buildVersion
	tel, err := telemetry.NewTelemetry(tc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	return &env{
		cfg:    cfg,
		tel:    tel,
		logger: tel.Logger.Zerolog(),
	}, nil
}

// withoutNiFi drops validation errors about the NiFi section.
func withoutNiFi(err error) error {
	errs, ok := err.(config.ValidationErrors)
	if !ok {
		return err
	}
	var kept config.ValidationErrors
	for _, e := range errs {
		if e.Path != "nifi" && !strings.HasPrefix(e.Path, "nifi.") {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// close flushes telemetry. It runs on a fresh context so that an
// interrupted command still writes its metrics.
func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.tel.Shutdown(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
}

// client creates an instrumented NiFi client.
func (e *env) client() (*nifi.Client, error) {
	cfg := e.cfg.NiFiConfig()
	cfg.Tracer = e.tel.Tracer
	cfg.Metrics = e.tel.Metrics
	return nifi.NewClient(cfg, e.logger)
}

// loadGraph loads the ontology files and then the instance into a fresh
// in-memory store. An empty instance path or "-" reads Turtle from stdin.
func (e *env) loadGraph(ctx context.Context, instance string, stdin io.Reader) (*stores.SQLiteStore, error) {
	store, err := stores.NewMemoryStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph store: %w", err)
	}

	if instance == "" {
		instance = "-"
	}
	paths := append(append([]string{}, e.cfg.Ontology.Files...), instance)

	for _, path := range paths {
		var doc *stores.Document
		if path == "-" {
			doc, err = store.Load(ctx, stdin, rdf.FormatTurtle, "stdin")
		} else {
			doc, err = store.LoadFile(ctx, path)
		}
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		e.logger.Debug().
			Str("source", doc.Source).
			Int("triples", doc.Triples).
			Msg("Graph loaded")
	}

	return store, nil
}

// policies creates the policy engine with the configured policy files.
func (e *env) policies(ctx context.Context) (*policy.Engine, error) {
	eng, err := policy.NewEngine(e.logger)
	if err != nil {
		return nil, err
	}
	if len(e.cfg.Policy.Paths) > 0 {
		if err := eng.LoadPolicies(ctx, e.cfg.Policy.Paths); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// instanceArg returns the optional instance path argument.
func instanceArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
