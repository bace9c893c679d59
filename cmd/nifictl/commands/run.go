package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/nifictl/pkg/config"
	"github.com/openfroyo/nifictl/pkg/engine"
	"github.com/openfroyo/nifictl/pkg/policy"
	"github.com/openfroyo/nifictl/pkg/rdf"
	"github.com/openfroyo/nifictl/pkg/telemetry"
)

func newRunCommand() *cobra.Command {
	var (
		ontology   []string
		noStart    bool
		emitGraph  string
		reportFile string
	)

	cmd := &cobra.Command{
		Use:   "run [instance.ttl]",
		Short: "Provision an instance graph into NiFi",
		Long: `Provision an instance graph into NiFi.

The run:
  - Loads the ontology files and the instance graph (a file, or stdin)
  - Derives the plan and checks it against the configured policies
  - Creates controller services and processors, then wires direct links
  - Instantiates channel templates and wires channel links
  - Deletes the uploaded templates and starts everything it created

Failures of single entities or links are reported and the run goes on. The
command only fails when the graph cannot be read or queried, or when an
enforcing policy denies the plan.`,
		Example: `  # Provision a flow
  nifictl run --ontology ontology.ttl flow.ttl

  # Read the instance from stdin and keep everything stopped
  cat flow.ttl | nifictl run --ontology ontology.ttl --no-start

  # Keep the report and the graph augmented with remote ids
  nifictl run flow.ttl --report report.json --emit-graph flow.out.ttl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(outputTable, outputJSON)
			if err != nil {
				return err
			}

			e, err := setup(scopeAll, config.Overrides{Ontology: ontology, NoStart: noStart})
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			store, err := e.loadGraph(ctx, instanceArg(args), cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer store.Close()

			client, err := e.client()
			if err != nil {
				return err
			}
			policies, err := e.policies(ctx)
			if err != nil {
				return err
			}

			opts := e.cfg.Options()
			opts.Gate = policy.NewGate(policies, e.cfg.Policy.Enforce, e.logger)
			opts.Metrics = e.tel.Metrics
			opts.Tracer = e.tel.Tracer
			opts.Events = e.tel.Events

			progress := cmd.ErrOrStderr()
			e.tel.Events.Subscribe(func(ev telemetry.Event) {
				fmt.Fprintf(progress, "==> %s\n", ev.Message)
			}, telemetry.FilterByType(telemetry.EventTypePhaseStarted))

			orch, err := engine.NewOrchestrator(store, client, opts, e.logger)
			if err != nil {
				return err
			}

			e.logger.Info().
				Str("nifi", client.URL()).
				Str("root_group", opts.RootGroup).
				Msg("Provisioning")

			report, runErr := orch.Run(ctx)

			if reportFile != "" {
				if err := writeFile(reportFile, func(w io.Writer) error { return printJSON(w, report) }); err != nil {
					return err
				}
			}
			if emitGraph != "" {
				if err := writeFile(emitGraph, func(w io.Writer) error {
					return store.Export(ctx, w, rdf.FormatTurtle)
				}); err != nil {
					return err
				}
			}

			if format == outputJSON {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}

			return runErr
		},
	}

	cmd.Flags().StringArrayVar(&ontology, "ontology", nil, "ontology file to load before the instance (repeatable)")
	cmd.Flags().BoolVar(&noStart, "no-start", false, "create and wire everything but leave it stopped")
	cmd.Flags().StringVar(&emitGraph, "emit-graph", "", "write the graph with remote ids as Turtle to this file")
	cmd.Flags().StringVar(&reportFile, "report", "", "write the JSON run report to this file")

	return cmd
}

// writeFile creates path and hands it to fn.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func printReport(w io.Writer, report *engine.RunReport) {
	s := report.Summary

	fmt.Fprintf(w, "Run %s: %s in %s\n\n", report.RunID, report.Status, report.Duration().Round(time.Millisecond))

	tw := newTable(w)
	row(tw, "Services created", s.ServicesCreated)
	row(tw, "Processors created", s.ProcessorsCreated)
	row(tw, "Channels created", s.ChannelsCreated)
	row(tw, "Connections created", s.ConnectionsCreated)
	row(tw, "Templates uploaded", s.TemplatesUploaded)
	row(tw, "Templates deleted", s.TemplatesDeleted)
	row(tw, "Entities failed", s.EntitiesFailed)
	row(tw, "Links dropped", s.LinksDropped)
	row(tw, "Rows rejected", s.RowsRejected)
	row(tw, "Warnings", s.Warnings)
	_ = tw.Flush()

	if len(report.Failures) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		tw = newTable(w)
		row(tw, "PHASE", "SUBJECT", "CLASS", "CODE", "MESSAGE")
		for _, f := range report.Failures {
			row(tw, f.Phase, f.Subject, f.Class, f.Code, f.Message)
		}
		_ = tw.Flush()
	}

	if report.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", report.Error)
	}
}
