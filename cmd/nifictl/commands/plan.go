package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/openfroyo/nifictl/pkg/config"
	"github.com/openfroyo/nifictl/pkg/engine"
)

// watchDelay debounces editor write bursts into one re-derivation.
const watchDelay = 300 * time.Millisecond

func newPlanCommand() *cobra.Command {
	var (
		ontology []string
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "plan [instance.ttl]",
		Short: "Derive and print the provisioning plan",
		Long: `Derive the provisioning plan of an instance graph without calling NiFi.

The plan lists the controller services, processors, channels and links a run
would create, and every instance row that was rejected with the reason.`,
		Example: `  # Print the plan as a table
  nifictl plan --ontology ontology.ttl flow.ttl

  # Print the plan as JSON
  nifictl plan --ontology ontology.ttl flow.ttl -o json

  # Re-derive whenever the ontology or the instance changes
  nifictl plan --ontology ontology.ttl flow.ttl --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(outputTable, outputJSON)
			if err != nil {
				return err
			}

			instance := instanceArg(args)
			if watch && (instance == "" || instance == "-") {
				return errors.New("--watch needs an instance file")
			}

			e, err := setup(scopeOffline, config.Overrides{Ontology: ontology})
			if err != nil {
				return err
			}
			defer e.close()

			show := func(ctx context.Context) error {
				plan, err := e.derive(ctx, instance, cmd.InOrStdin())
				if err != nil {
					return err
				}
				if format == outputJSON {
					return printJSON(cmd.OutOrStdout(), plan)
				}
				printPlan(cmd.OutOrStdout(), plan)
				return nil
			}

			if err := show(cmd.Context()); err != nil || !watch {
				return err
			}

			files := append(append([]string{}, e.cfg.Ontology.Files...), instance)
			return watchFiles(cmd.Context(), files, func(ctx context.Context) {
				fmt.Fprintln(cmd.OutOrStdout())
				if err := show(ctx); err != nil {
					e.logger.Error().Err(err).Msg("Failed to derive plan")
				}
			})
		},
	}

	cmd.Flags().StringArrayVar(&ontology, "ontology", nil, "ontology file to load before the instance (repeatable)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-derive the plan when a loaded file changes")

	return cmd
}

// derive loads the graph and derives its plan.
func (e *env) derive(ctx context.Context, instance string, stdin io.Reader) (*engine.Plan, error) {
	store, err := e.loadGraph(ctx, instance, stdin)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return engine.NewPlanner(store, e.logger).Plan(ctx)
}

// watchFiles calls fn after each burst of writes to files until ctx is done.
func watchFiles(ctx context.Context, files []string, fn func(context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, f := range files {
		if err := watcher.Add(f); err != nil {
			return fmt.Errorf("failed to watch %s: %w", f, err)
		}
	}

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Editors that save by rename drop the watch on the old inode.
			if event.Op&fsnotify.Rename != 0 {
				_ = watcher.Add(event.Name)
			}
			fire = time.After(watchDelay)

		case <-fire:
			fire = nil
			fn(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch failed: %w", err)
		}
	}
}

func printPlan(w io.Writer, plan *engine.Plan) {
	s := plan.Summary
	fmt.Fprintf(w, "Plan %s: %d services, %d processors, %d writer channels, %d reader channels, %d links, %d rejected rows\n",
		plan.ID, s.Services, s.Processors, s.WriterChannels, s.ReaderChannels, s.Links, s.Rejected)

	if len(plan.Services)+len(plan.Processors) > 0 {
		fmt.Fprintln(w)
		tw := newTable(w)
		row(tw, "KIND", "SUBJECT", "TYPE", "PROPERTIES")
		for _, list := range [][]engine.Entity{plan.Services, plan.Processors} {
			for _, ent := range list {
				props, _ := ent.Properties()
				row(tw, ent.Kind, engine.Describe(ent.Subject), ent.EngineType, len(props))
			}
		}
		_ = tw.Flush()
	}

	if len(plan.WriterChannels)+len(plan.ReaderChannels) > 0 {
		fmt.Fprintln(w)
		tw := newTable(w)
		row(tw, "ROLE", "CHANNEL", "TYPE", "VARIABLES")
		for _, list := range [][]engine.ChannelEntity{plan.WriterChannels, plan.ReaderChannels} {
			for _, ch := range list {
				row(tw, ch.Role, engine.Describe(ch.Subject), engine.Describe(ch.ChannelType), len(ch.Variables()))
			}
		}
		_ = tw.Flush()
	}

	if s.Links > 0 {
		fmt.Fprintln(w)
		tw := newTable(w)
		row(tw, "ORIGIN", "SOURCE", "TARGET", "RELATIONSHIP")
		for _, list := range [][]engine.LinkDescriptor{plan.DirectLinks, plan.WriterLinks, plan.ReaderLinks} {
			for _, l := range list {
				key := "-"
				if l.Key != nil {
					key = *l.Key
				}
				row(tw, l.Origin, engine.Describe(l.Source), engine.Describe(l.Target), key)
			}
		}
		_ = tw.Flush()
	}

	printRejected(w, plan.Rejected)
}

func printRejected(w io.Writer, rejected []engine.RejectedRow) {
	if len(rejected) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRejected rows:")
	tw := newTable(w)
	row(tw, "SHAPE", "SUBJECT", "CODE", "ERROR")
	for _, r := range rejected {
		row(tw, r.Shape, r.Subject, r.Code, r.Error)
	}
	_ = tw.Flush()
}
