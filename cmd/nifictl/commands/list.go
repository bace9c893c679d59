package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/nifictl/pkg/config"
	"github.com/openfroyo/nifictl/pkg/engine"
	"github.com/openfroyo/nifictl/pkg/nifi"
	"github.com/openfroyo/nifictl/pkg/ontology"
	"github.com/openfroyo/nifictl/pkg/rdf"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Inspect the types and components of a NiFi instance",
		Long: `Inspect the types a NiFi instance offers and the components it runs.

Type listings can be printed as Turtle, and single types as ontology stubs
ready to be completed and loaded with --ontology.`,
	}

	cmd.AddCommand(newListTypesCommand("types", "List processor types", (*nifi.Client).ProcessorTypes, describeProcessor))
	cmd.AddCommand(newListTypesCommand("services", "List controller service types", (*nifi.Client).ServiceTypes, describeService))
	cmd.AddCommand(newListTypeCommand("type", "Describe one processor type", describeProcessor))
	cmd.AddCommand(newListTypeCommand("service", "Describe one controller service type", describeService))
	cmd.AddCommand(newListActiveCommand())

	return cmd
}

// withClient runs fn with a client for the configured instance.
func withClient(fn func(*env, *nifi.Client) error) error {
	e, err := setup(scopeNiFi, config.Overrides{})
	if err != nil {
		return err
	}
	defer e.close()

	client, err := e.client()
	if err != nil {
		return err
	}
	return fn(e, client)
}

func newListTypesCommand(use, short string, fetch func(*nifi.Client, context.Context) ([]nifi.DocumentedType, error), describe describer) *cobra.Command {
	var (
		filters []string
		full    bool
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Example: fmt.Sprintf(`  nifictl list %[1]s
  nifictl list %[1]s --filter json --filter record
  nifictl list %[1]s -o turtle
  nifictl list %[1]s --filter json --full -o turtle`, use),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(outputTable, outputJSON, outputTurtle)
			if err != nil {
				return err
			}

			return withClient(func(e *env, client *nifi.Client) error {
				types, err := fetch(client, cmd.Context())
				if err != nil {
					return err
				}
				types = nifi.FilterTypes(types, filters)
				sort.Slice(types, func(i, j int) bool { return types[i].Type < types[j].Type })

				w := cmd.OutOrStdout()
				if full {
					return describeTypes(cmd.Context(), w, client, e.cfg.NiFi.RootGroup, types, describe, format)
				}
				switch format {
				case outputJSON:
					return printJSON(w, types)
				case outputTurtle:
					return rdf.Encode(w, ontology.DescribeTypes(types), rdf.FormatTurtle)
				}

				tw := newTable(w)
				row(tw, "TYPE", "BUNDLE", "TAGS")
				for _, t := range types {
					bundle := "-"
					if t.Bundle != nil {
						bundle = t.Bundle.Artifact + ":" + t.Bundle.Version
					}
					row(tw, t.Type, bundle, strings.Join(t.Tags, ","))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "keep types whose description or tags contain this text (repeatable)")
	cmd.Flags().BoolVar(&full, "full", false, "describe every listed type with a temporary object, as list type does")

	return cmd
}

// describeTypes prints the full description of every type. All types are
// described before anything is printed, so a failure leaves no partial output.
func describeTypes(ctx context.Context, w io.Writer, client *nifi.Client, groupID string, types []nifi.DocumentedType, describe describer, format string) error {
	raws := make([]interface{}, 0, len(types))
	comps := make([]ontology.Component, 0, len(types))
	for _, t := range types {
		raw, comp, err := describe(ctx, client, groupID, t.Type)
		if err != nil {
			return fmt.Errorf("describe %s: %w", t.Type, err)
		}
		raws = append(raws, raw)
		comps = append(comps, comp)
	}

	switch format {
	case outputJSON:
		return printJSON(w, raws)
	case outputTurtle:
		for _, c := range comps {
			if err := ontology.WriteStub(w, c); err != nil {
				return err
			}
		}
		return nil
	}
	for i, c := range comps {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printComponent(w, c)
	}
	return nil
}

// describer creates a temporary object of one type in a group, reads its
// description and deletes it again.
type describer func(ctx context.Context, client *nifi.Client, groupID, engineType string) (interface{}, ontology.Component, error)

func describeProcessor(ctx context.Context, client *nifi.Client, groupID, engineType string) (interface{}, ontology.Component, error) {
	obj, err := client.CreateProcessor(ctx, groupID, engineType)
	if err != nil {
		return nil, ontology.Component{}, err
	}
	ent, err := client.GetProcessor(ctx, obj.ID)
	if err == nil {
		obj.Version = ent.Revision.Version
	}
	if derr := client.DeleteProcessor(context.WithoutCancel(ctx), obj); derr != nil && err == nil {
		err = fmt.Errorf("failed to delete temporary processor %s: %w", obj.ID, derr)
	}
	if err != nil {
		return nil, ontology.Component{}, err
	}
	return ent.Component, ontology.FromProcessor(ent), nil
}

func describeService(ctx context.Context, client *nifi.Client, groupID, engineType string) (interface{}, ontology.Component, error) {
	obj, err := client.CreateService(ctx, groupID, engineType)
	if err != nil {
		return nil, ontology.Component{}, err
	}
	ent, err := client.GetService(ctx, obj.ID)
	if err == nil {
		obj.Version = ent.Revision.Version
	}
	if derr := client.DeleteService(context.WithoutCancel(ctx), obj); derr != nil && err == nil {
		err = fmt.Errorf("failed to delete temporary service %s: %w", obj.ID, derr)
	}
	if err != nil {
		return nil, ontology.Component{}, err
	}
	return ent.Component, ontology.FromService(ent), nil
}

func newListTypeCommand(use, short string, describe describer) *cobra.Command {
	return &cobra.Command{
		Use:   use + " TYPE",
		Short: short,
		Long: short + `.

A temporary object of the type is created in the root group to read its
property descriptors, and deleted afterwards. As Turtle, the description is
an ontology stub for the type.`,
		Example: fmt.Sprintf(`  nifictl list %s org.apache.nifi.processors.standard.LogAttribute
  nifictl list %s org.apache.nifi.processors.standard.LogAttribute -o turtle > log.ttl`, use, use),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(outputTable, outputJSON, outputTurtle)
			if err != nil {
				return err
			}

			return withClient(func(e *env, client *nifi.Client) error {
				raw, comp, err := describe(cmd.Context(), client, e.cfg.NiFi.RootGroup, args[0])
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				switch format {
				case outputJSON:
					return printJSON(w, raw)
				case outputTurtle:
					return ontology.WriteStub(w, comp)
				}
				printComponent(w, comp)
				return nil
			})
		},
	}
}

func printComponent(w io.Writer, c ontology.Component) {
	fmt.Fprintf(w, "%s\n\n", c.Type)

	tw := newTable(w)
	row(tw, "PROPERTY", "REQUIRED", "DEFAULT", "DESCRIPTION")
	for _, p := range c.Properties {
		def := p.DefaultValue
		if def == "" {
			def = "-"
		}
		row(tw, p.Name, p.Required, def, firstLine(p.Description))
	}
	_ = tw.Flush()

	if len(c.Relationships) > 0 {
		fmt.Fprintln(w)
		tw = newTable(w)
		row(tw, "RELATIONSHIP", "DESCRIPTION")
		for _, r := range c.Relationships {
			row(tw, r.Name, firstLine(r.Description))
		}
		_ = tw.Flush()
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func newListActiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "active processors|services|groups",
		Short:     "List running processors, enabled services or the root group flow",
		Example:   "  nifictl list active processors\n  nifictl list active groups -o json",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"processors", "services", "groups"},
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(outputTable, outputJSON)
			if err != nil {
				return err
			}

			return withClient(func(e *env, client *nifi.Client) error {
				ctx := cmd.Context()
				group := e.cfg.NiFi.RootGroup
				w := cmd.OutOrStdout()

				switch args[0] {
				case "processors":
					procs, err := client.ActiveProcessors(ctx, group)
					if err != nil {
						return err
					}
					if format == outputJSON {
						return printJSON(w, procs)
					}
					tw := newTable(w)
					row(tw, "ID", "NAME", "TYPE", "STATE")
					for _, p := range procs {
						row(tw, p.ID, p.Component.Name, p.Component.Type, p.Component.State)
					}
					return tw.Flush()

				case "services":
					services, err := client.ActiveServices(ctx, group)
					if err != nil {
						return err
					}
					if format == outputJSON {
						return printJSON(w, services)
					}
					return printObjects(w, services)

				default:
					flow, err := client.GroupFlow(ctx, group)
					if err != nil {
						return err
					}
					if format == outputJSON {
						return printJSON(w, flow)
					}
					tw := newTable(w)
					row(tw, "ID", "NAME", "RUNNING", "STOPPED", "INVALID", "DISABLED")
					for _, g := range flow.Flow.ProcessGroups {
						row(tw, g.ID, g.Component.Name, g.RunningCount, g.StoppedCount, g.InvalidCount, g.DisabledCount)
					}
					return tw.Flush()
				}
			})
		},
	}
}

func printObjects(w io.Writer, objs []engine.RemoteObject) error {
	tw := newTable(w)
	row(tw, "ID", "NAME", "TYPE", "STATE")
	for _, o := range objs {
		row(tw, o.ID, o.Name, o.Type, o.State)
	}
	return tw.Flush()
}
